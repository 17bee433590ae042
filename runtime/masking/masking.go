/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package masking redacts sensitive substrings from log messages and
// field values before they reach any sink.
package masking

import (
	"regexp"
	"strings"
)

// sensitiveFieldNames is matched as a case-insensitive substring
// against a field key, independent of the regex rules below, so a
// field can be redacted wholesale by name even when its value doesn't
// match any pattern (e.g. a password stored as a bare token).
var sensitiveFieldNames = []string{
	"password", "token", "secret", "key", "credential", "auth",
	"api_key", "api_key_id", "api_secret", "access_key", "access_key_id",
	"secret_key", "private_key", "public_key", "encryption_key",
	"decryption_key", "master_key", "session_key", "oauth", "oauth_token",
	"oauth_secret", "bearer", "bearer_token", "jwt", "session_id",
	"session_token", "aws_secret", "aws_key", "aws_token", "aws_credentials",
	"database_url", "db_password", "db_user", "connection_string",
	"credit_card", "card_number", "cvv", "ssn", "social_security",
	"client_secret", "client_id", "refresh_token", "pin", "pin_code",
	"two_factor", "totp", "backup_code", "recovery_code",
}

// IsSensitiveField reports whether fieldName looks like it holds a
// secret, independent of its value.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, s := range sensitiveFieldNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

var (
	emailRegexp  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+`)
	phoneRegexp  = regexp.MustCompile(`\b1[3-9]\d{9}\b`)
	idCardRegexp = regexp.MustCompile(`^(\d{6})(\d{8})(\d{3}[\dX])$`)
	apiKeyRegexp = regexp.MustCompile(`(?i)(api[_-]?key[^\s:=]*\s*[=:]\s*[a-zA-Z0-9_-]{20,})`)
	awsKeyRegexp = regexp.MustCompile(`(?i)(AKIA|ABIA|ACCA|ASIA)[0-9A-Z]{16}`)
	jwtRegexp    = regexp.MustCompile(`(?i)eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)

	// genericSecretRegexp captures the key= prefix in group 1 and the
	// value in group 2; ReplaceAll keeps group 1 and redacts group 2.
	genericSecretRegexp = regexp.MustCompile(`(?i)([^\s:=]*(?:token|secret|key|password|passwd|pwd|credential)s?[^\s:=]*\s*[=:]\s*)([a-zA-Z0-9_\-+]{16,})`)

	bankCardCandidateRegexp = regexp.MustCompile(`^\d{12,}$`)
)

// Masker applies every redaction rule to a string, in a fixed order
// chosen so narrower, structural rules (IDs, cards, keys) run before
// the broad generic-secret fallback.
type Masker struct{}

// New returns a Masker. It has no configuration: the rule set is fixed.
func New() *Masker {
	return &Masker{}
}

// Mask returns text with every recognized sensitive pattern replaced.
func (m *Masker) Mask(text string) string {
	if idCardRegexp.MatchString(text) {
		return idCardRegexp.ReplaceAllString(text, "******$3")
	}
	if bankCardCandidateRegexp.MatchString(text) && len(text) >= 12 {
		return maskBankCard(text)
	}

	out := emailRegexp.ReplaceAllString(text, "**@**.***")
	out = phoneRegexp.ReplaceAllString(out, "***-****-****")
	out = apiKeyRegexp.ReplaceAllString(out, "${1}***REDACTED***")
	out = awsKeyRegexp.ReplaceAllString(out, "***REDACTED***")
	out = jwtRegexp.ReplaceAllString(out, "***REDACTED_JWT***")
	out = genericSecretRegexp.ReplaceAllString(out, "${1}***REDACTED***")
	return out
}

// maskBankCard keeps only the last four digits of an all-digit string
// that is long enough to plausibly be a card number.
func maskBankCard(digits string) string {
	return "****-****-****-" + digits[len(digits)-4:]
}

// MaskFields masks every string leaf in fields in place, recursing
// through nested maps and arrays, and masks the entire value
// (regardless of shape) for keys IsSensitiveField recognizes, since
// those are assumed secret even unmasked.
func (m *Masker) MaskFields(fields map[string]any) {
	for k, v := range fields {
		if IsSensitiveField(k) {
			fields[k] = "***REDACTED***"
			continue
		}
		fields[k] = m.maskValue(v)
	}
}

// maskValue walks a JSON-shaped value and masks every string leaf;
// non-string scalars pass through untouched. Nested map keys get the
// same sensitive-name treatment as top-level ones.
func (m *Masker) maskValue(v any) any {
	switch t := v.(type) {
	case string:
		return m.Mask(t)
	case []any:
		for i, item := range t {
			t[i] = m.maskValue(item)
		}
		return t
	case map[string]any:
		m.MaskFields(t)
		return t
	default:
		return v
	}
}
