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

package file

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/kirky-x/inklog/apis/errkind"
)

// Encrypted-file format:
//
//	8 bytes magic "ENCLOG1\0"
//	2 bytes LE version = 1
//	2 bytes LE algorithm; 1 = AES-256-GCM
//	12 bytes nonce
//	... AES-256-GCM ciphertext, authentication tag appended
//
// A legacy variant omits the 2-byte algorithm field (header is magic +
// version only, 10 bytes, followed directly by the 12-byte nonce).
// Readers distinguish the two by checking whether bytes [10:12] decode
// to algorithm 1; callers that know they're reading current-format
// files can skip the legacy path entirely.
const (
	encMagic        = "ENCLOG1\x00"
	encVersion      = 1
	encAlgoAESGCM   = 1
	encNonceSize    = 12
	encHeaderCurLen = len(encMagic) + 2 + 2 // magic + version + algo
	encHeaderOldLen = len(encMagic) + 2     // magic + version only

	// pbkdfSalt is fixed: key material of 1 to 127 bytes that is neither
	// base64 of 32 bytes nor exactly 32 raw bytes is stretched with
	// PBKDF2 using this literal salt, not a
	// per-file random one — the format has no room to carry a salt, so
	// the salt is a property of the inklog version, not the file.
	pbkdfSalt       = "inklog-file-encryption-v1"
	pbkdfIterations = 100000
	pbkdfKeyLen     = 32
)

// resolveKey implements the key-acquisition ladder for the named
// environment variable: exact-32-byte base64, exact-32 raw bytes, or
// PBKDF2 stretching of anything from 1 to 127 bytes. Anything else is
// a ConfigError — a misconfigured key must fail fast at startup, not
// silently encrypt with a derived key nobody asked for.
func resolveKey(envName string) ([]byte, error) {
	raw, ok := os.LookupEnv(envName)
	if !ok || raw == "" {
		return nil, errkind.New(errkind.Config, fmt.Sprintf("encryption key env %q is not set", envName))
	}

	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	if n := len(raw); n >= 1 && n <= 127 {
		return pbkdf2.Key([]byte(raw), []byte(pbkdfSalt), pbkdfIterations, pbkdfKeyLen, sha256.New), nil
	}
	return nil, errkind.New(errkind.Config, fmt.Sprintf("encryption key env %q has unusable length %d", envName, len(raw)))
}

// encryptBytes wraps plaintext in the current-format envelope using key
// (which must be 32 bytes — the caller is always resolveKey's output).
func encryptBytes(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errkind.Wrap(errkind.Encryption, "construct AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errkind.Wrap(errkind.Encryption, "construct AES-GCM", err)
	}

	nonce := make([]byte, encNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errkind.Wrap(errkind.Encryption, "generate nonce", err)
	}

	out := make([]byte, 0, encHeaderCurLen+encNonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, []byte(encMagic)...)
	out = binary.LittleEndian.AppendUint16(out, encVersion)
	out = binary.LittleEndian.AppendUint16(out, encAlgoAESGCM)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// decryptBytes reverses encryptBytes, accepting both the current and
// legacy envelope shapes.
func decryptBytes(key, blob []byte) ([]byte, error) {
	if len(blob) < len(encMagic) || string(blob[:len(encMagic)]) != encMagic {
		return nil, errkind.New(errkind.Encryption, "not an inklog encrypted file: bad magic")
	}

	headerLen := encHeaderOldLen
	algo := uint16(encAlgoAESGCM)
	if len(blob) >= encHeaderCurLen {
		candidate := binary.LittleEndian.Uint16(blob[len(encMagic)+2 : len(encMagic)+4])
		if candidate == encAlgoAESGCM {
			headerLen = encHeaderCurLen
			algo = candidate
		}
	}
	if algo != encAlgoAESGCM {
		return nil, errkind.New(errkind.Encryption, fmt.Sprintf("unsupported encryption algorithm %d", algo))
	}
	if len(blob) < headerLen+encNonceSize {
		return nil, errkind.New(errkind.Encryption, "truncated encrypted file")
	}

	nonce := blob[headerLen : headerLen+encNonceSize]
	ciphertext := blob[headerLen+encNonceSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errkind.Wrap(errkind.Encryption, "construct AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errkind.Wrap(errkind.Encryption, "construct AES-GCM", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errkind.Wrap(errkind.Encryption, "decrypt: authentication failed", err)
	}
	return plaintext, nil
}

// DecryptFile is the library primitive the out-of-scope `decrypt` CLI
// collaborator calls: resolve the key the same way the file sink does,
// then decrypt blob.
func DecryptFile(encryptionKeyEnv string, blob []byte) ([]byte, error) {
	key, err := resolveKey(encryptionKeyEnv)
	if err != nil {
		return nil, err
	}
	return decryptBytes(key, blob)
}
