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

// Package template renders a Record into a single human-readable line
// using a small placeholder language. The console sink renders through
// it; the file sink writes JSON lines through runtime/encoder/json
// instead.
package template

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kirky-x/inklog/apis/record"
)

type placeholderKind uint8

const (
	kindLiteral placeholderKind = iota
	kindTimestamp
	kindLevel
	kindTarget
	kindMessage
	kindFile
	kindLine
	kindThreadID
	kindFields
)

type placeholder struct {
	kind    placeholderKind
	literal string
}

// Template compiles a format string like
// "{timestamp} [{level}] {target} - {message}" once and renders it
// repeatedly with no further parsing.
type Template struct {
	placeholders []placeholder
}

// New compiles template. Doubled braces "{{" and "}}" escape to
// literal braces. An unrecognized placeholder name is emitted
// verbatim, braces included, rather than rejected: a typo in a format
// string should not crash a running logger.
func New(format string) *Template {
	var placeholders []placeholder
	var cur strings.Builder
	inPlaceholder := false
	runes := []rune(format)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '{' && !inPlaceholder:
			if i+1 < len(runes) && runes[i+1] == '{' {
				cur.WriteByte('{')
				i++
				continue
			}
			if cur.Len() > 0 {
				placeholders = append(placeholders, placeholder{kind: kindLiteral, literal: cur.String()})
				cur.Reset()
			}
			inPlaceholder = true
		case ch == '}' && !inPlaceholder:
			if i+1 < len(runes) && runes[i+1] == '}' {
				cur.WriteByte('}')
				i++
				continue
			}
			cur.WriteByte('}')
		case ch == '}' && inPlaceholder:
			name := strings.ToLower(strings.TrimSpace(cur.String()))
			switch name {
			case "timestamp":
				placeholders = append(placeholders, placeholder{kind: kindTimestamp})
			case "level":
				placeholders = append(placeholders, placeholder{kind: kindLevel})
			case "target":
				placeholders = append(placeholders, placeholder{kind: kindTarget})
			case "message":
				placeholders = append(placeholders, placeholder{kind: kindMessage})
			case "file":
				placeholders = append(placeholders, placeholder{kind: kindFile})
			case "line":
				placeholders = append(placeholders, placeholder{kind: kindLine})
			case "thread_id":
				placeholders = append(placeholders, placeholder{kind: kindThreadID})
			case "fields":
				placeholders = append(placeholders, placeholder{kind: kindFields})
			default:
				placeholders = append(placeholders, placeholder{kind: kindLiteral, literal: "{" + cur.String() + "}"})
			}
			cur.Reset()
			inPlaceholder = false
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 {
		placeholders = append(placeholders, placeholder{kind: kindLiteral, literal: cur.String()})
	}

	return &Template{placeholders: placeholders}
}

// Default is the library-wide default template. {fields} contributes
// nothing for a record with no fields, so the common case stays clean.
func Default() *Template {
	return New("{timestamp} [{level}] {target} - {message}{fields}")
}

// Render builds the formatted line for r into buf.
func (t *Template) Render(buf *strings.Builder, r *record.Record) {
	for _, p := range t.placeholders {
		switch p.kind {
		case kindLiteral:
			buf.WriteString(p.literal)
		case kindTimestamp:
			buf.WriteString(r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"))
		case kindLevel:
			buf.WriteString(r.Level.String())
		case kindTarget:
			buf.WriteString(r.Target)
		case kindMessage:
			buf.WriteString(r.Message)
		case kindFile:
			buf.WriteString(r.File)
		case kindLine:
			if r.Line > 0 {
				buf.WriteString(strconv.Itoa(r.Line))
			}
		case kindThreadID:
			buf.WriteString(r.ThreadID)
		case kindFields:
			writeFields(buf, r.Fields)
		}
	}
}

// RenderString is a convenience wrapper around Render for callers that
// don't otherwise need the builder pooled.
func (t *Template) RenderString(r *record.Record) string {
	var buf strings.Builder
	t.Render(&buf, r)
	return buf.String()
}

// writeFields appends " k=v k2=v2 ..." in sorted key order so output
// is stable across map iteration.
func writeFields(buf *strings.Builder, fields map[string]any) {
	if len(fields) == 0 {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte(' ')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(formatFieldValue(fields[k]))
	}
}

// formatFieldValue renders a field value the way the line format
// promises: strings bare, everything else as its JSON encoding.
func formatFieldValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
