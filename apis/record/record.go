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

package record

import (
	"fmt"
	"time"

	"github.com/kirky-x/inklog/apis/level"
)

// Record is one structured log entry.
//
// Once a Record has been handed to the ingestion pipeline it must not be
// mutated by its producer: ownership transfers to exactly one worker,
// which returns it to the object pool after writing it. The only mutation
// permitted before enqueue is a single pass through a Masker.
type Record struct {
	// Timestamp is the event time, UTC, millisecond precision.
	Timestamp time.Time
	// Level is the severity of the event.
	Level level.Level
	// Target is the dotted module/component string that produced the event.
	Target string
	// Message is the human-readable text; may be multi-line.
	Message string
	// Fields is the structured payload. Values are JSON-representable:
	// string, float64/int64, bool, nil, []any, map[string]any.
	Fields map[string]any
	// File is the optional source file path of the call site.
	File string
	// Line is the optional source line number; 0 means absent.
	Line int
	// ThreadID identifies the producing OS/goroutine thread for diagnostics.
	ThreadID string
}

// HasFile reports whether a source file was recorded.
func (r *Record) HasFile() bool { return r.File != "" }

// HasLine reports whether a source line was recorded.
func (r *Record) HasLine() bool { return r.Line > 0 }

// Validate checks that the record has a valid level and a non-zero timestamp.
func (r *Record) Validate() error {
	if err := r.Level.Validate(); err != nil {
		return fmt.Errorf("inklog: invalid record level: %w", err)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("inklog: record timestamp is zero")
	}
	return nil
}

// Reset clears a Record for reuse by the object pool. It empties the
// Fields map rather than reallocating it so the pooled map's backing
// storage is reused across cycles.
func (r *Record) Reset() {
	r.Timestamp = time.Time{}
	r.Level = level.Info
	r.Target = ""
	r.Message = ""
	r.File = ""
	r.Line = 0
	r.ThreadID = ""
	for k := range r.Fields {
		delete(r.Fields, k)
	}
}

// Clone returns a deep-enough copy safe to hand to a second, independent
// consumer (e.g. the synchronous console path and the queued worker path)
// without risk of one mutating the other's view of Fields.
func (r *Record) Clone() *Record {
	out := &Record{
		Timestamp: r.Timestamp,
		Level:     r.Level,
		Target:    r.Target,
		Message:   r.Message,
		File:      r.File,
		Line:      r.Line,
		ThreadID:  r.ThreadID,
	}
	if len(r.Fields) > 0 {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}
