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
	"testing"
	"time"

	"github.com/kirky-x/inklog/apis/level"
)

func sample() *Record {
	return &Record{
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Level:     level.Warn,
		Target:    "app.http",
		Message:   "slow request",
		Fields:    map[string]any{"latency_ms": 812, "route": "/v1/items"},
		File:      "server.go",
		Line:      120,
		ThreadID:  "t7",
	}
}

func TestClone_IsIndependent(t *testing.T) {
	r := sample()
	c := r.Clone()

	c.Fields["route"] = "/mutated"
	c.Message = "changed"

	if r.Fields["route"] != "/v1/items" {
		t.Fatalf("mutating the clone's fields leaked into the original")
	}
	if r.Message != "slow request" {
		t.Fatalf("mutating the clone leaked into the original")
	}
}

func TestReset_ClearsEverythingButKeepsFieldsMap(t *testing.T) {
	r := sample()
	fields := r.Fields
	r.Reset()

	if !r.Timestamp.IsZero() || r.Target != "" || r.Message != "" ||
		r.File != "" || r.Line != 0 || r.ThreadID != "" {
		t.Fatalf("Reset left data behind: %+v", r)
	}
	if len(r.Fields) != 0 {
		t.Fatalf("Reset left %d fields", len(r.Fields))
	}
	// Map identity is preserved so pooled records reuse their backing
	// storage.
	r.Fields["k"] = "v"
	if _, ok := fields["k"]; !ok {
		t.Fatalf("Reset replaced the Fields map instead of clearing it")
	}
}

func TestValidate(t *testing.T) {
	r := sample()
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate(valid): %v", err)
	}

	bad := sample()
	bad.Level = level.Level(9)
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate accepted an invalid level")
	}

	bad = sample()
	bad.Timestamp = time.Time{}
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate accepted a zero timestamp")
	}
}

func TestHasFileHasLine(t *testing.T) {
	r := &Record{}
	if r.HasFile() || r.HasLine() {
		t.Fatalf("zero record claims source info")
	}
	r.File, r.Line = "main.go", 3
	if !r.HasFile() || !r.HasLine() {
		t.Fatalf("populated record denies source info")
	}
}
