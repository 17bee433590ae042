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

package health

import (
	"errors"
	"testing"
)

func TestMap_HealthyIffZeroConsecutiveFailures(t *testing.T) {
	m := NewMap()
	m.Register("file")

	h := m.Get("file")
	if !h.Healthy || h.ConsecutiveFailures != 0 {
		t.Fatalf("fresh entry = %+v, want healthy with 0 failures", h)
	}

	err := errors.New("no space left on device")
	m.Failure("file", err)
	m.Failure("file", err)
	h = m.Get("file")
	if h.Healthy || h.ConsecutiveFailures != 2 || h.LastError == "" {
		t.Fatalf("after failures = %+v", h)
	}

	m.Success("file")
	h = m.Get("file")
	if !h.Healthy || h.ConsecutiveFailures != 0 || h.LastError != "" {
		t.Fatalf("after success = %+v, want reset", h)
	}
}

func TestMap_OverallReflectsEverySink(t *testing.T) {
	m := NewMap()
	m.Register("file")
	m.Register("database")

	if !m.Overall() {
		t.Fatalf("Overall() = false with all sinks healthy")
	}
	m.Failure("database", errors.New("connection refused"))
	if m.Overall() {
		t.Fatalf("Overall() = true with an unhealthy sink")
	}
	m.Success("database")
	if !m.Overall() {
		t.Fatalf("Overall() = false after recovery")
	}
}

func TestMap_SnapshotIsACopy(t *testing.T) {
	m := NewMap()
	m.Register("file")

	snap := m.Snapshot()
	entry := snap["file"]
	entry.ConsecutiveFailures = 99
	snap["file"] = entry

	if m.Get("file").ConsecutiveFailures != 0 {
		t.Fatalf("mutating a snapshot leaked into the live map")
	}
}

func TestMap_RecoveredMarksHealthyAndStampsTime(t *testing.T) {
	m := NewMap()
	m.Register("file")
	m.Failure("file", errors.New("gone"))

	m.Recovered("file")
	h := m.Get("file")
	if !h.Healthy || h.ConsecutiveFailures != 0 {
		t.Fatalf("after Recovered = %+v", h)
	}
	if h.LastRecoveryAt.IsZero() {
		t.Fatalf("LastRecoveryAt not stamped")
	}
}
