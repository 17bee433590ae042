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

package archive

import (
	"testing"
	"time"

	"github.com/kirky-x/inklog/apis/archive"
)

func TestScheduleState_AtMostOneRunPerCalendarDay(t *testing.T) {
	s := NewScheduleState()
	day := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)

	if !s.TryStart(day) {
		t.Fatalf("first TryStart = false, want true")
	}
	if s.TryStart(day.Add(time.Hour)) {
		t.Fatalf("second TryStart on the same locked day = true, want false")
	}

	s.MarkSuccess(day)
	nextDay := day.AddDate(0, 0, 1)
	if !s.TryStart(nextDay) {
		t.Fatalf("TryStart on the next day after success = false, want true")
	}
}

func TestScheduleState_MarkFailedClearsRunningAndIncrementsFailures(t *testing.T) {
	s := NewScheduleState()
	day := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	s.TryStart(day)
	s.MarkFailed(archive.StatusFailed)

	snap := s.Snapshot()
	if snap.IsRunning {
		t.Fatalf("IsRunning = true after MarkFailed, want false")
	}
	if snap.ConsecutiveFailures != 1 {
		t.Fatalf("ConsecutiveFailures = %d, want 1", snap.ConsecutiveFailures)
	}
	if snap.LastStatus != archive.StatusFailed {
		t.Fatalf("LastStatus = %v, want Failed", snap.LastStatus)
	}

	// A failed run clears the running lock, so a retry later the same
	// day is allowed; only a successful run is limited to one per
	// calendar day.
	if !s.TryStart(day.Add(time.Minute)) {
		t.Fatalf("TryStart after failure on the same day = false, want true (retries are allowed)")
	}
}
