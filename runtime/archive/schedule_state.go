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
	"sync"
	"time"

	"github.com/kirky-x/inklog/apis/archive"
)

// ScheduleState is the mutex-protected control struct that prevents
// more than one archive run per calendar day under interval scheduling
// and tracks the last outcome. Every access acquires the lock, mutates
// in one short critical section, and releases it — never across
// network or disk I/O.
type ScheduleState struct {
	mu sync.Mutex

	isRunning           bool
	lockedDate          string // "2006-01-02", empty when not locked
	lastScheduledRun    time.Time
	lastSuccessfulRun   time.Time
	lastStatus          archive.Status
	consecutiveFailures int
}

// NewScheduleState returns an idle schedule state.
func NewScheduleState() *ScheduleState {
	return &ScheduleState{}
}

// TryStart attempts to acquire the daily run slot for "now". It
// returns false without mutating state if a run is already in
// progress and locked for today, or if today's run already succeeded
// (at most one archive run *succeeds* per calendar day); a prior
// failure today does not block a retry, since the lock clears on
// completion or failure. Otherwise it locks today's date and returns
// true.
func (s *ScheduleState) TryStart(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := now.UTC().Format("2006-01-02")
	if s.lockedDate == today {
		if s.isRunning {
			return false
		}
		if s.lastStatus == archive.StatusSuccess {
			return false
		}
	}
	s.isRunning = true
	s.lockedDate = today
	s.lastScheduledRun = now
	return true
}

// MarkSuccess clears the running lock, resets the failure counter, and
// records the successful-run timestamp.
func (s *ScheduleState) MarkSuccess(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
	s.consecutiveFailures = 0
	s.lastSuccessfulRun = now
	s.lastStatus = archive.StatusSuccess
}

// MarkFailed clears the running lock and increments the failure
// counter, recording status as either FailedLocal (fallback succeeded)
// or Failed (total failure).
func (s *ScheduleState) MarkFailed(status archive.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
	s.consecutiveFailures++
	s.lastStatus = status
}

// Snapshot is a read-only copy of the schedule state, safe to hand
// outside the owning mutex.
type Snapshot struct {
	IsRunning           bool
	LockedDate          string
	LastScheduledRun    time.Time
	LastSuccessfulRun   time.Time
	LastStatus          archive.Status
	ConsecutiveFailures int
}

// Snapshot copies the current state under lock.
func (s *ScheduleState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		IsRunning:           s.isRunning,
		LockedDate:          s.lockedDate,
		LastScheduledRun:    s.lastScheduledRun,
		LastSuccessfulRun:   s.lastSuccessfulRun,
		LastStatus:          s.lastStatus,
		ConsecutiveFailures: s.consecutiveFailures,
	}
}
