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

import "time"

// SinkHealth is the health triple for a single sink: healthy flag,
// optional last error, and a consecutive-failure count. Healthy is
// always derived: it is true exactly when ConsecutiveFailures is zero.
type SinkHealth struct {
	Healthy             bool      `json:"healthy"`
	LastError           string    `json:"last_error"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitempty"`
	LastRecoveryAt      time.Time `json:"last_recovery_at,omitempty"`
}

// RecordSuccess resets the failure counter and marks the sink healthy.
func (h *SinkHealth) RecordSuccess() {
	h.ConsecutiveFailures = 0
	h.LastError = ""
	h.Healthy = true
}

// RecordFailure increments the failure counter, records err, and marks
// the sink unhealthy.
func (h *SinkHealth) RecordFailure(err error) {
	h.ConsecutiveFailures++
	h.Healthy = false
	h.LastFailureAt = time.Now()
	if err != nil {
		h.LastError = err.Error()
	}
}

// Snapshot is a read-only copy of SinkHealth safe to hand outside the
// owning mutex.
type Snapshot = SinkHealth
