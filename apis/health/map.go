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
	"sync"
	"time"
)

// Map is the shared, map-in-mutex per-sink health table. Every update
// acquires the mutex, mutates in O(1), and releases it immediately — it
// is never held across I/O or a channel operation. The supervisor,
// workers, and the manager's health/metrics endpoints all read and
// write through the same Map instance.
type Map struct {
	mu    sync.Mutex
	sinks map[string]*SinkHealth
}

// NewMap builds an empty health map.
func NewMap() *Map {
	return &Map{sinks: make(map[string]*SinkHealth)}
}

// Register adds a sink entry, defaulting it to healthy. Safe to call
// more than once for the same name (it is a no-op after the first call).
func (m *Map) Register(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sinks[name]; !ok {
		m.sinks[name] = &SinkHealth{Healthy: true}
	}
}

// Success records a successful write for name.
func (m *Map) Success(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(name).RecordSuccess()
}

// Failure records a failed write for name.
func (m *Map) Failure(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(name).RecordFailure(err)
}

// Recovered marks name healthy again after a successful auto-recovery,
// without requiring a write to have been attempted.
func (m *Map) Recovered(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(name)
	e.RecordSuccess()
	e.LastRecoveryAt = time.Now()
}

// AttemptedRecovery stamps the time of a recovery attempt for name,
// successful or not. The supervisor reads this to avoid re-commanding
// recovery of a sink whose worker just tried.
func (m *Map) AttemptedRecovery(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(name).LastRecoveryAt = time.Now()
}

// Get returns a copy of the current health for name.
func (m *Map) Get(name string) SinkHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.entry(name)
}

// Snapshot returns a copy of the full health map, safe to read without
// the lock held.
func (m *Map) Snapshot() map[string]SinkHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]SinkHealth, len(m.sinks))
	for name, h := range m.sinks {
		out[name] = *h
	}
	return out
}

// Overall reports whether every registered sink is currently healthy.
func (m *Map) Overall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.sinks {
		if !h.Healthy {
			return false
		}
	}
	return true
}

// entry must be called with mu held.
func (m *Map) entry(name string) *SinkHealth {
	e, ok := m.sinks[name]
	if !ok {
		e = &SinkHealth{Healthy: true}
		m.sinks[name] = e
	}
	return e
}
