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

package ingest

import (
	"time"

	"go.uber.org/zap"

	"github.com/kirky-x/inklog/apis/health"
	"github.com/kirky-x/inklog/internal/diag"
)

const (
	// supervisorInterval is the health-snapshot cadence.
	supervisorInterval = 10 * time.Second

	// recoverAfterFailures is the consecutive-failure count past which
	// the supervisor commands recovery, provided no attempt happened
	// within recoverCooldown.
	recoverAfterFailures = 3
	recoverCooldown      = 30 * time.Second

	// criticalFailures is the count past which the situation is logged
	// as critical for operators.
	criticalFailures = 10
)

// Supervisor watches the shared health map and sends RecoverSink
// commands to stuck workers. It holds no sink handles: its whole view
// of the world is the health map and the per-worker control channels,
// which is what keeps manager/supervisor ownership acyclic.
type Supervisor struct {
	health   *health.Map
	controls map[string]chan ControlMessage

	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewSupervisor builds a supervisor over the given per-sink control
// channels.
func NewSupervisor(h *health.Map, controls map[string]chan ControlMessage) *Supervisor {
	return &Supervisor{
		health:   h,
		controls: controls,
		interval: supervisorInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the supervisor loop on its own goroutine.
func (s *Supervisor) Start() {
	go s.run()
}

// Stop terminates the loop and waits for it to exit.
func (s *Supervisor) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Supervisor) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.inspect()
		}
	}
}

// inspect snapshots per-sink health and commands recovery where a sink
// has been failing and nobody has tried to fix it recently.
func (s *Supervisor) inspect() {
	for name, h := range s.health.Snapshot() {
		if h.ConsecutiveFailures > criticalFailures {
			diag.L().Error("CRITICAL: sink failing persistently",
				zap.String("sink", name),
				zap.Int("consecutive_failures", h.ConsecutiveFailures),
				zap.String("last_error", h.LastError))
		}

		if h.ConsecutiveFailures <= recoverAfterFailures {
			continue
		}
		if !h.LastRecoveryAt.IsZero() && time.Since(h.LastRecoveryAt) < recoverCooldown {
			continue
		}

		ctrl, ok := s.controls[name]
		if !ok {
			continue
		}
		select {
		case ctrl <- ControlMessage{RecoverSink: true}:
			s.health.AttemptedRecovery(name)
			diag.L().Info("supervisor: commanded sink recovery", zap.String("sink", name))
		default:
			// Control channel full: the worker already has a pending
			// command; don't stack another.
		}
	}
}
