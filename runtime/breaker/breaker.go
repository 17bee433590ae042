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

// Package breaker implements the three-state circuit breaker every
// asynchronous sink wraps its writes in: Closed, Open, HalfOpen.
package breaker

import "time"

// State is one of the three circuit states.
type State uint8

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker is not safe for concurrent use; the owning sink worker is the
// only goroutine that calls it, so it serializes access itself.
type Breaker struct {
	state            State
	failureCount     uint32
	failureThreshold uint32
	resetTimeout     time.Duration
	lastFailureTime  time.Time
	hasLastFailure   bool
}

// New returns a Closed breaker that opens after failureThreshold
// consecutive failures and attempts recovery resetTimeout after the
// last one.
func New(failureThreshold uint32, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// CanExecute reports whether the caller may attempt the guarded
// operation, transitioning Open -> HalfOpen in place when the reset
// timeout has elapsed.
func (b *Breaker) CanExecute() bool {
	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.hasLastFailure && time.Since(b.lastFailureTime) >= b.resetTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the breaker to Closed.
func (b *Breaker) RecordSuccess() {
	b.failureCount = 0
	b.state = Closed
	b.hasLastFailure = false
}

// RecordFailure increments the failure count and opens the breaker
// once the threshold is reached, from any state.
func (b *Breaker) RecordFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()
	b.hasLastFailure = true
	if b.state == HalfOpen || b.failureCount >= b.failureThreshold {
		b.state = Open
	}
}

// Reset forces the breaker back to Closed, clearing all counters.
func (b *Breaker) Reset() {
	b.state = Closed
	b.failureCount = 0
	b.hasLastFailure = false
}

// State reports the current state.
func (b *Breaker) State() State { return b.state }

// FailureCount reports the current consecutive-failure count.
func (b *Breaker) FailureCount() uint32 { return b.failureCount }
