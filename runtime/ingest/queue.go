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

// Package ingest is the concrete ingestion pipeline: one bounded FIFO
// queue per asynchronous sink, one worker goroutine per queue, and a
// supervisor that watches the shared health map and commands recovery.
package ingest

import (
	"time"

	"github.com/kirky-x/inklog/apis/errkind"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/apis/sink/policy"
)

// ErrQueueFull is returned by a non-blocking enqueue against a full
// queue; producers meter it as channel_blocked and fall back to the
// configured backpressure strategy.
var ErrQueueFull = errkind.New(errkind.Channel, "queue full")

// ErrQueueClosed is returned once the shutdown signal has fired;
// producers meter it as logs_dropped.
var ErrQueueClosed = errkind.New(errkind.Channel, "queue closed")

// Queue is a bounded FIFO of records feeding exactly one worker. The
// channel itself is never closed (producers may still be mid-enqueue
// when shutdown fires); closing is signalled out-of-band so an enqueue
// racing shutdown either lands in the queue and is drained, or fails
// cleanly with ErrQueueClosed.
type Queue struct {
	ch     chan *record.Record
	closed chan struct{}
}

// NewQueue builds a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch:     make(chan *record.Record, capacity),
		closed: make(chan struct{}),
	}
}

// TryEnqueue attempts a non-blocking enqueue.
func (q *Queue) TryEnqueue(r *record.Record) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// Enqueue blocks until a slot frees up or the queue closes.
func (q *Queue) Enqueue(r *record.Record) error {
	select {
	case q.ch <- r:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	}
}

// EnqueueWith applies the configured backpressure strategy after a
// failed non-blocking attempt. blocked is called exactly once when the
// queue was full, before the strategy resolves the overflow.
func (q *Queue) EnqueueWith(r *record.Record, strategy policy.Backpressure, blocked func()) error {
	err := q.TryEnqueue(r)
	if err == nil || err == ErrQueueClosed {
		return err
	}
	blocked()

	switch strategy {
	case policy.DropNewest:
		return ErrQueueFull
	case policy.DropOldest:
		select {
		case <-q.ch:
		default:
		}
		return q.Enqueue(r)
	default: // policy.Block
		return q.Enqueue(r)
	}
}

// Poll receives one record, waiting at most timeout. ok is false on
// timeout.
func (q *Queue) Poll(timeout time.Duration) (*record.Record, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-q.ch:
		return r, true
	case <-t.C:
		return nil, false
	}
}

// TryDequeue receives one record without waiting.
func (q *Queue) TryDequeue() (*record.Record, bool) {
	select {
	case r := <-q.ch:
		return r, true
	default:
		return nil, false
	}
}

// Close signals shutdown to producers. Records already queued remain
// available for the worker's drain pass. Safe to call once.
func (q *Queue) Close() {
	close(q.closed)
}

// Len reports current queue occupancy.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the queue's bounded capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
