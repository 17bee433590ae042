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

	"github.com/kirky-x/inklog/apis/metrics"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/apis/sink"
	"github.com/kirky-x/inklog/internal/diag"
	"github.com/kirky-x/inklog/runtime/pool"
)

const (
	// pollTimeout is how long one loop iteration waits for a record
	// before flushing the sink and re-checking control channels.
	pollTimeout = 100 * time.Millisecond

	// drainDeadline bounds the post-shutdown drain pass.
	drainDeadline = 30 * time.Second

	// writeAttempts and writeBackoffStep shape the intra-worker retry:
	// attempt n sleeps n*writeBackoffStep before the next try.
	writeAttempts    = 3
	writeBackoffStep = 10 * time.Millisecond

	// autoRecoverFailures and autoRecoverQuiet gate the worker's own
	// recovery attempt: more than autoRecoverFailures consecutive
	// failures and no failure for autoRecoverQuiet.
	autoRecoverFailures = 5
	autoRecoverQuiet    = 60 * time.Second
)

// ControlMessage is what the supervisor (or the manager) sends a
// worker out-of-band of the record queue.
type ControlMessage struct {
	// RecoverSink commands the worker to reconstruct its sink now.
	RecoverSink bool

	// Flush commands an immediate sink flush.
	Flush bool
}

// SinkBuilder reconstructs a worker's underlying sink from scratch:
// reopen the file, reconnect the database. Used by both the worker's
// self-recovery and the supervisor-commanded path.
type SinkBuilder func() (sink.Sink, error)

// Fallback delivers a record that the primary sink rejected after all
// retries (file worker falls back to console; database worker to the
// fallback file, then console).
type Fallback func(r *record.Record)

// Worker owns one asynchronous sink exclusively and drains one queue
// into it.
type Worker struct {
	name     string
	sink     sink.Sink
	rebuild  SinkBuilder
	fallback Fallback

	queue *Queue
	rec   metrics.Recorder

	ctrl     chan ControlMessage
	shutdown chan struct{}
	done     chan struct{}
}

// NewWorker wires a worker; Run must be started by the caller on its
// own goroutine.
func NewWorker(name string, s sink.Sink, rebuild SinkBuilder, fallback Fallback, queue *Queue, rec metrics.Recorder, shutdown chan struct{}) *Worker {
	rec.Health().Register(name)
	return &Worker{
		name:     name,
		sink:     s,
		rebuild:  rebuild,
		fallback: fallback,
		queue:    queue,
		rec:      rec,
		ctrl:     make(chan ControlMessage, 4),
		shutdown: shutdown,
		done:     make(chan struct{}),
	}
}

// Control returns the channel the supervisor sends commands on.
func (w *Worker) Control() chan ControlMessage { return w.ctrl }

// Done is closed once the worker has drained and shut its sink down.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run is the worker loop: check shutdown, check control, poll the
// queue with a timeout, process. On poll timeout the sink is flushed
// so buffered sinks keep their flush-interval promise even when the
// queue idles.
func (w *Worker) Run() {
	defer close(w.done)

	for {
		select {
		case <-w.shutdown:
			w.drain()
			return
		default:
		}

		select {
		case msg := <-w.ctrl:
			w.handleControl(msg)
		default:
		}

		r, ok := w.queue.Poll(pollTimeout)
		if !ok {
			if err := w.sink.Flush(); err != nil {
				diag.L().Warn("worker: idle flush failed",
					zap.String("sink", w.name), zap.Error(err))
			}
			w.maybeAutoRecover()
			continue
		}
		w.process(r)
	}
}

// process writes one record with retries, metering latency, success,
// and failure, then returns the record to the pool.
func (w *Worker) process(r *record.Record) {
	if lat := time.Since(r.Timestamp); lat > 0 {
		w.rec.ObserveLatencyUS(lat.Microseconds())
	}

	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if lastErr = w.sink.Write(r); lastErr == nil {
			break
		}
		if attempt < writeAttempts {
			time.Sleep(time.Duration(attempt) * writeBackoffStep)
		}
	}

	if lastErr == nil {
		w.rec.IncLogsWritten()
		w.rec.Health().Success(w.name)
	} else {
		w.rec.IncSinkErrors(w.name)
		w.rec.Health().Failure(w.name, lastErr)
		diag.L().Warn("worker: write failed after retries, using fallback",
			zap.String("sink", w.name), zap.Error(lastErr))
		if w.fallback != nil {
			w.fallback(r)
		}
	}

	pool.PutRecord(r)
}

// maybeAutoRecover reconstructs the sink once failures have both
// accumulated past the threshold and gone quiet for a minute,
// indicating the sink is stuck rather than struggling.
func (w *Worker) maybeAutoRecover() {
	h := w.rec.Health().Get(w.name)
	if h.ConsecutiveFailures <= autoRecoverFailures {
		return
	}
	if h.LastFailureAt.IsZero() || time.Since(h.LastFailureAt) < autoRecoverQuiet {
		return
	}
	w.attemptRecovery()
}

func (w *Worker) handleControl(msg ControlMessage) {
	if msg.RecoverSink {
		w.attemptRecovery()
	}
	if msg.Flush {
		if err := w.sink.Flush(); err != nil {
			diag.L().Warn("worker: commanded flush failed",
				zap.String("sink", w.name), zap.Error(err))
		}
	}
}

// attemptRecovery rebuilds the sink from scratch and swaps it in on
// success. The old sink is shut down best-effort; its handle may
// already be broken, which is exactly why recovery was commanded.
func (w *Worker) attemptRecovery() {
	w.rec.Health().AttemptedRecovery(w.name)
	if w.rebuild == nil {
		return
	}

	fresh, err := w.rebuild()
	if err != nil {
		diag.L().Warn("worker: sink reconstruction failed",
			zap.String("sink", w.name), zap.Error(err))
		w.rec.Health().Failure(w.name, err)
		return
	}

	if err := w.sink.Shutdown(); err != nil {
		diag.L().Debug("worker: old sink shutdown during recovery",
			zap.String("sink", w.name), zap.Error(err))
	}
	w.sink = fresh
	w.rec.Health().Recovered(w.name)
	diag.L().Info("worker: sink recovered", zap.String("sink", w.name))
}

// drain keeps dequeuing under a 30-second deadline, then shuts the
// sink down.
func (w *Worker) drain() {
	deadline := time.Now().Add(drainDeadline)
	for time.Now().Before(deadline) {
		r, ok := w.queue.TryDequeue()
		if !ok {
			break
		}
		w.process(r)
	}
	if err := w.sink.Shutdown(); err != nil {
		diag.L().Warn("worker: sink shutdown failed",
			zap.String("sink", w.name), zap.Error(err))
	}
}
