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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirky-x/inklog/apis/health"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/apis/sink"
	"github.com/kirky-x/inklog/runtime/metrics"
)

// fakeSink records writes and fails on demand.
type fakeSink struct {
	mu        sync.Mutex
	name      string
	written   []string
	failWith  error
	flushed   int
	shutdowns int
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Write(r *record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.written = append(f.written, r.Message)
	return nil
}

func (f *fakeSink) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
	return nil
}

func (f *fakeSink) IsHealthy() bool { return true }

func (f *fakeSink) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeSink) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeSink) writtenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestWorker(t *testing.T, s *fakeSink, rebuild SinkBuilder, fb Fallback) (*Worker, *Queue, *metrics.Metrics, chan struct{}) {
	t.Helper()
	q := NewQueue(64)
	m := metrics.New(health.NewMap())
	shutdown := make(chan struct{})
	w := NewWorker(s.name, s, rebuild, fb, q, m, shutdown)
	return w, q, m, shutdown
}

func TestWorker_WritesAndMeters(t *testing.T) {
	s := &fakeSink{name: "fake"}
	w, q, m, shutdown := newTestWorker(t, s, nil, nil)
	go w.Run()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(qrec("msg")); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	waitFor(t, func() bool { return s.writtenCount() == 5 }, "5 writes")

	snap := m.Snapshot(0)
	if snap.LogsWritten != 5 {
		t.Fatalf("logs_written = %d, want 5", snap.LogsWritten)
	}
	h := m.Health().Get("fake")
	if !h.Healthy || h.ConsecutiveFailures != 0 {
		t.Fatalf("health = %+v, want healthy", h)
	}

	close(shutdown)
	<-w.Done()
	if s.shutdowns != 1 {
		t.Fatalf("sink shutdowns = %d, want 1", s.shutdowns)
	}
}

func TestWorker_FailureMetersAndFallsBack(t *testing.T) {
	s := &fakeSink{name: "fake", failWith: errors.New("disk gone")}

	var fbMu sync.Mutex
	var fellBack []string
	fb := func(r *record.Record) {
		fbMu.Lock()
		fellBack = append(fellBack, r.Message)
		fbMu.Unlock()
	}

	w, q, m, shutdown := newTestWorker(t, s, nil, fb)
	go w.Run()

	if err := q.Enqueue(qrec("doomed")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, func() bool {
		fbMu.Lock()
		defer fbMu.Unlock()
		return len(fellBack) == 1
	}, "fallback delivery")

	snap := m.Snapshot(0)
	if snap.SinkErrors != 1 {
		t.Fatalf("sink_errors = %d, want 1", snap.SinkErrors)
	}
	h := m.Health().Get("fake")
	if h.Healthy || h.ConsecutiveFailures != 1 || h.LastError == "" {
		t.Fatalf("health = %+v, want 1 consecutive failure", h)
	}

	close(shutdown)
	<-w.Done()
}

func TestWorker_HealthyIffZeroConsecutiveFailures(t *testing.T) {
	s := &fakeSink{name: "fake", failWith: errors.New("transient")}
	w, q, m, shutdown := newTestWorker(t, s, nil, nil)
	go w.Run()

	q.Enqueue(qrec("fails"))
	waitFor(t, func() bool { return !m.Health().Get("fake").Healthy }, "unhealthy after failure")

	s.setFail(nil)
	q.Enqueue(qrec("succeeds"))
	waitFor(t, func() bool {
		h := m.Health().Get("fake")
		return h.Healthy && h.ConsecutiveFailures == 0
	}, "healthy after success")

	close(shutdown)
	<-w.Done()
}

func TestWorker_RecoverSinkControlSwapsSink(t *testing.T) {
	broken := &fakeSink{name: "fake", failWith: errors.New("stuck")}
	fresh := &fakeSink{name: "fake"}

	rebuild := func() (sink.Sink, error) { return fresh, nil }

	w, q, m, shutdown := newTestWorker(t, broken, rebuild, nil)
	go w.Run()

	q.Enqueue(qrec("fails"))
	waitFor(t, func() bool { return !m.Health().Get("fake").Healthy }, "failure recorded")

	w.Control() <- ControlMessage{RecoverSink: true}
	waitFor(t, func() bool { return m.Health().Get("fake").Healthy }, "recovery")

	q.Enqueue(qrec("lands in fresh sink"))
	waitFor(t, func() bool { return fresh.writtenCount() == 1 }, "write to rebuilt sink")

	close(shutdown)
	<-w.Done()
}

func TestWorker_DrainDeliversQueuedRecordsOnShutdown(t *testing.T) {
	s := &fakeSink{name: "fake"}
	w, q, _, shutdown := newTestWorker(t, s, nil, nil)

	for i := 0; i < 10; i++ {
		q.Enqueue(qrec("queued"))
	}

	go w.Run()
	close(shutdown)
	<-w.Done()

	// Everything enqueued before shutdown must have been drained.
	if got := s.writtenCount(); got != 10 {
		t.Fatalf("drained writes = %d, want 10", got)
	}
	if s.shutdowns != 1 {
		t.Fatalf("sink shutdowns = %d, want 1", s.shutdowns)
	}
}

func TestWorker_IdleTimeoutFlushes(t *testing.T) {
	s := &fakeSink{name: "fake"}
	w, _, _, shutdown := newTestWorker(t, s, nil, nil)
	go w.Run()

	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.flushed > 0
	}, "idle flush")

	close(shutdown)
	<-w.Done()
}
