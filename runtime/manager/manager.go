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

// Package manager is inklog's composition root: it validates the
// configuration, constructs every enabled sink, starts one worker per
// asynchronous sink plus the supervisor and the archive scheduler, and
// implements the single producer entry point the host adapter calls.
package manager

import (
	"context"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	archiveapi "github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
	"github.com/kirky-x/inklog/apis/health"
	"github.com/kirky-x/inklog/apis/level"
	"github.com/kirky-x/inklog/apis/pipeline"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/apis/sink"
	"github.com/kirky-x/inklog/internal/diag"
	archiveruntime "github.com/kirky-x/inklog/runtime/archive"
	"github.com/kirky-x/inklog/runtime/ingest"
	"github.com/kirky-x/inklog/runtime/masking"
	"github.com/kirky-x/inklog/runtime/metrics"
	"github.com/kirky-x/inklog/runtime/pool"
	"github.com/kirky-x/inklog/runtime/sink/console"
	"github.com/kirky-x/inklog/runtime/sink/database"
	"github.com/kirky-x/inklog/runtime/sink/file"
)

// Option customizes a Manager at construction.
type Option func(*options)

type options struct {
	logger *zap.Logger
	stdout *os.File
	stderr *os.File
}

// WithLogger routes inklog's internal diagnostics through the host's
// own zap logger instead of the default production config.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStreams substitutes the console sink's output streams, used by
// tests to capture output through a pipe.
func WithStreams(stdout, stderr *os.File) Option {
	return func(o *options) { o.stdout = stdout; o.stderr = stderr }
}

type workerSlot struct {
	queue  *ingest.Queue
	worker *ingest.Worker
}

// Manager owns the whole pipeline. It is the unique owner of each sink
// construction; each asynchronous sink is handed to exactly one worker,
// and only the console sink is shared (behind its own mutex) between
// the producer path and shutdown.
type Manager struct {
	cfg config.Config

	masker  *masking.Masker
	console *console.Sink

	health  *health.Map
	metrics *metrics.Metrics

	slots map[string]*workerSlot

	supervisor *ingest.Supervisor
	scheduler  *archiveruntime.Scheduler

	dbSink *database.Sink

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

var _ pipeline.Pipeline = (*Manager)(nil)

// New validates cfg, constructs every enabled sink, and starts the
// workers, the supervisor, and (when configured) the archive
// scheduler. Construction is fail-fast: any invalid configuration or
// sink that cannot be built aborts the whole manager.
func New(cfg config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		diag.Set(o.logger)
	}
	if o.stdout == nil {
		o.stdout = os.Stdout
	}
	if o.stderr == nil {
		o.stderr = os.Stderr
	}

	m := &Manager{
		cfg:        cfg,
		health:     health.NewMap(),
		slots:      make(map[string]*workerSlot),
		shutdownCh: make(chan struct{}),
	}
	m.metrics = metrics.New(m.health)

	if cfg.Global.MaskingEnabled {
		m.masker = masking.New()
	}

	if cfg.Console.Enabled {
		m.console = console.New(cfg, o.stdout, o.stderr)
		m.health.Register(m.console.Name())
	}

	if cfg.File.Enabled {
		fs, err := file.New(cfg.File)
		if err != nil {
			return nil, err
		}
		rebuild := func() (sink.Sink, error) { return file.New(cfg.File) }
		m.addWorker(fs.Name(), fs, rebuild, m.consoleFallback())
	}

	if cfg.Database.Enabled {
		store, err := m.buildObjectStore()
		if err != nil {
			return nil, err
		}
		// Assign through the interface only when a store exists, so the
		// database sink's nil check sees a truly nil interface.
		var objStore archiveapi.ObjectStore
		if store != nil {
			objStore = store
		}
		ds, err := database.New(cfg.Database, cfg.Archive, objStore)
		if err != nil {
			return nil, err
		}
		m.dbSink = ds
		rebuild := func() (sink.Sink, error) {
			return database.New(cfg.Database, cfg.Archive, objStore)
		}
		m.addWorker(ds.Name(), ds, rebuild, m.databaseFallback(ds))

		if cfg.Archive.Enabled {
			m.scheduler = archiveruntime.NewScheduler(cfg.Archive, store,
				ds.FetchRows, ds.DeleteRows, ds.RecordMetadata)
			if err := m.scheduler.Start(); err != nil {
				return nil, errkind.Wrap(errkind.Runtime, "start archive scheduler", err)
			}
		}
	}

	controls := make(map[string]chan ingest.ControlMessage, len(m.slots))
	for name, slot := range m.slots {
		controls[name] = slot.worker.Control()
		go slot.worker.Run()
	}
	m.metrics.SetActiveWorkers(len(m.slots))

	m.supervisor = ingest.NewSupervisor(m.health, controls)
	m.supervisor.Start()

	return m, nil
}

// buildObjectStore constructs the S3-compatible client when archival
// to object storage is on. Failure to build the client is fatal when
// the operator explicitly enabled the archive; with archival off the
// database sink's inline tick simply uses local archive files.
func (m *Manager) buildObjectStore() (*archiveruntime.ObjectStore, error) {
	if !m.cfg.Archive.Enabled {
		return nil, nil
	}
	store, err := archiveruntime.NewObjectStore(context.Background(), m.cfg.Archive)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (m *Manager) addWorker(name string, s sink.Sink, rebuild ingest.SinkBuilder, fb ingest.Fallback) {
	q := ingest.NewQueue(m.cfg.Performance.ChannelCapacity)
	w := ingest.NewWorker(name, s, rebuild, fb, q, m.metrics, m.shutdownCh)
	m.slots[name] = &workerSlot{queue: q, worker: w}
}

// consoleFallback is the terminal link of every fallback chain.
func (m *Manager) consoleFallback() ingest.Fallback {
	if m.console == nil {
		return nil
	}
	c := m.console
	return func(r *record.Record) {
		if err := c.Write(r); err != nil {
			m.metrics.IncSinkErrors(c.Name())
		}
	}
}

// databaseFallback tries the database sink's fallback file first, then
// the console.
func (m *Manager) databaseFallback(ds *database.Sink) ingest.Fallback {
	consoleFB := m.consoleFallback()
	return func(r *record.Record) {
		if err := ds.WriteFallback(r); err == nil {
			return
		}
		if consoleFB != nil {
			consoleFB(r)
		}
	}
}

// OnRecord is the producer entry point: mask, write the console
// synchronously, then enqueue one copy per asynchronous sink under the
// configured backpressure strategy. It never returns an error to the
// producer; every failure is metered instead.
func (m *Manager) OnRecord(r *record.Record) {
	if r == nil || r.Level < m.cfg.Global.Level {
		return
	}

	if m.masker != nil {
		r.Message = m.masker.Mask(r.Message)
		m.masker.MaskFields(r.Fields)
	}

	if m.console != nil {
		if err := m.console.Write(r); err != nil {
			m.metrics.IncSinkErrors(m.console.Name())
		}
	}

	for _, slot := range m.slots {
		err := slot.queue.EnqueueWith(r.Clone(), m.cfg.Performance.Backpressure,
			m.metrics.IncChannelBlocked)
		if err != nil {
			m.metrics.IncLogsDropped()
		}
	}
}

// Log is a convenience producer: it populates a pooled record, runs it
// through OnRecord, and returns it to the pool.
func (m *Manager) Log(lvl level.Level, target, message string, fields map[string]any) {
	r := pool.GetRecord()
	r.Timestamp = time.Now().UTC()
	r.Level = lvl
	r.Target = target
	r.Message = message
	for k, v := range fields {
		r.Fields[k] = v
	}
	r.ThreadID = goroutineID()
	m.OnRecord(r)
	pool.PutRecord(r)
}

// goroutineID extracts the producing goroutine's numeric id from the
// runtime stack header ("goroutine 12 [running]:"). Diagnostics only.
func goroutineID() string {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	s := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

// Flush flushes the console synchronously and asks every worker to
// flush its sink via the control channel; it does not wait for the
// queues to drain.
func (m *Manager) Flush() error {
	var first error
	if m.console != nil {
		first = m.console.Flush()
	}
	for _, slot := range m.slots {
		select {
		case slot.worker.Control() <- ingest.ControlMessage{Flush: true}:
		default:
		}
	}
	return first
}

// Shutdown runs the one-shot shutdown protocol: stop the supervisor
// and scheduler, signal the workers, close the queues to producers,
// wait for each worker's drain to finish, then close the console.
// Best-effort throughout: individual failures are logged, never
// block completion.
func (m *Manager) Shutdown() error {
	m.shutdownOnce.Do(func() {
		m.supervisor.Stop()
		if m.scheduler != nil {
			m.scheduler.Stop()
		}

		close(m.shutdownCh)
		for _, slot := range m.slots {
			slot.queue.Close()
		}
		for _, slot := range m.slots {
			<-slot.worker.Done()
		}
		m.metrics.SetActiveWorkers(0)

		if m.console != nil {
			if err := m.console.Shutdown(); err != nil {
				diag.L().Warn("manager: console shutdown failed", zap.Error(err))
			}
		}
	})
	return nil
}

// channelUsage reports the fullest queue's occupancy ratio in [0,1].
func (m *Manager) channelUsage() float64 {
	var usage float64
	for _, slot := range m.slots {
		if c := slot.queue.Cap(); c > 0 {
			if u := float64(slot.queue.Len()) / float64(c); u > usage {
				usage = u
			}
		}
	}
	return usage
}

// Metrics exposes the live metrics recorder, e.g. for a host that
// wants to wire its own HTTP exposition endpoint.
func (m *Manager) Metrics() *metrics.Metrics { return m.metrics }

// Health exposes the shared per-sink health map.
func (m *Manager) Health() *health.Map { return m.health }

// PrometheusText renders the current metrics in Prometheus text
// exposition format.
func (m *Manager) PrometheusText() string {
	return m.metrics.PrometheusText(m.channelUsage())
}

// HealthJSON renders the health JSON document.
func (m *Manager) HealthJSON() ([]byte, error) {
	return m.metrics.HealthJSON(m.channelUsage())
}
