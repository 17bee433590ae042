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

// Package database implements the buffered, batched relational sink
// with daily partition maintenance, a circuit breaker, a local-file
// fallback, and an inline archival tick that moves aged rows to object
// storage at 02:00.
package database

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/apis/sink"
	"github.com/kirky-x/inklog/internal/diag"
	"github.com/kirky-x/inklog/runtime/breaker"
	"github.com/kirky-x/inklog/runtime/sink/file"
)

const (
	breakerFailureThreshold = 5
	breakerResetTimeout     = 30 * time.Second

	// fallbackPath receives drained buffers while the breaker is open
	// and after a flush exhausts its retries at the worker.
	fallbackPath = "logs/db_fallback.log"

	// archiveHourUTC is the wall-clock hour the inline archival tick
	// fires in; archiveBatchLimit caps one tick's row count.
	archiveHourUTC    = 2
	archiveBatchLimit = 1000
)

// Sink is the batched relational destination. A single worker owns it;
// the mutex exists because Flush/Shutdown may also arrive from the
// manager during drain.
type Sink struct {
	mu sync.Mutex

	cfg        config.DatabaseSinkConfig
	archiveCfg config.ArchiveConfig
	db         *sql.DB
	brk        *breaker.Breaker

	buffer    []*record.Record
	lastFlush time.Time

	// store is nil when no object-storage backend is configured; the
	// archival tick then writes blobs under logs/archive/ instead.
	store archive.ObjectStore

	fallback *file.Sink // lazily opened on first use

	lastPartitionDay int // YearDay of the last partition-maintenance check
	lastArchiveDay   int // YearDay of the last inline archival run

	archiveRunning bool
	closed         bool
}

var _ sink.Sink = (*Sink)(nil)

// driverName maps the configured driver to its database/sql
// registration name.
func driverName(d config.Driver) string {
	switch d {
	case config.DriverMySQL:
		return "mysql"
	case config.DriverSQLite:
		return "sqlite"
	default:
		return "pgx"
	}
}

// New opens the connection pool, creates the schema if absent, and
// performs the first partition-maintenance pass. The MySQL URL must
// carry parseTime=true so timestamp columns scan as time.Time.
func New(cfg config.DatabaseSinkConfig, archiveCfg config.ArchiveConfig, store archive.ObjectStore) (*Sink, error) {
	db, err := sql.Open(driverName(cfg.Driver), cfg.URL)
	if err != nil {
		return nil, errkind.Wrap(errkind.Database, "open connection pool", err)
	}
	db.SetMaxOpenConns(cfg.PoolSize)

	if err := createSchema(db, cfg.Driver, cfg.TableName); err != nil {
		db.Close()
		return nil, err
	}

	now := time.Now().UTC()
	return &Sink{
		cfg:              cfg,
		archiveCfg:       archiveCfg,
		db:               db,
		brk:              breaker.New(breakerFailureThreshold, breakerResetTimeout),
		buffer:           make([]*record.Record, 0, cfg.BatchSize),
		lastFlush:        now,
		store:            store,
		lastPartitionDay: now.YearDay(),
	}, nil
}

func (s *Sink) Name() string { return "database" }

// effectiveBatchSize halves the configured batch while the breaker is
// probing (HalfOpen), so a recovering database sees smaller commits.
func (s *Sink) effectiveBatchSize() int {
	if s.brk.State() == breaker.HalfOpen {
		if half := s.cfg.BatchSize / 2; half > 0 {
			return half
		}
		return 1
	}
	return s.cfg.BatchSize
}

// Write buffers a copy of r and flushes when the effective batch size
// or the flush interval is reached. It also drives the two pieces of
// daily housekeeping that piggyback on the write path: partition
// maintenance and the 02:00 archival tick.
func (s *Sink) Write(r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errkind.New(errkind.Database, "write after shutdown")
	}

	s.buffer = append(s.buffer, r.Clone())

	now := time.Now().UTC()
	s.maybeMaintainPartitionLocked(now)
	s.maybeArchiveLocked(now)

	interval := time.Duration(s.cfg.FlushIntervalMS) * time.Millisecond
	if len(s.buffer) >= s.effectiveBatchSize() || now.Sub(s.lastFlush) >= interval {
		return s.flushLocked(now)
	}
	return nil
}

// maybeMaintainPartitionLocked issues the idempotent monthly-partition
// DDL at most once per calendar day. Failures are logged, not
// surfaced: the insert path decides sink health, not housekeeping.
func (s *Sink) maybeMaintainPartitionLocked(now time.Time) {
	if s.cfg.Driver == config.DriverSQLite || now.YearDay() == s.lastPartitionDay {
		return
	}
	s.lastPartitionDay = now.YearDay()
	if err := ensurePartition(s.db, s.cfg.Driver, s.cfg.TableName, now); err != nil {
		diag.L().Warn("database sink: partition maintenance failed", zap.Error(err))
	}
}

// flushLocked performs one multi-row insert in a single transaction.
// While the breaker refuses execution the buffer is drained to the
// fallback file instead; that is a successful (at-least-once) outcome,
// not an error.
func (s *Sink) flushLocked(now time.Time) error {
	if len(s.buffer) == 0 {
		s.lastFlush = now
		return nil
	}

	if !s.brk.CanExecute() {
		err := s.drainToFallbackLocked()
		s.lastFlush = now
		return err
	}

	batch := s.buffer
	s.buffer = s.buffer[:0]
	s.lastFlush = now

	if err := s.insertBatch(batch); err != nil {
		s.brk.RecordFailure()
		// Re-buffer the batch so the worker's retry (or an eventual
		// breaker-open drain to the fallback file) still delivers it.
		s.buffer = append(s.buffer, batch...)
		return errkind.Wrap(errkind.Database, "flush batch", err)
	}
	s.brk.RecordSuccess()
	return nil
}

func (s *Sink) insertBatch(batch []*record.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	args := make([]any, 0, len(batch)*8)
	for _, r := range batch {
		fields, ferr := fieldsJSON(r.Fields)
		if ferr != nil {
			tx.Rollback()
			return ferr
		}
		args = append(args,
			s.timestampArg(r.Timestamp),
			r.Level.String(),
			r.Target,
			r.Message,
			fields,
			nullString(r.File),
			nullLine(r.Line),
			r.ThreadID,
		)
	}

	if _, err := tx.Exec(insertSQL(s.cfg.Driver, s.cfg.TableName, len(batch)), args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// timestampArg adapts the record timestamp to what the driver stores:
// SQLite has no datetime type, so it gets RFC 3339 text.
func (s *Sink) timestampArg(t time.Time) any {
	if s.cfg.Driver == config.DriverSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

func fieldsJSON(fields map[string]any) (any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, errkind.Wrap(errkind.Serialization, "marshal record fields", err)
	}
	return string(b), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullLine(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

// drainToFallbackLocked moves every buffered record to the fallback
// file sink, opening it on first use.
func (s *Sink) drainToFallbackLocked() error {
	if err := s.ensureFallbackLocked(); err != nil {
		return err
	}
	var firstErr error
	for _, r := range s.buffer {
		if err := s.fallback.Write(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.buffer = s.buffer[:0]
	if firstErr != nil {
		return errkind.Wrap(errkind.IO, "drain buffer to fallback file", firstErr)
	}
	return nil
}

func (s *Sink) ensureFallbackLocked() error {
	if s.fallback != nil {
		return nil
	}
	fb, err := file.New(config.FileSinkConfig{
		Enabled:      true,
		Path:         fallbackPath,
		MaxSize:      "100MB",
		RotationTime: config.RotationDaily,
		KeepFiles:    7,
		MaxTotalSize: "1GB",
	})
	if err != nil {
		return err
	}
	s.fallback = fb
	return nil
}

// Flush commits whatever the buffer currently holds.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.flushLocked(time.Now().UTC())
}

// IsHealthy reports false only while the breaker is open.
func (s *Sink) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brk.State() != breaker.Open
}

// Shutdown performs the final flush and closes the pool. A batch that
// still cannot reach the database is drained to the fallback file so
// shutdown never silently discards buffered records.
func (s *Sink) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.flushLocked(time.Now().UTC())
	if flushErr != nil && len(s.buffer) > 0 {
		if err := s.drainToFallbackLocked(); err == nil {
			flushErr = nil
		}
	}

	if s.fallback != nil {
		if err := s.fallback.Shutdown(); err != nil {
			diag.L().Warn("database sink: fallback shutdown failed", zap.Error(err))
		}
	}

	closeErr := s.db.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return errkind.Wrap(errkind.Database, "close connection pool", closeErr)
	}
	return nil
}

// WriteFallback delivers one record straight to the fallback file,
// bypassing the database. The worker's fallback chain calls this after
// its own retries are exhausted; console is the chain's last resort if
// even the fallback file refuses.
func (s *Sink) WriteFallback(r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureFallbackLocked(); err != nil {
		return err
	}
	return s.fallback.Write(r)
}

// BreakerState exposes the breaker for the worker's health reporting.
func (s *Sink) BreakerState() breaker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brk.State()
}
