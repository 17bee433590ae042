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

// Package file implements the durable, rotating, optionally compressed
// and encrypted append-mode sink.
package file

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/apis/sink"
	"github.com/kirky-x/inklog/internal/diag"
	jsonenc "github.com/kirky-x/inklog/runtime/encoder/json"
)

// Sink is the durable file destination. One instance owns exactly one
// active file handle; it is not shared across workers (only the console
// sink is shared, behind its own mutex).
type Sink struct {
	mu sync.Mutex

	cfg          config.FileSinkConfig
	maxSizeBytes uint64
	maxTotalSize uint64
	enc          *jsonenc.Encoder

	file            *os.File
	size            int64
	nextRotation    time.Time
	lastRotationDay int

	encryptKey []byte // resolved once at construction if cfg.Encrypt

	degraded bool // forced into permanent failure by disk pressure

	stopOnce    sync.Once
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

var _ sink.Sink = (*Sink)(nil)

// New opens (or creates) cfg.Path for append, resolves the encryption
// key up front if encryption is enabled (so a bad key fails fast
// instead of on the first rotation), and starts the retention-cleanup
// timer.
func New(cfg config.FileSinkConfig) (*Sink, error) {
	maxSize, err := parseSize(cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	maxTotal, err := parseSize(cfg.MaxTotalSize)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		cfg:          cfg,
		maxSizeBytes: maxSize,
		maxTotalSize: maxTotal,
		enc:          jsonenc.New(),
		stopCleanup:  make(chan struct{}),
		cleanupDone:  make(chan struct{}),
	}

	if cfg.Encrypt {
		key, err := resolveKey(cfg.EncryptionKeyEnv)
		if err != nil {
			return nil, err
		}
		s.encryptKey = key
	}

	if err := s.openActive(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	s.nextRotation = nextRotationInstant(now, cfg.RotationTime)
	s.lastRotationDay = now.YearDay()

	if cfg.CleanupIntervalMinutes > 0 {
		go s.cleanupLoop(time.Duration(cfg.CleanupIntervalMinutes) * time.Minute)
	} else {
		close(s.cleanupDone)
	}

	return s, nil
}

func (s *Sink) Name() string { return "file" }

// openActive creates the parent directory if needed and opens the
// active path for append, owner-read-write only.
func (s *Sink) openActive() error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o750); err != nil {
		return errkind.Wrap(errkind.IO, "create log directory", err)
	}
	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errkind.Wrap(errkind.IO, "open active log file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errkind.Wrap(errkind.IO, "stat active log file", err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// Write appends one record, rotating first if a trigger fires and
// retrying transient write failures 3 times with a 10ms*n backoff.
func (s *Sink) Write(r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return errkind.New(errkind.IO, "file sink degraded: insufficient disk space")
	}

	if err := s.maybeHandleDiskPressure(); err != nil {
		return err
	}

	if s.shouldRotate(time.Now().UTC()) {
		if err := s.rotateLocked(); err != nil {
			diag.L().Warn("file sink: rotation failed", zap.Error(err))
			return err
		}
	}

	var buf strings.Builder
	if err := s.enc.Encode(r, &buf); err != nil {
		return errkind.Wrap(errkind.Serialization, "encode record", err)
	}
	line := buf.String()

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		n, err := s.file.WriteString(line)
		if err == nil {
			s.size += int64(n)
			return nil
		}
		lastErr = err
		time.Sleep(time.Duration(10*attempt) * time.Millisecond)
	}
	return errkind.Wrap(errkind.IO, "write to active log file after retries", lastErr)
}

// maybeHandleDiskPressure implements disk-pressure auto-recovery: check
// free space before every write, run cleanup if low, and force
// degradation if cleanup doesn't recover enough headroom.
func (s *Sink) maybeHandleDiskPressure() error {
	df, err := statDiskFree(filepath.Dir(s.cfg.Path))
	if err != nil {
		// Can't determine free space; proceed optimistically rather
		// than blocking every write on a platform quirk.
		return nil
	}
	if !df.underPressure() {
		return nil
	}
	s.cleanupOldest(s.cfg.KeepFiles, 20)

	df, err = statDiskFree(filepath.Dir(s.cfg.Path))
	if err == nil && df.criticallyLow() {
		s.degraded = true
		return errkind.New(errkind.IO, "disk pressure: forcing file sink degradation")
	}
	return nil
}

func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

func (s *Sink) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.degraded
}

func (s *Sink) Shutdown() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	<-s.cleanupDone

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// rotatedSiblings lists rotated files for this sink's stem, newest
// last, including compressed/encrypted suffixes.
func (s *Sink) rotatedSiblings() []string {
	dir := filepath.Dir(s.cfg.Path)
	stem := strings.TrimSuffix(filepath.Base(s.cfg.Path), filepath.Ext(s.cfg.Path))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), stem+"_") {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names) // names embed YYYYMMDD_HHMMSS, so lexical == chronological
	return names
}

// cleanupOldest deletes roughly pct percent of the oldest rotated
// siblings beyond keep, used by the disk-pressure path.
func (s *Sink) cleanupOldest(keep uint32, pct int) {
	names := s.rotatedSiblings()
	if uint32(len(names)) <= keep {
		return
	}
	n := len(names) * pct / 100
	if n < 1 {
		n = 1
	}
	for i := 0; i < n && i < len(names); i++ {
		os.Remove(names[i])
	}
}
