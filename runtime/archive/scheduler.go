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

package archive

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/internal/diag"
)

// defaultCronExpr is the fixed daily-at-02:00-UTC schedule the
// scheduler falls back to when ScheduleExpression is unset.
// robfig/cron's standard parser is seconds-first, matching this
// six-field form.
const defaultCronExpr = "0 0 2 * * *"

// RowFetcher selects rows older than cutoff for archival. The
// database sink supplies this over its own connection pool.
type RowFetcher func(ctx context.Context, cutoff time.Time) ([]archive.Row, error)

// RowDeleter removes the given row IDs after a successful upload.
type RowDeleter func(ctx context.Context, ids []int64) error

// MetadataRecorder persists one archive_metadata row.
type MetadataRecorder func(ctx context.Context, m archive.Metadata) error

// Scheduler is cron-ticked and single-flight per calendar day (unless
// a cron expression was explicitly configured), retrying upload
// failures before falling back to local retention.
type Scheduler struct {
	cfg        config.ArchiveConfig
	state      *ScheduleState
	serializer *Serializer
	store      archive.ObjectStore

	fetch    RowFetcher
	deleteFn RowDeleter
	record   MetadataRecorder

	cron *cron.Cron

	// dayGuardBypassed: when the operator supplies ScheduleExpression
	// explicitly, the single-per-day guard is bypassed (the operator
	// opted into whatever cadence their cron expression implies);
	// otherwise it is always enforced.
	dayGuardBypassed bool

	stop chan struct{}
	done chan struct{}
}

// NewScheduler wires a Scheduler from cfg and its collaborators. It
// does not start any goroutine until Start is called.
func NewScheduler(cfg config.ArchiveConfig, store archive.ObjectStore, fetch RowFetcher, del RowDeleter, record MetadataRecorder) *Scheduler {
	return &Scheduler{
		cfg:              cfg,
		state:            NewScheduleState(),
		serializer:       NewSerializer(cfg.ArchiveFormat, cfg.Parquet, cfg.Compression),
		store:            store,
		fetch:            fetch,
		deleteFn:         del,
		record:           record,
		dayGuardBypassed: cfg.ScheduleExpression != "",
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start installs the cron entry (the configured expression, or the
// fixed daily default) and the hourly cleanup job, then runs until
// Stop is called.
func (s *Scheduler) Start() error {
	expr := s.cfg.ScheduleExpression
	if expr == "" {
		expr = defaultCronExpr
	}

	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 * * * *", s.cleanupTick); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops cron from dispatching further jobs and waits for cron's
// own context to finish any in-flight job; in-flight network
// operations are allowed to complete rather than being force-aborted.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// tick runs one cron firing's execution protocol.
func (s *Scheduler) tick() {
	now := time.Now().UTC()

	if !s.dayGuardBypassed {
		if !s.state.TryStart(now) {
			return
		}
	} else {
		s.state.TryStart(now) // always record the attempt; day guard bypassed
	}

	ctx := context.Background()
	cutoff := now.AddDate(0, 0, -int(s.cfg.ArchiveIntervalDays))

	rows, err := s.fetch(ctx, cutoff)
	if err != nil {
		diag.L().Warn("archive scheduler: fetch rows failed", zap.Error(err))
		s.state.MarkFailed(archive.StatusFailed)
		return
	}
	if len(rows) == 0 {
		s.state.MarkSuccess(now)
		return
	}

	blob, err := s.serializer.Serialize(rows)
	if err != nil {
		diag.L().Error("archive scheduler: serialize failed", zap.Error(err))
		s.state.MarkFailed(archive.StatusFailed)
		return
	}

	key := BuildKey(s.cfg.Prefix, blob.StartTimestamp, blob.EndTimestamp, blob.RecordCount, s.cfg.Compression)
	result, err := s.uploadWithRetry(key, blob)
	if err != nil {
		diag.L().Warn("archive scheduler: upload failed after retries, falling back to local retention", zap.Error(err))
		s.fallbackLocal(now, key, blob)
		s.state.MarkFailed(archive.StatusFailedLocal)
		return
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if err := s.deleteFn(ctx, ids); err != nil {
		diag.L().Warn("archive scheduler: delete archived rows failed", zap.Error(err))
	}

	if s.record != nil {
		_ = s.record(ctx, metadataFromBlob(blob, key, result.StorageClass, archive.StatusSuccess))
	}
	s.state.MarkSuccess(now)
}

// uploadWithRetry attempts up to 3 uploads, backing off 1s and then 2s
// between attempts.
func (s *Scheduler) uploadWithRetry(key string, blob archive.Blob) (archive.UploadResult, error) {
	headers := MetadataHeaders(blob, s.cfg.StorageClass.String(), archive.StatusInProgress)

	var lastErr error
	delay := time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		result, err := s.store.Put(key, blob, headers)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < 3 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return archive.UploadResult{}, lastErr
}

// fallbackLocal writes the serialized blob under
// local_retention_path/YYYY/MM/DD/, the terminal-failure path when
// every upload attempt fails.
func (s *Scheduler) fallbackLocal(now time.Time, key string, blob archive.Blob) {
	dir := filepath.Join(s.cfg.LocalRetentionPath, now.Format("2006/01/02"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		diag.L().Error("archive scheduler: create local retention dir failed", zap.Error(err))
		return
	}
	path := filepath.Join(dir, filepath.Base(key))
	if err := os.WriteFile(path, blob.Data, 0o600); err != nil {
		diag.L().Error("archive scheduler: write local retention fallback failed", zap.Error(err))
	}
}

// cleanupTick is the hourly companion job: delete files under the
// local retention directory older than local_retention_days,
// re-verifying existence immediately before each deletion to mitigate
// a TOCTOU race with a concurrent writer.
func (s *Scheduler) cleanupTick() {
	if s.cfg.LocalRetentionDays == 0 || s.cfg.LocalRetentionPath == "" {
		return
	}
	cutoff := time.Now().Add(-time.Duration(s.cfg.LocalRetentionDays) * 24 * time.Hour)

	_ = filepath.Walk(s.cfg.LocalRetentionPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if _, statErr := os.Stat(path); statErr != nil {
			return nil // already gone; avoid acting on stale directory listing
		}
		if rmErr := os.Remove(path); rmErr != nil {
			diag.L().Warn("archive scheduler: cleanup delete failed", zap.String("path", path), zap.Error(rmErr))
		}
		return nil
	})
}

func metadataFromBlob(blob archive.Blob, key, storageClass string, status archive.Status) archive.Metadata {
	ratio := 0.0
	if blob.OriginalBytes > 0 {
		ratio = float64(blob.CompressedBytes) / float64(blob.OriginalBytes)
	}
	return archive.Metadata{
		ArchiveDate:      time.Now().UTC(),
		DestinationKey:   key,
		RecordCount:      blob.RecordCount,
		OriginalBytes:    blob.OriginalBytes,
		CompressedBytes:  blob.CompressedBytes,
		CompressionRatio: ratio,
		CompressionType:  blob.CompressionName,
		StorageClass:     storageClass,
		StartTimestamp:   blob.StartTimestamp,
		EndTimestamp:     blob.EndTimestamp,
		ChecksumSHA256:   blob.ChecksumSHA256,
		FormatVersion:    1,
		RowGroupCount:    blob.RowGroupCount,
		Status:           status,
	}
}
