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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
	"github.com/kirky-x/inklog/internal/diag"
	archiveruntime "github.com/kirky-x/inklog/runtime/archive"
)

// localArchiveDir receives serialized blobs when no object-storage
// backend is configured.
const localArchiveDir = "logs/archive"

// maybeArchiveLocked starts the inline archival tick when the wall
// clock hour is 02 and archival has not yet run today. The run itself
// happens on its own goroutine so a worker's Write never stalls behind
// network I/O; archiveRunning keeps runs single-flight.
func (s *Sink) maybeArchiveLocked(now time.Time) {
	if !s.cfg.ArchiveToObjectStore {
		return
	}
	if now.Hour() != archiveHourUTC || now.YearDay() == s.lastArchiveDay || s.archiveRunning {
		return
	}
	s.lastArchiveDay = now.YearDay()
	s.archiveRunning = true

	go func() {
		defer func() {
			s.mu.Lock()
			s.archiveRunning = false
			s.mu.Unlock()
		}()
		if err := s.runArchive(context.Background(), now); err != nil {
			diag.L().Warn("database sink: inline archival failed", zap.Error(err))
		}
	}()
}

// runArchive selects up to archiveBatchLimit rows older than
// archive_after_days, serializes them in the configured archive
// format, uploads (or writes locally when no backend exists), records
// metadata, and deletes the archived rows.
func (s *Sink) runArchive(ctx context.Context, now time.Time) error {
	cutoff := now.AddDate(0, 0, -int(s.cfg.ArchiveAfterDays))

	rows, err := s.fetchRows(ctx, cutoff, archiveBatchLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	ser := archiveruntime.NewSerializer(s.cfg.ArchiveFormat, s.cfg.Parquet, s.archiveCfg.Compression)
	blob, err := ser.Serialize(rows)
	if err != nil {
		return err
	}

	key := archiveruntime.BuildKey(s.archiveCfg.Prefix, blob.StartTimestamp, blob.EndTimestamp, blob.RecordCount, s.archiveCfg.Compression)

	var meta archive.Metadata
	if s.store != nil {
		headers := archiveruntime.MetadataHeaders(blob, s.archiveCfg.StorageClass.String(), archive.StatusInProgress)
		result, uerr := s.store.Put(key, blob, headers)
		if uerr != nil {
			return uerr
		}
		meta = buildMetadata(blob, result.Key, result.StorageClass, archive.StatusSuccess)
	} else {
		localKey, werr := writeLocalArchive(key, blob.Data)
		if werr != nil {
			return werr
		}
		meta = buildMetadata(blob, localKey, "", archive.StatusLocalSuccess)
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if err := s.DeleteRows(ctx, ids); err != nil {
		return err
	}
	return s.RecordMetadata(ctx, meta)
}

func writeLocalArchive(key string, data []byte) (string, error) {
	path := filepath.Join(localArchiveDir, filepath.Base(key))
	if err := os.MkdirAll(localArchiveDir, 0o750); err != nil {
		return "", errkind.Wrap(errkind.IO, "create local archive directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", errkind.Wrap(errkind.IO, "write local archive blob", err)
	}
	return path, nil
}

func buildMetadata(blob archive.Blob, key, storageClass string, status archive.Status) archive.Metadata {
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

// FetchRows is the archive scheduler's RowFetcher: every row older
// than cutoff, oldest first.
func (s *Sink) FetchRows(ctx context.Context, cutoff time.Time) ([]archive.Row, error) {
	return s.fetchRows(ctx, cutoff, 0)
}

func (s *Sink) fetchRows(ctx context.Context, cutoff time.Time, limit int) ([]archive.Row, error) {
	q := fmt.Sprintf(
		"SELECT id, timestamp, level, target, message, fields, file, line, thread_id FROM %s WHERE timestamp < %s ORDER BY timestamp",
		s.cfg.TableName, s.placeholder(1))
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, q, s.timestampArg(cutoff))
	if err != nil {
		return nil, errkind.Wrap(errkind.Database, "select rows for archival", err)
	}
	defer rows.Close()

	var out []archive.Row
	for rows.Next() {
		r, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Database, "iterate rows for archival", err)
	}
	return out, nil
}

func (s *Sink) scanRow(rows *sql.Rows) (archive.Row, error) {
	var (
		r      archive.Row
		ts     any
		fields sql.NullString
		file   sql.NullString
		line   sql.NullInt64
	)
	var tsTime time.Time
	var tsText string
	if s.cfg.Driver == config.DriverSQLite {
		ts = &tsText
	} else {
		ts = &tsTime
	}

	if err := rows.Scan(&r.ID, ts, &r.Level, &r.Target, &r.Message, &fields, &file, &line, &r.ThreadID); err != nil {
		return archive.Row{}, errkind.Wrap(errkind.Database, "scan archival row", err)
	}

	if s.cfg.Driver == config.DriverSQLite {
		parsed, err := time.Parse(time.RFC3339Nano, tsText)
		if err != nil {
			return archive.Row{}, errkind.Wrap(errkind.Database, "parse sqlite timestamp", err)
		}
		r.Timestamp = parsed
	} else {
		r.Timestamp = tsTime.UTC()
	}
	r.Fields = fields.String
	r.File = file.String
	r.Line = line.Int64
	return r, nil
}

// DeleteRows is the archive scheduler's RowDeleter.
func (s *Sink) DeleteRows(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = s.placeholder(i + 1)
		args[i] = id
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", s.cfg.TableName, strings.Join(ph, ", "))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return errkind.Wrap(errkind.Database, "delete archived rows", err)
	}
	return nil
}

// RecordMetadata is the archive scheduler's MetadataRecorder.
func (s *Sink) RecordMetadata(ctx context.Context, m archive.Metadata) error {
	cols := []string{
		"archive_date", "destination_key", "record_count", "original_bytes",
		"compressed_bytes", "compression_ratio", "compression_type",
		"storage_class", "start_timestamp", "end_timestamp",
		"checksum_sha256", "format_version", "row_group_count", "status",
	}
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = s.placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO archive_metadata (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(ph, ", "))

	_, err := s.db.ExecContext(ctx, q,
		s.timestampArg(m.ArchiveDate),
		m.DestinationKey,
		m.RecordCount,
		m.OriginalBytes,
		m.CompressedBytes,
		m.CompressionRatio,
		m.CompressionType,
		m.StorageClass,
		s.timestampArg(m.StartTimestamp),
		s.timestampArg(m.EndTimestamp),
		m.ChecksumSHA256,
		m.FormatVersion,
		m.RowGroupCount,
		string(m.Status),
	)
	if err != nil {
		return errkind.Wrap(errkind.Database, "record archive metadata", err)
	}
	return nil
}

// placeholder renders the driver's parameter marker for 1-based index n.
func (s *Sink) placeholder(n int) string {
	if s.cfg.Driver == config.DriverPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
