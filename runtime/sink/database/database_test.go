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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/level"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/runtime/breaker"
)

func newSQLiteSink(t *testing.T, batch int) *Sink {
	t.Helper()
	cfg := config.DefaultDatabaseSinkConfig()
	cfg.Enabled = true
	cfg.Driver = config.DriverSQLite
	cfg.URL = filepath.Join(t.TempDir(), "logs.db")
	cfg.BatchSize = batch
	cfg.FlushIntervalMS = 60_000 // effectively never for these tests

	s, err := New(cfg, config.DefaultArchiveConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func dbRecord(msg string, ts time.Time) *record.Record {
	return &record.Record{
		Timestamp: ts,
		Level:     level.Info,
		Target:    "app.db",
		Message:   msg,
		Fields:    map[string]any{"request_id": "r-1"},
		ThreadID:  "t1",
	}
}

func countRows(t *testing.T, s *Sink, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestNew_CreatesSchema(t *testing.T) {
	s := newSQLiteSink(t, 10)

	for _, name := range []string{"logs", "archive_metadata", "idx_logs_timestamp", "idx_logs_level", "idx_logs_target"} {
		var got string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE name = ?", name).Scan(&got)
		require.NoErrorf(t, err, "schema object %s missing", name)
	}
}

func TestWrite_BuffersUntilBatchSize(t *testing.T) {
	s := newSQLiteSink(t, 3)
	now := time.Now().UTC()

	require.NoError(t, s.Write(dbRecord("one", now)))
	require.NoError(t, s.Write(dbRecord("two", now)))
	require.Equal(t, 0, countRows(t, s, "logs"), "batch committed early")

	require.NoError(t, s.Write(dbRecord("three", now)))
	require.Equal(t, 3, countRows(t, s, "logs"))
}

func TestFlush_CommitsPartialBatch(t *testing.T) {
	s := newSQLiteSink(t, 100)
	now := time.Now().UTC()

	require.NoError(t, s.Write(dbRecord("partial", now)))
	require.Equal(t, 0, countRows(t, s, "logs"))

	require.NoError(t, s.Flush())
	require.Equal(t, 1, countRows(t, s, "logs"))
}

func TestWrite_FlushIntervalTriggers(t *testing.T) {
	s := newSQLiteSink(t, 100)
	s.cfg.FlushIntervalMS = 1
	now := time.Now().UTC()

	require.NoError(t, s.Write(dbRecord("first", now)))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Write(dbRecord("second", now)))
	require.Equal(t, 2, countRows(t, s, "logs"))
}

func TestShutdown_FlushesRemainder(t *testing.T) {
	cfg := config.DefaultDatabaseSinkConfig()
	cfg.Driver = config.DriverSQLite
	cfg.URL = filepath.Join(t.TempDir(), "logs.db")
	cfg.BatchSize = 100

	s, err := New(cfg, config.DefaultArchiveConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Write(dbRecord("pending", time.Now().UTC())))
	require.NoError(t, s.Shutdown())

	// Reopen to verify durability.
	s2, err := New(cfg, config.DefaultArchiveConfig(), nil)
	require.NoError(t, err)
	defer s2.Shutdown()
	require.Equal(t, 1, countRows(t, s2, "logs"))
}

func TestFetchDeleteRows_RoundTrip(t *testing.T) {
	s := newSQLiteSink(t, 2)
	old := time.Now().UTC().AddDate(0, 0, -3)

	require.NoError(t, s.Write(dbRecord("aged one", old)))
	require.NoError(t, s.Write(dbRecord("aged two", old.Add(time.Minute))))
	require.Equal(t, 2, countRows(t, s, "logs"))

	rows, err := s.FetchRows(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "aged one", rows[0].Message)
	require.Equal(t, "info", rows[0].Level)
	require.Contains(t, rows[0].Fields, "request_id")
	require.WithinDuration(t, old, rows[0].Timestamp, time.Second)

	ids := []int64{rows[0].ID, rows[1].ID}
	require.NoError(t, s.DeleteRows(context.Background(), ids))
	require.Equal(t, 0, countRows(t, s, "logs"))
}

func TestRecordMetadata_InsertsRow(t *testing.T) {
	s := newSQLiteSink(t, 10)

	m := archive.Metadata{
		ArchiveDate:      time.Now().UTC(),
		DestinationKey:   "logs/2026/03/logs_a_b_5.parquet.zst",
		RecordCount:      5,
		OriginalBytes:    1000,
		CompressedBytes:  200,
		CompressionRatio: 0.2,
		CompressionType:  "zstd",
		StorageClass:     "Standard",
		StartTimestamp:   time.Now().UTC().Add(-time.Hour),
		EndTimestamp:     time.Now().UTC(),
		ChecksumSHA256:   strings.Repeat("ab", 32),
		FormatVersion:    1,
		RowGroupCount:    1,
		Status:           archive.StatusSuccess,
	}
	require.NoError(t, s.RecordMetadata(context.Background(), m))

	var count int
	var status string
	require.NoError(t, s.db.QueryRow(
		"SELECT record_count, status FROM archive_metadata").Scan(&count, &status))
	require.Equal(t, 5, count)
	require.Equal(t, string(archive.StatusSuccess), status)
}

func TestEffectiveBatchSize_HalvedWhileHalfOpen(t *testing.T) {
	s := newSQLiteSink(t, 100)
	require.Equal(t, 100, s.effectiveBatchSize())

	s.brk = breaker.New(1, time.Millisecond)
	s.brk.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require.True(t, s.brk.CanExecute()) // Open -> HalfOpen
	require.Equal(t, 50, s.effectiveBatchSize())

	s.brk.RecordSuccess()
	require.Equal(t, 100, s.effectiveBatchSize())
}

func TestBreakerOpen_DrainsBufferToFallbackFile(t *testing.T) {
	t.Chdir(t.TempDir())

	s := newSQLiteSink(t, 1)
	s.brk = breaker.New(1, time.Hour)
	s.brk.RecordFailure() // Open, no reset within the test

	require.NoError(t, s.Write(dbRecord("diverted", time.Now().UTC())))
	require.Equal(t, 0, countRows(t, s, "logs"), "row reached the database while breaker open")

	data, err := os.ReadFile(fallbackPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "diverted")
}

func TestInsertSQL_PlaceholderStyles(t *testing.T) {
	pg := insertSQL(config.DriverPostgreSQL, "logs", 2)
	require.Contains(t, pg, "$1")
	require.Contains(t, pg, "$16")
	require.NotContains(t, pg, "?")

	lite := insertSQL(config.DriverSQLite, "logs", 2)
	require.Equal(t, 16, strings.Count(lite, "?"))
	require.NotContains(t, lite, "$")
}
