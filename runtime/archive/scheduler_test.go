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
	"sync"
	"testing"
	"time"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
)

type tickHarness struct {
	mu       sync.Mutex
	rows     []archive.Row
	deleted  []int64
	metadata []archive.Metadata
}

func (h *tickHarness) fetch(_ context.Context, cutoff time.Time) ([]archive.Row, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []archive.Row
	for _, r := range h.rows {
		if r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *tickHarness) delete(_ context.Context, ids []int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, ids...)
	remaining := h.rows[:0]
outer:
	for _, r := range h.rows {
		for _, id := range ids {
			if r.ID == id {
				continue outer
			}
		}
		remaining = append(remaining, r)
	}
	h.rows = remaining
	return nil
}

func (h *tickHarness) record(_ context.Context, m archive.Metadata) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metadata = append(h.metadata, m)
	return nil
}

func agedRows(n int, age time.Duration) []archive.Row {
	base := time.Now().UTC().Add(-age)
	rows := make([]archive.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, archive.Row{
			ID:        int64(i + 1),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Level:     "info",
			Target:    "app",
			Message:   "aged",
			ThreadID:  "t1",
		})
	}
	return rows
}

func TestScheduler_TickArchivesDeletesAndRecordsOncePerDay(t *testing.T) {
	cfg := config.DefaultArchiveConfig()
	cfg.Enabled = true
	cfg.ArchiveIntervalDays = 1

	store := &fakeStore{storageClass: cfg.StorageClass.String()}
	h := &tickHarness{rows: agedRows(5, 48*time.Hour)}

	s := NewScheduler(cfg, store, h.fetch, h.delete, h.record)

	s.tick()

	if len(store.objects) != 1 {
		t.Fatalf("uploaded objects = %d, want 1", len(store.objects))
	}
	if len(h.deleted) != 5 {
		t.Fatalf("deleted rows = %d, want 5", len(h.deleted))
	}
	if len(h.metadata) != 1 || h.metadata[0].RecordCount != 5 {
		t.Fatalf("metadata = %+v, want one row with record_count 5", h.metadata)
	}
	if h.metadata[0].Status != archive.StatusSuccess {
		t.Fatalf("metadata status = %v, want Success", h.metadata[0].Status)
	}

	// A second firing on the same calendar day is a no-op under the
	// default day guard, even with rows still eligible.
	h.mu.Lock()
	h.rows = agedRows(3, 48*time.Hour)
	h.mu.Unlock()
	s.tick()

	if len(store.objects) != 1 {
		t.Fatalf("second same-day tick uploaded; day guard broken")
	}
	if len(h.metadata) != 1 {
		t.Fatalf("second same-day tick recorded metadata; day guard broken")
	}
}

func TestScheduler_EmptyFetchMarksSuccessWithoutUpload(t *testing.T) {
	cfg := config.DefaultArchiveConfig()
	cfg.ArchiveIntervalDays = 7

	store := &fakeStore{storageClass: cfg.StorageClass.String()}
	h := &tickHarness{} // nothing eligible

	s := NewScheduler(cfg, store, h.fetch, h.delete, h.record)
	s.tick()

	if len(store.objects) != 0 {
		t.Fatalf("upload happened with no eligible rows")
	}
	snap := s.state.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsRunning {
		t.Fatalf("state = %+v, want clean success", snap)
	}
}
