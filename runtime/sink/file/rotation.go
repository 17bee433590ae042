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

package file

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
	"github.com/kirky-x/inklog/internal/diag"
)

// shouldRotate checks the two rotation triggers: current size at or
// above max_size, or the wall clock having reached the precomputed
// next-rotation instant (which already accounts for calendar alignment).
func (s *Sink) shouldRotate(now time.Time) bool {
	if s.maxSizeBytes > 0 && uint64(s.size) >= s.maxSizeBytes {
		return true
	}
	return !s.nextRotation.IsZero() && !now.Before(s.nextRotation)
}

// nextRotationInstant computes the next calendar-aligned rotation
// point in UTC for the given cadence, starting from now.
func nextRotationInstant(now time.Time, cadence config.RotationTime) time.Time {
	now = now.UTC()
	switch cadence {
	case config.RotationHourly:
		return now.Truncate(time.Hour).Add(time.Hour)
	case config.RotationWeekly:
		daysUntilMonday := (8 - int(now.Weekday())) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		d := now.AddDate(0, 0, daysUntilMonday)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	default: // RotationDaily
		d := now.AddDate(0, 0, 1)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// rotateLocked performs the full rotation pipeline: close, rename,
// compress, encrypt, reopen, advance next-rotation. Caller must hold
// s.mu.
func (s *Sink) rotateLocked() error {
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return errkind.Wrap(errkind.IO, "close active file before rotation", err)
		}
		s.file = nil
	}

	rotatedPath := rotatedName(s.cfg.Path, time.Now().UTC())
	// Size-triggered rotations can fire more than once within the same
	// second; never rename over an earlier rotation's output.
	// Compression and encryption rename the output to .zst / .enc, so
	// those names count as taken too.
	for i := 1; ; i++ {
		taken := false
		for _, suffix := range []string{"", ".zst", ".enc", ".zst.enc"} {
			if _, err := os.Stat(rotatedPath + suffix); !os.IsNotExist(err) {
				taken = true
			}
		}
		if !taken {
			break
		}
		ext := filepath.Ext(rotatedPath)
		rotatedPath = strings.TrimSuffix(rotatedName(s.cfg.Path, time.Now().UTC()), ext) + "_" + strconv.Itoa(i) + ext
	}
	if _, err := os.Stat(s.cfg.Path); err == nil {
		if err := os.Rename(s.cfg.Path, rotatedPath); err != nil {
			return errkind.Wrap(errkind.IO, "rename active file for rotation", err)
		}
	} else {
		rotatedPath = "" // nothing existed yet, e.g. a rotation forced by the time trigger on an empty file
	}

	if rotatedPath != "" {
		final := rotatedPath
		if s.cfg.Compress {
			compressed, err := compressFile(final, s.cfg.CompressionLevel)
			if err != nil {
				diag.L().Warn("file sink: compression failed, keeping uncompressed", zap.Error(err))
			} else {
				final = compressed
			}
		}
		if s.cfg.Encrypt {
			encrypted, err := s.encryptRotated(final)
			if err != nil {
				diag.L().Warn("file sink: encryption failed, keeping plaintext", zap.Error(err))
			} else {
				final = encrypted
			}
		}
	}

	if err := s.openActive(); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.nextRotation = nextRotationInstant(now, s.cfg.RotationTime)
	s.lastRotationDay = now.YearDay()

	go s.enforceRetentionAsync()
	return nil
}

// encryptRotated reads path fully, encrypts it, writes path+".enc",
// and removes the plaintext original.
func (s *Sink) encryptRotated(path string) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", errkind.Wrap(errkind.Encryption, "read rotated file for encryption", err)
	}
	ciphertext, err := encryptBytes(s.encryptKey, plaintext)
	if err != nil {
		return "", err
	}
	dst := path + ".enc"
	if err := os.WriteFile(dst, ciphertext, 0o600); err != nil {
		return "", errkind.Wrap(errkind.Encryption, "write encrypted file", err)
	}
	if err := os.Remove(path); err != nil {
		return "", errkind.Wrap(errkind.Encryption, "remove plaintext after encryption", err)
	}
	return dst, nil
}

// rotatedName builds "<stem>_<YYYYMMDD_HHMMSS>.<ext>" for path at t.
func rotatedName(path string, t time.Time) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ts := t.Format("20060102_150405")
	return filepath.Join(dir, stem+"_"+ts+ext)
}

// cleanupLoop is the retention background timer: every
// cleanup_interval_minutes, delete rotated siblings older than
// retention_days, then trim oldest-first if the combined size of what
// remains exceeds max_total_size, always keeping at least keep_files.
func (s *Sink) cleanupLoop(interval time.Duration) {
	defer close(s.cleanupDone)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stopCleanup:
			return
		case <-t.C:
			s.enforceRetention()
		}
	}
}

// enforceRetentionAsync runs enforceRetention in the background so a
// rotation on the write path never blocks on directory scans.
func (s *Sink) enforceRetentionAsync() {
	s.enforceRetention()
}

func (s *Sink) enforceRetention() {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	names := s.rotatedSiblings()
	if len(names) == 0 {
		return
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	infos := make([]fileInfo, 0, len(names))
	for _, n := range names {
		st, err := os.Stat(n)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: n, size: st.Size(), modTime: st.ModTime()})
	}

	if cfg.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(cfg.RetentionDays) * 24 * time.Hour)
		remaining := len(infos)
		kept := make([]fileInfo, 0, len(infos))
		for _, fi := range infos {
			if fi.modTime.Before(cutoff) && uint32(remaining) > cfg.KeepFiles {
				os.Remove(fi.path)
				remaining--
				continue
			}
			kept = append(kept, fi)
		}
		infos = kept
	}

	if s.maxTotalSize > 0 {
		var total uint64
		for _, fi := range infos {
			total += uint64(fi.size)
		}
		i := 0
		for total > s.maxTotalSize && uint32(len(infos)-i) > cfg.KeepFiles {
			os.Remove(infos[i].path)
			total -= uint64(infos[i].size)
			i++
		}
	}
}
