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
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/level"
	"github.com/kirky-x/inklog/apis/record"
)

func testRecord(msg string) *record.Record {
	return &record.Record{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:     level.Info,
		Target:    "app.test",
		Message:   msg,
		ThreadID:  "t1",
	}
}

func testConfig(dir string) config.FileSinkConfig {
	return config.FileSinkConfig{
		Enabled:      true,
		Path:         filepath.Join(dir, "app.log"),
		MaxSize:      "100MB",
		RotationTime: config.RotationDaily,
		KeepFiles:    10,
		MaxTotalSize: "1GB",
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"", 0},
		{"100B", 100},
		{"100MB", 100 * 1000 * 1000},
		{"1GiB", 1 << 30},
	}
	for _, c := range cases {
		got, err := parseSize(c.in)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}
	if _, err := parseSize("lots"); err == nil {
		t.Fatalf("parseSize(\"lots\") succeeded, want error")
	}
}

func TestWrite_AppendsAndFlushes(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(dir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Write(testRecord("hello")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], `"message":"hello"`) {
		t.Fatalf("line %q missing message", lines[0])
	}
}

func TestWrite_RotatesBySize(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxSize = "100B"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := s.Write(testRecord(strings.Repeat("x", 30))); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var rotated int
	var active bool
	for _, e := range entries {
		switch {
		case e.Name() == "app.log":
			active = true
		case strings.HasPrefix(e.Name(), "app_"):
			rotated++
		}
	}
	if !active {
		t.Fatalf("active app.log missing after rotation")
	}
	if rotated == 0 {
		t.Fatalf("no rotated siblings produced with 100B max_size")
	}
}

func TestWrite_BoundaryRotatesOnNextWrite(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxSize = "200B"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// First write lands in the active file (size was 0 < max).
	if err := s.Write(testRecord(strings.Repeat("a", 150))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if s.size < 200 {
		t.Skipf("encoded line shorter than expected (%d bytes)", s.size)
	}

	// Size is now >= max, so the next write rotates first and goes
	// into the fresh active file.
	if err := s.Write(testRecord("after-rotation")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	data, _ := os.ReadFile(cfg.Path)
	if !strings.Contains(string(data), "after-rotation") {
		t.Fatalf("new active file does not contain the post-rotation write")
	}
	if strings.Contains(string(data), strings.Repeat("a", 150)) {
		t.Fatalf("active file still holds the pre-rotation write")
	}
}

func TestRotation_CompressesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxSize = "50B"
	cfg.Compress = true
	cfg.CompressionLevel = 3
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := s.Write(testRecord("compressible payload")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	var zst int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".zst") {
			zst++
		}
		if strings.HasPrefix(e.Name(), "app_") && strings.HasSuffix(e.Name(), ".log") {
			t.Fatalf("uncompressed rotated file %q left behind", e.Name())
		}
	}
	if zst == 0 {
		t.Fatalf("no .zst rotated files produced")
	}
}

func TestResolveKey_Ladder(t *testing.T) {
	const env = "INKLOG_TEST_KEY"

	// Base64 of exactly 32 bytes decodes to those bytes.
	raw32 := bytes.Repeat([]byte{0xAB}, 32)
	t.Setenv(env, base64.StdEncoding.EncodeToString(raw32))
	key, err := resolveKey(env)
	if err != nil {
		t.Fatalf("resolveKey(base64-32): %v", err)
	}
	if !bytes.Equal(key, raw32) {
		t.Fatalf("base64-32 key not used verbatim")
	}

	// Exactly 32 raw characters are used verbatim.
	t.Setenv(env, strings.Repeat("k", 32))
	key, err = resolveKey(env)
	if err != nil {
		t.Fatalf("resolveKey(raw-32): %v", err)
	}
	if string(key) != strings.Repeat("k", 32) {
		t.Fatalf("raw-32 key not used verbatim")
	}

	// 31 and 33 characters are stretched with PBKDF2 to 32 bytes,
	// deterministically.
	for _, n := range []int{31, 33} {
		t.Setenv(env, strings.Repeat("p", n))
		k1, err := resolveKey(env)
		if err != nil {
			t.Fatalf("resolveKey(len %d): %v", n, err)
		}
		if len(k1) != 32 {
			t.Fatalf("derived key length = %d, want 32", len(k1))
		}
		k2, _ := resolveKey(env)
		if !bytes.Equal(k1, k2) {
			t.Fatalf("PBKDF2 derivation not deterministic")
		}
	}

	// Empty and over-long values are config errors.
	t.Setenv(env, "")
	if _, err := resolveKey(env); err == nil {
		t.Fatalf("resolveKey(empty) succeeded, want error")
	}
	t.Setenv(env, strings.Repeat("x", 200))
	if _, err := resolveKey(env); err == nil {
		t.Fatalf("resolveKey(len 200) succeeded, want error")
	}
}

func TestEncryptDecrypt_RoundTripAndTamper(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	plaintext := []byte("ten records of rotated log data\n")

	blob, err := encryptBytes(key, plaintext)
	if err != nil {
		t.Fatalf("encryptBytes: %v", err)
	}
	if !bytes.HasPrefix(blob, []byte(encMagic)) {
		t.Fatalf("missing magic prefix")
	}
	if got := binary.LittleEndian.Uint16(blob[8:10]); got != encVersion {
		t.Fatalf("version = %d, want %d", got, encVersion)
	}
	if got := binary.LittleEndian.Uint16(blob[10:12]); got != encAlgoAESGCM {
		t.Fatalf("algo = %d, want %d", got, encAlgoAESGCM)
	}

	out, err := decryptBytes(key, blob)
	if err != nil {
		t.Fatalf("decryptBytes: %v", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Fatalf("round trip mismatch")
	}

	// Corrupting any ciphertext byte must fail authentication.
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := decryptBytes(key, tampered); err == nil {
		t.Fatalf("decryptBytes accepted tampered ciphertext")
	}

	// Corrupting the header must fail too.
	tampered = append([]byte(nil), blob...)
	tampered[0] ^= 0x01
	if _, err := decryptBytes(key, tampered); err == nil {
		t.Fatalf("decryptBytes accepted corrupted magic")
	}
}

func TestDecryptBytes_AcceptsLegacyHeader(t *testing.T) {
	key := bytes.Repeat([]byte{0x17}, 32)
	plaintext := []byte("legacy format payload")

	block, _ := aes.NewCipher(key)
	gcm, _ := cipher.NewGCM(block)
	// Fixed nonce whose first two bytes cannot be mistaken for the
	// current format's algorithm field (0x0001 LE).
	nonce := []byte{0xAA, 0xBB, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	legacy := []byte(encMagic)
	legacy = binary.LittleEndian.AppendUint16(legacy, encVersion)
	legacy = append(legacy, nonce...)
	legacy = gcm.Seal(legacy, nonce, plaintext, nil)

	out, err := decryptBytes(key, legacy)
	if err != nil {
		t.Fatalf("decryptBytes(legacy): %v", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Fatalf("legacy round trip mismatch")
	}
}

func TestEncryptedRotation_RoundTripsViaDecryptFile(t *testing.T) {
	const env = "INKLOG_TEST_ROTATION_KEY"
	raw := bytes.Repeat([]byte{0x5C}, 32)
	t.Setenv(env, base64.StdEncoding.EncodeToString(raw))

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxSize = "64B"
	cfg.Encrypt = true
	cfg.EncryptionKeyEnv = env
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := s.Write(testRecord("secret line")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	var decrypted []byte
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".enc") {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		out, err := DecryptFile(env, blob)
		if err != nil {
			t.Fatalf("DecryptFile(%s): %v", e.Name(), err)
		}
		decrypted = append(decrypted, out...)
	}
	if len(decrypted) == 0 {
		t.Fatalf("no .enc rotated files produced")
	}
	if !strings.Contains(string(decrypted), "secret line") {
		t.Fatalf("decrypted rotation does not contain original plaintext")
	}
}

func TestEnforceRetention_KeepsAtLeastKeepFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.KeepFiles = 2
	cfg.RetentionDays = 1
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Shutdown()

	// Five rotated siblings, all stale.
	old := time.Now().Add(-72 * time.Hour)
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, rotatedBase("app.log", i))
		if err := os.WriteFile(p, []byte("old"), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		os.Chtimes(p, old, old)
	}

	s.enforceRetention()

	names := s.rotatedSiblings()
	if len(names) < int(cfg.KeepFiles) {
		t.Fatalf("retention deleted below keep_files: %d < %d", len(names), cfg.KeepFiles)
	}
	if len(names) == 5 {
		t.Fatalf("retention deleted nothing")
	}
}

func rotatedBase(path string, i int) string {
	ts := time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC).Format("20060102_150405")
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + ts + ext
}
