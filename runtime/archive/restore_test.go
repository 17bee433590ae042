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
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
)

// fakeStore is an in-memory ObjectStore for restore-path tests.
type fakeStore struct {
	objects      map[string][]byte
	storageClass string
	restored     []string
}

func (f *fakeStore) Put(key string, blob archive.Blob, _ map[string]string) (archive.UploadResult, error) {
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = blob.Data
	return archive.UploadResult{Key: key, StorageClass: f.storageClass}, nil
}

func (f *fakeStore) Head(key string) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("not found")
	}
	return f.storageClass, nil
}

func (f *fakeStore) Restore(key string) error {
	f.restored = append(f.restored, key)
	return nil
}

func (f *fakeStore) Get(key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f *fakeStore) List(string, time.Time, time.Time) ([]string, error) { return nil, nil }
func (f *fakeStore) Delete(key string) error                            { delete(f.objects, key); return nil }

func TestRestoreArchive_DownloadsAndDecompressesWarmTiers(t *testing.T) {
	original := []byte(`{"id":1,"message":"archived"}`)
	compressed, err := compressBytes(original, config.CompressionZstd)
	if err != nil {
		t.Fatalf("compressBytes: %v", err)
	}

	store := &fakeStore{
		objects:      map[string][]byte{"logs/2026/03/a.parquet.zst": compressed},
		storageClass: config.StorageClassStandard.String(),
	}

	out, err := RestoreArchive(store, "logs/2026/03/a.parquet.zst")
	if err != nil {
		t.Fatalf("RestoreArchive: %v", err)
	}
	if !bytes.Equal(out, original) {
		t.Fatalf("restored bytes differ from original")
	}
	if len(store.restored) != 0 {
		t.Fatalf("Restore issued for a warm object")
	}
}

func TestRestoreArchive_InitiatesRestoreForColdTiers(t *testing.T) {
	store := &fakeStore{
		objects:      map[string][]byte{"logs/cold.parquet.zst": {1, 2, 3}},
		storageClass: config.StorageClassGlacier.String(),
	}

	_, err := RestoreArchive(store, "logs/cold.parquet.zst")
	if !errors.Is(err, ErrRestorationInitiated) {
		t.Fatalf("err = %v, want ErrRestorationInitiated", err)
	}
	if len(store.restored) != 1 {
		t.Fatalf("Restore not issued for a Glacier object")
	}
}

func TestCompressionFromKey_MatchesBuildKeySuffixes(t *testing.T) {
	cases := map[string]config.CompressionAlgorithm{
		"a.parquet.gz":  config.CompressionGzip,
		"a.parquet.zst": config.CompressionZstd,
		"a.parquet.lz4": config.CompressionLZ4,
		"a.parquet.br":  config.CompressionBrotli,
		"a.parquet":     config.CompressionNone,
	}
	for key, want := range cases {
		if got := compressionFromKey(key); got != want {
			t.Fatalf("compressionFromKey(%q) = %v, want %v", key, got, want)
		}
	}
}
