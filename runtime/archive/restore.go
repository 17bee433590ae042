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
	"strings"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
)

// ErrRestorationInitiated is returned by RestoreArchive when the
// object lives in a cold storage tier: the caller must retry later,
// once the Restore request (tier Standard, 1-day expiry) completes.
var ErrRestorationInitiated = errkind.New(errkind.ObjectStore, "Restoration initiated")

// RestoreArchive heads the object; if its storage class is a cold
// tier, it issues a Restore request and reports
// ErrRestorationInitiated; otherwise it downloads and decompresses
// with the algorithm the key's suffix implies.
func RestoreArchive(store archive.ObjectStore, key string) ([]byte, error) {
	storageClass, err := store.Head(key)
	if err != nil {
		return nil, err
	}

	if isColdTierName(storageClass) {
		if err := store.Restore(key); err != nil {
			return nil, err
		}
		return nil, ErrRestorationInitiated
	}

	raw, err := store.Get(key)
	if err != nil {
		return nil, err
	}
	return DecompressBytes(raw, compressionFromKey(key))
}

func isColdTierName(storageClass string) bool {
	switch storageClass {
	case config.StorageClassGlacier.String(), config.StorageClassGlacierDeepArchive.String(), "GLACIER", "DEEP_ARCHIVE":
		return true
	default:
		return false
	}
}

// compressionFromKey infers the compression algorithm from the key's
// trailing extension, matching the table BuildKey writes by.
func compressionFromKey(key string) config.CompressionAlgorithm {
	switch {
	case strings.HasSuffix(key, ".gz"):
		return config.CompressionGzip
	case strings.HasSuffix(key, ".zst"):
		return config.CompressionZstd
	case strings.HasSuffix(key, ".lz4"):
		return config.CompressionLZ4
	case strings.HasSuffix(key, ".br"):
		return config.CompressionBrotli
	default:
		return config.CompressionNone
	}
}
