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

package config

import "github.com/kirky-x/inklog/apis/secret"

// CompressionAlgorithm is the archive blob's compression choice; it
// also determines the object key suffix.
type CompressionAlgorithm uint8

const (
	CompressionNone CompressionAlgorithm = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
	CompressionBrotli
)

func (c CompressionAlgorithm) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionBrotli:
		return "brotli"
	default:
		return "none"
	}
}

// Extension returns the file-name suffix this algorithm appends, or
// the empty string for CompressionNone.
func (c CompressionAlgorithm) Extension() string {
	switch c {
	case CompressionGzip:
		return "gz"
	case CompressionZstd:
		return "zst"
	case CompressionLZ4:
		return "lz4"
	case CompressionBrotli:
		return "br"
	default:
		return ""
	}
}

// StorageClass mirrors the S3 storage-class enum.
type StorageClass uint8

const (
	StorageClassStandard StorageClass = iota
	StorageClassIntelligentTiering
	StorageClassStandardIA
	StorageClassOneZoneIA
	StorageClassGlacier
	StorageClassGlacierDeepArchive
	StorageClassReducedRedundancy
)

func (s StorageClass) String() string {
	switch s {
	case StorageClassIntelligentTiering:
		return "IntelligentTiering"
	case StorageClassStandardIA:
		return "StandardIa"
	case StorageClassOneZoneIA:
		return "OnezoneIa"
	case StorageClassGlacier:
		return "Glacier"
	case StorageClassGlacierDeepArchive:
		return "GlacierDeepArchive"
	case StorageClassReducedRedundancy:
		return "ReducedRedundancy"
	default:
		return "Standard"
	}
}

// IsColdTier reports whether restoring an object in this class requires
// an S3 Restore request before it can be downloaded.
func (s StorageClass) IsColdTier() bool {
	return s == StorageClassGlacier || s == StorageClassGlacierDeepArchive
}

// ServerSideEncryption selects the S3 SSE mode. SSE-C is intentionally
// absent: requesting it is rejected as a ConfigError at validation time.
type ServerSideEncryption uint8

const (
	SSENone ServerSideEncryption = iota
	SSEAES256
	SSEKMS
)

// EncryptionConfig wraps the SSE mode with its optional KMS key id.
type EncryptionConfig struct {
	Mode ServerSideEncryption
	KeyID string
}

// ArchiveConfig configures archival to an S3-compatible object store,
// used both by the database sink's inline archival tick and the
// standalone scheduler.
type ArchiveConfig struct {
	Enabled bool
	Bucket string
	Region string
	ArchiveIntervalDays uint32

	// ScheduleExpression is a cron expression; when set it takes
	// priority over ArchiveIntervalDays for scheduling cadence.
	ScheduleExpression string

	LocalRetentionDays uint32
	LocalRetentionPath string

	Compression CompressionAlgorithm
	StorageClass StorageClass
	Prefix string

	AccessKeyID secret.String
	SecretAccessKey secret.String
	SessionToken secret.String

	EndpointURL string
	ForcePathStyle bool
	SkipBucketValidation bool
	MaxFileSizeMB uint32

	Encryption *EncryptionConfig

	ArchiveFormat ArchiveFormat
	Parquet ParquetConfig
}

// DefaultArchiveConfig starts disabled: weekly cadence, Zstandard
// compression, Standard storage class.
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:              false,
		Bucket:               "logs-archive",
		Region:               "us-east-1",
		ArchiveIntervalDays:  7,
		LocalRetentionDays:   30,
		LocalRetentionPath:   "logs/archive_failures",
		Compression:          CompressionZstd,
		StorageClass:         StorageClassStandard,
		Prefix:               "logs/",
		ForcePathStyle:       false,
		SkipBucketValidation: false,
		MaxFileSizeMB:        100,
		ArchiveFormat:        ArchiveFormatJSON,
		Parquet:              DefaultParquetConfig(),
	}
}
