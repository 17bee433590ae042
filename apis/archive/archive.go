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

// Package archive declares the contracts the database sink's inline
// archival tick and the standalone archive scheduler both depend on:
// a row shape, a serializer, and an object-store client. The concrete
// implementations (columnar/JSON serialization, S3-compatible upload,
// cron-driven scheduling) live in runtime/archive.
package archive

import "time"

// Row is one archived record, shaped after the database sink's table
// so both the inline tick and the scheduler can select rows with a
// single query and hand them to a Serializer unchanged.
type Row struct {
	ID        int64
	Timestamp time.Time
	Level     string
	Target    string
	Message   string
	Fields    string // JSON text; empty means absent
	File      string // empty means absent
	Line      int64  // 0 means absent
	ThreadID  string
}

// Blob is the output of a Serializer: the compressed bytes plus the
// integrity/descriptive metadata the archive subsystem attaches as
// object headers and persists in archive_metadata.
type Blob struct {
	Data            []byte
	RecordCount     int
	OriginalBytes   int64
	CompressedBytes int64
	ChecksumSHA256  string // hex-encoded, computed over the uncompressed bytes
	RowGroupCount   int    // 0 for non-columnar formats
	ArchiveFormat   string // "json" | "parquet"
	CompressionName string
	StartTimestamp  time.Time
	EndTimestamp    time.Time
}

// Serializer turns a batch of Rows into an archive Blob.
type Serializer interface {
	Serialize(rows []Row) (Blob, error)
}

// UploadResult is what a successful Upload call reports back for
// recording in archive_metadata.
type UploadResult struct {
	Key          string
	StorageClass string
	ETag         string
}

// ObjectStore is the subset of S3-compatible operations the archive
// subsystem needs: put (single or multipart, chosen by the caller),
// head, restore, get, and list.
type ObjectStore interface {
	Put(key string, blob Blob, metadataHeaders map[string]string) (UploadResult, error)
	Head(key string) (storageClass string, err error)
	Restore(key string) error
	Get(key string) ([]byte, error)
	List(prefix string, from, to time.Time) ([]string, error)
	Delete(key string) error
}

// Status is the lifecycle state of one archive run.
type Status string

const (
	StatusInProgress  Status = "InProgress"
	StatusSuccess     Status = "Success"
	StatusFailedLocal Status = "FailedLocal"
	StatusFailed      Status = "Failed"

	// StatusLocalSuccess marks a run that had no object-storage backend
	// at all and deliberately archived to the local directory instead.
	StatusLocalSuccess Status = "LOCAL_SUCCESS"
)

// Metadata is one archive_metadata row.
type Metadata struct {
	ID               int64
	ArchiveDate      time.Time
	DestinationKey   string
	RecordCount      int
	OriginalBytes    int64
	CompressedBytes  int64
	CompressionRatio float64
	CompressionType  string
	StorageClass     string
	StartTimestamp   time.Time
	EndTimestamp     time.Time
	ChecksumSHA256   string
	FormatVersion    int
	RowGroupCount    int
	Tags             []string
	Status           Status
}
