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

// Package archive implements the columnar/JSON serializer, the
// S3-compatible object-store client, and the cron-driven scheduler
// that together carry cold rows out of the database sink.
package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
)

// parquetRow is the fixed columnar schema: (id:int64, timestamp:utf8,
// level:utf8, target:utf8, message:utf8, fields:utf8 nullable,
// file:utf8 nullable, line:int64 nullable, thread_id:utf8).
type parquetRow struct {
	ID        int64   `parquet:"name=id, type=INT64"`
	Timestamp string  `parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     string  `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
	Target    string  `parquet:"name=target, type=BYTE_ARRAY, convertedtype=UTF8"`
	Message   string  `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
	Fields    *string `parquet:"name=fields, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	File      *string `parquet:"name=file, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Line      *int64  `parquet:"name=line, type=INT64, repetitiontype=OPTIONAL"`
	ThreadID  string  `parquet:"name=thread_id, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// jsonRow is the row shape used when ArchiveFormat is JSON, carrying
// the same fields as parquetRow without the columnar constraints.
type jsonRow struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Target    string `json:"target"`
	Message   string `json:"message"`
	Fields    string `json:"fields,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int64  `json:"line,omitempty"`
	ThreadID  string `json:"thread_id"`
}

// Serializer implements apis/archive.Serializer for both supported
// archive formats, sharing the checksum/compression pipeline.
type Serializer struct {
	format      config.ArchiveFormat
	parquet     config.ParquetConfig
	compression config.CompressionAlgorithm
}

var _ archive.Serializer = (*Serializer)(nil)

// NewSerializer builds a Serializer from the database or object_archive
// config section's archive-format choice.
func NewSerializer(format config.ArchiveFormat, parquetCfg config.ParquetConfig, compression config.CompressionAlgorithm) *Serializer {
	return &Serializer{format: format, parquet: parquetCfg, compression: compression}
}

// Serialize implements apis/archive.Serializer: it produces the
// uncompressed bytes (for the checksum), compresses them with the
// configured algorithm, and fills in the integrity/descriptive
// metadata the archive subsystem needs.
func (s *Serializer) Serialize(rows []archive.Row) (archive.Blob, error) {
	var (
		raw      []byte
		rowGroup int
		err      error
	)
	switch s.format {
	case config.ArchiveFormatParquet:
		raw, rowGroup, err = s.serializeParquet(rows)
	default:
		raw, err = s.serializeJSON(rows)
	}
	if err != nil {
		return archive.Blob{}, err
	}

	sum := sha256.Sum256(raw)
	compressed, err := compressBytes(raw, s.compression)
	if err != nil {
		return archive.Blob{}, err
	}

	var start, end archive.Row
	if len(rows) > 0 {
		start, end = rows[0], rows[len(rows)-1]
	}

	return archive.Blob{
		Data:            compressed,
		RecordCount:     len(rows),
		OriginalBytes:   int64(len(raw)),
		CompressedBytes: int64(len(compressed)),
		ChecksumSHA256:  hex.EncodeToString(sum[:]),
		RowGroupCount:   rowGroup,
		ArchiveFormat:   s.format.String(),
		CompressionName: s.compression.String(),
		StartTimestamp:  start.Timestamp,
		EndTimestamp:    end.Timestamp,
	}, nil
}

func (s *Serializer) serializeJSON(rows []archive.Row) ([]byte, error) {
	out := make([]jsonRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, jsonRow{
			ID: r.ID, Timestamp: r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			Level: r.Level, Target: r.Target, Message: r.Message,
			Fields: r.Fields, File: r.File, Line: r.Line, ThreadID: r.ThreadID,
		})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, errkind.Wrap(errkind.Serialization, "marshal json archive batch", err)
	}
	return raw, nil
}

func (s *Serializer) serializeParquet(rows []archive.Row) ([]byte, int, error) {
	buf := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 4)
	if err != nil {
		return nil, 0, errkind.Wrap(errkind.Serialization, "construct parquet writer", err)
	}
	pw.RowGroupSize = int64(rowGroupSize(s.parquet.MaxRowGroupSize))
	pw.PageSize = int64(pageSize(s.parquet.MaxPageSize))
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	rowGroups := 0
	for i, r := range rows {
		row := parquetRow{
			ID: r.ID, Timestamp: r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			Level: r.Level, Target: r.Target, Message: r.Message, ThreadID: r.ThreadID,
		}
		if r.Fields != "" {
			row.Fields = &r.Fields
		}
		if r.File != "" {
			row.File = &r.File
		}
		if r.Line != 0 {
			line := r.Line
			row.Line = &line
		}
		if err := pw.Write(row); err != nil {
			return nil, 0, errkind.Wrap(errkind.Serialization, "write parquet row", err)
		}
		if (i+1)%rowGroupSize(s.parquet.MaxRowGroupSize) == 0 {
			rowGroups++
		}
	}
	if len(rows)%rowGroupSize(s.parquet.MaxRowGroupSize) != 0 || rowGroups == 0 {
		rowGroups++
	}

	if err := pw.WriteStop(); err != nil {
		return nil, 0, errkind.Wrap(errkind.Serialization, "finalize parquet file", err)
	}
	if err := fw.Close(); err != nil {
		return nil, 0, errkind.Wrap(errkind.Serialization, "close parquet writer file", err)
	}
	return buf.Bytes(), rowGroups, nil
}

func rowGroupSize(n int) int {
	if n <= 0 {
		return 10000
	}
	return n
}

func pageSize(n int) int {
	if n <= 0 {
		return 1 << 20
	}
	return n
}

// compressBytes applies the configured compression algorithm, matching
// the key-extension table BuildKey writes by.
func compressBytes(raw []byte, algo config.CompressionAlgorithm) ([]byte, error) {
	var buf bytes.Buffer
	switch algo {
	case config.CompressionNone:
		return raw, nil
	case config.CompressionGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "gzip archive blob", err)
		}
		if err := w.Close(); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "finalize gzip archive blob", err)
		}
	case config.CompressionZstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, errkind.Wrap(errkind.Compression, "construct zstd encoder", err)
		}
		if _, err := w.Write(raw); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "zstd archive blob", err)
		}
		if err := w.Close(); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "finalize zstd archive blob", err)
		}
	case config.CompressionLZ4:
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "lz4 archive blob", err)
		}
		if err := w.Close(); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "finalize lz4 archive blob", err)
		}
	case config.CompressionBrotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "brotli archive blob", err)
		}
		if err := w.Close(); err != nil {
			return nil, errkind.Wrap(errkind.Compression, "finalize brotli archive blob", err)
		}
	default:
		return raw, nil
	}
	return buf.Bytes(), nil
}

// DecompressBytes reverses compressBytes for the restore path.
func DecompressBytes(data []byte, algo config.CompressionAlgorithm) ([]byte, error) {
	switch algo {
	case config.CompressionNone:
		return data, nil
	case config.CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errkind.Wrap(errkind.Compression, "open gzip archive blob", err)
		}
		defer r.Close()
		return readAll(r)
	case config.CompressionZstd:
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errkind.Wrap(errkind.Compression, "open zstd archive blob", err)
		}
		defer r.Close()
		return readAll(r)
	case config.CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		return readAll(r)
	case config.CompressionBrotli:
		r := brotli.NewReader(bytes.NewReader(data))
		return readAll(r)
	default:
		return data, nil
	}
}

func readAll(r io.Reader) ([]byte, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errkind.Wrap(errkind.Compression, "decompress archive blob", err)
	}
	return buf, nil
}
