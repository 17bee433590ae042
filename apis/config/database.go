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

import "strings"

// Driver is the supported database backend.
type Driver uint8

const (
	DriverPostgreSQL Driver = iota
	DriverMySQL
	DriverSQLite
)

func (d Driver) String() string {
	switch d {
	case DriverPostgreSQL:
		return "postgres"
	case DriverMySQL:
		return "mysql"
	case DriverSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// ParseDriver accepts the common aliases ("postgresql", "sqlite3").
func ParseDriver(s string) (Driver, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql":
		return DriverPostgreSQL, true
	case "mysql":
		return DriverMySQL, true
	case "sqlite", "sqlite3":
		return DriverSQLite, true
	default:
		return 0, false
	}
}

// ArchiveFormat picks the on-disk/on-object-store serialization for
// archived rows.
type ArchiveFormat uint8

const (
	ArchiveFormatJSON ArchiveFormat = iota
	ArchiveFormatParquet
)

func (f ArchiveFormat) String() string {
	if f == ArchiveFormatParquet {
		return "parquet"
	}
	return "json"
}

// ParquetConfig tunes the columnar writer used by both the database
// sink's inline archival tick and the standalone archive scheduler.
type ParquetConfig struct {
	CompressionLevel int
	Encoding         string
	MaxRowGroupSize  int
	MaxPageSize      int

	// IncludeFields restricts the written columns; empty means every
	// column in the fixed row schema.
	IncludeFields []string
}

// DefaultParquetConfig: ZSTD level 3, PLAIN
// encoding, 10,000-row groups, 1 MiB pages.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{
		CompressionLevel: 3,
		Encoding:         "PLAIN",
		MaxRowGroupSize:  10000,
		MaxPageSize:      1 << 20,
	}
}

// DatabaseSinkConfig configures the batched relational sink.
type DatabaseSinkConfig struct {
	Enabled bool
	Driver  Driver
	URL     string

	PoolSize        int
	BatchSize       int
	FlushIntervalMS int64

	TableName            string
	ArchiveToObjectStore bool
	ArchiveAfterDays     uint32
	ArchiveFormat        ArchiveFormat
	Parquet              ParquetConfig
}

// DefaultDatabaseSinkConfig starts disabled, pointed at PostgreSQL
// on a local dev URL.
func DefaultDatabaseSinkConfig() DatabaseSinkConfig {
	return DatabaseSinkConfig{
		Enabled:              false,
		Driver:               DriverPostgreSQL,
		URL:                  "postgres://localhost/logs",
		PoolSize:             10,
		BatchSize:            100,
		FlushIntervalMS:      500,
		TableName:            "logs",
		ArchiveToObjectStore: false,
		ArchiveAfterDays:     30,
		ArchiveFormat:        ArchiveFormatJSON,
		Parquet:              DefaultParquetConfig(),
	}
}
