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
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
)

// createSchema creates the logs table, its secondary indexes, and the
// archive_metadata tracking table if they do not already exist. On
// PostgreSQL the parent table is declared range-partitioned on
// timestamp at creation so the daily partition DDL has a partitioned
// parent to attach to.
func createSchema(db *sql.DB, driver config.Driver, table string) error {
	var stmts []string

	switch driver {
	case config.DriverPostgreSQL:
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT GENERATED ALWAYS AS IDENTITY,
	timestamp TIMESTAMPTZ NOT NULL,
	level VARCHAR(8) NOT NULL,
	target TEXT NOT NULL,
	message TEXT NOT NULL,
	fields JSONB,
	file TEXT,
	line INTEGER,
	thread_id TEXT NOT NULL,
	PRIMARY KEY (id, timestamp)
) PARTITION BY RANGE (timestamp)`, table))

	case config.DriverMySQL:
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT NOT NULL AUTO_INCREMENT,
	timestamp DATETIME(3) NOT NULL,
	level VARCHAR(8) NOT NULL,
	target TEXT NOT NULL,
	message LONGTEXT NOT NULL,
	fields JSON,
	file TEXT,
	line INT,
	thread_id VARCHAR(64) NOT NULL,
	PRIMARY KEY (id, timestamp)
)`, table))

	case config.DriverSQLite:
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	level TEXT NOT NULL,
	target TEXT NOT NULL,
	message TEXT NOT NULL,
	fields TEXT,
	file TEXT,
	line INTEGER,
	thread_id TEXT NOT NULL
)`, table))
	}

	// Secondary indexes. MySQL has no IF NOT EXISTS for CREATE INDEX, so
	// duplicate-index errors are tolerated below instead.
	ifNotExists := "IF NOT EXISTS "
	if driver == config.DriverMySQL {
		ifNotExists = ""
	}
	for _, col := range []string{"timestamp", "level", "target"} {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %sidx_%s_%s ON %s (%s)",
			ifNotExists, table, col, table, col))
	}

	stmts = append(stmts, archiveMetadataDDL(driver))

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			if driver == config.DriverMySQL && isDuplicateObject(err) {
				continue
			}
			return errkind.Wrap(errkind.Database, "create schema", err)
		}
	}

	if driver == config.DriverPostgreSQL {
		// The parent is partitioned; without at least the current
		// month's partition every insert would fail.
		if err := ensurePartitionNow(db, driver, table); err != nil {
			return err
		}
	}
	return nil
}

func archiveMetadataDDL(driver config.Driver) string {
	switch driver {
	case config.DriverPostgreSQL:
		return `CREATE TABLE IF NOT EXISTS archive_metadata (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	archive_date TIMESTAMPTZ NOT NULL,
	destination_key TEXT NOT NULL,
	record_count BIGINT NOT NULL,
	original_bytes BIGINT NOT NULL,
	compressed_bytes BIGINT NOT NULL,
	compression_ratio DOUBLE PRECISION NOT NULL,
	compression_type TEXT NOT NULL,
	storage_class TEXT NOT NULL,
	start_timestamp TIMESTAMPTZ,
	end_timestamp TIMESTAMPTZ,
	checksum_sha256 TEXT NOT NULL,
	format_version INTEGER NOT NULL,
	row_group_count INTEGER NOT NULL,
	status TEXT NOT NULL
)`
	case config.DriverMySQL:
		return `CREATE TABLE IF NOT EXISTS archive_metadata (
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	archive_date DATETIME(3) NOT NULL,
	destination_key TEXT NOT NULL,
	record_count BIGINT NOT NULL,
	original_bytes BIGINT NOT NULL,
	compressed_bytes BIGINT NOT NULL,
	compression_ratio DOUBLE NOT NULL,
	compression_type VARCHAR(16) NOT NULL,
	storage_class VARCHAR(32) NOT NULL,
	start_timestamp DATETIME(3),
	end_timestamp DATETIME(3),
	checksum_sha256 VARCHAR(64) NOT NULL,
	format_version INT NOT NULL,
	row_group_count INT NOT NULL,
	status VARCHAR(16) NOT NULL
)`
	default:
		return `CREATE TABLE IF NOT EXISTS archive_metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	archive_date TEXT NOT NULL,
	destination_key TEXT NOT NULL,
	record_count INTEGER NOT NULL,
	original_bytes INTEGER NOT NULL,
	compressed_bytes INTEGER NOT NULL,
	compression_ratio REAL NOT NULL,
	compression_type TEXT NOT NULL,
	storage_class TEXT NOT NULL,
	start_timestamp TEXT,
	end_timestamp TEXT,
	checksum_sha256 TEXT NOT NULL,
	format_version INTEGER NOT NULL,
	row_group_count INTEGER NOT NULL,
	status TEXT NOT NULL
)`
	}
}

// isDuplicateObject reports whether err is MySQL's "already exists"
// family (1050 table, 1061 index, 1517 partition), which the idempotent
// DDL paths treat as success.
func isDuplicateObject(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1050") ||
		strings.Contains(msg, "Error 1061") ||
		strings.Contains(msg, "Error 1517") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "Duplicate")
}

// insertSQL builds the single multi-row INSERT statement one flush
// issues, using the driver's placeholder style.
func insertSQL(driver config.Driver, table string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (timestamp, level, target, message, fields, file, line, thread_id) VALUES ", table)
	const cols = 8
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			if driver == config.DriverPostgreSQL {
				fmt.Fprintf(&b, "$%d", i*cols+c+1)
			} else {
				b.WriteByte('?')
			}
		}
		b.WriteByte(')')
	}
	return b.String()
}
