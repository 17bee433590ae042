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
	"time"

	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
)

// ensurePartition issues the idempotent monthly-partition DDL for
// the month containing now. SQLite is unpartitioned; callers skip it.
//
// PostgreSQL attaches a child to the range-partitioned parent created
// by createSchema. MySQL keeps a plain table plus idempotent monthly
// sibling tables mirroring the partition naming, since attaching range
// partitions after creation would force a full-table reorganize.
func ensurePartition(db *sql.DB, driver config.Driver, table string, now time.Time) error {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)
	partition := fmt.Sprintf("%s_%04d_%02d", table, monthStart.Year(), int(monthStart.Month()))

	var stmt string
	switch driver {
	case config.DriverPostgreSQL:
		stmt = fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')",
			partition, table,
			monthStart.Format("2006-01-02"), nextMonth.Format("2006-01-02"))
	case config.DriverMySQL:
		stmt = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s", partition, table)
	default:
		return nil
	}

	if _, err := db.Exec(stmt); err != nil {
		if driver == config.DriverMySQL && isDuplicateObject(err) {
			return nil
		}
		return errkind.Wrap(errkind.Database, "ensure monthly partition", err)
	}
	return nil
}

func ensurePartitionNow(db *sql.DB, driver config.Driver, table string) error {
	return ensurePartition(db, driver, table, time.Now().UTC())
}
