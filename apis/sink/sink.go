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

// Package sink defines the common contract every inklog destination
// (console, file, database, archive) implements; the shared policy
// knobs (retry, backpressure) live in the policy subpackage.
package sink

import "github.com/kirky-x/inklog/apis/record"

// Sink is a terminal consumer of Records.
//
// Implementations are single-owner: the manager constructs each sink and
// hands it to exactly one worker (the console sink is the one exception,
// shared behind a mutex because it is also written synchronously from
// every producer). A Sink must never panic — callers treat every
// returned error as recoverable and route it through retry/fallback.
type Sink interface {
	// Name identifies the sink for health, metrics, and log messages.
	Name() string

	// Write delivers one record to the destination. It may buffer
	// internally (database batches, console stdio buffers) or write
	// straight through (file).
	Write(r *record.Record) error

	// Flush forces any buffered records to be durably written.
	Flush() error

	// IsHealthy reports the sink's own view of its health: the file sink
	// reports false once disk pressure has degraded it, the database sink
	// while its breaker is open; the console sink always returns true.
	IsHealthy() bool

	// Shutdown performs a final flush and releases resources (file
	// handles, connection pools). After Shutdown the sink must not be
	// written to again.
	Shutdown() error
}
