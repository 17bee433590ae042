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

package pipeline

import "github.com/kirky-x/inklog/apis/record"

// Entry is the single polymorphic operation a host logging framework
// calls for every event. It must never block indefinitely and must
// never surface an error to the caller: enqueue failures are metered,
// not raised.
type Entry interface {
	OnRecord(r *record.Record)
}

// Pipeline is the ingestion entry point plus its lifecycle operations.
// Manager implements this; host adapters depend on the interface so the
// core never installs process-global state itself.
type Pipeline interface {
	Entry

	// Flush asks every asynchronous sink to flush its buffers. It does
	// not wait for the queue to drain; see Shutdown for that.
	Flush() error

	// Shutdown performs the one-shot shutdown protocol: signal workers,
	// let them drain with a deadline, then close every sink.
	Shutdown() error
}
