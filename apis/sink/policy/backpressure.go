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

package policy

// Backpressure defines what a producer does when the ingestion queue is
// full. The source carries two strategies (see spec Open Questions): the
// default is block-until-space, trading producer latency for zero loss;
// an async-sink variant instead drops. inklog makes the choice explicit
// and configurable rather than picking one silently.
type Backpressure uint8

const (
	// Block means the producer's enqueue attempt blocks until a worker
	// frees a slot. This is the default: it gives at-least-once delivery
	// at the cost of producer latency under sustained overload.
	Block Backpressure = iota

	// DropOldest evicts the oldest queued record to make room for the
	// new one.
	DropOldest

	// DropNewest discards the record that could not be enqueued,
	// leaving the queue's existing contents untouched.
	DropNewest
)

// String renders the strategy for logs and health/config dumps.
func (b Backpressure) String() string {
	switch b {
	case Block:
		return "block"
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	default:
		return "unknown"
	}
}
