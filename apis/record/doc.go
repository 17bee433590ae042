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

// Package record defines the canonical log entry shape that flows
// through every inklog stage: producer -> masker -> console -> queue ->
// sink worker.
//
// This package intentionally contains only stable, minimal data
// structures and helper methods. It performs no I/O, encoding,
// buffering, or pooling; those live in runtime packages.
//
// # Record contract
//
// Record carries:
//   - Timestamp: event time, UTC, millisecond precision
//   - Level:     severity (see apis/level)
//   - Target:    dotted module string of the producing component
//   - Message:   text message, possibly multi-line
//   - Fields:    additional structured, JSON-representable fields
//   - File/Line: optional call-site source location
//   - ThreadID:  producing goroutine identifier, for diagnostics
//
// # Ownership
//
// A Record is created at the producer site, optionally mutated by the
// masker exactly once, and is then logically frozen: ownership moves
// through the bounded queue to exactly one worker, which returns it to
// the object pool after the write. Producers must not touch a Record
// after it has been enqueued; the synchronous console path and each
// queued worker path receive independent copies (see Clone).
//
// # Separation of concerns
//
//   - Rendering to a line is done by runtime/template and the encoders.
//   - Redaction is performed by runtime/masking before enqueue.
//   - Delivery is handled by sinks (see apis/sink).
package record
