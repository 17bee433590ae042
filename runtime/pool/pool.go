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

// Package pool holds two object pools: one for *record.Record, which
// the producer path and the workers reuse on every call, and one for
// byte buffers. No package in this module calls GetBuffer or
// PutBuffer.
package pool

import (
	"bytes"
	"sync"

	"github.com/kirky-x/inklog/apis/record"
)

// maxPooledBufferBytes caps what PutBuffer accepts back into the
// pool. A buffer that grew far past the common case (a single rendered
// line) is let go to the GC instead of pinning that memory forever.
const maxPooledBufferBytes = 64 * 1024

var records = sync.Pool{
	New: func() any { return &record.Record{Fields: make(map[string]any, 4)} },
}

// GetRecord returns a zeroed *record.Record from the pool. Records
// that entered the pool as clones may carry a nil Fields map; callers
// always receive one ready to assign into.
func GetRecord() *record.Record {
	r := records.Get().(*record.Record)
	if r.Fields == nil {
		r.Fields = make(map[string]any, 4)
	}
	return r
}

// PutRecord resets r and returns it to the pool.
func PutRecord(r *record.Record) {
	r.Reset()
	records.Put(r)
}

var buffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty *bytes.Buffer from the pool.
func GetBuffer() *bytes.Buffer {
	return buffers.Get().(*bytes.Buffer)
}

// PutBuffer returns buf to the pool, discarding it instead if it grew
// unusually large.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferBytes {
		return
	}
	buf.Reset()
	buffers.Put(buf)
}
