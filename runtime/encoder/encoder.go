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

// Package encoder declares the contract for turning a Record into
// bytes on an io.Writer. The file sink writes structured JSON lines
// through the json subpackage's implementation; the console path does
// not encode at all, rendering through runtime/template for its
// ANSI-aware single-line output instead.
package encoder

import (
	"io"

	"github.com/kirky-x/inklog/apis/record"
)

// Encoder converts a Record into bytes and writes them to w.
// Implementations must not close w.
type Encoder interface {
	Encode(r *record.Record, w io.Writer) error
	ContentType() string
	Name() string
}
