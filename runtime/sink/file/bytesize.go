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

package file

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/kirky-x/inklog/apis/errkind"
)

// parseSize parses a human-readable byte size ("100MB", "1GB", "512KiB")
// into a byte count. An empty string means "no limit".
func parseSize(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errkind.Wrap(errkind.Config, fmt.Sprintf("invalid byte size %q", s), err)
	}
	return n, nil
}
