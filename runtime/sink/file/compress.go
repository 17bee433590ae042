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
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/kirky-x/inklog/apis/errkind"
)

// compressFile stream-encodes src with Zstandard into src+".zst" at
// level, then removes src. It never holds the whole file in memory:
// rotated files can be as large as max_size allows.
func compressFile(src string, level int) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", errkind.Wrap(errkind.Compression, "open rotated file", err)
	}
	defer in.Close()

	dstPath := src + ".zst"
	out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", errkind.Wrap(errkind.Compression, "create compressed file", err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		out.Close()
		return "", errkind.Wrap(errkind.Compression, "construct zstd encoder", err)
	}

	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		return "", errkind.Wrap(errkind.Compression, "compress rotated file", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return "", errkind.Wrap(errkind.Compression, "finalize zstd stream", err)
	}
	if err := out.Close(); err != nil {
		return "", errkind.Wrap(errkind.Compression, "close compressed file", err)
	}
	if err := os.Remove(src); err != nil {
		return "", errkind.Wrap(errkind.Compression, "remove original after compression", err)
	}
	return dstPath, nil
}

// zstdLevel maps a 1-22-ish configured level onto klauspost/compress's
// coarser four-speed encoder levels, clamping to the nearest bucket
// rather than rejecting values outside its small enum.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
