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

import "syscall"

// diskFree holds the filesystem statistics the disk-pressure check
// needs: free bytes and total bytes of the log file's parent
// filesystem, read with a single statfs(2) call.
type diskFree struct {
	freeBytes  uint64
	totalBytes uint64
}

func statDiskFree(path string) (diskFree, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return diskFree{}, err
	}
	bsize := uint64(st.Bsize)
	return diskFree{
		freeBytes:  st.Bavail * bsize,
		totalBytes: st.Blocks * bsize,
	}, nil
}

// underPressure reports whether free space on the filesystem holding
// dir is low enough to require cleanup: free < 5% of total OR free <
// 100 MiB.
func (d diskFree) underPressure() bool {
	const hundredMiB = 100 << 20
	if d.totalBytes == 0 {
		return false
	}
	fivePercent := d.totalBytes / 20
	return d.freeBytes < fivePercent || d.freeBytes < hundredMiB
}

// criticallyLow reports whether, even after cleanup, free space remains
// below the 50 MiB floor at which the sink must force degradation
// rather than keep trying to write.
func (d diskFree) criticallyLow() bool {
	const fiftyMiB = 50 << 20
	return d.freeBytes < fiftyMiB
}
