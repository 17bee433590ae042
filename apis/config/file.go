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

package config

// RotationTime is the calendar-aligned rotation cadence, evaluated in
// UTC. Only the time trigger reads this; the size trigger is independent.
type RotationTime uint8

const (
	RotationHourly RotationTime = iota
	RotationDaily
	RotationWeekly
)

func (r RotationTime) String() string {
	switch r {
	case RotationHourly:
		return "hourly"
	case RotationDaily:
		return "daily"
	case RotationWeekly:
		return "weekly"
	default:
		return "unknown"
	}
}

// FileSinkConfig configures the durable, rotating append-mode sink.
type FileSinkConfig struct {
	Enabled bool
	Path    string

	// MaxSize is a human-readable byte size, e.g. "100MB". Parsed by
	// runtime/sink/file at construction time.
	MaxSize      string
	RotationTime RotationTime
	KeepFiles    uint32

	Compress               bool
	CompressionLevel       int
	Encrypt                bool
	EncryptionKeyEnv       string
	RetentionDays          uint32
	MaxTotalSize           string
	CleanupIntervalMinutes uint64
}

// DefaultFileSinkConfig is the stock setup for a single rotating
// log under logs/app.log.
func DefaultFileSinkConfig() FileSinkConfig {
	return FileSinkConfig{
		Enabled:                true,
		Path:                   "logs/app.log",
		MaxSize:                "100MB",
		RotationTime:           RotationDaily,
		KeepFiles:              30,
		Compress:               true,
		CompressionLevel:       3,
		Encrypt:                false,
		EncryptionKeyEnv:       "",
		RetentionDays:          30,
		MaxTotalSize:           "1GB",
		CleanupIntervalMinutes: 60,
	}
}
