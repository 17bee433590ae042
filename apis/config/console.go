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

import "github.com/kirky-x/inklog/apis/level"

// ConsoleSinkConfig configures the synchronous stdout/stderr sink.
type ConsoleSinkConfig struct {
	Enabled bool
	Colored bool

	// StderrLevels routes any level present here to the error stream;
	// everything else goes to the standard stream.
	StderrLevels []level.Level
}

// DefaultConsoleSinkConfig: enabled, colored, warn
// and error routed to stderr.
func DefaultConsoleSinkConfig() ConsoleSinkConfig {
	return ConsoleSinkConfig{
		Enabled:      true,
		Colored:      true,
		StderrLevels: []level.Level{level.Warn, level.Error},
	}
}
