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

import "github.com/kirky-x/inklog/apis/errkind"

// Validate rejects clearly-invalid configuration before a manager is
// constructed from it. It never touches the filesystem or network; it
// only checks the values the struct already carries.
func (c Config) Validate() error {
	if err := c.Global.Level.Validate(); err != nil {
		return errkind.Wrap(errkind.Config, "global.level is invalid", err)
	}
	if c.Performance.ChannelCapacity <= 0 {
		return errkind.New(errkind.Config, "performance.channel_capacity must be positive")
	}
	if c.Performance.WorkerThreads <= 0 {
		return errkind.New(errkind.Config, "performance.worker_threads must be positive")
	}

	if c.File.Enabled {
		if c.File.Path == "" {
			return errkind.New(errkind.Config, "file_sink.path must not be empty when enabled")
		}
		if c.File.Encrypt && c.File.EncryptionKeyEnv == "" {
			return errkind.New(errkind.Config, "file_sink.encryption_key_env is required when encrypt is true")
		}
	}

	if c.Database.Enabled {
		if c.Database.URL == "" {
			return errkind.New(errkind.Config, "database_sink.url must not be empty when enabled")
		}
		switch c.Database.Driver {
		case DriverPostgreSQL, DriverMySQL, DriverSQLite:
		default:
			return errkind.New(errkind.Config, "database_sink.driver is unsupported")
		}
		if c.Database.BatchSize <= 0 {
			return errkind.New(errkind.Config, "database_sink.batch_size must be positive")
		}
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return errkind.New(errkind.Config, "object_archive.bucket must not be empty when enabled")
		}
		if c.Archive.Encryption != nil {
			switch c.Archive.Encryption.Mode {
			case SSENone, SSEAES256, SSEKMS:
			default:
				return errkind.New(errkind.Config, "object_archive.encryption mode is unsupported")
			}
		}
	}

	if c.HTTPServer.Enabled {
		if c.HTTPServer.Port <= 0 || c.HTTPServer.Port > 65535 {
			return errkind.New(errkind.Config, "http_server.port must be in range 1-65535")
		}
	}

	return nil
}
