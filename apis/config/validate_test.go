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

import (
	"errors"
	"testing"

	"github.com/kirky-x/inklog/apis/errkind"
)

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero channel capacity", func(c *Config) { c.Performance.ChannelCapacity = 0 }},
		{"zero worker threads", func(c *Config) { c.Performance.WorkerThreads = 0 }},
		{"file enabled without path", func(c *Config) {
			c.File.Enabled = true
			c.File.Path = ""
		}},
		{"encrypt without key env", func(c *Config) {
			c.File.Enabled = true
			c.File.Encrypt = true
			c.File.EncryptionKeyEnv = ""
		}},
		{"database enabled without url", func(c *Config) {
			c.Database.Enabled = true
			c.Database.URL = ""
		}},
		{"database zero batch size", func(c *Config) {
			c.Database.Enabled = true
			c.Database.BatchSize = 0
		}},
		{"unsupported driver", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Driver = Driver(99)
		}},
		{"archive enabled without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Bucket = ""
		}},
		{"http port out of range", func(c *Config) {
			c.HTTPServer.Enabled = true
			c.HTTPServer.Port = 70000
		}},
	}

	for _, m := range mutations {
		cfg := Default()
		m.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: Validate() succeeded, want error", m.name)
		}
		if !errors.Is(err, errkind.New(errkind.Config, "")) {
			t.Fatalf("%s: error kind = %v, want config", m.name, err)
		}
	}
}

func TestParseDriver_Aliases(t *testing.T) {
	cases := map[string]Driver{
		"postgres":   DriverPostgreSQL,
		"postgresql": DriverPostgreSQL,
		"MySQL":      DriverMySQL,
		"sqlite":     DriverSQLite,
		"sqlite3":    DriverSQLite,
	}
	for in, want := range cases {
		got, ok := ParseDriver(in)
		if !ok || got != want {
			t.Fatalf("ParseDriver(%q) = (%v, %v), want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseDriver("oracle"); ok {
		t.Fatalf("ParseDriver(\"oracle\") accepted an unsupported driver")
	}
}
