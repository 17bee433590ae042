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

// Package config holds the flat, enumerated configuration surface for
// every inklog component. It only declares structs, defaults, and
// validation; reading a file, watching it, or applying INKLOG_…
// environment overrides is left to a host application or a thin
// collaborator built on top of this package.
package config

import (
	"github.com/kirky-x/inklog/apis/level"
	"github.com/kirky-x/inklog/apis/sink/policy"
)

// Config is the root configuration object. Every sink section carries
// its own Enabled flag, so "not configured" is expressed in the value
// itself; Default returns one fully populated section per concern.
type Config struct {
	Global      GlobalConfig
	Console     ConsoleSinkConfig
	File        FileSinkConfig
	Database    DatabaseSinkConfig
	Archive     ArchiveConfig
	Performance PerformanceConfig
	HTTPServer  HTTPServerConfig
}

// Default returns the configuration a fresh process starts with: level
// info, console sink enabled and colored, file sink enabled at
// logs/app.log, database sink and object archive disabled.
func Default() Config {
	return Config{
		Global:      DefaultGlobalConfig(),
		Console:     DefaultConsoleSinkConfig(),
		File:        DefaultFileSinkConfig(),
		Database:    DefaultDatabaseSinkConfig(),
		Archive:     DefaultArchiveConfig(),
		Performance: DefaultPerformanceConfig(),
		HTTPServer:  DefaultHTTPServerConfig(),
	}
}

// GlobalConfig carries the settings that apply across every sink.
type GlobalConfig struct {
	Level          level.Level
	Format         string
	MaskingEnabled bool
}

// DefaultGlobalConfig: info level, the
// canonical template, masking on.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Level:          level.Info,
		Format:         "{timestamp} [{level}] {target} - {message}{fields}",
		MaskingEnabled: true,
	}
}

// PerformanceConfig sizes the bounded queue and the fixed worker set.
type PerformanceConfig struct {
	ChannelCapacity int
	WorkerThreads   int

	// Backpressure picks what a producer does when a sink's queue is
	// full. Defaults to Block (at-least-once); operators can opt into
	// dropping instead.
	Backpressure policy.Backpressure
}

// DefaultPerformanceConfig: a 10,000-record queue,
// three worker threads (one slot more than the {file, database} set
// needs, leaving room for a future asynchronous sink), blocking
// backpressure.
func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{
		ChannelCapacity: 10000,
		WorkerThreads:   3,
		Backpressure:    policy.Block,
	}
}

// HTTPErrorMode controls what the embedded metrics/health server does
// when it cannot bind its listener.
type HTTPErrorMode uint8

const (
	// ErrorModePanic panics on bind failure. The default.
	ErrorModePanic HTTPErrorMode = iota
	// ErrorModeWarn logs and continues without the server.
	ErrorModeWarn
	// ErrorModeStrict returns an error from startup, blocking it.
	ErrorModeStrict
)

func (m HTTPErrorMode) String() string {
	switch m {
	case ErrorModePanic:
		return "panic"
	case ErrorModeWarn:
		return "warn"
	case ErrorModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// HTTPServerConfig configures the optional metrics/health HTTP endpoint.
type HTTPServerConfig struct {
	Enabled     bool
	Host        string
	Port        int
	MetricsPath string
	HealthPath  string
	ErrorMode   HTTPErrorMode
}

// DefaultHTTPServerConfig disables the server by default, listening
// on loopback only when turned on.
func DefaultHTTPServerConfig() HTTPServerConfig {
	return HTTPServerConfig{
		Enabled:     false,
		Host:        "127.0.0.1",
		Port:        9090,
		MetricsPath: "/metrics",
		HealthPath:  "/health",
		ErrorMode:   ErrorModePanic,
	}
}
