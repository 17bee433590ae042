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

// Package metrics declares the counters, gauges, and histogram every
// inklog instance tracks, plus the two exposition formats (Prometheus
// text, JSON health document) it can render them as. The concrete
// atomic-backed implementation lives in runtime/metrics.
package metrics

import "github.com/kirky-x/inklog/apis/health"

// LatencyBucketBoundsUS are the fixed histogram bucket upper bounds, in
// microseconds, for producer-to-worker latency. The +Inf overflow
// bucket is implicit and not listed here.
var LatencyBucketBoundsUS = [...]int64{1000, 5000, 10000, 50000, 100000, 500000, 1000000}

// Recorder is the write side every producer, worker, and supervisor
// updates. All methods must be safe to call concurrently and must
// never block.
type Recorder interface {
	IncLogsWritten()
	IncLogsDropped()
	IncChannelBlocked()
	IncSinkErrors(sink string)

	SetActiveWorkers(n int)

	// ObserveLatencyUS records one producer-to-worker latency sample, in
	// microseconds, into the fixed-bound histogram.
	ObserveLatencyUS(us int64)

	// Health returns the shared per-sink health map so sinks and the
	// supervisor can read and write through the same instance the
	// exposition methods read from.
	Health() *health.Map
}

// Snapshot is a point-in-time copy of every counter/gauge, used by both
// exposition formats so they render a consistent view.
type Snapshot struct {
	LogsWritten     uint64
	LogsDropped     uint64
	ChannelBlocked  uint64
	SinkErrors      uint64
	ActiveWorkers   int
	AvgLatencyUS    float64
	LatencyBuckets  [len(LatencyBucketBoundsUS) + 1]uint64 // last slot is +Inf
	UptimeSeconds   float64
	ChannelUsage    float64
	SinkHealth      map[string]health.SinkHealth
}

// Exporter renders a Snapshot (plus whatever live state it tracks) into
// the two wire formats described in the external interfaces.
type Exporter interface {
	Recorder

	// Snapshot captures the current counters/gauges/histogram and the
	// channel fill ratio (queueLen/queueCap, supplied by the caller
	// since only the ingestion pipeline knows queue occupancy).
	Snapshot(channelUsage float64) Snapshot

	// PrometheusText renders the current state in Prometheus text
	// exposition format.
	PrometheusText(channelUsage float64) string

	// HealthJSON renders the current state as the health JSON document.
	HealthJSON(channelUsage float64) ([]byte, error)
}
