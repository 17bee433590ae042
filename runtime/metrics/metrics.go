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

// Package metrics implements apis/metrics.Exporter with atomic counters
// and gauges plus a mutex-guarded latency histogram, and renders the two
// exposition formats it names: Prometheus text and a JSON health
// document.
package metrics

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirky-x/inklog/apis/health"
	"github.com/kirky-x/inklog/apis/metrics"
)

// Metrics is the concrete Recorder/Exporter. The zero value is not
// usable; construct with New.
type Metrics struct {
	logsWritten    atomic.Uint64
	logsDropped    atomic.Uint64
	channelBlocked atomic.Uint64
	sinkErrors     atomic.Uint64
	activeWorkers  atomic.Int64

	histMu  sync.Mutex
	buckets [len(metrics.LatencyBucketBoundsUS) + 1]uint64
	latSum  uint64
	latCnt  uint64

	health *health.Map
	start  time.Time
}

var _ metrics.Exporter = (*Metrics)(nil)

// New builds a Metrics instance sharing h as its per-sink health map
// (the same instance sinks and the supervisor read/write through).
func New(h *health.Map) *Metrics {
	return &Metrics{health: h, start: time.Now()}
}

func (m *Metrics) IncLogsWritten()                    { m.logsWritten.Add(1) }
func (m *Metrics) IncLogsDropped()                    { m.logsDropped.Add(1) }
func (m *Metrics) IncChannelBlocked()                  { m.channelBlocked.Add(1) }
func (m *Metrics) IncSinkErrors(sink string)           { m.sinkErrors.Add(1) }
func (m *Metrics) SetActiveWorkers(n int)              { m.activeWorkers.Store(int64(n)) }
func (m *Metrics) Health() *health.Map                 { return m.health }

// ObserveLatencyUS records one producer-to-worker latency sample into
// the fixed-bound histogram, incrementing the first bucket whose upper
// bound is >= us, or the implicit +Inf bucket otherwise.
func (m *Metrics) ObserveLatencyUS(us int64) {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	idx := len(metrics.LatencyBucketBoundsUS)
	for i, bound := range metrics.LatencyBucketBoundsUS {
		if us <= bound {
			idx = i
			break
		}
	}
	m.buckets[idx]++
	m.latSum += uint64(us)
	m.latCnt++
}

// Snapshot captures a consistent point-in-time view of every counter,
// gauge, and the histogram, plus channelUsage supplied by the caller.
func (m *Metrics) Snapshot(channelUsage float64) metrics.Snapshot {
	m.histMu.Lock()
	var buckets [len(metrics.LatencyBucketBoundsUS) + 1]uint64
	copy(buckets[:], m.buckets[:])
	sum, cnt := m.latSum, m.latCnt
	m.histMu.Unlock()

	var avg float64
	if cnt > 0 {
		avg = float64(sum) / float64(cnt)
	}

	return metrics.Snapshot{
		LogsWritten:    m.logsWritten.Load(),
		LogsDropped:    m.logsDropped.Load(),
		ChannelBlocked: m.channelBlocked.Load(),
		SinkErrors:     m.sinkErrors.Load(),
		ActiveWorkers:  int(m.activeWorkers.Load()),
		AvgLatencyUS:   avg,
		LatencyBuckets: buckets,
		UptimeSeconds:  time.Since(m.start).Seconds(),
		ChannelUsage:   channelUsage,
		SinkHealth:     m.health.Snapshot(),
	}
}

// PrometheusText renders the current state using the fixed inklog_*
// metric names.
func (m *Metrics) PrometheusText(channelUsage float64) string {
	snap := m.Snapshot(channelUsage)

	var b strings.Builder
	writeCounter(&b, "inklog_logs_written_total", "Total records successfully written to a sink.", snap.LogsWritten)
	writeCounter(&b, "inklog_logs_dropped_total", "Total records dropped before enqueue.", snap.LogsDropped)
	writeCounter(&b, "inklog_channel_blocked_total", "Total producer blocking events on a full queue.", snap.ChannelBlocked)
	writeCounter(&b, "inklog_sink_errors_total", "Total sink write failures after retries exhausted.", snap.SinkErrors)

	fmt.Fprintf(&b, "# HELP inklog_active_workers Currently running sink worker goroutines.\n")
	fmt.Fprintf(&b, "# TYPE inklog_active_workers gauge\n")
	fmt.Fprintf(&b, "inklog_active_workers %d\n", snap.ActiveWorkers)

	fmt.Fprintf(&b, "# HELP inklog_avg_latency_us Mean producer-to-worker latency in microseconds.\n")
	fmt.Fprintf(&b, "# TYPE inklog_avg_latency_us gauge\n")
	fmt.Fprintf(&b, "inklog_avg_latency_us %s\n", formatFloat(snap.AvgLatencyUS))

	fmt.Fprintf(&b, "# HELP inklog_uptime_seconds Seconds since this instance started.\n")
	fmt.Fprintf(&b, "# TYPE inklog_uptime_seconds gauge\n")
	fmt.Fprintf(&b, "inklog_uptime_seconds %s\n", formatFloat(snap.UptimeSeconds))

	fmt.Fprintf(&b, "# HELP inklog_sink_healthy Whether a sink's most recent write succeeded.\n")
	fmt.Fprintf(&b, "# TYPE inklog_sink_healthy gauge\n")
	for name, h := range snap.SinkHealth {
		v := 0
		if h.Healthy {
			v = 1
		}
		fmt.Fprintf(&b, "inklog_sink_healthy{sink=%q} %d\n", name, v)
	}

	fmt.Fprintf(&b, "# HELP inklog_latency_bucket Producer-to-worker latency histogram, microseconds.\n")
	fmt.Fprintf(&b, "# TYPE inklog_latency_bucket histogram\n")
	var running uint64
	for i, bound := range metrics.LatencyBucketBoundsUS {
		running += snap.LatencyBuckets[i]
		fmt.Fprintf(&b, "inklog_latency_bucket{le=%q} %d\n", strconv.FormatInt(bound, 10), running)
	}
	running += snap.LatencyBuckets[len(metrics.LatencyBucketBoundsUS)]
	fmt.Fprintf(&b, "inklog_latency_bucket{le=\"+Inf\"} %d\n", running)

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, v uint64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	fmt.Fprintf(b, "%s %d\n", name, v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// healthDoc mirrors the fixed Health JSON document shape.
type healthDoc struct {
	Overall       bool                         `json:"overall"`
	Sinks         map[string]health.SinkHealth `json:"sinks"`
	ChannelUsage  float64                      `json:"channel_usage"`
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Metrics       healthDocMetrics             `json:"metrics"`
}

type healthDocMetrics struct {
	LogsWritten         uint64   `json:"logs_written"`
	LogsDropped         uint64   `json:"logs_dropped"`
	ChannelBlocked      uint64   `json:"channel_blocked"`
	SinkErrors          uint64   `json:"sink_errors"`
	AvgLatencyUS        float64  `json:"avg_latency_us"`
	LatencyDistribution []uint64 `json:"latency_distribution"`
	ActiveWorkers       int      `json:"active_workers"`
}

// HealthJSON renders the Health JSON document.
func (m *Metrics) HealthJSON(channelUsage float64) ([]byte, error) {
	snap := m.Snapshot(channelUsage)

	doc := healthDoc{
		Overall:       m.health.Overall(),
		Sinks:         snap.SinkHealth,
		ChannelUsage:  channelUsage,
		UptimeSeconds: snap.UptimeSeconds,
		Metrics: healthDocMetrics{
			LogsWritten:         snap.LogsWritten,
			LogsDropped:         snap.LogsDropped,
			ChannelBlocked:      snap.ChannelBlocked,
			SinkErrors:          snap.SinkErrors,
			AvgLatencyUS:        snap.AvgLatencyUS,
			LatencyDistribution: snap.LatencyBuckets[:],
			ActiveWorkers:       snap.ActiveWorkers,
		},
	}
	return json.Marshal(doc)
}
