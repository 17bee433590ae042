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

// Package json adapts zapcore's JSON encoder to inklog's Record
// type. The file sink uses it to write durable, machine-parseable
// lines; Record is a single concrete struct, so field extraction is a
// set of direct reads rather than duck-typed helpers.
package json

import (
	"io"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/runtime/encoder"
)

var _ encoder.Encoder = (*Encoder)(nil)

const (
	name        = "json(zap)"
	contentType = "application/json"
)

// Encoder wraps a prototype zapcore.Encoder; Encode clones it per call
// since zapcore encoders are not safe for concurrent use.
type Encoder struct {
	base zapcore.Encoder
}

// New builds a JSON line encoder. One instance is safe to share across
// goroutines; each Encode call clones the underlying zap encoder.
func New() *Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     "\n",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	return &Encoder{base: zapcore.NewJSONEncoder(cfg)}
}

func (e *Encoder) Name() string        { return name }
func (e *Encoder) ContentType() string { return contentType }

// Encode writes one JSON object plus trailing newline for r.
func (e *Encoder) Encode(r *record.Record, w io.Writer) error {
	zenc := e.base.Clone()

	entry := zapcore.Entry{
		Time:    r.Timestamp,
		Level:   mapLevel(r.Level.String()),
		Message: r.Message,
	}

	fields := []zapcore.Field{
		zap.String("target", r.Target),
	}
	if r.HasFile() {
		fields = append(fields, zap.String("file", r.File))
	}
	if r.HasLine() {
		fields = append(fields, zap.Int("line", r.Line))
	}
	if r.ThreadID != "" {
		fields = append(fields, zap.String("thread_id", r.ThreadID))
	}
	if len(r.Fields) > 0 {
		fields = append(fields, zap.Any("fields", sortedFields(r.Fields)))
	}

	buf, err := zenc.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	_, werr := w.Write(buf.Bytes())
	buf.Free()
	return werr
}

func mapLevel(s string) zapcore.Level {
	switch s {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// sortedFields returns a copy of fields as a map; zap encodes a map
// value through encoding/json, which writes keys in sorted order, so
// repeated encodes of the same record produce byte-identical JSON.
func sortedFields(fields map[string]any) map[string]any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, len(fields))
	for _, k := range keys {
		out[k] = fields[k]
	}
	return out
}
