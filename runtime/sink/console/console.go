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

// Package console implements the synchronous, human-oriented sink
// written directly from the producer path.
package console

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/level"
	"github.com/kirky-x/inklog/apis/record"
	"github.com/kirky-x/inklog/apis/sink"
	"github.com/kirky-x/inklog/runtime/template"
)

var levelColor = map[level.Level]*color.Color{
	level.Error: color.New(color.FgRed),
	level.Warn:  color.New(color.FgYellow),
	level.Info:  color.New(color.FgGreen),
	level.Debug: color.New(color.FgBlue),
	level.Trace: color.New(color.FgMagenta),
}

// Sink writes rendered lines to stdout and stderr, choosing the stream
// per record level and optionally coloring the message.
type Sink struct {
	mu sync.Mutex

	tpl          *template.Template
	stderrLevels map[level.Level]bool
	colored      bool

	stdout *bufio.Writer
	stderr *bufio.Writer

	stdoutIsTerminal bool
	stderrIsTerminal bool
}

var _ sink.Sink = (*Sink)(nil)

// New builds the console sink from cfg.Global.Format and cfg.Console.
// stdout/stderr are accepted as parameters (rather than hardcoded
// os.Stdout/os.Stderr) so tests can substitute files; terminal (and so
// color) detection runs on the streams actually passed in.
func New(cfg config.Config, stdout, stderr *os.File) *Sink {
	stderrSet := make(map[level.Level]bool, len(cfg.Console.StderrLevels))
	for _, l := range cfg.Console.StderrLevels {
		stderrSet[l] = true
	}

	return &Sink{
		tpl:              template.New(cfg.Global.Format),
		stderrLevels:     stderrSet,
		colored:          cfg.Console.Colored,
		stdout:           bufio.NewWriter(stdout),
		stderr:           bufio.NewWriter(stderr),
		stdoutIsTerminal: term.IsTerminal(int(stdout.Fd())),
		stderrIsTerminal: term.IsTerminal(int(stderr.Fd())),
	}
}

func (s *Sink) Name() string { return "console" }

// colorEnabled applies the ANSI decision table from the external
// interface: configured on, destination is a terminal, NO_COLOR unset,
// FORCE_COLOR unset, empty or "1", TERM not "dumb".
func colorEnabled(configuredOn, isTerminal bool) bool {
	if !configuredOn || !isTerminal {
		return false
	}
	if _, disabled := os.LookupEnv("NO_COLOR"); disabled {
		return false
	}
	if v, forced := os.LookupEnv("FORCE_COLOR"); forced && v != "1" && v != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

func (s *Sink) Write(r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.tpl.RenderString(r)

	toStderr := s.stderrLevels[r.Level]
	w := s.stdout
	isTerminal := s.stdoutIsTerminal
	if toStderr {
		w = s.stderr
		isTerminal = s.stderrIsTerminal
	}

	if colorEnabled(s.colored, isTerminal) {
		if c, ok := levelColor[r.Level]; ok {
			line = c.Sprint(line)
		}
	}

	_, err := io.WriteString(w, line+"\n")
	return err
}

func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stdout.Flush(); err != nil {
		return err
	}
	return s.stderr.Flush()
}

func (s *Sink) IsHealthy() bool { return true }

func (s *Sink) Shutdown() error { return s.Flush() }
