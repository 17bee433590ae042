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

// Package diag is inklog's own internal logger: the channel every
// component uses to report a failure it cannot propagate to a producer
// (the producer path never fails). It wraps *zap.Logger, the same
// backend the JSON encoder builds on, so inklog's self-diagnostics
// look exactly like the structured logs inklog itself produces for
// its host.
package diag

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu      sync.RWMutex
	current *zap.Logger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	current = l.Named("inklog")
}

// Set installs logger as the process-wide internal diagnostics logger.
// A manager built with manager.WithLogger calls this so every sink and
// worker it owns reports through the same *zap.Logger the host supplied.
func Set(logger *zap.Logger) {
	if logger == nil {
		return
	}
	mu.Lock()
	current = logger.Named("inklog")
	mu.Unlock()
}

// L returns the current internal diagnostics logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
