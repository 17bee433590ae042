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

package ingest

import (
	"errors"
	"testing"

	"github.com/kirky-x/inklog/apis/health"
)

func TestSupervisor_CommandsRecoveryPastThreshold(t *testing.T) {
	h := health.NewMap()
	h.Register("file")
	ctrl := make(chan ControlMessage, 1)
	s := NewSupervisor(h, map[string]chan ControlMessage{"file": ctrl})

	failErr := errors.New("enoent")
	for i := 0; i < recoverAfterFailures; i++ {
		h.Failure("file", failErr)
	}
	s.inspect()
	select {
	case <-ctrl:
		t.Fatalf("recovery commanded at threshold, want strictly above")
	default:
	}

	h.Failure("file", failErr)
	s.inspect()
	select {
	case msg := <-ctrl:
		if !msg.RecoverSink {
			t.Fatalf("control message = %+v, want RecoverSink", msg)
		}
	default:
		t.Fatalf("no recovery commanded above threshold")
	}
}

func TestSupervisor_RespectsRecoveryCooldown(t *testing.T) {
	h := health.NewMap()
	h.Register("database")
	ctrl := make(chan ControlMessage, 1)
	s := NewSupervisor(h, map[string]chan ControlMessage{"database": ctrl})

	for i := 0; i < recoverAfterFailures+2; i++ {
		h.Failure("database", errors.New("conn refused"))
	}

	s.inspect()
	if len(ctrl) != 1 {
		t.Fatalf("first inspect sent %d commands, want 1", len(ctrl))
	}
	<-ctrl

	// Still failing, but a recovery attempt was just stamped.
	s.inspect()
	if len(ctrl) != 0 {
		t.Fatalf("second inspect re-commanded recovery within cooldown")
	}
}

func TestSupervisor_IgnoresHealthySinks(t *testing.T) {
	h := health.NewMap()
	h.Register("file")
	ctrl := make(chan ControlMessage, 1)
	s := NewSupervisor(h, map[string]chan ControlMessage{"file": ctrl})

	h.Success("file")
	s.inspect()
	if len(ctrl) != 0 {
		t.Fatalf("recovery commanded for a healthy sink")
	}
}
