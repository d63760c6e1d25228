// Copyright 2019-2025 The Liqo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package maap

import (
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

// timerSlot is the single timer a session can have armed at any time.
// Every arm bumps the generation, so that expirations already queued for a previous timer are discarded.
type timerSlot struct {
	gen   uint64
	timer clock.Timer
}

type timerEvent struct {
	session string
	gen     uint64
}

// arm (re)starts the timer of the session.
func (e *Engine) arm(s *session, d time.Duration) {
	e.disarm(s)
	s.timer.gen++
	ev := timerEvent{session: s.id, gen: s.timer.gen}
	s.timer.timer = e.clock.AfterFunc(d, func() { e.enqueue(ev) })
	klog.V(5).Infof("Port %s: session %s armed timer #%d in %v (%s)", e.port, s.id, ev.gen, d, s.state)
}

// disarm stops the timer of the session, if any.
func (e *Engine) disarm(s *session) {
	if s.timer.timer != nil {
		s.timer.timer.Stop()
		s.timer.timer = nil
	}
}

// expired returns the session the event is for, unless the event is stale.
func (e *Engine) expired(ev timerEvent) (*session, bool) {
	s, found := e.sessions[ev.session]
	if !found || s.timer.timer == nil || s.timer.gen != ev.gen {
		klog.V(5).Infof("Port %s: discarding stale timer #%d of session %s", e.port, ev.gen, ev.session)
		return nil, false
	}
	s.timer.timer = nil
	return s, true
}
