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

	"github.com/liqotech/maap/pkg/consts"
)

// Decision is the reaction of the policy to a conflict.
type Decision struct {
	// GiveUp is set when the session must fail instead of retrying.
	GiveUp bool
	// Delay is the time to wait before picking a new candidate range.
	Delay time.Duration
}

// Policy decides the protocol intervals and how sessions react to conflicts.
// It is not safe for concurrent use, as it shares the random source of the engine.
type Policy struct {
	rnd Random

	MaxRetries int
	BackoffMin time.Duration
	BackoffMax time.Duration
	// BackoffBase is the upper bound of the first retry delay, doubled at every subsequent retry.
	BackoffBase time.Duration
}

// NewPolicy returns the default conflict resolution policy.
func NewPolicy(rnd Random) *Policy {
	return &Policy{
		rnd:         rnd,
		MaxRetries:  consts.MAAPMaxConflictRetries,
		BackoffMin:  consts.MAAPBackoffMin,
		BackoffBase: consts.MAAPBackoffBase,
		BackoffMax:  consts.MAAPBackoffMax,
	}
}

// OnConflict returns the decision for a session that met its retries-th conflict.
func (p *Policy) OnConflict(retries int) Decision {
	if retries > p.MaxRetries {
		return Decision{GiveUp: true}
	}
	lo, hi := p.BackoffBounds(retries)
	return Decision{Delay: p.uniform(lo, hi)}
}

// BackoffBounds returns the interval the retry delay is drawn from after the retries-th conflict.
func (p *Policy) BackoffBounds(retries int) (lo, hi time.Duration) {
	hi = p.BackoffBase
	for i := 1; i < retries && hi < p.BackoffMax; i++ {
		hi *= 2
	}
	return p.BackoffMin, max(min(hi, p.BackoffMax), p.BackoffMin)
}

// ProbeInterval returns the delay before the next PROBE, or before accepting an announced range.
func (p *Policy) ProbeInterval() time.Duration {
	return p.uniform(consts.MAAPProbeIntervalBase, consts.MAAPProbeIntervalBase+consts.MAAPProbeIntervalVariation)
}

// AnnounceInterval returns the delay before announcing again an accepted range.
func (p *Policy) AnnounceInterval() time.Duration {
	return p.uniform(consts.MAAPAnnounceIntervalBase, consts.MAAPAnnounceIntervalBase+consts.MAAPAnnounceIntervalVariation)
}

// uniform draws a duration in [lo, hi], with millisecond granularity.
func (p *Policy) uniform(lo, hi time.Duration) time.Duration {
	steps := int64((hi - lo) / time.Millisecond)
	if steps <= 0 {
		return lo
	}
	return lo + time.Duration(p.rnd.Int63n(steps+1))*time.Millisecond
}
