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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/liqotech/maap/pkg/consts"
)

var _ = Describe("Policy", func() {
	var policy *Policy

	BeforeEach(func() {
		policy = NewPolicy(seeded(1))
	})

	It("should keep the probe interval within its bounds", func() {
		lo := consts.MAAPProbeIntervalBase
		hi := consts.MAAPProbeIntervalBase + consts.MAAPProbeIntervalVariation
		seen := map[time.Duration]bool{}
		for range 10000 {
			d := policy.ProbeInterval()
			Expect(d).To(BeNumerically(">=", lo))
			Expect(d).To(BeNumerically("<=", hi))
			seen[d] = true
		}
		// Both ends of the window are reachable.
		Expect(seen).To(HaveKey(lo))
		Expect(seen).To(HaveKey(hi))
	})

	It("should keep the announce interval within its bounds", func() {
		for range 10000 {
			d := policy.AnnounceInterval()
			Expect(d).To(BeNumerically(">=", 30*time.Second))
			Expect(d).To(BeNumerically("<=", 31890*time.Millisecond))
		}
	})

	It("should widen the backoff window at every retry, up to its cap", func() {
		lo, hi := policy.BackoffBounds(1)
		Expect(lo).To(Equal(20 * time.Millisecond))
		Expect(hi).To(Equal(100 * time.Millisecond))
		_, hi = policy.BackoffBounds(3)
		Expect(hi).To(Equal(400 * time.Millisecond))
		_, hi = policy.BackoffBounds(30)
		Expect(hi).To(Equal(1600 * time.Millisecond))
	})

	It("should draw retry delays within the backoff window", func() {
		for retries := 1; retries <= consts.MAAPMaxConflictRetries; retries++ {
			lo, hi := policy.BackoffBounds(retries)
			for range 1000 {
				decision := policy.OnConflict(retries)
				Expect(decision.GiveUp).To(BeFalse())
				Expect(decision.Delay).To(And(BeNumerically(">=", lo), BeNumerically("<=", hi)))
			}
		}
	})

	It("should give up once the retry ceiling is exceeded", func() {
		Expect(policy.OnConflict(consts.MAAPMaxConflictRetries).GiveUp).To(BeFalse())
		Expect(policy.OnConflict(consts.MAAPMaxConflictRetries + 1).GiveUp).To(BeTrue())
	})

	It("should never draw outside the window with extreme random sources", func() {
		policy = NewPolicy(fixedRandom(1 << 40))
		Expect(policy.ProbeInterval()).To(Equal(570 * time.Millisecond))
		policy = NewPolicy(fixedRandom(0))
		Expect(policy.ProbeInterval()).To(Equal(500 * time.Millisecond))
	})
})
