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

package pool

import (
	"math/rand"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/liqotech/maap/pkg/maap/macaddr"
)

var _ = Describe("Allocator", func() {
	var (
		base      = macaddr.MustParseAddr("91:e0:f0:00:10:00")
		allocator *Allocator
		err       error
	)

	Context("creation", func() {
		It("should accept pools within the dynamic block", func() {
			_, err = New(DynamicPool(), fixedRandom(0))
			Expect(err).ToNot(HaveOccurred())
		})

		It("should refuse pools reaching the local and reserved blocks", func() {
			_, err = New(macaddr.NewRange(macaddr.MustParseAddr("91:e0:f0:00:fd:f0"), 32), fixedRandom(0))
			Expect(err).To(MatchError(ErrOutOfPool))
			Expect(err).To(MatchError(ContainSubstring("locally administered")))
			_, err = New(LocalPool(), fixedRandom(0))
			Expect(err).To(MatchError(ContainSubstring("locally administered")))
			_, err = New(macaddr.NewRange(macaddr.MustParseAddr("02:00:00:00:00:00"), 32), fixedRandom(0))
			Expect(err).To(MatchError(ErrOutOfPool))
		})
	})

	Context("reserving", func() {
		BeforeEach(func() {
			allocator, err = New(macaddr.NewRange(base, 16), fixedRandom(0))
			Expect(err).ToNot(HaveOccurred())
		})

		It("should hand out contiguous probing blocks", func() {
			r, err := allocator.Reserve(4, "a")
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(Equal(macaddr.NewRange(base, 4)))
			Expect(allocator.State(base.Add(3))).To(Equal(StateProbing))
			Expect(allocator.State(base.Add(4))).To(Equal(StateFree))
			Expect(allocator.Available()).To(Equal(12))
		})

		It("should skip held addresses", func() {
			Expect(allocator.ReserveAt(macaddr.NewRange(base.Add(2), 1), "a")).To(Succeed())
			r, err := allocator.Reserve(4, "b")
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(Equal(macaddr.NewRange(base.Add(3), 4)))
		})

		It("should wrap around from the random starting point", func() {
			allocator.rnd = fixedRandom(10)
			Expect(allocator.ReserveAt(macaddr.NewRange(base.Add(8), 8), "a")).To(Succeed())
			r, err := allocator.Reserve(4, "b")
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(Equal(macaddr.NewRange(base, 4)))
		})

		It("should report exhaustion when no block fits", func() {
			Expect(allocator.ReserveAt(macaddr.NewRange(base.Add(4), 1), "a")).To(Succeed())
			Expect(allocator.ReserveAt(macaddr.NewRange(base.Add(10), 1), "b")).To(Succeed())
			_, err := allocator.Reserve(6, "c")
			Expect(err).To(MatchError(ErrExhausted))
			_, err = allocator.Reserve(5, "c")
			Expect(err).ToNot(HaveOccurred())
		})

		It("should reject invalid counts", func() {
			_, err := allocator.Reserve(0, "a")
			Expect(err).To(MatchError(ErrInvalidCount))
			_, err = allocator.Reserve(17, "a")
			Expect(err).To(MatchError(ErrInvalidCount))
		})

		It("should refuse specific ranges in use or out of the pool", func() {
			Expect(allocator.ReserveAt(macaddr.NewRange(base, 4), "a")).To(Succeed())
			Expect(allocator.ReserveAt(macaddr.NewRange(base.Add(3), 2), "b")).To(MatchError(ErrUnavailable))
			Expect(allocator.ReserveAt(macaddr.NewRange(base.Add(15), 2), "b")).To(MatchError(ErrOutOfPool))
		})

		It("should promote probing ranges to reserved", func() {
			r, err := allocator.Reserve(2, "a")
			Expect(err).ToNot(HaveOccurred())
			Expect(allocator.MarkReserved(r)).To(Succeed())
			Expect(allocator.State(r.Last())).To(Equal(StateReserved))
			Expect(allocator.MarkReserved(macaddr.NewRange(base.Add(8), 2))).ToNot(Succeed())
		})
	})

	Context("releasing", func() {
		var r macaddr.Range

		BeforeEach(func() {
			allocator, err = New(macaddr.NewRange(base, 16), fixedRandom(0))
			Expect(err).ToNot(HaveOccurred())
			r, err = allocator.Reserve(4, "session")
			Expect(err).ToNot(HaveOccurred())
		})

		It("should return the bound key and free the addresses", func() {
			Expect(allocator.Release(r)).To(ConsistOf("session"))
			Expect(allocator.State(r.Base)).To(Equal(StateFree))
			Expect(allocator.Available()).To(Equal(16))
		})

		It("should be idempotent", func() {
			Expect(allocator.Release(r)).To(HaveLen(1))
			Expect(allocator.Release(r)).To(BeEmpty())
			Expect(allocator.Available()).To(Equal(16))
		})

		It("should release the whole holder of a partially overlapping range", func() {
			Expect(allocator.Release(macaddr.NewRange(base.Add(3), 1))).To(ConsistOf("session"))
			Expect(allocator.State(base)).To(Equal(StateFree))
		})

		It("should find the holder of an address", func() {
			held, key, found := allocator.Lookup(base.Add(2))
			Expect(found).To(BeTrue())
			Expect(key).To(Equal("session"))
			Expect(held).To(Equal(r))
			_, _, found = allocator.Lookup(base.Add(4))
			Expect(found).To(BeFalse())
		})
	})

	It("should never hand out overlapping ranges to concurrent callers", func() {
		allocator, err = New(macaddr.NewRange(base, 100), rand.New(rand.NewSource(42))) //nolint:gosec // test
		Expect(err).ToNot(HaveOccurred())

		var (
			wg     sync.WaitGroup
			mutex  sync.Mutex
			ranges []macaddr.Range
		)
		for range 40 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				r, err := allocator.Reserve(3, "concurrent")
				if err != nil {
					Expect(err).To(MatchError(ErrExhausted))
					return
				}
				mutex.Lock()
				ranges = append(ranges, r)
				mutex.Unlock()
			}()
		}
		wg.Wait()

		Expect(ranges).ToNot(BeEmpty())
		for i := range ranges {
			Expect(allocator.Pool().Covers(ranges[i])).To(BeTrue())
			for j := i + 1; j < len(ranges); j++ {
				Expect(ranges[i].Overlaps(ranges[j])).To(BeFalse(), "%s overlaps %s", ranges[i], ranges[j])
			}
		}
		Expect(allocator.Available()).To(Equal(100 - 3*len(ranges)))
	})
})
