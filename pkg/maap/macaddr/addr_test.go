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

package macaddr

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Addresses", func() {
	base := MustParseAddr("91:e0:f0:00:00:00")

	Context("parsing", func() {
		It("should accept colon and dash separated addresses", func() {
			Expect(ParseAddr("91-E0-F0-00-FF-00")).To(Equal(Addr{0x91, 0xe0, 0xf0, 0x00, 0xff, 0x00}))
			Expect(ParseAddr("91:e0:f0:00:ff:00")).To(Equal(Addr{0x91, 0xe0, 0xf0, 0x00, 0xff, 0x00}))
		})

		It("should reject malformed and 64-bit addresses", func() {
			_, err := ParseAddr("91:e0:f0")
			Expect(err).To(HaveOccurred())
			_, err = ParseAddr("02:00:5e:10:00:00:00:01")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("arithmetic", func() {
		It("should carry across bytes", func() {
			Expect(base.Add(0x100).String()).To(Equal("91:e0:f0:00:01:00"))
			Expect(AddrFromUint64(base.Uint64())).To(Equal(base))
		})

		It("should order addresses numerically", func() {
			Expect(base.Less(base.Add(1))).To(BeTrue())
			Expect(base.Add(1).Less(base)).To(BeFalse())
			Expect(base.Less(base)).To(BeFalse())
		})
	})

	It("should round trip through JSON", func() {
		data, err := json.Marshal(NewRange(base.Add(5), 2))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(Equal(`{"base":"91:e0:f0:00:00:05","count":2}`))

		var r Range
		Expect(json.Unmarshal(data, &r)).To(Succeed())
		Expect(r).To(Equal(NewRange(base.Add(5), 2)))
	})
})

var _ = Describe("Ranges", func() {
	base := MustParseAddr("91:e0:f0:00:00:00")

	DescribeTable("intersection",
		func(a, b Range, expected Range, overlaps bool) {
			got, ok := a.Intersect(b)
			Expect(ok).To(Equal(overlaps))
			Expect(got).To(Equal(expected))
			Expect(b.Overlaps(a)).To(Equal(overlaps))
		},
		Entry("disjoint", NewRange(base, 4), NewRange(base.Add(4), 4), Range{}, false),
		Entry("adjacent single addresses", NewRange(base, 1), NewRange(base.Add(1), 1), Range{}, false),
		Entry("tail overlap", NewRange(base, 4), NewRange(base.Add(3), 4), NewRange(base.Add(3), 1), true),
		Entry("contained", NewRange(base, 10), NewRange(base.Add(2), 3), NewRange(base.Add(2), 3), true),
		Entry("identical", NewRange(base, 2), NewRange(base, 2), NewRange(base, 2), true),
		Entry("empty", NewRange(base, 0), NewRange(base, 2), Range{}, false),
	)

	It("should check containment", func() {
		r := NewRange(base.Add(10), 5)
		Expect(r.Contains(base.Add(10))).To(BeTrue())
		Expect(r.Contains(base.Add(14))).To(BeTrue())
		Expect(r.Contains(base.Add(15))).To(BeFalse())
		Expect(r.Covers(NewRange(base.Add(11), 4))).To(BeTrue())
		Expect(r.Covers(NewRange(base.Add(11), 5))).To(BeFalse())
	})

	It("should reject ranges leaving the address space", func() {
		Expect(NewRange(AddrFromUint64(MaxValue), 1).IsValid()).To(BeTrue())
		Expect(NewRange(AddrFromUint64(MaxValue), 2).IsValid()).To(BeFalse())
		Expect(NewRange(base, 0).IsValid()).To(BeFalse())
	})

	It("should format single addresses and blocks", func() {
		Expect(NewRange(base, 1).String()).To(Equal("91:e0:f0:00:00:00"))
		Expect(NewRange(base, 16).String()).To(Equal("91:e0:f0:00:00:00-91:e0:f0:00:00:0f"))
	})
})
