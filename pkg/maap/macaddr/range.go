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

import "fmt"

// Range is a block of Count consecutive addresses starting at Base.
type Range struct {
	Base  Addr `json:"base"`
	Count int  `json:"count"`
}

// NewRange returns the range of count addresses starting at base.
func NewRange(base Addr, count int) Range {
	return Range{Base: base, Count: count}
}

// IsValid reports whether the range holds at least one address and does not overflow the address space.
func (r Range) IsValid() bool {
	return r.Count > 0 && r.Base.Uint64()+uint64(r.Count)-1 <= MaxValue
}

// Last returns the last address of the range.
func (r Range) Last() Addr {
	return r.Base.Add(r.Count - 1)
}

// Contains reports whether the address belongs to the range.
func (r Range) Contains(a Addr) bool {
	if r.Count <= 0 {
		return false
	}
	v := a.Uint64()
	return v >= r.Base.Uint64() && v <= r.Last().Uint64()
}

// Covers reports whether o lies entirely within r.
func (r Range) Covers(o Range) bool {
	return o.Count > 0 && r.Contains(o.Base) && r.Contains(o.Last())
}

// Overlaps reports whether the two ranges share at least one address.
func (r Range) Overlaps(o Range) bool {
	_, ok := r.Intersect(o)
	return ok
}

// Intersect returns the addresses shared by the two ranges.
func (r Range) Intersect(o Range) (Range, bool) {
	if r.Count <= 0 || o.Count <= 0 {
		return Range{}, false
	}
	start := max(r.Base.Uint64(), o.Base.Uint64())
	end := min(r.Last().Uint64(), o.Last().Uint64())
	if start > end {
		return Range{}, false
	}
	return Range{Base: AddrFromUint64(start), Count: int(end-start) + 1}, true
}

func (r Range) String() string {
	if r.Count <= 1 {
		return r.Base.String()
	}
	return fmt.Sprintf("%s-%s", r.Base, r.Last())
}
