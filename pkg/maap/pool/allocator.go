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

// Package pool implements the allocator of MAAP address ranges.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/liqotech/maap/pkg/consts"
	"github.com/liqotech/maap/pkg/maap/macaddr"
)

var (
	// ErrExhausted is returned when no free contiguous block of the requested size exists.
	ErrExhausted = errors.New("address pool exhausted")
	// ErrUnavailable is returned when a specific range is requested, but some of its addresses are in use.
	ErrUnavailable = errors.New("address range unavailable")
	// ErrOutOfPool is returned when a range does not lie within the pool.
	ErrOutOfPool = errors.New("address range out of pool")
	// ErrInvalidCount is returned when the requested number of addresses is not positive or exceeds the pool size.
	ErrInvalidCount = errors.New("invalid address count")
)

// State is the allocation state of a single address.
type State uint8

const (
	// StateFree marks an address nobody holds.
	StateFree State = iota
	// StateProbing marks an address held by a range still being probed.
	StateProbing
	// StateReserved marks an address held by an accepted range.
	StateReserved
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "Free"
	case StateProbing:
		return "Probing"
	case StateReserved:
		return "Reserved"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Random is the source of randomness used to pick candidate ranges.
type Random interface {
	Int63n(n int64) int64
}

type holder struct {
	rng macaddr.Range
	key string
}

// Allocator hands out non-overlapping ranges of a MAAP address pool.
// It is safe for concurrent use.
type Allocator struct {
	mutex sync.Mutex

	pool      macaddr.Range
	slots     []State
	available int
	// holders maps the offset of the first address of each held range to its holder.
	holders map[int]holder
	rnd     Random
}

// DynamicPool returns the whole MAAP dynamic allocation pool.
func DynamicPool() macaddr.Range {
	return macaddr.NewRange(macaddr.MustParseAddr(consts.MAAPDynamicPoolBase), consts.MAAPDynamicPoolSize)
}

// LocalPool returns the MAAP block reserved for locally administered allocation.
func LocalPool() macaddr.Range {
	return macaddr.NewRange(macaddr.MustParseAddr(consts.MAAPLocalPoolBase), consts.MAAPLocalPoolSize)
}

// New returns an allocator for the given pool, which must lie within the MAAP dynamic allocation pool.
func New(pool macaddr.Range, rnd Random) (*Allocator, error) {
	if pool.IsValid() && pool.Overlaps(LocalPool()) {
		return nil, fmt.Errorf("pool %s (%d addresses) overlaps the locally administered block %s: %w",
			pool, pool.Count, LocalPool(), ErrOutOfPool)
	}
	if !pool.IsValid() || !DynamicPool().Covers(pool) {
		return nil, fmt.Errorf("pool %s (%d addresses) is not within the MAAP dynamic pool %s: %w",
			pool, pool.Count, DynamicPool(), ErrOutOfPool)
	}
	if rnd == nil {
		return nil, errors.New("a random source is required")
	}

	return &Allocator{
		pool:      pool,
		slots:     make([]State, pool.Count),
		available: pool.Count,
		holders:   make(map[int]holder),
		rnd:       rnd,
	}, nil
}

// Pool returns the range managed by the allocator.
func (a *Allocator) Pool() macaddr.Range {
	return a.pool
}

// Available returns the number of free addresses.
func (a *Allocator) Available() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.available
}

// Reserve picks a free block of count contiguous addresses, marks it as probing and binds it to key.
// The search starts from a random offset, so that stations sharing the pool rarely pick the same candidate.
func (a *Allocator) Reserve(count int, key string) (macaddr.Range, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if count < 1 || count > len(a.slots) {
		return macaddr.Range{}, fmt.Errorf("%w: %d (pool size %d)", ErrInvalidCount, count, len(a.slots))
	}
	if count > a.available {
		return macaddr.Range{}, fmt.Errorf("%w: %d addresses requested, %d available", ErrExhausted, count, a.available)
	}

	span := len(a.slots) - count + 1
	off := int(a.rnd.Int63n(int64(span)))
	for checked := 0; checked < span; {
		used := a.lastUsed(off, count)
		if used < 0 {
			return a.take(off, count, key), nil
		}
		// No block starting before the used address can fit.
		next := used + 1
		if next >= span {
			checked += span - off
			off = 0
		} else {
			checked += next - off
			off = next
		}
	}
	return macaddr.Range{}, fmt.Errorf("%w: no contiguous block of %d addresses", ErrExhausted, count)
}

// ReserveAt marks the given range as probing and binds it to key.
func (a *Allocator) ReserveAt(r macaddr.Range, key string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	off, err := a.offset(r)
	if err != nil {
		return err
	}
	if used := a.lastUsed(off, r.Count); used >= 0 {
		return fmt.Errorf("%w: %s is %s", ErrUnavailable, a.pool.Base.Add(used), a.slots[used])
	}
	a.take(off, r.Count, key)
	return nil
}

// MarkReserved promotes a probing range to reserved.
func (a *Allocator) MarkReserved(r macaddr.Range) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	off, err := a.offset(r)
	if err != nil {
		return err
	}
	if h, found := a.holders[off]; !found || h.rng != r {
		return fmt.Errorf("range %s is not held", r)
	}
	for i := off; i < off+r.Count; i++ {
		a.slots[i] = StateReserved
	}
	return nil
}

// Release returns to the free state every held range overlapping r, and returns the keys they were bound to.
// Releasing free addresses is a no-op.
func (a *Allocator) Release(r macaddr.Range) []string {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var keys []string
	for off, h := range a.holders {
		if !h.rng.Overlaps(r) {
			continue
		}
		for i := off; i < off+h.rng.Count; i++ {
			a.slots[i] = StateFree
		}
		a.available += h.rng.Count
		delete(a.holders, off)
		keys = append(keys, h.key)
	}
	return keys
}

// Lookup returns the held range containing the address, and the key it is bound to.
func (a *Allocator) Lookup(addr macaddr.Addr) (macaddr.Range, string, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for _, h := range a.holders {
		if h.rng.Contains(addr) {
			return h.rng, h.key, true
		}
	}
	return macaddr.Range{}, "", false
}

// State returns the allocation state of an address of the pool.
func (a *Allocator) State(addr macaddr.Addr) (State, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	off, err := a.offset(macaddr.NewRange(addr, 1))
	if err != nil {
		return StateFree, err
	}
	return a.slots[off], nil
}

// offset returns the position of the first address of r in the pool.
func (a *Allocator) offset(r macaddr.Range) (int, error) {
	if !a.pool.Covers(r) {
		return 0, fmt.Errorf("%w: %s is not within %s", ErrOutOfPool, r, a.pool)
	}
	return int(r.Base.Uint64() - a.pool.Base.Uint64()), nil
}

// lastUsed returns the offset of the last non-free address among count addresses from off, or -1.
func (a *Allocator) lastUsed(off, count int) int {
	for i := off + count - 1; i >= off; i-- {
		if a.slots[i] != StateFree {
			return i
		}
	}
	return -1
}

func (a *Allocator) take(off, count int, key string) macaddr.Range {
	for i := off; i < off+count; i++ {
		a.slots[i] = StateProbing
	}
	a.available -= count
	r := macaddr.NewRange(a.pool.Base.Add(off), count)
	a.holders[off] = holder{rng: r, key: key}
	return r
}
