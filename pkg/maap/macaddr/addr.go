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

// Package macaddr provides the 48-bit MAC address and address range types handled by MAAP.
package macaddr

import (
	"encoding/binary"
	"fmt"
	"net"
)

// MaxValue is the numerically highest 48-bit address.
const MaxValue = 1<<48 - 1

// Addr is a 48-bit MAC address.
type Addr [6]byte

// ParseAddr parses a MAC address in any of the formats accepted by net.ParseMAC.
func ParseAddr(s string) (Addr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return Addr{}, err
	}
	if len(hw) != 6 {
		return Addr{}, fmt.Errorf("address %q is not a 48-bit MAC address", s)
	}
	return AddrFromSlice(hw), nil
}

// MustParseAddr is like ParseAddr, but panics on error.
func MustParseAddr(s string) Addr {
	a, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddrFromSlice copies the first six bytes of b into an Addr.
func AddrFromSlice(b []byte) Addr {
	var a Addr
	copy(a[:], b)
	return a
}

// AddrFromUint64 returns the address whose numeric value is v. Bits above the 48th are discarded.
func AddrFromUint64(v uint64) Addr {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return AddrFromSlice(buf[2:])
}

// Uint64 returns the numeric value of the address.
func (a Addr) Uint64() uint64 {
	var buf [8]byte
	copy(buf[2:], a[:])
	return binary.BigEndian.Uint64(buf[:])
}

// Add returns the address n positions after a.
func (a Addr) Add(n int) Addr {
	return AddrFromUint64(a.Uint64() + uint64(n))
}

// Less reports whether a is numerically lower than b.
func (a Addr) Less(b Addr) bool {
	return a.Uint64() < b.Uint64()
}

// IsZero reports whether the address is all zeros.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// HardwareAddr converts the address into a net.HardwareAddr.
func (a Addr) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(a[:])
}

func (a Addr) String() string {
	return a.HardwareAddr().String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Addr) UnmarshalText(text []byte) error {
	parsed, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
