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

// Package pdu defines the MAAP protocol messages and their Ethernet frame encoding.
package pdu

import (
	"fmt"

	"github.com/liqotech/maap/pkg/consts"
	"github.com/liqotech/maap/pkg/maap/macaddr"
)

// MessageType is the MAAP message type.
type MessageType uint8

const (
	// MessageTypeProbe asks whether a range is in use.
	MessageTypeProbe MessageType = 1
	// MessageTypeDefend tells a prober that (part of) its requested range is in use.
	MessageTypeDefend MessageType = 2
	// MessageTypeAnnounce advertises a range in use.
	MessageTypeAnnounce MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeProbe:
		return "PROBE"
	case MessageTypeDefend:
		return "DEFEND"
	case MessageTypeAnnounce:
		return "ANNOUNCE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// IsValid reports whether the message type is defined by the protocol.
func (t MessageType) IsValid() bool {
	return t >= MessageTypeProbe && t <= MessageTypeAnnounce
}

// MulticastAddr is the destination of PROBE and ANNOUNCE messages.
var MulticastAddr = macaddr.MustParseAddr(consts.MAAPMulticastAddress)

// Message is a MAAP protocol message.
type Message struct {
	Type MessageType
	// Source is the station address of the sender, used as sender identifier.
	Source macaddr.Addr
	// Destination is the MAAP multicast address, or the prober address for DEFEND messages.
	Destination macaddr.Addr
	// Requested is the range being probed or announced. A DEFEND echoes the range requested by the prober.
	Requested macaddr.Range
	// Conflict is the portion of Requested already in use. Only meaningful for DEFEND messages.
	Conflict macaddr.Range
}

// NewProbe returns a PROBE for the given range.
func NewProbe(src macaddr.Addr, r macaddr.Range) *Message {
	return &Message{Type: MessageTypeProbe, Source: src, Destination: MulticastAddr, Requested: r}
}

// NewAnnounce returns an ANNOUNCE for the given range.
func NewAnnounce(src macaddr.Addr, r macaddr.Range) *Message {
	return &Message{Type: MessageTypeAnnounce, Source: src, Destination: MulticastAddr, Requested: r}
}

// NewDefend returns the DEFEND answering a PROBE or ANNOUNCE for requested,
// overlapping the locally owned range on conflict.
func NewDefend(src, dst macaddr.Addr, requested, conflict macaddr.Range) *Message {
	return &Message{Type: MessageTypeDefend, Source: src, Destination: dst, Requested: requested, Conflict: conflict}
}

func (m *Message) String() string {
	if m.Type == MessageTypeDefend {
		return fmt.Sprintf("%s from %s to %s (requested %s, conflict %s)", m.Type, m.Source, m.Destination, m.Requested, m.Conflict)
	}
	return fmt.Sprintf("%s from %s (requested %s)", m.Type, m.Source, m.Requested)
}
