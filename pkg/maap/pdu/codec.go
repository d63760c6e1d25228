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

package pdu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/liqotech/maap/pkg/consts"
	"github.com/liqotech/maap/pkg/maap/macaddr"
)

const (
	// EthernetHeaderSize is the size of an untagged Ethernet header.
	EthernetHeaderSize = 14
	// MinFrameSize is the minimum Ethernet frame size without FCS. Shorter frames are padded.
	MinFrameSize = 60
)

// MAAP PDU offsets, relative to the end of the Ethernet header.
const (
	pduSubtype          = 0
	pduMessageType      = 1
	pduVersionLength    = 2
	pduRequestedAddress = 12
	pduRequestedCount   = 18
	pduConflictAddress  = 20
	pduConflictCount    = 26

	// Size is the size of a MAAP PDU.
	Size = 28
)

var (
	// ErrTruncated is returned when a frame is too short to hold a MAAP PDU.
	ErrTruncated = errors.New("frame too short for a MAAP PDU")
	// ErrNotMAAP is returned when a frame does not carry a MAAP PDU.
	ErrNotMAAP = errors.New("frame does not carry a MAAP PDU")
)

// LayerTypeMAAP is the gopacket layer type of MAAP PDUs.
var LayerTypeMAAP = gopacket.RegisterLayerType(2201, gopacket.LayerTypeMetadata{
	Name:    "MAAP",
	Decoder: gopacket.DecodeFunc(decodeLayer),
})

func init() {
	// Every AVTP frame is handed to the MAAP layer, which rejects the other subtypes.
	layers.EthernetTypeMetadata[consts.AVTPEthertype] = layers.EnumMetadata{
		DecodeWith: gopacket.DecodeFunc(decodeLayer),
		Name:       "AVTP",
		LayerType:  LayerTypeMAAP,
	}
}

// Layer is the MAAP PDU carried after the Ethernet header.
type Layer struct {
	layers.BaseLayer

	Type      MessageType
	Requested macaddr.Range
	Conflict  macaddr.Range
}

var (
	_ gopacket.DecodingLayer     = &Layer{}
	_ gopacket.SerializableLayer = &Layer{}
)

// LayerType implements gopacket.Layer.
func (l *Layer) LayerType() gopacket.LayerType { return LayerTypeMAAP }

// CanDecode implements gopacket.DecodingLayer.
func (l *Layer) CanDecode() gopacket.LayerClass { return LayerTypeMAAP }

// NextLayerType implements gopacket.DecodingLayer. The bytes following the PDU are padding.
func (l *Layer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

// DecodeFromBytes implements gopacket.DecodingLayer.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < Size {
		df.SetTruncated()
		return ErrTruncated
	}
	if data[pduSubtype] != consts.AVTPSubtypeMAAP {
		return ErrNotMAAP
	}
	msgType := MessageType(data[pduMessageType] & 0x0F)
	if !msgType.IsValid() {
		return fmt.Errorf("%w: unknown message type %d", ErrNotMAAP, uint8(msgType))
	}
	if length := binary.BigEndian.Uint16(data[pduVersionLength:]) & 0x07FF; length < consts.MAAPControlDataLength {
		return fmt.Errorf("%w: control data length %d", ErrTruncated, length)
	}

	l.Type = msgType
	l.Requested = macaddr.NewRange(macaddr.AddrFromSlice(data[pduRequestedAddress:]),
		int(binary.BigEndian.Uint16(data[pduRequestedCount:])))
	l.Conflict = macaddr.NewRange(macaddr.AddrFromSlice(data[pduConflictAddress:]),
		int(binary.BigEndian.Uint16(data[pduConflictCount:])))
	l.BaseLayer = layers.BaseLayer{Contents: data[:Size], Payload: data[Size:]}
	return nil
}

// SerializeTo implements gopacket.SerializableLayer.
func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, _ gopacket.SerializeOptions) error {
	if l.Requested.Count < 0 || l.Requested.Count > 0xFFFF || l.Conflict.Count < 0 || l.Conflict.Count > 0xFFFF {
		return fmt.Errorf("range count out of bounds in %s PDU", l.Type)
	}

	p, err := b.PrependBytes(Size)
	if err != nil {
		return err
	}
	// sv, the AVTP version and the stream ID are zero.
	clear(p)
	p[pduSubtype] = consts.AVTPSubtypeMAAP
	p[pduMessageType] = uint8(l.Type) & 0x0F
	binary.BigEndian.PutUint16(p[pduVersionLength:], consts.MAAPVersion<<11|consts.MAAPControlDataLength)
	copy(p[pduRequestedAddress:], l.Requested.Base[:])
	binary.BigEndian.PutUint16(p[pduRequestedCount:], uint16(l.Requested.Count))
	copy(p[pduConflictAddress:], l.Conflict.Base[:])
	binary.BigEndian.PutUint16(p[pduConflictCount:], uint16(l.Conflict.Count))
	return nil
}

func decodeLayer(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return nil
}

// Frame is an Ethernet frame carrying a MAAP PDU.
type Frame []byte

// Marshal encodes the message into a new, padded Ethernet frame.
func Marshal(m *Message) (Frame, error) {
	if !m.Type.IsValid() {
		return nil, fmt.Errorf("invalid message type %d", uint8(m.Type))
	}

	eth := &layers.Ethernet{
		SrcMAC:       m.Source.HardwareAddr(),
		DstMAC:       m.Destination.HardwareAddr(),
		EthernetType: layers.EthernetType(consts.AVTPEthertype),
	}
	maap := &Layer{Type: m.Type, Requested: m.Requested, Conflict: m.Conflict}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, maap); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m, err)
	}
	f := Frame(buf.Bytes())
	if len(f) < MinFrameSize {
		f = append(f, make([]byte, MinFrameSize-len(f))...)
	}
	return f, nil
}

// Unmarshal decodes an Ethernet frame into a message.
func Unmarshal(b []byte) (*Message, error) {
	if len(b) < EthernetHeaderSize+Size {
		return nil, ErrTruncated
	}

	var (
		eth     layers.Ethernet
		maap    Layer
		decoded []gopacket.LayerType
	)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &maap)
	parser.IgnoreUnsupported = true
	if err := parser.DecodeLayers(b, &decoded); err != nil {
		return nil, err
	}
	if !slices.Contains(decoded, LayerTypeMAAP) {
		return nil, ErrNotMAAP
	}

	m := &Message{
		Type:        maap.Type,
		Source:      macaddr.AddrFromSlice(eth.SrcMAC),
		Destination: macaddr.AddrFromSlice(eth.DstMAC),
		Requested:   maap.Requested,
		Conflict:    maap.Conflict,
	}
	if m.Requested.Count == 0 {
		return nil, fmt.Errorf("%s carries an empty requested range", m.Type)
	}
	return m, nil
}

func (f Frame) ethernet() *layers.Ethernet {
	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(f, gopacket.NilDecodeFeedback); err != nil {
		return &layers.Ethernet{}
	}
	return eth
}

// Destination returns the destination address of the frame.
func (f Frame) Destination() macaddr.Addr {
	return macaddr.AddrFromSlice(f.ethernet().DstMAC)
}

// Source returns the source address of the frame.
func (f Frame) Source() macaddr.Addr {
	return macaddr.AddrFromSlice(f.ethernet().SrcMAC)
}

// Ethertype returns the ethertype of the frame.
func (f Frame) Ethertype() uint16 {
	return uint16(f.ethernet().EthernetType)
}
