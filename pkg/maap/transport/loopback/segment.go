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

// Package loopback provides an in-memory Ethernet segment connecting MAAP engines, used for tests and simulations.
package loopback

import (
	"fmt"
	"sync"

	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/maap/pdu"
)

// Filter decides whether a frame sent by src is delivered to dst.
type Filter func(src, dst macaddr.Addr, msg *pdu.Message) bool

// Segment is a shared medium: frames sent by a port reach every other port they are addressed to.
type Segment struct {
	mutex  sync.RWMutex
	ports  []*Port
	filter Filter
}

// NewSegment returns an empty segment.
func NewSegment() *Segment {
	return &Segment{}
}

// Attach connects a new port with the given station address to the segment.
func (s *Segment) Attach(addr macaddr.Addr) *Port {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p := &Port{segment: s, addr: addr}
	s.ports = append(s.ports, p)
	return p
}

// SetFilter installs a filter deciding which frames are delivered. A nil filter delivers everything.
func (s *Segment) SetFilter(filter Filter) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.filter = filter
}

func (s *Segment) deliver(from *Port, frame pdu.Frame) {
	s.mutex.RLock()
	ports, filter := s.ports, s.filter
	s.mutex.RUnlock()

	dst := frame.Destination()
	for _, p := range ports {
		if p == from || (dst != pdu.MulticastAddr && dst != p.addr) {
			continue
		}
		// Every receiver decodes its own copy of the frame.
		msg, err := pdu.Unmarshal(frame)
		if err != nil {
			continue
		}
		if filter != nil && !filter(from.addr, p.addr, msg) {
			continue
		}
		p.receive(msg)
	}
}

// Port is the attachment of a station to the segment. It implements the transport of a MAAP engine.
type Port struct {
	segment *Segment
	addr    macaddr.Addr

	mutex   sync.Mutex
	handler func(*pdu.Message)
	sent    []*pdu.Message
	failure error
}

// Addr returns the station address of the port.
func (p *Port) Addr() macaddr.Addr {
	return p.addr
}

// Send encodes the message and delivers it to the addressed ports.
func (p *Port) Send(msg *pdu.Message) error {
	p.mutex.Lock()
	if p.failure != nil {
		p.mutex.Unlock()
		return p.failure
	}
	if msg.Source != p.addr {
		p.mutex.Unlock()
		return fmt.Errorf("message source %s does not match port address %s", msg.Source, p.addr)
	}
	frame, err := pdu.Marshal(msg)
	if err != nil {
		p.mutex.Unlock()
		return err
	}
	copied := *msg
	p.sent = append(p.sent, &copied)
	p.mutex.Unlock()

	p.segment.deliver(p, frame)
	return nil
}

// OnReceive registers the handler of the messages addressed to the port.
func (p *Port) OnReceive(handler func(*pdu.Message)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.handler = handler
}

// Inject hands a message to the port, as if it was received from the segment.
func (p *Port) Inject(msg *pdu.Message) {
	p.receive(msg)
}

// Fail makes every subsequent Send fail with the given error. A nil error restores the port.
func (p *Port) Fail(err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.failure = err
}

// Sent returns the messages sent through the port.
func (p *Port) Sent() []*pdu.Message {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]*pdu.Message(nil), p.sent...)
}

// SentOfType returns the messages of the given type sent through the port.
func (p *Port) SentOfType(t pdu.MessageType) []*pdu.Message {
	var msgs []*pdu.Message
	for _, msg := range p.Sent() {
		if msg.Type == t {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (p *Port) receive(msg *pdu.Message) {
	p.mutex.Lock()
	handler := p.handler
	p.mutex.Unlock()
	if handler != nil {
		handler(msg)
	}
}
