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

package rawsock

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"

	"github.com/liqotech/maap/pkg/consts"
	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/maap/pdu"
)

// readTimeout bounds how long Run waits for a frame before checking whether it must stop.
const readTimeout = 250 * time.Millisecond

// Socket is an AF_PACKET socket bound to the AVTP ethertype on a single interface.
type Socket struct {
	name    string
	ifindex int
	addr    macaddr.Addr
	fd      int

	mutex   sync.Mutex
	handler func(*pdu.Message)
	closed  bool
}

// Open creates a socket receiving the AVTP frames of the given interface, and joins the MAAP multicast group.
func Open(name string, ifindex int, addr macaddr.Addr) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(networkOrder(consts.AVTPEthertype)))
	if err != nil {
		return nil, errors.Wrap(err, "unable to create the packet socket")
	}

	s := &Socket{name: name, ifindex: ifindex, addr: addr, fd: fd}
	if err := s.setup(); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	klog.Infof("Listening for MAAP frames on %s (index %d, station %s)", name, ifindex, addr)
	return s, nil
}

func (s *Socket) setup() error {
	if err := unix.Bind(s.fd, s.sockaddr(macaddr.Addr{})); err != nil {
		return errors.Wrapf(err, "unable to bind the packet socket to %s", s.name)
	}
	if err := unix.SetsockoptPacketMreq(s.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, membership(s.ifindex, pdu.MulticastAddr)); err != nil {
		return errors.Wrapf(err, "unable to join the MAAP multicast group on %s", s.name)
	}
	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return errors.Wrapf(err, "unable to set the read timeout of the packet socket on %s", s.name)
	}
	return nil
}

// Addr returns the station address of the interface.
func (s *Socket) Addr() macaddr.Addr {
	return s.addr
}

// Send encodes the message and transmits it on the interface.
func (s *Socket) Send(msg *pdu.Message) error {
	frame, err := pdu.Marshal(msg)
	if err != nil {
		return err
	}
	if err := unix.Sendto(s.fd, frame, 0, s.sockaddr(msg.Destination)); err != nil {
		return errors.Wrapf(err, "unable to send %s on %s", msg.Type, s.name)
	}
	return nil
}

// OnReceive registers the handler of the received messages.
func (s *Socket) OnReceive(handler func(*pdu.Message)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handler = handler
}

// Run reads frames until the context is canceled, handing the MAAP messages to the registered handler.
// It returns an error if the socket can no longer be read.
func (s *Socket) Run(ctx context.Context) error {
	buf := make([]byte, 1518)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		switch {
		case stderrors.Is(err, unix.EAGAIN), stderrors.Is(err, unix.EINTR):
			continue
		case err != nil:
			if s.isClosed() {
				return nil
			}
			return errors.Wrapf(err, "unable to receive from %s", s.name)
		}

		msg, err := pdu.Unmarshal(buf[:n])
		if err != nil {
			klog.V(4).Infof("Discarding frame received on %s: %v", s.name, err)
			continue
		}

		s.mutex.Lock()
		handler := s.handler
		s.mutex.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

// Close releases the socket.
func (s *Socket) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

func (s *Socket) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

func (s *Socket) sockaddr(dst macaddr.Addr) *unix.SockaddrLinklayer {
	sa := &unix.SockaddrLinklayer{
		Protocol: networkOrder(consts.AVTPEthertype),
		Ifindex:  s.ifindex,
	}
	if !dst.IsZero() {
		sa.Halen = uint8(len(dst))
		copy(sa.Addr[:], dst[:])
	}
	return sa
}

func membership(ifindex int, group macaddr.Addr) *unix.PacketMreq {
	mreq := &unix.PacketMreq{
		Ifindex: int32(ifindex), //nolint:gosec // interface indexes fit in 32 bits
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    uint16(len(group)),
	}
	copy(mreq.Address[:], group[:])
	return mreq
}

// networkOrder converts a 16-bit value to the network byte order expected by packet sockets.
func networkOrder(v uint16) uint16 {
	return binary.NativeEndian.Uint16(binary.BigEndian.AppendUint16(nil, v))
}
