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
	"context"
	"time"

	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/maap/pdu"
)

// Transport sends and receives MAAP messages on a single port.
// Delivery is best-effort: messages may be lost, duplicated or reordered.
type Transport interface {
	// Send transmits a message. It must not block for long, as it is called by the dispatch loop.
	Send(msg *pdu.Message) error
	// OnReceive registers the handler invoked for every message received from the port.
	OnReceive(handler func(msg *pdu.Message))
}

// State is the state of a probe session.
type State string

const (
	// StateInit is the state of a session waiting to pick a candidate range.
	StateInit State = "Init"
	// StateProbing is the state of a session probing its candidate range.
	StateProbing State = "Probing"
	// StateAnnouncing is the state of a session that announced its range and waits for the confirmation timer.
	StateAnnouncing State = "Announcing"
	// StateDefending is the state of a session sending a DEFEND for its range. It is held only while the
	// DEFEND is being sent, and never observed outside the dispatch loop.
	StateDefending State = "Defending"
	// StateAccepted is the state of a session owning its range.
	StateAccepted State = "Accepted"
	// StateFailed is the terminal state of a session.
	StateFailed State = "Failed"
)

// gaugedStates are the states exported by the sessions gauge. StateDefending is transient, hence left out.
var gaugedStates = []State{StateInit, StateProbing, StateAnnouncing, StateAccepted, StateFailed}

// AllocationRequest is a request for a range of addresses.
type AllocationRequest struct {
	Count int
	Owner string
	// Base optionally asks for the range starting at the given address. Ranges picked after a conflict are random.
	Base *macaddr.Addr
}

// Reservation is a range of addresses owned by the local station, until released.
type Reservation struct {
	ID         string        `json:"id"`
	Owner      string        `json:"owner,omitempty"`
	Range      macaddr.Range `json:"range"`
	AcquiredAt time.Time     `json:"acquiredAt"`
}

// SessionStatus is a snapshot of a probe session.
type SessionStatus struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner,omitempty"`
	Count       int           `json:"count"`
	State       State         `json:"state"`
	Range       macaddr.Range `json:"range"`
	Probes      int           `json:"probes"`
	Retries     int           `json:"retries"`
	RequestedAt time.Time     `json:"requestedAt"`
	AcceptedAt  *time.Time    `json:"acceptedAt,omitempty"`
}

// session is the protocol state of a single allocation request. It is only accessed by the dispatch loop.
type session struct {
	id    string
	owner string
	count int

	rng     macaddr.Range
	state   State
	probes  int
	retries int
	timer   timerSlot

	requestedAt time.Time
	acceptedAt  time.Time

	acq *Acquisition
}

func (s *session) status() SessionStatus {
	st := SessionStatus{
		ID:          s.id,
		Owner:       s.owner,
		Count:       s.count,
		State:       s.state,
		Range:       s.rng,
		Probes:      s.probes,
		Retries:     s.retries,
		RequestedAt: s.requestedAt,
	}
	if s.state == StateAccepted {
		acceptedAt := s.acceptedAt
		st.AcceptedAt = &acceptedAt
	}
	return st
}

// Acquisition tracks an allocation request, from its submission to the end of the resulting reservation.
type Acquisition struct {
	ID    string
	Owner string
	Count int

	engine *Engine

	done        chan struct{}
	reservation *Reservation
	err         error

	terminated chan struct{}
	cause      error
}

func newAcquisition(e *Engine, s *session) *Acquisition {
	return &Acquisition{
		ID:         s.id,
		Owner:      s.owner,
		Count:      s.count,
		engine:     e,
		done:       make(chan struct{}),
		terminated: make(chan struct{}),
	}
}

// Done is closed once the request either obtained a reservation or failed.
func (a *Acquisition) Done() <-chan struct{} {
	return a.done
}

// Result returns the outcome of the request. Both values are nil while the request is pending.
func (a *Acquisition) Result() (*Reservation, error) {
	select {
	case <-a.done:
		return a.reservation, a.err
	default:
		return nil, nil
	}
}

// Wait blocks until the request completes or the context is canceled.
func (a *Acquisition) Wait(ctx context.Context) (*Reservation, error) {
	select {
	case <-a.done:
		return a.reservation, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel withdraws a pending request, or releases the reservation it obtained.
func (a *Acquisition) Cancel(ctx context.Context) error {
	return a.engine.Release(ctx, a.ID)
}

// Terminated is closed once the session ended, either because of a failure or because it was released.
func (a *Acquisition) Terminated() <-chan struct{} {
	return a.terminated
}

// Cause returns why the session ended: nil if it was released by the client after being accepted.
func (a *Acquisition) Cause() error {
	select {
	case <-a.terminated:
		return a.cause
	default:
		return nil
	}
}

func (a *Acquisition) complete(res *Reservation, err error) {
	select {
	case <-a.done:
		return
	default:
	}
	a.reservation, a.err = res, err
	close(a.done)
}

func (a *Acquisition) terminate(cause error) {
	a.complete(nil, cause)
	a.cause = cause
	close(a.terminated)
}
