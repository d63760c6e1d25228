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

// Package maap implements the MAC Address Acquisition Protocol engine: sessions probe candidate ranges of
// a multicast address pool, announce them once no other station objected, and defend them afterwards.
//
// All the protocol state of a port is owned by a single dispatch loop (Engine.Run), which serializes
// timer expirations, received messages and client requests.
package maap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/liqotech/maap/internal/monitoring"
	"github.com/liqotech/maap/pkg/consts"
	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/maap/pdu"
	"github.com/liqotech/maap/pkg/maap/pool"
	errorsutils "github.com/liqotech/maap/pkg/utils/errors"
)

type messageEvent struct {
	msg *pdu.Message
}

type commandEvent func()

// Engine runs the MAAP protocol on a single port.
type Engine struct {
	port      string
	local     macaddr.Addr
	maxRanges int

	preferLowerSender bool

	transport Transport
	clock     clock.WithDelayedExecution
	pool      *pool.Allocator
	policy    *Policy

	events  chan any
	started atomic.Bool
	stopped chan struct{}

	// The following fields are owned by the dispatch loop.
	sessions map[string]*session
	failure  error
}

// NewEngine returns a new engine, which starts processing events once Run is called.
func NewEngine(opts *Options, transport Transport) (*Engine, error) {
	switch {
	case transport == nil:
		return nil, errors.New("a transport is required")
	case opts.Clock == nil || opts.Rand == nil:
		return nil, errors.New("a clock and a random source are required")
	case opts.LocalAddr.IsZero():
		return nil, fmt.Errorf("port %q has no station address", opts.Port)
	case opts.MaxRanges <= 0 || opts.QueueSize <= 0:
		return nil, fmt.Errorf("invalid limits: max ranges %d, queue size %d", opts.MaxRanges, opts.QueueSize)
	}

	allocator, err := pool.New(opts.Pool(), opts.Rand)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the address pool of port %q: %w", opts.Port, err)
	}

	e := &Engine{
		port:              opts.Port,
		local:             opts.LocalAddr,
		maxRanges:         opts.MaxRanges,
		preferLowerSender: opts.PreferLowerSender,
		transport:         transport,
		clock:             opts.Clock,
		pool:              allocator,
		policy:            NewPolicy(opts.Rand),
		events:            make(chan any, opts.QueueSize),
		stopped:           make(chan struct{}),
		sessions:          make(map[string]*session),
	}
	transport.OnReceive(e.receive)
	return e, nil
}

// Port returns the name of the port the engine runs on.
func (e *Engine) Port() string {
	return e.port
}

// LocalAddr returns the station address of the port.
func (e *Engine) LocalAddr() macaddr.Addr {
	return e.local
}

// Pool returns the range of addresses the engine allocates from.
func (e *Engine) Pool() macaddr.Range {
	return e.pool.Pool()
}

// Run processes events until the context is canceled. Pending and accepted sessions fail with
// ErrEngineStopped when it returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("engine of port %s already started", e.port)
	}
	klog.Infof("Starting MAAP engine on port %s (station %s, pool %s)", e.port, e.local, e.pool.Pool())
	defer e.shutdown()

	for {
		select {
		case <-ctx.Done():
			klog.Infof("Stopping MAAP engine on port %s", e.port)
			return nil
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) shutdown() {
	for _, s := range e.sortedSessions() {
		e.terminate(s, ErrEngineStopped)
	}
	e.updateGauges()
	close(e.stopped)
}

func (e *Engine) dispatch(ev any) {
	switch ev := ev.(type) {
	case timerEvent:
		if s, ok := e.expired(ev); ok {
			e.onTimer(s)
		}
	case messageEvent:
		e.onMessage(ev.msg)
	case commandEvent:
		ev()
	default:
		errorsutils.Must(fmt.Errorf("unexpected event %T on port %s", ev, e.port))
	}
	e.updateGauges()
}

// enqueue blocks until the event is queued, or the engine stopped.
func (e *Engine) enqueue(ev any) {
	select {
	case e.events <- ev:
	case <-e.stopped:
	}
}

// receive queues a message received from the transport, dropping it if the queue is full.
func (e *Engine) receive(msg *pdu.Message) {
	select {
	case e.events <- messageEvent{msg: msg}:
	default:
		monitoring.PDUDropped.WithLabelValues(e.port).Inc()
		klog.V(2).Infof("Port %s: event queue full, dropping %s", e.port, msg)
	}
}

// do runs fn in the dispatch loop and waits for it to return.
func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := commandEvent(func() {
		defer close(done)
		fn()
	})

	select {
	case e.events <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrEngineStopped
	}

	// Once queued, fn runs regardless of ctx.
	select {
	case <-done:
		return nil
	case <-e.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrEngineStopped
		}
	}
}

// Acquire submits a request for a range of addresses. It returns as soon as a candidate range is picked,
// failing with ErrExhausted if the pool holds no free block of the requested size; the outcome of the
// protocol is reported through the returned Acquisition.
func (e *Engine) Acquire(ctx context.Context, req AllocationRequest) (*Acquisition, error) {
	if req.Count < 1 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidRequest, req.Count)
	}

	var (
		acq *Acquisition
		err error
	)
	if derr := e.do(ctx, func() { acq, err = e.acquire(ctx, req) }); derr != nil {
		return nil, derr
	}
	return acq, err
}

// Release withdraws a pending request or releases an accepted reservation. Unknown identifiers are ignored,
// so that releasing twice is harmless.
func (e *Engine) Release(ctx context.Context, id string) error {
	return e.do(ctx, func() {
		if s, found := e.sessions[id]; found {
			e.release(s)
		} else {
			klog.V(4).Infof("Port %s: session %s not found, nothing to release", e.port, id)
		}
	})
}

// ReleaseRange releases every session holding addresses of the given range, and returns their identifiers.
func (e *Engine) ReleaseRange(ctx context.Context, r macaddr.Range) ([]string, error) {
	var ids []string
	err := e.do(ctx, func() {
		ids = e.pool.Release(r)
		slices.Sort(ids)
		for _, id := range ids {
			if s, found := e.sessions[id]; found {
				e.release(s)
			}
		}
	})
	return ids, err
}

// Sessions returns a snapshot of the live sessions.
func (e *Engine) Sessions(ctx context.Context) ([]SessionStatus, error) {
	var statuses []SessionStatus
	err := e.do(ctx, func() {
		for _, s := range e.sortedSessions() {
			statuses = append(statuses, s.status())
		}
	})
	return statuses, err
}

// Session returns a snapshot of the given session, if it is still alive.
func (e *Engine) Session(ctx context.Context, id string) (status SessionStatus, found bool, err error) {
	err = e.do(ctx, func() {
		var s *session
		if s, found = e.sessions[id]; found {
			status = s.status()
		}
	})
	return status, found, err
}

// PortOperational notifies the engine that the port became operational again: ranges are probed or announced anew.
func (e *Engine) PortOperational() {
	e.enqueue(commandEvent(e.portOperational))
}

// TransportFailed notifies the engine that the port can no longer be used: all its sessions fail.
func (e *Engine) TransportFailed(err error) {
	e.enqueue(commandEvent(func() { e.transportFailed(err) }))
}

func (e *Engine) acquire(ctx context.Context, req AllocationRequest) (*Acquisition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.failure != nil {
		return nil, fmt.Errorf("port %s: %w", e.port, e.failure)
	}
	if len(e.sessions) >= e.maxRanges {
		monitoring.Acquisitions.WithLabelValues(e.port, monitoring.Exhausted.String()).Inc()
		return nil, fmt.Errorf("port %s holds %d ranges: %w", e.port, len(e.sessions), ErrTooManyRanges)
	}

	s := &session{
		id:          uuid.NewString(),
		owner:       req.Owner,
		count:       req.Count,
		state:       StateInit,
		requestedAt: e.clock.Now(),
	}

	var err error
	if req.Base != nil {
		s.rng = macaddr.NewRange(*req.Base, req.Count)
		err = e.pool.ReserveAt(s.rng, s.id)
	} else {
		s.rng, err = e.pool.Reserve(req.Count, s.id)
	}
	switch {
	case errors.Is(err, pool.ErrInvalidCount), errors.Is(err, pool.ErrOutOfPool):
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case errors.Is(err, pool.ErrExhausted):
		monitoring.Acquisitions.WithLabelValues(e.port, monitoring.Exhausted.String()).Inc()
		return nil, fmt.Errorf("port %s: %w", e.port, err)
	case err != nil:
		return nil, fmt.Errorf("port %s: unable to reserve %d addresses: %w", e.port, req.Count, err)
	}

	s.acq = newAcquisition(e, s)
	e.sessions[s.id] = s
	klog.Infof("Port %s: session %s (owner %q) probing %s", e.port, s.id, s.owner, s.rng)
	e.startProbing(s)
	return s.acq, nil
}

func (e *Engine) startProbing(s *session) {
	s.state = StateProbing
	s.probes = 0
	e.probe(s)
}

func (e *Engine) probe(s *session) {
	e.send(pdu.NewProbe(e.local, s.rng))
	s.probes++
	e.arm(s, e.policy.ProbeInterval())
}

func (e *Engine) announce(s *session) {
	e.send(pdu.NewAnnounce(e.local, s.rng))
}

func (e *Engine) onTimer(s *session) {
	switch s.state {
	case StateInit:
		rng, err := e.pool.Reserve(s.count, s.id)
		if err != nil {
			e.terminate(s, fmt.Errorf("unable to pick a new candidate range: %w", err))
			return
		}
		s.rng = rng
		klog.Infof("Port %s: session %s probing %s (retry %d)", e.port, s.id, s.rng, s.retries)
		e.startProbing(s)

	case StateProbing:
		if s.probes < consts.MAAPProbeRetransmits {
			e.probe(s)
			return
		}
		s.state = StateAnnouncing
		e.announce(s)
		e.arm(s, e.policy.ProbeInterval())

	case StateAnnouncing:
		e.accept(s)

	case StateAccepted:
		e.announce(s)
		e.arm(s, e.policy.AnnounceInterval())

	default:
		errorsutils.Must(fmt.Errorf("timer expired for session %s in state %s", s.id, s.state))
	}
}

func (e *Engine) accept(s *session) {
	if !errorsutils.Mustf(e.pool.MarkReserved(s.rng), "session %s", s.id) {
		e.terminate(s, fmt.Errorf("unable to reserve range %s", s.rng))
		return
	}

	s.state = StateAccepted
	s.acceptedAt = e.clock.Now()
	e.arm(s, e.policy.AnnounceInterval())
	s.acq.complete(&Reservation{ID: s.id, Owner: s.owner, Range: s.rng, AcquiredAt: s.acceptedAt}, nil)

	monitoring.Acquisitions.WithLabelValues(e.port, monitoring.Accepted.String()).Inc()
	monitoring.AcquisitionDuration.WithLabelValues(e.port).Observe(s.acceptedAt.Sub(s.requestedAt).Seconds())
	klog.Infof("Port %s: session %s (owner %q) acquired %s", e.port, s.id, s.owner, s.rng)
}

func (e *Engine) onMessage(msg *pdu.Message) {
	if msg.Source == e.local {
		// Our own frames, looped back by the port.
		return
	}
	monitoring.PDUReceived.WithLabelValues(e.port, msg.Type.String()).Inc()
	klog.V(4).Infof("Port %s: received %s", e.port, msg)

	for _, s := range e.sortedSessions() {
		if !s.rng.Overlaps(msg.Requested) {
			continue
		}
		// A DEFEND answers the PROBE of the station it is addressed to, and claims only its conflict range.
		if msg.Type == pdu.MessageTypeDefend && (msg.Destination != e.local || !s.rng.Overlaps(msg.Conflict)) {
			klog.V(4).Infof("Port %s: session %s ignoring %s, not aimed at its range", e.port, s.id, msg)
			continue
		}

		switch s.state {
		case StateProbing:
			if msg.Type == pdu.MessageTypeProbe && e.preferLowerSender && e.local.Less(msg.Source) {
				klog.V(2).Infof("Port %s: session %s ignoring %s, as the local station has precedence", e.port, s.id, msg)
				continue
			}
			e.conflict(s, msg)

		case StateAnnouncing:
			if msg.Type == pdu.MessageTypeProbe {
				e.defend(s, msg)
			} else {
				e.conflict(s, msg)
			}

		case StateAccepted:
			if msg.Type == pdu.MessageTypeDefend {
				klog.Warningf("Port %s: range %s of session %s defended by %s, keeping it", e.port, s.rng, s.id, msg.Source)
				continue
			}
			e.defend(s, msg)

		default:
			// Sessions waiting for the backoff to elapse hold no range.
		}
	}
}

// conflict gives up the candidate range of the session, and either schedules a new attempt or fails it.
func (e *Engine) conflict(s *session, msg *pdu.Message) {
	monitoring.Conflicts.WithLabelValues(e.port, string(s.state)).Inc()
	klog.Infof("Port %s: session %s lost candidate %s to %s", e.port, s.id, s.rng, msg)

	e.disarm(s)
	e.pool.Release(s.rng)
	s.rng = macaddr.Range{}
	s.probes = 0
	s.retries++

	decision := e.policy.OnConflict(s.retries)
	if decision.GiveUp {
		e.terminate(s, fmt.Errorf("%w: %d conflicts", ErrConflictRetriesExhausted, s.retries))
		return
	}
	s.state = StateInit
	e.arm(s, decision.Delay)
}

// defend answers a PROBE or ANNOUNCE overlapping the range of the session.
func (e *Engine) defend(s *session, msg *pdu.Message) {
	previous := s.state
	s.state = StateDefending

	overlap, _ := s.rng.Intersect(msg.Requested)
	e.send(pdu.NewDefend(e.local, msg.Source, msg.Requested, overlap))
	monitoring.Defends.WithLabelValues(e.port).Inc()
	klog.Infof("Port %s: session %s defended %s against %s", e.port, s.id, overlap, msg.Source)

	s.state = previous
}

func (e *Engine) release(s *session) {
	if s.state == StateAccepted {
		klog.Infof("Port %s: session %s (owner %q) released %s", e.port, s.id, s.owner, s.rng)
		e.terminate(s, nil)
		return
	}
	e.terminate(s, ErrCanceled)
}

// terminate moves the session to the failed state, returns its range to the pool and forgets it.
// A nil cause means the session was released by the client.
func (e *Engine) terminate(s *session, cause error) {
	e.disarm(s)
	if s.rng.Count > 0 {
		e.pool.Release(s.rng)
	}
	wasAccepted := s.state == StateAccepted
	s.state = StateFailed
	delete(e.sessions, s.id)
	s.acq.terminate(cause)

	if cause == nil {
		return
	}
	if !wasAccepted {
		monitoring.Acquisitions.WithLabelValues(e.port, acquisitionResult(cause).String()).Inc()
	}
	if !errors.Is(cause, ErrCanceled) {
		klog.Warningf("Port %s: session %s (owner %q) failed: %v", e.port, s.id, s.owner, cause)
	}
}

func (e *Engine) portOperational() {
	if e.failure != nil {
		klog.Infof("Port %s: operational again, recovering from %v", e.port, e.failure)
		e.failure = nil
	}
	for _, s := range e.sortedSessions() {
		switch s.state {
		case StateProbing, StateAnnouncing:
			e.startProbing(s)
		case StateAccepted:
			e.announce(s)
			e.arm(s, e.policy.AnnounceInterval())
		default:
		}
	}
}

func (e *Engine) transportFailed(err error) {
	e.failure = fmt.Errorf("%w: %w", ErrTransportFailure, err)
	klog.Errorf("Port %s: %v", e.port, e.failure)
	for _, s := range e.sortedSessions() {
		e.terminate(s, e.failure)
	}
}

func (e *Engine) send(msg *pdu.Message) {
	klog.V(4).Infof("Port %s: sending %s", e.port, msg)
	if err := e.transport.Send(msg); err != nil {
		monitoring.PDUTransmitErrors.WithLabelValues(e.port).Inc()
		klog.Warningf("Port %s: unable to send %s: %v", e.port, msg, err)
		return
	}
	monitoring.PDUTransmitted.WithLabelValues(e.port, msg.Type.String()).Inc()
}

// sortedSessions returns the live sessions in request order.
func (e *Engine) sortedSessions() []*session {
	sessions := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	slices.SortFunc(sessions, func(a, b *session) int {
		if c := a.requestedAt.Compare(b.requestedAt); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	return sessions
}

func (e *Engine) updateGauges() {
	counts := make(map[State]int, len(gaugedStates))
	for _, s := range e.sessions {
		counts[s.state]++
	}
	for _, state := range gaugedStates {
		monitoring.Sessions.WithLabelValues(e.port, string(state)).Set(float64(counts[state]))
	}
}

func acquisitionResult(cause error) monitoring.AcquisitionResult {
	switch {
	case errors.Is(cause, ErrConflictRetriesExhausted):
		return monitoring.ConflictRetriesExhausted
	case errors.Is(cause, ErrTransportFailure):
		return monitoring.TransportFailure
	case errors.Is(cause, ErrCanceled):
		return monitoring.Canceled
	case errors.Is(cause, ErrEngineStopped):
		return monitoring.Stopped
	default:
		return monitoring.Exhausted
	}
}
