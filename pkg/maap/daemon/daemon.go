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

// Package daemon runs the MAAP engines of the configured ports, together with the management API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/liqotech/maap/pkg/maap"
	"github.com/liqotech/maap/pkg/maap/api"
	"github.com/liqotech/maap/pkg/maap/config"
	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/utils/network/netmonitor"
)

// Transport is the transport of a port, driven by the daemon.
type Transport interface {
	maap.Transport
	// Run receives frames until the context is canceled, or the transport fails.
	Run(ctx context.Context) error
	Close() error
}

// Port is an opened port.
type Port struct {
	Addr      macaddr.Addr
	Transport Transport
	// Operational tells whether the interface could carry traffic when the port was opened.
	Operational bool
}

// Opener opens the port bound to the given interface.
type Opener func(ctx context.Context, name string) (*Port, error)

// Monitor watches the state of the given interface until the context is canceled.
type Monitor func(ctx context.Context, name string, options *netmonitor.Options) error

// Options contains the options of the daemon.
type Options struct {
	// Engine holds the engine options shared by all ports, overridden by the per-port configuration.
	Engine *maap.Options
	// WaitTimeout bounds the time the management API waits for an acquisition to complete.
	WaitTimeout time.Duration

	Opener  Opener
	Monitor Monitor
}

// Daemon runs an engine for each configured port.
type Daemon struct {
	cfg  *config.Config
	opts *Options
}

// New returns a new daemon.
func New(cfg *config.Config, opts *Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Opener == nil {
		return nil, errors.New("no port opener configured")
	}
	return &Daemon{cfg: cfg, opts: opts}, nil
}

// Run starts the engines and blocks until the context is canceled, or one of the ports fails irrecoverably.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	engines := make([]api.Engine, 0, len(d.cfg.Ports))
	for i := range d.cfg.Ports {
		engine, err := d.startPort(ctx, g, &d.cfg.Ports[i])
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		engines = append(engines, engine)
	}

	if d.cfg.ListenAddress != "" {
		srv := api.NewServer(engines, d.opts.WaitTimeout)
		g.Go(func() error { return srv.Serve(ctx, d.cfg.ListenAddress) })
	}

	klog.Infof("MAAP daemon started on %d ports", len(engines))
	return g.Wait()
}

func (d *Daemon) startPort(ctx context.Context, g *errgroup.Group, cfg *config.Port) (*maap.Engine, error) {
	port, err := d.opts.Opener(ctx, cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("unable to open port %s: %w", cfg.Interface, err)
	}

	opts := cfg.Options(d.opts.Engine)
	opts.LocalAddr = port.Addr
	// Each engine draws from its own source, as the dispatchers run concurrently.
	opts.Rand = rand.New(rand.NewSource(d.opts.Engine.Rand.Int63n(math.MaxInt64))) //nolint:gosec // don't need crypto/rand

	engine, err := maap.NewEngine(opts, port.Transport)
	if err != nil {
		_ = port.Transport.Close()
		return nil, fmt.Errorf("unable to create the engine of port %s: %w", cfg.Interface, err)
	}

	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error {
		defer port.Transport.Close()
		if err := port.Transport.Run(ctx); err != nil {
			engine.TransportFailed(err)
			return fmt.Errorf("port %s: %w", cfg.Interface, err)
		}
		return nil
	})

	up := make(chan struct{})
	var once sync.Once
	portUp := func() { once.Do(func() { close(up) }) }
	if port.Operational || d.opts.Monitor == nil {
		portUp()
	}

	if d.opts.Monitor != nil {
		name := cfg.Interface
		g.Go(func() error {
			return d.opts.Monitor(ctx, name, &netmonitor.Options{
				OnUp: func() {
					engine.PortOperational()
					portUp()
				},
				OnDown: func() { klog.Warningf("Port %s is no longer operational", name) },
				OnRemoved: func() {
					engine.TransportFailed(fmt.Errorf("interface %s removed", name))
				},
			})
		})
	}

	select {
	case <-up:
		return engine, requestRanges(ctx, g, cfg, engine)
	default:
	}

	// Probes sent on a port that is down would go unanswered.
	klog.Warningf("Port %s is not operational, deferring its startup requests", cfg.Interface)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-up:
			return requestRanges(ctx, g, cfg, engine)
		}
	})
	return engine, nil
}

// requestRanges submits the startup requests of the port.
func requestRanges(ctx context.Context, g *errgroup.Group, cfg *config.Port, engine *maap.Engine) error {
	for _, req := range cfg.Requests() {
		acq, err := engine.Acquire(ctx, req)
		if err != nil {
			return fmt.Errorf("port %s: unable to request %d addresses for %q: %w", cfg.Interface, req.Count, req.Owner, err)
		}
		g.Go(func() error {
			watch(ctx, cfg.Interface, acq)
			return nil
		})
	}
	return nil
}

// watch logs the outcome of a startup acquisition, and its termination.
func watch(ctx context.Context, port string, acq *maap.Acquisition) {
	res, err := acq.Wait(ctx)
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		klog.Errorf("Port %s: unable to acquire %d addresses for %q: %v", port, acq.Count, acq.Owner, err)
		return
	default:
		klog.Infof("Port %s: acquired %s for %q", port, res.Range, res.Owner)
	}

	select {
	case <-ctx.Done():
	case <-acq.Terminated():
		klog.Warningf("Port %s: lost %s held by %q: %v", port, res.Range, res.Owner, acq.Cause())
	}
}
