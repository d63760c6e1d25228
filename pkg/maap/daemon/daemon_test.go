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

package daemon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/liqotech/maap/pkg/maap"
	"github.com/liqotech/maap/pkg/maap/config"
	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/maap/pdu"
	"github.com/liqotech/maap/pkg/maap/transport/loopback"
	"github.com/liqotech/maap/pkg/utils/args"
	"github.com/liqotech/maap/pkg/utils/network/netmonitor"
)

var _ = Describe("Daemon", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		clk       *testingclock.FakeClock
		transport *testTransport
		cfg       *config.Config
		opts      *Options
		monitored chan *netmonitor.Options
		result    chan error
		ifname    string
		seq       int
		linkUp    bool
	)

	poolBase := macaddr.MustParseAddr("91:e0:f0:00:40:00")

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		clk = testingclock.NewFakeClock(time.Now())
		transport = newTestTransport(loopback.NewSegment().Attach(macaddr.MustParseAddr("02:00:00:00:00:0a")))
		monitored = make(chan *netmonitor.Options, 1)
		result = make(chan error, 1)

		seq++
		ifname = fmt.Sprintf("daemon-%d", seq)
		linkUp = true
		cfg = &config.Config{Ports: []config.Port{{
			Interface: ifname,
			Ranges:    []config.Range{{Owner: "talker", Count: 2}},
		}}}

		engineOpts := maap.NewOptions()
		engineOpts.PoolBase = args.MAC{Addr: poolBase}
		engineOpts.PoolSize = 32
		engineOpts.Clock = clk
		engineOpts.Rand = rand.New(rand.NewSource(1)) //nolint:gosec // test

		opts = &Options{
			Engine:      engineOpts,
			WaitTimeout: time.Second,
			Opener: func(_ context.Context, name string) (*Port, error) {
				if name != ifname {
					return nil, fmt.Errorf("unexpected interface %s", name)
				}
				return &Port{Addr: transport.Addr(), Transport: transport, Operational: linkUp}, nil
			},
			Monitor: func(ctx context.Context, _ string, options *netmonitor.Options) error {
				monitored <- options
				<-ctx.Done()
				return nil
			},
		}
	})

	AfterEach(func() {
		cancel()
	})

	start := func() {
		d, err := New(cfg, opts)
		Expect(err).ToNot(HaveOccurred())
		go func() {
			defer GinkgoRecover()
			result <- d.Run(ctx)
		}()
	}

	announces := func() int { return len(transport.SentOfType(pdu.MessageTypeAnnounce)) }

	It("should acquire the startup ranges", func() {
		start()
		stepUntil(clk, func() bool { return announces() > 0 })

		Expect(transport.SentOfType(pdu.MessageTypeProbe)).To(HaveLen(3))
		announce := transport.SentOfType(pdu.MessageTypeAnnounce)[0]
		Expect(announce.Requested.Count).To(Equal(2))
		Expect(macaddr.NewRange(poolBase, 32).Covers(announce.Requested)).To(BeTrue())

		cancel()
		Eventually(result).Should(Receive(BeNil()))
		Eventually(transport.closed).Should(BeClosed())
	})

	It("should announce the ranges again once the port comes back", func() {
		start()
		var options *netmonitor.Options
		Eventually(monitored).Should(Receive(&options))
		stepUntil(clk, func() bool { return announces() > 0 })

		before := announces()
		options.OnDown()
		options.OnUp()
		Eventually(announces).Should(Equal(before + 1))
	})

	It("should defer the startup ranges until the port becomes operational", func() {
		linkUp = false
		start()
		var options *netmonitor.Options
		Eventually(monitored).Should(Receive(&options))
		Consistently(transport.Sent).WithTimeout(200 * time.Millisecond).Should(BeEmpty())

		options.OnUp()
		stepUntil(clk, func() bool { return announces() > 0 })
		Expect(transport.SentOfType(pdu.MessageTypeProbe)).To(HaveLen(3))
	})

	It("should stop probing once the interface is removed", func() {
		start()
		var options *netmonitor.Options
		Eventually(monitored).Should(Receive(&options))
		Eventually(transport.Sent).ShouldNot(BeEmpty())

		options.OnRemoved()
		// The failure is queued ahead of the timers expiring afterwards.
		Consistently(func() int {
			clk.Step(100 * time.Millisecond)
			return len(transport.Sent())
		}).WithTimeout(200 * time.Millisecond).Should(Equal(1))
	})

	It("should stop when the transport fails", func() {
		start()
		Eventually(transport.Sent).ShouldNot(BeEmpty())

		transport.failures <- errors.New("socket closed")
		var err error
		Eventually(result).Should(Receive(&err))
		Expect(err).To(MatchError(ContainSubstring("socket closed")))
	})

	It("should fail when a port cannot be opened", func() {
		cfg.Ports = append(cfg.Ports, config.Port{Interface: "missing"})
		start()

		var err error
		Eventually(result).Should(Receive(&err))
		Expect(err).To(MatchError(ContainSubstring("unable to open port missing")))
	})

	It("should fail when a startup range does not fit the pool", func() {
		cfg.Ports[0].Ranges = []config.Range{{Count: 64}}
		start()

		var err error
		Eventually(result).Should(Receive(&err))
		Expect(err).To(MatchError(maap.ErrInvalidRequest))
	})

	It("should reject invalid configurations", func() {
		_, err := New(&config.Config{}, opts)
		Expect(err).To(HaveOccurred())
	})

	It("should require a port opener", func() {
		opts.Opener = nil
		_, err := New(cfg, opts)
		Expect(err).To(HaveOccurred())
	})
})
