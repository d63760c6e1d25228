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

package ranges

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/julienschmidt/httprouter"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gstruct"

	"github.com/liqotech/maap/pkg/maap"
	"github.com/liqotech/maap/pkg/maap/api"
	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/maapctl/output"
)

var _ = Describe("Ranges commands", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		router   *httprouter.Router
		buffer   *bytes.Buffer
		options  *Options
		received *api.AcquireRequest
	)

	pool := macaddr.NewRange(macaddr.MustParseAddr("91:e0:f0:00:00:00"), 0xfe00)
	held := macaddr.NewRange(macaddr.MustParseAddr("91:e0:f0:00:12:00"), 4)
	accepted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	reply := func(w http.ResponseWriter, code int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		Expect(json.NewEncoder(w).Encode(body)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		buffer = &bytes.Buffer{}
		received = nil

		router = httprouter.New()
		router.GET(api.PortsURI, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			reply(w, http.StatusOK, []api.PortInfo{{Name: "eth0", LocalAddr: macaddr.MustParseAddr("02:00:00:00:00:01"), Pool: pool}})
		})
		router.GET(api.RangesURI, func(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
			if ps.ByName("port") != "eth0" {
				http.Error(w, "port not found", http.StatusNotFound)
				return
			}
			reply(w, http.StatusOK, []maap.SessionStatus{
				{ID: "first", Owner: "talker", Count: 4, State: maap.StateAccepted, Range: held, Probes: 3, AcceptedAt: &accepted},
				{ID: "second", Count: 2, State: maap.StateProbing, Probes: 1, Retries: 1},
			})
		})
		router.GET(api.RangeURI, func(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
			if ps.ByName("id") != "first" {
				http.Error(w, "range not found", http.StatusNotFound)
				return
			}
			reply(w, http.StatusOK, maap.SessionStatus{ID: "first", Owner: "talker", Count: 4, State: maap.StateAccepted,
				Range: held, Probes: 3, RequestedAt: accepted, AcceptedAt: &accepted})
		})
		router.POST(api.RangesURI, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			received = &api.AcquireRequest{}
			Expect(json.NewDecoder(r.Body).Decode(received)).To(Succeed())
			if received.Count > 16 {
				http.Error(w, "address pool exhausted", http.StatusConflict)
				return
			}
			if !received.Wait {
				reply(w, http.StatusAccepted, api.AcquireResponse{ID: "third"})
				return
			}
			reply(w, http.StatusCreated, api.AcquireResponse{ID: "third", Reservation: &maap.Reservation{ID: "third", Range: held}})
		})
		router.DELETE(api.RangeURI, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.WriteHeader(http.StatusNoContent)
		})

		server = httptest.NewServer(router)
		options = &Options{
			Client:  api.NewClient(server.URL, time.Second),
			Printer: output.NewFakePrinter(buffer),
			Port:    "eth0",
		}
	})

	AfterEach(func() {
		server.Close()
	})

	It("should print the ports", func() {
		Expect(options.Ports(ctx)).To(Succeed())
		Expect(buffer.String()).To(ContainSubstring("eth0"))
		Expect(buffer.String()).To(ContainSubstring("02:00:00:00:00:01"))
		Expect(buffer.String()).To(ContainSubstring(pool.String()))
		Expect(buffer.String()).To(ContainSubstring("65024"))
	})

	It("should print the ranges of a port", func() {
		Expect(options.List(ctx)).To(Succeed())
		Expect(buffer.String()).To(ContainSubstring("first"))
		Expect(buffer.String()).To(ContainSubstring(held.String()))
		Expect(buffer.String()).To(ContainSubstring("Accepted"))
		Expect(buffer.String()).To(ContainSubstring("Probing"))
	})

	It("should report unknown ports", func() {
		options.Port = "eth1"
		err := options.List(ctx)
		Expect(api.IsNotFound(err)).To(BeTrue())
		Expect(buffer.String()).To(ContainSubstring("port not found"))
	})

	It("should print the details of a range", func() {
		options.ID = "first"
		Expect(options.Get(ctx)).To(Succeed())
		Expect(buffer.String()).To(ContainSubstring("talker"))
		Expect(buffer.String()).To(ContainSubstring(accepted.Format(time.RFC3339)))
	})

	It("should submit acquisition requests", func() {
		base := macaddr.MustParseAddr("91:e0:f0:00:12:00")
		options.Count, options.Owner, options.Base = 4, "talker", &base
		Expect(options.Acquire(ctx)).To(Succeed())
		Expect(received).To(gstruct.PointTo(Equal(api.AcquireRequest{Count: 4, Owner: "talker", Base: &base})))
		Expect(buffer.String()).To(ContainSubstring("Request third submitted"))
	})

	It("should generate an owner when not specified", func() {
		options.Count = 1
		Expect(options.Acquire(ctx)).To(Succeed())
		Expect(received.Owner).To(MatchRegexp(`^[a-z]+-[a-z]+$`))
		Expect(options.Owner).To(Equal(received.Owner))
	})

	It("should print the acquired range when waiting", func() {
		options.Count, options.Wait = 4, true
		Expect(options.Acquire(ctx)).To(Succeed())
		Expect(buffer.String()).To(ContainSubstring("Range " + held.String() + " acquired"))
	})

	It("should report failed acquisitions", func() {
		options.Count = 32
		Expect(options.Acquire(ctx)).To(HaveOccurred())
		Expect(buffer.String()).To(ContainSubstring("address pool exhausted"))
	})

	It("should release ranges", func() {
		options.ID = "first"
		Expect(options.Release(ctx)).To(Succeed())
		Expect(buffer.String()).To(ContainSubstring("Range first released"))
	})
})
