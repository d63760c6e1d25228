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

// Package api exposes the MAAP engines of the daemon through an HTTP management interface.
package api

import (
	"context"

	"github.com/liqotech/maap/pkg/maap"
	"github.com/liqotech/maap/pkg/maap/macaddr"
)

const (
	// PortsURI lists the ports.
	PortsURI = "/v1/ports"
	// RangesURI lists the ranges of a port, and accepts new allocation requests.
	RangesURI = "/v1/ports/:port/ranges"
	// RangeURI identifies a single range of a port.
	RangeURI = "/v1/ports/:port/ranges/:id"
	// MetricsURI serves the Prometheus metrics.
	MetricsURI = "/metrics"
	// HealthURI answers liveness probes.
	HealthURI = "/healthz"
)

// Engine is the subset of the engine operations served by the API.
type Engine interface {
	Port() string
	LocalAddr() macaddr.Addr
	Pool() macaddr.Range
	Acquire(ctx context.Context, req maap.AllocationRequest) (*maap.Acquisition, error)
	Release(ctx context.Context, id string) error
	Sessions(ctx context.Context) ([]maap.SessionStatus, error)
	Session(ctx context.Context, id string) (maap.SessionStatus, bool, error)
}

var _ Engine = &maap.Engine{}

// PortInfo describes a port.
type PortInfo struct {
	Name      string        `json:"name"`
	LocalAddr macaddr.Addr  `json:"localAddr"`
	Pool      macaddr.Range `json:"pool"`
}

// AcquireRequest is the body of an allocation request.
type AcquireRequest struct {
	Count int           `json:"count"`
	Owner string        `json:"owner,omitempty"`
	Base  *macaddr.Addr `json:"base,omitempty"`
	// Wait asks the server to answer only once the range is accepted, or the wait timeout expires.
	Wait bool `json:"wait,omitempty"`
}

// AcquireResponse is the answer to an allocation request.
type AcquireResponse struct {
	ID string `json:"id"`
	// Reservation is set when the range was accepted before the server answered.
	Reservation *maap.Reservation `json:"reservation,omitempty"`
}
