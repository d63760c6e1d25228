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

// Package monitoring exposes the Prometheus metrics of the MAAP engines.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PDUTransmitted counts the MAAP PDUs handed to the transport, by port and message type.
	PDUTransmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maap_pdu_transmitted_total",
			Help: "Number of MAAP PDUs transmitted, by message type.",
		},
		[]string{"port", "type"})

	// PDUTransmitErrors counts the MAAP PDUs the transport failed to send.
	PDUTransmitErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maap_pdu_transmit_errors_total",
			Help: "Number of MAAP PDUs the transport failed to transmit.",
		},
		[]string{"port"})

	// PDUReceived counts the MAAP PDUs received from other stations, by port and message type.
	PDUReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maap_pdu_received_total",
			Help: "Number of MAAP PDUs received from other stations, by message type.",
		},
		[]string{"port", "type"})

	// PDUDropped counts the received MAAP PDUs dropped because the event queue was full.
	PDUDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maap_pdu_dropped_total",
			Help: "Number of received MAAP PDUs dropped because the event queue was full.",
		},
		[]string{"port"})

	// Conflicts counts the conflicts detected on candidate ranges, by the state of the session.
	Conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maap_conflicts_total",
			Help: "Number of conflicts detected on candidate ranges, by session state.",
		},
		[]string{"port", "state"})

	// Defends counts the DEFEND messages sent to protect accepted ranges.
	Defends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maap_defends_total",
			Help: "Number of DEFEND messages sent to protect owned ranges.",
		},
		[]string{"port"})

	// Acquisitions counts the completed acquisitions, by result.
	Acquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maap_acquisitions_total",
			Help: "Number of completed acquisitions, by result.",
		},
		[]string{"port", "result"})

	// AcquisitionDuration measures the time elapsed between a request and the acceptance of its range.
	AcquisitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maap_acquisition_duration_seconds",
			Help:    "Time elapsed between an acquisition request and the acceptance of its range.",
			Buckets: prometheus.LinearBuckets(1.5, 0.5, 12),
		},
		[]string{"port"})

	// Sessions reports the number of live sessions, by state.
	Sessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maap_sessions",
			Help: "Number of live sessions, by state.",
		},
		[]string{"port", "state"})
)

func init() {
	// Register custom metrics with the global prometheus registry
	prometheus.MustRegister(PDUTransmitted, PDUTransmitErrors, PDUReceived, PDUDropped,
		Conflicts, Defends, Acquisitions, AcquisitionDuration, Sessions)
}

// Handler returns the HTTP handler serving the metrics of the global registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
}
