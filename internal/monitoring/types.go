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

package monitoring

// AcquisitionResult is the outcome of an acquisition, as reported by the metrics.
type AcquisitionResult string

const (
	// Accepted is the result of acquisitions whose range was accepted.
	Accepted AcquisitionResult = "accepted"
	// Exhausted is the result of acquisitions that found no free block.
	Exhausted AcquisitionResult = "exhausted"
	// ConflictRetriesExhausted is the result of acquisitions that met too many conflicts.
	ConflictRetriesExhausted AcquisitionResult = "conflict_retries_exhausted"
	// TransportFailure is the result of acquisitions aborted by a transport failure.
	TransportFailure AcquisitionResult = "transport_failure"
	// Canceled is the result of acquisitions canceled by the client before being accepted.
	Canceled AcquisitionResult = "canceled"
	// Stopped is the result of acquisitions aborted because the engine stopped.
	Stopped AcquisitionResult = "stopped"
)

func (r AcquisitionResult) String() string {
	return string(r)
}
