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

package consts

import "time"

// MAAP addresses and pools, as allocated by IEEE 1722-2016 Annex B.
const (
	// MAAPMulticastAddress is the destination address of PROBE and ANNOUNCE messages.
	MAAPMulticastAddress = "91:e0:f0:00:ff:00"
	// MAAPDynamicPoolBase is the first address of the block available for dynamic allocation.
	MAAPDynamicPoolBase = "91:e0:f0:00:00:00"
	// MAAPDynamicPoolSize is the number of addresses available for dynamic allocation.
	MAAPDynamicPoolSize = 0xFE00
	// MAAPLocalPoolBase is the first address of the block reserved for locally administered allocation.
	MAAPLocalPoolBase = "91:e0:f0:00:fe:00"
	// MAAPLocalPoolSize is the number of addresses reserved for locally administered allocation.
	MAAPLocalPoolSize = 0x100
)

// Wire format identifiers.
const (
	// AVTPEthertype is the ethertype carried by AVTP frames, MAAP included.
	AVTPEthertype = 0x22F0
	// AVTPSubtypeMAAP is the AVTP control subtype of MAAP PDUs.
	AVTPSubtypeMAAP = 0xFE
	// MAAPVersion is the protocol version written in outgoing PDUs.
	MAAPVersion = 1
	// MAAPControlDataLength is the length of the MAAP payload following the stream ID.
	MAAPControlDataLength = 16
)

// Protocol timing.
const (
	// MAAPProbeRetransmits is the number of PROBE messages sent before announcing a range.
	MAAPProbeRetransmits = 3
	// MAAPProbeIntervalBase is the minimum interval between two PROBE messages.
	MAAPProbeIntervalBase = 500 * time.Millisecond
	// MAAPProbeIntervalVariation is the width of the random window added to MAAPProbeIntervalBase.
	// The timer granularity and the transmission latency are already subtracted.
	MAAPProbeIntervalVariation = 70 * time.Millisecond
	// MAAPAnnounceIntervalBase is the minimum interval between two ANNOUNCE messages of an accepted range.
	MAAPAnnounceIntervalBase = 30 * time.Second
	// MAAPAnnounceIntervalVariation is the width of the random window added to MAAPAnnounceIntervalBase.
	MAAPAnnounceIntervalVariation = 1890 * time.Millisecond
)

// Conflict handling.
const (
	// MAAPMaxConflictRetries is the number of conflicts a session tolerates before giving up.
	MAAPMaxConflictRetries = 5
	// MAAPBackoffMin is the lower bound of the delay before retrying after a conflict.
	MAAPBackoffMin = 20 * time.Millisecond
	// MAAPBackoffBase is the upper bound of the delay after the first conflict. It doubles at every retry.
	MAAPBackoffBase = 100 * time.Millisecond
	// MAAPBackoffMax caps the upper bound of the retry delay.
	MAAPBackoffMax = 1600 * time.Millisecond

	// MAAPMaxRangesPerPort is the default maximum number of ranges a single port can hold.
	MAAPMaxRangesPerPort = 128
)
