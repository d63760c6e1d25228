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
	"github.com/spf13/pflag"

	"github.com/liqotech/maap/pkg/consts"
)

// FlagName is the type for the name of the flags.
type FlagName string

func (fn FlagName) String() string {
	return string(fn)
}

const (
	// FlagNamePoolBase is the first address of the pool ranges are allocated from.
	FlagNamePoolBase FlagName = "pool-base"
	// FlagNamePoolSize is the number of addresses of the pool.
	FlagNamePoolSize FlagName = "pool-size"
	// FlagNameMaxRanges is the maximum number of ranges a port can hold.
	FlagNameMaxRanges FlagName = "max-ranges"
	// FlagNameQueueSize is the capacity of the event queue of each port.
	FlagNameQueueSize FlagName = "queue-size"
	// FlagNamePreferLowerSender enables the address-based tie-break on concurrent probes.
	FlagNamePreferLowerSender FlagName = "prefer-lower-sender"
)

// InitFlags initializes the flags for the Options struct.
func InitFlags(flagset *pflag.FlagSet, o *Options) {
	flagset.Var(&o.PoolBase, FlagNamePoolBase.String(),
		"The first address of the pool ranges are allocated from. It must belong to the MAAP dynamic allocation pool.")
	flagset.IntVar(&o.PoolSize, FlagNamePoolSize.String(), consts.MAAPDynamicPoolSize,
		"The number of addresses of the pool ranges are allocated from.")
	flagset.IntVar(&o.MaxRanges, FlagNameMaxRanges.String(), consts.MAAPMaxRangesPerPort,
		"The maximum number of ranges each port can hold, including the ones being probed.")
	flagset.IntVar(&o.QueueSize, FlagNameQueueSize.String(), o.QueueSize,
		"The capacity of the event queue of each port. Received PDUs are dropped when it is full.")
	flagset.BoolVar(&o.PreferLowerSender, FlagNamePreferLowerSender.String(), false,
		"Keep probing when the conflicting PROBE comes from a station with a higher MAC address, instead of always yielding.")
}
