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
	"math/rand"
	"time"

	"k8s.io/utils/clock"

	"github.com/liqotech/maap/pkg/consts"
	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/utils/args"
)

// Random is the source of randomness of the engine. *rand.Rand satisfies it.
type Random interface {
	Int63n(n int64) int64
}

// Options contains the options of a MAAP engine.
type Options struct {
	// Port is the name of the port the engine runs on, used in logs and metrics.
	Port string
	// LocalAddr is the station address of the port, used as sender identifier.
	LocalAddr macaddr.Addr

	PoolBase  args.MAC
	PoolSize  int
	MaxRanges int
	QueueSize int

	// PreferLowerSender makes probing sessions ignore PROBE messages from stations with a higher address.
	PreferLowerSender bool

	Clock clock.WithDelayedExecution
	Rand  Random
}

// NewOptions returns a new Options struct, with the MAAP dynamic pool and the default limits.
func NewOptions() *Options {
	return &Options{
		PoolBase:  args.MAC{Addr: macaddr.MustParseAddr(consts.MAAPDynamicPoolBase)},
		PoolSize:  consts.MAAPDynamicPoolSize,
		MaxRanges: consts.MAAPMaxRangesPerPort,
		QueueSize: 256,
		Clock:     clock.RealClock{},
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // don't need crypto/rand
	}
}

// Pool returns the range of addresses the engine allocates from.
func (o *Options) Pool() macaddr.Range {
	return macaddr.NewRange(o.PoolBase.Addr, o.PoolSize)
}
