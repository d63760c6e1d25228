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
	"time"

	"github.com/liqotech/maap/pkg/maap/transport/rawsock"
	"github.com/liqotech/maap/pkg/utils/network/netmonitor"
)

// RawSocketOpener returns an opener binding a raw socket to the interface, once it shows up.
func RawSocketOpener(linkTimeout time.Duration) Opener {
	return func(ctx context.Context, name string) (*Port, error) {
		link, err := netmonitor.WaitForLink(ctx, name, linkTimeout)
		if err != nil {
			return nil, err
		}
		sock, err := rawsock.Open(link.Name, link.Index, link.HardwareAddr)
		if err != nil {
			return nil, err
		}
		return &Port{Addr: link.HardwareAddr, Transport: sock, Operational: link.Operational}, nil
	}
}
