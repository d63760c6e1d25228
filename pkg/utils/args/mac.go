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

package args

import "github.com/liqotech/maap/pkg/maap/macaddr"

// MAC implements the flag.Value interface and allows to parse 48-bit MAC addresses
// in the form: "xx:xx:xx:xx:xx:xx".
type MAC struct {
	Addr macaddr.Addr
}

// String returns the stringified address.
func (m *MAC) String() string {
	return m.Addr.String()
}

// Set parses the provided string into a MAC address.
func (m *MAC) Set(str string) error {
	addr, err := macaddr.ParseAddr(str)
	if err != nil {
		return err
	}
	m.Addr = addr
	return nil
}

// Type returns the MAC type.
func (m *MAC) Type() string {
	return "mac"
}
