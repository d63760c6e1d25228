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

// Package ranges implements the maapctl commands managing the address ranges of a daemon.
package ranges

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/goombaio/namegenerator"
	"github.com/pterm/pterm"

	"github.com/liqotech/maap/pkg/maap"
	"github.com/liqotech/maap/pkg/maap/api"
	"github.com/liqotech/maap/pkg/maap/macaddr"
	"github.com/liqotech/maap/pkg/maapctl/output"
)

// Options encapsulates the arguments of the ranges commands.
type Options struct {
	Client  *api.Client
	Printer *output.Printer

	Port string
	ID   string

	// Owner labels the acquired range. A random name is generated if empty.
	Owner string
	Count int
	Base  *macaddr.Addr

	// Wait makes acquire return only once the range is accepted.
	Wait bool
}

// Ports prints the ports served by the daemon.
func (o *Options) Ports(ctx context.Context) error {
	ports, err := o.Client.Ports(ctx)
	if err != nil {
		o.Printer.Error.Printfln("Failed retrieving the ports: %v", err)
		return err
	}

	data := pterm.TableData{{"Port", "Station", "Pool", "Size"}}
	for i := range ports {
		data = append(data, []string{
			ports[i].Name, ports[i].LocalAddr.String(), ports[i].Pool.String(), strconv.Itoa(ports[i].Pool.Count),
		})
	}
	return o.Printer.Table.WithData(data).Render()
}

// List prints the ranges of the port.
func (o *Options) List(ctx context.Context) error {
	statuses, err := o.Client.Ranges(ctx, o.Port)
	if err != nil {
		o.Printer.Error.Printfln("Failed retrieving the ranges of port %s: %v", o.Port, err)
		return err
	}
	if len(statuses) == 0 {
		o.Printer.Info.Printfln("No range held on port %s", o.Port)
		return nil
	}

	data := pterm.TableData{{"ID", "Owner", "State", "Range", "Count", "Retries", "Age"}}
	for i := range statuses {
		s := &statuses[i]
		data = append(data, []string{
			s.ID, s.Owner, output.State(string(s.State)), rangeString(s), strconv.Itoa(s.Count), strconv.Itoa(s.Retries),
			age(s.RequestedAt),
		})
	}
	return o.Printer.Table.WithData(data).Render()
}

// Get prints the details of a range.
func (o *Options) Get(ctx context.Context) error {
	s, err := o.Client.Range(ctx, o.Port, o.ID)
	if err != nil {
		o.Printer.Error.Printfln("Failed retrieving range %s: %v", o.ID, err)
		return err
	}

	data := pterm.TableData{
		{"Field", "Value"},
		{"ID", s.ID},
		{"Owner", s.Owner},
		{"State", output.State(string(s.State))},
		{"Range", rangeString(s)},
		{"Count", strconv.Itoa(s.Count)},
		{"Probes", strconv.Itoa(s.Probes)},
		{"Retries", strconv.Itoa(s.Retries)},
		{"Requested", s.RequestedAt.Format(time.RFC3339)},
	}
	if s.AcceptedAt != nil {
		data = append(data, []string{"Accepted", s.AcceptedAt.Format(time.RFC3339)})
	}
	return o.Printer.Table.WithData(data).Render()
}

// Acquire requests a new range.
func (o *Options) Acquire(ctx context.Context) error {
	if o.Owner == "" {
		o.Owner = namegenerator.NewNameGenerator(rand.Int63()).Generate() //nolint:gosec // don't need crypto/rand
		o.Printer.Verbosef("No owner specified, using %q", o.Owner)
	}
	o.Printer.Verbosef("Requesting %d addresses on port %s", o.Count, o.Port)
	resp, err := o.Client.Acquire(ctx, o.Port, &api.AcquireRequest{Count: o.Count, Owner: o.Owner, Base: o.Base, Wait: o.Wait})
	if err != nil {
		o.Printer.Error.Printfln("Failed acquiring %d addresses on port %s: %v", o.Count, o.Port, err)
		return err
	}

	if resp.Reservation != nil {
		o.Printer.Success.Printfln("Range %s acquired (id: %s)", resp.Reservation.Range, resp.ID)
		return nil
	}
	if o.Wait {
		o.Printer.Warning.Printfln("Request %s still pending, check its state with the get command", resp.ID)
		return nil
	}
	o.Printer.Success.Printfln("Request %s submitted", resp.ID)
	return nil
}

// Release releases a range.
func (o *Options) Release(ctx context.Context) error {
	if err := o.Client.Release(ctx, o.Port, o.ID); err != nil {
		o.Printer.Error.Printfln("Failed releasing range %s: %v", o.ID, err)
		return err
	}
	o.Printer.Success.Printfln("Range %s released", o.ID)
	return nil
}

func rangeString(s *maap.SessionStatus) string {
	if s.Range.Count == 0 {
		return "-"
	}
	return s.Range.String()
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprint(time.Since(t).Round(time.Second))
}
