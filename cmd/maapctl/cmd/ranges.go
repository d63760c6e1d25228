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

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/liqotech/maap/pkg/maapctl/output"
	"github.com/liqotech/maap/pkg/maapctl/ranges"
	"github.com/liqotech/maap/pkg/utils/args"
)

func newPortsCommand(ctx context.Context, options *ranges.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the ports served by the daemon",
		Args:  cobra.NoArgs,

		Run: func(_ *cobra.Command, _ []string) {
			output.ExitOnErr(options.Ports(ctx))
		},
	}
}

func newListCommand(ctx context.Context, options *ranges.Options) *cobra.Command {
	return &cobra.Command{
		Use:     "list port",
		Aliases: []string{"ls"},
		Short:   "List the ranges held or requested on a port",
		Args:    cobra.ExactArgs(1),

		Run: func(_ *cobra.Command, args []string) {
			options.Port = args[0]
			output.ExitOnErr(options.List(ctx))
		},
	}
}

func newGetCommand(ctx context.Context, options *ranges.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get port id",
		Short: "Show the details of a range",
		Args:  cobra.ExactArgs(2),

		Run: func(_ *cobra.Command, args []string) {
			options.Port, options.ID = args[0], args[1]
			output.ExitOnErr(options.Get(ctx))
		},
	}
}

const acquireLongHelp = `Acquire a range of multicast MAC addresses on a port.

The daemon picks a free block of the requested size within the pool of the port,
unless a base address is given, then probes it before claiming it. By default the
command returns as soon as the request is submitted: use --wait to return only once
the range is acquired.

Examples:
  $ maapctl acquire eth0 --count 8 --owner talker --wait
  $ maapctl acquire eth0 --count 2 --base 91:e0:f0:00:10:00
`

func newAcquireCommand(ctx context.Context, options *ranges.Options) *cobra.Command {
	var base args.MAC
	cmd := &cobra.Command{
		Use:   "acquire port",
		Short: "Acquire a range of addresses on a port",
		Long:  acquireLongHelp,
		Args:  cobra.ExactArgs(1),

		Run: func(cmd *cobra.Command, args []string) {
			options.Port = args[0]
			if cmd.Flags().Changed("base") {
				options.Base = &base.Addr
			}
			output.ExitOnErr(options.Acquire(ctx))
		},
	}

	cmd.Flags().IntVar(&options.Count, "count", 1, "The number of addresses to acquire")
	cmd.Flags().StringVar(&options.Owner, "owner", "", "A label identifying the owner of the range")
	cmd.Flags().Var(&base, "base", "The first address of the range, picked by the daemon if unset")
	cmd.Flags().BoolVar(&options.Wait, "wait", false, "Wait for the range to be acquired")
	return cmd
}

func newReleaseCommand(ctx context.Context, options *ranges.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "release port id",
		Short: "Release a range, or withdraw a pending request",
		Args:  cobra.ExactArgs(2),

		Run: func(_ *cobra.Command, args []string) {
			options.Port, options.ID = args[0], args[1]
			output.ExitOnErr(options.Release(ctx))
		},
	}
}
