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

// Package cmd contains the commands of maapctl.
package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/liqotech/maap/pkg/maap/api"
	"github.com/liqotech/maap/pkg/maapctl/output"
	"github.com/liqotech/maap/pkg/maapctl/ranges"
	flagsutils "github.com/liqotech/maap/pkg/utils/flags"
)

const maapctlLongHelp = `maapctl manages the multicast MAC address ranges held by a MAAP daemon.

The daemon acquires the ranges through the MAC Address Acquisition Protocol, probing
the network before claiming them and defending them afterwards. This tool talks to
its management API to list the ports and ranges, and to acquire or release ranges.

Examples:
  $ maapctl ports
  $ maapctl acquire eth0 --count 8 --owner talker --wait
  $ maapctl list eth0
`

// NewRootCommand initializes the tree of commands.
func NewRootCommand(ctx context.Context) *cobra.Command {
	var (
		address string
		timeout time.Duration
		verbose bool
	)
	options := &ranges.Options{}

	var rootCmd = &cobra.Command{
		Use:          "maapctl",
		Short:        "Manage the address ranges of a MAAP daemon",
		Long:         maapctlLongHelp,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			options.Client = api.NewClient(address, timeout)
			options.Printer = output.NewPrinter(verbose)
		},
	}

	flagsutils.InitKlogFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&address, "address", "127.0.0.1:7420", "The address of the daemon management API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "The timeout of the requests to the daemon")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logs")

	rootCmd.AddCommand(newPortsCommand(ctx, options))
	rootCmd.AddCommand(newListCommand(ctx, options))
	rootCmd.AddCommand(newGetCommand(ctx, options))
	rootCmd.AddCommand(newAcquireCommand(ctx, options))
	rootCmd.AddCommand(newReleaseCommand(ctx, options))
	return rootCmd
}
