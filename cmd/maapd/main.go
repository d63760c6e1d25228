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

// Package main is the entrypoint of the MAAP daemon, which acquires and defends multicast MAC address ranges
// on the configured interfaces.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/liqotech/maap/pkg/maap"
	"github.com/liqotech/maap/pkg/maap/config"
	"github.com/liqotech/maap/pkg/maap/daemon"
	"github.com/liqotech/maap/pkg/utils/args"
	errorsutils "github.com/liqotech/maap/pkg/utils/errors"
	flagsutils "github.com/liqotech/maap/pkg/utils/flags"
	"github.com/liqotech/maap/pkg/utils/network/netmonitor"
)

const flagListenAddress = "listen-address"

var (
	engineOptions = maap.NewOptions()
	interfaces    args.StringList
	configPath    string
	listenAddress string
	linkTimeout   time.Duration
	waitTimeout   time.Duration
)

func main() {
	cmd := newCommand()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		klog.Error(err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var cmd = cobra.Command{
		Use:          "maapd",
		Short:        "Acquire and defend multicast MAC address ranges through MAAP",
		SilenceUsage: true,
		RunE:         run,
	}

	flagsutils.InitKlogFlags(cmd.Flags())
	errorsutils.InitFlags(cmd.Flags())
	maap.InitFlags(cmd.Flags(), engineOptions)

	cmd.Flags().Var(&interfaces, "interfaces", "The interfaces to run MAAP on, ignored if a configuration file is given")
	cmd.Flags().StringVar(&configPath, "config", "", "The path of the configuration file")
	cmd.Flags().StringVar(&listenAddress, flagListenAddress, "127.0.0.1:7420",
		"The address the management API listens on, overriding the configuration file (empty to disable)")
	cmd.Flags().DurationVar(&linkTimeout, "link-timeout", time.Minute, "How long to wait for the interfaces to show up")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 10*time.Second,
		"The maximum time the management API waits for an acquisition to complete")
	return &cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, &daemon.Options{
		Engine:      engineOptions,
		WaitTimeout: waitTimeout,
		Opener:      daemon.RawSocketOpener(linkTimeout),
		Monitor:     netmonitor.InterfaceMonitoring,
	})
	if err != nil {
		return err
	}
	return d.Run(cmd.Context())
}

// loadConfig builds the configuration from the file, if any, or from the command line.
// An explicit --listen-address takes precedence over the file, and the empty string disables the API.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	if configPath == "" {
		if len(interfaces.StringList) == 0 {
			return nil, errors.New("either --config or --interfaces must be set")
		}
		return config.FromInterfaces(listenAddress, interfaces.StringList), nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if flags.Changed(flagListenAddress) || cfg.ListenAddress == "" {
		cfg.ListenAddress = listenAddress
	}
	return cfg, nil
}
