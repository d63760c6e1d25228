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

// Package config loads the configuration file of the MAAP daemon.
package config

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/liqotech/maap/pkg/maap"
	"github.com/liqotech/maap/pkg/maap/macaddr"
)

// Config is the configuration of the MAAP daemon.
type Config struct {
	// ListenAddress is the address the management API listens on.
	ListenAddress string `json:"listenAddress,omitempty"`
	// Ports lists the interfaces MAAP runs on.
	Ports []Port `json:"ports"`
}

// Port is the configuration of a single interface. Unset fields inherit the daemon flags.
type Port struct {
	Interface         string        `json:"interface"`
	PoolBase          *macaddr.Addr `json:"poolBase,omitempty"`
	PoolSize          int           `json:"poolSize,omitempty"`
	MaxRanges         int           `json:"maxRanges,omitempty"`
	PreferLowerSender *bool         `json:"preferLowerSender,omitempty"`
	// Ranges are acquired as soon as the port starts, and held until the daemon stops.
	Ranges []Range `json:"ranges,omitempty"`
}

// Range is a range acquired at startup.
type Range struct {
	Owner string        `json:"owner,omitempty"`
	Count int           `json:"count"`
	Base  *macaddr.Addr `json:"base,omitempty"`
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration file %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromInterfaces returns the configuration of the given interfaces, without startup ranges.
func FromInterfaces(listenAddress string, interfaces []string) *Config {
	cfg := &Config{ListenAddress: listenAddress}
	for _, name := range interfaces {
		cfg.Ports = append(cfg.Ports, Port{Interface: name})
	}
	return cfg
}

// Validate checks the configuration is consistent.
func (c *Config) Validate() error {
	if len(c.Ports) == 0 {
		return errors.New("no port configured")
	}

	var errs []error
	seen := make(map[string]bool, len(c.Ports))
	for i := range c.Ports {
		p := &c.Ports[i]
		switch {
		case p.Interface == "":
			errs = append(errs, fmt.Errorf("port %d: interface name is required", i))
		case seen[p.Interface]:
			errs = append(errs, fmt.Errorf("port %d: interface %s configured twice", i, p.Interface))
		}
		seen[p.Interface] = true

		if p.PoolSize < 0 || p.MaxRanges < 0 {
			errs = append(errs, fmt.Errorf("port %s: pool size and max ranges must not be negative", p.Interface))
		}
		for j, r := range p.Ranges {
			if r.Count < 1 {
				errs = append(errs, fmt.Errorf("port %s: range %d: count must be positive", p.Interface, j))
			}
		}
	}
	return errors.Join(errs...)
}

// Options returns the engine options of the port, starting from the defaults set by the flags.
func (p *Port) Options(defaults *maap.Options) *maap.Options {
	opts := *defaults
	opts.Port = p.Interface
	if p.PoolBase != nil {
		opts.PoolBase.Addr = *p.PoolBase
	}
	if p.PoolSize > 0 {
		opts.PoolSize = p.PoolSize
	}
	if p.MaxRanges > 0 {
		opts.MaxRanges = p.MaxRanges
	}
	if p.PreferLowerSender != nil {
		opts.PreferLowerSender = *p.PreferLowerSender
	}
	return &opts
}

// Requests returns the allocation requests of the startup ranges of the port.
func (p *Port) Requests() []maap.AllocationRequest {
	requests := make([]maap.AllocationRequest, 0, len(p.Ranges))
	for _, r := range p.Ranges {
		requests = append(requests, maap.AllocationRequest{Count: r.Count, Owner: r.Owner, Base: r.Base})
	}
	return requests
}
