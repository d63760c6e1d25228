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

// Package netmonitor watches the network interfaces MAAP runs on.
package netmonitor

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/vishvananda/netlink"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"

	"github.com/liqotech/maap/pkg/maap/macaddr"
)

// Link describes a network interface.
type Link struct {
	Name         string
	Index        int
	HardwareAddr macaddr.Addr
	Operational  bool
}

// Options defines the callbacks invoked when the state of the monitored interface changes.
// Nil callbacks are ignored.
type Options struct {
	// OnUp is invoked when the interface becomes operational.
	OnUp func()
	// OnDown is invoked when the interface is no longer operational.
	OnDown func()
	// OnRemoved is invoked when the interface is deleted. Monitoring stops afterwards.
	OnRemoved func()
}

// linkEvent is the transition of the monitored interface caused by a link update.
type linkEvent int

const (
	linkEventNone linkEvent = iota
	linkEventUp
	linkEventDown
	linkEventRemoved
)

// WaitForLink waits until the interface exists, and returns its description.
func WaitForLink(ctx context.Context, name string, timeout time.Duration) (*Link, error) {
	var link netlink.Link
	klog.Infof("Waiting for interface %s", name)
	if err := wait.PollUntilContextTimeout(ctx, time.Millisecond*500, timeout, true, func(context.Context) (bool, error) {
		var err error
		if link, err = netlink.LinkByName(name); err != nil {
			klog.V(4).Infof("Interface %s not available yet: %v", name, err)
			return false, nil
		}
		return true, nil
	}); err != nil {
		return nil, fmt.Errorf("interface %s not found: %w", name, err)
	}
	return describe(link.Attrs())
}

// InterfaceMonitoring watches the given interface until the context is canceled or the interface is removed,
// invoking the callbacks of the options on every change of its operational state.
func InterfaceMonitoring(ctx context.Context, name string, options *Options) error {
	chLink := make(chan netlink.LinkUpdate)
	if err := netlink.LinkSubscribe(chLink, ctx.Done()); err != nil {
		klog.Error(err)
		return err
	}

	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("unable to retrieve interface %s: %w", name, err)
	}
	up := isOperational(link.Attrs())
	klog.Infof("Monitoring interface %s (operational: %t)", name, up)

	for {
		select {
		case update, ok := <-chLink:
			if !ok {
				return fmt.Errorf("link subscription for %s closed", name)
			}
			var event linkEvent
			if event, up = handleLinkUpdate(&update, name, up); event != linkEventNone {
				dispatch(event, name, options)
			}
			if event == linkEventRemoved {
				return nil
			}
		case <-ctx.Done():
			klog.Infof("Stop monitoring interface %s", name)
			return nil
		}
	}
}

// handleLinkUpdate returns the transition caused by the update, and whether the interface is now operational.
func handleLinkUpdate(update *netlink.LinkUpdate, name string, wasUp bool) (linkEvent, bool) {
	if update.Link == nil || update.Link.Attrs().Name != name {
		return linkEventNone, wasUp
	}

	switch {
	case update.Header.Type == syscall.RTM_DELLINK:
		return linkEventRemoved, false
	case update.Header.Type == syscall.RTM_NEWLINK:
		up := isOperational(update.Link.Attrs())
		switch {
		case up && !wasUp:
			return linkEventUp, true
		case !up && wasUp:
			return linkEventDown, false
		default:
			return linkEventNone, up
		}
	default:
		return linkEventNone, wasUp
	}
}

func dispatch(event linkEvent, name string, options *Options) {
	switch event {
	case linkEventUp:
		klog.Infof("Interface %s is up", name)
		if options.OnUp != nil {
			options.OnUp()
		}
	case linkEventDown:
		klog.Infof("Interface %s is down", name)
		if options.OnDown != nil {
			options.OnDown()
		}
	case linkEventRemoved:
		klog.Warningf("Interface %s removed", name)
		if options.OnRemoved != nil {
			options.OnRemoved()
		}
	default:
	}
}

// isOperational reports whether the interface can carry traffic. Virtual interfaces often report an unknown
// operational state, in which case the administrative state is used.
func isOperational(attrs *netlink.LinkAttrs) bool {
	switch attrs.OperState {
	case netlink.OperUp:
		return true
	case netlink.OperUnknown:
		return attrs.Flags&net.FlagUp != 0
	default:
		return false
	}
}

func describe(attrs *netlink.LinkAttrs) (*Link, error) {
	if len(attrs.HardwareAddr) != 6 {
		return nil, fmt.Errorf("interface %s has no 48-bit hardware address", attrs.Name)
	}
	return &Link{
		Name:         attrs.Name,
		Index:        attrs.Index,
		HardwareAddr: macaddr.AddrFromSlice(attrs.HardwareAddr),
		Operational:  isOperational(attrs),
	}, nil
}
