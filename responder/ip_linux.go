//go:build linux

/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package responder

import (
	"fmt"
	"net"

	"github.com/jsimonetti/rtnetlink/rtnl"
)

const (
	bitsInBytes = 8
	ipv4Mask    = 32
	ipv6Mask    = 64
	ipv4Len     = net.IPv4len * bitsInBytes
	ipv6Len     = net.IPv6len * bitsInBytes
)

func maskFor(addr *net.IP) net.IPMask {
	if v4 := addr.To4(); v4 == nil {
		return net.CIDRMask(ipv6Mask, ipv6Len)
	}
	return net.CIDRMask(ipv4Mask, ipv4Len)
}

func addIfaceIP(iface *net.Interface, addr *net.IP) error {
	assigned, err := checkIP(iface, addr)
	if err != nil {
		return err
	}
	if assigned {
		return nil
	}

	conn, err := rtnl.Dial(nil)
	if err != nil {
		return fmt.Errorf("establishing netlink connection: %w", err)
	}
	defer conn.Close()

	if err := conn.AddrAdd(iface, &net.IPNet{IP: *addr, Mask: maskFor(addr)}); err != nil {
		return fmt.Errorf("adding address: %w", err)
	}
	return nil
}

func deleteIfaceIP(iface *net.Interface, addr *net.IP) error {
	assigned, err := checkIP(iface, addr)
	if err != nil {
		return err
	}
	if !assigned {
		return nil
	}

	conn, err := rtnl.Dial(nil)
	if err != nil {
		return fmt.Errorf("establishing netlink connection: %w", err)
	}
	defer conn.Close()

	if err := conn.AddrDel(iface, &net.IPNet{IP: *addr, Mask: maskFor(addr)}); err != nil {
		return fmt.Errorf("removing address: %w", err)
	}
	return nil
}
