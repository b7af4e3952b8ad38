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

	log "github.com/sirupsen/logrus"
)

// BindVIPs assigns the responder's configured listen IPs onto iface before
// the listener starts accepting, so operators fronting TSQ with an anycast
// or VIP-style address don't need a separate tool to manage it. Gated
// behind Config.ManageIPs (default off): TSQ's transport is
// connection-oriented QUIC, not anycast UDP, so most deployments won't
// need this (see DESIGN.md).
func BindVIPs(iface string, ips []net.IP) error {
	ifc, err := net.InterfaceByName(iface)
	if err != nil {
		return fmt.Errorf("looking up interface %s: %w", iface, err)
	}
	for _, ip := range ips {
		log.Infof("binding %s to %s", ip, iface)
		if err := addIfaceIP(ifc, &ip); err != nil {
			return fmt.Errorf("binding %s to %s: %w", ip, iface, err)
		}
	}
	return nil
}

// WithdrawVIPs removes the responder's configured listen IPs from iface on
// shutdown. Errors are logged, not returned, so one failure doesn't stop
// the rest of the withdrawal.
func WithdrawVIPs(iface string, ips []net.IP) {
	ifc, err := net.InterfaceByName(iface)
	if err != nil {
		log.Errorf("looking up interface %s for VIP withdrawal: %v", iface, err)
		return
	}
	for _, ip := range ips {
		log.Infof("withdrawing %s from %s", ip, iface)
		if err := deleteIfaceIP(ifc, &ip); err != nil {
			log.Errorf("withdrawing %s from %s: %v", ip, iface, err)
		}
	}
}

// checkIP reports whether addr is already assigned to iface.
func checkIP(iface *net.Interface, addr *net.IP) (bool, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return false, err
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPAddr:
			ip = v.IP
		case *net.IPNet:
			ip = v.IP
		default:
			continue
		}
		if ip.Equal(*addr) {
			return true, nil
		}
	}
	return false, nil
}
