// Package netutil wraps net.Interfaces enumeration with the
// family-aware address/netmask extraction the refresher needs, kept
// separate from package ssdp so it can be unit tested without a live
// socket stack.
package netutil

import "net"

// Addr is one address bound to an interface, with its family-appropriate
// netmask already extracted (nil for IPv6, since the registry never masks
// IPv6 addresses).
type Addr struct {
	IP   net.IP
	Mask net.IPMask
}

// InterfaceLister abstracts interface enumeration so callers can inject a
// fake implementation in tests instead of depending on the host's real
// network configuration.
type InterfaceLister interface {
	Interfaces() ([]net.Interface, error)
	AddrsFor(iface net.Interface) ([]net.Addr, error)
}

// SystemLister is the InterfaceLister backed by the real net package.
type SystemLister struct{}

func (SystemLister) Interfaces() ([]net.Interface, error) {
	return net.Interfaces()
}

func (SystemLister) AddrsFor(iface net.Interface) ([]net.Addr, error) {
	return iface.Addrs()
}

// Enumerate lists every (interface, address) pair eligible for
// consideration by the refresher: the interface must be up and not a
// loopback, matching the coarse filter in spec §4.4 (fine-grained
// per-address filtering, e.g. link-local-only for IPv6, is the
// refresher's job, not this package's).
func Enumerate(lister InterfaceLister) ([]IfaceAddrs, error) {
	ifaces, err := lister.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []IfaceAddrs
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := lister.AddrsFor(iface)
		if err != nil {
			continue
		}

		var resolved []Addr
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			mask := ipnet.Mask
			if ipnet.IP.To4() == nil {
				mask = nil
			}
			resolved = append(resolved, Addr{IP: ipnet.IP, Mask: mask})
		}
		if len(resolved) == 0 {
			continue
		}

		out = append(out, IfaceAddrs{Iface: iface, Addrs: resolved})
	}
	return out, nil
}

// IfaceAddrs groups one network interface with its eligible addresses.
type IfaceAddrs struct {
	Iface net.Interface
	Addrs []Addr
}
