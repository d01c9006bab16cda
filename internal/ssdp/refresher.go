package ssdp

import (
	"context"
	"log/slog"
	"net"

	"github.com/troglobit-labs/ssdpd/internal/netutil"
)

// Refresher periodically re-enumerates system interfaces and reconciles
// the registry against reality: newly-eligible addresses are admitted
// with a fresh send socket, vanished ones are swept and their sockets
// closed (spec §4.4).
type Refresher struct {
	Registry *Registry
	Lister   netutil.InterfaceLister
	Allow    []string // interface name allow-list; empty means all
	Logger   *slog.Logger
}

// Refresh runs one mark/enumerate/sweep/admit cycle and returns the
// number of records added or removed, so the caller can decide whether
// to trigger an incremental announcement (spec §4.6).
func (rf *Refresher) Refresh(ctx context.Context) (int, error) {
	rf.mark()

	groups, err := netutil.Enumerate(rf.Lister)
	if err != nil {
		return 0, err
	}

	type candidate struct {
		iface net.Interface
		addr  netutil.Addr
	}
	var eligible []candidate
	for _, g := range groups {
		if !rf.ifaceAllowed(g.Iface.Name) {
			continue
		}
		for _, a := range g.Addrs {
			if !rf.addrAllowed(a) {
				continue
			}
			eligible = append(eligible, candidate{iface: g.Iface, addr: a})
		}
	}

	// findSender matches sender records only: FindExact's IPv6 fallback
	// to the unspecified-address listener would otherwise hide them.
	findSender := func(ip net.IP) *Record {
		for _, r := range rf.Registry.All() {
			if !r.IsListener() && r.Addr.Equal(ip) {
				return r
			}
		}
		return nil
	}

	for _, c := range eligible {
		if r := findSender(c.addr.IP); r != nil {
			r.Stale = false
		}
	}

	changed := rf.sweep()

	for _, c := range eligible {
		if findSender(c.addr.IP) != nil {
			continue
		}
		if rf.coveredBySubnet(c.addr) {
			continue
		}
		if rf.Registry.Len() >= MaxInterfaces {
			if rf.Logger != nil {
				rf.Logger.Warn("max interfaces reached, dropping candidate", "iface", c.iface.Name, "addr", c.addr.IP)
			}
			continue
		}

		out, err := openSendSocket(ctx, &c.iface, c.addr.IP)
		if err != nil {
			if rf.Logger != nil {
				rf.Logger.Warn("failed to open send socket", "iface", c.iface.Name, "addr", c.addr.IP, "error", err)
			}
			continue
		}

		rec := &Record{
			IfName:   c.iface.Name,
			Addr:     c.addr.IP,
			Mask:     c.addr.Mask,
			Out:      out,
			Modified: true,
		}
		if err := rf.Registry.Add(rec); err != nil {
			out.Close()
			if rf.Logger != nil {
				rf.Logger.Warn("rejected candidate", "iface", c.iface.Name, "addr", c.addr.IP, "error", err)
			}
			continue
		}
		changed++
	}

	return changed, nil
}

// mark sets stale=true on every sender record ahead of enumeration;
// listener records (out_socket == none) are never swept.
func (rf *Refresher) mark() {
	for _, r := range rf.Registry.All() {
		r.Stale = !r.IsListener()
	}
}

// sweep closes and removes every record still marked stale after
// enumeration, returning the number removed.
func (rf *Refresher) sweep() int {
	removed := 0
	for _, r := range append([]*Record(nil), rf.Registry.All()...) {
		if !r.Stale {
			continue
		}
		if r.Out != nil {
			r.Out.Close()
		}
		rf.Registry.Remove(r)
		removed++
		if rf.Logger != nil {
			rf.Logger.Info("interface removed", "iface", r.IfName, "addr", r.Addr)
		}
	}
	return removed
}

func (rf *Refresher) ifaceAllowed(name string) bool {
	if len(rf.Allow) == 0 {
		return true
	}
	for _, a := range rf.Allow {
		if a == name {
			return true
		}
	}
	return false
}

// addrAllowed applies the address filter in spec §4.4: unspecified and
// loopback addresses are always rejected; IPv6 addresses must be
// link-local.
func (rf *Refresher) addrAllowed(a netutil.Addr) bool {
	if a.IP.IsUnspecified() || a.IP.IsLoopback() {
		return false
	}
	if a.IP.To4() == nil && !a.IP.IsLinkLocalUnicast() {
		return false
	}
	return true
}

// coveredBySubnet rejects an IPv4 candidate already covered by another
// registered record in the same (addr & mask) subnet, per spec §4.4.
func (rf *Refresher) coveredBySubnet(a netutil.Addr) bool {
	if a.IP.To4() == nil || a.Mask == nil {
		return false
	}
	for _, r := range rf.Registry.All() {
		if r.IsListener() || !r.isIPv4() || r.Mask == nil {
			continue
		}
		if maskedEqual(r.Addr.To4(), a.IP.To4(), r.Mask) {
			return true
		}
	}
	return false
}
