// Package ssdp implements the SSDP discovery engine: interface tracking,
// multicast socket lifecycle, the NOTIFY/M-SEARCH message codec, and the
// single-threaded event loop that ties them together.
package ssdp

import (
	"net"
)

// Record is one admitted (address-family, interface-address) pair.
//
// A Record is either a listener record (shared multicast receive socket,
// Out == nil, never removed except at teardown) or a sender record (owns
// a per-interface send socket, created and destroyed by the refresher).
// The two kinds were a single conflated type in the original C source;
// here they share a struct but Out's nilness is the tag, matching the
// "out_socket == none" distinction in spec.
type Record struct {
	// IfName is the originating interface name; empty for listener records.
	IfName string

	// Addr is this record's local address (IPv4 or IPv6, 4-byte or
	// 16-byte net.IP depending on family).
	Addr net.IP

	// Mask is the IPv4 netmask; nil for IPv6 (see maskedEqual) and
	// for listener records.
	Mask net.IPMask

	// In is the shared receive multicast socket for this family. It is
	// set only on listener records; sender records leave it nil. Closed
	// once by the listener teardown, never by sweep.
	In net.PacketConn

	// Out is the per-interface send socket. nil marks a listener record.
	// Owned exclusively by this record; closed exactly once when the
	// record is swept or at final teardown.
	Out net.PacketConn

	// Stale is scratch state used only during refresh (mark/sweep).
	Stale bool

	// Modified is set true when the record is created and cleared after
	// its first announcement, driving Announce(incremental).
	Modified bool
}

// IsListener reports whether this is a shared-receive-socket record with
// no dedicated send socket.
func (r *Record) IsListener() bool {
	return r.Out == nil
}

func (r *Record) isIPv4() bool {
	return r.Addr.To4() != nil
}

// Registry holds the set of admitted interface Records and the two
// lookup predicates used by the refresher and responder.
//
// Registry is not safe for concurrent use; it is owned exclusively by the
// event loop goroutine (§5 of the spec).
type Registry struct {
	records []*Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Len reports the number of admitted records, including listeners.
func (reg *Registry) Len() int {
	return len(reg.records)
}

// All returns the records in insertion order. The returned slice must not
// be mutated by the caller.
func (reg *Registry) All() []*Record {
	return reg.records
}

// Add admits a new record, rejecting duplicates and invalid addresses per
// the insertion rules in spec §4.1. Listener records (Out == nil) skip
// the duplicate/scope checks since there is exactly one per family.
func (reg *Registry) Add(r *Record) error {
	if !r.IsListener() {
		if r.Addr == nil || r.Addr.IsUnspecified() || r.Addr.IsLoopback() {
			return errRejectedAddr
		}
		if !r.isIPv4() && !r.Addr.IsLinkLocalUnicast() {
			return errRejectedScope
		}
		for _, cur := range reg.records {
			if !cur.IsListener() && cur.Addr.Equal(r.Addr) {
				return errDuplicate
			}
		}
	}
	reg.records = append(reg.records, r)
	return nil
}

// Remove drops r from the registry. It does not close any sockets; the
// caller (the refresher's sweep phase, or final teardown) is responsible
// for that.
func (reg *Registry) Remove(r *Record) {
	out := reg.records[:0]
	for _, cur := range reg.records {
		if cur != r {
			out = append(out, cur)
		}
	}
	reg.records = out
}

// FindExact returns the record whose local address equals addr: IPv4
// compares the 32-bit address, IPv6 compares the full 128 bits or matches
// a record bound to the unspecified address (the listener).
func (reg *Registry) FindExact(addr net.IP) *Record {
	return reg.findExact(addr)
}

func (reg *Registry) findExact(addr net.IP) *Record {
	if addr == nil {
		return nil
	}
	isV4 := addr.To4() != nil
	for _, r := range reg.records {
		if r.isIPv4() != isV4 {
			continue
		}
		if isV4 {
			if r.Addr.Equal(addr) {
				return r
			}
			continue
		}
		// IPv6: exact match, or a record bound to the unspecified
		// address (the shared listener).
		if r.Addr.Equal(addr) || r.Addr.IsUnspecified() {
			return r
		}
	}
	return nil
}

// FindOutbound selects the best record to answer a peer at peerAddr.
//
// IPv4: the record R such that (R.Addr & R.Mask) == (peerAddr & R.Mask),
// skipping records whose address or mask is unspecified; the first match
// in iteration (insertion) order wins.
//
// IPv6: the record whose address equals peerAddr exactly; if none match,
// fall back to any link-local record, honoring the "likely bug" call-out
// in spec §9 (the rewrite implements the evidently-intended exact-match
// plus link-local fallback, not the original's accidental self-compare).
func (reg *Registry) FindOutbound(peerAddr net.IP) *Record {
	if peerAddr == nil {
		return nil
	}
	if peerAddr.To4() != nil {
		return reg.findOutbound4(peerAddr)
	}
	return reg.findOutbound6(peerAddr)
}

func (reg *Registry) findOutbound4(peerAddr net.IP) *Record {
	cand := peerAddr.To4()
	for _, r := range reg.records {
		if !r.isIPv4() || r.IsListener() {
			continue
		}
		if r.Addr.IsUnspecified() || r.Mask == nil {
			continue
		}
		if maskedEqual(r.Addr.To4(), cand, r.Mask) {
			return r
		}
	}
	return nil
}

func (reg *Registry) findOutbound6(peerAddr net.IP) *Record {
	var fallback *Record
	for _, r := range reg.records {
		if r.isIPv4() || r.IsListener() {
			continue
		}
		if r.Addr.Equal(peerAddr) {
			return r
		}
		if fallback == nil && r.Addr.IsLinkLocalUnicast() {
			fallback = r
		}
	}
	return fallback
}

func maskedEqual(a, b net.IP, mask net.IPMask) bool {
	if len(a) != len(b) || len(a) != len(mask) {
		return false
	}
	for i := range a {
		if a[i]&mask[i] != b[i]&mask[i] {
			return false
		}
	}
	return true
}
