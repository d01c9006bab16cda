package ssdp

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Variant tags the shape of an outbound message, replacing the original
// C source's NULL-type sentinel for "bare UUID" with an explicit tagged
// alternative (spec §9 Design Notes).
type Variant int

const (
	// VariantNotify advertises a single supported type (NT = the type,
	// USN = "<uuid>::<type>").
	VariantNotify Variant = iota

	// VariantNotifyAll is the catch-all advertisement: NT carries the
	// UUID itself and USN is the bare UUID.
	VariantNotifyAll

	// VariantResponse is a unicast M-SEARCH reply for a matched ST.
	VariantResponse
)

// LocationFunc renders the description document URL for a given host
// literal, e.g. "http://192.168.1.10:1901/description.xml".
type LocationFunc func(hostLiteral string) string

// Message is a fully-formed outbound SSDP datagram body plus the
// information needed to compose it.
type Message struct {
	Variant      Variant
	Type         string // ST / NT value; ignored for VariantNotifyAll
	UUID         string
	ServerString string
	Location     string
}

// EncodeNotify formats a NOTIFY * HTTP/1.1 message per spec §4.5. isV4
// selects which multicast group the Host header names: a NOTIFY sent on an
// IPv6 record must carry "Host: [ff02::c]:1900", never the IPv4 group.
func EncodeNotify(uuid, serverString, location string, variant Variant, searchType string, isV4 bool) string {
	nt, usn := ntAndUSN(uuid, variant, searchType)

	var b strings.Builder
	b.WriteString("NOTIFY * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "Host: %s\r\n", multicastHostHeader(isV4))
	fmt.Fprintf(&b, "Server: %s\r\n", serverString)
	fmt.Fprintf(&b, "Location: %s\r\n", location)
	fmt.Fprintf(&b, "NT: %s\r\n", nt)
	b.WriteString("NTS: ssdp:alive\r\n")
	fmt.Fprintf(&b, "USN: %s\r\n", usn)
	fmt.Fprintf(&b, "Cache-Control: max-age=%d\r\n", int(cacheTimeout.Seconds()))
	b.WriteString("\r\n")
	return b.String()
}

// EncodeResponse formats an "HTTP/1.1 200 OK" M-SEARCH reply per spec
// §4.5. searchType is the matched ST and is echoed as-is in the ST header,
// including ssdp:all; with VariantNotifyAll (or a searchType equal to the
// UUID) the USN is the bare UUID, otherwise "<uuid>::<searchType>".
func EncodeResponse(uuid, serverString, location, searchType string, variant Variant) string {
	_, usn := ntAndUSN(uuid, variant, searchType)
	st := searchType

	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	fmt.Fprintf(&b, "Server: %s\r\n", serverString)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Location: %s\r\n", location)
	fmt.Fprintf(&b, "ST: %s\r\n", st)
	b.WriteString("EXT:\r\n")
	fmt.Fprintf(&b, "USN: %s\r\n", usn)
	fmt.Fprintf(&b, "Cache-Control: max-age=%d\r\n", int(cacheTimeout.Seconds()))
	b.WriteString("\r\n")
	return b.String()
}

// multicastHostHeader renders the "host:port" literal for the Host header
// of a NOTIFY, matching the per-record multicast group established at
// join time (socket.go's configureSendSocketV4/V6).
func multicastHostHeader(isV4 bool) string {
	if isV4 {
		return fmt.Sprintf("%s:%d", MulticastGroupV4, Port)
	}
	return fmt.Sprintf("[%s]:%d", MulticastGroupV6, Port)
}

// multicastDest returns the UDP destination a NOTIFY is written to,
// selected by the sending record's address family. The IPv6 multicast
// group is link-local scope (ff02::c), so the destination must carry a
// zone identifying the egress interface.
func multicastDest(isV4 bool, ifName string) *net.UDPAddr {
	if isV4 {
		return &net.UDPAddr{IP: net.ParseIP(MulticastGroupV4), Port: Port}
	}
	return &net.UDPAddr{IP: net.ParseIP(MulticastGroupV6), Port: Port, Zone: ifName}
}

// ntAndUSN computes the NT and USN fields shared by NOTIFY and response
// bodies: the catch-all variant, or a type equal to the UUID itself,
// carries the bare UUID in both NT and USN; everything else carries
// NT = type and USN = "<uuid>::<type>".
func ntAndUSN(uuid string, variant Variant, searchType string) (nt, usn string) {
	if variant == VariantNotifyAll || searchType == uuid {
		return uuid, uuid
	}
	return searchType, uuid + "::" + searchType
}

// EncodeSearch formats an M-SEARCH * HTTP/1.1 request, used by nothing in
// the responder's reactive path but kept symmetric with the decoder for
// the round-trip property in spec §8 and for test fixtures.
func EncodeSearch(searchType, serverString string) string {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "Host: %s:%d\r\n", MulticastGroupV4, Port)
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	b.WriteString("MX: 1\r\n")
	fmt.Fprintf(&b, "ST: %s\r\n", searchType)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", serverString)
	b.WriteString("\r\n")
	return b.String()
}

// ParseSearchTarget extracts the ST header from a raw M-SEARCH datagram.
// Absence of the header means "ssdp:all" (ok is still true). Anything
// that isn't a leading "M-SEARCH *" returns ok=false so the caller can
// silently drop it.
func ParseSearchTarget(data []byte) (st string, ok bool) {
	s := string(data)
	if !strings.HasPrefix(s, "M-SEARCH *") {
		return "", false
	}

	idx := indexHeaderCI(s, "\r\nST:")
	if idx < 0 {
		return SearchTargetAll, true
	}

	rest := s[idx+len("\r\nST:"):]
	end := strings.Index(rest, "\r\n")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// indexHeaderCI finds header (e.g. "\r\nST:") case-insensitively within s.
func indexHeaderCI(s, header string) int {
	ls, lh := strings.ToLower(s), strings.ToLower(header)
	return strings.Index(ls, lh)
}

// RenderHost formats an interface address for substitution into a
// Location/Host header: IPv4 passes through unchanged; IPv6 is stripped
// of any "%scope" zone suffix and wrapped in "[...]". net.IP itself holds
// no zone, so the strip only guards the string form.
func RenderHost(addr net.IP) string {
	if addr.To4() != nil {
		return addr.String()
	}
	s := addr.String()
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	return "[" + s + "]"
}

// Location renders the description document URL advertised in NOTIFY and
// response messages, per spec §4.5/§4.8.
func Location(addr net.IP) string {
	return fmt.Sprintf("http://%s:%d%s", RenderHost(addr), LocationPort, LocationPath)
}
