package ssdp

import (
	"net"
	"strings"
	"testing"
)

const testUUID = "uuid:12345678-1234-4123-8123-123456789012"

func TestEncodeResponseRootDevice(t *testing.T) {
	loc := Location(net.ParseIP("192.168.1.10"))
	msg := EncodeResponse(testUUID, "Test/1.0 UPnP/1.0 ssdpd/1.0", loc, "upnp:rootdevice", VariantResponse)

	mustContain(t, msg, "HTTP/1.1 200 OK")
	mustContain(t, msg, "ST: upnp:rootdevice")
	mustContain(t, msg, "USN: "+testUUID+"::upnp:rootdevice")
	mustContain(t, msg, "Location: http://192.168.1.10:1901/description.xml")
	mustContain(t, msg, "Cache-Control: max-age=1800")
}

func TestEncodeResponseCatchAll(t *testing.T) {
	loc := Location(net.ParseIP("192.168.1.10"))
	msg := EncodeResponse(testUUID, "srv", loc, SearchTargetAll, VariantNotifyAll)

	mustContain(t, msg, "USN: "+testUUID)
	mustContain(t, msg, "ST: ssdp:all")
}

func TestEncodeNotifyRootDevice(t *testing.T) {
	loc := Location(net.ParseIP("192.168.1.10"))
	notify := EncodeNotify(testUUID, "srv", loc, VariantNotify, "upnp:rootdevice", true)

	mustContain(t, notify, "NOTIFY * HTTP/1.1")
	mustContain(t, notify, "NTS: ssdp:alive")
	mustContain(t, notify, "NT: upnp:rootdevice")
	mustContain(t, notify, "USN: "+testUUID+"::upnp:rootdevice")
	mustContain(t, notify, "Host: 239.255.255.250:1900")
}

func TestEncodeNotifyIPv6HostHeaderUsesIPv6Group(t *testing.T) {
	loc := Location(net.ParseIP("fe80::1"))
	notify := EncodeNotify(testUUID, "srv", loc, VariantNotify, "upnp:rootdevice", false)

	mustContain(t, notify, "Host: [ff02::c]:1900")
}

// TestRoundTripSearchTarget verifies the ST round-trip: composing an
// M-SEARCH with ST=upnp:rootdevice via EncodeSearch and parsing its ST
// header back out with ParseSearchTarget yields the same value.
func TestRoundTripSearchTarget(t *testing.T) {
	search := EncodeSearch("upnp:rootdevice", "srv")
	st, ok := ParseSearchTarget([]byte(search))
	if !ok {
		t.Fatalf("ParseSearchTarget failed to parse own EncodeSearch output")
	}
	if st != "upnp:rootdevice" {
		t.Fatalf("ParseSearchTarget = %q, want %q", st, "upnp:rootdevice")
	}
}

func TestParseSearchTargetMissingSTDefaultsAll(t *testing.T) {
	raw := "M-SEARCH * HTTP/1.1\r\nHost: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 1\r\n\r\n"
	st, ok := ParseSearchTarget([]byte(raw))
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if st != SearchTargetAll {
		t.Fatalf("st = %q, want %q", st, SearchTargetAll)
	}
}

func TestParseSearchTargetCaseInsensitiveHeader(t *testing.T) {
	raw := "M-SEARCH * HTTP/1.1\r\nHost: 239.255.255.250:1900\r\nst: upnp:rootdevice\r\n\r\n"
	st, ok := ParseSearchTarget([]byte(raw))
	if !ok || st != "upnp:rootdevice" {
		t.Fatalf("got st=%q ok=%v, want upnp:rootdevice/true", st, ok)
	}
}

func TestParseSearchTargetRejectsNonMSearch(t *testing.T) {
	raw := "NOTIFY * HTTP/1.1\r\nST: upnp:rootdevice\r\n\r\n"
	_, ok := ParseSearchTarget([]byte(raw))
	if ok {
		t.Fatalf("expected ok=false for non M-SEARCH datagram")
	}
}

func TestParseSearchTargetMalformedDropped(t *testing.T) {
	raw := "M-SEARCH * HTTP/1.1\r\nST: upnp:rootdevice" // no terminating CRLF
	_, ok := ParseSearchTarget([]byte(raw))
	if ok {
		t.Fatalf("expected ok=false for malformed header")
	}
}

func TestRenderHostIPv6Brackets(t *testing.T) {
	addr := net.ParseIP("fe80::1")
	got := RenderHost(addr)
	if got != "[fe80::1]" {
		t.Fatalf("RenderHost = %q, want [fe80::1]", got)
	}
}

func TestRenderHostIPv4Unbracketed(t *testing.T) {
	addr := net.ParseIP("192.168.1.10")
	got := RenderHost(addr)
	if got != "192.168.1.10" {
		t.Fatalf("RenderHost = %q, want 192.168.1.10", got)
	}
}

func mustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected message to contain %q, got:\n%s", needle, haystack)
	}
}
