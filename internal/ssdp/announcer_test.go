package ssdp

import (
	"net"
	"strings"
	"testing"
	"time"
)

// recordingConn captures every WriteTo payload instead of touching a real
// socket, so Announce/Respond can be tested without the network.
type recordingConn struct {
	sent  []string
	dests []net.Addr
}

func (c *recordingConn) ReadFrom(p []byte) (int, net.Addr, error) { return 0, nil, nil }
func (c *recordingConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.sent = append(c.sent, string(p))
	c.dests = append(c.dests, addr)
	return len(p), nil
}
func (c *recordingConn) Close() error                     { return nil }
func (c *recordingConn) LocalAddr() net.Addr               { return nil }
func (c *recordingConn) SetDeadline(t time.Time) error      { return nil }
func (c *recordingConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *recordingConn) SetWriteDeadline(t time.Time) error { return nil }

func testIdentity() *Identity {
	return &Identity{
		UUID:         testUUID,
		ServerString: "Test/1.0 UPnP/1.0 ssdpd/1.0",
		DeviceType:   "urn:example:device:Foo:1",
		SearchTargets: []string{
			SearchTargetAll,
			rootDeviceType,
			"urn:example:device:Foo:1",
			testUUID,
		},
	}
}

func TestAnnounceIncrementalSkipsUnmodified(t *testing.T) {
	reg := NewRegistry()
	conn := &recordingConn{}
	rec := &Record{Addr: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32), Out: conn, Modified: false}
	if err := reg.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	a := &Announcer{Registry: reg, Identity: testIdentity(), LocationFor: Location}
	a.Announce(AnnounceIncremental)

	if len(conn.sent) != 0 {
		t.Fatalf("expected no NOTIFY for unmodified record, got %d", len(conn.sent))
	}
}

func TestAnnounceEmitsOneNotifyPerTypeExceptBareUUID(t *testing.T) {
	reg := NewRegistry()
	conn := &recordingConn{}
	rec := &Record{Addr: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32), Out: conn, Modified: true}
	if err := reg.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	id := testIdentity()
	a := &Announcer{Registry: reg, Identity: id, LocationFor: Location}
	a.Announce(AnnounceFull)

	if len(conn.sent) != 3 {
		t.Fatalf("got %d NOTIFY messages, want 3 (all types except the bare uuid)", len(conn.sent))
	}
	if rec.Modified {
		t.Fatalf("expected Modified to be cleared after Announce")
	}
}

func TestAnnounceCatchAllCarriesBareUUIDInNTAndUSN(t *testing.T) {
	reg := NewRegistry()
	conn := &recordingConn{}
	rec := &Record{Addr: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32), Out: conn, Modified: true}
	if err := reg.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	a := &Announcer{Registry: reg, Identity: testIdentity(), LocationFor: Location}
	a.Announce(AnnounceFull)

	var found bool
	for _, msg := range conn.sent {
		if strings.Contains(msg, "NT: "+testUUID+"\r\n") {
			found = true
			mustContain(t, msg, "USN: "+testUUID+"\r\n")
		}
	}
	if !found {
		t.Fatalf("expected one NOTIFY carrying the bare uuid as NT (the ssdp:all wave)")
	}
}

func TestAnnounceIPv6RecordUsesIPv6MulticastGroup(t *testing.T) {
	reg := NewRegistry()
	conn := &recordingConn{}
	rec := &Record{IfName: "eth0", Addr: net.ParseIP("fe80::1"), Out: conn, Modified: true}
	if err := reg.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	a := &Announcer{Registry: reg, Identity: testIdentity(), LocationFor: Location}
	a.Announce(AnnounceFull)

	if len(conn.sent) != 3 {
		t.Fatalf("got %d NOTIFY messages, want 3", len(conn.sent))
	}
	for i, msg := range conn.sent {
		mustContain(t, msg, "Host: [ff02::c]:1900\r\n")
		if strings.Contains(msg, MulticastGroupV4) {
			t.Fatalf("NOTIFY for IPv6 record carries the IPv4 group: %s", msg)
		}

		dest, ok := conn.dests[i].(*net.UDPAddr)
		if !ok {
			t.Fatalf("destination %d is not a *net.UDPAddr", i)
		}
		if !dest.IP.Equal(net.ParseIP(MulticastGroupV6)) {
			t.Fatalf("destination %d = %s, want %s", i, dest.IP, MulticastGroupV6)
		}
		if dest.Zone != "eth0" {
			t.Fatalf("destination %d zone = %q, want %q", i, dest.Zone, "eth0")
		}
	}
}

func TestRespondUsesOutboundSelection(t *testing.T) {
	reg := NewRegistry()
	conn := &recordingConn{}
	rec := &Record{Addr: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32), Out: conn}
	if err := reg.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	a := &Announcer{Registry: reg, Identity: testIdentity(), LocationFor: Location}
	sender := &net.UDPAddr{IP: net.ParseIP("192.168.1.77"), Port: 4000}
	a.Respond(sender, rootDeviceType)

	if len(conn.sent) != 1 {
		t.Fatalf("got %d responses, want 1", len(conn.sent))
	}
	mustContain(t, conn.sent[0], "HTTP/1.1 200 OK")
	mustContain(t, conn.sent[0], "ST: "+rootDeviceType)
}

func TestRespondDropsWhenNoOutboundRecord(t *testing.T) {
	reg := NewRegistry()
	a := &Announcer{Registry: reg, Identity: testIdentity(), LocationFor: Location}
	sender := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 4000}
	// Must not panic even though no record covers this sender.
	a.Respond(sender, rootDeviceType)
}
