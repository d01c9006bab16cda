package webdesc

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (addr string, cleanup func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := &Server{Config: Config{
		DeviceType:   "urn:schemas-upnp-org:device:Test:1",
		FriendlyName: "Test Device",
		Manufacturer: "Acme",
		ModelName:    "Widget",
		UUID:         "uuid:12345678-1234-4123-8123-123456789012",
	}}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, ln)

	return ln.Addr().String(), func() {
		cancel()
		ln.Close()
	}
}

func doRequest(t *testing.T, addr, request string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write([]byte(request)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var sb strings.Builder
	reader := bufio.NewReader(conn)
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return sb.String()
}

func TestDescriptionServerServesXMLOnGet(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	resp := doRequest(t, addr, "GET /description.xml HTTP/1.1\r\nHost: x\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK") {
		t.Fatalf("response does not start with 200 OK: %q", resp)
	}
	if !strings.Contains(resp, "Content-Type: text/xml") {
		t.Fatalf("response missing Content-Type: %q", resp)
	}
	if !strings.Contains(resp, "<friendlyName>Test Device</friendlyName>") {
		t.Fatalf("response missing substituted friendlyName: %q", resp)
	}
}

func TestDescriptionServerReturns404ForWrongPath(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	resp := doRequest(t, addr, "GET /other.xml HTTP/1.1\r\nHost: x\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 404") {
		t.Fatalf("expected 404, got %q", resp)
	}
}

func TestDescriptionServerReturns400ForNonGet(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	resp := doRequest(t, addr, "POST /description.xml HTTP/1.1\r\nHost: x\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 400") {
		t.Fatalf("expected 400, got %q", resp)
	}
}

func TestDescriptionServerReturns400ForBadProtocol(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	resp := doRequest(t, addr, "GET /description.xml HTTP/0.9\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 400") {
		t.Fatalf("expected 400, got %q", resp)
	}
}

func TestResolveHostLiteralUnmapsIPv4MappedIPv6(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("::ffff:192.168.1.10"), Port: 1901}
	got := resolveHostLiteral(addr)
	if got != "192.168.1.10" {
		t.Fatalf("resolveHostLiteral = %q, want 192.168.1.10", got)
	}
}

func TestResolveHostLiteralBracketsIPv6(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("fe80::1"), Port: 1901}
	got := resolveHostLiteral(addr)
	if got != "[fe80::1]" {
		t.Fatalf("resolveHostLiteral = %q, want [fe80::1]", got)
	}
}
