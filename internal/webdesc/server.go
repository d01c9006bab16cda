package webdesc

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// Config carries the static fields substituted into every description
// document response; only the resolved host literal varies per request.
type Config struct {
	DeviceType      string
	FriendlyName    string
	Manufacturer    string
	ManufacturerURL string
	ModelName       string
	UUID            string
}

// Server is the TCP description server from spec §4.8: every listener
// passed to Serve serves the same fixed document, with only the embedded
// presentation URL varying by the local address the client reached.
type Server struct {
	Config Config
	Logger *slog.Logger
}

const (
	locationPath  = "/description.xml"
	maxRequestLen = 1024
)

// Serve accepts connections on ln until ctx is canceled or the listener
// is closed, handling each one synchronously (spec imposes no concurrency
// requirement here and an embedded description server sees negligible
// load).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.handle(conn)
	}
}

// handle reads one request, replies, and closes the connection. It never
// blocks longer than one read plus one write, matching the "at most one
// syscall then return" discipline spec §5 requires of loop callbacks
// (the description server runs on its own goroutine, not the central
// loop, but keeps the same discipline to bound request latency).
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, maxRequestLen)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		if s.Logger != nil {
			s.Logger.Debug("description server read failed", "error", err)
		}
		return
	}

	method, target, proto, ok := parseRequestLine(buf[:n])
	if !ok || method != "GET" || (proto != "HTTP/1.0" && proto != "HTTP/1.1") {
		writeStatus(conn, "400 Bad Request")
		return
	}
	if !strings.Contains(target, locationPath) {
		writeStatus(conn, "404 Not Found")
		return
	}

	host := resolveHostLiteral(conn.LocalAddr())

	body, err := Render(DeviceFields{
		DeviceType:      s.Config.DeviceType,
		FriendlyName:    s.Config.FriendlyName,
		Manufacturer:    s.Config.Manufacturer,
		ManufacturerURL: s.Config.ManufacturerURL,
		ModelName:       s.Config.ModelName,
		UUID:            s.Config.UUID,
		PresentationURL: host,
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("template render failed", "error", err)
		}
		writeStatus(conn, "500 Internal Server Error")
		return
	}

	fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nContent-Type: text/xml\r\nConnection: close\r\n\r\n")
	conn.Write(body)
}

// parseRequestLine extracts method, target, and protocol from the first
// line of a raw HTTP request. Anything other than exactly three
// whitespace-separated tokens is malformed.
func parseRequestLine(data []byte) (method, target, proto string, ok bool) {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) != 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

func writeStatus(conn net.Conn, status string) {
	fmt.Fprintf(conn, "HTTP/1.1 %s\r\n\r\n", status)
}

// resolveHostLiteral renders the local address a client connected to as
// a bare host literal for substitution into the presentation URL,
// unmapping IPv4-mapped IPv6 addresses back to their IPv4 form (spec
// §4.8's "unmapped IPv4 literal" rule).
func resolveHostLiteral(addr net.Addr) string {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return ""
	}
	ip := tcpAddr.IP
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return "[" + ip.String() + "]"
}
