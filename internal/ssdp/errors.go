package ssdp

import "errors"

// Sentinel errors for registry admission and socket construction. Kept
// small and typed per the FatalStartup / TransientPerInterface split in
// spec §7: the caller decides disposition, these just name the cause.
var (
	errRejectedAddr   = errors.New("ssdp: address is unspecified or loopback")
	errRejectedScope  = errors.New("ssdp: ipv6 address is not link-local")
	errDuplicate      = errors.New("ssdp: address already registered")
	errMaxInterfaces  = errors.New("ssdp: maximum interface count reached")
	errUnsupportedAST = errors.New("ssdp: unsupported address family")
)

// SocketError wraps a failure from any step of opening a per-interface
// send socket (spec §4.2): the partially-created socket has already been
// closed by the time this is returned.
type SocketError struct {
	Iface string
	Step  string
	Err   error
}

func (e *SocketError) Error() string {
	return "ssdp: " + e.Step + " for " + e.Iface + ": " + e.Err.Error()
}

func (e *SocketError) Unwrap() error {
	return e.Err
}
