package ssdp

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// openSendSocket creates the per-interface unicast send socket for iface,
// joins it to the appropriate multicast group so outbound TTL/loopback
// settings apply, and returns it ready for use in a Record.Out field.
//
// Grounded on the ListenConfig.Control + unix.SetsockoptInt pattern used
// for the BFD listener sockets in the wider example pack, adapted here to
// SSDP's SO_REUSEADDR/SO_REUSEPORT + multicast TTL/loopback requirements
// instead of GTSM TTL=255 checks.
func openSendSocket(ctx context.Context, iface *net.Interface, addr net.IP) (net.PacketConn, error) {
	isV4 := addr.To4() != nil

	network := "udp4"
	bindAddr := fmt.Sprintf("%s:0", addr.String())
	if !isV4 {
		network = "udp6"
		bindAddr = fmt.Sprintf("[%s%%%s]:0", addr.String(), iface.Name)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSendSockOpts(c, isV4)
		},
	}

	pc, err := lc.ListenPacket(ctx, network, bindAddr)
	if err != nil {
		return nil, &SocketError{Iface: iface.Name, Step: "bind", Err: err}
	}

	udpConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, &SocketError{Iface: iface.Name, Step: "bind", Err: errUnsupportedAST}
	}

	if isV4 {
		if err := configureSendSocketV4(udpConn, iface); err != nil {
			pc.Close()
			return nil, &SocketError{Iface: iface.Name, Step: "configure ipv4", Err: err}
		}
	} else {
		if err := configureSendSocketV6(udpConn, iface); err != nil {
			pc.Close()
			return nil, &SocketError{Iface: iface.Name, Step: "configure ipv6", Err: err}
		}
	}

	return pc, nil
}

func setSendSockOpts(c syscall.RawConn, isV4 bool) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if serr := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
			sockErr = fmt.Errorf("set SO_REUSEADDR: %w", serr)
			return
		}
		if serr := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); serr != nil {
			sockErr = fmt.Errorf("set SO_REUSEPORT: %w", serr)
			return
		}
		if !isV4 {
			if serr := unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); serr != nil {
				sockErr = fmt.Errorf("set IPV6_V6ONLY: %w", serr)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// configureSendSocketV4 joins the IPv4 multicast group on iface, disables
// loopback delivery of our own sends, and sets the multicast TTL per
// spec §4.2 (TTL 2, one hop beyond the local link).
func configureSendSocketV4(conn *net.UDPConn, iface *net.Interface) error {
	p := ipv4.NewPacketConn(conn)

	group := net.UDPAddr{IP: net.ParseIP(MulticastGroupV4)}
	if err := p.JoinGroup(iface, &group); err != nil {
		return fmt.Errorf("join multicast group: %w", err)
	}
	if err := p.SetMulticastLoopback(false); err != nil {
		return fmt.Errorf("disable multicast loopback: %w", err)
	}
	if err := p.SetMulticastTTL(2); err != nil {
		return fmt.Errorf("set multicast ttl: %w", err)
	}
	if err := p.SetMulticastInterface(iface); err != nil {
		return fmt.Errorf("set multicast egress interface: %w", err)
	}
	return nil
}

// configureSendSocketV6 is configureSendSocketV4's IPv6 counterpart: hop
// limit replaces TTL and the multicast group is ff02::c (link-local scope).
func configureSendSocketV6(conn *net.UDPConn, iface *net.Interface) error {
	p := ipv6.NewPacketConn(conn)

	group := net.UDPAddr{IP: net.ParseIP(MulticastGroupV6)}
	if err := p.JoinGroup(iface, &group); err != nil {
		return fmt.Errorf("join multicast group: %w", err)
	}
	if err := p.SetMulticastLoopback(false); err != nil {
		return fmt.Errorf("disable multicast loopback: %w", err)
	}
	if err := p.SetMulticastHopLimit(2); err != nil {
		return fmt.Errorf("set multicast hop limit: %w", err)
	}
	if err := p.SetMulticastInterface(iface); err != nil {
		return fmt.Errorf("set multicast egress interface: %w", err)
	}
	return nil
}

// openListenSocket creates one of the two shared multicast receive
// sockets (IPv4 bound to 239.255.255.250:1900, IPv6 bound to [::]:1900
// with V6ONLY set), each registered as the listener record of its family
// (spec §4.3).
func openListenSocket(ctx context.Context, isV4 bool) (net.PacketConn, error) {
	network := "udp4"
	addr := fmt.Sprintf("%s:%d", MulticastGroupV4, Port)
	if !isV4 {
		network = "udp6"
		addr = fmt.Sprintf(":%d", Port)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSendSockOpts(c, isV4)
		},
	}

	pc, err := lc.ListenPacket(ctx, network, addr)
	if err != nil {
		return nil, &SocketError{Iface: "*", Step: "bind listener", Err: err}
	}

	udpConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, &SocketError{Iface: "*", Step: "bind listener", Err: errUnsupportedAST}
	}

	if isV4 {
		p := ipv4.NewPacketConn(udpConn)
		group := net.UDPAddr{IP: net.ParseIP(MulticastGroupV4)}
		ifaces, err := net.Interfaces()
		if err != nil {
			pc.Close()
			return nil, &SocketError{Iface: "*", Step: "enumerate interfaces", Err: err}
		}
		joined := 0
		for i := range ifaces {
			if ifaces[i].Flags&net.FlagMulticast == 0 || ifaces[i].Flags&net.FlagUp == 0 {
				continue
			}
			if p.JoinGroup(&ifaces[i], &group) == nil {
				joined++
			}
		}
		if joined == 0 {
			pc.Close()
			return nil, &SocketError{Iface: "*", Step: "join multicast group", Err: fmt.Errorf("no multicast-capable interface joined")}
		}
	} else {
		p := ipv6.NewPacketConn(udpConn)
		group := net.UDPAddr{IP: net.ParseIP(MulticastGroupV6)}
		ifaces, err := net.Interfaces()
		if err != nil {
			pc.Close()
			return nil, &SocketError{Iface: "*", Step: "enumerate interfaces", Err: err}
		}
		joined := 0
		for i := range ifaces {
			if ifaces[i].Flags&net.FlagMulticast == 0 || ifaces[i].Flags&net.FlagUp == 0 {
				continue
			}
			if p.JoinGroup(&ifaces[i], &group) == nil {
				joined++
			}
		}
		if joined == 0 {
			pc.Close()
			return nil, &SocketError{Iface: "*", Step: "join multicast group", Err: fmt.Errorf("no multicast-capable interface joined")}
		}
	}

	return pc, nil
}

// OpenListeners creates the two shared multicast receive sockets (spec
// §4.3) and registers them in reg as listener records (out_socket =
// none). It is the entry point cmd/ssdpd uses at startup, before the
// event loop's first refresh cycle.
func OpenListeners(ctx context.Context, reg *Registry) error {
	in4, err := openListenSocket(ctx, true)
	if err != nil {
		return err
	}
	if err := reg.Add(&Record{Addr: net.ParseIP("0.0.0.0"), In: in4}); err != nil {
		in4.Close()
		return err
	}

	in6, err := openListenSocket(ctx, false)
	if err != nil {
		return err
	}
	if err := reg.Add(&Record{Addr: net.ParseIP("::"), In: in6}); err != nil {
		in4.Close()
		in6.Close()
		return err
	}

	return nil
}
