package ssdp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

// inbound is one datagram forwarded from a reader goroutine to the
// central loop goroutine, which is the sole mutator of the registry and
// all timer state (spec §5).
type inbound struct {
	data []byte
	addr net.Addr
}

// Loop is the single-threaded cooperative event loop described in spec
// §4.7, translated into Go's idiom for "one task": a reader goroutine per
// receive socket that performs nothing but blocking reads and forwards
// to one central select loop, which is the only goroutine that touches
// the registry, the refresher, or the announcer.
//
// This is the one place the original's literal single-thread model
// can't be ported as-is: net.PacketConn has no non-blocking readiness
// primitive exposed to Go the way select()/epoll is to C. A reader
// goroutine per socket plus a channel stands in for the readiness
// multiplexer; the channel receive in the select below is the
// "dispatch each ready descriptor" step, and nothing past it runs
// concurrently.
type Loop struct {
	Registry  *Registry
	Refresher *Refresher
	Announcer *Announcer
	Metrics   *Metrics
	Logger    *slog.Logger

	AnnounceInterval time.Duration
	RefreshInterval  time.Duration

	SupportedTargets map[string]bool
}

// Run blocks until ctx is canceled (by a caller wired to signal.NotifyContext
// for SIGTERM/SIGINT/SIGHUP/SIGQUIT) or an unrecoverable error occurs. It
// starts one reader goroutine per listener record already present in the
// registry, runs the refresher once synchronously before entering the
// loop (spec §4.4's "invoked on startup" clause), then alternates refresh
// and announce deadlines until canceled.
func (l *Loop) Run(ctx context.Context) error {
	if _, err := l.Refresher.Refresh(ctx); err != nil {
		return err
	}
	l.Announcer.Announce(AnnounceFull)
	if l.Metrics != nil {
		l.Metrics.InterfaceCount.Set(float64(l.Registry.Len()))
	}

	ch := make(chan inbound, 64)
	g, gCtx := errgroup.WithContext(ctx)

	for _, r := range l.Registry.All() {
		if !r.IsListener() {
			continue
		}
		conn := r.In
		g.Go(func() error {
			return readLoop(gCtx, conn, ch)
		})
	}

	now := time.Now()
	refreshAt := now.Add(l.RefreshInterval)
	announceAt := now.Add(l.AnnounceInterval)

	for {
		now = time.Now()

		if !refreshAt.After(now) {
			changed, err := l.Refresher.Refresh(ctx)
			if err != nil && l.Logger != nil {
				l.Logger.Warn("refresh failed", "error", err)
			}
			if changed > 0 {
				l.Announcer.Announce(AnnounceIncremental)
			}
			if l.Metrics != nil {
				l.Metrics.InterfaceCount.Set(float64(l.Registry.Len()))
			}
			refreshAt = now.Add(l.RefreshInterval)
		}

		if !announceAt.After(now) {
			l.Announcer.Announce(AnnounceFull)
			announceAt = now.Add(l.AnnounceInterval)
		}

		deadline := refreshAt
		if announceAt.Before(deadline) {
			deadline = announceAt
		}
		wait := time.Until(deadline)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			for _, r := range l.Registry.All() {
				if r.In != nil {
					r.In.Close()
				}
				if r.Out != nil {
					r.Out.Close()
				}
			}
			_ = g.Wait()
			return nil

		case msg := <-ch:
			timer.Stop()
			l.dispatch(msg)

		case <-timer.C:
		}
	}
}

// dispatch is the single place that interprets a raw inbound datagram:
// an M-SEARCH whose ST matches a supported target gets a unicast
// response; everything else is dropped (spec §4.5/§4.6).
func (l *Loop) dispatch(msg inbound) {
	if len(msg.data) > MaxPacketSize {
		msg.data = msg.data[:MaxPacketSize]
	}

	st, ok := ParseSearchTarget(msg.data)
	if !ok {
		if l.Metrics != nil {
			l.Metrics.Dropped.Inc()
		}
		return
	}
	if !l.SupportedTargets[st] {
		if l.Logger != nil {
			l.Logger.Debug("unsupported search target, dropping", "search_target", st, "sender", msg.addr)
		}
		if l.Metrics != nil {
			l.Metrics.Dropped.Inc()
		}
		return
	}

	l.Announcer.Respond(msg.addr, st)
}

// readLoop performs nothing but blocking reads on conn, forwarding each
// datagram to ch. It exits when conn is closed (by Run's shutdown path)
// or ctx is canceled.
func readLoop(ctx context.Context, conn net.PacketConn, ch chan<- inbound) error {
	buf := make([]byte, MaxPacketSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case ch <- inbound{data: data, addr: addr}:
		case <-ctx.Done():
			return nil
		}
	}
}
