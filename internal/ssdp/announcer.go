package ssdp

import (
	"log/slog"
	"net"
)

// Identity is the subset of internal/identity.Identity the announcer
// needs: a stable UUID, the advertised Server: banner, and the list of
// Search Targets this responder answers for. Kept as its own small type
// here so package ssdp does not depend on the identity cache file's
// on-disk format.
type Identity struct {
	UUID          string
	ServerString  string
	DeviceType    string
	SearchTargets []string
}

// AnnounceMode selects how much of the registry Announce walks.
type AnnounceMode int

const (
	// AnnounceIncremental emits only for records with Modified == true.
	AnnounceIncremental AnnounceMode = iota
	// AnnounceFull emits for every sender record regardless of Modified.
	AnnounceFull
)

// Announcer composes and sends NOTIFY advertisements and unicast
// M-SEARCH responses (spec §4.6).
type Announcer struct {
	Registry    *Registry
	Identity    *Identity
	LocationFor func(net.IP) string
	Metrics     *Metrics
	Logger      *slog.Logger
}

// Announce iterates the registry's sender records. In incremental mode it
// skips records whose Modified flag is false; in full mode it walks
// every sender record. For each selected record it sends one NOTIFY per
// supported type except the bare UUID (which rides along implicitly in
// the ssdp:all NOTIFY's USN), then clears Modified.
func (a *Announcer) Announce(mode AnnounceMode) {
	for _, r := range a.Registry.All() {
		if r.IsListener() {
			continue
		}
		if mode == AnnounceIncremental && !r.Modified {
			continue
		}

		loc := a.LocationFor(r.Addr)
		isV4 := r.Addr.To4() != nil
		dest := multicastDest(isV4, r.IfName)
		for _, st := range a.Identity.SearchTargets {
			if st == a.Identity.UUID {
				continue
			}
			variant := VariantNotify
			if st == SearchTargetAll {
				variant = VariantNotifyAll
			}

			msg := EncodeNotify(a.Identity.UUID, a.Identity.ServerString, loc, variant, st, isV4)
			if _, err := r.Out.WriteTo([]byte(msg), dest); err != nil {
				if a.Metrics != nil {
					a.Metrics.SendErrors.WithLabelValues(r.IfName).Inc()
				}
				if a.Logger != nil {
					a.Logger.Warn("notify send failed", "iface", r.IfName, "search_target", st, "error", err)
				}
				continue
			}
			if a.Metrics != nil {
				a.Metrics.NotifySent.WithLabelValues(st).Inc()
			}
		}

		r.Modified = false
	}
}

// Respond composes and sends a unicast M-SEARCH reply to sender over the
// outbound record selected by find_outbound (spec §4.6). If no record
// covers sender, the query is dropped with a debug log.
func (a *Announcer) Respond(sender net.Addr, searchType string) {
	udpAddr, ok := sender.(*net.UDPAddr)
	if !ok {
		return
	}

	r := a.Registry.FindOutbound(udpAddr.IP)
	if r == nil {
		if a.Logger != nil {
			a.Logger.Debug("no outbound record for search reply, dropping", "sender", udpAddr.IP, "search_target", searchType)
		}
		return
	}

	variant := VariantResponse
	if searchType == SearchTargetAll {
		variant = VariantNotifyAll
	}

	loc := a.LocationFor(r.Addr)
	msg := EncodeResponse(a.Identity.UUID, a.Identity.ServerString, loc, searchType, variant)

	if _, err := r.Out.WriteTo([]byte(msg), udpAddr); err != nil {
		if a.Metrics != nil {
			a.Metrics.SendErrors.WithLabelValues(r.IfName).Inc()
		}
		if a.Logger != nil {
			a.Logger.Warn("response send failed", "iface", r.IfName, "sender", udpAddr.IP, "error", err)
		}
		return
	}
	if a.Metrics != nil {
		a.Metrics.ResponseSent.WithLabelValues(searchType).Inc()
	}
}
