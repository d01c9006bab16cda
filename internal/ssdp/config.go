package ssdp

import (
	"fmt"
	"time"
)

// Protocol constants, grounded on the original ssdp.h.
const (
	MulticastGroupV4 = "239.255.255.250"
	MulticastGroupV6 = "ff02::c"
	Port             = 1900
	LocationPort     = Port + 1
	LocationPath     = "/description.xml"

	// MaxPacketSize is the largest inbound datagram the responder will
	// process; longer reads are truncated by the socket layer.
	MaxPacketSize = 512

	// MaxInterfaces bounds the registry's size, matching MAX_NUM_IFACES
	// in the original C source (there, a fixed pollfd array bound; here,
	// a sanity limit enforced by the refresher's admit phase).
	MaxInterfaces = 100

	SearchTargetAll = "ssdp:all"
	rootDeviceType  = "upnp:rootdevice"

	defaultAnnounceInterval = 300 * time.Second
	defaultRefreshInterval  = 600 * time.Second
	cacheTimeout            = 1800 * time.Second

	minAnnounceInterval = 30 * time.Second
	maxAnnounceInterval = 900 * time.Second
	minRefreshInterval  = 5 * time.Second
	maxRefreshInterval  = 1800 * time.Second
)

// Config is the process-wide, validated configuration threaded through
// construction instead of living in ambient singletons (spec §9 Design
// Notes).
type Config struct {
	// AnnounceInterval is how often a full NOTIFY wave is sent.
	AnnounceInterval time.Duration

	// RefreshInterval is how often interfaces are re-enumerated.
	RefreshInterval time.Duration

	// Interfaces is the allow-list of interface names; empty means all.
	Interfaces []string

	// Debug enables verbose logging and a stderr mirror.
	Debug bool

	// DeviceType is the UPnP device type URN advertised and matched
	// against incoming M-SEARCH Search Targets.
	DeviceType string

	// FriendlyName, Manufacturer, ManufacturerURL, and ModelName are
	// substituted into the device description document.
	FriendlyName    string
	Manufacturer    string
	ManufacturerURL string
	ModelName       string

	// ServerString is the SSDP Server: banner. When empty, one is
	// synthesized from host release metadata (see internal/identity).
	ServerString string

	// VarDir holds the UUID identity cache file.
	VarDir string
}

// WithDefaults returns a copy of c with zero-valued interval fields set
// to their spec-mandated defaults.
func (c Config) WithDefaults() Config {
	if c.AnnounceInterval == 0 {
		c.AnnounceInterval = defaultAnnounceInterval
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = defaultRefreshInterval
	}
	return c
}

// Validate enforces the bounds in spec §6 and the cache/announce-interval
// law in spec §8: announce_interval < max-age/2. A configuration that
// violates this is rejected at startup as a usage error, never silently
// clamped.
func (c Config) Validate() error {
	if c.AnnounceInterval < minAnnounceInterval || c.AnnounceInterval > maxAnnounceInterval {
		return fmt.Errorf("ssdp: announce interval %s out of range [%s,%s]",
			c.AnnounceInterval, minAnnounceInterval, maxAnnounceInterval)
	}
	if c.RefreshInterval < minRefreshInterval || c.RefreshInterval > maxRefreshInterval {
		return fmt.Errorf("ssdp: refresh interval %s out of range [%s,%s]",
			c.RefreshInterval, minRefreshInterval, maxRefreshInterval)
	}
	if c.AnnounceInterval >= cacheTimeout/2 {
		return fmt.Errorf("ssdp: announce interval %s must be strictly less than half of cache timeout %s",
			c.AnnounceInterval, cacheTimeout)
	}
	return nil
}
