// Package identity manages the process-wide DiscoveryIdentity: a UUID
// stable across restarts (persisted to a cache file) and the SSDP server
// banner string, composed from host release metadata when not supplied
// by the caller.
//
// Grounded on uuidgen() and lsb_init() in the original ssdpd.c, with the
// hand-rolled rand()-based UUID generator replaced by google/uuid and the
// /etc/lsb-release reader updated to the modern /etc/os-release format.
package identity

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

const cacheFileName = "ssdpd.cache"

// Identity is the process-wide, immutable-after-construction discovery
// identity: a stable UUID and the set of Search Targets this responder
// answers for.
type Identity struct {
	UUID         string // "uuid:XXXXXXXX-XXXX-4XXX-YXXX-XXXXXXXXXXXX"
	ServerString string
	DeviceType   string

	// SearchTargets is the static supported-ST list: ssdp:all,
	// upnp:rootdevice, the device type, and the bare UUID.
	SearchTargets []string
}

// Load resolves the process identity: reading (or generating and
// persisting) the UUID cache file under varDir, and falling back to a
// synthesized server string when serverString is empty.
func Load(varDir, deviceType, serverString string) (*Identity, error) {
	id, err := loadOrGenerateUUID(varDir)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	if serverString == "" {
		serverString = synthesizeServerString()
	}

	return &Identity{
		UUID:         id,
		ServerString: serverString,
		DeviceType:   deviceType,
		SearchTargets: []string{
			"ssdp:all",
			"upnp:rootdevice",
			deviceType,
			id,
		},
	}, nil
}

func loadOrGenerateUUID(varDir string) (string, error) {
	path := filepath.Join(varDir, cacheFileName)

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if strings.HasPrefix(line, "uuid:") {
				return line, nil
			}
		}
		// Fall through: file exists but is empty or malformed.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("open uuid cache %s: %w", path, err)
	}

	generated := "uuid:" + uuid.New().String()

	if err := os.MkdirAll(varDir, 0o755); err != nil {
		return generated, fmt.Errorf("create var dir %s: %w", varDir, err)
	}
	if err := os.WriteFile(path, []byte(generated+"\n"), 0o644); err != nil {
		return generated, fmt.Errorf("write uuid cache %s: %w", path, err)
	}

	return generated, nil
}

// synthesizeServerString builds a "<os>/<release> UPnP/1.0 ssdpd/<version>"
// banner from /etc/os-release, falling back to a GOOS-based default when
// the file is absent or unparsable (mirrors lsb_init()'s fallback path).
func synthesizeServerString() string {
	osName, osVersion, ok := readOSRelease("/etc/os-release")
	if !ok {
		return fmt.Sprintf("%s UPnP/1.0 ssdpd/1.0", runtime.GOOS)
	}
	return fmt.Sprintf("%s/%s UPnP/1.0 ssdpd/1.0", osName, osVersion)
}

func readOSRelease(path string) (name, version string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if v, found := cutPrefixValue(line, "ID="); found {
			name = unquote(v)
		}
		if v, found := cutPrefixValue(line, "VERSION_ID="); found {
			version = unquote(v)
		}
	}
	return name, version, name != "" && version != ""
}

func cutPrefixValue(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimPrefix(line, prefix), true
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}
