// Command ssdpd is an SSDP discovery responder: it advertises a single
// UPnP root device over IPv4 and IPv6 multicast and answers M-SEARCH
// queries for it, serving the device description over a small embedded
// HTTP server on port 1901.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/troglobit-labs/ssdpd/internal/identity"
	"github.com/troglobit-labs/ssdpd/internal/netutil"
	"github.com/troglobit-labs/ssdpd/internal/ssdp"
	"github.com/troglobit-labs/ssdpd/internal/webdesc"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		debug         = flag.Bool("d", false, "Enable debug logging and stderr mirror")
		showVersion   = flag.Bool("v", false, "Print version and exit")
		announceSec   = flag.Int("i", 300, "Announcement interval in seconds, 30-900")
		refreshSec    = flag.Int("r", 600, "Refresh interval in seconds, 5-1800")
		deviceType    = flag.String("device-type", "upnp:rootdevice", "UPnP device type URN")
		friendlyName  = flag.String("friendly-name", "ssdpd", "Device friendly name")
		manufacturer  = flag.String("manufacturer", "troglobit", "Device manufacturer")
		manufacturURL = flag.String("manufacturer-url", "", "Device manufacturer URL")
		modelName     = flag.String("model-name", "ssdpd", "Device model name")
		serverString  = flag.String("server-string", "", "SSDP Server: banner, synthesized from the host OS when empty")
		varDir        = flag.String("var-dir", "/var/lib/ssdpd", "Directory holding the identity cache file")
		metricsAddr   = flag.String("metrics-addr", "", "Address to serve Prometheus metrics on, disabled when empty")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [interface ...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("ssdpd dev")
		return exitOK
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := ssdp.Config{
		AnnounceInterval: time.Duration(*announceSec) * time.Second,
		RefreshInterval:  time.Duration(*refreshSec) * time.Second,
		Interfaces:       flag.Args(),
		Debug:            *debug,
		DeviceType:       *deviceType,
		FriendlyName:     *friendlyName,
		Manufacturer:     *manufacturer,
		ManufacturerURL:  *manufacturURL,
		ModelName:        *modelName,
		ServerString:     *serverString,
		VarDir:           *varDir,
	}.WithDefaults()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	id, err := identity.Load(cfg.VarDir, cfg.DeviceType, cfg.ServerString)
	if err != nil {
		logger.Error("failed to load identity", "error", err)
		return exitFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	reg := ssdp.NewRegistry()
	if err := ssdp.OpenListeners(ctx, reg); err != nil {
		logger.Error("failed to open multicast listener sockets", "error", err)
		return exitFatal
	}

	metrics := ssdp.NewMetrics(prometheus.DefaultRegisterer)
	refresher := &ssdp.Refresher{
		Registry: reg,
		Lister:   netutil.SystemLister{},
		Allow:    cfg.Interfaces,
		Logger:   logger,
	}
	sdpIdentity := &ssdp.Identity{
		UUID:          id.UUID,
		ServerString:  id.ServerString,
		DeviceType:    id.DeviceType,
		SearchTargets: id.SearchTargets,
	}
	announcer := &ssdp.Announcer{
		Registry:    reg,
		Identity:    sdpIdentity,
		LocationFor: ssdp.Location,
		Metrics:     metrics,
		Logger:      logger,
	}

	supported := make(map[string]bool, len(id.SearchTargets))
	for _, st := range id.SearchTargets {
		supported[st] = true
	}

	loop := &ssdp.Loop{
		Registry:         reg,
		Refresher:        refresher,
		Announcer:        announcer,
		Metrics:          metrics,
		Logger:           logger,
		AnnounceInterval: cfg.AnnounceInterval,
		RefreshInterval:  cfg.RefreshInterval,
		SupportedTargets: supported,
	}

	descSrv := &webdesc.Server{
		Config: webdesc.Config{
			DeviceType:      cfg.DeviceType,
			FriendlyName:    cfg.FriendlyName,
			Manufacturer:    cfg.Manufacturer,
			ManufacturerURL: cfg.ManufacturerURL,
			ModelName:       cfg.ModelName,
			UUID:            id.UUID,
		},
		Logger: logger,
	}

	// A single dual-stack listener, matching the original's IPv6-only
	// (V6ONLY disabled) binding: IPv4 clients arrive as v4-mapped
	// addresses, unmapped back to plain dotted-quad by resolveHostLiteral.
	descLn, err := net.Listen("tcp", fmt.Sprintf(":%d", ssdp.LocationPort))
	if err != nil {
		logger.Error("failed to bind description server", "error", err)
		return exitFatal
	}
	go descSrv.Serve(ctx, descLn)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		httpSrv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpSrv.Close()
		}()
	}

	logger.Info("ssdpd starting", "uuid", id.UUID, "device_type", cfg.DeviceType)
	if err := loop.Run(ctx); err != nil {
		logger.Error("event loop exited with error", "error", err)
		return exitFatal
	}

	logger.Info("ssdpd stopped")
	return exitOK
}
