// zenohd runs a router node: it listens on the configured endpoints,
// admits transports through the configured authenticators and hosts the
// example storage.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fossabot/zenoh"
	"github.com/fossabot/zenoh/internal/config"
	"github.com/fossabot/zenoh/internal/logging"
	"github.com/fossabot/zenoh/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath      string
		listen          []string
		storageSelector string
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:          "zenohd",
		Short:        "zenoh router daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if len(listen) > 0 {
				cfg.Listen = listen
			}
			if storageSelector != "" {
				cfg.Storage.Enabled = true
				cfg.Storage.Selector = storageSelector
			}
			if verbose {
				cfg.Log.Level = "debug"
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the TOML configuration file")
	cmd.Flags().StringArrayVarP(&listen, "listen", "l", nil, "Endpoints to listen on (e.g. tcp/0.0.0.0:7447)")
	cmd.Flags().StringVar(&storageSelector, "storage-selector", "", "The selection of resources to be stored")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func logLevel(s string) logging.LogLevel {
	switch s {
	case "trace":
		return logging.LevelTrace
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func run(cfg *config.Config) error {
	logging.SetDefault(logging.NewLogger(&logging.Config{Level: logLevel(cfg.Log.Level)}))
	log := logging.Default()

	var authenticators []zenoh.Authenticator
	if cfg.Auth.UserPassword.Enabled() {
		authenticators = append(authenticators, zenoh.NewUserPasswordAuthenticator(
			cfg.Auth.UserPassword.Users,
			cfg.Auth.UserPassword.User,
			cfg.Auth.UserPassword.Password,
		))
	}
	if cfg.SHM.Enabled {
		shmAuth, err := zenoh.NewSharedMemoryAuthenticator()
		if err != nil {
			return err
		}
		defer shmAuth.Close()
		authenticators = append(authenticators, shmAuth)
	}

	var pid zenoh.PeerID
	if cfg.PeerID != "" {
		b, err := hex.DecodeString(cfg.PeerID)
		if err != nil {
			return fmt.Errorf("invalid peer_id %q: %w", cfg.PeerID, err)
		}
		pid = b
	}

	manager := zenoh.NewManager(zenoh.ManagerConfig{
		WhatAmI:        zenoh.WhatAmIRouter,
		PeerID:         pid,
		Lease:          time.Duration(cfg.LeaseMs) * time.Millisecond,
		KeepAlive:      time.Duration(cfg.KeepAliveMs) * time.Millisecond,
		BatchSize:      cfg.BatchSize,
		RxBufferSize:   cfg.RxBufferSize,
		BatchesPerLane: cfg.BatchesPerLane,
		Handler:        &routerHandler{cfg: cfg},
		Authenticators: authenticators,
	})
	defer manager.Close()

	if len(cfg.Listen) == 0 {
		cfg.Listen = []string{"tcp/0.0.0.0:7447"}
	}
	for _, locator := range cfg.Listen {
		if _, err := manager.AddListener(locator); err != nil {
			return err
		}
	}
	for _, locator := range cfg.Connect {
		if _, err := manager.OpenTransport(locator); err != nil {
			log.Warn("unable to connect", "endpoint", locator, "err", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}

// routerHandler attaches the example storage to every admitted transport.
type routerHandler struct {
	cfg *config.Config
}

// NewUnicast implements zenoh.TransportEventHandler.
func (h *routerHandler) NewUnicast(peer zenoh.TransportPeer, t *zenoh.TransportUnicast) (zenoh.TransportPeerEventHandler, error) {
	if !h.cfg.Storage.Enabled {
		return zenoh.DummyPeerHandler{}, nil
	}
	s := storage.New(h.cfg.Storage.Selector)
	s.Attach(zenoh.NewMux(t), peer.PeerID)
	return s, nil
}
