// Package config loads the daemon configuration from a TOML file.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/fossabot/zenoh/internal/zerror"
)

// Config is the on-disk daemon configuration.
type Config struct {
	// Mode is one of "router", "peer" or "client". zenohd always runs
	// as a router and does not read it.
	Mode string `toml:"mode"`
	// PeerID is the hex form of this node's peer id. Empty means random.
	PeerID string `toml:"peer_id"`
	// Listen are the endpoints to accept connections on.
	Listen []string `toml:"listen"`
	// Connect are the endpoints to open transports to at startup.
	Connect []string `toml:"connect"`

	// LeaseMs bounds the silence tolerated on an established link.
	LeaseMs int64 `toml:"lease_ms"`
	// KeepAliveMs is the idle period after which a link emits a
	// keep-alive.
	KeepAliveMs int64 `toml:"keep_alive_ms"`
	// BatchSize caps the payload bytes of one transmission unit.
	BatchSize uint16 `toml:"batch_size"`
	// RxBufferSize sizes the per-link receive buffer pool.
	RxBufferSize int `toml:"rx_buffer_size"`
	// BatchesPerLane bounds each priority lane's batch pool.
	BatchesPerLane int `toml:"batches_per_lane"`

	SHM     SHMConfig     `toml:"shm"`
	Auth    AuthConfig    `toml:"auth"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// SHMConfig configures the shared-memory layer.
type SHMConfig struct {
	Enabled     bool `toml:"enabled"`
	SegmentSize int  `toml:"segment_size"`
}

// AuthConfig configures the authenticator chain.
type AuthConfig struct {
	UserPassword UserPasswordConfig `toml:"userpassword"`
}

// UserPasswordConfig holds the client credential and the router lookup.
type UserPasswordConfig struct {
	User     string            `toml:"user"`
	Password string            `toml:"password"`
	Users    map[string]string `toml:"users"`
}

// Enabled reports whether the userpassword authenticator is configured.
func (c UserPasswordConfig) Enabled() bool {
	return c.User != "" || len(c.Users) > 0
}

// StorageConfig configures the example storage.
type StorageConfig struct {
	Enabled  bool   `toml:"enabled"`
	Selector string `toml:"selector"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:           "peer",
		LeaseMs:        10_000,
		KeepAliveMs:    2_500,
		BatchSize:      65535,
		RxBufferSize:   65535 * 2,
		BatchesPerLane: 2,
		SHM:            SHMConfig{SegmentSize: 8 * 1024 * 1024},
		Storage:        StorageConfig{Selector: "/demo/example/**"},
		Log:            LogConfig{Level: "info"},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindOther, err, "unable to read config %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, zerror.Wrapf(zerror.KindOther, err, "unable to parse config %s", path)
	}
	return cfg, nil
}
