// Package config holds the bridge configuration: defaults, the TOML file,
// .env and environment overrides, and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/1ureka/terrabridge/internal/util"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "terrabridge.toml"

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Families names the brand literal selecting each role.
type Families struct {
	RoleA string `toml:"role_a"`
	RoleB string `toml:"role_b"`
}

// Log configures the leveled logger.
type Log struct {
	Level         string   `toml:"level"`
	StatsInterval Duration `toml:"stats_interval"`
}

// Admin configures the optional HTTP admin surface.
type Admin struct {
	// Listen is the admin address; empty disables the admin server.
	Listen string `toml:"listen"`
}

// Config is the resolved bridge configuration.
type Config struct {
	Listen           string   `toml:"listen"`
	PacketBounds     int      `toml:"packet_bounds"`
	HandshakeTimeout Duration `toml:"handshake_timeout"`
	ReadTimeout      Duration `toml:"read_timeout"`
	BridgeInfo       string   `toml:"bridge_info"`
	Families         Families `toml:"families"`
	Log              Log      `toml:"log"`
	Admin            Admin    `toml:"admin"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Listen:           "127.0.0.1:25535",
		PacketBounds:     16,
		HandshakeTimeout: Duration(5 * time.Second),
		ReadTimeout:      Duration(6 * time.Second),
		BridgeInfo:       "TerraLink Bridge/0.1.0",
		Families: Families{
			RoleA: "Minecraft",
			RoleB: "TModLoader",
		},
		Log: Log{
			Level:         "info",
			StatsInterval: Duration(10 * time.Second),
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		util.LogWarning("Config file %s not found, using defaults", path)
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	for _, key := range meta.Undecoded() {
		util.LogWarning("Config file %s: unknown key %q ignored", path, key.String())
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(Default()); err != nil {
		f.Close()
		return fmt.Errorf("encode default config: %w", err)
	}
	return f.Close()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Listen) == "":
		return errors.New("config: listen address is empty")
	case c.PacketBounds < 1:
		return fmt.Errorf("config: packet_bounds must be at least 1, got %d", c.PacketBounds)
	case c.HandshakeTimeout <= 0:
		return fmt.Errorf("config: handshake_timeout must be positive, got %s", c.HandshakeTimeout.Std())
	case c.ReadTimeout <= 0:
		return fmt.Errorf("config: read_timeout must be positive, got %s", c.ReadTimeout.Std())
	case c.Log.StatsInterval < 0:
		return fmt.Errorf("config: stats_interval must not be negative, got %s", c.Log.StatsInterval.Std())
	}

	for _, name := range []string{c.Families.RoleA, c.Families.RoleB} {
		if name == "" {
			return errors.New("config: family literals must not be empty")
		}
		if strings.Contains(name, "/") {
			return fmt.Errorf("config: family literal %q must not contain '/'", name)
		}
	}
	if c.Families.RoleA == c.Families.RoleB {
		return fmt.Errorf("config: both roles use family literal %q", c.Families.RoleA)
	}

	if _, err := util.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
