package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvListen       = "TERRABRIDGE_LISTEN"
	EnvPacketBounds = "TERRABRIDGE_PACKET_BOUNDS"
	EnvLogLevel     = "TERRABRIDGE_LOG_LEVEL"
	EnvAdminListen  = "TERRABRIDGE_ADMIN_LISTEN"
)

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides cfg with any TERRABRIDGE_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if v, ok := lookup(EnvListen); ok {
		cfg.Listen = v
	}
	if v, ok := lookup(EnvPacketBounds); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPacketBounds, err)
		}
		cfg.PacketBounds = n
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvAdminListen); ok {
		// An explicitly empty value disables the admin server.
		cfg.Admin.Listen = strings.TrimSpace(v)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}
