// Package config provides configuration helpers for go-woofer commands.
package config

import (
	"os"
	"strings"
	"time"
)

// Default configuration.
const (
	DefaultDeviceAddr      = "0.0.0.0:8080"
	DefaultDeviceURL       = "http://localhost:8080"
	DefaultLogLevel        = "info"
	DefaultPublishInterval = 100 * time.Millisecond
	DefaultKeepAlive       = 1 * time.Second
	DefaultTickRate        = time.Second / 60
)

// DeviceAddr returns the device listen address from WOOFER_ADDR.
// Falls back to DefaultDeviceAddr if not set.
func DeviceAddr() string {
	return envOr("WOOFER_ADDR", DefaultDeviceAddr)
}

// DeviceURL returns the base URL of the device from WOOFER_DEVICE_URL,
// without a trailing slash.
func DeviceURL() string {
	return strings.TrimSuffix(envOr("WOOFER_DEVICE_URL", DefaultDeviceURL), "/")
}

// JournalPath returns the command journal database path from WOOFER_JOURNAL.
// Empty means journaling is disabled.
func JournalPath() string {
	return os.Getenv("WOOFER_JOURNAL")
}

// LogLevel returns the log level from LOG_LEVEL or the default.
func LogLevel() string {
	return envOr("LOG_LEVEL", DefaultLogLevel)
}

// StateURL returns the streaming/command endpoint for a device base URL.
func StateURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/state"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
