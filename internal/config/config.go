// Package config loads core driver settings from an optional .env file
// and environment variables, the same env-file-plus-env-var layering the
// teacher repo's device config loader uses. CLI flags (an external
// collaborator) take final precedence and are layered on top by the
// caller.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DriverConfig holds settings the core needs that aren't passed
// explicitly by the caller on every call.
type DriverConfig struct {
	Backend      string // "usb" or "serial"
	SerialDevice string
	USBVendorID  uint16
	USBProductID uint16
	IOTimeout    time.Duration
	DACachePath  string
	LogLevel     string
	LogOutput    string
}

var (
	driverConfig *DriverConfig
	configLoaded bool
)

// Load reads MTKFLASH_* environment variables and a .env file found by
// walking up from the working directory to the nearest go.mod, caching
// the result for subsequent calls.
func Load() (*DriverConfig, error) {
	if driverConfig != nil && configLoaded {
		return driverConfig, nil
	}

	cfg := &DriverConfig{
		Backend:   "usb",
		IOTimeout: 5 * time.Second,
		LogLevel:  "info",
		LogOutput: "stderr",
	}

	root := findProjectRoot()
	if data, err := os.ReadFile(filepath.Join(root, ".env")); err == nil {
		parseEnvFile(string(data))
	}

	applyEnv(cfg)

	driverConfig = cfg
	configLoaded = true
	return cfg, nil
}

func parseEnvFile(content string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		// Only seed the process environment; applyEnv reads it back so a
		// real env var set by the caller always wins over the .env file.
		if _, present := os.LookupEnv(key); !present {
			os.Setenv(key, value)
		}
	}
}

func applyEnv(cfg *DriverConfig) {
	if v := os.Getenv("MTKFLASH_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("MTKFLASH_SERIAL_DEVICE"); v != "" {
		cfg.SerialDevice = v
	}
	if v := os.Getenv("MTKFLASH_USB_VID"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 16); err == nil {
			cfg.USBVendorID = uint16(n)
		}
	}
	if v := os.Getenv("MTKFLASH_USB_PID"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 16); err == nil {
			cfg.USBProductID = uint16(n)
		}
	}
	if v := os.Getenv("MTKFLASH_IO_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IOTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("MTKFLASH_DA_CACHE"); v != "" {
		cfg.DACachePath = v
	}
	if v := os.Getenv("MTKFLASH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MTKFLASH_LOG_OUTPUT"); v != "" {
		cfg.LogOutput = v
	}
}

func findProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
