// Package config loads application configuration from an optional YAML file
// and environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Token storage backends.
const (
	TokenBackendSQLite = "sqlite"
	TokenBackendBolt   = "bolt"
)

// Bus is the bus this terminal verifies passes for.
type Bus struct {
	ID     string `yaml:"id"`
	Number string `yaml:"number"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
}

// Config holds the application configuration.
type Config struct {
	APIURL         string        `yaml:"api_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	ListenAddr     string        `yaml:"listen_addr"`
	DBPath         string        `yaml:"db_path"`
	TokenBackend   string        `yaml:"token_backend"`
	BoltPath       string        `yaml:"bolt_path"`
	SecretKeyHex   string        `yaml:"secret_key"`
	CameraURL      string        `yaml:"camera_url"`
	CameraDir      string        `yaml:"camera_dir"`
	QRScanRate     float64       `yaml:"qr_scan_rate"`
	QRScanTimeout  time.Duration `yaml:"qr_scan_timeout"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	Bus            Bus           `yaml:"bus"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`

	// SecretKey is the decoded SecretKeyHex: nil, or a 32-byte AES-256 key
	// used to encrypt stored tokens.
	SecretKey []byte `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		APIURL:         "http://localhost:5000",
		RequestTimeout: 10 * time.Second,
		RefreshTimeout: 5 * time.Second,
		ListenAddr:     "127.0.0.1:8090",
		DBPath:         "passverify.db",
		TokenBackend:   TokenBackendSQLite,
		BoltPath:       "passverify.bolt",
		QRScanRate:     10,
		QRScanTimeout:  60 * time.Second,
		RetryInterval:  time.Minute,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads the YAML file named by PASSVERIFY_CONFIG (when set), applies
// PASSVERIFY_* environment variables on top and validates the result.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("PASSVERIFY_CONFIG"))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PASSVERIFY_API_URL":       &c.APIURL,
		"PASSVERIFY_LISTEN_ADDR":   &c.ListenAddr,
		"PASSVERIFY_DB_PATH":       &c.DBPath,
		"PASSVERIFY_TOKEN_BACKEND": &c.TokenBackend,
		"PASSVERIFY_BOLT_PATH":     &c.BoltPath,
		"PASSVERIFY_SECRET_KEY":    &c.SecretKeyHex,
		"PASSVERIFY_CAMERA_URL":    &c.CameraURL,
		"PASSVERIFY_CAMERA_DIR":    &c.CameraDir,
		"PASSVERIFY_BUS_ID":        &c.Bus.ID,
		"PASSVERIFY_BUS_NUMBER":    &c.Bus.Number,
		"PASSVERIFY_BUS_FROM":      &c.Bus.From,
		"PASSVERIFY_BUS_TO":        &c.Bus.To,
		"PASSVERIFY_LOG_LEVEL":     &c.LogLevel,
		"PASSVERIFY_LOG_FORMAT":    &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"PASSVERIFY_REQUEST_TIMEOUT": &c.RequestTimeout,
		"PASSVERIFY_REFRESH_TIMEOUT": &c.RefreshTimeout,
		"PASSVERIFY_QR_SCAN_TIMEOUT": &c.QRScanTimeout,
		"PASSVERIFY_RETRY_INTERVAL":  &c.RetryInterval,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
		}
		*dst = parsed
	}

	if v, ok := os.LookupEnv("PASSVERIFY_QR_SCAN_RATE"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PASSVERIFY_QR_SCAN_RATE has invalid rate %q: %w", v, err)
		}
		c.QRScanRate = parsed
	}
	return nil
}

// Validate checks field values and decodes the secret key.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PASSVERIFY_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	for name, d := range map[string]time.Duration{
		"PASSVERIFY_REQUEST_TIMEOUT": c.RequestTimeout,
		"PASSVERIFY_REFRESH_TIMEOUT": c.RefreshTimeout,
		"PASSVERIFY_RETRY_INTERVAL":  c.RetryInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.QRScanRate <= 0 {
		return fmt.Errorf("PASSVERIFY_QR_SCAN_RATE must be positive, got %v", c.QRScanRate)
	}

	c.TokenBackend = strings.ToLower(strings.TrimSpace(c.TokenBackend))
	switch c.TokenBackend {
	case TokenBackendSQLite, TokenBackendBolt:
	default:
		return fmt.Errorf("PASSVERIFY_TOKEN_BACKEND must be %q or %q, got %q", TokenBackendSQLite, TokenBackendBolt, c.TokenBackend)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("PASSVERIFY_LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("PASSVERIFY_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	c.SecretKey = nil
	if c.SecretKeyHex != "" {
		key, err := hex.DecodeString(c.SecretKeyHex)
		if err != nil {
			return fmt.Errorf("PASSVERIFY_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("PASSVERIFY_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
		}
		c.SecretKey = key
	}
	return nil
}

// HasBus reports whether a bus is configured.
func (c *Config) HasBus() bool {
	return c.Bus.ID != ""
}

// HasCamera reports whether a capture source is configured.
func (c *Config) HasCamera() bool {
	return c.CameraURL != "" || c.CameraDir != ""
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, errors.New("must be debug, info, warn or error")
	}
	return level, nil
}
