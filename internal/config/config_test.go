package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every PASSVERIFY_ env var that Load() reads.
var allConfigKeys = []string{
	"PASSVERIFY_CONFIG",
	"PASSVERIFY_API_URL",
	"PASSVERIFY_REQUEST_TIMEOUT",
	"PASSVERIFY_REFRESH_TIMEOUT",
	"PASSVERIFY_LISTEN_ADDR",
	"PASSVERIFY_DB_PATH",
	"PASSVERIFY_TOKEN_BACKEND",
	"PASSVERIFY_BOLT_PATH",
	"PASSVERIFY_SECRET_KEY",
	"PASSVERIFY_CAMERA_URL",
	"PASSVERIFY_CAMERA_DIR",
	"PASSVERIFY_QR_SCAN_RATE",
	"PASSVERIFY_QR_SCAN_TIMEOUT",
	"PASSVERIFY_RETRY_INTERVAL",
	"PASSVERIFY_BUS_ID",
	"PASSVERIFY_BUS_NUMBER",
	"PASSVERIFY_BUS_FROM",
	"PASSVERIFY_BUS_TO",
	"PASSVERIFY_LOG_LEVEL",
	"PASSVERIFY_LOG_FORMAT",
}

// isolateConfigEnv saves and unsets all PASSVERIFY_ env vars so tests don't
// inherit values from the host environment.
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, "127.0.0.1:8090", cfg.ListenAddr)
	assert.Equal(t, "passverify.db", cfg.DBPath)
	assert.Equal(t, TokenBackendSQLite, cfg.TokenBackend)
	assert.Equal(t, 10.0, cfg.QRScanRate)
	assert.Equal(t, 60*time.Second, cfg.QRScanTimeout)
	assert.Equal(t, time.Minute, cfg.RetryInterval)
	assert.Nil(t, cfg.SecretKey)
	assert.False(t, cfg.HasBus())
	assert.False(t, cfg.HasCamera())
}

func TestLoad_Env(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSVERIFY_API_URL", "https://pass.example.com")
	t.Setenv("PASSVERIFY_REQUEST_TIMEOUT", "3s")
	t.Setenv("PASSVERIFY_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("PASSVERIFY_DB_PATH", "/tmp/test.db")
	t.Setenv("PASSVERIFY_TOKEN_BACKEND", "BOLT")
	t.Setenv("PASSVERIFY_QR_SCAN_RATE", "4.5")
	t.Setenv("PASSVERIFY_BUS_ID", "bus-1")
	t.Setenv("PASSVERIFY_BUS_FROM", "Depot")
	t.Setenv("PASSVERIFY_CAMERA_DIR", "/frames")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://pass.example.com", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, TokenBackendBolt, cfg.TokenBackend)
	assert.Equal(t, 4.5, cfg.QRScanRate)
	assert.Equal(t, Bus{ID: "bus-1", From: "Depot"}, cfg.Bus)
	assert.True(t, cfg.HasBus())
	assert.True(t, cfg.HasCamera())
}

func TestLoad_FileThenEnv(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "passverify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: http://backend:5000
request_timeout: 7s
qr_scan_timeout: 30s
log_format: json
bus:
  id: bus-9
  number: KA-09
  from: North
  to: South
`), 0o600))
	t.Setenv("PASSVERIFY_CONFIG", path)
	t.Setenv("PASSVERIFY_BUS_NUMBER", "KA-10")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://backend:5000", cfg.APIURL)
	assert.Equal(t, 7*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.QRScanTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, Bus{ID: "bus-9", Number: "KA-10", From: "North", To: "South"}, cfg.Bus)
	assert.Equal(t, "127.0.0.1:8090", cfg.ListenAddr, "unset keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSVERIFY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PASSVERIFY_REQUEST_TIMEOUT", "not-a-duration"},
		{"PASSVERIFY_REFRESH_TIMEOUT", "0s"},
		{"PASSVERIFY_QR_SCAN_RATE", "fast"},
		{"PASSVERIFY_QR_SCAN_RATE", "0"},
		{"PASSVERIFY_TOKEN_BACKEND", "redis"},
		{"PASSVERIFY_API_URL", "localhost"},
		{"PASSVERIFY_LOG_LEVEL", "verbose"},
		{"PASSVERIFY_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_SecretKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	// 64 hex chars = 32 bytes
	t.Setenv("PASSVERIFY_SECRET_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.SecretKey, 32)
}

func TestLoad_SecretKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSVERIFY_SECRET_KEY", "deadbeef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PASSVERIFY_SECRET_KEY")
}

func TestLoad_SecretKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	// 64 chars but not valid hex
	t.Setenv("PASSVERIFY_SECRET_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PASSVERIFY_SECRET_KEY")
}
