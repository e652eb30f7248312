package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/phishvars/cache"
	"github.com/GoCodeAlone/phishvars/config"
	"github.com/GoCodeAlone/phishvars/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfig_DefaultsWithEnv(t *testing.T) {
	cfg, err := loadConfig("", envMap(map[string]string{
		"PHISHVARS_LOG_FORMAT": "json",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":3333", cfg.Listen)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\nstore:\n  driver: memory\n"), 0o600))

	cfg, err := loadConfig(path, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig("", envMap(map[string]string{"PHISHVARS_LOG_FORMAT": "xml"}))
	require.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, level, err := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	level.Set(slog.LevelDebug)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")

	_, _, err = newLogger(config.LogConfig{Level: "loud", Format: "text"}, &buf)
	require.Error(t, err)
}

func TestOpenStore_Drivers(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	s, err := openStore(ctx, cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)
	require.NoError(t, s.Close())

	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "phishvars.db")
	s, err = openStore(ctx, cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, s)
	require.NoError(t, s.Close())

	cfg.Store.Driver = "mongo"
	_, err = openStore(ctx, cfg, discardLogger())
	require.ErrorContains(t, err, "unknown store driver")
}

func TestOpenStore_RedisWrapsStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	cfg.Redis.Enabled = true
	cfg.Redis.Address = mr.Addr()

	s, err := openStore(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &cache.Store{}, s)
}

func TestOpenStore_RedisUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"

	_, err := openStore(context.Background(), cfg, discardLogger())
	require.Error(t, err)
}

func TestCreateKey(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "keys.db")

	var out bytes.Buffer
	require.NoError(t, createKey(ctx, cfg, discardLogger(), 7, "ci", &out))
	raw := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(raw, "pv_"), raw)

	s, err := store.NewSQLiteStore(cfg.Store.Path)
	require.NoError(t, err)
	defer s.Close()
	key, err := s.ValidateAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), key.UserID)
	assert.Equal(t, "ci", key.Name)
}

func TestCreateKey_MemoryRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	err := createKey(context.Background(), cfg, discardLogger(), 1, "x", io.Discard)
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Store.Driver = config.DriverMemory
	cfg.Auth.AdminAPIKey = "pv_admin"
	cfg.Auth.AdminUserID = 1

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, discardLogger(), nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestWatchConfig_AppliesLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))

	assert.Nil(t, watchConfig("", new(slog.LevelVar), discardLogger()))

	level := new(slog.LevelVar)
	w := watchConfig(path, level, discardLogger())
	require.NotNil(t, w)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))
	require.Eventually(t, func() bool { return level.Level() == slog.LevelError },
		5*time.Second, 20*time.Millisecond)
}
