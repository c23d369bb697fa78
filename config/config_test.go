package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradesim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "Port: 9090\nGame:\n  PointValue: 1\nRedis:\n  DB: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, DefaultPointValue, cfg.Game.PointValue)
	assert.Equal(t, DefaultDoublesAllowed, cfg.Game.DoublesAllowed)
	assert.Equal(t, DefaultLiquidationThreshold, cfg.Game.LiquidationThreshold)
	assert.Equal(t, CountdownDuration, cfg.Game.Countdown())
	assert.Equal(t, CountdownStep, cfg.Game.CountdownStep())
	assert.Equal(t, 15*time.Minute, cfg.Redis.DedupeTTL())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TRADESIM_TEST_DSN", "postgres://sim@localhost/sim")
	cfg, err := Load(writeConfig(t, "Postgres:\n  DSN: \"${TRADESIM_TEST_DSN}\"\nDiscord:\n  Webhooks:\n    room-1: https://example.invalid/hook\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://sim@localhost/sim", cfg.Postgres.DSN)
	assert.Equal(t, "https://example.invalid/hook", cfg.Discord.Webhooks["room-1"])
}

func TestLoadRejectsNegativeGameSettings(t *testing.T) {
	cases := map[string]string{
		"point value": "Game:\n  PointValue: -1\n",
		"doubles":     "Game:\n  DoublesAllowed: -2\n",
		"doubles cap": "Game:\n  DoublesAllowed: 3000000000\n",
		"threshold":   "Game:\n  LiquidationThreshold: -10\n",
		"countdown":   "Game:\n  CountdownSeconds: -1\n",
		"port":        "Port: 70000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ServerPort, cfg.Port)
	assert.Equal(t, DefaultDoublesAllowed, cfg.Game.DoublesAllowed)
	assert.Equal(t, 15*time.Second, cfg.Game.Countdown())
}
