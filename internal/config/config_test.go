package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-trader/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Orders.Timeout)
	assert.Equal(t, "ignore", cfg.Orders.ExternalReports)
	assert.False(t, cfg.Orders.CancelOnTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.HasAccountInfo())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[account]
broker_id = "BRK-1"
account = "acct-42"

[orders]
timeout = "30s"
external_reports = "adopt"
cancel_on_timeout = true

[sim]
latency = "10ms"
partial_lots = 25

[sim.prices]
AAPL = 150.0
msft = 400.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, cfg.HasAccountInfo())
	assert.Equal(t, "BRK-1", cfg.Account.BrokerID)
	assert.Equal(t, 30*time.Second, cfg.Orders.Timeout)
	assert.Equal(t, "adopt", cfg.Orders.ExternalReports)
	assert.True(t, cfg.Orders.CancelOnTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Sim.Latency)
	assert.Equal(t, int64(25), cfg.Sim.PartialLots)
	// Symbol keys come back uppercase regardless of how the file
	// spells them.
	assert.Equal(t, 150.0, cfg.Sim.Prices["AAPL"])
	assert.Equal(t, 400.0, cfg.Sim.Prices["MSFT"])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRADER_BROKER_ID", "ENV-BRK")
	t.Setenv("TRADER_ACCOUNT", "env-acct")
	t.Setenv("TRADER_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "ENV-BRK", cfg.Account.BrokerID)
	assert.Equal(t, "env-acct", cfg.Account.Account)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{}
	cfg.Orders.Timeout = time.Minute
	cfg.Orders.ExternalReports = "ignore"

	require.NoError(t, cfg.Validate())

	cfg.Orders.ExternalReports = "adopt-sometimes"
	assert.ErrorIs(t, cfg.Validate(), errors.ErrConfigInvalid)

	cfg.Orders.ExternalReports = "ignore"
	cfg.Orders.Timeout = 0
	assert.ErrorIs(t, cfg.Validate(), errors.ErrConfigInvalid)
}
