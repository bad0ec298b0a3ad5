package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
data:
  path: feed.csv
portfolio:
  initial_capital: 100000
  commission_rate: 0.0002
strategy:
  name: market_maker
  params:
    spread_bps: 5
    size: 200
signals:
  interval: 10
logging:
  level: debug
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "feed.csv", cfg.Data.Path)
	assert.Equal(t, 100000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, 0.0002, cfg.Portfolio.CommissionRate)
	assert.Equal(t, "market_maker", cfg.Strategy.Name)
	assert.Equal(t, 5.0, cfg.Strategy.Params["spread_bps"])
	assert.Equal(t, 10, cfg.Signals.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LOBSIM_DATA_PATH", "other.csv")
	t.Setenv("LOBSIM_STRATEGY", "momentum")
	t.Setenv("LOBSIM_INITIAL_CAPITAL", "50000")
	t.Setenv("LOBSIM_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "other.csv", cfg.Data.Path)
	assert.Equal(t, "momentum", cfg.Strategy.Name)
	assert.Equal(t, 50000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "data: ["))
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, validConfig))
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing data path", func(t *testing.T) {
		cfg := base()
		cfg.Data.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive capital", func(t *testing.T) {
		cfg := base()
		cfg.Portfolio.InitialCapital = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative commission", func(t *testing.T) {
		cfg := base()
		cfg.Portfolio.CommissionRate = -0.1
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing strategy", func(t *testing.T) {
		cfg := base()
		cfg.Strategy.Name = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative signal interval", func(t *testing.T) {
		cfg := base()
		cfg.Signals.Interval = -1
		assert.Error(t, cfg.Validate())
	})
}
