package store

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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.Accounts.Trading)
	assert.Equal(t, int64(2), c.Accounts.Training)
	assert.Equal(t, 200, c.Training.Limit)
	assert.Equal(t, 500*time.Millisecond, c.TrainingPeriod())
	assert.Equal(t, 10*time.Second, c.TradingPeriod())
	assert.Equal(t, "BTCUSDT", c.DefaultSymbol)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  url: "http://svc:9000"
symbols: ["ETHUSDT", "SOLUSDT"]
training:
  limit: 50
alignment: nearest
`)
	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://svc:9000", c.Service.URL)
	assert.Equal(t, []string{"ETHUSDT", "SOLUSDT"}, c.Symbols)
	assert.Equal(t, "ETHUSDT", c.DefaultSymbol)
	assert.Equal(t, 50, c.Training.Limit)
	assert.Equal(t, 500, c.Training.Offset)
	assert.Equal(t, "nearest", c.Alignment)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOTVIEW_SERVICE_URL", "http://env:1")
	t.Setenv("BOTVIEW_LISTEN", ":9999")

	c, err := LoadConfig(writeConfig(t, "listen: \":1234\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env:1", c.Service.URL)
	assert.Equal(t, ":9999", c.Listen)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"same accounts":    func(c *Config) { c.Accounts.Training = c.Accounts.Trading },
		"short window":     func(c *Config) { c.Training.Limit = 20 },
		"negative offset":  func(c *Config) { c.Training.Offset = -1 },
		"unknown strategy": func(c *Config) { c.Alignment = "closest" },
		"zero poll":        func(c *Config) { c.Poll.TrainingMillis = 0 },
		"foreign default":  func(c *Config) { c.DefaultSymbol = "DOGEUSDT" },
		"empty snapshots":  func(c *Config) { c.SnapshotWindow = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	assert.NoError(t, c.Validate())
}

func TestLoadConfigExplicitForeignDefaultFails(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "symbols: [\"ETHUSDT\"]\ndefault_symbol: \"XRPUSDT\"\n"))
	assert.Error(t, err)
}
