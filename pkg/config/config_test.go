package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
engine:
  assets: [BTC, ETH]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.3, c.Gate.BuyThreshold)
	assert.Equal(t, -0.3, c.Gate.SellThreshold)
	assert.Equal(t, 15*time.Minute, c.Gate.Cooldown)
	assert.Equal(t, 10, c.ClickHouse.MaxOpenConns)
	assert.Equal(t, 5, c.ClickHouse.MaxIdleConns)
}

func TestValidateRejectsNonPositiveCooldown(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
gate:
  cooldown: -1m
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate.cooldown")
}

func TestValidateRejectsBadPoolBounds(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
clickhouse:
  max_open_conns: 2
  max_idle_conns: 8
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse pool")
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
gate:
  buy_threshold: -0.2
`))
	assert.Error(t, err)
}
