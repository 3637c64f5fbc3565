package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

const sampleConfig = `
accounts:
  - site: estado
    company_id: "77469173-1"
    person_id: "12345678-5"
    secret_env: ESTADO_SECRET
    label: STS CRISTOBAL

schedule:
  - from_minute: 480
    to_minute: 660
    interval: 5m

billing:
  threshold: 50000000
  labels:
    "77469173-1": STS CRISTOBAL
    "77773448-2": DETAL

browser:
  headless: false

logging:
  level: debug
  file: harvester.log
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "estado", cfg.Accounts[0].Site)
	assert.Equal(t, "ESTADO_SECRET", cfg.Accounts[0].SecretEnv)

	require.Len(t, cfg.Schedule, 1)
	assert.Equal(t, 5*time.Minute, cfg.Schedule[0].Interval)

	assert.Equal(t, int64(50_000_000), cfg.Billing.Threshold)
	assert.Equal(t, "DETAL", cfg.Billing.Labels["77773448-2"])

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaults(t *testing.T) {
	minimal := `
accounts:
  - site: estado
    person_id: "12345678-5"
    secret_env: ESTADO_SECRET
`
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Retry.BackoffBase)
	assert.Equal(t, 8*time.Minute, cfg.Retry.CooldownMin)
	assert.Equal(t, 50, cfg.Extraction.MaxPages)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, uint64(1<<30), cfg.Memory.MinAvailableBytes)
	assert.Equal(t, time.Minute, cfg.Supervisor.PollInterval)
}

func TestLoadRejectsMissingAccounts(t *testing.T) {
	_, err := Load(writeConfig(t, "billing:\n  threshold: 1\n"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyScheduleBand(t *testing.T) {
	bad := `
accounts:
  - site: estado
    person_id: "12345678-5"
    secret_env: ESTADO_SECRET
schedule:
  - from_minute: 600
    to_minute: 600
    interval: 5m
`
	_, err := Load(writeConfig(t, bad))
	assert.Error(t, err)
}

func TestResolveAccounts(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	t.Setenv("ESTADO_SECRET", "hunter2")
	accounts, err := cfg.ResolveAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, bank.SiteEstado, accounts[0].Site)
	assert.Equal(t, "hunter2", accounts[0].Secret)
}

func TestResolveAccountsMissingSecret(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	t.Setenv("ESTADO_SECRET", "")
	_, err = cfg.ResolveAccounts()
	assert.Error(t, err)
}
