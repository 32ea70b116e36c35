package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
data:
  path: testdata/quotes.csv
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "discountdata", cfg.Data.Feed)
	assert.Equal(t, "advisory", cfg.Broker.MarginMode)
	assert.Equal(t, "null", cfg.Commission.Schedule)
	assert.Equal(t, "dummy", cfg.Model.Name)
	assert.Equal(t, int64(1_000_000), cfg.InitialBalance().Cents())
	assert.Equal(t, ":9991", cfg.Web.Addr)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
data:
  path: /data/aapl.csv
broker:
  initial_balance: "250000.00"
  margin_mode: strict
commission:
  schedule: charles_schwab
model:
  name: pmcc
  symbol: AAPL
store:
  enabled: true
  path: /data/results.db
report:
  enabled: true
  html_path: /data/equity.html
web:
  enabled: true
  addr: ":8800"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "strict", cfg.Broker.MarginMode)
	assert.Equal(t, int64(25_000_000), cfg.InitialBalance().Cents())
	assert.Equal(t, "pmcc", cfg.Model.Name)
	assert.Equal(t, "AAPL", cfg.Model.Symbol)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, ":8800", cfg.Web.Addr)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"缺 data.path": `
model:
  name: dummy
`,
		"非法余额": `
data:
  path: a.csv
broker:
  initial_balance: "abc"
`,
		"负余额": `
data:
  path: a.csv
broker:
  initial_balance: "-5.00"
`,
		"未知策略": `
data:
  path: a.csv
model:
  name: mystery
`,
		"pmcc 缺 symbol": `
data:
  path: a.csv
model:
  name: pmcc
`,
		"web 依赖 store": `
data:
  path: a.csv
web:
  enabled: true
`,
		"非法 margin mode": `
data:
  path: a.csv
broker:
  margin_mode: reckless
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}
