package report

import (
	"os"
	"path/filepath"
	"testing"

	"optback/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() EquityCurveInput {
	return EquityCurveInput{
		RunID:  "run-123",
		Model:  "pmcc",
		Symbol: "AAPL",
		Days: []store.DaySnapshot{
			{Date: "2013-01-02", Balance: 1_000_000, Unrealized: 1_000_000},
			{Date: "2013-01-03", Balance: 995_000, Unrealized: 1_010_000},
			{Date: "2013-01-04", Balance: 1_020_000, Unrealized: 1_020_000},
		},
	}
}

func TestBuildEquityCurveHTML(t *testing.T) {
	html, err := BuildEquityCurveHTML(sampleInput())
	require.NoError(t, err)

	s := string(html)
	assert.Contains(t, s, "echarts")
	assert.Contains(t, s, "2013-01-02")
	assert.Contains(t, s, "run-123")
}

func TestBuildEquityCurveHTMLRequiresData(t *testing.T) {
	_, err := BuildEquityCurveHTML(EquityCurveInput{RunID: "empty"})
	assert.Error(t, err)
}

func TestWriteEquityCurveCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "equity.html")
	require.NoError(t, WriteEquityCurve(path, sampleInput()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
