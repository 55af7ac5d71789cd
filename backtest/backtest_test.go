package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/config"
)

func flatBars(n int, price float64) []bar.Bar {
	bars := make([]bar.Bar, n)
	for i := range bars {
		bars[i] = bar.Bar{
			OpenTime: int64(i) * 300_000,
			Open:     price,
			High:     price + 0.5,
			Low:      price - 0.5,
			Close:    price,
		}
	}
	return bars
}

func TestRunOnFlatSeriesProducesNoTrades(t *testing.T) {
	cfg := Config{
		Symbol:         "BTCUSDT",
		Interval:       "5m",
		InitialCapital: 10_000,
		Leverage:       5,
		Strategy:       config.Default(),
	}
	result := Run(flatBars(40, 100), cfg)

	require.NotNil(t, result)
	assert.Empty(t, result.Trades)
	assert.Equal(t, cfg.InitialCapital, result.FinalEquity)
	assert.Zero(t, result.TotalPnL)
	assert.Zero(t, result.WinRate)
}

func TestRunTooShortSeriesIsSafe(t *testing.T) {
	cfg := Config{Symbol: "BTCUSDT", Interval: "5m", InitialCapital: 1_000, Leverage: 1, Strategy: config.Default()}
	result := Run(flatBars(3, 100), cfg)

	require.NotNil(t, result)
	assert.Empty(t, result.Trades)
	assert.Equal(t, float64(1_000), result.FinalEquity)
}

func TestObjectiveLookup(t *testing.T) {
	r := &Result{Sharpe: 1.5, WinRate: 0.6, TotalPnL: 120, TotalPnLPct: 12, ProfitFactor: 2.1}

	for name, want := range map[string]float64{
		"sharpe":        1.5,
		"win_rate":      0.6,
		"total_pnl":     120,
		"total_pnl_pct": 12,
		"profit_factor": 2.1,
	} {
		got, err := r.Objective(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := r.Objective("not_a_real_objective")
	assert.Error(t, err)
}

func TestSummarizeWithNoInitialCapitalSkipsPnLPct(t *testing.T) {
	r := summarize(nil, 0, 0)
	assert.Zero(t, r.TotalPnL)
	assert.Zero(t, r.TotalPnLPct)
	assert.Empty(t, r.Trades)
}
