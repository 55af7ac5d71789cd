// Command brooksback replays a historical kline window through the
// trading engine and prints a scored summary of the simulated trades.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evdnx/brooksfutures/backtest"
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/config"
	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/exchange/rest"
	"github.com/evdnx/brooksfutures/logger"
	"github.com/evdnx/brooksfutures/stream"
)

// klinesPerPage is Binance's max klines per REST call.
const klinesPerPage = 1000

var (
	backSymbol   string
	backInterval string
	backStart    string
	backEnd      string
	backCapital  float64
	backLeverage int
	backSLATR    float64
	backRestURL  string
)

var rootCmd = &cobra.Command{
	Use:   "brooksback",
	Short: "Replays a historical window through the trading engine and scores the result",
	RunE:  run,
}

func main() {
	rootCmd.Flags().StringVar(&backSymbol, "symbol", "BTCUSDT", "trading symbol")
	rootCmd.Flags().StringVar(&backInterval, "interval", "5m", "kline interval")
	rootCmd.Flags().StringVar(&backStart, "start", "", "start date/time (RFC3339 or YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&backEnd, "end", "", "end date/time (RFC3339 or YYYY-MM-DD)")
	rootCmd.Flags().Float64Var(&backCapital, "capital", 10_000, "starting capital")
	rootCmd.Flags().IntVar(&backLeverage, "leverage", 5, "leverage applied to sizing")
	rootCmd.Flags().Float64Var(&backSLATR, "sl-atr", 0, "override the stop-loss ATR multiplier (0 keeps the default)")
	rootCmd.Flags().StringVar(&backRestURL, "rest-url", "https://fapi.binance.com", "REST API base URL for historical klines")
	rootCmd.MarkFlagRequired("start")
	rootCmd.MarkFlagRequired("end")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// fetchAll pages through FetchKlines from startMs to endMs, exclusive of
// endMs, oldest first.
func fetchAll(ctx context.Context, source *rest.Client, symbol, interval string, startMs, endMs int64) ([]bar.Bar, error) {
	intervalMs := stream.IntervalMs(interval)
	if intervalMs <= 0 {
		return nil, fmt.Errorf("unrecognized interval %q", interval)
	}

	var out []bar.Bar
	cursor := startMs
	for cursor < endMs {
		events, err := source.FetchKlines(ctx, symbol, interval, cursor, klinesPerPage)
		if err != nil {
			return nil, fmt.Errorf("fetch klines at %d: %w", cursor, err)
		}
		if len(events) == 0 {
			break
		}
		for _, ev := range events {
			if ev.OpenTimeMs >= endMs {
				return out, nil
			}
			out = append(out, toBar(ev))
		}
		last := events[len(events)-1].OpenTimeMs
		if last < cursor {
			break
		}
		cursor = last + intervalMs
	}
	return out, nil
}

func toBar(ev exchange.KlineEvent) bar.Bar {
	return bar.Bar{OpenTime: ev.OpenTimeMs, Open: ev.Open, High: ev.High, Low: ev.Low, Close: ev.Close}
}

func run(cmd *cobra.Command, args []string) error {
	start, err := parseTime(backStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseTime(backEnd)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("--end must be after --start")
	}

	log, err := logger.NewZapLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	marketData := rest.NewClient("marketdata", backRestURL, "", "", log)
	ctx := context.Background()

	log.Info("fetching historical bars",
		logger.String("symbol", backSymbol),
		logger.String("interval", backInterval),
		logger.String("start", start.Format(time.RFC3339)),
		logger.String("end", end.Format(time.RFC3339)),
	)
	bars, err := fetchAll(ctx, marketData, backSymbol, backInterval, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars returned for the requested window")
	}

	cfg := backtest.Config{
		Symbol:         backSymbol,
		Interval:       backInterval,
		InitialCapital: backCapital,
		Leverage:       backLeverage,
		SLATRMult:      backSLATR,
		Strategy:       config.Default(),
	}
	result := backtest.Run(bars, cfg)

	fmt.Printf("bars replayed:     %d\n", len(bars))
	fmt.Printf("trades:            %d\n", len(result.Trades))
	fmt.Printf("final equity:      %.2f\n", result.FinalEquity)
	fmt.Printf("total pnl:         %.2f (%.2f%%)\n", result.TotalPnL, result.TotalPnLPct)
	fmt.Printf("win rate:          %.2f%%\n", result.WinRate*100)
	fmt.Printf("profit factor:     %.2f\n", result.ProfitFactor)
	fmt.Printf("sharpe:            %.2f\n", result.Sharpe)
	return nil
}
