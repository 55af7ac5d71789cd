// Command brooksgrid sweeps a cartesian grid of StrategyConfig
// overrides across one historical window and reports the combination
// that scores best against a chosen objective.
package main

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
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

const klinesPerPage = 1000

var validObjectives = map[string]bool{
	"sharpe": true, "win_rate": true, "total_pnl": true,
	"total_pnl_pct": true, "profit_factor": true,
}

var (
	gridSymbol    string
	gridInterval  string
	gridStart     string
	gridEnd       string
	gridCapital   float64
	gridLeverage  int
	gridSLATR     float64
	gridRestURL   string
	gridObjective string
	gridParams    []string
)

var rootCmd = &cobra.Command{
	Use:   "brooksgrid",
	Short: "Searches a parameter grid against a historical window for the best-scoring configuration",
	RunE:  run,
}

func main() {
	rootCmd.Flags().StringVar(&gridSymbol, "symbol", "BTCUSDT", "trading symbol")
	rootCmd.Flags().StringVar(&gridInterval, "interval", "5m", "kline interval")
	rootCmd.Flags().StringVar(&gridStart, "start", "", "start date/time (RFC3339 or YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&gridEnd, "end", "", "end date/time (RFC3339 or YYYY-MM-DD)")
	rootCmd.Flags().Float64Var(&gridCapital, "capital", 10_000, "starting capital")
	rootCmd.Flags().IntVar(&gridLeverage, "leverage", 5, "leverage applied to sizing")
	rootCmd.Flags().Float64Var(&gridSLATR, "sl-atr", 0, "override the stop-loss ATR multiplier (0 keeps the default)")
	rootCmd.Flags().StringVar(&gridRestURL, "rest-url", "https://fapi.binance.com", "REST API base URL for historical klines")
	rootCmd.Flags().StringVar(&gridObjective, "objective", "sharpe", "scoring objective: sharpe, win_rate, total_pnl, total_pnl_pct, profit_factor")
	rootCmd.Flags().StringArrayVar(&gridParams, "param", nil, `a StrategyConfig field and candidate values, e.g. --param "MaxStopATRMult=2,2.5,3" (repeatable)`)
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

// paramSet is one StrategyConfig field name and its candidate values, as
// parsed from one --param flag.
type paramSet struct {
	field  string
	values []string
}

func parseParams(raw []string) ([]paramSet, error) {
	out := make([]paramSet, 0, len(raw))
	for _, p := range raw {
		name, valuesPart, ok := strings.Cut(p, "=")
		if !ok || name == "" || valuesPart == "" {
			return nil, fmt.Errorf("invalid --param %q, expected NAME=V1,V2,...", p)
		}
		if _, ok := reflect.TypeOf(config.StrategyConfig{}).FieldByName(name); !ok {
			return nil, fmt.Errorf("--param %q: StrategyConfig has no field %q", p, name)
		}
		out = append(out, paramSet{field: name, values: strings.Split(valuesPart, ",")})
	}
	return out, nil
}

// applyParam sets one exported StrategyConfig field from its string
// form, matching the field's own kind (float64, int or bool).
func applyParam(cfg *config.StrategyConfig, field, value string) error {
	v := reflect.ValueOf(cfg).Elem().FieldByName(field)
	if !v.IsValid() || !v.CanSet() {
		return fmt.Errorf("field %q is not settable", field)
	}
	switch v.Kind() {
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", field, value, err)
		}
		v.SetFloat(f)
	case reflect.Int:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", field, value, err)
		}
		v.SetInt(i)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", field, value, err)
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("field %q has unsupported kind %s", field, v.Kind())
	}
	return nil
}

// combinations expands the cartesian product of every paramSet's values
// into one []paramSet-indexed assignment per grid point.
func combinations(sets []paramSet) [][]string {
	if len(sets) == 0 {
		return [][]string{{}}
	}
	rest := combinations(sets[1:])
	out := make([][]string, 0, len(sets[0].values)*len(rest))
	for _, v := range sets[0].values {
		for _, r := range rest {
			combo := append([]string{v}, r...)
			out = append(out, combo)
		}
	}
	return out
}

type scoredRun struct {
	assignment string
	score      float64
	result     *backtest.Result
}

func run(cmd *cobra.Command, args []string) error {
	if !validObjectives[gridObjective] {
		return fmt.Errorf("invalid --objective %q", gridObjective)
	}
	start, err := parseTime(gridStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseTime(gridEnd)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("--end must be after --start")
	}
	sets, err := parseParams(gridParams)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return fmt.Errorf("at least one --param is required")
	}

	log, err := logger.NewZapLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	marketData := rest.NewClient("marketdata", gridRestURL, "", "", log)
	ctx := context.Background()

	log.Info("fetching historical bars",
		logger.String("symbol", gridSymbol),
		logger.String("interval", gridInterval),
	)
	bars, err := fetchAll(ctx, marketData, gridSymbol, gridInterval, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars returned for the requested window")
	}

	grid := combinations(sets)
	log.Info("searching parameter grid", logger.Int("combinations", len(grid)))

	runs := make([]scoredRun, 0, len(grid))
	for _, combo := range grid {
		strat := config.Default()
		labels := make([]string, len(sets))
		for i, set := range sets {
			if err := applyParam(&strat, set.field, combo[i]); err != nil {
				return err
			}
			labels[i] = fmt.Sprintf("%s=%s", set.field, combo[i])
		}

		result := backtest.Run(bars, backtest.Config{
			Symbol:         gridSymbol,
			Interval:       gridInterval,
			InitialCapital: gridCapital,
			Leverage:       gridLeverage,
			SLATRMult:      gridSLATR,
			Strategy:       strat,
		})
		score, err := result.Objective(gridObjective)
		if err != nil {
			return err
		}
		runs = append(runs, scoredRun{assignment: strings.Join(labels, " "), score: score, result: result})
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].score > runs[j].score })

	fmt.Printf("bars replayed: %d, combinations tested: %d, objective: %s\n\n", len(bars), len(runs), gridObjective)
	limit := len(runs)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		r := runs[i]
		fmt.Printf("%2d. score=%.4f trades=%d win_rate=%.2f%% pnl=%.2f  %s\n",
			i+1, r.score, len(r.result.Trades), r.result.WinRate*100, r.result.TotalPnL, r.assignment)
	}
	return nil
}
