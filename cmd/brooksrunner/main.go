// Command brooksrunner is the live trading engine process: it wires the
// exchange websocket and REST clients, the Redis cache, every
// background stream worker and one orchestrator for the configured
// symbol into a running service, then drives each user's order
// placement and position lifecycle off the orchestrator's signals.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/cache"
	"github.com/evdnx/brooksfutures/config"
	"github.com/evdnx/brooksfutures/delta"
	"github.com/evdnx/brooksfutures/engine"
	"github.com/evdnx/brooksfutures/exchange/rest"
	"github.com/evdnx/brooksfutures/exchange/ws"
	"github.com/evdnx/brooksfutures/logger"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/metrics"
	"github.com/evdnx/brooksfutures/position"
	"github.com/evdnx/brooksfutures/risk"
	"github.com/evdnx/brooksfutures/stream"
)

// ReconcileInterval is how often each user's position is polled against
// the exchange's authoritative state.
const ReconcileInterval = 30 * time.Second

var (
	wsURL    string
	restURL  string
	symbol   string
	interval string
	observe  bool
)

var rootCmd = &cobra.Command{
	Use:   "brooksrunner",
	Short: "Runs the live Al Brooks price-action futures trading engine",
	RunE:  run,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws-url", "wss://fstream.binance.com/stream", "combined-streams websocket base URL")
	rootCmd.PersistentFlags().StringVar(&restURL, "rest-url", "https://fapi.binance.com", "REST API base URL")
	rootCmd.PersistentFlags().StringVar(&symbol, "symbol", "", "override the configured trading symbol")
	rootCmd.PersistentFlags().StringVar(&interval, "interval", "", "override the configured kline interval")
	rootCmd.PersistentFlags().BoolVar(&observe, "observe", false, "observe-only: log signals but place no orders")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// htfIntervalFor picks the higher timeframe the HTF filter polls,
// scaled to the primary interval.
func htfIntervalFor(base string) string {
	switch base {
	case "1m", "3m", "5m":
		return "1h"
	case "15m", "30m":
		return "4h"
	default:
		return "1d"
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if symbol != "" {
		cfg.Symbol = symbol
	}
	if interval != "" {
		cfg.KlineInterval = interval
	}
	if observe {
		cfg.ObserveMode = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewZapLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.Info("starting brooksrunner", logger.String("symbol", cfg.Symbol), logger.String("interval", cfg.KlineInterval))

	c, err := cache.New(cfg.RedisURL, log)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer c.Close()

	wsClient := ws.NewClient(wsURL, log)
	marketData := rest.NewClient("marketdata", restURL, "", "", log)

	windowSeconds := stream.IntervalMs(cfg.KlineInterval) / 1000
	deltaEngine := delta.NewEngine(windowSeconds)
	orch := engine.New(cfg.Symbol, cfg, deltaEngine)

	htfSwings := market.NewHTFSwingTracker()
	htfPoller := stream.NewHTFPoller(marketData, orch.HTFFilter(), htfSwings, cfg.Symbol, htfIntervalFor(cfg.KlineInterval), cfg.HTFEMAPeriod, log)

	obiWorker := stream.NewOBIWorker(orch.OBITracker(), c, cfg.Symbol, orch.SetOBISnapshot)
	deltaAggregator := stream.NewDeltaAggregator(deltaEngine, c, cfg.Symbol)
	statsWorker := stream.NewStatsWorker(cfg.Symbol, deltaEngine, log)

	positions := position.NewManager(log)
	sizer := risk.DefaultSizePolicy{StepSize: 0.001, MinQty: 0.001, MinNotional: 5}

	workers := make([]*stream.UserWorker, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		acct := rest.NewClient(u.Name, restURL, u.APIKey, u.Secret, log)
		workers = append(workers, stream.NewUserWorker(u.Name, acct, positions, sizer, cfg, htfSwings, log))
	}
	if len(workers) == 0 {
		log.Warn("no users configured, running signal detection only", logger.String("symbol", cfg.Symbol))
	}

	barIntervalMinutes := int(stream.IntervalMs(cfg.KlineInterval) / 60_000)
	if barIntervalMinutes < 1 {
		barIntervalMinutes = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	onBar := func(b bar.Bar) {
		statsWorker.IncBar()
		sig := orch.OnBar(b)
		atr := orch.ATR()

		for _, w := range workers {
			w.OnBar(gctx, b.High, b.Low, b.Close, atr, barIntervalMinutes)
		}
		if sig == nil {
			return
		}
		metrics.SignalsEmitted.WithLabelValues(sig.Pattern, string(sig.Side)).Inc()
		log.Info("signal emitted",
			logger.String("pattern", sig.Pattern),
			logger.String("side", string(sig.Side)),
			logger.Float64("price", sig.Price),
			logger.String("market_state", sig.MarketState),
		)
		if cfg.ObserveMode {
			return
		}
		for _, w := range workers {
			if positions.IsCoolingDown(w.User(), time.Now()) {
				metrics.CooldownBlocked.Inc()
				continue
			}
			if !positions.ReversalAllowed(w.User(), sig.Side, sig.Strength, sig.State) {
				metrics.CooldownBlocked.Inc()
				continue
			}
			w.Entries() <- stream.EntrySignal{
				Symbol:        sig.Symbol,
				Side:          sig.Side,
				Price:         sig.Price,
				IsSpike:       sig.IsSpike,
				Stop:          sig.Stop,
				TP1:           sig.TP1,
				TP2:           sig.TP2,
				TP1CloseRatio: sig.TP1CloseRatio,
				Strength:      sig.Strength,
				MarketState:   sig.MarketState,
				Pattern:       sig.Pattern,
				IsClimaxBar:   sig.IsClimaxBar,
			}
		}
	}

	barWindow := bar.NewWindow(500)
	barProducer := stream.NewBarProducer(wsClient, marketData, cfg.Symbol, cfg.KlineInterval, barWindow, log)

	g.Go(func() error { return barProducer.Run(gctx, onBar) })
	g.Go(func() error { return htfPoller.Run(gctx) })
	g.Go(func() error { return obiWorker.Run(gctx, wsClient) })
	g.Go(func() error { return deltaAggregator.Run(gctx, wsClient) })
	g.Go(func() error { return statsWorker.Run(gctx) })

	for _, w := range workers {
		w := w
		g.Go(func() error { return w.Run(gctx) })
	}

	g.Go(func() error { return reconcileLoop(gctx, workers, orch, cfg.Symbol) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Error("brooksrunner exited with error", logger.Err(err))
		return err
	}
	log.Info("brooksrunner shut down cleanly")
	return nil
}

// reconcileLoop polls every user's exchange position against the cached
// trade record on a fixed interval until ctx is cancelled.
func reconcileLoop(ctx context.Context, workers []*stream.UserWorker, orch *engine.Orchestrator, symbol string) error {
	ticker := time.NewTicker(ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			atr := orch.ATR()
			for _, w := range workers {
				w.Reconcile(ctx, symbol, atr)
			}
		}
	}
}
