package stream

import (
	"context"
	"time"

	"github.com/evdnx/brooksfutures/delta"
	"github.com/evdnx/brooksfutures/logger"
)

// StatsInterval is how often the stats worker reports.
const StatsInterval = 5 * time.Minute

// StatsWorker periodically logs a one-line health summary: bars seen,
// delta trend, delta ratio. It never mutates state and exists purely
// for operational visibility — a log line, not a UI.
type StatsWorker struct {
	symbol string
	engine *delta.Engine
	log    logger.Logger

	barCount int
}

// NewStatsWorker returns a worker reporting on symbol's delta engine.
func NewStatsWorker(symbol string, engine *delta.Engine, log logger.Logger) *StatsWorker {
	return &StatsWorker{symbol: symbol, engine: engine, log: log}
}

// IncBar records one more closed bar having been processed, for the next
// periodic report.
func (s *StatsWorker) IncBar() { s.barCount++ }

// Run logs a summary every StatsInterval until ctx is cancelled.
func (s *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.report()
		}
	}
}

func (s *StatsWorker) report() {
	if s.log == nil {
		return
	}
	snap := s.engine.Snapshot(time.Now().UnixMilli())
	s.log.Info("stream stats",
		logger.String("symbol", s.symbol),
		logger.Int("bars_processed", s.barCount),
		logger.String("delta_trend", string(snap.Trend)),
		logger.Float64("delta_ratio", snap.DeltaRatio),
	)
}
