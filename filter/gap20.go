package filter

import (
	"math"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
)

const (
	gapBarThreshold   = 20
	consolidationBars = 5
	consolidationRng  = 1.5
)

// GapBar20Rule implements the "20 gap bar" overextension rule: once
// price has spent `gapBarThreshold` consecutive bars entirely
// above/below the EMA, H1/L1 continuation signals are blocked until a
// qualifying pullback or consolidation resolves it.
type GapBar20Rule struct {
	GapCount             int
	GapCountExtreme      float64
	IsOverextended       bool
	OverextendDir        string
	FirstPullbackBlocked bool
	WaitingForRecovery   bool
	FirstPullbackComplete bool
	ConsolidationCount   int
	PullbackExtreme      float64
}

// CalculateGapCount counts how many consecutive recent bars sit
// entirely on one side of the EMA (capped at 50 lookback), storing the
// extreme reached over that run.
func (g *GapBar20Rule) CalculateGapCount(w *bar.Window, emas *market.EMAHistory, atr float64) int {
	if atr <= 0 {
		return 0
	}
	last, ok := w.At(0)
	e1, okE := emas.At(0)
	if !ok || !okE {
		return 0
	}
	threshold := atr * 0.3
	above := last.Close > e1+threshold
	below := last.Close < e1-threshold
	if !above && !below {
		g.GapCount = 0
		g.GapCountExtreme = 0
		return 0
	}

	extreme := math.Inf(-1)
	if !above {
		extreme = math.Inf(1)
	}
	count := 0
	for i := 1; i <= 50; i++ {
		age := i - 1
		b, ok := w.At(age)
		e, okE := emas.At(age)
		if !ok || !okE {
			break
		}
		if above {
			if b.Low > e {
				count++
				if b.High > extreme {
					extreme = b.High
				}
			} else {
				break
			}
		} else {
			if b.High < e {
				count++
				if b.Low < extreme {
					extreme = b.Low
				}
			} else {
				break
			}
		}
	}
	g.GapCount = count
	g.GapCountExtreme = extreme
	return count
}

// Update advances the overextension state machine by one bar.
func (g *GapBar20Rule) Update(w *bar.Window, emas *market.EMAHistory, atr float64) {
	n := w.Len()
	if atr <= 0 {
		return
	}
	last, ok := w.At(0)
	e1, okE := emas.At(0)
	if !ok || !okE {
		return
	}
	threshold := atr * 0.3
	above := last.Close > e1+threshold
	below := last.Close < e1-threshold
	touching := !above && !below

	if !g.IsOverextended && g.GapCount >= gapBarThreshold {
		g.IsOverextended = true
		g.OverextendDir = dirOf(above)
		g.FirstPullbackBlocked = false
		g.WaitingForRecovery = false
		g.FirstPullbackComplete = false
		g.ConsolidationCount = 0
		g.PullbackExtreme = 0
	}

	if g.IsOverextended {
		if !g.FirstPullbackComplete && touching {
			if !g.FirstPullbackBlocked {
				g.FirstPullbackBlocked = true
				g.WaitingForRecovery = true
				if g.OverextendDir == "up" {
					g.PullbackExtreme = last.Low
				} else {
					g.PullbackExtreme = last.High
				}
			}
			g.ConsolidationCount++
		}

		if g.WaitingForRecovery {
			recovered := false
			if g.ConsolidationCount >= consolidationBars && atr > 0 {
				rH, rL := last.High, last.Low
				limit := consolidationBars
				if limit >= n {
					limit = n - 1
				}
				for i := 2; i <= limit; i++ {
					b, ok := w.At(i - 1)
					if !ok {
						break
					}
					if b.High > rH {
						rH = b.High
					}
					if b.Low < rL {
						rL = b.Low
					}
				}
				if rH-rL <= atr*consolidationRng {
					recovered = true
				}
			}
			if !recovered && g.PullbackExtreme > 0 && atr > 0 {
				tol := atr * 0.3
				if g.OverextendDir == "up" {
					if last.Low <= g.PullbackExtreme+tol && last.Low >= g.PullbackExtreme-tol && last.Close > last.Open {
						recovered = true
					}
				} else {
					if last.High >= g.PullbackExtreme-tol && last.High <= g.PullbackExtreme+tol && last.Close < last.Open {
						recovered = true
					}
				}
			}
			if !recovered {
				if (g.OverextendDir == "up" && below) || (g.OverextendDir == "down" && above) {
					recovered = true
				}
			}
			if recovered {
				g.FirstPullbackComplete = true
				g.WaitingForRecovery = false
			}
		}

		shouldReset := false
		switch {
		case g.GapCount == 0:
			shouldReset = true
		case g.OverextendDir == "up" && below && n >= 3:
			if prev, ok := w.At(1); ok {
				if ePrev, okE := emas.At(1); okE && prev.Close < ePrev-threshold {
					shouldReset = true
				}
			}
		case g.OverextendDir == "down" && above && n >= 3:
			if prev, ok := w.At(1); ok {
				if ePrev, okE := emas.At(1); okE && prev.Close > ePrev+threshold {
					shouldReset = true
				}
			}
		}
		if shouldReset {
			g.reset()
		}
	}
}

func dirOf(above bool) string {
	if above {
		return "up"
	}
	return "down"
}

// CheckBlock reports whether a pending H1/L1 continuation signal must
// be suppressed because the first post-overextension pullback has not
// yet resolved.
func (g *GapBar20Rule) CheckBlock(signalName string) bool {
	if !g.IsOverextended {
		return false
	}
	if signalName == "H1" || signalName == "L1" {
		return g.FirstPullbackBlocked && !g.FirstPullbackComplete
	}
	return false
}

func (g *GapBar20Rule) reset() {
	g.IsOverextended = false
	g.FirstPullbackBlocked = false
	g.OverextendDir = ""
	g.WaitingForRecovery = false
	g.FirstPullbackComplete = false
	g.ConsolidationCount = 0
	g.PullbackExtreme = 0
}
