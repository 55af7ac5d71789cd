package market

import "github.com/evdnx/brooksfutures/bar"

// MarketState is the bar-by-bar structural classification.
type MarketState uint8

const (
	StateChannel MarketState = iota
	StateStrongTrend
	StateTightChannel
	StateTradingRange
	StateBreakout
	StateFinalFlag
)

func (s MarketState) String() string {
	switch s {
	case StateStrongTrend:
		return "StrongTrend"
	case StateTightChannel:
		return "TightChannel"
	case StateTradingRange:
		return "TradingRange"
	case StateBreakout:
		return "Breakout"
	case StateFinalFlag:
		return "FinalFlag"
	default:
		return "Channel"
	}
}

// MarketCycle groups states into the three higher-level regimes that
// downstream components (filters, risk) gate on.
type MarketCycle uint8

const (
	CycleChannel MarketCycle = iota
	CycleTradingRange
	CycleSpike
)

// AlwaysIn is the Brooks "always in" directional bias: the side a
// mechanical trader is assumed to be positioned on.
type AlwaysIn int8

const (
	AlwaysInShort   AlwaysIn = -1
	AlwaysInNeutral AlwaysIn = 0
	AlwaysInLong    AlwaysIn = 1
)

const (
	strongTrendScore    = 0.50
	ttrOverlapThreshold = 0.40
	ttrRangeATRMult     = 2.5
)

// stateMinHold is the hysteresis hold-bar count per state: once locked
// into a state, at least this many bars must pass before another
// transition is honored.
var stateMinHold = map[MarketState]int{
	StateStrongTrend:  3,
	StateTightChannel: 3,
	StateTradingRange: 2,
	StateBreakout:     2,
	StateChannel:      1,
	StateFinalFlag:    1,
}

// StateTracker is the market-state classifier and AlwaysIn estimator.
type StateTracker struct {
	State    MarketState
	Cycle    MarketCycle
	AlwaysIn AlwaysIn

	TrendDirection      string // "up", "down", or ""
	TrendStrength       float64
	TightChannelDir     string // "up", "down", or ""
	TightChannelBars    int
	TightChannelExtreme float64

	// BarsSinceTightChannelEnd counts bars elapsed since the last tight
	// channel run ended; -1 means no run to measure from. The Python
	// source set an equivalent flag to a constant 1 and never advanced
	// it, which would make its own declared 3-8 bar window unreachable;
	// here it is a real counter so the final-flag window behaves as
	// described.
	BarsSinceTightChannelEnd int
	wasTightChannel          bool

	TrHigh, TrLow float64

	lockedState MarketState
	holdBars    int
}

// NewStateTracker returns a tracker starting in the Channel state.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		State:                    StateChannel,
		Cycle:                    CycleChannel,
		lockedState:              StateChannel,
		BarsSinceTightChannelEnd: -1,
	}
}

// Update runs the full per-bar classification cascade: structural state,
// hysteresis lock, cycle mapping, and AlwaysIn bias.
// emas must have been appended to in lockstep with w.
func (s *StateTracker) Update(w *bar.Window, emas *EMAHistory, atr float64, swings *SwingTracker) {
	n := w.Len()
	if n < 12 || atr <= 0 {
		return
	}

	detected := StateChannel
	switch {
	case s.detectStrongTrend(w, emas, atr):
		detected = StateStrongTrend
	case s.detectTightChannel(w, atr):
		detected = StateTightChannel
	case s.detectFinalFlag(w, emas, atr):
		detected = StateFinalFlag
	case s.detectTradingRange(w, emas, atr):
		detected = StateTradingRange
	case s.detectBreakout(w, emas, atr):
		detected = StateBreakout
	}

	if detected == StateTightChannel {
		s.TightChannelBars++
		s.updateTightChannelTracking(w)
		s.BarsSinceTightChannelEnd = -1
	} else {
		if s.wasTightChannel {
			s.BarsSinceTightChannelEnd = 0
		} else if s.BarsSinceTightChannelEnd >= 0 {
			s.BarsSinceTightChannelEnd++
		}
		if detected == StateTradingRange || detected == StateChannel {
			s.TightChannelBars = 0
		}
	}
	s.wasTightChannel = detected == StateTightChannel

	s.applyInertia(detected)
	s.Cycle = cycleFor(s.State)

	s.updateAlwaysIn(w, emas, atr, swings)
}

func cycleFor(state MarketState) MarketCycle {
	switch state {
	case StateBreakout:
		return CycleSpike
	case StateTradingRange:
		return CycleTradingRange
	default:
		return CycleChannel
	}
}

func (s *StateTracker) applyInertia(detected MarketState) {
	if s.holdBars > 0 {
		s.holdBars--
		s.State = s.lockedState
		return
	}
	if detected != s.lockedState {
		minHold := stateMinHold[detected]
		if minHold == 0 {
			minHold = 1
		}
		s.lockedState = detected
		s.holdBars = minHold
	}
	if s.State != detected {
		s.State = detected
	}
}

// IsTTR reports whether the current TradingRange is "tight": range
// under 2.5x ATR and 20-bar overlap ratio under 0.40.
func (s *StateTracker) IsTTR(w *bar.Window, atr float64) bool {
	if s.State != StateTradingRange || atr <= 0 {
		return false
	}
	if s.TrHigh <= s.TrLow {
		return false
	}
	trRange := s.TrHigh - s.TrLow
	if trRange >= atr*ttrRangeATRMult {
		return false
	}
	return barOverlapRatio(w, 20) < ttrOverlapThreshold
}

func barOverlapRatio(w *bar.Window, lookback int) float64 {
	n := w.Len()
	if n < lookback+1 {
		return 1.0
	}
	last, ok := w.At(0)
	if !ok {
		return 1.0
	}
	rh, rl := last.High, last.Low
	sumRange := 0.0
	for i := 1; i <= lookback; i++ {
		b, ok := w.At(i - 1)
		if !ok {
			break
		}
		if b.High > rh {
			rh = b.High
		}
		if b.Low < rl {
			rl = b.Low
		}
		if br := b.High - b.Low; br > 0 {
			sumRange += br
		}
	}
	total := rh - rl
	if sumRange <= 0 || total <= 0 {
		return 1.0
	}
	return total / sumRange
}

// --- detectors ---

func (s *StateTracker) detectStrongTrend(w *bar.Window, emas *EMAHistory, atr float64) bool {
	const lookback = 10
	bullStreak, bearStreak, curBull, curBear := 0, 0, 0, 0
	hh, ll, above, below := 0, 0, 0, 0

	for i := 1; i <= lookback; i++ {
		age := i - 1
		cur, ok := w.At(age)
		if !ok {
			break
		}
		switch {
		case cur.Close > cur.Open:
			curBull++
			curBear = 0
		case cur.Close < cur.Open:
			curBear++
			curBull = 0
		}
		if curBull > bullStreak {
			bullStreak = curBull
		}
		if curBear > bearStreak {
			bearStreak = curBear
		}
		if older, ok := w.At(age + 1); ok {
			if cur.High > older.High {
				hh++
			}
			if cur.Low < older.Low {
				ll++
			}
		}
		if emaVal, ok := emas.At(age); ok {
			if cur.Close > emaVal {
				above++
			} else {
				below++
			}
		}
	}

	up, down := 0.0, 0.0
	if bullStreak >= 3 {
		up += 0.25
	}
	if bullStreak >= 5 {
		up += 0.25
	}
	if hh >= 4 {
		up += 0.2
	}
	if above >= 8 {
		up += 0.15
	}
	if bearStreak >= 3 {
		down += 0.25
	}
	if bearStreak >= 5 {
		down += 0.25
	}
	if ll >= 4 {
		down += 0.2
	}
	if below >= 8 {
		down += 0.15
	}

	if last, ok := w.At(0); ok && atr > 0 {
		if emaVal, ok := emas.At(0); ok {
			dist := (last.Close - emaVal) / atr
			if dist > 1.0 {
				up += 0.15
			}
			if dist < -1.0 {
				down += 0.15
			}
		}
	}

	if up >= strongTrendScore && up > down {
		s.TrendDirection = "up"
		s.TrendStrength = up
		return true
	}
	if down >= strongTrendScore && down > up {
		s.TrendDirection = "down"
		s.TrendStrength = down
		return true
	}
	s.TrendDirection = ""
	s.TrendStrength = maxf(up, down)
	return false
}

func (s *StateTracker) detectTightChannel(w *bar.Window, atr float64) bool {
	n := w.Len()
	if n < 15 || atr <= 0 {
		return false
	}
	const lookback = 12
	bull, bear, newHighs, newLows, shallow := 0, 0, 0, 0, 0

	for i := 1; i <= lookback; i++ {
		age := i - 1
		cur, ok1 := w.At(age)
		older, ok2 := w.At(age + 1)
		if !ok1 || !ok2 {
			break
		}
		switch {
		case cur.Close > cur.Open:
			bull++
		case cur.Close < cur.Open:
			bear++
		}
		if cur.High > older.High {
			newHighs++
		}
		if cur.Low < older.Low {
			newLows++
		}
		if prevRange := older.High - older.Low; prevRange > 0 {
			if cur.Low >= older.Low+prevRange*0.75 {
				shallow++
			}
			if cur.High <= older.High-prevRange*0.75 {
				shallow++
			}
		}
	}

	lbf := float64(lookback)
	if float64(bull) >= lbf*0.6 && float64(newHighs) >= lbf*0.5 && float64(shallow) >= lbf*0.4 {
		s.TightChannelDir = "up"
		return true
	}
	if float64(bear) >= lbf*0.6 && float64(newLows) >= lbf*0.5 && float64(shallow) >= lbf*0.4 {
		s.TightChannelDir = "down"
		return true
	}
	s.TightChannelDir = ""
	return false
}

func (s *StateTracker) detectTradingRange(w *bar.Window, emas *EMAHistory, atr float64) bool {
	n := w.Len()
	if n < 25 || atr <= 0 {
		return false
	}
	const lookback = 20
	last, ok := w.At(0)
	if !ok {
		return false
	}
	rh, rl := last.High, last.Low
	for i := 2; i <= lookback; i++ {
		b, ok := w.At(i - 1)
		if !ok {
			break
		}
		if b.High > rh {
			rh = b.High
		}
		if b.Low < rl {
			rl = b.Low
		}
	}
	total := rh - rl
	if total < atr*2.0 {
		return false
	}
	upper := rh - total*0.2
	lower := rl + total*0.2

	prevAbove := true
	if n > lookback {
		if b, ok := w.At(lookback - 1); ok {
			if e, ok := emas.At(lookback - 1); ok {
				prevAbove = b.Close > e
			}
		}
	}

	touchH, touchL, crosses := 0, 0, 0
	for i := 1; i <= lookback; i++ {
		age := i - 1
		b, ok := w.At(age)
		if !ok {
			break
		}
		if b.High >= upper {
			touchH++
		}
		if b.Low <= lower {
			touchL++
		}
		if e, ok := emas.At(age); ok {
			curAbove := b.Close > e
			if curAbove != prevAbove {
				crosses++
				prevAbove = curAbove
			}
		}
	}
	if touchH >= 2 && touchL >= 2 && crosses >= 4 {
		s.TrHigh, s.TrLow = rh, rl
		return true
	}
	return false
}

func (s *StateTracker) detectBreakout(w *bar.Window, emas *EMAHistory, atr float64) bool {
	n := w.Len()
	if n < 12 || atr <= 0 {
		return false
	}
	last, ok := w.At(0)
	if !ok {
		return false
	}
	body := absf(last.Close - last.Open)
	rng := last.High - last.Low
	if rng <= 0 {
		return false
	}

	limit := 12
	if n < limit {
		limit = n
	}
	avgBody, cnt := 0.0, 0
	for i := 2; i < limit; i++ {
		b, ok := w.At(i - 1)
		if !ok {
			break
		}
		avgBody += absf(b.Close - b.Open)
		cnt++
	}
	if cnt > 0 {
		avgBody /= float64(cnt)
	}
	if avgBody <= 0 || body <= avgBody*1.5 {
		return false
	}
	emaVal, ok := emas.At(0)
	if !ok {
		return false
	}
	close := last.Close
	if close > emaVal && (close-last.Low)/rng > 0.7 {
		return true
	}
	if close < emaVal && (last.High-close)/rng > 0.7 {
		return true
	}
	return false
}

func (s *StateTracker) detectFinalFlag(w *bar.Window, emas *EMAHistory, atr float64) bool {
	if s.TightChannelBars < 5 || s.BarsSinceTightChannelEnd < 0 {
		return false
	}
	barsSince := s.BarsSinceTightChannelEnd
	if barsSince < 3 || barsSince > 8 {
		return false
	}
	if atr <= 0 || s.TightChannelDir == "" {
		return false
	}
	last, ok := w.At(0)
	emaVal, ok2 := emas.At(0)
	if !ok || !ok2 {
		return false
	}
	dist := (last.Close - emaVal) / atr
	if s.TightChannelDir == "up" && dist < 0.5 {
		return false
	}
	if s.TightChannelDir == "down" && dist > -0.5 {
		return false
	}
	return true
}

func (s *StateTracker) updateTightChannelTracking(w *bar.Window) {
	last, ok := w.At(0)
	if !ok {
		return
	}
	switch s.TightChannelDir {
	case "up":
		if s.TightChannelExtreme == 0 || last.High > s.TightChannelExtreme {
			s.TightChannelExtreme = last.High
		}
	case "down":
		if s.TightChannelExtreme == 0 || last.Low < s.TightChannelExtreme {
			s.TightChannelExtreme = last.Low
		}
	}
}

// --- AlwaysIn ---

func (s *StateTracker) updateAlwaysIn(w *bar.Window, emas *EMAHistory, atr float64, swings *SwingTracker) {
	n := w.Len()
	if n < 20 || atr <= 0 {
		s.AlwaysIn = AlwaysInNeutral
		return
	}
	last, ok := w.At(0)
	if !ok {
		s.AlwaysIn = AlwaysInNeutral
		return
	}
	body1 := last.Close - last.Open
	rng1 := last.High - last.Low
	closePos := 0.5
	if rng1 > 0 {
		closePos = (last.Close - last.Low) / rng1
	}
	bodyRatio := 0.0
	if rng1 > 0 {
		bodyRatio = absf(body1) / rng1
	}

	// Tier 1: two-bar confirmation.
	if n >= 4 {
		prev, okP := w.At(1)
		e0, okE0 := emas.At(0)
		e1, okE1 := emas.At(1)
		if okP && okE0 && okE1 {
			b2 := prev.Close - prev.Open
			r1, r2 := rng1, prev.High-prev.Low
			bull1 := r1 > 0 && body1/r1 > 0.55
			bear1 := r1 > 0 && body1/r1 < -0.55
			bull2 := r2 > 0 && b2/r2 > 0.55
			bear2 := r2 > 0 && b2/r2 < -0.55
			if bull1 && bull2 && last.Close > e0 && prev.Close > e1 {
				s.AlwaysIn = AlwaysInLong
				return
			}
			if bear1 && bear2 && last.Close < e0 && prev.Close < e1 {
				s.AlwaysIn = AlwaysInShort
				return
			}
		}
	}

	// Tier 2: a single extreme strong-trend bar.
	if n >= 5 && rng1 > atr*1.0 {
		avg3, cnt := 0.0, 0
		for k := 2; k <= 4; k++ {
			b, ok := w.At(k - 1)
			if !ok {
				break
			}
			avg3 += absf(b.Close - b.Open)
			cnt++
		}
		if cnt == 3 {
			avg3 /= 3.0
			bodyLen := absf(body1)
			e0, okE0 := emas.At(0)
			breakEMA := okE0 && ((body1 > 0 && last.Close > e0) || (body1 < 0 && last.Close < e0))
			breakStruct := false
			sh1 := swings.RecentSwingHigh(1, false)
			sl1 := swings.RecentSwingLow(1, false)
			if body1 > 0 && sh1 > 0 && last.Close > sh1 {
				breakStruct = true
			}
			if body1 < 0 && sl1 > 0 && last.Close < sl1 {
				breakStruct = true
			}
			if avg3 > 0 && bodyLen > avg3*2.0 && bodyRatio > 0.6 && (breakEMA || breakStruct) {
				if body1 > 0 && closePos > 0.75 {
					s.AlwaysIn = AlwaysInLong
					return
				}
				if body1 < 0 && closePos < 0.25 {
					s.AlwaysIn = AlwaysInShort
					return
				}
			}
		}
	}

	// Tier 3: direct flip on a single decisive bar.
	if rng1 > atr*1.2 && bodyRatio > 0.65 {
		if body1 > 0 && closePos > 0.75 {
			s.AlwaysIn = AlwaysInLong
			return
		}
		if body1 < 0 && closePos < 0.25 {
			s.AlwaysIn = AlwaysInShort
			return
		}
	}

	// Tier 4: scored fallback over the last few bars.
	bullCnt, bearCnt, overlapPen := 0, 0, 0
	limit := 6
	if n < limit {
		limit = n
	}
	for i := 1; i < limit; i++ {
		age := i - 1
		b, ok := w.At(age)
		if !ok {
			break
		}
		body := b.Close - b.Open
		rng := b.High - b.Low
		if rng <= 0 {
			continue
		}
		br := absf(body) / rng
		hasOv := false
		if i < n-1 {
			if older, ok := w.At(age + 1); ok {
				ovH := minf(b.High, older.High)
				ovL := maxf(b.Low, older.Low)
				if ovH > ovL && (ovH-ovL)/rng > 0.6 {
					hasOv = true
				}
			}
		}
		if body > 0 && br > 0.5 {
			bullCnt++
			if hasOv {
				overlapPen++
			}
		}
		if body < 0 && br > 0.5 {
			bearCnt++
			if hasOv {
				overlapPen++
			}
		}
	}

	hhCnt, hlCnt, lhCnt, llCnt := 0, 0, 0, 0
	sp := swings.Points()
	limit2 := len(sp) - 1
	if limit2 > 4 {
		limit2 = 4
	}
	for i := 1; i < limit2; i++ {
		j := i + 1
		if j >= len(sp) {
			break
		}
		if sp[i].IsHigh && sp[j].IsHigh {
			if sp[i].Price > sp[j].Price {
				hhCnt++
			} else {
				lhCnt++
			}
		}
		if !sp[i].IsHigh && !sp[j].IsHigh {
			if sp[i].Price > sp[j].Price {
				hlCnt++
			} else {
				llCnt++
			}
		}
	}

	aboveEMA := false
	if e0, ok := emas.At(0); ok {
		aboveEMA = last.Close > e0
	}

	bullScore, bearScore := 0.0, 0.0
	cw := 0.4
	if overlapPen >= 2 {
		cw = 0.25
	} else if overlapPen >= 1 {
		cw = 0.35
	}
	if bullCnt >= 3 {
		bullScore += cw
	} else if bullCnt >= 2 {
		bullScore += cw * 0.5
	}
	if bearCnt >= 3 {
		bearScore += cw
	} else if bearCnt >= 2 {
		bearScore += cw * 0.5
	}
	if hhCnt > 0 && hlCnt > 0 {
		bullScore += 0.30
	}
	if lhCnt > 0 && llCnt > 0 {
		bearScore += 0.30
	}
	if aboveEMA {
		bullScore += 0.12
	} else {
		bearScore += 0.12
	}
	if rng1 > 0 && rng1 > atr*1.5 {
		if body1 > 0 {
			if bodyRatio > 0.7 {
				bullScore += 0.35
			} else {
				bullScore += 0.25
			}
		} else {
			if bodyRatio > 0.7 {
				bearScore += 0.35
			} else {
				bearScore += 0.25
			}
		}
	}
	if closePos > 0.8 {
		bullScore += 0.20
	}
	if closePos < 0.2 {
		bearScore += 0.20
	}

	switch {
	case bullScore >= 0.5 && bullScore > bearScore+0.1:
		s.AlwaysIn = AlwaysInLong
	case bearScore >= 0.5 && bearScore > bullScore+0.1:
		s.AlwaysIn = AlwaysInShort
	default:
		s.AlwaysIn = AlwaysInNeutral
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
