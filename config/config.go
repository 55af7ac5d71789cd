// Package config loads and validates every tunable parameter of the
// trading core: algorithmic thresholds plus the environment-driven
// deployment settings (symbol, Redis URL, per-user credentials, sizing).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// UserCredential is one exchange API key/secret pair, loaded from a
// `USER{i}_API_KEY`/`USER{i}_SECRET` environment pair.
type UserCredential struct {
	Name   string
	APIKey string
	Secret string
}

// StrategyConfig holds every tunable parameter for the detection and
// risk pipeline, plus the deployment settings read from the
// environment.
type StrategyConfig struct {
	// Deployment
	Symbol        string
	KlineInterval string
	RedisURL      string
	Users         []UserCredential
	ObserveMode   bool
	LogDir        string

	// Sizing
	PositionSizePercent      float64
	LargeBalanceThreshold    float64
	LargeBalancePositionPct  float64
	Leverage                 int

	// Indicators
	EMAPeriod int
	ATRPeriod int

	// Signal-bar validation
	MinBodyRatio     float64
	ClosePositionPct float64
	LookbackPeriod   int

	// Market state
	StrongTrendScore float64

	// Cooldown
	SignalCooldown int

	// Spike
	MinSpikeBars   int
	SpikeOverlapMax float64

	// Climax
	SpikeClimaxATRMult  float64
	RequireSecondEntry  bool
	SecondEntryLookback int

	// Risk
	MaxStopATRMult  float64
	TP1ClosePercent float64

	// 20-Gap rule
	Enable20GapRule     bool
	GapBarThreshold     int
	BlockFirstPullback  bool
	ConsolidationBars   int
	ConsolidationRange  float64

	// HTF filter
	EnableHTFFilter bool
	HTFEMAPeriod    int

	// Stop management
	EnableHardStop     bool
	HardStopBufferMult float64
	EnableSoftStop     bool

	// Spread filter
	EnableSpreadFilter bool
	MaxSpreadMult      float64
	SpreadLookback     int

	// Barb wire
	EnableBarbWireFilter bool
	BarbWireMinBars      int
	BarbWireBodyRatio    float64
	BarbWireRangeRatio   float64

	// Measuring gap
	EnableMeasuringGap  bool
	MeasuringGapMinSize float64

	// Breakout mode
	EnableBreakoutMode  bool
	BreakoutModeBars    int
	BreakoutModeATRMult float64

	// ATR-scaled thresholds
	NearTrendlineATRMult float64
	MinBufferATRMult     float64

	// Tight trading range
	TTROverlapThreshold float64
	TTRRangeATRMult     float64

	// Swing / H-L count
	SwingConfirmDepth    int
	HLResetNewExtremeATR float64
	HLMinPullbackATR     float64

	// Breakeven
	BreakevenATRMult float64
	BreakevenPoints  int

	// Soft-stop confirmation
	SoftStopConfirmMode  int
	SoftStopConfirmBars  int

	// Pattern toggles
	EnableSpike        bool
	EnableH2L2         bool
	EnableWedge        bool
	EnableClimax       bool
	EnableMTR          bool
	EnableFailedBO     bool
	EnableDTDB         bool
	EnableTrendBar     bool
	EnableRevBar       bool
	EnableIIPattern    bool
	EnableOutsideBar   bool
	EnableMeasuredMove bool
	EnableTRBreakout   bool
	EnableBOPullback   bool
	EnableGapBar       bool
}

// Default returns the parameter catalogue with every threshold at its
// built-in default.
func Default() StrategyConfig {
	return StrategyConfig{
		Symbol:        "BTCUSDT",
		KlineInterval: "5m",
		LogDir:        "./logs",

		PositionSizePercent:     5,
		LargeBalanceThreshold:   50_000,
		LargeBalancePositionPct: 2,
		Leverage:                5,

		EMAPeriod: 20,
		ATRPeriod: 20,

		MinBodyRatio:     0.50,
		ClosePositionPct: 0.25,
		LookbackPeriod:   20,

		StrongTrendScore: 0.50,

		SignalCooldown: 3,

		MinSpikeBars:    3,
		SpikeOverlapMax: 0.30,

		SpikeClimaxATRMult:  3.0,
		RequireSecondEntry:  true,
		SecondEntryLookback: 10,

		MaxStopATRMult:  3.0,
		TP1ClosePercent: 50.0,

		Enable20GapRule:    true,
		GapBarThreshold:    20,
		BlockFirstPullback: true,
		ConsolidationBars:  5,
		ConsolidationRange: 1.5,

		EnableHTFFilter: true,
		HTFEMAPeriod:    20,

		EnableHardStop:     true,
		HardStopBufferMult: 1.5,
		EnableSoftStop:     true,

		EnableSpreadFilter: true,
		MaxSpreadMult:      2.0,
		SpreadLookback:     20,

		EnableBarbWireFilter: true,
		BarbWireMinBars:      3,
		BarbWireBodyRatio:    0.35,
		BarbWireRangeRatio:   0.5,

		EnableMeasuringGap:  true,
		MeasuringGapMinSize: 0.3,

		EnableBreakoutMode:  true,
		BreakoutModeBars:    5,
		BreakoutModeATRMult: 1.5,

		NearTrendlineATRMult: 0.2,
		MinBufferATRMult:     0.2,

		TTROverlapThreshold: 0.40,
		TTRRangeATRMult:     2.5,

		SwingConfirmDepth:    3,
		HLResetNewExtremeATR: 0.5,
		HLMinPullbackATR:     0.2,

		BreakevenATRMult: 0.1,
		BreakevenPoints:  5,

		SoftStopConfirmMode: 0,
		SoftStopConfirmBars: 2,

		EnableSpike:        true,
		EnableH2L2:         true,
		EnableWedge:        true,
		EnableClimax:       true,
		EnableMTR:          true,
		EnableFailedBO:     true,
		EnableDTDB:         true,
		EnableTrendBar:     true,
		EnableRevBar:       true,
		EnableIIPattern:    true,
		EnableOutsideBar:   true,
		EnableMeasuredMove: true,
		EnableTRBreakout:   true,
		EnableBOPullback:   true,
		EnableGapBar:       true,
	}
}

// LoadFromEnv loads an optional .env file (via godotenv, silently
// ignored if absent) and overrides the deployment-facing fields of a
// default StrategyConfig with whatever is set in the environment.
// Algorithmic thresholds stay at their built-in defaults unless a
// future tuning pass wires them to the environment too.
func LoadFromEnv() (StrategyConfig, error) {
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("KLINE_INTERVAL"); v != "" {
		cfg.KlineInterval = v
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("OBSERVE_MODE"); v != "" {
		cfg.ObserveMode = strings.EqualFold(v, "true") || v == "1"
	}

	if v, err := parseFloatEnv("POSITION_SIZE_PERCENT"); err == nil && v != 0 {
		cfg.PositionSizePercent = v
	} else if err != nil {
		return cfg, err
	}
	if v, err := parseFloatEnv("LARGE_BALANCE_THRESHOLD"); err == nil && v != 0 {
		cfg.LargeBalanceThreshold = v
	} else if err != nil {
		return cfg, err
	}
	if v, err := parseFloatEnv("LARGE_BALANCE_POSITION_PCT"); err == nil && v != 0 {
		cfg.LargeBalancePositionPct = v
	} else if err != nil {
		return cfg, err
	}
	if v := os.Getenv("LEVERAGE"); v != "" {
		iv, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("LEVERAGE: %w", err)
		}
		cfg.Leverage = iv
	}

	cfg.Users = loadUserCredentials()

	return cfg, nil
}

func parseFloatEnv(key string) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// loadUserCredentials scans USER1_API_KEY/USER1_SECRET,
// USER2_API_KEY/USER2_SECRET, ... stopping at the first missing index.
func loadUserCredentials() []UserCredential {
	var out []UserCredential
	for i := 1; ; i++ {
		key := os.Getenv(fmt.Sprintf("USER%d_API_KEY", i))
		secret := os.Getenv(fmt.Sprintf("USER%d_SECRET", i))
		if key == "" || secret == "" {
			break
		}
		out = append(out, UserCredential{
			Name:   fmt.Sprintf("user%d", i),
			APIKey: key,
			Secret: secret,
		})
	}
	return out
}

// Validate reports the first invalid field, enforcing a sensible-bounds
// discipline across every configured threshold.
func (c *StrategyConfig) Validate() error {
	if c.Symbol == "" {
		return errors.New("Symbol must not be empty")
	}
	if c.EMAPeriod <= 0 {
		return errors.New("EMAPeriod must be positive")
	}
	if c.ATRPeriod <= 0 {
		return errors.New("ATRPeriod must be positive")
	}
	if c.MinBodyRatio < 0 || c.MinBodyRatio > 1 {
		return fmt.Errorf("MinBodyRatio (%f) must be within [0,1]", c.MinBodyRatio)
	}
	if c.PositionSizePercent <= 0 || c.PositionSizePercent > 100 {
		return fmt.Errorf("PositionSizePercent (%f) must be >0 and <=100", c.PositionSizePercent)
	}
	if c.LargeBalancePositionPct <= 0 || c.LargeBalancePositionPct > 100 {
		return fmt.Errorf("LargeBalancePositionPct (%f) must be >0 and <=100", c.LargeBalancePositionPct)
	}
	if c.Leverage <= 0 {
		return errors.New("Leverage must be positive")
	}
	if c.MaxStopATRMult <= 0 {
		return errors.New("MaxStopATRMult must be positive")
	}
	if c.TP1ClosePercent <= 0 || c.TP1ClosePercent > 100 {
		return fmt.Errorf("TP1ClosePercent (%f) must be >0 and <=100", c.TP1ClosePercent)
	}
	if c.SoftStopConfirmMode != 0 && c.SoftStopConfirmMode != 2 {
		return fmt.Errorf("SoftStopConfirmMode (%d) must be 0 or 2", c.SoftStopConfirmMode)
	}
	if c.SignalCooldown < 0 {
		return errors.New("SignalCooldown cannot be negative")
	}
	if c.SwingConfirmDepth <= 0 {
		return errors.New("SwingConfirmDepth must be positive")
	}
	return nil
}
