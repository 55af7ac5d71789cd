package risk

import (
	"testing"

	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

func TestDefaultSizePolicyRoundsToStep(t *testing.T) {
	p := DefaultSizePolicy{StepSize: 0.01, MinQty: 0.05, MinNotional: 10}
	qty := p.Size(10_000, 1, 10, 100) // buyingPower=1000, qty=10
	if qty != 10 {
		t.Fatalf("expected qty 10, got %v", qty)
	}
}

func TestDefaultSizePolicyZeroOnBadInput(t *testing.T) {
	p := DefaultSizePolicy{StepSize: 0.01, MinQty: 0.05}
	if qty := p.Size(0, 1, 10, 100); qty != 0 {
		t.Fatalf("expected 0 for zero balance, got %v", qty)
	}
}

func TestUnifiedStopLossStrongTrendUsesTwoBarExtreme(t *testing.T) {
	swings := market.NewSwingTracker()
	sl := UnifiedStopLoss(types.Buy, 2.0, 100, market.StateStrongTrend, swings, 98, 95, 97, 96, 0)
	if sl <= 0 || sl >= 95 {
		t.Fatalf("expected stop below the two-bar low with buffer, got %v", sl)
	}
}

func TestUnifiedStopLossRejectsOversizedDistance(t *testing.T) {
	swings := market.NewSwingTracker()
	sl := UnifiedStopLoss(types.Buy, 1.0, 100, market.StateStrongTrend, swings, 50, 50, 0, 0, 0)
	if sl != 0 {
		t.Fatalf("expected rejection (0) for a stop far beyond the ATR cap, got %v", sl)
	}
}

func TestCheckSoftStopModeZeroTriggersOnSingleClose(t *testing.T) {
	if !CheckSoftStop(types.Buy, 100, 99, SoftStopConfirmClose, nil) {
		t.Fatalf("expected a close below stop to trigger mode-0 soft stop")
	}
}

func TestCheckSoftStopModeTwoNeedsConsecutiveCloses(t *testing.T) {
	if CheckSoftStop(types.Sell, 100, 101, 2, []float64{99, 101}) {
		t.Fatalf("expected a single confirming close out of two to not trigger")
	}
	if !CheckSoftStop(types.Sell, 100, 101, 2, []float64{101, 101}) {
		t.Fatalf("expected two consecutive confirming closes to trigger")
	}
}

func TestCalculateTakeProfitsSpikeBuy(t *testing.T) {
	plan := CalculateTakeProfits(100, 98, types.Buy, 0, "Spike_Buy", RRRatio{1.0, 2.0}, market.StateChannel, nil)
	if plan.TP1 != 102 {
		t.Fatalf("expected TP1 at 1R above entry (102), got %v", plan.TP1)
	}
}
