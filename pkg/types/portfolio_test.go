package types

import (
	"math"
	"testing"
)

func TestPositionAverageCost(t *testing.T) {
	long := &Position{Symbol: "AAPL", Quantity: 100, CostBasis: 16000, MarketValue: 15000}
	if got := long.AverageCost(); math.Abs(got-160.0) > 1e-9 {
		t.Errorf("AverageCost = %f, want 160", got)
	}
	if got := long.CurrentPrice(); math.Abs(got-150.0) > 1e-9 {
		t.Errorf("CurrentPrice = %f, want 150", got)
	}
	if !long.IsLong() || long.IsShort() {
		t.Error("expected long position")
	}

	short := &Position{Symbol: "TSLA", Quantity: -50, CostBasis: -10000, MarketValue: 11000}
	if got := short.AverageCost(); math.Abs(got-200.0) > 1e-9 {
		t.Errorf("short AverageCost = %f, want 200", got)
	}
	if got := short.CurrentPrice(); math.Abs(got-220.0) > 1e-9 {
		t.Errorf("short CurrentPrice = %f, want 220", got)
	}
	if !short.IsShort() {
		t.Error("expected short position")
	}
}

func TestSnapshotGetPosition(t *testing.T) {
	snapshot := &PortfolioSnapshot{
		Positions: []Position{
			{Symbol: "AAPL", Quantity: 100},
			{Symbol: "MSFT", Quantity: 50},
		},
	}

	if pos := snapshot.GetPosition("MSFT"); pos == nil || pos.Quantity != 50 {
		t.Errorf("GetPosition(MSFT) = %+v, want quantity 50", pos)
	}
	if pos := snapshot.GetPosition("GOOG"); pos != nil {
		t.Errorf("GetPosition(GOOG) = %+v, want nil", pos)
	}
}

func TestQuoteSpreadAndMid(t *testing.T) {
	q := &Quote{Symbol: "AAPL", Bid: 189.90, Ask: 190.10}
	if got := q.Spread(); math.Abs(got-0.20) > 1e-9 {
		t.Errorf("Spread = %f, want 0.20", got)
	}
	if got := q.MidPrice(); math.Abs(got-190.00) > 1e-9 {
		t.Errorf("MidPrice = %f, want 190.00", got)
	}
}
