package types

import "testing"

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	active := []OrderStatus{OrderStatusNew, OrderStatusPartiallyFilled}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestOrderSideOpposite(t *testing.T) {
	if OrderSideBuy.Opposite() != OrderSideSell {
		t.Error("expected buy opposite to be sell")
	}
	if OrderSideSell.Opposite() != OrderSideBuy {
		t.Error("expected sell opposite to be buy")
	}
}

func TestOrderTypePriceRequirements(t *testing.T) {
	cases := []struct {
		orderType  OrderType
		needsLimit bool
		needsStop  bool
	}{
		{OrderTypeMarket, false, false},
		{OrderTypeLimit, true, false},
		{OrderTypeStop, false, true},
		{OrderTypeStopLimit, true, true},
	}

	for _, tc := range cases {
		if tc.orderType.RequiresLimitPrice() != tc.needsLimit {
			t.Errorf("%s: RequiresLimitPrice = %v, want %v", tc.orderType, !tc.needsLimit, tc.needsLimit)
		}
		if tc.orderType.RequiresStopPrice() != tc.needsStop {
			t.Errorf("%s: RequiresStopPrice = %v, want %v", tc.orderType, !tc.needsStop, tc.needsStop)
		}
	}
}

func TestOrderRemainingQuantity(t *testing.T) {
	order := &Order{Quantity: 100, FilledQuantity: 30}
	if got := order.RemainingQuantity(); got != 70 {
		t.Errorf("RemainingQuantity = %d, want 70", got)
	}

	if !order.FillsConsistent() {
		t.Error("expected fills to be consistent")
	}

	order.FilledQuantity = 120
	if order.FillsConsistent() {
		t.Error("expected overfilled order to be inconsistent")
	}
}
