package bybit

import (
	"testing"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/execution-engine/pkg/types"
)

func TestMapOrderStatus(t *testing.T) {
	cases := map[string]types.OrderStatus{
		"New":                     types.OrderStatusNew,
		"Untriggered":             types.OrderStatusNew,
		"PartiallyFilled":         types.OrderStatusPartiallyFilled,
		"Filled":                  types.OrderStatusFilled,
		"Cancelled":               types.OrderStatusCancelled,
		"PartiallyFilledCanceled": types.OrderStatusCancelled,
		"Rejected":                types.OrderStatusRejected,
		"Deactivated":             types.OrderStatusExpired,
		"SomethingNew":            types.OrderStatusNew,
	}

	for apiStatus, want := range cases {
		assert.Equal(t, want, mapOrderStatus(apiStatus), "status %s", apiStatus)
	}
}

func TestMapOrderTypeRoundTrip(t *testing.T) {
	assert.Equal(t, "Market", mapOrderType(types.OrderTypeMarket))
	assert.Equal(t, "Limit", mapOrderType(types.OrderTypeLimit))
	assert.Equal(t, "Market", mapOrderType(types.OrderTypeStop))
	assert.Equal(t, "Limit", mapOrderType(types.OrderTypeStopLimit))

	assert.Equal(t, types.OrderTypeStopLimit, mapAPIOrderType("Limit", "Stop"))
	assert.Equal(t, types.OrderTypeStop, mapAPIOrderType("Market", "Stop"))
	assert.Equal(t, types.OrderTypeLimit, mapAPIOrderType("Limit", ""))
	assert.Equal(t, types.OrderTypeMarket, mapAPIOrderType("Market", "UNKNOWN"))
}

func TestParseOrderList(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"list": []map[string]interface{}{
				{
					"orderId":     "1234",
					"symbol":      "BTCUSDT",
					"side":        "Buy",
					"orderType":   "Limit",
					"qty":         "2",
					"price":       "50000.5",
					"cumExecQty":  "1",
					"avgPrice":    "50000.5",
					"timeInForce": "GTC",
					"orderStatus": "PartiallyFilled",
					"createdTime": "1700000000000",
					"updatedTime": "1700000060000",
				},
			},
		},
	}

	orders, err := parseOrderList(resp)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, "1234", o.OrderID)
	assert.Equal(t, types.OrderSideBuy, o.Side)
	assert.Equal(t, types.OrderTypeLimit, o.OrderType)
	assert.Equal(t, 2, o.Quantity)
	assert.Equal(t, 1, o.FilledQuantity)
	assert.Equal(t, 50000.5, o.LimitPrice)
	assert.Equal(t, types.OrderStatusPartiallyFilled, o.Status)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestParseOrderListAPIError(t *testing.T) {
	resp := &bybit_api.ServerResponse{RetCode: 10001, RetMsg: "params error"}

	_, err := parseOrderList(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params error")
}

func TestParseAccountInfo(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"list": []map[string]interface{}{
				{
					"totalEquity":           "125000.25",
					"totalAvailableBalance": "90000.00",
					"totalPerpUPL":          "-1500.75",
				},
			},
		},
	}

	account, err := parseAccountInfo(resp)
	require.NoError(t, err)
	assert.Equal(t, 125000.25, account.PortfolioValue)
	assert.Equal(t, 90000.00, account.BuyingPower)
	assert.Equal(t, -1500.75, account.DayPnL)
	assert.False(t, account.TradingBlocked)
}

func TestParsePositionsSkipsFlat(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"list": []map[string]interface{}{
				{"symbol": "BTCUSDT", "side": "Buy", "size": "2", "positionValue": "100000", "avgPrice": "48000", "unrealisedPnl": "4000"},
				{"symbol": "ETHUSDT", "side": "Sell", "size": "3", "positionValue": "9000", "avgPrice": "3100", "unrealisedPnl": "300"},
				{"symbol": "XRPUSDT", "side": "None", "size": "0"},
			},
		},
	}

	positions, err := parsePositions(resp)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, 2, positions[0].Quantity)
	assert.Equal(t, -3, positions[1].Quantity)
	assert.Equal(t, -3*3100.0, positions[1].CostBasis)
}

func TestGatewayName(t *testing.T) {
	assert.Equal(t, "bybit", NewGateway(Config{}).GetName())
	assert.Equal(t, "bybit-testnet", NewGateway(Config{Testnet: true}).GetName())
	assert.Equal(t, "bybit-demo", NewGateway(Config{Demo: true, Testnet: true}).GetName())
}
