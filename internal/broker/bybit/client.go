package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantfold/execution-engine/internal/broker"
	"github.com/quantfold/execution-engine/pkg/types"
)

// Gateway adapts the Bybit v5 API to the broker.Gateway and
// broker.MarketData interfaces. Crypto markets trade around the clock, so
// IsMarketOpen always reports true.
type Gateway struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	demo       bool
}

// Config holds the configuration for the Bybit gateway
type Config struct {
	APIKey    string
	APISecret string
	Category  string // spot, linear, inverse (default: linear)
	Testnet   bool
	Demo      bool // demo trading environment
}

// NewGateway creates a new Bybit-backed gateway
func NewGateway(config Config) *Gateway {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	category := config.Category
	if category == "" {
		category = "linear"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Gateway{
		httpClient: httpClient,
		category:   category,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

// GetName returns the gateway identifier including environment
func (g *Gateway) GetName() string {
	if g.demo {
		return "bybit-demo"
	}
	if g.testnet {
		return "bybit-testnet"
	}
	return "bybit"
}

// SubmitOrder places an order and returns the acknowledged broker order
func (g *Gateway) SubmitOrder(ctx context.Context, params broker.SubmitParams) (*types.Order, error) {
	apiParams := map[string]interface{}{
		"category":  g.category,
		"symbol":    params.Symbol,
		"side":      mapSide(params.Side),
		"orderType": mapOrderType(params.OrderType),
		"qty":       strconv.Itoa(params.Quantity),
	}

	if params.OrderType.RequiresLimitPrice() {
		apiParams["price"] = formatPrice(params.LimitPrice)
	}
	if params.OrderType.RequiresStopPrice() {
		// Bybit models stop orders as conditional orders with a trigger price
		apiParams["triggerPrice"] = formatPrice(params.StopPrice)
		apiParams["triggerDirection"] = triggerDirection(params.Side)
	}
	if tif := mapTimeInForce(params.TimeInForce); tif != "" {
		apiParams["timeInForce"] = tif
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	ack, err := parseOrderAck(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	// The placement ack only carries the order ID; fetch the full order
	// so the engine tracks broker-reported status from the start.
	order, err := g.GetOrder(ctx, ack)
	if err != nil {
		now := time.Now().UTC()
		return &types.Order{
			OrderID:     ack,
			Symbol:      params.Symbol,
			Side:        params.Side,
			OrderType:   params.OrderType,
			Quantity:    params.Quantity,
			LimitPrice:  params.LimitPrice,
			StopPrice:   params.StopPrice,
			TimeInForce: params.TimeInForce,
			Status:      types.OrderStatusNew,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	}
	return order, nil
}

// CancelOrder cancels an existing order
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	params := map[string]interface{}{
		"category": g.category,
		"orderId":  orderID,
	}

	_, err := g.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	return nil
}

// GetOrder retrieves a single order by ID, checking open orders first and
// falling back to order history for terminal orders
func (g *Gateway) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	params := map[string]interface{}{
		"category": g.category,
		"orderId":  orderID,
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err == nil {
		if orders, perr := parseOrderList(result); perr == nil {
			for i := range orders {
				if orders[i].OrderID == orderID {
					return &orders[i], nil
				}
			}
		}
	}

	result, err = g.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	orders, err := parseOrderList(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	for i := range orders {
		if orders[i].OrderID == orderID {
			return &orders[i], nil
		}
	}

	return nil, broker.ErrOrderNotFound
}

// GetPositions retrieves all open positions
func (g *Gateway) GetPositions(ctx context.Context) ([]types.Position, error) {
	params := map[string]interface{}{
		"category":   g.category,
		"settleCoin": "USDT",
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	return parsePositions(result)
}

// GetAccountInfo retrieves unified account equity and available balance
func (g *Gateway) GetAccountInfo(ctx context.Context) (*types.AccountInfo, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account balance: %w", err)
	}

	return parseAccountInfo(result)
}

// IsMarketOpen reports true; crypto derivatives trade continuously
func (g *Gateway) IsMarketOpen(_ context.Context) (bool, error) {
	return true, nil
}

// GetQuote retrieves the best bid/ask and 24h volume for a symbol
func (g *Gateway) GetQuote(ctx context.Context, symbol string) (*types.Quote, error) {
	params := map[string]interface{}{
		"category": g.category,
		"symbol":   symbol,
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}

	return parseQuote(result, symbol)
}

// Enum mapping between engine types and Bybit API values

func mapSide(side types.OrderSide) string {
	if side == types.OrderSideBuy {
		return "Buy"
	}
	return "Sell"
}

func mapOrderType(orderType types.OrderType) string {
	switch orderType {
	case types.OrderTypeLimit, types.OrderTypeStopLimit:
		return "Limit"
	default:
		return "Market"
	}
}

func mapTimeInForce(tif types.TimeInForce) string {
	switch tif {
	case types.TimeInForceIOC:
		return "IOC"
	case types.TimeInForceFOK:
		return "FOK"
	case types.TimeInForceGTC, types.TimeInForceDay:
		// Bybit has no session-scoped orders; day maps to GTC
		return "GTC"
	default:
		return ""
	}
}

func triggerDirection(side types.OrderSide) int {
	// Stop-buy triggers on rising price, stop-sell on falling price
	if side == types.OrderSideBuy {
		return 1
	}
	return 2
}

func mapOrderStatus(status string) types.OrderStatus {
	switch status {
	case "New", "Created", "Untriggered", "Triggered":
		return types.OrderStatusNew
	case "PartiallyFilled":
		return types.OrderStatusPartiallyFilled
	case "Filled":
		return types.OrderStatusFilled
	case "Cancelled", "PartiallyFilledCanceled":
		return types.OrderStatusCancelled
	case "Rejected":
		return types.OrderStatusRejected
	case "Deactivated", "Expired":
		return types.OrderStatusExpired
	default:
		return types.OrderStatusNew
	}
}

func mapAPISide(side string) types.OrderSide {
	if side == "Sell" {
		return types.OrderSideSell
	}
	return types.OrderSideBuy
}

func mapAPIOrderType(orderType, stopOrderType string) types.OrderType {
	limit := orderType == "Limit"
	stop := stopOrderType != "" && stopOrderType != "UNKNOWN"
	switch {
	case stop && limit:
		return types.OrderTypeStopLimit
	case stop:
		return types.OrderTypeStop
	case limit:
		return types.OrderTypeLimit
	default:
		return types.OrderTypeMarket
	}
}

// Response parsing

type apiOrder struct {
	OrderID       string `json:"orderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	OrderType     string `json:"orderType"`
	StopOrderType string `json:"stopOrderType"`
	Qty           string `json:"qty"`
	Price         string `json:"price"`
	TriggerPrice  string `json:"triggerPrice"`
	TimeInForce   string `json:"timeInForce"`
	OrderStatus   string `json:"orderStatus"`
	CumExecQty    string `json:"cumExecQty"`
	CumExecFee    string `json:"cumExecFee"`
	AvgPrice      string `json:"avgPrice"`
	CreatedTime   string `json:"createdTime"`
	UpdatedTime   string `json:"updatedTime"`
}

func unwrapResult(response interface{}) (json.RawMessage, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return resultBytes, nil
}

func parseOrderAck(response interface{}) (string, error) {
	resultBytes, err := unwrapResult(response)
	if err != nil {
		return "", err
	}

	var ack struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resultBytes, &ack); err != nil {
		return "", fmt.Errorf("failed to unmarshal order ack: %w", err)
	}
	if ack.OrderID == "" {
		return "", fmt.Errorf("order ack missing orderId")
	}
	return ack.OrderID, nil
}

func parseOrderList(response interface{}) ([]types.Order, error) {
	resultBytes, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var listResult struct {
		List []apiOrder `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &listResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order list: %w", err)
	}

	orders := make([]types.Order, 0, len(listResult.List))
	for _, o := range listResult.List {
		orders = append(orders, types.Order{
			OrderID:        o.OrderID,
			Symbol:         o.Symbol,
			Side:           mapAPISide(o.Side),
			OrderType:      mapAPIOrderType(o.OrderType, o.StopOrderType),
			Quantity:       int(math.Round(parseFloat(o.Qty))),
			FilledQuantity: int(math.Round(parseFloat(o.CumExecQty))),
			Fees:           parseFloat(o.CumExecFee),
			AvgFillPrice:   parseFloat(o.AvgPrice),
			LimitPrice:     parseFloat(o.Price),
			StopPrice:      parseFloat(o.TriggerPrice),
			TimeInForce:    mapAPITimeInForce(o.TimeInForce),
			Status:         mapOrderStatus(o.OrderStatus),
			CreatedAt:      parseTimestamp(o.CreatedTime),
			UpdatedAt:      parseTimestamp(o.UpdatedTime),
		})
	}
	return orders, nil
}

func mapAPITimeInForce(tif string) types.TimeInForce {
	switch tif {
	case "IOC":
		return types.TimeInForceIOC
	case "FOK":
		return types.TimeInForceFOK
	default:
		return types.TimeInForceGTC
	}
}

func parsePositions(response interface{}) ([]types.Position, error) {
	resultBytes, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var listResult struct {
		List []struct {
			Symbol         string `json:"symbol"`
			Side           string `json:"side"`
			Size           string `json:"size"`
			PositionValue  string `json:"positionValue"`
			AvgPrice       string `json:"avgPrice"`
			UnrealisedPnl  string `json:"unrealisedPnl"`
			CurRealisedPnl string `json:"curRealisedPnl"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &listResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position list: %w", err)
	}

	positions := make([]types.Position, 0, len(listResult.List))
	for _, p := range listResult.List {
		size := parseFloat(p.Size)
		if size == 0 {
			continue
		}

		quantity := int(math.Round(size))
		if p.Side == "Sell" {
			quantity = -quantity
		}

		positions = append(positions, types.Position{
			Symbol:        p.Symbol,
			Quantity:      quantity,
			MarketValue:   parseFloat(p.PositionValue),
			CostBasis:     float64(quantity) * parseFloat(p.AvgPrice),
			UnrealizedPnL: parseFloat(p.UnrealisedPnl),
			DayPnL:        parseFloat(p.CurRealisedPnl),
		})
	}
	return positions, nil
}

func parseAccountInfo(response interface{}) (*types.AccountInfo, error) {
	resultBytes, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var walletResult struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			TotalPerpUPL          string `json:"totalPerpUPL"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &walletResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet result: %w", err)
	}
	if len(walletResult.List) == 0 {
		return nil, fmt.Errorf("no wallet data found")
	}

	wallet := walletResult.List[0]
	return &types.AccountInfo{
		BuyingPower:    parseFloat(wallet.TotalAvailableBalance),
		PortfolioValue: parseFloat(wallet.TotalEquity),
		DayPnL:         parseFloat(wallet.TotalPerpUPL),
		TradingBlocked: false,
	}, nil
}

func parseQuote(response interface{}, symbol string) (*types.Quote, error) {
	resultBytes, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
			Volume24h string `json:"volume24h"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return nil, fmt.Errorf("no ticker data found for %s", symbol)
	}

	ticker := tickerResult.List[0]
	return &types.Quote{
		Symbol:        symbol,
		Bid:           parseFloat(ticker.Bid1Price),
		Ask:           parseFloat(ticker.Ask1Price),
		AverageVolume: parseFloat(ticker.Volume24h),
		Timestamp:     time.Now().UTC(),
	}, nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseTimestamp(ms string) time.Time {
	if ms == "" {
		return time.Time{}
	}
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
