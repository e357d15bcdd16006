package datafeed

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantpulse/regimescout/Internal/types"
)

// AlpacaBroker places bracket orders and reports open positions through
// the Alpaca trading API. Ideas carry their own uuid which doubles as
// the client order id so a retried placement can never fill twice.
type AlpacaBroker struct {
	client *alpaca.Client
	log    *logrus.Entry
}

func NewAlpacaBroker(log *logrus.Logger) *AlpacaBroker {
	baseURL := os.Getenv("ALPACA_BASE_URL")
	if baseURL == "" {
		baseURL = "https://paper-api.alpaca.markets"
	}
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     os.Getenv("ALPACA_API_KEY"),
		APISecret:  os.Getenv("ALPACA_API_SECRET"),
		BaseURL:    baseURL,
		HTTPClient: apiHTTPClient(),
	})
	return &AlpacaBroker{
		client: client,
		log:    log.WithField("component", "broker"),
	}
}

// Trading API calls carry no context, so the client itself bounds them.
const apiRequestTimeout = 15 * time.Second

func apiHTTPClient() *http.Client {
	return &http.Client{Timeout: apiRequestTimeout}
}

// PlaceOrder submits a market bracket order for the idea. The returned
// handle is the broker-side order id, used afterwards to confirm the
// admission reservation.
func (b *AlpacaBroker) PlaceOrder(idea *types.TradeIdea) (types.OrderResult, error) {
	if idea == nil {
		return types.OrderResult{Accepted: false, Reason: "nil trade idea"}, fmt.Errorf("nil trade idea")
	}

	side := alpaca.Buy
	if idea.Direction == types.DirectionShort {
		side = alpaca.Sell
	}

	qty := decimal.NewFromFloat(idea.Volume)
	takeProfit := decimal.NewFromFloat(idea.TakeProfit)
	stopLoss := decimal.NewFromFloat(idea.StopLoss)

	req := alpaca.PlaceOrderRequest{
		Symbol:        toAlpacaSymbol(idea.Symbol),
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		OrderClass:    alpaca.Bracket,
		ClientOrderID: idea.ID,
		TakeProfit:    &alpaca.TakeProfit{LimitPrice: &takeProfit},
		StopLoss:      &alpaca.StopLoss{StopPrice: &stopLoss},
	}

	order, err := b.client.PlaceOrder(req)
	if err != nil {
		b.log.WithFields(logrus.Fields{
			"symbol": idea.Symbol,
			"side":   side,
		}).Warnf("⚠️ Order rejected: %v", err)
		return types.OrderResult{Accepted: false, Reason: err.Error()}, err
	}

	b.log.WithFields(logrus.Fields{
		"symbol":   idea.Symbol,
		"side":     side,
		"order_id": order.ID,
		"strategy": idea.StrategyName,
	}).Info("✅ Bracket order placed")

	return types.OrderResult{Accepted: true, Handle: order.ID}, nil
}

// GetOpenPositions returns currently open position handles keyed by the
// scanner's symbol form. Used by the admission layer to reconcile its
// tracked set against broker reality.
func (b *AlpacaBroker) GetOpenPositions() (map[string][]string, error) {
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}

	open := make(map[string][]string, len(positions))
	for _, p := range positions {
		sym := fromAlpacaSymbol(p.Symbol)
		open[sym] = append(open[sym], p.AssetID)
	}
	return open, nil
}

// toAlpacaSymbol maps scanner symbols to the broker's form. Crypto
// pairs need a slash on the trading API.
func toAlpacaSymbol(symbol string) string {
	if cryptoSymbols[symbol] && strings.HasSuffix(symbol, "USD") {
		return strings.TrimSuffix(symbol, "USD") + "/USD"
	}
	return symbol
}

func fromAlpacaSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
