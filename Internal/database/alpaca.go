package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils"
)

// symbols served by the crypto bars endpoint instead of the stock one
var cryptoSymbols = map[string]bool{
	"BTCUSD": true,
	"ETHUSD": true,
	"SOLUSD": true,
}

// AlpacaData fetches candles and quotes from the Alpaca data API.
type AlpacaData struct {
	apiKey    string
	secretKey string
	client    *http.Client
	log       *logrus.Entry
}

func NewAlpacaData(log *logrus.Logger) *AlpacaData {
	return &AlpacaData{
		apiKey:    os.Getenv("ALPACA_API_KEY"),
		secretKey: os.Getenv("ALPACA_API_SECRET"),
		client:    apiHTTPClient(),
		log:       log.WithField("component", "datafeed"),
	}
}

// GetRecentCandles returns up to limit candles for the symbol, oldest
// first. The caller bounds the call with ctx; a timeout surfaces as an
// error the scheduler treats as no-data for the tick.
func (a *AlpacaData) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	start := time.Now().UTC().Add(-timeframeDuration(timeframe) * time.Duration(limit+2)).Format(time.RFC3339)

	var apiURL string
	if cryptoSymbols[symbol] {
		apiURL = fmt.Sprintf(
			"https://data.alpaca.markets/v1beta3/crypto/us/bars?symbols=%s&timeframe=%s&limit=%d&start=%s",
			url.QueryEscape(symbol), timeframe, limit, start,
		)
	} else {
		apiURL = fmt.Sprintf(
			"https://data.alpaca.markets/v2/stocks/%s/bars?timeframe=%s&limit=%d&start=%s",
			symbol, timeframe, limit, start,
		)
	}

	var candles []types.Candle
	err := utils.RetryWithBackoff(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("APCA-API-KEY-ID", a.apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", a.secretKey)

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("bars API returned status %d for %s", resp.StatusCode, symbol)
		}

		if cryptoSymbols[symbol] {
			var r struct {
				Bars map[string][]types.Candle `json:"bars"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
				return err
			}
			for _, slice := range r.Bars {
				candles = slice
				break
			}
		} else {
			var r struct {
				Bars []types.Candle `json:"bars"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
				return err
			}
			candles = r.Bars
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("no candle data for %s", symbol)
	}
	return candles, nil
}

// GetSymbolQuote returns the latest bid/ask for a symbol.
func (a *AlpacaData) GetSymbolQuote(ctx context.Context, symbol string) (*types.Quote, error) {
	apiURL := fmt.Sprintf("https://data.alpaca.markets/v2/stocks/%s/quotes/latest", symbol)
	if cryptoSymbols[symbol] {
		apiURL = fmt.Sprintf(
			"https://data.alpaca.markets/v1beta3/crypto/us/latest/quotes?symbols=%s",
			url.QueryEscape(symbol),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.secretKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d for %s", resp.StatusCode, symbol)
	}

	type rawQuote struct {
		Bid float64 `json:"bp"`
		Ask float64 `json:"ap"`
	}

	var bid, ask float64
	if cryptoSymbols[symbol] {
		var r struct {
			Quotes map[string]rawQuote `json:"quotes"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return nil, err
		}
		q, ok := r.Quotes[symbol]
		if !ok {
			return nil, fmt.Errorf("no quote data for %s", symbol)
		}
		bid, ask = q.Bid, q.Ask
	} else {
		var r struct {
			Quote rawQuote `json:"quote"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return nil, err
		}
		bid, ask = r.Quote.Bid, r.Quote.Ask
	}

	if bid <= 0 || ask <= 0 {
		return nil, fmt.Errorf("empty quote for %s", symbol)
	}
	return &types.Quote{Bid: bid, Ask: ask, Spread: ask - bid}, nil
}

func timeframeDuration(tf string) time.Duration {
	switch tf {
	case "1Min":
		return time.Minute
	case "3Min":
		return 3 * time.Minute
	case "5Min":
		return 5 * time.Minute
	case "10Min":
		return 10 * time.Minute
	case "15Min":
		return 15 * time.Minute
	case "30Min":
		return 30 * time.Minute
	case "1Hour":
		return time.Hour
	case "4Hour":
		return 4 * time.Hour
	case "1Day":
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
