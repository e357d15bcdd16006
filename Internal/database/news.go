package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantpulse/regimescout/Internal/utils"
)

// Headline is one market news item from the news API.
type Headline struct {
	Text string
	At   time.Time
}

// GetNewsHeadlines returns headlines published after since for the given
// symbols, newest capped at limit. Fed into the blackout calendar by the
// scheduler's news poll.
func (a *AlpacaData) GetNewsHeadlines(ctx context.Context, symbols []string, since time.Time, limit int) ([]Headline, error) {
	apiURL := fmt.Sprintf(
		"https://data.alpaca.markets/v1beta1/news?symbols=%s&start=%s&limit=%d",
		url.QueryEscape(strings.Join(symbols, ",")),
		url.QueryEscape(since.UTC().Format(time.RFC3339)),
		limit,
	)

	var headlines []Headline
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
			return fmt.Errorf("news API returned status %d", resp.StatusCode)
		}

		var r struct {
			News []struct {
				Headline  string    `json:"headline"`
				CreatedAt time.Time `json:"created_at"`
			} `json:"news"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return err
		}

		headlines = headlines[:0]
		for _, n := range r.News {
			headlines = append(headlines, Headline{Text: n.Headline, At: n.CreatedAt})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headlines, nil
}
