package monitoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	datafeed "github.com/quantpulse/regimescout/Internal/database"
	"github.com/quantpulse/regimescout/Internal/handlers/risk"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

type fakeData struct {
	candles  []types.Candle
	quote    *types.Quote
	quoteSeq []*types.Quote // when set, served in order before falling back to quote
	err      error
}

func (f *fakeData) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeData) GetSymbolQuote(ctx context.Context, symbol string) (*types.Quote, error) {
	if len(f.quoteSeq) > 0 {
		q := f.quoteSeq[0]
		f.quoteSeq = f.quoteSeq[1:]
		return q, nil
	}
	if f.quote == nil {
		return nil, errors.New("no quote")
	}
	return f.quote, nil
}

type fakeBroker struct {
	placed  []*types.TradeIdea
	result  types.OrderResult
	err     error
	openPos map[string][]string
}

func (f *fakeBroker) PlaceOrder(idea *types.TradeIdea) (types.OrderResult, error) {
	f.placed = append(f.placed, idea)
	return f.result, f.err
}

func (f *fakeBroker) GetOpenPositions() (map[string][]string, error) {
	return f.openPos, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func flatCandles(n int, price, height float64) []types.Candle {
	candles := make([]types.Candle, n)
	for i := range candles {
		candles[i] = types.Candle{
			Timestamp: time.Now(),
			Open:      price,
			High:      price + height/2,
			Low:       price - height/2,
			Close:     price,
			Volume:    100,
		}
	}
	return candles
}

func newTestScheduler(data MarketData, broker Broker) *Scheduler {
	return newTestSchedulerWithRisk(data, broker, risk.NewManager(nil, nil, quietLogger()))
}

func newTestSchedulerWithRisk(data MarketData, broker Broker, riskMgr *risk.Manager) *Scheduler {
	log := quietLogger()
	cfg := config.DefaultConfig()
	store := config.NewStore("config.yaml", cfg, log)
	return NewScheduler(store, data, broker, nil, riskMgr, log)
}

type stubSession struct{ name string }

func (s stubSession) CurrentSession() string { return s.name }

type stubNews struct{ blackout bool }

func (s stubNews) IsBlackout(string) bool { return s.blackout }

// reversionTape builds a window that clears the whole vwap_reversion
// pipeline: a quiet base with one swing high and one swing low, then a
// final candle that closes above the swing high on a volume spike with
// a deep lower wick. Price ends about 3.2 sigma above VWAP.
func reversionTape() []types.Candle {
	candles := flatCandles(60, 100, 1.2)
	candles[20].Low = 97.0
	candles[30].High = 100.9
	last := &candles[59]
	last.Open = 100.45
	last.High = 101.1
	last.Low = 99.4
	last.Close = 101.0
	last.Volume = 300
	return candles
}

// passingConfig scans one symbol without tolerance overrides and lifts
// the kill switch out of the way of the tape's 3.2 sigma stretch.
func passingConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scanner.Symbols = []string{"USDJPY"}
	cfg.Tolerance.Defaults.KillSwitchThreshold = 5.0
	return cfg
}

func atEntryQuote() *types.Quote {
	return &types.Quote{Bid: 100.95, Ask: 101.05, Spread: 0.1}
}

func TestScanSymbolRecordsFailedDecision(t *testing.T) {
	// flat tape: no swing structure, so the fallback checker's location
	// layer fails and no idea is generated
	data := &fakeData{candles: flatCandles(60, 100, 2.0)}
	broker := &fakeBroker{}
	s := newTestScheduler(data, broker)

	if err := s.scanSymbol("EURUSD", config.DefaultConfig(), 0); err != nil {
		t.Fatalf("scanSymbol() error: %v", err)
	}

	decisions := s.RecentDecisions(10)
	if len(decisions) != 1 {
		t.Fatalf("RecentDecisions() = %d entries, want 1", len(decisions))
	}
	d := decisions[0]
	if d.Passed {
		t.Error("decision.Passed = true on flat tape, want false")
	}
	if d.Outcome != "conditions_failed" {
		t.Errorf("decision.Outcome = %q, want conditions_failed", d.Outcome)
	}
	if d.Strategy != "edge_based" {
		t.Errorf("decision.Strategy = %q, want edge_based fallback", d.Strategy)
	}
	if len(broker.placed) != 0 {
		t.Errorf("broker received %d orders, want 0", len(broker.placed))
	}
}

func TestScanSymbolDataErrorPropagates(t *testing.T) {
	data := &fakeData{err: errors.New("feed down")}
	s := newTestScheduler(data, nil)

	if err := s.scanSymbol("EURUSD", config.DefaultConfig(), 0); err == nil {
		t.Error("scanSymbol() error = nil, want feed error")
	}
}

func TestTickCountsConsecutiveErrors(t *testing.T) {
	data := &fakeData{err: errors.New("feed down")}
	s := newTestScheduler(data, nil)
	cfg := config.DefaultConfig()

	stop := make(chan struct{})
	s.tick(cfg, stop)
	s.tick(cfg, stop)

	status := s.GetStatus()
	if status.ConsecutiveErrors != 2 {
		t.Errorf("ConsecutiveErrors = %d, want 2", status.ConsecutiveErrors)
	}
	if status.Ticks != 2 {
		t.Errorf("Ticks = %d, want 2", status.Ticks)
	}

	// one clean tick resets the streak
	data.err = nil
	data.candles = flatCandles(60, 100, 2.0)
	s.tick(cfg, stop)
	if got := s.GetStatus().ConsecutiveErrors; got != 0 {
		t.Errorf("ConsecutiveErrors after clean tick = %d, want 0", got)
	}
}

func TestStartTwiceFails(t *testing.T) {
	data := &fakeData{candles: flatCandles(60, 100, 2.0)}
	s := newTestScheduler(data, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second Start() error = nil, want already-running error")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	data := &fakeData{candles: flatCandles(60, 100, 2.0)}
	s := newTestScheduler(data, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	s.Stop()
	s.Stop() // second stop must not panic or block

	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
}

func TestDecisionRingBounded(t *testing.T) {
	s := newTestScheduler(&fakeData{}, nil)

	for i := 0; i < decisionRingMax+25; i++ {
		s.recordDecision(Decision{Symbol: fmt.Sprintf("SYM%d", i)})
	}

	all := s.RecentDecisions(0)
	if len(all) != decisionRingMax {
		t.Errorf("ring holds %d decisions, want %d", len(all), decisionRingMax)
	}
	// newest first
	if all[0].Symbol != fmt.Sprintf("SYM%d", decisionRingMax+24) {
		t.Errorf("newest decision = %s, want SYM%d", all[0].Symbol, decisionRingMax+24)
	}
}

func TestSyncPositionsUpdatesRiskManager(t *testing.T) {
	broker := &fakeBroker{openPos: map[string][]string{"XAUUSD": {"h1", "h2"}}}
	s := newTestScheduler(&fakeData{}, broker)

	s.syncPositions()

	if got := s.risk.CountOpenPositions(); got != 2 {
		t.Errorf("CountOpenPositions() after sync = %d, want 2", got)
	}
}

func TestScanSymbolPlacesOrderOnPassingTape(t *testing.T) {
	data := &fakeData{candles: reversionTape(), quote: atEntryQuote()}
	broker := &fakeBroker{result: types.OrderResult{Accepted: true, Handle: "h1"}}
	s := newTestScheduler(data, broker)

	if err := s.scanSymbol("USDJPY", passingConfig(), 0); err != nil {
		t.Fatalf("scanSymbol() error: %v", err)
	}

	if len(broker.placed) != 1 {
		t.Fatalf("broker received %d orders, want 1", len(broker.placed))
	}
	idea := broker.placed[0]
	if idea.Direction != types.DirectionLong {
		t.Errorf("idea.Direction = %q, want LONG", idea.Direction)
	}
	if idea.Volume != 1.5 {
		t.Errorf("idea.Volume = %v, want 1.5 for an A+ setup", idea.Volume)
	}

	d := s.RecentDecisions(1)[0]
	if d.Outcome != "order_placed" {
		t.Errorf("decision.Outcome = %q, want order_placed", d.Outcome)
	}
	if d.Score != 8.0 {
		t.Errorf("decision.Score = %v, want 8.0", d.Score)
	}
	if got := s.risk.CountOpenPositions(); got != 1 {
		t.Errorf("CountOpenPositions() = %d, want 1 confirmed position", got)
	}
}

func TestScanSymbolDeniesWhenSessionClosed(t *testing.T) {
	data := &fakeData{candles: reversionTape(), quote: atEntryQuote()}
	broker := &fakeBroker{result: types.OrderResult{Accepted: true, Handle: "h1"}}
	riskMgr := risk.NewManager(stubSession{name: "asia"}, nil, quietLogger())
	s := newTestSchedulerWithRisk(data, broker, riskMgr)

	cfg := passingConfig()
	cfg.Sessions.Allowed = []string{"london"}

	if err := s.scanSymbol("USDJPY", cfg, 0); err != nil {
		t.Fatalf("scanSymbol() error: %v", err)
	}

	if len(broker.placed) != 0 {
		t.Fatalf("broker received %d orders during closed session, want 0", len(broker.placed))
	}
	d := s.RecentDecisions(1)[0]
	if d.Outcome != "admission_denied" {
		t.Errorf("decision.Outcome = %q, want admission_denied", d.Outcome)
	}
	if d.Reason != risk.DenySessionClosed {
		t.Errorf("decision.Reason = %q, want %q", d.Reason, risk.DenySessionClosed)
	}
}

func TestScanSymbolDeniesDuringNewsBlackout(t *testing.T) {
	data := &fakeData{candles: reversionTape(), quote: atEntryQuote()}
	broker := &fakeBroker{result: types.OrderResult{Accepted: true, Handle: "h1"}}
	riskMgr := risk.NewManager(nil, stubNews{blackout: true}, quietLogger())
	s := newTestSchedulerWithRisk(data, broker, riskMgr)

	cfg := passingConfig()
	cfg.Sessions.NewsCategories = []string{"rate_decision"}

	if err := s.scanSymbol("USDJPY", cfg, 0); err != nil {
		t.Fatalf("scanSymbol() error: %v", err)
	}

	if len(broker.placed) != 0 {
		t.Fatalf("broker received %d orders during news blackout, want 0", len(broker.placed))
	}
	d := s.RecentDecisions(1)[0]
	if d.Outcome != "admission_denied" || d.Reason != risk.DenyNewsBlackout {
		t.Errorf("decision = %q/%q, want admission_denied/%q", d.Outcome, d.Reason, risk.DenyNewsBlackout)
	}
}

func TestScanSymbolRejectsOutsideEntryZone(t *testing.T) {
	t.Run("price moved beyond tolerance", func(t *testing.T) {
		// snapshot quote sits at entry, the pre-dispatch re-fetch has
		// drifted 1.2 points while the final tolerance is ~0.93
		data := &fakeData{
			candles:  reversionTape(),
			quoteSeq: []*types.Quote{atEntryQuote(), {Bid: 102.15, Ask: 102.25, Spread: 0.1}},
		}
		broker := &fakeBroker{result: types.OrderResult{Accepted: true, Handle: "h1"}}
		s := newTestScheduler(data, broker)

		if err := s.scanSymbol("USDJPY", passingConfig(), 0); err != nil {
			t.Fatalf("scanSymbol() error: %v", err)
		}

		if len(broker.placed) != 0 {
			t.Fatalf("broker received %d orders outside the entry zone, want 0", len(broker.placed))
		}
		d := s.RecentDecisions(1)[0]
		if d.Outcome != "outside_entry_zone" {
			t.Errorf("decision.Outcome = %q, want outside_entry_zone", d.Outcome)
		}
		if got := s.risk.CountOpenPositions(); got != 0 {
			t.Errorf("CountOpenPositions() = %d, want 0 after release", got)
		}
	})

	t.Run("narrow tolerance blocks a nearby price", func(t *testing.T) {
		// a 0.001 tolerance ceiling makes even a 0.05 offset inadmissible
		data := &fakeData{
			candles: reversionTape(),
			quote:   &types.Quote{Bid: 101.0, Ask: 101.1, Spread: 0.1},
		}
		broker := &fakeBroker{result: types.OrderResult{Accepted: true, Handle: "h1"}}
		s := newTestScheduler(data, broker)

		cfg := passingConfig()
		cfg.Tolerance.Defaults.MaxTolerance = 0.001

		if err := s.scanSymbol("USDJPY", cfg, 0); err != nil {
			t.Fatalf("scanSymbol() error: %v", err)
		}

		if len(broker.placed) != 0 {
			t.Fatalf("broker received %d orders against a 0.001 tolerance, want 0", len(broker.placed))
		}
		if d := s.RecentDecisions(1)[0]; d.Outcome != "outside_entry_zone" {
			t.Errorf("decision.Outcome = %q, want outside_entry_zone", d.Outcome)
		}
	})
}

func TestScanSymbolRejectsWidenedSpread(t *testing.T) {
	// spread fine at snapshot time, blown out by placement time
	data := &fakeData{
		candles:  reversionTape(),
		quoteSeq: []*types.Quote{atEntryQuote(), {Bid: 100.5, Ask: 101.5, Spread: 1.0}},
	}
	broker := &fakeBroker{result: types.OrderResult{Accepted: true, Handle: "h1"}}
	s := newTestScheduler(data, broker)

	if err := s.scanSymbol("USDJPY", passingConfig(), 0); err != nil {
		t.Fatalf("scanSymbol() error: %v", err)
	}

	if len(broker.placed) != 0 {
		t.Fatalf("broker received %d orders on a widened spread, want 0", len(broker.placed))
	}
	d := s.RecentDecisions(1)[0]
	if d.Outcome != "spread_widened" {
		t.Errorf("decision.Outcome = %q, want spread_widened", d.Outcome)
	}
	if got := s.risk.CountOpenPositions(); got != 0 {
		t.Errorf("CountOpenPositions() = %d, want 0 after release", got)
	}
}

func TestTickAppliesCrossRefFlow(t *testing.T) {
	// the reference tape is stretched 3.2 sigma above its VWAP, so the
	// hint is positive and aligns with the long trigger: the flow
	// weight (1.0) lifts the confluence score from 8.0 to 9.0
	data := &fakeData{candles: reversionTape(), quote: atEntryQuote()}
	broker := &fakeBroker{result: types.OrderResult{Accepted: true, Handle: "h1"}}
	s := newTestScheduler(data, broker)

	cfg := passingConfig()
	cfg.Scanner.CrossRefSymbol = "REF"

	s.tick(cfg, make(chan struct{}))

	d := s.RecentDecisions(1)[0]
	if d.Outcome != "order_placed" {
		t.Fatalf("decision.Outcome = %q, want order_placed", d.Outcome)
	}
	if d.Score != 9.0 {
		t.Errorf("decision.Score = %v, want 9.0 with the flow alignment bonus", d.Score)
	}
}

func TestCrossRefFlowSignAndAbsence(t *testing.T) {
	data := &fakeData{candles: reversionTape()}
	s := newTestScheduler(data, nil)

	cfg := passingConfig()
	if got := s.crossRefFlow(cfg); got != 0 {
		t.Errorf("crossRefFlow() = %v with no reference configured, want 0", got)
	}

	cfg.Scanner.CrossRefSymbol = "REF"
	got := s.crossRefFlow(cfg)
	if got <= 3.0 || got >= 3.5 {
		t.Errorf("crossRefFlow() = %v, want ~3.22 (signed, stretched upward)", got)
	}

	data.err = errors.New("feed down")
	if got := s.crossRefFlow(cfg); got != 0 {
		t.Errorf("crossRefFlow() = %v on feed error, want 0", got)
	}
}

func TestStatusTracksLastChecked(t *testing.T) {
	data := &fakeData{candles: flatCandles(60, 100, 2.0)}
	s := newTestScheduler(data, nil)
	cfg := config.DefaultConfig()
	cfg.Scanner.Symbols = []string{"EURUSD", "XAUUSD"}

	s.tick(cfg, make(chan struct{}))

	status := s.GetStatus()
	for _, symbol := range cfg.Scanner.Symbols {
		if status.LastChecked[symbol].IsZero() {
			t.Errorf("LastChecked[%s] is zero after a tick", symbol)
		}
	}
}

func TestScanSymbolEmptyCandlesIsDataError(t *testing.T) {
	s := newTestScheduler(&fakeData{candles: nil}, nil)
	if err := s.scanSymbol("EURUSD", config.DefaultConfig(), 0); err == nil {
		t.Error("scanSymbol() error = nil on empty candle slice, want data error")
	}
}

func TestGetStatusServesCacheUnderContention(t *testing.T) {
	data := &fakeData{candles: flatCandles(60, 100, 2.0)}
	s := newTestScheduler(data, nil)
	s.tick(config.DefaultConfig(), make(chan struct{}))

	fresh := s.GetStatus() // populates the cache

	s.statsMutex.Lock()
	cached := s.GetStatus()
	s.statsMutex.Unlock()

	if cached.Ticks != fresh.Ticks {
		t.Errorf("cached Ticks = %d, want %d", cached.Ticks, fresh.Ticks)
	}
}

type fakeNewsFeed struct {
	headlines []datafeed.Headline
	err       error
}

func (f *fakeNewsFeed) GetNewsHeadlines(ctx context.Context, symbols []string, since time.Time, limit int) ([]datafeed.Headline, error) {
	return f.headlines, f.err
}

type recordingSink struct {
	got []string
}

func (r *recordingSink) IngestHeadline(headline string, at time.Time) []string {
	r.got = append(r.got, headline)
	return []string{"rate_decision"}
}

func TestPollNewsFeedsSink(t *testing.T) {
	s := newTestScheduler(&fakeData{}, nil)
	feed := &fakeNewsFeed{headlines: []datafeed.Headline{
		{Text: "FOMC surprises with rate cut", At: time.Now()},
		{Text: "quiet session ahead", At: time.Now()},
	}}
	sink := &recordingSink{}
	s.AttachNewsFeed(feed, sink)

	s.pollNews(config.DefaultConfig())

	if len(sink.got) != 2 {
		t.Fatalf("sink received %d headlines, want 2", len(sink.got))
	}
	if sink.got[0] != "FOMC surprises with rate cut" {
		t.Errorf("sink.got[0] = %q", sink.got[0])
	}

	// sink without a feed attached must be a no-op
	s2 := newTestScheduler(&fakeData{}, nil)
	s2.pollNews(config.DefaultConfig()) // must not panic
}
