package monitoring

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	datafeed "github.com/quantpulse/regimescout/Internal/database"
	"github.com/quantpulse/regimescout/Internal/handlers/risk"
	"github.com/quantpulse/regimescout/Internal/handlers/tolerance"
	"github.com/quantpulse/regimescout/Internal/strategy"
	"github.com/quantpulse/regimescout/Internal/strategy/conditions"
	"github.com/quantpulse/regimescout/Internal/strategy/indicators"
	"github.com/quantpulse/regimescout/Internal/strategy/regime"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

// ============================================================================
// SCHEDULER SECTION
// ============================================================================

const (
	symbolTimeout   = 20 * time.Second
	stopJoinTimeout = 10 * time.Second
	syncEveryTicks  = 10
	newsPollLimit   = 50
	decisionRingMax = 100
	atrPeriod       = 14
	deviationPeriod = 20
)

// MarketData supplies the per-tick snapshot inputs.
type MarketData interface {
	GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error)
	GetSymbolQuote(ctx context.Context, symbol string) (*types.Quote, error)
}

// Broker is the execution collaborator. Optional: a nil broker means
// decisions are logged but nothing is placed.
type Broker interface {
	PlaceOrder(idea *types.TradeIdea) (types.OrderResult, error)
	GetOpenPositions() (map[string][]string, error)
}

// NewsFeed supplies recent market headlines. Optional.
type NewsFeed interface {
	GetNewsHeadlines(ctx context.Context, symbols []string, since time.Time, limit int) ([]datafeed.Headline, error)
}

// HeadlineSink receives polled headlines; the news calendar implements
// it to open blackout windows from breaking news.
type HeadlineSink interface {
	IngestHeadline(headline string, at time.Time) []string
}

// Decision is one routed-and-evaluated symbol outcome, kept in a
// bounded ring for the status API.
type Decision struct {
	Time       time.Time `json:"time"`
	Symbol     string    `json:"symbol"`
	Regime     string    `json:"regime"`
	Confidence float64   `json:"confidence"`
	Strategy   string    `json:"strategy"`
	Passed     bool      `json:"passed"`
	Score      float64   `json:"score"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
}

// Status is a point-in-time scheduler summary served by the API.
type Status struct {
	Running           bool                 `json:"running"`
	Ticks             int64                `json:"ticks"`
	IdeasGenerated    int64                `json:"ideas_generated"`
	OrdersPlaced      int64                `json:"orders_placed"`
	AdmissionDenials  int64                `json:"admission_denials"`
	ConsecutiveErrors int                  `json:"consecutive_errors"`
	TotalErrors       int64                `json:"total_errors"`
	LastTick          time.Time            `json:"last_tick"`
	LastChecked       map[string]time.Time `json:"last_checked"`
	OpenPositions     int                  `json:"open_positions"`
	ConfigReloads     int                  `json:"config_reloads"`
	ConfigRejected    int                  `json:"config_rejected"`
}

// Scheduler drives the scan loop: every tick it rebuilds a snapshot per
// symbol, classifies the regime, routes to a strategy, runs the
// condition layers, gates through tolerance and admission, and places
// the order. Symbols are processed sequentially inside a tick so one
// tick is one consistent pass.
type Scheduler struct {
	cfgStore *config.Store
	data     MarketData
	broker   Broker
	store    *datafeed.Store
	adaptive *tolerance.Adaptive
	risk     *risk.Manager
	log      *logrus.Entry

	// optional headline polling, feeding the news blackout calendar
	newsFeed     NewsFeed
	newsSink     HeadlineSink
	lastNewsPoll time.Time

	runMutex sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}

	decisionMutex sync.RWMutex
	decisions     []Decision

	statsMutex        sync.Mutex
	ticks             int64
	ideasGenerated    int64
	ordersPlaced      int64
	admissionDenials  int64
	totalErrors       int64
	consecutiveErrors int
	lastTick          time.Time
	lastChecked       map[string]time.Time

	cacheMutex   sync.Mutex
	cachedStatus Status
}

func NewScheduler(cfgStore *config.Store, data MarketData, broker Broker, store *datafeed.Store, riskMgr *risk.Manager, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cfgStore: cfgStore,
		data:     data,
		broker:   broker,
		store:    store,
		adaptive: tolerance.NewAdaptive(tolerance.NewCalculator()),
		risk:     riskMgr,
		log:      log.WithField("component", "scheduler"),

		lastChecked: make(map[string]time.Time),
	}
}

// AttachNewsFeed wires an optional headline source into the loop. The
// feed is polled on the position-sync cadence and every classified
// headline opens a blackout window through the sink.
func (s *Scheduler) AttachNewsFeed(feed NewsFeed, sink HeadlineSink) {
	s.newsFeed = feed
	s.newsSink = sink
	s.lastNewsPoll = time.Now()
}

// Start launches the scan loop. Returns an error if already running.
func (s *Scheduler) Start() error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})

	go s.run(s.stopChan, s.doneChan)
	s.log.Info("🚀 Scheduler started")
	return nil
}

// Stop signals the loop and waits up to stopJoinTimeout for it to
// drain the current tick. A symbol stuck past the timeout is abandoned
// and logged rather than blocking shutdown.
func (s *Scheduler) Stop() {
	s.runMutex.Lock()
	if !s.running {
		s.runMutex.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.doneChan
	s.runMutex.Unlock()

	select {
	case <-done:
		s.log.Info("🛑 Scheduler stopped")
	case <-time.After(stopJoinTimeout):
		s.log.Warn("⚠️ Scheduler did not stop within timeout, abandoning worker")
	}
}

func (s *Scheduler) IsRunning() bool {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	return s.running
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	tickNum := 0
	for {
		cfg := s.cfgStore.Get()
		interval := time.Duration(cfg.Scanner.TickIntervalSeconds) * time.Second

		s.tick(cfg, stop)

		tickNum++
		if tickNum%syncEveryTicks == 0 {
			s.syncPositions()
			s.pollNews(cfg)
		}

		s.statsMutex.Lock()
		consecutive := s.consecutiveErrors
		s.statsMutex.Unlock()
		if cfg.Scanner.MaxConsecutiveErrors > 0 && consecutive >= cfg.Scanner.MaxConsecutiveErrors {
			s.log.Errorf("🛑 %d consecutive errors, scheduler stopping itself", consecutive)
			s.runMutex.Lock()
			s.running = false
			s.runMutex.Unlock()
			return
		}

		select {
		case <-stop:
			return
		case <-time.After(interval):
		}
	}
}

// tick runs one full pass over the configured symbols. The cross-asset
// flow hint is sampled once so every symbol in the pass sees the same
// reading.
func (s *Scheduler) tick(cfg *config.Config, stop <-chan struct{}) {
	flowHint := s.crossRefFlow(cfg)

	tickErrors := 0
	for _, symbol := range cfg.Scanner.Symbols {
		select {
		case <-stop:
			return
		default:
		}
		if err := s.scanSymbol(symbol, cfg, flowHint); err != nil {
			tickErrors++
			metricScanErrors.Inc()
			s.log.WithField("symbol", symbol).Warnf("⚠️ Scan failed: %v", err)
		}
		s.statsMutex.Lock()
		s.lastChecked[symbol] = time.Now()
		s.statsMutex.Unlock()
	}

	s.statsMutex.Lock()
	s.ticks++
	s.lastTick = time.Now()
	s.totalErrors += int64(tickErrors)
	if tickErrors == len(cfg.Scanner.Symbols) && len(cfg.Scanner.Symbols) > 0 {
		s.consecutiveErrors++
	} else {
		s.consecutiveErrors = 0
	}
	s.statsMutex.Unlock()
	metricTicks.Inc()
}

// scanSymbol is the full pipeline for one symbol. Panics are contained
// here so one bad symbol cannot take the loop down.
func (s *Scheduler) scanSymbol(symbol string, cfg *config.Config, flowHint float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scanning %s: %v", symbol, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), symbolTimeout)
	defer cancel()

	snap, quote, err := s.buildSnapshot(ctx, symbol, cfg, flowHint)
	if err != nil {
		return err
	}

	detector := regime.NewDetector(cfg.Regimes)
	router := strategy.NewRouter(cfg)

	regimeResult := detector.Classify(snap)
	strategyName, err := router.SelectStrategy(snap, regimeResult)
	if err != nil {
		return err
	}
	checker, err := router.Checker(strategyName)
	if err != nil {
		return err
	}

	result := conditions.Evaluate(checker, snap, quote)
	metricDecisions.WithLabelValues(strategyName, outcomeLabel(result.Passed)).Inc()

	decision := Decision{
		Time:       time.Now(),
		Symbol:     symbol,
		Regime:     string(regimeResult.Regime),
		Confidence: regimeResult.Confidence,
		Strategy:   strategyName,
		Passed:     result.Passed,
		Score:      result.ConfluenceScore,
	}
	if len(result.Reasons) > 0 {
		decision.Reason = result.Reasons[len(result.Reasons)-1]
	}

	if !result.Passed {
		decision.Outcome = "conditions_failed"
		s.recordDecision(decision)
		s.store.LogDecision(ctx, symbol, strategyName, decision.Regime, false, result.ConfluenceScore, decision.Reason)
		return nil
	}

	// Volatility gate: an extreme smoothed deviation reading blocks the
	// symbol outright regardless of how clean the setup looks.
	tolParams := cfg.Tolerance.Params(symbol)
	rawDev := indicators.DeviationSigma(snap.Price, snap.VWAP, snap.Candles, deviationPeriod)
	tol := s.adaptive.FinalTolerance(symbol, snap.Timeframe, snap.ATR, rawDev, math.Abs(snap.FlowHint), tolParams, cfg.Tolerance.SmoothingAlpha)
	if tol.KillSwitch {
		decision.Outcome = "kill_switch"
		decision.Reason = fmt.Sprintf("smoothed deviation %.2fσ above kill-switch threshold", tol.Smoothed)
		s.recordDecision(decision)
		s.risk.RecordEvent(&risk.Event{
			EventType: "KILL_SWITCH",
			Severity:  "CRITICAL",
			Symbol:    symbol,
			Details:   decision.Reason,
		})
		s.store.LogDecision(ctx, symbol, strategyName, decision.Regime, false, result.ConfluenceScore, decision.Reason)
		return nil
	}

	idea := conditions.GenerateTradeIdea(snap, result)
	if idea == nil {
		decision.Outcome = "no_direction"
		decision.Reason = "conditions passed but no directional signal"
		s.recordDecision(decision)
		return nil
	}
	s.statsMutex.Lock()
	s.ideasGenerated++
	s.statsMutex.Unlock()
	metricIdeas.Inc()

	admission := s.risk.Reserve(symbol, cfg)
	if !admission.Valid {
		decision.Outcome = "admission_denied"
		decision.Reason = admission.Code
		s.recordDecision(decision)
		s.statsMutex.Lock()
		s.admissionDenials++
		s.statsMutex.Unlock()
		metricDenials.WithLabelValues(admission.Code).Inc()
		s.store.LogDecision(ctx, symbol, strategyName, decision.Regime, false, result.ConfluenceScore, "admission: "+admission.Code)
		return nil
	}

	// Freshness re-check inside the reservation window: the snapshot
	// quote can be seconds stale by now. A fresh quote re-runs the
	// spread gate and the price must still sit inside the tolerance
	// zone around the idea's entry. A quote outage degrades to the
	// snapshot values, same as the pre-trade layer.
	livePrice := snap.Price
	live, liveErr := s.data.GetSymbolQuote(ctx, symbol)
	if liveErr != nil {
		live = quote
	}
	if live != nil {
		if snap.ATR > 0 && live.Spread > snap.ATR*conditions.MaxSpreadATRRatio {
			s.risk.Release(symbol)
			decision.Outcome = "spread_widened"
			decision.Reason = fmt.Sprintf("spread %.5f exceeds %.2f x ATR at placement", live.Spread, conditions.MaxSpreadATRRatio)
			s.recordDecision(decision)
			s.store.LogDecision(ctx, symbol, strategyName, decision.Regime, false, result.ConfluenceScore, decision.Reason)
			return nil
		}
		livePrice = (live.Bid + live.Ask) / 2
	}
	if dist := math.Abs(livePrice - idea.EntryPrice); dist > tol.Tolerance {
		s.risk.Release(symbol)
		decision.Outcome = "outside_entry_zone"
		decision.Reason = fmt.Sprintf("price %.5f is %.5f from entry %.5f, tolerance %.5f", livePrice, dist, idea.EntryPrice, tol.Tolerance)
		s.recordDecision(decision)
		s.store.LogDecision(ctx, symbol, strategyName, decision.Regime, false, result.ConfluenceScore, decision.Reason)
		return nil
	}

	if s.broker == nil {
		s.risk.Release(symbol)
		decision.Outcome = "dry_run"
		s.recordDecision(decision)
		s.log.WithFields(logrus.Fields{
			"symbol":   symbol,
			"strategy": strategyName,
			"score":    result.ConfluenceScore,
		}).Info("💡 Trade idea (no broker configured)")
		return nil
	}

	orderResult, err := s.broker.PlaceOrder(idea)
	if err != nil || !orderResult.Accepted {
		s.risk.Release(symbol)
		decision.Outcome = "order_rejected"
		decision.Reason = orderResult.Reason
		s.recordDecision(decision)
		s.store.LogTradeExecution(ctx, idea, "", "rejected", decimal.NewFromFloat(snap.Price))
		if err != nil {
			return err
		}
		return nil
	}

	s.risk.Confirm(symbol, orderResult.Handle)
	decision.Outcome = "order_placed"
	s.recordDecision(decision)
	s.statsMutex.Lock()
	s.ordersPlaced++
	s.statsMutex.Unlock()
	metricOrders.Inc()

	s.store.LogTradeExecution(ctx, idea, orderResult.Handle, "placed", decimal.NewFromFloat(snap.Price))
	s.store.LogDecision(ctx, symbol, strategyName, decision.Regime, true, result.ConfluenceScore, "order placed")
	return nil
}

// buildSnapshot fetches fresh candles and derives the per-tick
// indicator values. The quote is best-effort; a quote failure degrades
// to a nil quote rather than failing the scan.
func (s *Scheduler) buildSnapshot(ctx context.Context, symbol string, cfg *config.Config, flowHint float64) (*types.Snapshot, *types.Quote, error) {
	candles, err := s.data.GetRecentCandles(ctx, symbol, cfg.Scanner.Timeframe, cfg.Scanner.CandleLimit)
	if err != nil {
		return nil, nil, err
	}
	if len(candles) == 0 {
		return nil, nil, fmt.Errorf("no candles returned for %s", symbol)
	}

	quote, err := s.data.GetSymbolQuote(ctx, symbol)
	if err != nil {
		quote = nil
	}

	if symbol == cfg.Scanner.CrossRefSymbol {
		flowHint = 0
	}
	snap := &types.Snapshot{
		Symbol:    symbol,
		Timeframe: cfg.Scanner.Timeframe,
		Price:     candles[len(candles)-1].Close,
		Candles:   candles,
		VWAP:      indicators.VWAP(candles),
		ATR:       indicators.ATR(candles, atrPeriod),
		FlowHint:  flowHint,
		TakenAt:   time.Now(),
	}
	return snap, quote, nil
}

// crossRefFlow samples the configured cross-asset reference and returns
// its signed VWAP deviation in sigma units: positive means the
// reference is stretched upward. The sign feeds the confluence flow
// bonus; the magnitude feeds the tolerance cross-reference penalty.
// Returns 0 when no reference is configured or its data is unavailable.
func (s *Scheduler) crossRefFlow(cfg *config.Config) float64 {
	ref := cfg.Scanner.CrossRefSymbol
	if ref == "" {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), symbolTimeout)
	defer cancel()

	candles, err := s.data.GetRecentCandles(ctx, ref, cfg.Scanner.Timeframe, cfg.Scanner.CandleLimit)
	if err != nil || len(candles) == 0 {
		s.log.WithField("symbol", ref).Debugf("Cross-reference unavailable: %v", err)
		return 0
	}

	price := candles[len(candles)-1].Close
	return indicators.DeviationSigma(price, indicators.VWAP(candles), candles, deviationPeriod)
}

// pollNews pulls recent headlines for the scanned symbols and feeds
// them through the blackout calendar. Runs on the position-sync
// cadence; a feed error just leaves the calendar as it was.
func (s *Scheduler) pollNews(cfg *config.Config) {
	if s.newsFeed == nil || s.newsSink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), symbolTimeout)
	defer cancel()

	since := s.lastNewsPoll
	s.lastNewsPoll = time.Now()

	headlines, err := s.newsFeed.GetNewsHeadlines(ctx, cfg.Scanner.Symbols, since, newsPollLimit)
	if err != nil {
		s.log.Warnf("⚠️ News poll failed: %v", err)
		return
	}
	for _, h := range headlines {
		if categories := s.newsSink.IngestHeadline(h.Text, h.At); len(categories) > 0 {
			s.log.WithField("categories", categories).Infof("📰 Blackout headline: %s", h.Text)
		}
	}
}

func (s *Scheduler) syncPositions() {
	if s.broker == nil {
		return
	}
	handles, err := s.broker.GetOpenPositions()
	if err != nil {
		s.log.Warnf("⚠️ Position sync failed: %v", err)
		return
	}
	s.risk.SyncPositions(handles)
	metricOpenPositions.Set(float64(s.risk.CountOpenPositions()))
}

// ============================================================================
// DECISION RING + STATUS SECTION
// ============================================================================

func (s *Scheduler) recordDecision(d Decision) {
	s.decisionMutex.Lock()
	defer s.decisionMutex.Unlock()
	s.decisions = append(s.decisions, d)
	if len(s.decisions) > decisionRingMax {
		s.decisions = s.decisions[len(s.decisions)-decisionRingMax:]
	}
}

// RecentDecisions returns up to limit most recent decisions, newest
// first.
func (s *Scheduler) RecentDecisions(limit int) []Decision {
	s.decisionMutex.RLock()
	defer s.decisionMutex.RUnlock()
	if limit <= 0 || limit > len(s.decisions) {
		limit = len(s.decisions)
	}
	out := make([]Decision, 0, limit)
	for i := len(s.decisions) - 1; i >= len(s.decisions)-limit; i-- {
		out = append(out, s.decisions[i])
	}
	return out
}

// GetStatus returns the current scheduler summary. If the stats mutex
// is contended by a running tick it serves the last cached snapshot
// instead of blocking the API. The cache sits behind its own mutex so
// the fallback read never races a concurrent refresh.
func (s *Scheduler) GetStatus() Status {
	if !s.statsMutex.TryLock() {
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()
		return s.cachedStatus
	}

	reloads, rejected := s.cfgStore.ReloadCounts()
	checked := make(map[string]time.Time, len(s.lastChecked))
	for symbol, at := range s.lastChecked {
		checked[symbol] = at
	}
	status := Status{
		Running:           s.IsRunning(),
		Ticks:             s.ticks,
		IdeasGenerated:    s.ideasGenerated,
		OrdersPlaced:      s.ordersPlaced,
		AdmissionDenials:  s.admissionDenials,
		ConsecutiveErrors: s.consecutiveErrors,
		TotalErrors:       s.totalErrors,
		LastTick:          s.lastTick,
		LastChecked:       checked,
		OpenPositions:     s.risk.CountOpenPositions(),
		ConfigReloads:     reloads,
		ConfigRejected:    rejected,
	}
	s.statsMutex.Unlock()

	s.cacheMutex.Lock()
	s.cachedStatus = status
	s.cacheMutex.Unlock()
	return status
}

func outcomeLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
