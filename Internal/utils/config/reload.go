package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FieldError records one rejected field during a reload. The prior value
// for that field stays in effect; the rest of the reload still applies.
type FieldError struct {
	Field  string
	Reason string
}

func (fe FieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Reason)
}

// Store holds the active configuration and reload bookkeeping. Readers get
// a stable pointer per tick; the watcher swaps the pointer, never mutates
// the published value.
type Store struct {
	mu       sync.RWMutex
	active   *Config
	path     string
	lastMod  time.Time
	reloads  int
	rejected int
	log      *logrus.Entry
}

func NewStore(path string, initial *Config, log *logrus.Logger) *Store {
	return &Store{
		active: initial,
		path:   path,
		log:    log.WithField("component", "config"),
	}
}

// Get returns the currently active configuration.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ReloadCounts returns (applied reloads, individually rejected fields).
func (s *Store) ReloadCounts() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reloads, s.rejected
}

// Watch polls the config file at the store's reload interval and applies
// changes between ticks. Blocks until done is closed.
func (s *Store) Watch(done <-chan struct{}) {
	for {
		interval := time.Duration(s.Get().Scanner.ReloadIntervalSecs) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		select {
		case <-done:
			return
		case <-time.After(interval):
			s.pollOnce()
		}
	}
}

func (s *Store) pollOnce() {
	info, err := os.Stat(s.path)
	if err != nil {
		// missing file is not an error, defaults stay active
		return
	}

	s.mu.RLock()
	lastMod := s.lastMod
	s.mu.RUnlock()
	if !info.ModTime().After(lastMod) {
		return
	}

	candidate, err := LoadFile(s.path)
	if err != nil {
		s.log.Warnf("⚠️  Config reload failed, keeping previous: %v", err)
		return
	}

	s.mu.Lock()
	merged, rejected := Merge(s.active, candidate)
	s.active = merged
	s.lastMod = info.ModTime()
	s.reloads++
	s.rejected += len(rejected)
	s.mu.Unlock()

	for _, fe := range rejected {
		s.log.Warnf("⚠️  Config field rejected, prior value retained: %v", fe)
	}
	s.log.Infof("🔄 Config reloaded from %s (%d fields rejected)", s.path, len(rejected))
}

// Merge validates the candidate field by field against the previous
// config. Every invalid field is reported and replaced with its prior
// value; valid fields apply.
func Merge(prev, candidate *Config) (*Config, []FieldError) {
	next := *candidate
	var rejected []FieldError

	reject := func(field, reason string) {
		rejected = append(rejected, FieldError{Field: field, Reason: reason})
	}

	if len(next.Scanner.Symbols) == 0 {
		next.Scanner.Symbols = prev.Scanner.Symbols
		reject("scanner.symbols", "symbol list must not be empty")
	}
	if next.Scanner.Timeframe == "" {
		next.Scanner.Timeframe = prev.Scanner.Timeframe
		reject("scanner.timeframe", "timeframe must not be empty")
	}
	if next.Scanner.TickIntervalSeconds < 1 || next.Scanner.TickIntervalSeconds > 300 {
		next.Scanner.TickIntervalSeconds = prev.Scanner.TickIntervalSeconds
		reject("scanner.tick_interval_seconds", "must be within 1-300")
	}
	if next.Scanner.CandleLimit < 20 {
		next.Scanner.CandleLimit = prev.Scanner.CandleLimit
		reject("scanner.candle_limit", "need at least 20 candles")
	}
	if next.Scanner.MaxConsecutiveErrors < 1 {
		next.Scanner.MaxConsecutiveErrors = prev.Scanner.MaxConsecutiveErrors
		reject("scanner.max_consecutive_errors", "must be positive")
	}
	if next.Scanner.ReloadIntervalSecs < 1 {
		next.Scanner.ReloadIntervalSecs = prev.Scanner.ReloadIntervalSecs
		reject("scanner.reload_interval_seconds", "must be positive")
	}

	if next.Limits.MaxTradesPerHour < 1 {
		next.Limits.MaxTradesPerHour = prev.Limits.MaxTradesPerHour
		reject("limits.max_trades_per_hour", "must be positive")
	}
	if next.Limits.MaxTradesPerDay < next.Limits.MaxTradesPerHour {
		next.Limits.MaxTradesPerDay = prev.Limits.MaxTradesPerDay
		reject("limits.max_trades_per_day", "must be >= hourly limit")
	}
	if next.Limits.MaxPositionsPerSymbol < 1 {
		next.Limits.MaxPositionsPerSymbol = prev.Limits.MaxPositionsPerSymbol
		reject("limits.max_positions_per_symbol", "must be positive")
	}
	if next.Limits.MaxTotalPositions < next.Limits.MaxPositionsPerSymbol {
		next.Limits.MaxTotalPositions = prev.Limits.MaxTotalPositions
		reject("limits.max_total_positions", "must be >= per-symbol limit")
	}

	for name, rc := range next.Regimes {
		if rc.DetectionThreshold < 0 || rc.DetectionThreshold > 100 ||
			rc.RoutingThreshold < 0 || rc.RoutingThreshold > 100 {
			if prevRC, ok := prev.Regimes[name]; ok {
				next.Regimes[name] = prevRC
			} else {
				delete(next.Regimes, name)
			}
			reject("regimes."+name, "thresholds must be within 0-100")
		}
	}

	for name, sc := range next.Strategies {
		if sc.MinScoreForTrade <= 0 || sc.MinScoreForAPlus < sc.MinScoreForTrade {
			if prevSC, ok := prev.Strategies[name]; ok {
				next.Strategies[name] = prevSC
			} else {
				delete(next.Strategies, name)
			}
			reject("strategies."+name, "min_score_for_aplus must be >= min_score_for_trade > 0")
			continue
		}
		for weight, v := range sc.ConfluenceWeights {
			if v < 0 {
				if prevSC, ok := prev.Strategies[name]; ok {
					next.Strategies[name] = prevSC
				}
				reject("strategies."+name+".confluence_weights."+weight, "weights must be non-negative")
				break
			}
		}
	}

	if next.Tolerance.SmoothingAlpha <= 0 || next.Tolerance.SmoothingAlpha > 1 {
		next.Tolerance.SmoothingAlpha = prev.Tolerance.SmoothingAlpha
		reject("tolerance.smoothing_alpha", "must be within (0,1]")
	}
	if !validToleranceParams(next.Tolerance.Defaults) {
		next.Tolerance.Defaults = prev.Tolerance.Defaults
		reject("tolerance.defaults", "multipliers and bounds must be positive")
	}
	for symbol, p := range next.Tolerance.Symbols {
		// overrides may be partial; only outright negative values are invalid
		if p.ATRMultiplier < 0 || p.MinTolerance < 0 || p.MaxTolerance < 0 ||
			p.KillSwitchThreshold < 0 || p.ATRRescaleMult < 0 || p.ATRRescaleCap < 0 {
			if prevP, ok := prev.Tolerance.Symbols[symbol]; ok {
				next.Tolerance.Symbols[symbol] = prevP
			} else {
				delete(next.Tolerance.Symbols, symbol)
			}
			reject("tolerance.symbols."+symbol, "values must be non-negative")
		}
	}

	return &next, rejected
}

func validToleranceParams(p ToleranceParams) bool {
	return p.ATRMultiplier > 0 && p.MinTolerance > 0 && p.MaxTolerance > p.MinTolerance &&
		p.KillSwitchThreshold > 0 && p.ATRRescaleMult > 0 && p.ATRRescaleCap > 0
}
