package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantpulse/regimescout/Internal/utils/config"
)

// Admission denial codes. Distinct codes feed the rejected-by-reason
// counters; kill_switch is issued by the scheduler, not here, but shares
// the namespace.
const (
	DenyRateLimitHour      = "rate_limit_hour"
	DenyRateLimitDay       = "rate_limit_day"
	DenyPositionLimitSym   = "position_limit_symbol"
	DenyPositionLimitTotal = "position_limit_total"
	DenySessionClosed      = "session_closed"
	DenyNewsBlackout       = "news_blackout"
	DenyKillSwitch         = "kill_switch"
)

// SessionInfo is the optional trading-session collaborator.
type SessionInfo interface {
	CurrentSession() string
}

// NewsInfo is the optional news-blackout collaborator.
type NewsInfo interface {
	IsBlackout(category string) bool
}

// AlwaysOpenSession is the null session collaborator: every session is
// allowed.
type AlwaysOpenSession struct{}

func (AlwaysOpenSession) CurrentSession() string { return "" }

// NoNewsBlackout is the null news collaborator: nothing is ever blocked.
type NoNewsBlackout struct{}

func (NoNewsBlackout) IsBlackout(string) bool { return false }

// validation result for admission checks
type ValidationResult struct {
	Valid   bool
	Code    string // first failing denial code, empty when valid
	Errors  []string
	Details map[string]interface{}
}

// represents a significant admission event
type Event struct {
	Timestamp time.Time
	EventType string // "RATE_LIMIT_HIT", "POSITION_LIMIT_HIT", ...
	Severity  string // "CRITICAL", "WARNING", "INFO"
	Symbol    string
	Details   string
}

type AlertCallback func(*Event)

// Admission-gate state shared across scheduler ticks: rolling rate-limit
// windows and the active position set. Each collection sits behind its
// own short-held mutex; no lock is ever held across an I/O call.
type Manager struct {
	sessions SessionInfo
	news     NewsInfo

	// per-symbol execution timestamps, pruned lazily to the 24h horizon
	rateWindows map[string][]time.Time
	rateMutex   sync.Mutex

	// per-symbol outstanding order handles; reservations are pending
	// slots counted against the limits until confirmed or released
	positions    map[string][]string
	reservations map[string]int
	posMutex     sync.Mutex

	events      []*Event
	eventsMutex sync.RWMutex

	alertCallbacks      []AlertCallback
	alertCallbacksMutex sync.RWMutex

	log *logrus.Entry
	now func() time.Time
}

// creates a new admission manager; nil collaborators degrade to the null
// always-allow implementations
func NewManager(sessions SessionInfo, news NewsInfo, log *logrus.Logger) *Manager {
	if sessions == nil {
		sessions = AlwaysOpenSession{}
	}
	if news == nil {
		news = NoNewsBlackout{}
	}
	return &Manager{
		sessions:     sessions,
		news:         news,
		rateWindows:  make(map[string][]time.Time),
		positions:    make(map[string][]string),
		reservations: make(map[string]int),
		events:       make([]*Event, 0),
		log:          log.WithField("component", "admission"),
		now:          time.Now,
	}
}

// ============================================================================
// ADMISSION GATES
// ============================================================================

// CanExecute runs every admission gate for a symbol: session allow-list,
// news blackout, rolling rate limits, and position limits. Advisory; the
// race-free re-check happens in Reserve.
func (m *Manager) CanExecute(symbol string, cfg *config.Config) ValidationResult {
	result := ValidationResult{
		Valid:   true,
		Errors:  []string{},
		Details: map[string]interface{}{},
	}

	m.checkSession(cfg, &result)
	m.checkNews(cfg, &result)
	m.checkRateLimits(symbol, cfg, &result)
	m.checkPositionLimits(symbol, cfg, &result)

	return result
}

func (m *Manager) checkSession(cfg *config.Config, result *ValidationResult) {
	allowed := cfg.Sessions.Allowed
	if len(allowed) == 0 {
		return
	}
	current := m.sessions.CurrentSession()
	result.Details["session"] = current
	for _, s := range allowed {
		if s == current {
			return
		}
	}
	result.fail(DenySessionClosed, fmt.Sprintf("session %q not in allow-list", current))
}

func (m *Manager) checkNews(cfg *config.Config, result *ValidationResult) {
	for _, category := range cfg.Sessions.NewsCategories {
		if m.news.IsBlackout(category) {
			result.fail(DenyNewsBlackout, fmt.Sprintf("news blackout active for %q", category))
			return
		}
	}
}

func (m *Manager) checkRateLimits(symbol string, cfg *config.Config, result *ValidationResult) {
	m.rateMutex.Lock()
	hourCount, dayCount := m.pruneAndCount(symbol)
	m.rateMutex.Unlock()

	result.Details["tradesLastHour"] = hourCount
	result.Details["tradesLastDay"] = dayCount

	if hourCount >= cfg.Limits.MaxTradesPerHour {
		result.fail(DenyRateLimitHour, fmt.Sprintf(
			"%d/%d trades in rolling hour", hourCount, cfg.Limits.MaxTradesPerHour))
	}
	if dayCount >= cfg.Limits.MaxTradesPerDay {
		result.fail(DenyRateLimitDay, fmt.Sprintf(
			"%d/%d trades in rolling day", dayCount, cfg.Limits.MaxTradesPerDay))
	}
}

func (m *Manager) checkPositionLimits(symbol string, cfg *config.Config, result *ValidationResult) {
	m.posMutex.Lock()
	symCount := len(m.positions[symbol]) + m.reservations[symbol]
	total := m.totalPositionsLocked()
	m.posMutex.Unlock()

	result.Details["openPositions"] = symCount
	result.Details["totalPositions"] = total

	if symCount >= cfg.Limits.MaxPositionsPerSymbol {
		result.fail(DenyPositionLimitSym, fmt.Sprintf(
			"%d/%d positions open for symbol", symCount, cfg.Limits.MaxPositionsPerSymbol))
	}
	if total >= cfg.Limits.MaxTotalPositions {
		result.fail(DenyPositionLimitTotal, fmt.Sprintf(
			"%d/%d total positions open", total, cfg.Limits.MaxTotalPositions))
	}
}

// must be called with rateMutex held
func (m *Manager) pruneAndCount(symbol string) (hourCount, dayCount int) {
	now := m.now()
	dayHorizon := now.Add(-24 * time.Hour)
	hourHorizon := now.Add(-time.Hour)

	window := m.rateWindows[symbol]
	kept := window[:0]
	for _, ts := range window {
		if ts.Before(dayHorizon) {
			continue
		}
		kept = append(kept, ts)
		if !ts.Before(hourHorizon) {
			hourCount++
		}
	}
	m.rateWindows[symbol] = kept
	return hourCount, len(kept)
}

// must be called with posMutex held
func (m *Manager) totalPositionsLocked() int {
	total := 0
	for _, handles := range m.positions {
		total += len(handles)
	}
	for _, pending := range m.reservations {
		total += pending
	}
	return total
}

// ============================================================================
// RESERVATION PROTOCOL
// ============================================================================

// Reserve runs every admission gate and, when they all hold, takes a
// pending slot. Session and news are checked first since they are
// lock-free; position and rate limits are re-checked atomically so the
// window between signal evaluation and dispatch closes. The actual
// order placement happens outside the lock, then Confirm or Release
// settles the slot.
func (m *Manager) Reserve(symbol string, cfg *config.Config) ValidationResult {
	result := ValidationResult{
		Valid:   true,
		Errors:  []string{},
		Details: map[string]interface{}{},
	}

	m.checkSession(cfg, &result)
	if !result.Valid {
		return result
	}
	m.checkNews(cfg, &result)
	if !result.Valid {
		return result
	}

	m.rateMutex.Lock()
	hourCount, dayCount := m.pruneAndCount(symbol)
	if hourCount >= cfg.Limits.MaxTradesPerHour {
		result.fail(DenyRateLimitHour, fmt.Sprintf(
			"%d/%d trades in rolling hour", hourCount, cfg.Limits.MaxTradesPerHour))
	}
	if dayCount >= cfg.Limits.MaxTradesPerDay {
		result.fail(DenyRateLimitDay, fmt.Sprintf(
			"%d/%d trades in rolling day", dayCount, cfg.Limits.MaxTradesPerDay))
	}
	m.rateMutex.Unlock()
	if !result.Valid {
		return result
	}

	m.posMutex.Lock()
	defer m.posMutex.Unlock()

	symCount := len(m.positions[symbol]) + m.reservations[symbol]
	if symCount >= cfg.Limits.MaxPositionsPerSymbol {
		result.fail(DenyPositionLimitSym, fmt.Sprintf(
			"%d/%d positions open for symbol", symCount, cfg.Limits.MaxPositionsPerSymbol))
		return result
	}
	if total := m.totalPositionsLocked(); total >= cfg.Limits.MaxTotalPositions {
		result.fail(DenyPositionLimitTotal, fmt.Sprintf(
			"%d/%d total positions open", total, cfg.Limits.MaxTotalPositions))
		return result
	}

	m.reservations[symbol]++
	return result
}

// Confirm settles a reservation into a real position handle and records
// the execution in the rate window.
func (m *Manager) Confirm(symbol, handle string) {
	m.posMutex.Lock()
	if m.reservations[symbol] > 0 {
		m.reservations[symbol]--
	}
	m.positions[symbol] = append(m.positions[symbol], handle)
	m.posMutex.Unlock()

	m.rateMutex.Lock()
	m.rateWindows[symbol] = append(m.rateWindows[symbol], m.now())
	m.rateMutex.Unlock()
}

// Release drops a reservation after a failed or rejected placement.
func (m *Manager) Release(symbol string) {
	m.posMutex.Lock()
	defer m.posMutex.Unlock()
	if m.reservations[symbol] > 0 {
		m.reservations[symbol]--
	}
}

// ============================================================================
// POSITION TRACKING
// ============================================================================

// SyncPositions replaces the active position set from the execution
// collaborator's view, the periodic liveness sweep.
func (m *Manager) SyncPositions(handles map[string][]string) {
	m.posMutex.Lock()
	defer m.posMutex.Unlock()

	m.positions = make(map[string][]string, len(handles))
	for symbol, hs := range handles {
		m.positions[symbol] = append([]string(nil), hs...)
	}
}

// ActivePositions returns a copy of the current position set.
func (m *Manager) ActivePositions() map[string][]string {
	m.posMutex.Lock()
	defer m.posMutex.Unlock()

	out := make(map[string][]string, len(m.positions))
	for symbol, hs := range m.positions {
		out[symbol] = append([]string(nil), hs...)
	}
	return out
}

// CountOpenPositions returns the total confirmed positions.
func (m *Manager) CountOpenPositions() int {
	m.posMutex.Lock()
	defer m.posMutex.Unlock()

	total := 0
	for _, hs := range m.positions {
		total += len(hs)
	}
	return total
}

// ============================================================================
// EVENTS & ALERTS
// ============================================================================

func (m *Manager) RecordEvent(event *Event) {
	m.eventsMutex.Lock()
	m.events = append(m.events, event)
	m.eventsMutex.Unlock()

	m.log.Warnf("🚨 Admission event: [%s] %s - %s", event.Severity, event.EventType, event.Details)

	m.alertCallbacksMutex.RLock()
	callbacks := m.alertCallbacks
	m.alertCallbacksMutex.RUnlock()

	for _, callback := range callbacks {
		go callback(event) // Non-blocking
	}
}

func (m *Manager) GetEvents(limit int) []*Event {
	m.eventsMutex.RLock()
	defer m.eventsMutex.RUnlock()

	events := m.events
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]*Event(nil), events...)
}

func (m *Manager) RegisterAlertCallback(callback AlertCallback) {
	m.alertCallbacksMutex.Lock()
	defer m.alertCallbacksMutex.Unlock()
	m.alertCallbacks = append(m.alertCallbacks, callback)
}

func (r *ValidationResult) fail(code, msg string) {
	r.Valid = false
	if r.Code == "" {
		r.Code = code
	}
	r.Errors = append(r.Errors, msg)
}
