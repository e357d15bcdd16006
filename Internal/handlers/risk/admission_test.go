package risk

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantpulse/regimescout/Internal/utils/config"
)

type stubSession struct{ session string }

func (s stubSession) CurrentSession() string { return s.session }

type stubNews struct{ blocked map[string]bool }

func (s stubNews) IsBlackout(category string) bool { return s.blocked[category] }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestManager() *Manager {
	return NewManager(nil, nil, testLogger())
}

func TestCanExecuteAllGatesOpen(t *testing.T) {
	m := newTestManager()
	cfg := config.DefaultConfig()

	result := m.CanExecute("EURUSD", cfg)
	if !result.Valid {
		t.Errorf("CanExecute() = invalid (%s), want valid: %v", result.Code, result.Errors)
	}
}

func TestSessionGate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sessions.Allowed = []string{"london", "newyork"}

	tests := []struct {
		name     string
		session  string
		wantCode string
	}{
		{name: "allowed session passes", session: "london"},
		{name: "disallowed session denied", session: "asia", wantCode: DenySessionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(stubSession{tt.session}, nil, testLogger())
			result := m.CanExecute("EURUSD", cfg)
			if tt.wantCode == "" {
				if !result.Valid {
					t.Errorf("CanExecute() = invalid (%s), want valid", result.Code)
				}
				return
			}
			if result.Valid || result.Code != tt.wantCode {
				t.Errorf("CanExecute() code = %q valid=%v, want %q", result.Code, result.Valid, tt.wantCode)
			}
		})
	}
}

func TestNewsBlackoutGate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sessions.NewsCategories = []string{"rate_decision", "employment"}

	news := stubNews{blocked: map[string]bool{"employment": true}}
	m := NewManager(nil, news, testLogger())

	result := m.CanExecute("EURUSD", cfg)
	if result.Valid || result.Code != DenyNewsBlackout {
		t.Errorf("CanExecute() code = %q valid=%v, want %q", result.Code, result.Valid, DenyNewsBlackout)
	}
}

func TestRollingHourRateLimit(t *testing.T) {
	m := newTestManager()
	cfg := config.DefaultConfig()
	cfg.Limits.MaxTradesPerHour = 2
	cfg.Limits.MaxTradesPerDay = 100
	cfg.Limits.MaxPositionsPerSymbol = 100
	cfg.Limits.MaxTotalPositions = 100

	now := time.Now()
	m.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		res := m.Reserve("EURUSD", cfg)
		if !res.Valid {
			t.Fatalf("Reserve() #%d = invalid (%s), want valid", i, res.Code)
		}
		m.Confirm("EURUSD", fmt.Sprintf("order-%d", i))
	}

	res := m.Reserve("EURUSD", cfg)
	if res.Valid || res.Code != DenyRateLimitHour {
		t.Errorf("Reserve() at hourly cap: code = %q valid=%v, want %q", res.Code, res.Valid, DenyRateLimitHour)
	}

	// once the oldest execution ages past the rolling hour the slot opens
	now = now.Add(61 * time.Minute)
	res = m.Reserve("EURUSD", cfg)
	if !res.Valid {
		t.Errorf("Reserve() after window aged out = invalid (%s), want valid", res.Code)
	}
}

func TestRollingDayRateLimit(t *testing.T) {
	m := newTestManager()
	cfg := config.DefaultConfig()
	cfg.Limits.MaxTradesPerHour = 100
	cfg.Limits.MaxTradesPerDay = 3
	cfg.Limits.MaxPositionsPerSymbol = 100
	cfg.Limits.MaxTotalPositions = 100

	now := time.Now()
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if res := m.Reserve("EURUSD", cfg); !res.Valid {
			t.Fatalf("Reserve() #%d = invalid (%s)", i, res.Code)
		}
		m.Confirm("EURUSD", fmt.Sprintf("order-%d", i))
		now = now.Add(2 * time.Hour) // clear the hourly window between trades
	}

	res := m.Reserve("EURUSD", cfg)
	if res.Valid || res.Code != DenyRateLimitDay {
		t.Errorf("Reserve() at daily cap: code = %q valid=%v, want %q", res.Code, res.Valid, DenyRateLimitDay)
	}
}

func TestPerSymbolPositionLimit(t *testing.T) {
	m := newTestManager()
	cfg := config.DefaultConfig()
	cfg.Limits.MaxTradesPerHour = 100
	cfg.Limits.MaxTradesPerDay = 100
	cfg.Limits.MaxPositionsPerSymbol = 1
	cfg.Limits.MaxTotalPositions = 100

	if res := m.Reserve("XAUUSD", cfg); !res.Valid {
		t.Fatalf("first Reserve() = invalid (%s)", res.Code)
	}
	m.Confirm("XAUUSD", "order-1")

	res := m.Reserve("XAUUSD", cfg)
	if res.Valid || res.Code != DenyPositionLimitSym {
		t.Errorf("Reserve() over symbol limit: code = %q, want %q", res.Code, DenyPositionLimitSym)
	}

	// other symbols are unaffected
	if res := m.Reserve("EURUSD", cfg); !res.Valid {
		t.Errorf("Reserve() for other symbol = invalid (%s), want valid", res.Code)
	}
}

func TestTotalPositionCapCountsReservations(t *testing.T) {
	m := newTestManager()
	cfg := config.DefaultConfig()
	cfg.Limits.MaxTradesPerHour = 100
	cfg.Limits.MaxTradesPerDay = 100
	cfg.Limits.MaxPositionsPerSymbol = 100
	cfg.Limits.MaxTotalPositions = 2

	// two unconfirmed reservations hold both slots
	if res := m.Reserve("EURUSD", cfg); !res.Valid {
		t.Fatalf("Reserve() = invalid (%s)", res.Code)
	}
	if res := m.Reserve("XAUUSD", cfg); !res.Valid {
		t.Fatalf("Reserve() = invalid (%s)", res.Code)
	}

	res := m.Reserve("BTCUSD", cfg)
	if res.Valid || res.Code != DenyPositionLimitTotal {
		t.Errorf("Reserve() over total cap: code = %q, want %q", res.Code, DenyPositionLimitTotal)
	}

	// releasing one slot reopens admission
	m.Release("EURUSD")
	if res := m.Reserve("BTCUSD", cfg); !res.Valid {
		t.Errorf("Reserve() after release = invalid (%s), want valid", res.Code)
	}
}

func TestReleaseDoesNotRecordExecution(t *testing.T) {
	m := newTestManager()
	cfg := config.DefaultConfig()
	cfg.Limits.MaxTradesPerHour = 1

	if res := m.Reserve("EURUSD", cfg); !res.Valid {
		t.Fatalf("Reserve() = invalid (%s)", res.Code)
	}
	m.Release("EURUSD")

	// a released reservation must not consume the rate budget
	if res := m.Reserve("EURUSD", cfg); !res.Valid {
		t.Errorf("Reserve() after release = invalid (%s), want valid", res.Code)
	}
}

func TestSyncPositionsReplacesSet(t *testing.T) {
	m := newTestManager()

	m.Confirm("EURUSD", "stale-1")
	m.Confirm("EURUSD", "stale-2")

	m.SyncPositions(map[string][]string{"XAUUSD": {"live-1"}})

	if got := m.CountOpenPositions(); got != 1 {
		t.Errorf("CountOpenPositions() after sync = %d, want 1", got)
	}
	active := m.ActivePositions()
	if len(active["EURUSD"]) != 0 {
		t.Errorf("stale EURUSD handles survived sync: %v", active["EURUSD"])
	}
	if len(active["XAUUSD"]) != 1 || active["XAUUSD"][0] != "live-1" {
		t.Errorf("ActivePositions() = %v, want XAUUSD [live-1]", active)
	}
}

func TestEventRingAndCallbacks(t *testing.T) {
	m := newTestManager()

	alerted := make(chan *Event, 1)
	m.RegisterAlertCallback(func(e *Event) { alerted <- e })

	m.RecordEvent(&Event{
		Timestamp: time.Now(),
		EventType: "RATE_LIMIT_HIT",
		Severity:  "WARNING",
		Symbol:    "EURUSD",
		Details:   "3/3 trades in rolling hour",
	})

	events := m.GetEvents(10)
	if len(events) != 1 || events[0].EventType != "RATE_LIMIT_HIT" {
		t.Errorf("GetEvents() = %v, want one RATE_LIMIT_HIT event", events)
	}

	select {
	case e := <-alerted:
		if e.Symbol != "EURUSD" {
			t.Errorf("alert callback symbol = %s, want EURUSD", e.Symbol)
		}
	case <-time.After(time.Second):
		t.Error("alert callback was never invoked")
	}
}

func TestClockSession(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{hour: 2, want: "asia"},
		{hour: 8, want: "london"},
		{hour: 15, want: "newyork"},
		{hour: 23, want: "asia"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("hour_%d", tt.hour), func(t *testing.T) {
			cs := NewClockSession()
			cs.Now = func() time.Time {
				return time.Date(2026, 3, 2, tt.hour, 0, 0, 0, time.UTC)
			}
			if got := cs.CurrentSession(); got != tt.want {
				t.Errorf("CurrentSession() at %02d:00 UTC = %q, want %q", tt.hour, got, tt.want)
			}
		})
	}
}

func TestReserveEnforcesSessionAndNewsGates(t *testing.T) {
	t.Run("closed session blocks reservation", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Sessions.Allowed = []string{"london"}
		m := NewManager(stubSession{"asia"}, nil, testLogger())

		result := m.Reserve("EURUSD", cfg)
		if result.Valid {
			t.Fatal("Reserve() = valid during a closed session, want denial")
		}
		if result.Code != DenySessionClosed {
			t.Errorf("Reserve() code = %q, want %q", result.Code, DenySessionClosed)
		}
		// no pending slot may leak from a denied reservation
		m.posMutex.Lock()
		got := m.totalPositionsLocked()
		m.posMutex.Unlock()
		if got != 0 {
			t.Errorf("pending slots after denial = %d, want 0", got)
		}
	})

	t.Run("news blackout blocks reservation", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Sessions.NewsCategories = []string{"employment"}
		news := stubNews{blocked: map[string]bool{"employment": true}}
		m := NewManager(nil, news, testLogger())

		result := m.Reserve("EURUSD", cfg)
		if result.Valid {
			t.Fatal("Reserve() = valid during a news blackout, want denial")
		}
		if result.Code != DenyNewsBlackout {
			t.Errorf("Reserve() code = %q, want %q", result.Code, DenyNewsBlackout)
		}
	})

	t.Run("open gates still reserve", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Sessions.Allowed = []string{"london"}
		m := NewManager(stubSession{"london"}, nil, testLogger())

		if result := m.Reserve("EURUSD", cfg); !result.Valid {
			t.Errorf("Reserve() = invalid (%s), want valid", result.Code)
		}
	})
}
