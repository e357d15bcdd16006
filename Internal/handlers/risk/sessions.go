package risk

import "time"

// UTC session boundaries. Sessions overlap in reality; the boundaries
// here pick the dominant venue for admission purposes.
const (
	asiaOpenHour    = 22
	londonOpenHour  = 7
	newYorkOpenHour = 13
)

// ClockSession derives the active trading session from wall-clock UTC
// time. The now func is injectable for tests.
type ClockSession struct {
	Now func() time.Time
}

func NewClockSession() *ClockSession {
	return &ClockSession{Now: time.Now}
}

func (c *ClockSession) CurrentSession() string {
	hour := c.Now().UTC().Hour()
	switch {
	case hour >= asiaOpenHour || hour < londonOpenHour:
		return "asia"
	case hour < newYorkOpenHour:
		return "london"
	default:
		return "newyork"
	}
}
