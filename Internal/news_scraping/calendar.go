package newsscraping

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// blackout padding around an event's scheduled time
const (
	preEventWindow  = 15 * time.Minute
	postEventWindow = 30 * time.Minute
)

// ScheduledEvent is one calendar entry. Times are UTC.
type ScheduledEvent struct {
	Category string    `yaml:"category"`
	Title    string    `yaml:"title"`
	At       time.Time `yaml:"at"`
}

// Calendar tracks upcoming high-impact events and answers blackout
// queries for the admission gate. Events can come from a YAML file or
// from classified headlines at runtime.
type Calendar struct {
	mu       sync.RWMutex
	events   []ScheduledEvent
	classify *Classifier
	now      func() time.Time
}

func NewCalendar() *Calendar {
	return &Calendar{
		classify: NewClassifier(),
		now:      time.Now,
	}
}

// LoadFile merges scheduled events from a YAML calendar file. Missing
// file is not an error; the calendar just stays empty.
func (c *Calendar) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading calendar %s: %w", path, err)
	}

	var parsed struct {
		Events []ScheduledEvent `yaml:"events"`
	}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parsing calendar %s: %w", path, err)
	}

	c.mu.Lock()
	c.events = append(c.events, parsed.Events...)
	c.mu.Unlock()
	return nil
}

// AddEvent schedules a single event.
func (c *Calendar) AddEvent(event ScheduledEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

// IngestHeadline classifies a breaking headline and, when it hits a
// known category, opens an immediate blackout window for it.
func (c *Calendar) IngestHeadline(headline string, at time.Time) []string {
	categories := c.classify.Classify(headline)
	for _, category := range categories {
		c.AddEvent(ScheduledEvent{
			Category: category,
			Title:    headline,
			At:       at,
		})
	}
	return categories
}

// IsBlackout reports whether any event in the category has an active
// blackout window right now. Stale events are pruned as a side effect.
func (c *Calendar) IsBlackout(category string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.events[:0]
	active := false
	for _, e := range c.events {
		if now.After(e.At.Add(postEventWindow)) {
			continue
		}
		kept = append(kept, e)
		if e.Category != category {
			continue
		}
		if !now.Before(e.At.Add(-preEventWindow)) {
			active = true
		}
	}
	c.events = kept
	return active
}
