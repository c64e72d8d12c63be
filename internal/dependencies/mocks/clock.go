package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/presencechat/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// It is safe for use by a background task while a test advances it.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	tickers     []*MockTicker
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// Advance moves the clock forward by the given duration
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = c.currentTime.Add(d)
}

// NewTicker returns a ticker that only fires when Tick is called
func (c *MockClock) NewTicker(_ time.Duration) clock.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tickers returns the number of live tickers created from this clock
func (c *MockClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

// Tick fires every live ticker with the current time.
// A tick is dropped if the previous one has not been consumed, like time.Ticker.
func (c *MockClock) Tick() {
	c.mu.Lock()
	now := c.currentTime
	tickers := append([]*MockTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if t.isStopped() {
			continue
		}
		select {
		case t.ch <- now:
		default:
		}
	}
}

// MockTicker is a manually driven clock.Ticker
type MockTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

// C returns the tick channel
func (t *MockTicker) C() <-chan time.Time {
	return t.ch
}

// Stop prevents further ticks from being delivered
func (t *MockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *MockTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
