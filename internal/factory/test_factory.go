package factory

import (
	"time"

	"github.com/mcoot/presencechat/internal/dependencies/mocks"
	"github.com/mcoot/presencechat/internal/metrics"
	"github.com/mcoot/presencechat/internal/services/presence"
	"github.com/mcoot/presencechat/internal/storage"
	"github.com/mcoot/presencechat/internal/storage/memory"
	"github.com/mcoot/presencechat/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithStorage(memory.New())
}

// NewTestAppWithStorage creates a test App over the given store
func NewTestAppWithStorage(store storage.Storage) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	app := newWithDependencies(store, mockClock, metrics.New(), presence.DefaultConfig(), testutil.NopLogger())

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}

// SuppressJoinMessages disables the status message recorded on registration
func (t *TestApp) SuppressJoinMessages() {
	t.Registry.OnJoin(nil)
}
