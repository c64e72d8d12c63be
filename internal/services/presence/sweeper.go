// Package presence evicts participants that stop heartbeating and records their departure.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mcoot/presencechat/internal/dependencies/clock"
	"github.com/mcoot/presencechat/internal/metrics"
	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/services/ledger"
	"github.com/mcoot/presencechat/internal/services/registry"
)

const (
	DefaultInterval            = 15 * time.Second
	DefaultInactivityThreshold = 10 * time.Second
)

// Config controls sweep timing
type Config struct {
	// Interval between sweep cycles
	Interval time.Duration
	// InactivityThreshold is how long a participant may go without a heartbeat
	InactivityThreshold time.Duration
}

// DefaultConfig returns the default sweep timing
func DefaultConfig() Config {
	return Config{
		Interval:            DefaultInterval,
		InactivityThreshold: DefaultInactivityThreshold,
	}
}

// Sweeper periodically removes stale participants.
// It runs as one background task started with Start and ended with Stop.
type Sweeper struct {
	registry *registry.Service
	ledger   *ledger.Service
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sweeper. metrics may be nil.
func New(
	registry *registry.Service,
	ledger *ledger.Service,
	clock clock.Clock,
	metrics *metrics.Metrics,
	config Config,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		registry: registry,
		ledger:   ledger,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

// SweepOnce runs a single cycle and returns the names evicted.
// Stale participants are removed in one batch; any that heartbeated after the
// cutoff in the meantime survive. Each evicted name gets one leave message.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]string, error) {
	start := time.Now()
	cutoff := s.clock.Now().Add(-s.config.InactivityThreshold)

	stale, err := s.registry.FindStaleBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stale participants: %w", err)
	}

	var evicted []string
	if len(stale) > 0 {
		names := lo.Map(stale, func(p *model.Participant, _ int) string { return p.Name })
		evicted, err = s.registry.RemoveStale(ctx, names, cutoff)
		if err != nil {
			return nil, fmt.Errorf("remove stale participants: %w", err)
		}
	}

	var errs []error
	for _, name := range evicted {
		if _, err := s.ledger.AppendSystemEvent(ctx, name, model.LeaveText); err != nil {
			errs = append(errs, fmt.Errorf("record departure of %s: %w", name, err))
		}
	}
	s.metrics.SweepCompleted(len(evicted), time.Since(start))

	// Survivors include anyone who heartbeated during the cycle
	active, err := s.registry.FindActiveSince(ctx, cutoff)
	if err != nil {
		s.logger.Warn("failed to count active participants", "error", err)
	} else {
		s.metrics.ParticipantsActive(len(active))
	}

	if len(evicted) > 0 {
		s.logger.Info("evicted inactive participants",
			"evicted", evicted,
			"skipped", len(stale)-len(evicted),
			"active", len(active),
		)
	}
	return evicted, errors.Join(errs...)
}

// Start launches the sweep loop. It runs until ctx is cancelled or Stop is called.
// Calling Start on a running Sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := s.clock.NewTicker(s.config.Interval)
	s.cancel = cancel
	s.done = done

	s.logger.Info("presence sweeper started",
		"interval", s.config.Interval,
		"inactivity_threshold", s.config.InactivityThreshold,
	)
	go s.run(ctx, ticker, done)
}

// Stop ends the sweep loop and waits for an in-flight cycle to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("presence sweeper stopped")
			return
		case <-ticker.C():
			if _, err := s.SweepOnce(ctx); err != nil {
				s.metrics.SweepFailed()
				s.logger.Error("presence sweep failed", "error", err)
			}
		}
	}
}
