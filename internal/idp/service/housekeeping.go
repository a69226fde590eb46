package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tanukisoft/torii/internal/idp/store"
)

// HousekeepingService periodically deletes expired rows so codes, tokens,
// in-flight authorization requests and assertion jtis do not pile up.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the service. A non-positive interval
// defaults to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking; call Stop to shut it
// down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, waiting for any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep runs each deletion independently; one failure never blocks the
// rest.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"authorization_codes", s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes},
		{"access_tokens", s.Store.AccessTokens().DeleteExpiredAccessTokens},
		{"refresh_tokens", s.Store.RefreshTokens().DeleteExpiredRefreshTokens},
		{"initial_access_tokens", s.Store.InitialAccessTokens().DeleteExpiredInitialAccessTokens},
		{"authz_requests", s.Store.AuthzRequests().DeleteExpiredAuthzRequests},
		{"assertion_jtis", s.Store.Assertions().DeleteExpiredAssertions},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			s.Logger.Error("housekeeping sweep failed", "table", step.name, "error", err)
		}
	}
	s.Logger.Debug("housekeeping sweep completed")
}
