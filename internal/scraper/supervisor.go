package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"opent1d/internal/domain"
	"opent1d/internal/librelinkup"
	"opent1d/internal/observability"
)

// Supervisor owns the active Scraper and replaces it whenever the settings
// change. Restarts are serialized.
type Supervisor struct {
	factory     func() *Scraper
	logger      observability.Logger
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	life   context.Context
	cancel context.CancelFunc

	// closed is set by Shutdown; no background restart starts after it.
	lifeMu sync.Mutex
	closed bool

	mu      sync.Mutex
	current *Scraper
	wg      sync.WaitGroup
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithRetry sets how many sign-in attempts are made and the backoff bounds.
func WithRetry(attempts int, minWait, maxWait time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		s.minBackoff, s.maxBackoff = minWait, maxWait
	}
}

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(l observability.Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = l }
}

// NewSupervisor returns a Supervisor that builds scrapers with factory.
func NewSupervisor(factory func() *Scraper, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		factory:     factory,
		maxAttempts: 5,
		minBackoff:  time.Second,
		maxBackoff:  time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewNopLogger()
	}
	s.logger = s.logger.WithComponent("supervisor")
	s.life, s.cancel = context.WithCancel(context.Background())
	return s
}

// ErrStopped is returned by Restart after Shutdown.
var ErrStopped = errors.New("scraper supervisor stopped")

// OnStartup starts scraping with the stored settings, if any, in the
// background. Cancelling ctx or calling Shutdown aborts it.
func (s *Supervisor) OnStartup(ctx context.Context) {
	s.spawn(func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(s.life, cancel)
		defer stop()
		if err := s.Restart(ctx); err != nil {
			s.logger.WarnContext(ctx, "scraper not started", observability.Err(err))
		}
	})
}

// OnSettingsSaved restarts the scraper in the background. It matches
// credentials.SavedFunc.
func (s *Supervisor) OnSettingsSaved(ctx context.Context, settings domain.Settings) {
	s.logger.InfoContext(ctx, "settings changed, restarting scraper", "username", settings.LibreLinkUpUsername)
	s.spawn(func() {
		if err := s.Restart(s.life); err != nil {
			s.logger.Warn("scraper restart failed", observability.Err(err))
		}
	})
}

// spawn runs fn in a goroutine tracked by Shutdown. It does nothing once
// Shutdown has begun.
func (s *Supervisor) spawn(fn func()) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Restart stops the current scraper and starts a new one, retrying transient
// sign-in failures with exponential backoff.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.life.Err() != nil {
		return ErrStopped
	}

	if s.current != nil {
		s.current.Stop()
		s.current = nil
	}

	b := &backoff.Backoff{Min: s.minBackoff, Max: s.maxBackoff, Factor: 2, Jitter: true}
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		sc := s.factory()
		if err = sc.Start(ctx); err == nil {
			s.current = sc
			return nil
		}
		if permanent(err) || attempt == s.maxAttempts {
			return err
		}
		wait := b.Duration()
		s.logger.InfoContext(ctx, "scraper start failed, retrying", "attempt", attempt, "wait", wait.String(), observability.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.life.Done():
			return s.life.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// Running reports whether a scraper is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.IsRunning()
}

// Wait blocks until background restarts have finished.
func (s *Supervisor) Wait() { s.wg.Wait() }

// Shutdown aborts pending restarts and stops the active scraper. No scraper
// runs after it returns.
func (s *Supervisor) Shutdown() {
	s.lifeMu.Lock()
	s.closed = true
	s.lifeMu.Unlock()
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Stop()
		s.current = nil
	}
}

func permanent(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, librelinkup.ErrLoginFailed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrStopped)
}
