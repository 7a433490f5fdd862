// Package scraper periodically copies glucose readings from LibreLinkUp into
// the local store.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"opent1d/internal/domain"
	"opent1d/internal/librelinkup"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
)

// DefaultInterval is how often graph data is fetched.
const DefaultInterval = 6 * time.Hour

var (
	// ErrNotConfigured means no complete LibreLinkUp settings are stored.
	ErrNotConfigured = errors.New("librelinkup settings are not configured")
	// ErrAlreadyRunning is returned by Start on a running scraper.
	ErrAlreadyRunning = errors.New("scraper already running")
)

// Store is the persistence the scraper needs.
type Store interface {
	storage.SettingsStore
	storage.CGMStore
}

// Scraper signs in to LibreLinkUp and stores the follower graph on an interval.
type Scraper struct {
	client   *librelinkup.Client
	store    Store
	interval time.Duration
	logger   observability.Logger
	metrics  *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option { return func(s *Scraper) { s.logger = l } }

// WithMetrics counts scrape runs.
func WithMetrics(m *observability.Metrics) Option { return func(s *Scraper) { s.metrics = m } }

// New returns a stopped Scraper.
func New(client *librelinkup.Client, store Store, opts ...Option) *Scraper {
	s := &Scraper{client: client, store: store, interval: DefaultInterval}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewNopLogger()
	}
	s.logger = s.logger.WithComponent("scraper")
	return s
}

// Start signs in and resolves the patient, then scrapes once immediately and
// on every interval until Stop is called. Setup errors are returned and leave
// the scraper stopped.
func (s *Scraper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}

	ticket, settings, err := s.signIn(ctx)
	if err != nil {
		return err
	}
	log := s.logger.With("username", settings.LibreLinkUpUsername, "region", settings.LibreLinkUpRegion)
	log.InfoContext(ctx, "signed in to LibreLinkUp")

	conns, err := ticket.Connections(ctx)
	if err != nil {
		return fmt.Errorf("fetch connections: %w", err)
	}
	if len(conns) != 1 {
		return fmt.Errorf("expected one LibreLinkUp connection, found %d", len(conns))
	}
	patientID := conns[0].PatientID

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx, ticket, patientID, log.With("patient_id", patientID), s.done)
	return nil
}

// Stop ends the scrape loop and waits for it to exit. It is a no-op on a
// stopped scraper.
func (s *Scraper) Stop() {
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

// IsRunning reports whether the scrape loop is active.
func (s *Scraper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

func (s *Scraper) signIn(ctx context.Context) (*librelinkup.Ticket, domain.Settings, error) {
	stored, err := s.store.GetSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.Settings{}, ErrNotConfigured
	}
	if err != nil {
		return nil, domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings := *stored
	if !settings.IsComplete() {
		return nil, domain.Settings{}, ErrNotConfigured
	}

	endpoint, ok := librelinkup.EndpointByRegion(settings.LibreLinkUpRegion)
	if !ok {
		return nil, domain.Settings{}, fmt.Errorf("invalid LibreLinkUp region %q", settings.LibreLinkUpRegion)
	}

	ticket, err := s.client.Login(ctx, settings.LibreLinkUpUsername, settings.LibreLinkUpPassword, endpoint)
	if !errors.Is(err, librelinkup.ErrWrongRegionEndpoint) {
		return ticket, settings, err
	}

	s.logger.InfoContext(ctx, "region was incorrect, resolving account region", "region", settings.LibreLinkUpRegion)
	endpoint, err = s.client.FindEndpoint(ctx, settings.LibreLinkUpUsername, settings.LibreLinkUpPassword)
	if err != nil {
		return nil, domain.Settings{}, err
	}
	settings.LibreLinkUpRegion = endpoint.Region
	if err := s.store.SaveSettings(ctx, &settings); err != nil {
		return nil, domain.Settings{}, fmt.Errorf("save resolved region: %w", err)
	}
	ticket, err = s.client.Login(ctx, settings.LibreLinkUpUsername, settings.LibreLinkUpPassword, endpoint)
	return ticket, settings, err
}

func (s *Scraper) run(ctx context.Context, ticket *librelinkup.Ticket, patientID string, log observability.Logger, done chan struct{}) {
	defer close(done)
	log.InfoContext(ctx, "starting LibreLinkUp scraper", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		n, err := s.scrapeOnce(ctx, ticket, patientID, log)
		if ctx.Err() != nil {
			return
		}
		s.metrics.RecordScrape(n, err)
		if err != nil {
			log.ErrorContext(ctx, "scrape failed", observability.Err(err))
		} else {
			log.DebugContext(ctx, "scrape finished", "readings", n)
		}

		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "LibreLinkUp scraper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scraper) scrapeOnce(ctx context.Context, ticket *librelinkup.Ticket, patientID string, log observability.Logger) (int, error) {
	conn, graph, err := ticket.Graph(ctx, patientID)
	if err != nil {
		return 0, fmt.Errorf("fetch graph: %w", err)
	}
	if conn.GlucoseMeasurement.FactoryTimestamp != "" {
		graph = append(graph, conn.GlucoseMeasurement)
	}
	entries := make([]domain.CGMEntry, 0, len(graph))
	for _, m := range graph {
		ts, err := librelinkup.ToTime(m.FactoryTimestamp)
		if err != nil {
			log.WarnContext(ctx, "skipping reading with bad timestamp", "timestamp", m.FactoryTimestamp, observability.Err(err))
			continue
		}
		entries = append(entries, domain.NewCGMEntry(ts, domain.Mmoll(m.Value)))
	}
	if err := s.store.SaveCGM(ctx, entries...); err != nil {
		return 0, fmt.Errorf("save readings: %w", err)
	}
	return len(entries), nil
}
