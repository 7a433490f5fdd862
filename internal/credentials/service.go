// Package credentials owns reading and saving the LibreLinkUp settings.
//
// Saving validates the input, optionally verifies it against LibreLinkUp to
// resolve the account region, persists it and notifies listeners such as the
// scraper supervisor.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"opent1d/internal/audit"
	"opent1d/internal/domain"
	"opent1d/internal/librelinkup"
	"opent1d/internal/observability"
	"opent1d/internal/storage"
)

// ErrLoginFailed is returned when LibreLinkUp rejects the credentials.
// Its message is shown to users as is.
var ErrLoginFailed = errors.New("Login failed, please verify username and password") //nolint:staticcheck

// Verifier resolves the LibreLinkUp region for a set of credentials by
// signing in. *librelinkup.Client implements it.
type Verifier interface {
	FindEndpoint(ctx context.Context, email, password string) (librelinkup.Endpoint, error)
}

// SavedFunc is called after settings were persisted.
type SavedFunc func(ctx context.Context, s domain.Settings)

// Service reads and writes the LibreLinkUp settings.
type Service struct {
	store    storage.SettingsStore
	verifier Verifier
	audit    audit.AuditLogger
	logger   observability.Logger
	metrics  *observability.Metrics

	mu        sync.RWMutex
	listeners []SavedFunc
}

// Option configures a Service.
type Option func(*Service)

// WithVerifier signs in to LibreLinkUp on every save.
func WithVerifier(v Verifier) Option { return func(s *Service) { s.verifier = v } }

// WithAuditLogger records every save attempt.
func WithAuditLogger(a audit.AuditLogger) Option { return func(s *Service) { s.audit = a } }

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMetrics counts saves by outcome.
func WithMetrics(m *observability.Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService returns a Service backed by store.
func NewService(store storage.SettingsStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewNopLogger()
	}
	s.logger = s.logger.WithComponent("credentials")
	return s
}

// OnSaved registers fn to run after each successful save.
func (s *Service) OnSaved(fn SavedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get returns the stored settings, or empty settings if none were saved.
func (s *Service) Get(ctx context.Context) (domain.Settings, error) {
	stored, err := s.store.GetSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return *stored, nil
}

// Save stores username and password and returns the persisted settings.
func (s *Service) Save(ctx context.Context, username, password string) (domain.Settings, error) {
	next := domain.Settings{LibreLinkUpUsername: username, LibreLinkUpPassword: password}
	out, err := s.save(ctx, next)
	s.metrics.RecordSettingsSave(err)
	if err != nil {
		s.logger.WarnContext(ctx, "settings save failed", "username", username, observability.Err(err))
		return domain.Settings{}, err
	}
	s.logger.InfoContext(ctx, "settings saved", "username", out.LibreLinkUpUsername, "region", out.LibreLinkUpRegion)

	s.mu.RLock()
	listeners := append([]SavedFunc(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, out)
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, next domain.Settings) (domain.Settings, error) {
	if err := next.Validate(); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}

	prev, err := s.Get(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	region, err := s.resolveRegion(ctx, next, prev)
	if err != nil {
		s.logAudit(ctx, audit.ActionVerify, prev, next, err)
		return domain.Settings{}, err
	}
	next.LibreLinkUpRegion = region

	if err := s.store.SaveSettings(ctx, &next); err != nil {
		err = fmt.Errorf("save settings: %w", err)
		s.logAudit(ctx, audit.ActionUpdate, prev, next, err)
		return domain.Settings{}, err
	}
	s.logAudit(ctx, audit.ActionUpdate, prev, next, nil)
	return next, nil
}

func (s *Service) resolveRegion(ctx context.Context, next, prev domain.Settings) (string, error) {
	if s.verifier == nil {
		if prev.LibreLinkUpRegion != "" {
			return prev.LibreLinkUpRegion, nil
		}
		return librelinkup.DefaultRegion, nil
	}
	endpoint, err := s.verifier.FindEndpoint(ctx, next.LibreLinkUpUsername, next.LibreLinkUpPassword)
	if errors.Is(err, librelinkup.ErrLoginFailed) {
		return "", ErrLoginFailed
	}
	if err != nil {
		return "", fmt.Errorf("verify credentials: %w", err)
	}
	return endpoint.Region, nil
}

func (s *Service) logAudit(ctx context.Context, action string, before, after domain.Settings, err error) {
	if s.audit == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	if err != nil {
		outcome = audit.OutcomeFailure
	}
	ev := &audit.AuditEvent{
		Actor:        audit.ActorFromContext(ctx),
		Action:       action,
		ResourceType: audit.ResourceSettings,
		ResourceID:   "librelinkup",
		RequestID:    observability.RequestIDFromContext(ctx),
		Outcome:      outcome,
		Changes: &audit.Changes{
			Before: auditFields(before),
			After:  auditFields(after),
		},
	}
	if logErr := s.audit.Log(ctx, ev); logErr != nil {
		s.logger.WarnContext(ctx, "audit log failed", observability.Err(logErr))
	}
}

func auditFields(st domain.Settings) map[string]any {
	if st.LibreLinkUpUsername == "" && st.LibreLinkUpRegion == "" {
		return nil
	}
	return map[string]any{
		"username": st.LibreLinkUpUsername,
		"region":   st.LibreLinkUpRegion,
	}
}
