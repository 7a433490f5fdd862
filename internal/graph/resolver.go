// Package graph serves the OpenT1D GraphQL API at /query.
package graph

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"opent1d/internal/domain"
	"opent1d/internal/glucose"
)

//go:embed schema.graphql
var Schema string

const (
	defaultHours = 24
	maxHours     = 24 * 90
)

// SettingsService reads and saves the LibreLinkUp settings.
// *credentials.Service implements it.
type SettingsService interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, username, password string) (domain.Settings, error)
}

// MeasurementLoader returns stored readings in a time range.
type MeasurementLoader interface {
	LoadCGMInterval(ctx context.Context, from, to time.Time) ([]domain.CGMEntry, error)
}

// Resolver is the root resolver for queries and mutations.
type Resolver struct {
	settings     SettingsService
	measurements MeasurementLoader
	now          func() time.Time
}

// NewResolver returns a root resolver.
func NewResolver(settings SettingsService, measurements MeasurementLoader) *Resolver {
	return &Resolver{settings: settings, measurements: measurements, now: time.Now}
}

// Settings resolves Query.settings.
func (r *Resolver) Settings(ctx context.Context) (*settingsResolver, error) {
	s, err := r.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &settingsResolver{s: s}, nil
}

// SaveSettings resolves Mutation.saveSettings.
func (r *Resolver) SaveSettings(ctx context.Context, args struct {
	Username string
	Password string
}) (*settingsResolver, error) {
	s, err := r.settings.Save(ctx, args.Username, args.Password)
	if err != nil {
		return nil, err
	}
	return &settingsResolver{s: s}, nil
}

// Measurements resolves Query.measurements.
func (r *Resolver) Measurements(ctx context.Context, args struct{ Hours *int32 }) ([]*measurementResolver, error) {
	hours := int32(defaultHours)
	if args.Hours != nil {
		hours = *args.Hours
	}
	if hours <= 0 || hours > maxHours {
		return nil, fmt.Errorf("hours must be between 1 and %d", maxHours)
	}
	to := r.now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)
	entries, err := r.measurements.LoadCGMInterval(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]*measurementResolver, 0, len(entries))
	for _, e := range entries {
		out = append(out, &measurementResolver{e: e})
	}
	return out, nil
}

type settingsResolver struct{ s domain.Settings }

func (r *settingsResolver) LibreLinkUpUsername() string { return r.s.LibreLinkUpUsername }
func (r *settingsResolver) LibreLinkUpPassword() string { return r.s.LibreLinkUpPassword }
func (r *settingsResolver) LibreLinkUpRegion() string   { return r.s.LibreLinkUpRegion }

type measurementResolver struct{ e domain.CGMEntry }

func (r *measurementResolver) Timestamp() string { return r.e.Timestamp.UTC().Format(time.RFC3339) }
func (r *measurementResolver) Mmol() float64     { return float64(r.e.Mmoll) }
func (r *measurementResolver) Mgdl() int32 {
	return int32(glucose.MmolToMg(float32(r.e.Mmoll)))
}
