//go:build sqlite

package sqlite

import (
	"context"
	"time"

	"opent1d/internal/domain"
)

// SaveCGM upserts readings in a single transaction.
func (s *Store) SaveCGM(ctx context.Context, entries ...domain.CGMEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cgm (ts, mmoll) VALUES (?, ?) ON CONFLICT(ts) DO UPDATE SET mmoll = excluded.mmoll`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Timestamp.Unix(), float64(e.Mmoll)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadCGMInterval returns readings between from and to, inclusive.
func (s *Store) LoadCGMInterval(ctx context.Context, from, to time.Time) ([]domain.CGMEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, mmoll FROM cgm WHERE ts >= ? AND ts <= ? ORDER BY ts ASC`, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.CGMEntry{}
	for rows.Next() {
		var ts int64
		var mmol float64
		if err := rows.Scan(&ts, &mmol); err != nil {
			return nil, err
		}
		out = append(out, domain.NewCGMEntry(time.Unix(ts, 0).UTC(), domain.Mmoll(mmol)))
	}
	return out, rows.Err()
}
