package state

import (
	"database/sql"
	"errors"
	"time"
)

// SeriesOffset is the episode offset remembered for a series.
type SeriesOffset struct {
	Series    string
	Offset    time.Duration
	UpdatedAt time.Time
}

// GetSeriesOffset returns the offset saved for series, or zero.
func (m *Manager) GetSeriesOffset(series string) (time.Duration, error) {
	var ms int64
	err := m.db.QueryRow(`SELECT offset_ms FROM series_offsets WHERE series = ?`, series).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// SaveSeriesOffset remembers the offset for series. A zero offset forgets it.
func (m *Manager) SaveSeriesOffset(series string, offset time.Duration) error {
	return saveSeriesOffset(m.db, series, offset, time.Now())
}

// ListSeriesOffsets returns every saved offset, most recently updated first.
func (m *Manager) ListSeriesOffsets() ([]SeriesOffset, error) {
	rows, err := m.db.Query(`
		SELECT series, offset_ms, updated_at FROM series_offsets
		ORDER BY updated_at DESC, series
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeriesOffset
	for rows.Next() {
		var (
			so        SeriesOffset
			ms        int64
			updatedAt int64
		)
		if err := rows.Scan(&so.Series, &ms, &updatedAt); err != nil {
			return nil, err
		}
		so.Offset = time.Duration(ms) * time.Millisecond
		so.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, so)
	}
	return out, rows.Err()
}

func saveSeriesOffset(db execer, series string, offset time.Duration, now time.Time) error {
	if offset == 0 {
		_, err := db.Exec(`DELETE FROM series_offsets WHERE series = ?`, series)
		return err
	}
	_, err := db.Exec(`
		INSERT INTO series_offsets (series, offset_ms, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(series) DO UPDATE SET
			offset_ms = excluded.offset_ms,
			updated_at = excluded.updated_at
	`, series, offset.Milliseconds(), now.Unix())
	return err
}
