package state

import (
	"database/sql"
	"errors"
	"time"

	"github.com/llehouerou/danmaku/internal/scheduler"
)

// Session is what the preview remembers when it exits.
type Session struct {
	Settings scheduler.Settings
	Series   string // empty when the session had no series key
	Path     string // comment file, used to resume the position
	Position time.Duration
}

// SaveSession stores settings, the series offset and the resume position in
// one transaction. It supersedes any pending debounced settings save.
func (m *Manager) SaveSession(s Session) error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.pending = nil
	m.saveMu.Unlock()

	now := time.Now()
	return withTx(m.db, func(tx *sql.Tx) error {
		if err := saveSettings(tx, s.Settings); err != nil {
			return err
		}
		if s.Series != "" {
			if err := saveSeriesOffset(tx, s.Series, s.Settings.Offset, now); err != nil {
				return err
			}
		}
		if s.Path != "" {
			if err := savePosition(tx, s.Path, s.Position, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPosition returns the resume position saved for a comment file.
func (m *Manager) GetPosition(path string) (time.Duration, error) {
	var ms int64
	err := m.db.QueryRow(`SELECT position_ms FROM positions WHERE path = ?`, path).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func savePosition(db execer, path string, pos time.Duration, now time.Time) error {
	_, err := db.Exec(`
		INSERT INTO positions (path, position_ms, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			position_ms = excluded.position_ms,
			updated_at = excluded.updated_at
	`, path, pos.Milliseconds(), now.Unix())
	return err
}
