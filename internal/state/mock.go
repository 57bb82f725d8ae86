// internal/state/mock.go
package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/danmaku/internal/scheduler"
)

// Mock is a test double for Manager.
type Mock struct {
	settings  *scheduler.Settings
	offsets   map[string]time.Duration
	positions map[string]time.Duration
	closed    bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{
		offsets:   make(map[string]time.Duration),
		positions: make(map[string]time.Duration),
	}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) GetSettings() (*scheduler.Settings, error) {
	return m.settings, nil
}

func (m *Mock) SaveSettings(st scheduler.Settings) {
	m.settings = &st
}

func (m *Mock) GetSeriesOffset(series string) (time.Duration, error) {
	return m.offsets[series], nil
}

func (m *Mock) SaveSeriesOffset(series string, offset time.Duration) error {
	m.offsets[series] = offset
	return nil
}

func (m *Mock) GetPosition(path string) (time.Duration, error) {
	return m.positions[path], nil
}

func (m *Mock) SaveSession(s Session) error {
	m.settings = &s.Settings
	if s.Series != "" {
		m.offsets[s.Series] = s.Settings.Offset
	}
	if s.Path != "" {
		m.positions[s.Path] = s.Position
	}
	return nil
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
