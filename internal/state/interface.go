// internal/state/interface.go
package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/danmaku/internal/scheduler"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB
	GetSettings() (*scheduler.Settings, error)
	SaveSettings(st scheduler.Settings)
	GetSeriesOffset(series string) (time.Duration, error)
	SaveSeriesOffset(series string, offset time.Duration) error
	GetPosition(path string) (time.Duration, error)
	SaveSession(s Session) error
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
