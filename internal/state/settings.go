package state

import (
	"database/sql"
	"errors"

	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/scheduler"
)

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func getSettings(db *sql.DB) (*scheduler.Settings, error) {
	var (
		st           scheduler.Settings
		sourceFilter int64
		motionFilter int64
	)

	row := db.QueryRow(`
		SELECT opacity, speed, font_size, height_ratio, source_filter, motion_filter,
			density, font_family, font_weight
		FROM settings WHERE id = 1
	`)
	err := row.Scan(&st.Opacity, &st.Speed, &st.FontSize, &st.HeightRatio,
		&sourceFilter, &motionFilter, &st.Density, &st.FontFamily, &st.FontWeight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	st.SourceFilter = comment.Source(sourceFilter)
	st.MotionFilter = comment.MotionFilter(motionFilter)
	return &st, nil
}

// saveSettings stores everything but the offset, which is kept per series.
func saveSettings(db execer, st scheduler.Settings) error {
	_, err := db.Exec(`
		INSERT INTO settings (id, opacity, speed, font_size, height_ratio, source_filter,
			motion_filter, density, font_family, font_weight)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			opacity = excluded.opacity,
			speed = excluded.speed,
			font_size = excluded.font_size,
			height_ratio = excluded.height_ratio,
			source_filter = excluded.source_filter,
			motion_filter = excluded.motion_filter,
			density = excluded.density,
			font_family = excluded.font_family,
			font_weight = excluded.font_weight
	`, st.Opacity, st.Speed, st.FontSize, st.HeightRatio, int64(st.SourceFilter),
		int64(st.MotionFilter), st.Density, st.FontFamily, st.FontWeight)
	return err
}
