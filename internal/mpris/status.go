// Package mpris follows an external media player over D-Bus and exposes the
// preview transport as an MPRIS player.
package mpris

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const busPrefix = "org.mpris.MediaPlayer2."

// ErrNoPlayer is returned when the requested player is not on the bus.
var ErrNoPlayer = errors.New("mpris player not found")

// Status is one reading of the followed player.
type Status struct {
	Position time.Duration
	Playing  bool
	Rate     float64
	URL      string // xesam:url of the current media, may be empty
}

// BusName returns the well-known bus name for a player, accepting both
// "mpv" and "org.mpris.MediaPlayer2.mpv".
func BusName(player string) string {
	return busPrefix + strings.TrimPrefix(player, busPrefix)
}

func parsePlaybackStatus(s string) bool {
	return s == "Playing"
}

// microseconds converts the integer types players use for positions.
func microseconds(v any) (time.Duration, bool) {
	switch n := v.(type) {
	case int64:
		return time.Duration(n) * time.Microsecond, true
	case uint64:
		return time.Duration(n) * time.Microsecond, true
	case int32:
		return time.Duration(n) * time.Microsecond, true
	case float64:
		return time.Duration(n * float64(time.Microsecond)), true
	default:
		return 0, false
	}
}

// LocalPath returns the filesystem path of a file:// media URL, or "".
func LocalPath(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return u.Path
}

// commentExts lists comment file extensions in priority order.
var commentExts = []string{".json", ".xml", ".lrc"}

// FindComments looks for a comment file next to the media file, sharing its
// name. Returns the path to the comment file, or empty string if not found.
func FindComments(mediaPath string) string {
	if mediaPath == "" {
		return ""
	}
	stem := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	for _, ext := range commentExts {
		path := stem + ext
		if path == mediaPath {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
