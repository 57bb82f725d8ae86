//go:build linux

package mpris

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
)

const (
	minRate = 0.25
	maxRate = 4.0
)

// Controller is the transport the adapter exposes.
type Controller interface {
	Play()
	Pause()
	Toggle()
	SeekTo(pos time.Duration) error
	Position() time.Duration
	Playing() bool
	Rate() float64
	SetRate(rate float64)
	Title() string
	Length() time.Duration
}

// Adapter publishes a Controller as an MPRIS player over D-Bus.
type Adapter struct {
	server *server.Server
}

// New creates and starts a new MPRIS adapter.
func New(ctrl Controller) (*Adapter, error) {
	a := &Adapter{
		server: server.NewServer("danmaku", &rootAdapter{}, &playerAdapter{ctrl: ctrl}),
	}

	// Start the server in background
	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "Danmaku", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"application/json", "application/xml", "text/plain"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	ctrl Controller
}

func (p *playerAdapter) Next() error {
	return nil // Not supported
}

func (p *playerAdapter) Previous() error {
	return nil // Not supported
}

func (p *playerAdapter) Pause() error {
	p.ctrl.Pause()
	return nil
}

func (p *playerAdapter) PlayPause() error {
	p.ctrl.Toggle()
	return nil
}

func (p *playerAdapter) Stop() error {
	p.ctrl.Pause()
	return nil
}

func (p *playerAdapter) Play() error {
	p.ctrl.Play()
	return nil
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	pos := max(p.ctrl.Position()+time.Duration(offset)*time.Microsecond, 0)
	return p.ctrl.SeekTo(pos)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.ctrl.SeekTo(time.Duration(position) * time.Microsecond)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	if p.ctrl.Playing() {
		return types.PlaybackStatusPlaying, nil
	}
	return types.PlaybackStatusPaused, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return p.ctrl.Rate(), nil
}

func (p *playerAdapter) SetRate(rate float64) error {
	p.ctrl.SetRate(min(max(rate, minRate), maxRate))
	return nil
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	title := p.ctrl.Title()
	return types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(title)),
		Length:  types.Microseconds(p.ctrl.Length().Microseconds()),
		Title:   title,
	}, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return p.ctrl.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return minRate, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return maxRate, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

func formatTrackID(title string) string {
	h := fnv.New64a()
	h.Write([]byte(title))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
