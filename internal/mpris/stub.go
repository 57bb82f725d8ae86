//go:build !linux

package mpris

import "time"

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

// Adapter is a no-op on non-Linux platforms.
type Adapter struct{}

// New returns a no-op adapter on non-Linux platforms.
func New(_ Controller) (*Adapter, error) {
	return &Adapter{}, nil
}

// Close is a no-op on non-Linux platforms.
func (a *Adapter) Close() error {
	return nil
}

// Follower is unavailable on non-Linux platforms.
type Follower struct{}

// Follow always fails with ErrNoPlayer on non-Linux platforms.
func Follow(player string) (*Follower, error) {
	return nil, ErrNoPlayer
}

func (f *Follower) Name() string { return "" }

func (f *Follower) Seeked() <-chan time.Duration { return nil }

func (f *Follower) Status() (Status, error) { return Status{}, ErrNoPlayer }

func (f *Follower) Close() error { return nil }
