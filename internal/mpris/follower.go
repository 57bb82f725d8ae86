//go:build linux

package mpris

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	dbusObjectPath      = "/org/mpris/MediaPlayer2"
	dbusPlayerInterface = "org.mpris.MediaPlayer2.Player"
	seekedBufferSize    = 8
)

// Follower reads the playback clock of an external player.
type Follower struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	name   string
	seeked chan time.Duration
	done   chan struct{}
	once   sync.Once
}

// Follow connects to the session bus and attaches to player.
// Returns ErrNoPlayer if nobody owns the player's bus name.
func Follow(player string) (*Follower, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}

	name := BusName(player)
	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned); err != nil {
		conn.Close()
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}
	if !owned {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoPlayer, name)
	}

	f := &Follower{
		conn:   conn,
		obj:    conn.Object(name, dbusObjectPath),
		name:   name,
		seeked: make(chan time.Duration, seekedBufferSize),
		done:   make(chan struct{}),
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchSender(name),
		dbus.WithMatchObjectPath(dbusObjectPath),
		dbus.WithMatchInterface(dbusPlayerInterface),
		dbus.WithMatchMember("Seeked"),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe seeked: %w", err)
	}

	signals := make(chan *dbus.Signal, seekedBufferSize)
	conn.Signal(signals)
	go f.forwardSeeks(signals)

	return f, nil
}

// Name returns the followed bus name.
func (f *Follower) Name() string {
	return f.name
}

// Seeked delivers positions reported by the player's Seeked signal.
// Values are dropped when the reader falls behind.
func (f *Follower) Seeked() <-chan time.Duration {
	return f.seeked
}

// Status reads position, playback status and rate. Players that do not
// expose Rate are reported at 1.
func (f *Follower) Status() (Status, error) {
	var st Status

	v, err := f.obj.GetProperty(dbusPlayerInterface + ".Position")
	if err != nil {
		return st, fmt.Errorf("position: %w", err)
	}
	pos, ok := microseconds(v.Value())
	if !ok {
		return st, fmt.Errorf("position: unexpected type %s", v.Signature())
	}
	st.Position = pos

	v, err = f.obj.GetProperty(dbusPlayerInterface + ".PlaybackStatus")
	if err != nil {
		return st, fmt.Errorf("playback status: %w", err)
	}
	if s, ok := v.Value().(string); ok {
		st.Playing = parsePlaybackStatus(s)
	}

	st.Rate = 1
	if v, err := f.obj.GetProperty(dbusPlayerInterface + ".Rate"); err == nil {
		if r, ok := v.Value().(float64); ok && r > 0 {
			st.Rate = r
		}
	}

	if v, err := f.obj.GetProperty(dbusPlayerInterface + ".Metadata"); err == nil {
		if meta, ok := v.Value().(map[string]dbus.Variant); ok {
			if u, ok := meta["xesam:url"].Value().(string); ok {
				st.URL = u
			}
		}
	}

	return st, nil
}

// Close disconnects from the bus.
func (f *Follower) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.conn.Close()
	})
	return err
}

func (f *Follower) forwardSeeks(signals <-chan *dbus.Signal) {
	for {
		select {
		case <-f.done:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig.Name != dbusPlayerInterface+".Seeked" || len(sig.Body) == 0 {
				continue
			}
			pos, ok := microseconds(sig.Body[0])
			if !ok {
				continue
			}
			select {
			case f.seeked <- pos:
			default:
			}
		}
	}
}
