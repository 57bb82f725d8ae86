package preview

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/danmaku/internal/errmsg"
	"github.com/llehouerou/danmaku/internal/mpris"
	"github.com/llehouerou/danmaku/internal/scheduler"
	"github.com/llehouerou/danmaku/internal/state"
)

const (
	frameInterval = 33 * time.Millisecond
	seekStep      = 5 * time.Second
	offsetStep    = 500 * time.Millisecond
	statusLines   = 1
	maxDensity    = 3
)

// Clock is an external playback clock the preview follows.
type Clock interface {
	Status() (mpris.Status, error)
	Seeked() <-chan time.Duration
}

// Options wires a preview model.
type Options struct {
	Scheduler    *scheduler.Scheduler
	Transport    *Transport
	Store        state.Interface
	Clock        Clock // nil when the preview plays on its own
	PollInterval time.Duration
	Cell         Cell
	Series       string // key for the persisted offset, may be empty
	Path         string
	Logger       *slog.Logger
}

type (
	frameMsg        time.Time
	playerSeekedMsg time.Duration
	seekEventMsg    scheduler.SeekEvent
	pollMsg         struct {
		status mpris.Status
		err    error
	}
)

// Model is the bubbletea model of the preview.
type Model struct {
	sched     *scheduler.Scheduler
	transport *Transport
	store     state.Interface
	clock     Clock
	poll      time.Duration
	cell      Cell
	series    string
	path      string
	log       *slog.Logger
	sub       *scheduler.Subscription

	input     textinput.Model
	prompting bool

	snap    *scheduler.Snapshot
	message string
	failed  bool
	width   int
	height  int
}

// New creates the preview model.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}

	ti := textinput.New()
	ti.Prompt = "jump to: "
	ti.Placeholder = "1:30"
	ti.CharLimit = 16

	return Model{
		sched:     opts.Scheduler,
		transport: opts.Transport,
		store:     opts.Store,
		clock:     opts.Clock,
		poll:      opts.PollInterval,
		cell:      opts.Cell,
		series:    opts.Series,
		path:      opts.Path,
		log:       opts.Logger,
		sub:       opts.Scheduler.Subscribe(),
		input:     ti,
		snap:      opts.Scheduler.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{frameCmd(), waitSeekEvent(m.sub)}
	if m.clock != nil {
		cmds = append(cmds, m.pollCmd(), waitPlayerSeeked(m.clock.Seeked()))
	}
	return tea.Batch(cmds...)
}

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) pollCmd() tea.Cmd {
	clock := m.clock
	return tea.Tick(m.poll, func(time.Time) tea.Msg {
		st, err := clock.Status()
		return pollMsg{status: st, err: err}
	})
}

func waitPlayerSeeked(ch <-chan time.Duration) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		pos, ok := <-ch
		if !ok {
			return nil
		}
		return playerSeekedMsg(pos)
	}
}

func waitSeekEvent(sub *scheduler.Subscription) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-sub.Seeks:
			return seekEventMsg(e)
		case <-sub.Done:
			return nil
		}
	}
}

func (m Model) canvasLines() int {
	return max(m.height-statusLines, 0)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		sc := m.cell.Screen(m.width, m.canvasLines())
		m.sched.Resize(sc.Width, sc.Height)
		m.input.Width = max(m.width-len(m.input.Prompt)-1, 1)
		return m, nil

	case frameMsg:
		m.snap = m.sched.Tick()
		return m, frameCmd()

	case pollMsg:
		if msg.err != nil {
			m.log.Warn("preview: player poll failed", "error", msg.err)
			m.setError(errmsg.Format(errmsg.OpPlayerPoll, msg.err))
		} else {
			m.sched.ObservePlayback(msg.status.Position, msg.status.Playing, msg.status.Rate)
		}
		return m, m.pollCmd()

	case playerSeekedMsg:
		if err := m.sched.Seek(time.Duration(msg)); err != nil {
			m.setError(errmsg.Format(errmsg.OpPlaybackSeek, err))
		}
		return m, waitPlayerSeeked(m.clock.Seeked())

	case seekEventMsg:
		m.setMessage(fmt.Sprintf("seek %s → %s", formatPosition(msg.From), formatPosition(msg.To)))
		return m, waitSeekEvent(m.sub)

	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.saveSession()
		return m, tea.Quit
	case "[":
		m.shiftOffset(-offsetStep)
		return m, nil
	case "]":
		m.shiftOffset(offsetStep)
		return m, nil
	case "d":
		m.cycleDensity()
		return m, nil
	}

	// transport keys belong to the followed player
	if m.clock != nil {
		switch msg.String() {
		case " ", "left", "right", "+", "=", "-", "g":
			m.setMessage("transport is controlled by the player")
		}
		return m, nil
	}

	switch msg.String() {
	case " ":
		m.transport.Toggle()
	case "left":
		m.seek(m.transport.Seek(-seekStep))
	case "right":
		m.seek(m.transport.Seek(seekStep))
	case "+", "=":
		m.setMessage(fmt.Sprintf("rate x%.2f", m.transport.StepRate(1)))
	case "-":
		m.setMessage(fmt.Sprintf("rate x%.2f", m.transport.StepRate(-1)))
	case "g":
		m.prompting = true
		m.input.Reset()
		return m, m.input.Focus()
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePrompt()
		return m, nil
	case "enter":
		pos, err := parseJump(m.input.Value())
		m.closePrompt()
		if err != nil {
			m.setError(errmsg.Format(errmsg.OpPlaybackSeek, err))
			return m, nil
		}
		m.seek(m.transport.SeekTo(pos))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) closePrompt() {
	m.prompting = false
	m.input.Blur()
}

func (m *Model) seek(err error) {
	if err != nil {
		m.setError(errmsg.Format(errmsg.OpPlaybackSeek, err))
	}
}

func (m *Model) shiftOffset(d time.Duration) {
	st := m.sched.Settings()
	st.Offset += d
	m.sched.UpdateSettings(st)
	m.setMessage("offset " + formatOffset(st.Offset))

	if m.series == "" {
		return
	}
	if err := m.store.SaveSeriesOffset(m.series, st.Offset); err != nil {
		m.log.Error("preview: save offset failed", "series", m.series, "error", err)
		m.setError(errmsg.FormatWith(errmsg.OpOffsetSave, m.series, err))
	}
}

func (m *Model) cycleDensity() {
	st := m.sched.Settings()
	st.Density = (st.Density + 1) % (maxDensity + 1)
	m.sched.UpdateSettings(st)
	m.store.SaveSettings(st)
	if st.Density == 0 {
		m.setMessage("density off")
	} else {
		m.setMessage(fmt.Sprintf("density %d", st.Density))
	}
}

func (m Model) saveSession() {
	err := m.store.SaveSession(state.Session{
		Settings: m.sched.Settings(),
		Series:   m.series,
		Path:     m.path,
		Position: m.sched.Position(),
	})
	if err != nil {
		m.log.Error("preview: save session failed", "error", err)
	}
}

func (m *Model) setMessage(s string) {
	m.message = s
	m.failed = false
}

func (m *Model) setError(s string) {
	m.message = s
	m.failed = true
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	lines := Render(m.snap, m.width, m.canvasLines(), m.cell)
	if m.prompting {
		lines = append(lines, m.input.View())
	} else {
		lines = append(lines, m.statusBar())
	}
	return strings.Join(lines, "\n")
}

func (m Model) statusBar() string {
	snap := m.snap
	if snap == nil {
		return ""
	}

	icon := "⏸"
	if snap.Playing {
		icon = "▶"
	}
	st := m.sched.Settings()
	left := iconStyle().Render(" "+icon+" ") +
		barStyle().Render(fmt.Sprintf("%s / %s  x%.2f", formatPosition(snap.Position),
			formatPosition(m.transport.Length()), snap.Rate)) +
		mutedStyle().Render(fmt.Sprintf("  offset %s  density %d  on screen %d  dropped %d",
			formatOffset(st.Offset), st.Density, snap.Stats.Active, snap.Stats.Dropped))

	right := ""
	if m.message != "" {
		style := mutedStyle()
		if m.failed {
			style = errorStyle()
		}
		right = style.Render(m.message + " ")
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + barStyle().Render(strings.Repeat(" ", gap)) + right
}
