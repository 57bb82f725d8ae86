package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/config"
	"github.com/llehouerou/danmaku/internal/errmsg"
	"github.com/llehouerou/danmaku/internal/mpris"
	"github.com/llehouerou/danmaku/internal/scheduler"
	"github.com/llehouerou/danmaku/internal/state"
	"github.com/llehouerou/danmaku/internal/ui/preview"
)

// initialCols and initialLines size the engine until the first window size arrives.
const (
	initialCols  = 80
	initialLines = 23
)

var errNoComments = errors.New("no comment file given and none found next to the player's media")

type options struct {
	player string
	series string
	offset float64
	hasOff bool
	path   string
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.player, "mpris", "", "follow an MPRIS player, e.g. mpv")
	flag.StringVar(&opts.series, "series", "", "series key the episode offset is saved under")
	flag.Float64Var(&opts.offset, "offset", 0, "seconds added to every comment")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [comments-file]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "offset" {
			opts.hasOff = true
		}
	})
	opts.path = flag.Arg(0)
	return opts
}

func openLog(level string) (*slog.Logger, func(), error) {
	path, err := xdg.StateFile(filepath.Join("danmaku", "danmaku.log"))
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl}))
	return logger, func() { f.Close() }, nil
}

// resolvePath finds the comment file: an existing path as given, then the
// same name under commentsDir.
func resolvePath(path, commentsDir string) string {
	if path == "" || filepath.IsAbs(path) || commentsDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(commentsDir, path)
}

// lastComment returns the time of the last comment, used as the session length.
func lastComment(comments []comment.Comment) time.Duration {
	var last time.Duration
	for _, c := range comments {
		last = max(last, c.AppearAt)
	}
	return last
}

func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}

	logger, closeLog, err := openLog(cfg.LogLevel)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	defer closeLog()

	player := opts.player
	if player == "" && cfg.HasMPRISConfig() {
		player = cfg.MPRIS.Player
	}

	var follower *mpris.Follower
	if player != "" {
		follower, err = mpris.Follow(player)
		if err != nil {
			return errors.New(errmsg.FormatWith(errmsg.OpPlayerConnect, player, err))
		}
		defer follower.Close()
	}

	path := resolvePath(opts.path, cfg.CommentsDir)
	if path == "" && follower != nil {
		if st, err := follower.Status(); err == nil {
			path = mpris.FindComments(mpris.LocalPath(st.URL))
		}
	}
	if path == "" {
		return errNoComments
	}

	comments, err := comment.Load(path)
	if err != nil {
		return errors.New(errmsg.FormatWith(errmsg.OpCommentsLoad, path, err))
	}

	stateMgr, err := state.Open()
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	defer stateMgr.Close()

	settings := cfg.GetSettings()
	if saved, err := stateMgr.GetSettings(); err != nil {
		logger.Warn("main: load settings failed", "error", err)
	} else if saved != nil {
		saved.Offset = settings.Offset
		settings = *saved
	}
	if opts.series != "" {
		if offset, err := stateMgr.GetSeriesOffset(opts.series); err == nil && offset != 0 {
			settings.Offset = offset
		}
	}
	if opts.hasOff {
		settings.Offset = time.Duration(opts.offset * float64(time.Second))
	}

	sc := cfg.GetScreenConfig()
	cell := preview.Cell{Width: sc.CellWidth, Height: sc.CellHeight}
	sched := scheduler.New(comments, scheduler.Config{
		Settings:  settings,
		Tuning:    cfg.GetTuning(),
		Screen:    cell.Screen(initialCols, initialLines),
		Logger:    logger,
		Estimator: cell.Estimator(),
	})
	defer sched.Close()

	transport := preview.NewTransport(sched, filepath.Base(path), lastComment(comments))

	var clock preview.Clock
	if follower != nil {
		clock = follower
		logger.Info("main: following player", "player", follower.Name(), "comments", path)
	} else {
		if pos, err := stateMgr.GetPosition(path); err == nil && pos > 0 {
			_ = transport.SeekTo(pos)
		}
		adapter, err := mpris.New(transport)
		if err != nil {
			logger.Warn("main: mpris adapter unavailable", "error", err)
		} else {
			defer adapter.Close()
		}
	}

	m := preview.New(preview.Options{
		Scheduler:    sched,
		Transport:    transport,
		Store:        stateMgr,
		Clock:        clock,
		PollInterval: cfg.GetMPRISConfig().PollInterval,
		Cell:         cell,
		Series:       opts.series,
		Path:         path,
		Logger:       logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func main() {
	if err := run(parseFlags()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
