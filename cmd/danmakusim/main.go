// danmakusim replays a comment file through the scheduler on a simulated
// clock and prints what happened to the comments.
package main

import (
	"cmp"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/danmaku/internal/clock"
	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/config"
	"github.com/llehouerou/danmaku/internal/errmsg"
	"github.com/llehouerou/danmaku/internal/scheduler"
)

// seekAt jumps to To once the session reaches At.
type seekAt struct {
	At time.Duration
	To time.Duration
}

type seekList []seekAt

func (l *seekList) String() string {
	parts := make([]string, len(*l))
	for i, s := range *l {
		parts[i] = s.At.String() + ":" + s.To.String()
	}
	return strings.Join(parts, ",")
}

func (l *seekList) Set(v string) error {
	at, to, ok := strings.Cut(v, ":")
	if !ok {
		return fmt.Errorf("seek %q: expected at:to, e.g. 2m:30s", v)
	}
	a, err := time.ParseDuration(at)
	if err != nil {
		return fmt.Errorf("seek %q: %w", v, err)
	}
	b, err := time.ParseDuration(to)
	if err != nil {
		return fmt.Errorf("seek %q: %w", v, err)
	}
	if a < 0 || b < 0 {
		return fmt.Errorf("seek %q: negative position", v)
	}
	*l = append(*l, seekAt{At: a, To: b})
	return nil
}

type simOptions struct {
	Duration time.Duration
	Tick     time.Duration
	Rate     float64
	Seeks    []seekAt
}

type result struct {
	Stats   scheduler.Stats
	Frames  int
	Peak    int // most bullets on screen at once
	Elapsed time.Duration
}

var errBadOptions = errors.New("tick and rate must be positive")

// simulate plays comments from zero to opts.Duration, ticking every opts.Tick
// of simulated wall time.
func simulate(comments []comment.Comment, cfg scheduler.Config, opts simOptions) (result, error) {
	if opts.Tick <= 0 || opts.Rate <= 0 {
		return result{}, errBadOptions
	}

	tp := clock.NewMockTimeProvider(time.Unix(0, 0))
	cfg.TimeProvider = tp
	s := scheduler.New(comments, cfg)
	defer s.Close()

	seeks := slices.Clone(opts.Seeks)
	slices.SortStableFunc(seeks, func(a, b seekAt) int {
		return cmp.Compare(a.At, b.At)
	})

	s.SetRate(opts.Rate)
	s.SetPlaying(true)

	var res result
	start := tp.Now()
	for s.Position() < opts.Duration {
		tp.Advance(opts.Tick)
		snap := s.Tick()
		res.Frames++
		res.Peak = max(res.Peak, len(snap.Bullets))

		for len(seeks) > 0 && s.Position() >= seeks[0].At {
			if err := s.Seek(seeks[0].To); err != nil {
				return res, err
			}
			seeks = seeks[1:]
		}
	}
	res.Stats = s.Stats()
	res.Elapsed = tp.Now().Sub(start)
	return res, nil
}

func lastComment(comments []comment.Comment) time.Duration {
	var last time.Duration
	for _, c := range comments {
		last = max(last, c.AppearAt)
	}
	return last
}

func report(w io.Writer, path string, size int64, total int, res result) {
	st := res.Stats
	fmt.Fprintf(w, "%s (%s, %s comments)\n", filepath.Base(path), humanize.IBytes(uint64(max(size, 0))), humanize.Comma(int64(total)))
	fmt.Fprintf(w, "  simulated  %s in %s frames\n", res.Elapsed.Round(time.Millisecond), humanize.Comma(int64(res.Frames)))
	fmt.Fprintf(w, "  queued     %s (invalid %s, filtered %s, capped %s)\n",
		humanize.Comma(int64(st.Queued)), humanize.Comma(int64(st.Invalid)),
		humanize.Comma(int64(st.Filtered)), humanize.Comma(int64(st.Capped)))
	fmt.Fprintf(w, "  spawned    %s (deferred %s, readmitted %s)\n",
		humanize.Comma(int64(st.Spawned)), humanize.Comma(int64(st.Deferred)), humanize.Comma(int64(st.Readmitted)))
	fmt.Fprintf(w, "  dropped    %s\n", humanize.Comma(int64(st.Dropped)))
	fmt.Fprintf(w, "  expired    %s\n", humanize.Comma(int64(st.Expired)))
	fmt.Fprintf(w, "  seeks      %s\n", humanize.Comma(int64(st.Seeks)))
	fmt.Fprintf(w, "  peak       %s on screen\n", humanize.Comma(int64(res.Peak)))
	if st.Spawned+st.Dropped > 0 {
		ratio := float64(st.Dropped) / float64(st.Spawned+st.Dropped) * 100
		fmt.Fprintf(w, "  drop rate  %s%%\n", humanize.FtoaWithDigits(ratio, 2))
	}
}

func main() {
	var (
		opts    simOptions
		seeks   seekList
		verbose bool
	)
	flag.DurationVar(&opts.Duration, "duration", 0, "simulated length (default: last comment + 10s)")
	flag.DurationVar(&opts.Tick, "tick", 16*time.Millisecond, "frame interval")
	flag.Float64Var(&opts.Rate, "rate", 1, "playback rate")
	flag.Var(&seeks, "seek", "seek at:to, may be repeated (e.g. 2m:30s)")
	flag.BoolVar(&verbose, "v", false, "log scheduler decisions to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: danmakusim [flags] <comments-file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpInitialize, err))
		os.Exit(1)
	}

	comments, err := comment.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.FormatWith(errmsg.OpCommentsLoad, path, err))
		os.Exit(1)
	}
	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}

	logger := slog.New(slog.DiscardHandler)
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if opts.Duration <= 0 {
		opts.Duration = lastComment(comments) + 10*time.Second
	}
	opts.Seeks = seeks

	res, err := simulate(comments, scheduler.Config{
		Settings: cfg.GetSettings(),
		Tuning:   cfg.GetTuning(),
		Logger:   logger,
	}, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	report(os.Stdout, path, size, len(comments), res)
}
