// Package pipeline turns authored comments into the ordered, filtered queue
// the scheduler consumes.
package pipeline

import (
	"cmp"
	"slices"
	"time"

	"github.com/llehouerou/danmaku/internal/comment"
)

// Defaults used when Options leave a field zero.
const (
	DefaultGrace       = 8 * time.Second
	DefaultBucketWidth = 8 * time.Second
	MaxDensity         = 3
)

// Options controls one pipeline run.
type Options struct {
	Offset       time.Duration // per-episode shift added to every comment
	SourceFilter comment.Source
	MotionFilter comment.MotionFilter

	// Density limiting is disabled at level 0. Comments at or before Grace are
	// never capped; later ones are counted per BucketWidth window.
	Density     int
	Grace       time.Duration
	BucketWidth time.Duration
	VisibleRows int
}

// Result is the schedule-ready queue plus what was removed and why.
type Result struct {
	Comments []comment.Comment
	Invalid  int // empty text or duplicate ID
	Filtered int // source or motion filter, or moved before zero by the offset
	Capped   int // density limit
}

// Build runs the pipeline. The input slice is not modified.
func Build(raw []comment.Comment, opts Options) Result {
	var res Result
	seen := make(map[string]struct{}, len(raw))
	out := make([]comment.Comment, 0, len(raw))

	for _, c := range raw {
		if c.Text == "" {
			res.Invalid++
			continue
		}
		if _, dup := seen[c.ID]; dup {
			res.Invalid++
			continue
		}
		seen[c.ID] = struct{}{}

		c.AppearAt += opts.Offset
		if c.AppearAt < 0 {
			res.Filtered++
			continue
		}
		if opts.SourceFilter&c.Source() != 0 || opts.MotionFilter.Excludes(c.Motion) {
			res.Filtered++
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b comment.Comment) int {
		return cmp.Compare(a.AppearAt, b.AppearAt)
	})

	if opts.Density > 0 {
		var capped int
		out, capped = limitDensity(out, opts)
		res.Capped = capped
	}

	res.Comments = out
	return res
}

type bucketCount struct {
	fixed  int
	scroll int
}

// limitDensity drops comments beyond the per-bucket caps. Input must be sorted.
func limitDensity(sorted []comment.Comment, opts Options) ([]comment.Comment, int) {
	grace := opts.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	width := opts.BucketWidth
	if width <= 0 {
		width = DefaultBucketWidth
	}
	rows := max(opts.VisibleRows, 1)
	density := min(opts.Density, MaxDensity)

	fixedCap := max(rows-1, 1)
	scrollCap := (9 - density*2) * rows

	buckets := make(map[int64]*bucketCount)
	kept := sorted[:0]
	dropped := 0

	for _, c := range sorted {
		if c.AppearAt <= grace {
			kept = append(kept, c)
			continue
		}
		idx := int64(c.AppearAt / width)
		b, ok := buckets[idx]
		if !ok {
			b = &bucketCount{}
			buckets[idx] = b
		}
		if c.Motion.IsScrolling() {
			if b.scroll >= scrollCap {
				dropped++
				continue
			}
			b.scroll++
		} else {
			if b.fixed >= fixedCap {
				dropped++
				continue
			}
			b.fixed++
		}
		kept = append(kept, c)
	}
	return kept, dropped
}
