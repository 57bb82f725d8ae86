package comment

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// lrcSourceTag marks comments produced from lyrics files.
const lrcSourceTag = "lrc"

// Matches timestamps like [00:12.34] or [00:12:34] or [00:12]
var timestampRe = regexp.MustCompile(`\[(\d+):(\d+)(?:[.:](\d+))?\]`)

// ParseLRC turns timestamped lyric lines into Bottom comments.
// Lines with several timestamps ([00:30.00][01:30.00]Chorus) yield one comment
// per timestamp. Metadata tags and untimed lines are ignored.
func ParseLRC(r io.Reader) ([]Comment, error) {
	var comments []Comment
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		matches := timestampRe.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 {
			continue
		}

		lastMatch := matches[len(matches)-1]
		text := strings.TrimSpace(line[lastMatch[1]:])
		if text == "" {
			continue
		}

		for _, match := range matches {
			ts, ok := parseTimestamp(line[match[0]:match[1]])
			if !ok {
				continue
			}
			comments = append(comments, Comment{
				AppearAt:  ts,
				Text:      text,
				Color:     DefaultColor,
				Motion:    Bottom,
				SourceTag: lrcSourceTag,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].AppearAt < comments[j].AppearAt
	})
	for i := range comments {
		comments[i].ID = "lrc" + strconv.Itoa(i)
	}

	return comments, nil
}

// parseTimestamp parses a timestamp like [00:12.34] into a Duration.
func parseTimestamp(s string) (time.Duration, bool) {
	matches := timestampRe.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}

	minutes, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(matches[2])
	if err != nil {
		return 0, false
	}

	var millis int
	if matches[3] != "" {
		millis, err = strconv.Atoi(matches[3])
		if err != nil {
			return 0, false
		}
		// .xx is centiseconds, .xxx milliseconds
		if len(matches[3]) == 2 {
			millis *= 10
		}
	}

	return time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, true
}
