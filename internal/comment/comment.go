// Package comment defines bullet comments and their ingestion from files.
package comment

import (
	"strings"
	"time"
)

// MotionClass is the movement pattern of a comment on screen.
type MotionClass int

const (
	ScrollLeft MotionClass = iota
	ScrollRight
	Top
	Bottom
)

// String returns the motion class name.
func (m MotionClass) String() string {
	switch m {
	case ScrollLeft:
		return "ScrollLeft"
	case ScrollRight:
		return "ScrollRight"
	case Top:
		return "Top"
	case Bottom:
		return "Bottom"
	default:
		return "Unknown"
	}
}

// IsScrolling returns true for the horizontally moving classes.
func (m MotionClass) IsScrolling() bool {
	return m == ScrollLeft || m == ScrollRight
}

// Family returns the lane pool the class is allocated from.
// ScrollLeft and ScrollRight share rows.
func (m MotionClass) Family() Family {
	switch m {
	case Top:
		return FamilyTop
	case Bottom:
		return FamilyBottom
	default:
		return FamilyScroll
	}
}

// Family identifies one of the three independent lane pools.
type Family int

const (
	FamilyScroll Family = iota
	FamilyTop
	FamilyBottom
)

// Families lists every lane pool.
var Families = [...]Family{FamilyScroll, FamilyTop, FamilyBottom}

func (f Family) String() string {
	switch f {
	case FamilyScroll:
		return "scroll"
	case FamilyTop:
		return "top"
	case FamilyBottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// MotionFilter is a bitmask of motion families to exclude.
type MotionFilter uint8

const (
	FilterTop MotionFilter = 1 << iota
	FilterBottom
	FilterScroll
)

// Excludes reports whether comments of class m are filtered out.
func (f MotionFilter) Excludes(m MotionClass) bool {
	switch m.Family() {
	case FamilyTop:
		return f&FilterTop != 0
	case FamilyBottom:
		return f&FilterBottom != 0
	default:
		return f&FilterScroll != 0
	}
}

// Source is a bit flag identifying where a comment came from.
// Sources are OR'd together to build a filter mask.
type Source uint16

const (
	SourceBilibili Source = 1 << iota
	SourceGamer
	SourceDandan
	SourceAcfun
	SourceOther
)

// ParseSource maps a source tag to its flag. Tags are matched case-insensitively
// and may carry the bracketed form used by dandanplay user fields ("[BiliBili]uid").
func ParseSource(tag string) Source {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if strings.HasPrefix(tag, "[") {
		if end := strings.Index(tag, "]"); end > 0 {
			tag = tag[1:end]
		}
	}
	switch tag {
	case "bilibili", "bili":
		return SourceBilibili
	case "gamer", "baha":
		return SourceGamer
	case "dandan", "dandanplay", "":
		return SourceDandan
	case "acfun":
		return SourceAcfun
	default:
		return SourceOther
	}
}

// Comment is an authored bullet comment. Comments are never mutated after ingestion.
type Comment struct {
	ID        string
	AppearAt  time.Duration
	Text      string
	Color     string // "#rrggbb"
	Motion    MotionClass
	SourceTag string
}

// Source returns the flag for the comment's source tag.
func (c Comment) Source() Source {
	return ParseSource(c.SourceTag)
}
