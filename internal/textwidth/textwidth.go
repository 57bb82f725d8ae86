// Package textwidth estimates the rendered pixel width of comment text.
package textwidth

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// DefaultCacheSize bounds the number of cached measurements.
const DefaultCacheSize = 2048

// narrowRatio is the width of a narrow glyph relative to the font size.
const narrowRatio = 0.6

// Estimator measures text at a font size in pixels.
type Estimator interface {
	Width(text string, fontSize float64) float64
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(text string, fontSize float64) float64

// Width calls f.
func (f EstimatorFunc) Width(text string, fontSize float64) float64 {
	return f(text, fontSize)
}

// Approximate treats every wide grapheme (CJK, fullwidth forms, emoji) as one
// em and every other grapheme as 0.6 em.
var Approximate = EstimatorFunc(approximate)

func approximate(text string, fontSize float64) float64 {
	var width float64
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		if runewidth.StringWidth(gr.Str()) >= 2 {
			width += fontSize
		} else {
			width += fontSize * narrowRatio
		}
	}
	return width
}

type cacheKey struct {
	fontSize float64
	text     string
}

// Cache memoizes another estimator, keyed by font size and text.
// Least recently used entries are evicted once size is reached.
type Cache struct {
	est     Estimator
	entries *lru.Cache[cacheKey, float64]
}

// NewCache wraps est with a bounded cache. A non-positive size uses DefaultCacheSize.
func NewCache(est Estimator, size int) *Cache {
	if est == nil {
		est = Approximate
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, _ := lru.New[cacheKey, float64](size) // only fails for size <= 0
	return &Cache{est: est, entries: entries}
}

// Width returns the cached measurement, computing it on a miss.
func (c *Cache) Width(text string, fontSize float64) float64 {
	key := cacheKey{fontSize: fontSize, text: text}
	if w, ok := c.entries.Get(key); ok {
		return w
	}
	w := c.est.Width(text, fontSize)
	c.entries.Add(key, w)
	return w
}

// Len returns the number of cached measurements.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached measurement.
func (c *Cache) Purge() {
	c.entries.Purge()
}
