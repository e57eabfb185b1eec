// Package grading converts exam percentages to letter grades.
package grading

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrOutOfRange = errors.New("percentage must be between 0 and 100")

// Band assigns Letter to every percentage at or above Min.
type Band struct {
	Min    float64 `json:"min"`
	Letter string  `json:"letter"`
	Points float64 `json:"points"`
}

// Scale is a set of bands ordered from the highest Min down. The last band
// must start at 0 so every valid percentage has a grade.
type Scale []Band

// DefaultScale is the ten-point scale used when a school configures none.
var DefaultScale = Scale{
	{Min: 90, Letter: "A+", Points: 10},
	{Min: 80, Letter: "A", Points: 9},
	{Min: 70, Letter: "B+", Points: 8},
	{Min: 60, Letter: "B", Points: 7},
	{Min: 50, Letter: "C+", Points: 6},
	{Min: 40, Letter: "C", Points: 5},
	{Min: 33, Letter: "D", Points: 4},
	{Min: 0, Letter: "F", Points: 0},
}

// NewScale sorts bands and checks that they cover 0..100 without
// duplicate thresholds.
func NewScale(bands []Band) (Scale, error) {
	if len(bands) == 0 {
		return nil, errors.New("scale needs at least one band")
	}
	s := make(Scale, len(bands))
	copy(s, bands)
	sort.Slice(s, func(i, j int) bool { return s[i].Min > s[j].Min })

	for i, b := range s {
		if b.Letter == "" {
			return nil, fmt.Errorf("band %d has no letter", i)
		}
		if b.Min < 0 || b.Min > 100 {
			return nil, fmt.Errorf("band %s: %w", b.Letter, ErrOutOfRange)
		}
		if i > 0 && s[i-1].Min == b.Min {
			return nil, fmt.Errorf("bands %s and %s share threshold %v", s[i-1].Letter, b.Letter, b.Min)
		}
	}
	if s[len(s)-1].Min != 0 {
		return nil, errors.New("lowest band must start at 0")
	}
	return s, nil
}

// Grade returns the band containing pct.
func (s Scale) Grade(pct float64) (Band, error) {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return Band{}, ErrOutOfRange
	}
	for _, b := range s {
		if pct >= b.Min {
			return b, nil
		}
	}
	return Band{}, ErrOutOfRange
}

// Percentage converts a raw score to a percentage of outOf.
func Percentage(score, outOf float64) (float64, error) {
	if outOf <= 0 {
		return 0, errors.New("maximum score must be positive")
	}
	if score < 0 || score > outOf {
		return 0, fmt.Errorf("score %v outside 0..%v", score, outOf)
	}
	return score / outOf * 100, nil
}
