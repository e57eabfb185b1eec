package grading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScaleGrade(t *testing.T) {
	tests := []struct {
		pct    float64
		letter string
	}{
		{100, "A+"},
		{90, "A+"},
		{89.99, "A"},
		{75, "B+"},
		{60, "B"},
		{55, "C+"},
		{40, "C"},
		{33, "D"},
		{32.5, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		band, err := DefaultScale.Grade(tt.pct)
		require.NoError(t, err)
		assert.Equal(t, tt.letter, band.Letter, "pct %v", tt.pct)
	}
}

func TestGradeRejectsOutOfRange(t *testing.T) {
	for _, pct := range []float64{-0.1, 100.1, math.NaN()} {
		_, err := DefaultScale.Grade(pct)
		assert.ErrorIs(t, err, ErrOutOfRange, "pct %v", pct)
	}
}

func TestNewScale(t *testing.T) {
	s, err := NewScale([]Band{
		{Min: 0, Letter: "Fail"},
		{Min: 50, Letter: "Pass"},
		{Min: 85, Letter: "Distinction"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Distinction", s[0].Letter, "bands sorted high to low")

	band, err := s.Grade(60)
	require.NoError(t, err)
	assert.Equal(t, "Pass", band.Letter)

	_, err = NewScale([]Band{{Min: 10, Letter: "X"}})
	assert.Error(t, err, "scale must reach 0")

	_, err = NewScale([]Band{{Min: 0, Letter: "A"}, {Min: 0, Letter: "B"}})
	assert.Error(t, err, "duplicate thresholds")

	_, err = NewScale(nil)
	assert.Error(t, err)
}

func TestPercentage(t *testing.T) {
	pct, err := Percentage(45, 50)
	require.NoError(t, err)
	assert.InDelta(t, 90, pct, 1e-9)

	_, err = Percentage(51, 50)
	assert.Error(t, err)
	_, err = Percentage(1, 0)
	assert.Error(t, err)
}
