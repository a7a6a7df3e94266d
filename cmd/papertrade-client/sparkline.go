package main

import (
	"strings"

	"papertrade/internal/domain"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline draws the closes as one block character each, scaled between
// the lowest and highest close. A flat series sits at mid height.
func sparkline(points []domain.ClosePoint) string {
	if len(points) == 0 {
		return ""
	}
	lo, hi := points[0].Close, points[0].Close
	for _, p := range points[1:] {
		if p.Close.LessThan(lo) {
			lo = p.Close
		}
		if p.Close.GreaterThan(hi) {
			hi = p.Close
		}
	}

	top := len(sparkBlocks) - 1
	span := hi.Sub(lo)
	var b strings.Builder
	for _, p := range points {
		idx := top / 2
		if span.IsPositive() {
			f, _ := p.Close.Sub(lo).Div(span).Float64()
			idx = int(f*float64(top) + 0.5)
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
