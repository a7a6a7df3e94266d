package httpapi

import (
	"strconv"
	"strings"

	"papertrade/internal/domain"
)

const (
	chartWidth  = 320
	chartHeight = 120
	chartPad    = 8
)

// Chart is an SVG line chart of daily closes.
type Chart struct {
	Width  int
	Height int
	// Points is the value of the polyline points attribute.
	Points string
	Labels []string
	Min    string
	Max    string
}

// Empty reports whether there is nothing to draw.
func (c Chart) Empty() bool { return c.Points == "" }

// BuildChart scales closes into a width x height box. A single point is
// drawn at the centre; a flat series along the middle.
func BuildChart(points []domain.ClosePoint, width, height int) Chart {
	c := Chart{Width: width, Height: height}
	if len(points) == 0 {
		return c
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
	c.Min, c.Max = lo.StringFixed(2), hi.StringFixed(2)

	low, _ := lo.Float64()
	span, _ := hi.Sub(lo).Float64()
	innerW := float64(width - 2*chartPad)
	innerH := float64(height - 2*chartPad)

	var b strings.Builder
	for i, p := range points {
		x := float64(width) / 2
		if len(points) > 1 {
			x = chartPad + innerW*float64(i)/float64(len(points)-1)
		}
		y := float64(height) / 2
		if span > 0 {
			v, _ := p.Close.Float64()
			y = chartPad + innerH*(1-(v-low)/span)
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
		c.Labels = append(c.Labels, p.Date)
	}
	c.Points = b.String()
	return c
}
