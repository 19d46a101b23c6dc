package ui

import "strings"

// sparkChars are the block characters used for sparkline bars, from
// lowest to highest.
var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps a ring buffer of throughput samples and renders them
// as a row of block characters scaled against the observed maximum.
type Sparkline struct {
	samples []float64
	head    int
	count   int
}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add appends a sample, evicting the oldest once the buffer is full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++
}

// Count returns the number of samples added so far.
func (s *Sparkline) Count() int {
	return s.count
}

// Clear drops all samples.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
}

// Render draws the most recent samples into width characters. Positions
// with no sample yet render as spaces so the line does not jump around
// as samples arrive.
func (s *Sparkline) Render(width int) string {
	if width <= 0 || width > len(s.samples) {
		width = len(s.samples)
	}

	recent := s.recent(width)

	max := 0.0
	for _, v := range recent {
		if v > max {
			max = v
		}
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	for i := width - len(recent); i > 0; i-- {
		sb.WriteRune(' ')
	}
	for _, v := range recent {
		idx := 0
		if max > 0 {
			idx = int(v / max * float64(len(sparkChars)-1))
			if idx < 0 {
				idx = 0
			}
			if idx >= len(sparkChars) {
				idx = len(sparkChars) - 1
			}
		}
		sb.WriteRune(sparkChars[idx])
	}
	return sb.String()
}

// recent returns up to n samples in arrival order, newest last.
func (s *Sparkline) recent(n int) []float64 {
	have := s.count
	if have > len(s.samples) {
		have = len(s.samples)
	}
	if n > have {
		n = have
	}
	out := make([]float64, 0, n)
	// head points at the slot the next sample will take, so the newest
	// sample sits just behind it.
	for i := n; i > 0; i-- {
		idx := (s.head - i + len(s.samples)) % len(s.samples)
		out = append(out, s.samples[idx])
	}
	return out
}
