package app

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// FrameStats accumulates per-frame CPU timings and counters and reports
// averages over a window of frames.
type FrameStats struct {
	totals map[string]time.Duration
	starts map[string]time.Time
	counts map[string]int
	order  []string
	frames int
}

func NewFrameStats() *FrameStats {
	return &FrameStats{
		totals: make(map[string]time.Duration),
		starts: make(map[string]time.Time),
		counts: make(map[string]int),
	}
}

func (s *FrameStats) Begin(name string) {
	s.starts[name] = time.Now()
	if !slices.Contains(s.order, name) {
		s.order = append(s.order, name)
	}
}

func (s *FrameStats) End(name string) {
	if start, ok := s.starts[name]; ok {
		s.totals[name] += time.Since(start)
		delete(s.starts, name)
	}
}

// Abort closes an open scope without recording it, for frames that were
// dropped before they completed.
func (s *FrameStats) Abort(name string) {
	delete(s.starts, name)
}

// Add records an already measured duration for name.
func (s *FrameStats) Add(name string, d time.Duration) {
	if !slices.Contains(s.order, name) {
		s.order = append(s.order, name)
	}
	s.totals[name] += d
}

func (s *FrameStats) SetCount(name string, n int) {
	s.counts[name] = n
}

func (s *FrameStats) FrameDone() {
	s.frames++
}

func (s *FrameStats) Frames() int { return s.frames }

// Average is the mean time spent in name per completed frame.
func (s *FrameStats) Average(name string) time.Duration {
	if s.frames == 0 {
		return 0
	}
	return s.totals[name] / time.Duration(s.frames)
}

// Reset starts a new averaging window. Scope order and counters are kept.
func (s *FrameStats) Reset() {
	for k := range s.totals {
		s.totals[k] = 0
	}
	s.frames = 0
}

func (s *FrameStats) String() string {
	var sb strings.Builder
	for i, name := range s.order {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s=%.2fms", name, float64(s.Average(name).Microseconds())/1000.0)
	}
	keys := make([]string, 0, len(s.counts))
	for k := range s.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s=%d", k, s.counts[k])
	}
	return sb.String()
}
