package batch

import "time"

// Stats holds diagnostic throughput counters. They never affect behaviour.
type Stats struct {
	// Flushes is the number of non-empty flushes.
	Flushes uint64
	// Requests is the total number of requests flushed.
	Requests uint64
	// Largest is the largest single batch.
	Largest int
	// Busy is the cumulative time spent inside Flush.
	Busy time.Duration
}

func (s *Stats) record(n int, d time.Duration) {
	s.Flushes++
	s.Requests += uint64(n)
	if n > s.Largest {
		s.Largest = n
	}
	s.Busy += d
}

// RequestsPerMillisecond returns the flush throughput, or 0 before any
// measurable time was spent.
func (s Stats) RequestsPerMillisecond() float64 {
	ms := float64(s.Busy) / float64(time.Millisecond)
	if ms <= 0 {
		return 0
	}
	return float64(s.Requests) / ms
}
