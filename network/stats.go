package network

import (
	"sync"
	"time"
)

// Stats tracks transfer throughput for hung detection and reporting.
type Stats struct {
	mu            sync.Mutex
	duration      time.Duration
	bytes         int64
	finishedFiles int64
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records a successful transfer of size bytes.
func (s *Stats) Update(size int64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duration += d
	s.bytes += size
	s.finishedFiles++
}

// Expected returns the expected transfer duration of size bytes at the observed
// throughput, or 0 when nothing finished yet.
func (s *Stats) Expected(size int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedFiles == 0 {
		return 0
	}
	if s.bytes == 0 {
		return s.duration / time.Duration(s.finishedFiles)
	}
	return time.Duration(float64(s.duration) * float64(size) / float64(s.bytes))
}

// FinishedCount returns the number of completed transfers.
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedFiles
}

// TotalBytes returns the number of bytes transferred successfully.
func (s *Stats) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
