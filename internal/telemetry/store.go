package telemetry

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the sample history when no capacity is given.
const DefaultCapacity = 1000

// Store is a fixed-capacity ring buffer of samples. Append evicts the
// oldest entry once capacity is reached. All methods are safe for
// concurrent use; appends are O(1).
type Store struct {
	mu    sync.RWMutex
	buf   []Sample
	head  int // index of the oldest entry when full
	count int
}

// NewStore returns a store retaining the most recent cap samples.
// Non-positive cap falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{buf: make([]Sample, capacity)}
}

// Append records one sample, evicting the oldest when full.
func (s *Store) Append(sm Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = sm
		s.count++
		return
	}
	s.buf[s.head] = sm
	s.head = (s.head + 1) % len(s.buf)
}

// Len reports the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// History returns the retained samples oldest-first. A positive limit
// truncates to the most recent limit entries.
func (s *Store) History(limit int) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Sample, n)
	// start at the (count-n)-th oldest entry
	for i := 0; i < n; i++ {
		out[i] = s.buf[(s.head+s.count-n+i)%len(s.buf)]
	}
	return out
}

// Latest returns the most recent sample, if any.
func (s *Store) Latest() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return Sample{}, false
	}
	return s.buf[(s.head+s.count-1)%len(s.buf)], true
}

// AverageOver computes the mean of CPU/memory/disk percentages and the
// per-second network throughput over samples taken within the last d.
// ok is false when no sample qualifies.
func (s *Store) AverageOver(d time.Duration) (Averages, bool) {
	cutoff := time.Now().Add(-d)
	var (
		avg                  Averages
		firstSent, firstRecv uint64
		lastSent, lastRecv   uint64
		first, last          time.Time
	)
	s.mu.RLock()
	for i := 0; i < s.count; i++ {
		sm := s.buf[(s.head+i)%len(s.buf)]
		if sm.Timestamp.Before(cutoff) {
			continue
		}
		if avg.SampleCount == 0 {
			firstSent, firstRecv, first = sm.NetworkBytesSent, sm.NetworkBytesRecv, sm.Timestamp
		}
		lastSent, lastRecv, last = sm.NetworkBytesSent, sm.NetworkBytesRecv, sm.Timestamp
		avg.CPUPercent += sm.CPUPercent
		avg.MemoryPercent += sm.MemoryPercent
		avg.DiskPercent += sm.DiskPercent
		avg.SampleCount++
	}
	s.mu.RUnlock()
	if avg.SampleCount == 0 {
		return Averages{}, false
	}
	n := float64(avg.SampleCount)
	avg.CPUPercent /= n
	avg.MemoryPercent /= n
	avg.DiskPercent /= n
	// Counters are cumulative since boot; throughput is the delta over
	// the qualifying span.
	if span := last.Sub(first).Seconds(); span > 0 && lastSent >= firstSent && lastRecv >= firstRecv {
		avg.NetworkSentPerSec = float64(lastSent-firstSent) / span
		avg.NetworkRecvPerSec = float64(lastRecv-firstRecv) / span
	}
	return avg, true
}

// Trend returns the newest-minus-oldest CPU and memory delta over the
// last window samples (all retained samples when fewer are held).
func (s *Store) Trend(window int) Trend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.count
	if window > 0 && window < n {
		n = window
	}
	if n < 2 {
		return Trend{Window: n}
	}
	oldest := s.buf[(s.head+s.count-n)%len(s.buf)]
	newest := s.buf[(s.head+s.count-1)%len(s.buf)]
	return Trend{
		CPUDelta:    newest.CPUPercent - oldest.CPUPercent,
		MemoryDelta: newest.MemoryPercent - oldest.MemoryPercent,
		Window:      n,
	}
}
