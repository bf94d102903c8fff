package ratestore

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RateType distinguishes the three tracked rate families.
type RateType string

const (
	RateStaking   RateType = "staking"
	RateLending   RateType = "lending"
	RateBorrowing RateType = "borrowing"
)

// Snapshot is the most recently fetched value for a protocol metric.
type Snapshot struct {
	Protocol   string
	Value      decimal.Decimal
	CapturedAt time.Time
	Source     string
}

// Point is a single history observation.
type Point struct {
	At    time.Time
	Value decimal.Decimal
}

// Trend summarises recent history for a (protocol, rate type) pair.
type Trend struct {
	Protocol   string
	RateType   RateType
	Current    decimal.Decimal
	Average    decimal.Decimal
	Min        decimal.Decimal
	Max        decimal.Decimal
	Direction  string
	DataPoints int
}

// Store caches the last-fetched rate per (protocol, rate type) with a bounded
// history ring for trend queries. Snapshots are superseded, never merged.
type Store struct {
	mu         sync.RWMutex
	snapshots  map[RateType]map[string]Snapshot
	history    map[string][]Point
	maxHistory int
	now        func() time.Time
}

// New constructs a Store keeping at most maxHistory points per series.
func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &Store{
		snapshots:  make(map[RateType]map[string]Snapshot),
		history:    make(map[string][]Point),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// Get returns the cached snapshot for a protocol, if any.
func (s *Store) Get(rateType RateType, protocol string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[rateType][protocol]
	return snap, ok
}

// Put overwrites the snapshot for a protocol and appends to its history ring.
func (s *Store) Put(rateType RateType, protocol string, value decimal.Decimal, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now().UTC()
	if s.snapshots[rateType] == nil {
		s.snapshots[rateType] = make(map[string]Snapshot)
	}
	s.snapshots[rateType][protocol] = Snapshot{
		Protocol:   protocol,
		Value:      value,
		CapturedAt: at,
		Source:     source,
	}

	key := historyKey(rateType, protocol)
	points := append(s.history[key], Point{At: at, Value: value})
	if len(points) > s.maxHistory {
		points = points[len(points)-s.maxHistory:]
	}
	s.history[key] = points
}

// IsStale reports whether the snapshot is absent or older than maxAge.
func (s *Store) IsStale(rateType RateType, protocol string, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[rateType][protocol]
	if !ok {
		return true
	}
	return s.now().Sub(snap.CapturedAt) >= maxAge
}

// All returns every cached snapshot of the given type, freshest first by
// protocol name for deterministic iteration.
func (s *Store) All(rateType RateType) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(s.snapshots[rateType]))
	for _, snap := range s.snapshots[rateType] {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Protocol < snaps[j].Protocol })
	return snaps
}

// Fresh returns snapshots of the given type no older than maxAge.
func (s *Store) Fresh(rateType RateType, maxAge time.Duration) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-maxAge)
	snaps := make([]Snapshot, 0, len(s.snapshots[rateType]))
	for _, snap := range s.snapshots[rateType] {
		if snap.CapturedAt.After(cutoff) {
			snaps = append(snaps, snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Protocol < snaps[j].Protocol })
	return snaps
}

// Best returns the highest (or lowest, for borrowing) rate of the given type.
func (s *Store) Best(rateType RateType) (Snapshot, bool) {
	snaps := s.All(rateType)
	if len(snaps) == 0 {
		return Snapshot{}, false
	}

	best := snaps[0]
	for _, snap := range snaps[1:] {
		if rateType == RateBorrowing {
			if snap.Value.LessThan(best.Value) {
				best = snap
			}
			continue
		}
		if snap.Value.GreaterThan(best.Value) {
			best = snap
		}
	}
	return best, true
}

// TrendSince summarises history newer than cutoff for a series.
func (s *Store) TrendSince(rateType RateType, protocol string, cutoff time.Time) (Trend, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recent []Point
	for _, p := range s.history[historyKey(rateType, protocol)] {
		if !p.At.Before(cutoff) {
			recent = append(recent, p)
		}
	}
	if len(recent) == 0 {
		return Trend{}, false
	}

	first := recent[0].Value
	last := recent[len(recent)-1].Value
	minV, maxV, sum := first, first, decimal.Zero
	for _, p := range recent {
		if p.Value.LessThan(minV) {
			minV = p.Value
		}
		if p.Value.GreaterThan(maxV) {
			maxV = p.Value
		}
		sum = sum.Add(p.Value)
	}

	direction := "down"
	if last.GreaterThan(first) {
		direction = "up"
	}

	return Trend{
		Protocol:   protocol,
		RateType:   rateType,
		Current:    last,
		Average:    sum.Div(decimal.NewFromInt(int64(len(recent)))),
		Min:        minV,
		Max:        maxV,
		Direction:  direction,
		DataPoints: len(recent),
	}, true
}

func historyKey(rateType RateType, protocol string) string {
	return protocol + "_" + string(rateType)
}
