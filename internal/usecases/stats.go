package usecases

import "sync/atomic"

// Stats holds process counters. Build one at startup and pass it to the
// components that report into it; a nil *Stats is valid and records
// nothing.
type Stats struct {
	fetches         atomic.Int64
	branchFailures  atomic.Int64
	truncatedWalks  atomic.Int64
	listingHits     atomic.Int64
	listingMisses   atomic.Int64
	listingFailures atomic.Int64
	pagesServed     atomic.Int64
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{}
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Fetches         int64 `json:"fetches"`
	BranchFailures  int64 `json:"branchFailures"`
	TruncatedWalks  int64 `json:"truncatedWalks"`
	ListingHits     int64 `json:"listingCacheHits"`
	ListingMisses   int64 `json:"listingCacheMisses"`
	ListingFailures int64 `json:"listingFailures"`
	PagesServed     int64 `json:"pagesServed"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Fetches:         s.fetches.Load(),
		BranchFailures:  s.branchFailures.Load(),
		TruncatedWalks:  s.truncatedWalks.Load(),
		ListingHits:     s.listingHits.Load(),
		ListingMisses:   s.listingMisses.Load(),
		ListingFailures: s.listingFailures.Load(),
		PagesServed:     s.pagesServed.Load(),
	}
}

func (s *Stats) fetch() {
	if s != nil {
		s.fetches.Add(1)
	}
}

func (s *Stats) branchFailure() {
	if s != nil {
		s.branchFailures.Add(1)
	}
}

func (s *Stats) truncated() {
	if s != nil {
		s.truncatedWalks.Add(1)
	}
}

func (s *Stats) listing(hit bool) {
	switch {
	case s == nil:
	case hit:
		s.listingHits.Add(1)
	default:
		s.listingMisses.Add(1)
	}
}

func (s *Stats) listingFailure() {
	if s != nil {
		s.listingFailures.Add(1)
	}
}

func (s *Stats) page() {
	if s != nil {
		s.pagesServed.Add(1)
	}
}
