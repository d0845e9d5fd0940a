package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"unreplied/internal/domain"
	"unreplied/pkg/log"
)

// PageFetcher computes one unreplied page. FetchUnrepliedUseCase
// implements it.
type PageFetcher interface {
	Execute(ctx context.Context, req PageRequest) (*domain.UnrepliedPage, error)
}

// PageState is a copy of a session's pagination state.
type PageState struct {
	FID            uint64                   `json:"fid"`
	DayFilter      domain.DayFilter         `json:"dayFilter"`
	Limit          int                      `json:"limit"`
	UnrepliedCount int                      `json:"unrepliedCount"`
	Accumulated    []domain.UnrepliedDetail `json:"unrepliedDetails"`
	Message        string                   `json:"message"`
	Cursor         *string                  `json:"nextCursor"`
	HasMore        bool                     `json:"hasMore"`
	IsLoadingMore  bool                     `json:"isLoadingMore"`
	Loading        bool                     `json:"loading"`
	Err            string                   `json:"error,omitempty"`
	Partial        bool                     `json:"partial,omitempty"` // some loaded page may undercount
	Generation     uint64                   `json:"generation"`

	// Skipped is set on the value returned by a call whose work was not
	// applied: a guarded LoadNextPage, or a load superseded by a newer one.
	Skipped bool `json:"skipped,omitempty"`
}

// Session holds the accumulated pages of one account view. All state
// changes happen under mu; mu is never held while fetching.
type Session struct {
	id      string
	fetcher PageFetcher

	mu        sync.Mutex
	fid       uint64
	filter    domain.DayFilter
	limit     int
	acc       []domain.UnrepliedDetail
	seen      map[string]struct{}
	cursor    string
	hasMore   bool
	loading   bool
	loadMore  bool
	lastErr   string
	partial   bool
	gen       uint64
	touchedAt time.Time
}

func newSession(id string, fetcher PageFetcher, fid uint64, filter domain.DayFilter, limit int) *Session {
	return &Session{
		id:        id,
		fetcher:   fetcher,
		fid:       fid,
		filter:    filter,
		limit:     limit,
		seen:      make(map[string]struct{}),
		touchedAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current state.
func (s *Session) Snapshot() PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LoadFirstPage resets the session to fid and filter and loads the first
// page. Results of loads started before this call are discarded.
func (s *Session) LoadFirstPage(ctx context.Context, fid uint64, filter domain.DayFilter) (PageState, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.fid = fid
	s.filter = filter
	s.acc = nil
	s.seen = make(map[string]struct{})
	s.cursor = ""
	s.hasMore = false
	s.loadMore = false
	s.loading = true
	s.lastErr = ""
	s.partial = false
	req := PageRequest{FID: s.fid, Limit: s.limit, DayFilter: s.filter}
	s.mu.Unlock()

	log.GlobalDebugCtx(ctx, "session first page", "session_id", s.id, "fid", fid, "generation", gen)
	return s.replace(ctx, gen, req)
}

// Refresh reloads the first page bypassing the listing cache. The
// accumulated list is replaced only when the reload succeeds.
func (s *Session) Refresh(ctx context.Context) (PageState, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loadMore = false
	s.loading = true
	s.lastErr = ""
	req := PageRequest{FID: s.fid, Limit: s.limit, DayFilter: s.filter, BypassCache: true}
	s.mu.Unlock()

	log.GlobalDebugCtx(ctx, "session refresh", "session_id", s.id, "generation", gen)
	return s.replace(ctx, gen, req)
}

// LoadNextPage appends the next page. It returns immediately with Skipped
// set when there is nothing more to load or another load is running.
func (s *Session) LoadNextPage(ctx context.Context) (PageState, error) {
	s.mu.Lock()
	if !s.hasMore || s.loadMore || s.loading {
		st := s.snapshotLocked()
		s.mu.Unlock()
		st.Skipped = true
		return st, nil
	}
	s.loadMore = true
	gen := s.gen
	req := PageRequest{FID: s.fid, Limit: s.limit, Cursor: s.cursor, DayFilter: s.filter}
	s.mu.Unlock()

	page, err := s.fetcher.Execute(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		st := s.snapshotLocked()
		st.Skipped = true
		return st, nil
	}
	s.loadMore = false
	if err != nil {
		s.fail(err)
		return s.snapshotLocked(), err
	}
	for _, d := range page.UnrepliedDetails {
		if _, dup := s.seen[d.CastHash]; dup {
			continue
		}
		s.seen[d.CastHash] = struct{}{}
		s.acc = append(s.acc, d)
	}
	s.partial = s.partial || page.Partial
	s.setCursor(page.NextCursor)
	return s.snapshotLocked(), nil
}

// replace runs a top-level load and swaps the accumulator on success.
func (s *Session) replace(ctx context.Context, gen uint64, req PageRequest) (PageState, error) {
	page, err := s.fetcher.Execute(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		st := s.snapshotLocked()
		st.Skipped = true
		return st, nil
	}
	s.loading = false
	if err != nil {
		s.fail(err)
		return s.snapshotLocked(), err
	}

	acc := make([]domain.UnrepliedDetail, 0, len(page.UnrepliedDetails))
	seen := make(map[string]struct{}, len(page.UnrepliedDetails))
	for _, d := range page.UnrepliedDetails {
		if _, dup := seen[d.CastHash]; dup {
			continue
		}
		seen[d.CastHash] = struct{}{}
		acc = append(acc, d)
	}
	s.acc = acc
	s.seen = seen
	s.partial = page.Partial
	s.setCursor(page.NextCursor)
	return s.snapshotLocked(), nil
}

func (s *Session) setCursor(next *string) {
	s.cursor = ""
	if next != nil {
		s.cursor = *next
	}
	s.hasMore = s.cursor != ""
	s.lastErr = ""
}

// fail keeps the accumulated list and stops further loading.
func (s *Session) fail(err error) {
	s.hasMore = false
	s.lastErr = err.Error()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touchedAt = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

func (s *Session) snapshotLocked() PageState {
	acc := make([]domain.UnrepliedDetail, len(s.acc))
	copy(acc, s.acc)
	return PageState{
		FID:            s.fid,
		DayFilter:      s.filter,
		Limit:          s.limit,
		UnrepliedCount: len(acc),
		Accumulated:    acc,
		Message:        domain.MessageFor(len(acc)),
		Cursor:         domain.CursorPtr(s.cursor),
		HasMore:        s.hasMore,
		IsLoadingMore:  s.loadMore,
		Loading:        s.loading,
		Err:            s.lastErr,
		Partial:        s.partial,
		Generation:     s.gen,
	}
}

// Coordinator creates and finds pagination sessions.
type Coordinator struct {
	fetcher PageFetcher
	store   *SessionStore
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(fetcher PageFetcher, store *SessionStore) *Coordinator {
	return &Coordinator{fetcher: fetcher, store: store}
}

// NewSession registers an empty session. Call LoadFirstPage to fill it.
func (c *Coordinator) NewSession(fid uint64, filter domain.DayFilter, limit int) *Session {
	if filter == "" {
		filter = domain.DefaultDayFilter
	}
	s := newSession(uuid.NewString(), c.fetcher, fid, filter, limit)
	c.store.Put(s)
	return s
}

// Start registers a session and loads its first page. A session whose
// first page fails is dropped from the store; it is still returned so the
// caller can log its id.
func (c *Coordinator) Start(ctx context.Context, fid uint64, filter domain.DayFilter, limit int) (*Session, PageState, error) {
	s := c.NewSession(fid, filter, limit)
	st, err := s.LoadFirstPage(ctx, s.fid, s.filter)
	if err != nil {
		c.store.Delete(s.ID())
	}
	return s, st, err
}

// Session looks up a live session.
func (c *Coordinator) Session(id string) (*Session, error) {
	return c.store.Get(id)
}

// Close stops the session store janitor.
func (c *Coordinator) Close() {
	c.store.Close()
}
