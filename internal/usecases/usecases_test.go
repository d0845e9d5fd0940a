package usecases_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"unreplied/internal/adapters/inmemory"
	"unreplied/internal/domain"
)

const authorFID uint64 = 42

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// cast builds a cast posted minutesAgo before baseTime.
func cast(hash string, fid uint64, parent string, minutesAgo int) domain.Cast {
	return domain.Cast{
		Hash:       hash,
		AuthorFID:  fid,
		Text:       "text of " + hash,
		Timestamp:  baseTime.Add(-time.Duration(minutesAgo) * time.Minute),
		ParentHash: parent,
	}
}

func node(c domain.Cast, children ...*domain.ReplyNode) *domain.ReplyNode {
	n := domain.NewReplyNode(c)
	n.Children = children
	return n
}

func newStore(casts ...domain.Cast) *inmemory.Store {
	s := inmemory.New()
	s.Add(casts...)
	return s
}

// hashes lists node hashes in order.
func hashes(nodes []*domain.ReplyNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Hash)
	}
	return out
}

func detailHashes(details []domain.UnrepliedDetail) []string {
	out := make([]string, 0, len(details))
	for _, d := range details {
		out = append(out, d.CastHash)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MockSource wraps a store and records reply fetch concurrency. When
// delay is set every reply fetch sleeps for it or until ctx is done.
type MockSource struct {
	*inmemory.Store
	delay time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (m *MockSource) FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error) {
	m.calls.Add(1)
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxSeen.Load()
		if cur <= prev || m.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Store.FetchDirectReplies(ctx, parent, limit)
}

// StaticSource returns fixed replies per parent hash.
type StaticSource struct {
	replies map[string][]domain.Cast
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) FetchCast(ctx context.Context, id domain.CastID) (*domain.Cast, error) {
	return nil, domain.ErrNotFound
}

func (s *StaticSource) FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error) {
	return s.replies[parent.Hash], nil
}

// MockLister returns canned listing pages keyed by cursor.
type MockLister struct {
	mu      sync.Mutex
	pages   map[string]domain.CastPage
	err     error
	queries []domain.ListQuery
}

func (m *MockLister) ListCastsByAuthor(ctx context.Context, q domain.ListQuery) (domain.CastPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.err != nil {
		return domain.CastPage{}, m.err
	}
	return m.pages[q.Cursor], nil
}

func (m *MockLister) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// MockCache is a map-backed ListingCache.
type MockCache struct {
	mu    sync.Mutex
	pages map[string]*domain.CastPage
}

func NewMockCache() *MockCache {
	return &MockCache{pages: make(map[string]*domain.CastPage)}
}

func (m *MockCache) Get(key string) (*domain.CastPage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[key]
	return p, ok
}

func (m *MockCache) Set(key string, page *domain.CastPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[key] = page
}
