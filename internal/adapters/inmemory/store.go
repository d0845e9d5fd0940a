// Package inmemory is a map-backed conversation source. It serves the
// "memory" source kind and doubles as a fake upstream in tests.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"unreplied/internal/domain"
)

// Store keeps casts, reply edges and profiles in memory.
type Store struct {
	mu sync.RWMutex

	byHash   map[string]domain.Cast
	children map[string][]string
	profiles map[uint64]domain.Profile
	failures map[string]error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byHash:   make(map[string]domain.Cast),
		children: make(map[string][]string),
		profiles: make(map[uint64]domain.Profile),
		failures: make(map[string]error),
	}
}

// Name implements usecases.ConversationSource.
func (s *Store) Name() string {
	return "memory"
}

// Add stores casts. Replies are indexed under their parent in insertion
// order.
func (s *Store) Add(casts ...domain.Cast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range casts {
		key := strings.ToLower(c.Hash)
		if _, exists := s.byHash[key]; !exists && c.ParentHash != "" {
			parent := strings.ToLower(c.ParentHash)
			s.children[parent] = append(s.children[parent], key)
		}
		s.byHash[key] = c
	}
}

// AddProfiles stores profiles.
func (s *Store) AddProfiles(profiles ...domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range profiles {
		s.profiles[p.FID] = p
	}
}

// FailReplies makes FetchDirectReplies for hash return err. A nil err
// clears the failure.
func (s *Store) FailReplies(hash string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(hash)
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

// FetchCast implements usecases.ConversationSource.
func (s *Store) FetchCast(ctx context.Context, id domain.CastID) (*domain.Cast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byHash[strings.ToLower(id.Hash)]
	if !ok || (id.FID != 0 && c.AuthorFID != id.FID) {
		return nil, fmt.Errorf("%w: cast %s", domain.ErrNotFound, id.Hash)
	}
	return &c, nil
}

// FetchDirectReplies implements usecases.ConversationSource.
func (s *Store) FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := strings.ToLower(parent.Hash)
	if err := s.failures[key]; err != nil {
		return nil, err
	}
	ids := s.children[key]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Cast, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byHash[id])
	}
	return out, nil
}

// ListCastsByAuthor implements usecases.CastLister. Casts come newest
// first; the cursor is the decimal offset of the next page.
func (s *Store) ListCastsByAuthor(ctx context.Context, q domain.ListQuery) (domain.CastPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.CastPage{}, err
	}
	offset := 0
	if q.Cursor != "" {
		n, err := strconv.Atoi(q.Cursor)
		if err != nil || n < 0 {
			return domain.CastPage{}, fmt.Errorf("%w: malformed cursor %q", domain.ErrInvalidInput, q.Cursor)
		}
		offset = n
	}

	s.mu.RLock()
	var casts []domain.Cast
	for _, c := range s.byHash {
		if c.AuthorFID == q.FID && q.Includes(c.Timestamp) {
			casts = append(casts, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(casts, func(i, j int) bool {
		if casts[i].Timestamp.Equal(casts[j].Timestamp) {
			return casts[i].Hash < casts[j].Hash
		}
		return casts[i].Timestamp.After(casts[j].Timestamp)
	})

	if offset > len(casts) {
		offset = len(casts)
	}
	end := len(casts)
	if q.Limit > 0 && offset+q.Limit < end {
		end = offset + q.Limit
	}
	page := domain.CastPage{Casts: casts[offset:end]}
	if end < len(casts) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// Profiles implements usecases.ProfileResolver. Unknown fids are left out.
func (s *Store) Profiles(ctx context.Context, fids []uint64) (map[uint64]domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]domain.Profile, len(fids))
	for _, fid := range fids {
		if p, ok := s.profiles[fid]; ok {
			out[fid] = p
		}
	}
	return out, nil
}
