package usecases

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"unreplied/internal/domain"
	"unreplied/pkg/log"
)

// DefaultMaxPageLimit caps the number of root casts listed per page.
const DefaultMaxPageLimit = 100

// PageRequest is the input of one unreplied page fetch.
type PageRequest struct {
	FID         uint64
	Limit       int
	Cursor      string
	DayFilter   domain.DayFilter
	BypassCache bool
}

// FetchOption customizes a FetchUnrepliedUseCase.
type FetchOption func(*FetchUnrepliedUseCase)

// WithListingCache caches listing pages.
func WithListingCache(c ListingCache) FetchOption {
	return func(uc *FetchUnrepliedUseCase) { uc.cache = c }
}

// WithProfiles fills usernames and avatars the source left empty.
func WithProfiles(p ProfileResolver) FetchOption {
	return func(uc *FetchUnrepliedUseCase) { uc.profiles = p }
}

// WithStats reports listing and page counters.
func WithStats(s *Stats) FetchOption {
	return func(uc *FetchUnrepliedUseCase) { uc.stats = s }
}

// WithPageLimits sets the default and maximum listing limit.
func WithPageLimits(defaultLimit, maxLimit int) FetchOption {
	return func(uc *FetchUnrepliedUseCase) {
		if defaultLimit > 0 {
			uc.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			uc.maxLimit = maxLimit
		}
	}
}

// WithClock replaces the wall clock used for day filter windows.
func WithClock(now func() time.Time) FetchOption {
	return func(uc *FetchUnrepliedUseCase) { uc.now = now }
}

// FetchUnrepliedUseCase computes one page of unreplied replies for an
// account: list root casts, walk each conversation, resolve and project.
type FetchUnrepliedUseCase struct {
	lister    CastLister
	walker    *Walker
	projector *Projector
	cache     ListingCache
	profiles  ProfileResolver
	stats     *Stats
	now       func() time.Time

	defaultLimit int
	maxLimit     int
}

// NewFetchUnrepliedUseCase creates a new FetchUnrepliedUseCase.
func NewFetchUnrepliedUseCase(lister CastLister, walker *Walker, projector *Projector, opts ...FetchOption) *FetchUnrepliedUseCase {
	uc := &FetchUnrepliedUseCase{
		lister:       lister,
		walker:       walker,
		projector:    projector,
		now:          time.Now,
		defaultLimit: domain.DefaultPageLimit,
		maxLimit:     DefaultMaxPageLimit,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute fetches one page. A listing failure fails the page; failures
// below the root casts only shrink the walked trees.
func (uc *FetchUnrepliedUseCase) Execute(ctx context.Context, req PageRequest) (*domain.UnrepliedPage, error) {
	q, err := uc.query(req)
	if err != nil {
		return nil, err
	}

	listing, err := uc.listing(ctx, q, req.BypassCache)
	if err != nil {
		return nil, err
	}

	roots := make([]domain.Cast, 0, len(listing.Casts))
	for _, c := range listing.Casts {
		if c.AuthorFID == q.FID && c.IsRoot() && q.Includes(c.Timestamp) {
			roots = append(roots, c)
		}
	}

	trees, err := uc.walkAll(ctx, roots)
	if err != nil {
		return nil, err
	}

	partial := false
	for _, tree := range trees {
		if tree.Truncated || tree.FailedBranches > 0 {
			partial = true
		}
	}

	type candidate struct {
		root  *domain.ReplyNode
		nodes []*domain.ReplyNode
	}
	candidates := make([]candidate, 0, len(trees))
	seen := make(map[string]struct{})
	for _, tree := range trees {
		var nodes []*domain.ReplyNode
		for _, n := range ResolveUnreplied(tree.Root, q.FID) {
			if _, dup := seen[n.Hash]; dup {
				continue
			}
			seen[n.Hash] = struct{}{}
			nodes = append(nodes, n)
		}
		candidates = append(candidates, candidate{root: tree.Root, nodes: nodes})
	}

	var touched []*domain.ReplyNode
	for _, c := range candidates {
		touched = append(touched, c.root)
		touched = append(touched, c.nodes...)
	}
	uc.fillProfiles(ctx, touched)

	details := make([]domain.UnrepliedDetail, 0)
	for _, c := range candidates {
		details = append(details, uc.projector.Project(c.root, c.nodes)...)
	}

	uc.stats.page()
	log.GlobalDebugCtx(ctx, "unreplied page computed",
		"fid", q.FID, "roots", len(roots), "unreplied", len(details), "has_more", listing.NextCursor != "", "partial", partial)

	return &domain.UnrepliedPage{
		UnrepliedCount:   len(details),
		UnrepliedDetails: details,
		Message:          domain.MessageFor(len(details)),
		NextCursor:       domain.CursorPtr(listing.NextCursor),
		Partial:          partial,
	}, nil
}

func (uc *FetchUnrepliedUseCase) query(req PageRequest) (domain.ListQuery, error) {
	if req.FID == 0 {
		return domain.ListQuery{}, fmt.Errorf("%w: fid is required", domain.ErrInvalidInput)
	}
	limit := req.Limit
	switch {
	case limit < 0:
		return domain.ListQuery{}, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	case limit == 0:
		limit = uc.defaultLimit
	case limit > uc.maxLimit:
		limit = uc.maxLimit
	}
	filter := req.DayFilter
	if filter == "" {
		filter = domain.DefaultDayFilter
	}
	if _, err := domain.ParseDayFilter(string(filter)); err != nil {
		return domain.ListQuery{}, err
	}
	return domain.ListQuery{
		FID:       req.FID,
		Limit:     limit,
		Cursor:    req.Cursor,
		DayFilter: filter,
		Since:     filter.Since(uc.now()),
	}, nil
}

func (uc *FetchUnrepliedUseCase) listing(ctx context.Context, q domain.ListQuery, bypass bool) (*domain.CastPage, error) {
	key := ListingKey(q)
	if uc.cache != nil && !bypass {
		if page, ok := uc.cache.Get(key); ok {
			uc.stats.listing(true)
			log.GlobalDebugCtx(ctx, "listing cache hit", "key", key)
			return page, nil
		}
		uc.stats.listing(false)
		log.GlobalDebugCtx(ctx, "listing cache miss", "key", key)
	}

	lctx, cancel := uc.callContext(ctx)
	page, err := uc.lister.ListCastsByAuthor(lctx, q)
	cancel()
	if err != nil {
		uc.stats.listingFailure()
		log.GlobalErrorCtx(ctx, "listing root casts failed", "fid", q.FID, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, upstreamError(err, "list casts")
	}

	if uc.cache != nil {
		uc.cache.Set(key, &page)
	}
	return &page, nil
}

// walkAll walks every root concurrently; trees[i] belongs to roots[i].
func (uc *FetchUnrepliedUseCase) walkAll(ctx context.Context, roots []domain.Cast) ([]*Tree, error) {
	trees := make([]*Tree, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			tree, err := uc.walker.Walk(gctx, root)
			if err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

// fillProfiles hydrates nodes whose source left the author unnamed.
// Lookup failures are logged and leave the nodes as they are.
func (uc *FetchUnrepliedUseCase) fillProfiles(ctx context.Context, nodes []*domain.ReplyNode) {
	if uc.profiles == nil {
		return
	}
	var fids []uint64
	wanted := make(map[uint64]struct{})
	for _, n := range nodes {
		if n.Username != "" && n.AvatarURL != "" {
			continue
		}
		if _, ok := wanted[n.AuthorFID]; ok || n.AuthorFID == 0 {
			continue
		}
		wanted[n.AuthorFID] = struct{}{}
		fids = append(fids, n.AuthorFID)
	}
	if len(fids) == 0 {
		return
	}

	pctx, cancel := uc.callContext(ctx)
	defer cancel()
	profiles, err := uc.profiles.Profiles(pctx, fids)
	if err != nil {
		log.GlobalWarnCtx(ctx, "profile lookup failed", "fids", len(fids), "error", err)
		return
	}
	for _, n := range nodes {
		p, ok := profiles[n.AuthorFID]
		if !ok {
			continue
		}
		if n.Username == "" {
			n.Username = p.Username
		}
		if n.DisplayName == "" {
			n.DisplayName = p.DisplayName
		}
		if n.AvatarURL == "" {
			n.AvatarURL = p.AvatarURL
		}
	}
}

// callContext bounds one listing or profile call by the walker's fetch
// timeout.
func (uc *FetchUnrepliedUseCase) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, uc.walker.Config().FetchTimeout)
}

// ListingKey is the cache key of a listing query.
func ListingKey(q domain.ListQuery) string {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("dayFilter", string(q.DayFilter))
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	return fmt.Sprintf("/casts/%d?%s", q.FID, v.Encode())
}
