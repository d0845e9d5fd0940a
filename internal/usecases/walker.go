package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"unreplied/internal/domain"
	"unreplied/pkg/log"
)

// WalkerConfig bounds the cost of a single walk.
type WalkerConfig struct {
	MaxDepth     int           // reply levels expanded below the root
	MaxFanout    int           // direct replies requested per node
	MaxNodes     int           // nodes per tree, root included
	MaxInFlight  int           // concurrent fetches across every walk of this walker
	FetchTimeout time.Duration // per upstream call
}

// DefaultWalkerConfig returns the production limits.
func DefaultWalkerConfig() WalkerConfig {
	return WalkerConfig{
		MaxDepth:     6,
		MaxFanout:    50,
		MaxNodes:     500,
		MaxInFlight:  8,
		FetchTimeout: 12 * time.Second,
	}
}

func (c WalkerConfig) withDefaults() WalkerConfig {
	d := DefaultWalkerConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MaxFanout <= 0 {
		c.MaxFanout = d.MaxFanout
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = d.MaxInFlight
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	return c
}

// Tree is the result of one walk.
type Tree struct {
	Root           *domain.ReplyNode `json:"root"`
	Nodes          int               `json:"nodes"`
	FailedBranches int               `json:"failedBranches"`
	// Truncated is set when a cap stopped expansion while replies below
	// the materialized tree were known or could not be ruled out.
	Truncated bool `json:"truncated"`
}

// Walker materializes reply trees level by level from a ConversationSource.
type Walker struct {
	src   ConversationSource
	cfg   WalkerConfig
	sem   *semaphore.Weighted
	stats *Stats
}

// NewWalker creates a walker. Zero config fields fall back to defaults.
func NewWalker(src ConversationSource, cfg WalkerConfig, stats *Stats) *Walker {
	cfg = cfg.withDefaults()
	return &Walker{
		src:   src,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		stats: stats,
	}
}

// Config returns the effective limits.
func (w *Walker) Config() WalkerConfig {
	return w.cfg
}

// WalkHash resolves the root cast first. A missing root is reported as
// domain.ErrNotFound; any other root failure is an upstream error.
func (w *Walker) WalkHash(ctx context.Context, id domain.CastID) (*Tree, error) {
	var root *domain.Cast
	err := w.call(ctx, func(fctx context.Context) error {
		var err error
		root, err = w.src.FetchCast(fctx, id)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, upstreamError(err, "fetch cast "+id.Hash)
	}
	return w.Walk(ctx, *root)
}

// Walk builds the reply tree below root. Sibling fetches of one level run
// concurrently and are joined before the next level starts. A failed
// branch keeps zero children; only cancellation of ctx fails the walk.
func (w *Walker) Walk(ctx context.Context, root domain.Cast) (*Tree, error) {
	tree := &Tree{Root: domain.NewReplyNode(root), Nodes: 1}
	seen := map[string]struct{}{strings.ToLower(root.Hash): {}}
	frontier := []*domain.ReplyNode{tree.Root}

	for depth := 0; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= w.cfg.MaxDepth || tree.Nodes >= w.cfg.MaxNodes {
			more, err := w.hasMoreBelow(ctx, frontier, depth)
			if err != nil {
				return nil, err
			}
			tree.Truncated = tree.Truncated || more
			break
		}

		replies, failed, err := w.fetchLevel(ctx, frontier, depth, w.cfg.MaxFanout)
		if err != nil {
			return nil, err
		}
		tree.FailedBranches += failed

		var next []*domain.ReplyNode
		for i, parent := range frontier {
			children := replies[i]
			if len(children) >= w.cfg.MaxFanout {
				// a full page means more replies may exist upstream
				children = children[:w.cfg.MaxFanout]
				tree.Truncated = true
			}
			for _, c := range children {
				key := strings.ToLower(c.Hash)
				if key == "" {
					continue
				}
				if c.ParentHash == "" {
					c.ParentHash = parent.Hash
					c.ParentFID = parent.AuthorFID
				} else if !strings.EqualFold(c.ParentHash, parent.Hash) {
					continue
				}
				if _, dup := seen[key]; dup {
					continue
				}
				if tree.Nodes >= w.cfg.MaxNodes {
					tree.Truncated = true
					break
				}
				seen[key] = struct{}{}
				node := domain.NewReplyNode(c)
				parent.Children = append(parent.Children, node)
				next = append(next, node)
				tree.Nodes++
			}
		}
		frontier = next
	}

	if tree.Truncated {
		w.stats.truncated()
		log.GlobalInfoCtx(ctx, "reply tree truncated",
			"source", w.src.Name(), "root_hash", root.Hash, "nodes", tree.Nodes)
	}
	return tree, nil
}

// hasMoreBelow asks for one reply per unexpanded frontier node. A node
// whose replies could not be fetched counts as having more.
func (w *Walker) hasMoreBelow(ctx context.Context, frontier []*domain.ReplyNode, depth int) (bool, error) {
	replies, failed, err := w.fetchLevel(ctx, frontier, depth, 1)
	if err != nil {
		return false, err
	}
	if failed > 0 {
		return true, nil
	}
	for _, r := range replies {
		if len(r) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// fetchLevel fetches up to limit direct replies of every frontier node.
// results[i] belongs to frontier[i].
func (w *Walker) fetchLevel(ctx context.Context, frontier []*domain.ReplyNode, depth, limit int) ([][]domain.Cast, int, error) {
	results := make([][]domain.Cast, len(frontier))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i, node := range frontier {
		i, node := i, node
		g.Go(func() error {
			err := w.call(gctx, func(fctx context.Context) error {
				replies, err := w.src.FetchDirectReplies(fctx, node.Cast, limit)
				results[i] = replies
				return err
			})
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = nil
			failed.Add(1)
			w.stats.branchFailure()
			log.GlobalWarnCtx(ctx, "branch fetch failed, counting it as no replies",
				"source", w.src.Name(), "cast_hash", node.Hash, "depth", depth, "error", err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return results, int(failed.Load()), nil
}

// call runs fn holding one in-flight slot and a per-call timeout.
func (w *Walker) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.sem.Release(1)

	fctx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	w.stats.fetch()
	return fn(fctx)
}

// upstreamError keeps classified errors as they are and wraps the rest as
// domain.ErrUpstreamUnavailable.
func upstreamError(err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrMisconfigured),
		errors.Is(err, domain.ErrUpstreamUnavailable):
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, op, err)
}
