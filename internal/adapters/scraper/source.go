// Package scraper reads conversations from the rendered web client with a
// headless browser. It is the last-resort source when no API is reachable.
package scraper

import (
	"context"
	"fmt"
	"strings"

	"unreplied/internal/domain"
	"unreplied/pkg/log"
)

// Renderer loads a page and returns its HTML once waitSelector is visible.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
}

// WebSource implements usecases.ConversationSource over rendered
// conversation pages. It cannot list casts by author.
type WebSource struct {
	renderer  Renderer
	selectors *SelectorConfig
	baseURL   string
}

// NewWebSource creates a web source. baseURL is the client origin, for
// example https://warpcast.com.
func NewWebSource(renderer Renderer, selectors *SelectorConfig, baseURL string) *WebSource {
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	return &WebSource{
		renderer:  renderer,
		selectors: selectors,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Name implements usecases.ConversationSource.
func (s *WebSource) Name() string {
	return "web"
}

// ConversationURL is the page that renders hash with its direct replies.
func (s *WebSource) ConversationURL(hash string) string {
	return s.baseURL + "/~/conversations/" + domain.NormalizeHash(hash)
}

// FetchCast implements usecases.ConversationSource.
func (s *WebSource) FetchCast(ctx context.Context, id domain.CastID) (*domain.Cast, error) {
	casts, err := s.conversation(ctx, id.Hash)
	if err != nil {
		return nil, err
	}

	want := domain.NormalizeHash(id.Hash)
	for i := range casts {
		c := casts[i]
		if c.Hash != want {
			continue
		}
		if id.FID != 0 && c.AuthorFID != 0 && c.AuthorFID != id.FID {
			break
		}
		if c.AuthorFID == 0 {
			c.AuthorFID = id.FID
		}
		return &c, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id.Hash)
}

// FetchDirectReplies implements usecases.ConversationSource. Casts on the
// page without a parent attribute are direct replies of the focused cast.
func (s *WebSource) FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error) {
	casts, err := s.conversation(ctx, parent.Hash)
	if err != nil {
		return nil, err
	}

	parentHash := domain.NormalizeHash(parent.Hash)
	replies := make([]domain.Cast, 0, len(casts))
	for _, c := range casts {
		if c.Hash == parentHash {
			continue
		}
		if c.ParentHash == "" {
			c.ParentHash = parentHash
			c.ParentFID = parent.AuthorFID
		}
		if c.ParentHash != parentHash {
			continue
		}
		replies = append(replies, c)
		if limit > 0 && len(replies) == limit {
			break
		}
	}

	log.GlobalDebugCtx(ctx, "web source replies parsed", "cast_hash", parentHash, "replies", len(replies))
	return replies, nil
}

func (s *WebSource) conversation(ctx context.Context, hash string) ([]domain.Cast, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("%w: web source has no browser", domain.ErrMisconfigured)
	}

	url := s.ConversationURL(hash)
	page, err := s.renderer.Render(ctx, url, s.selectors.GetCastItem())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: render %s: %v", domain.ErrUpstreamUnavailable, url, err)
	}

	casts := parseConversation(page, s.selectors.GetAttributes())
	if len(casts) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, hash)
	}
	return casts, nil
}
