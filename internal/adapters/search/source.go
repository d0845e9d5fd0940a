// Package search reads casts from a hosted search-index API that hydrates
// authors and conversations.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"unreplied/internal/adapters/upstream"
	"unreplied/internal/domain"
)

// APIKeyHeader carries the API credential.
const APIKeyHeader = "x-api-key"

// Source implements the conversation source, cast lister and profile
// resolver ports on top of the search API.
type Source struct {
	client *upstream.Client
	apiKey string
}

// NewSource creates a search source. Without an API key every call fails
// with domain.ErrMisconfigured.
func NewSource(baseURL, apiKey string, opts ...upstream.Option) *Source {
	opts = append([]upstream.Option{upstream.WithHeader(APIKeyHeader, apiKey)}, opts...)
	return &Source{
		client: upstream.NewClient(baseURL, opts...),
		apiKey: apiKey,
	}
}

// Name implements usecases.ConversationSource.
func (s *Source) Name() string {
	return "search"
}

func (s *Source) get(ctx context.Context, path string, q url.Values, out any) error {
	if s.apiKey == "" {
		return fmt.Errorf("%w: search API key is not set", domain.ErrMisconfigured)
	}
	return s.client.GetJSON(ctx, path, q, out)
}

// FetchCast implements usecases.ConversationSource.
func (s *Source) FetchCast(ctx context.Context, id domain.CastID) (*domain.Cast, error) {
	var resp castResponse
	q := url.Values{}
	q.Set("identifier", domain.NormalizeHash(id.Hash))
	q.Set("type", "hash")
	if err := s.get(ctx, "/v2/farcaster/cast", q, &resp); err != nil {
		return nil, err
	}
	if resp.Cast.Hash == "" {
		return nil, fmt.Errorf("%w: cast %s", domain.ErrNotFound, id.Hash)
	}
	c := toCast(resp.Cast)
	return &c, nil
}

// FetchDirectReplies implements usecases.ConversationSource. It asks the
// conversation endpoint for one level of replies.
func (s *Source) FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error) {
	var resp conversationResponse
	q := url.Values{}
	q.Set("identifier", domain.NormalizeHash(parent.Hash))
	q.Set("type", "hash")
	q.Set("reply_depth", "1")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if err := s.get(ctx, "/v2/farcaster/cast/conversation", q, &resp); err != nil {
		return nil, err
	}
	replies := resp.Conversation.Cast.DirectReplies
	casts := make([]domain.Cast, 0, len(replies))
	for _, r := range replies {
		c := toCast(r)
		if c.ParentHash == "" {
			c.ParentHash = domain.NormalizeHash(parent.Hash)
		}
		casts = append(casts, c)
	}
	return casts, nil
}

// ListCastsByAuthor implements usecases.CastLister. Replies are excluded
// upstream; the window cut stops paging at the first older cast.
func (s *Source) ListCastsByAuthor(ctx context.Context, q domain.ListQuery) (domain.CastPage, error) {
	var resp feedResponse
	v := url.Values{}
	v.Set("fid", strconv.FormatUint(q.FID, 10))
	v.Set("include_replies", "false")
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	if err := s.get(ctx, "/v2/farcaster/feed/user/casts", v, &resp); err != nil {
		return domain.CastPage{}, err
	}

	page := domain.CastPage{NextCursor: resp.Next.Cursor}
	for _, raw := range resp.Casts {
		c := toCast(raw)
		if !q.Includes(c.Timestamp) {
			page.NextCursor = ""
			break
		}
		page.Casts = append(page.Casts, c)
	}
	return page, nil
}

// Profiles implements usecases.ProfileResolver with one bulk call.
func (s *Source) Profiles(ctx context.Context, fids []uint64) (map[uint64]domain.Profile, error) {
	out := make(map[uint64]domain.Profile, len(fids))
	if len(fids) == 0 {
		return out, nil
	}
	ids := make([]string, len(fids))
	for i, fid := range fids {
		ids[i] = strconv.FormatUint(fid, 10)
	}
	var resp usersResponse
	q := url.Values{}
	q.Set("fids", strings.Join(ids, ","))
	if err := s.get(ctx, "/v2/farcaster/user/bulk", q, &resp); err != nil {
		return nil, err
	}
	for _, u := range resp.Users {
		out[u.FID] = domain.Profile{FID: u.FID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.PfpURL}
	}
	return out, nil
}

func toCast(a apiCast) domain.Cast {
	c := domain.Cast{
		Hash:        domain.NormalizeHash(a.Hash),
		AuthorFID:   a.Author.FID,
		Username:    a.Author.Username,
		DisplayName: a.Author.DisplayName,
		AvatarURL:   a.Author.PfpURL,
		Text:        a.Text,
		Timestamp:   parseTimestamp(a.Timestamp),
		ParentHash:  domain.NormalizeHash(a.ParentHash),
	}
	if a.ParentAuthor != nil {
		c.ParentFID = a.ParentAuthor.FID
	}
	for _, e := range a.Embeds {
		embed := domain.Embed{URL: e.URL, Metadata: e.Metadata}
		if e.CastID != nil {
			embed.CastID = &domain.CastID{FID: e.CastID.FID, Hash: domain.NormalizeHash(e.CastID.Hash)}
		}
		c.Embeds = append(c.Embeds, embed)
	}
	return c
}

// parseTimestamp accepts RFC 3339 strings and raw Unix seconds or
// milliseconds.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return domain.NormalizeTimestamp(n)
	}
	return time.Time{}
}
