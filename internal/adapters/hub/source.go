// Package hub reads casts from a Farcaster hub HTTP API.
package hub

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"unreplied/internal/adapters/upstream"
	"unreplied/internal/domain"
	"unreplied/pkg/log"
)

// Source implements the conversation source, cast lister and profile
// resolver ports on top of a hub.
type Source struct {
	client *upstream.Client
}

// NewSource creates a hub source.
func NewSource(client *upstream.Client) *Source {
	return &Source{client: client}
}

// Name implements usecases.ConversationSource.
func (s *Source) Name() string {
	return "hub"
}

// FetchCast implements usecases.ConversationSource.
func (s *Source) FetchCast(ctx context.Context, id domain.CastID) (*domain.Cast, error) {
	var msg hubMessage
	q := url.Values{}
	q.Set("fid", strconv.FormatUint(id.FID, 10))
	q.Set("hash", domain.NormalizeHash(id.Hash))
	if err := s.client.GetJSON(ctx, "/v1/castById", q, &msg); err != nil {
		return nil, err
	}
	c, ok := toCast(&msg)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a cast", domain.ErrNotFound, id.Hash)
	}
	return &c, nil
}

// FetchDirectReplies implements usecases.ConversationSource.
func (s *Source) FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error) {
	var resp hubMessagesResponse
	q := url.Values{}
	q.Set("fid", strconv.FormatUint(parent.AuthorFID, 10))
	q.Set("hash", domain.NormalizeHash(parent.Hash))
	if limit > 0 {
		q.Set("pageSize", strconv.Itoa(limit))
	}
	if err := s.client.GetJSON(ctx, "/v1/castsByParent", q, &resp); err != nil {
		return nil, err
	}
	return toCasts(resp.Messages), nil
}

// ListCastsByAuthor implements usecases.CastLister. The hub has no time
// filter, so listing walks newest first and stops at the first cast older
// than the query window.
func (s *Source) ListCastsByAuthor(ctx context.Context, q domain.ListQuery) (domain.CastPage, error) {
	var resp hubMessagesResponse
	v := url.Values{}
	v.Set("fid", strconv.FormatUint(q.FID, 10))
	v.Set("reverse", "true")
	if q.Limit > 0 {
		v.Set("pageSize", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		v.Set("pageToken", q.Cursor)
	}
	if err := s.client.GetJSON(ctx, "/v1/castsByFid", v, &resp); err != nil {
		return domain.CastPage{}, err
	}

	page := domain.CastPage{NextCursor: resp.NextPageToken}
	for _, c := range toCasts(resp.Messages) {
		if !q.Includes(c.Timestamp) {
			page.NextCursor = ""
			break
		}
		page.Casts = append(page.Casts, c)
	}
	return page, nil
}

// maxProfileLookups bounds the concurrent userDataByFid calls of one
// Profiles call.
const maxProfileLookups = 8

// Profiles implements usecases.ProfileResolver. A fid whose lookup fails is
// left out of the result.
func (s *Source) Profiles(ctx context.Context, fids []uint64) (map[uint64]domain.Profile, error) {
	var (
		mu  sync.Mutex
		out = make(map[uint64]domain.Profile, len(fids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProfileLookups)
	for _, fid := range fids {
		fid := fid
		g.Go(func() error {
			var resp hubMessagesResponse
			q := url.Values{}
			q.Set("fid", strconv.FormatUint(fid, 10))
			if err := s.client.GetJSON(gctx, "/v1/userDataByFid", q, &resp); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.GlobalDebugCtx(ctx, "hub user data lookup failed", "fid", fid, "error", err)
				return nil
			}
			p := toProfile(fid, resp.Messages)
			mu.Lock()
			out[fid] = p
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return out, err
}

func toCasts(msgs []*hubMessage) []domain.Cast {
	casts := make([]domain.Cast, 0, len(msgs))
	for _, m := range msgs {
		if c, ok := toCast(m); ok {
			casts = append(casts, c)
		}
	}
	return casts
}

func toCast(m *hubMessage) (domain.Cast, bool) {
	if m == nil || m.Data == nil || m.Data.Type != messageTypeCastAdd || m.Data.CastAddBody == nil {
		return domain.Cast{}, false
	}
	body := m.Data.CastAddBody
	c := domain.Cast{
		Hash:      domain.NormalizeHash(m.Hash),
		AuthorFID: m.Data.FID,
		Text:      body.Text,
		Timestamp: domain.FromFarcasterTime(m.Data.Timestamp),
	}
	if p := body.ParentCastID; p != nil {
		c.ParentHash = domain.NormalizeHash(p.Hash)
		c.ParentFID = p.FID
	}
	for _, e := range body.Embeds {
		embed := domain.Embed{URL: e.URL}
		if e.CastID != nil {
			embed.CastID = &domain.CastID{FID: e.CastID.FID, Hash: domain.NormalizeHash(e.CastID.Hash)}
		}
		c.Embeds = append(c.Embeds, embed)
	}
	return c, true
}

func toProfile(fid uint64, msgs []*hubMessage) domain.Profile {
	p := domain.Profile{FID: fid}
	for _, m := range msgs {
		if m == nil || m.Data == nil || m.Data.UserDataBody == nil {
			continue
		}
		switch m.Data.UserDataBody.Type {
		case userDataTypeUsername:
			p.Username = m.Data.UserDataBody.Value
		case userDataTypeDisplay:
			p.DisplayName = m.Data.UserDataBody.Value
		case userDataTypePfp:
			p.AvatarURL = m.Data.UserDataBody.Value
		}
	}
	return p
}
