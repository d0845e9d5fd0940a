package search_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unreplied/internal/adapters/search"
	"unreplied/internal/domain"
)

func newServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(search.APIKeyHeader) != "key" {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSource_MissingAPIKeyIsMisconfigured(t *testing.T) {
	src := search.NewSource("http://127.0.0.1:1", "")

	_, err := src.ListCastsByAuthor(context.Background(), domain.ListQuery{FID: 3})

	if !errors.Is(err, domain.ErrMisconfigured) {
		t.Errorf("expected ErrMisconfigured, got %v", err)
	}
}

func TestSource_WrongAPIKeyIsMisconfigured(t *testing.T) {
	srv := newServer(t, nil)
	src := search.NewSource(srv.URL, "wrong")

	_, err := src.FetchCast(context.Background(), domain.CastID{Hash: "0xabc"})

	if !errors.Is(err, domain.ErrMisconfigured) {
		t.Errorf("expected ErrMisconfigured, got %v", err)
	}
}

func TestSource_FetchDirectReplies_MapsConversation(t *testing.T) {
	// Arrange
	srv := newServer(t, map[string]string{
		"/v2/farcaster/cast/conversation": `{"conversation": {"cast": {
			"hash": "0xroot",
			"author": {"fid": 3, "username": "dwr"},
			"direct_replies": [
				{
					"hash": "0xr1",
					"author": {"fid": 123, "username": "alice", "pfp_url": "https://i.example.com/a.png"},
					"text": "hi",
					"timestamp": "2024-05-01T12:00:00.000Z",
					"parent_hash": "0xroot",
					"parent_author": {"fid": 3},
					"embeds": [{"url": "https://example.com", "metadata": {"content_type": "text/html"}}]
				},
				{
					"hash": "0xr2",
					"author": {"fid": 456, "username": "bob"},
					"text": "quote",
					"timestamp": "2024-05-01T12:05:00Z",
					"embeds": [{"cast_id": {"fid": 9, "hash": "0xq"}}]
				}
			]
		}}}`,
	})
	src := search.NewSource(srv.URL, "key")

	// Act
	replies, err := src.FetchDirectReplies(context.Background(), domain.Cast{Hash: "0xroot", AuthorFID: 3}, 50)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replies))
	}
	r1 := replies[0]
	if r1.Username != "alice" || r1.AvatarURL != "https://i.example.com/a.png" || r1.ParentFID != 3 {
		t.Errorf("unexpected first reply: %+v", r1)
	}
	if !r1.Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp: got %v", r1.Timestamp)
	}
	if r1.Embeds[0].Metadata["content_type"] != "text/html" {
		t.Errorf("embed metadata not passed through: %+v", r1.Embeds[0])
	}
	if replies[1].ParentHash != "0xroot" {
		t.Errorf("missing parent hash should default to the parent, got %q", replies[1].ParentHash)
	}
	if replies[1].Embeds[0].CastID == nil || replies[1].Embeds[0].CastID.Hash != "0xq" {
		t.Errorf("cast embed: got %+v", replies[1].Embeds[0])
	}
}

func TestSource_ListCastsByAuthor(t *testing.T) {
	// Arrange
	srv := newServer(t, map[string]string{
		"/v2/farcaster/feed/user/casts": `{
			"casts": [{"hash": "0xa", "author": {"fid": 3}, "timestamp": "2024-05-01T12:00:00Z"}],
			"next": {"cursor": "abc"}
		}`,
	})
	src := search.NewSource(srv.URL, "key")

	// Act
	page, err := src.ListCastsByAuthor(context.Background(), domain.ListQuery{FID: 3, Limit: 25})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Casts) != 1 || page.NextCursor != "abc" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestSource_Profiles(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/v2/farcaster/user/bulk": `{"users": [{"fid": 123, "username": "alice", "display_name": "Alice"}]}`,
	})
	src := search.NewSource(srv.URL, "key")

	profiles, err := src.Profiles(context.Background(), []uint64{123, 456})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles[123].Username != "alice" {
		t.Errorf("got %+v", profiles)
	}
	if _, ok := profiles[456]; ok {
		t.Error("unknown fid must be left out")
	}
}
