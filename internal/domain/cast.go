// Package domain contains the core business entities and rules.
package domain

import (
	"strings"
	"time"
)

// FarcasterEpoch is the Unix time (seconds) at which hub timestamps start.
const FarcasterEpoch int64 = 1609459200

// CastID references a cast by author FID and hash.
type CastID struct {
	FID  uint64 `json:"fid"`
	Hash string `json:"hash"`
}

// Embed is either a URL embed or a reference to another cast.
// Exactly one of URL or CastID is set.
type Embed struct {
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	CastID   *CastID        `json:"castId,omitempty"`
}

// Cast represents a single authored post.
type Cast struct {
	Hash        string    `json:"hash"`
	AuthorFID   uint64    `json:"authorFid"`
	Username    string    `json:"username,omitempty"` // empty when the source does not hydrate authors
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	ParentHash  string    `json:"parentHash,omitempty"` // empty for root casts
	ParentFID   uint64    `json:"parentFid,omitempty"`
	Embeds      []Embed   `json:"embeds,omitempty"`
}

// IsRoot reports whether the cast is not a reply.
func (c Cast) IsRoot() bool {
	return c.ParentHash == ""
}

// ID returns the cast reference.
func (c Cast) ID() CastID {
	return CastID{FID: c.AuthorFID, Hash: c.Hash}
}

// ReplyNode is a cast plus its materialized direct replies.
// Children keep the order the upstream returned them in.
type ReplyNode struct {
	Cast
	Children []*ReplyNode `json:"children"`
}

// NewReplyNode wraps a cast in a node without children.
func NewReplyNode(c Cast) *ReplyNode {
	return &ReplyNode{Cast: c}
}

// Descendants counts every node below n (not n itself).
func (n *ReplyNode) Descendants() int {
	if n == nil {
		return 0
	}
	total := 0
	for _, ch := range n.Children {
		total += 1 + ch.Descendants()
	}
	return total
}

// Walk visits n and its subtree depth-first in child order.
// Returning false from fn stops descending below that node.
func (n *ReplyNode) Walk(fn func(node *ReplyNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *ReplyNode) walk(fn func(node *ReplyNode, depth int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, ch := range n.Children {
		ch.walk(fn, depth+1)
	}
}

// Profile holds display data for an account.
type Profile struct {
	FID         uint64 `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// NormalizeTimestamp converts a raw Unix timestamp to time.Time.
// Sources disagree on units: values above 1e12 are milliseconds, anything
// else is seconds.
func NormalizeTimestamp(raw int64) time.Time {
	if raw > 1e12 {
		return time.UnixMilli(raw).UTC()
	}
	return time.Unix(raw, 0).UTC()
}

// FromFarcasterTime converts a hub timestamp (seconds since FarcasterEpoch).
func FromFarcasterTime(ts uint64) time.Time {
	return time.Unix(FarcasterEpoch+int64(ts), 0).UTC()
}

// ShortHash returns the 10 character prefix clients use in cast URLs.
func ShortHash(hash string) string {
	if len(hash) <= 10 {
		return hash
	}
	return hash[:10]
}

// NormalizeHash lowercases a hash and makes sure it carries the 0x prefix.
func NormalizeHash(hash string) string {
	h := strings.ToLower(strings.TrimSpace(hash))
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	return h
}
