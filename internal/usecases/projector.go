package usecases

import (
	"fmt"
	"strings"
	"time"

	"unreplied/internal/domain"
)

// DefaultCastURLBase is the web client cast links point to.
const DefaultCastURLBase = "https://warpcast.com"

// TimeAgo renders the age of t relative to now with integer truncation.
func TimeAgo(t, now time.Time) string {
	age := now.Sub(t)
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int64(age/time.Second))
	case age < time.Hour:
		return fmt.Sprintf("%dmin ago", int64(age/time.Minute))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int64(age/time.Hour))
	}
	return fmt.Sprintf("%dd ago", int64(age/(24*time.Hour)))
}

// Projector turns resolved reply nodes into UnrepliedDetail values.
type Projector struct {
	Now         func() time.Time
	CastURLBase string
}

// NewProjector creates a projector using the wall clock.
func NewProjector(castURLBase string) *Projector {
	return &Projector{Now: time.Now, CastURLBase: castURLBase}
}

// Project maps nodes to details against the conversation root. The result
// is never nil.
func (p *Projector) Project(root *domain.ReplyNode, nodes []*domain.ReplyNode) []domain.UnrepliedDetail {
	now := time.Now()
	if p != nil && p.Now != nil {
		now = p.Now()
	}
	base := DefaultCastURLBase
	if p != nil && p.CastURLBase != "" {
		base = strings.TrimRight(p.CastURLBase, "/")
	}

	details := make([]domain.UnrepliedDetail, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		d := domain.UnrepliedDetail{
			CastHash:   n.Hash,
			AuthorFID:  n.AuthorFID,
			Username:   n.Username,
			AvatarURL:  n.AvatarURL,
			Text:       n.Text,
			Timestamp:  n.Timestamp,
			TimeAgo:    TimeAgo(n.Timestamp, now),
			CastURL:    CastURL(base, n.Username, n.Hash),
			Embeds:     copyEmbeds(n.Embeds),
			ReplyCount: n.Descendants(),
		}
		if root != nil {
			d.OriginalCastHash = root.Hash
			d.OriginalCastText = root.Text
			d.OriginalAuthorUsername = root.Username
		}
		details = append(details, d)
	}
	return details
}

// FlattenReplies projects nodes with the default projector.
func FlattenReplies(root *domain.ReplyNode, nodes []*domain.ReplyNode) []domain.UnrepliedDetail {
	return (*Projector)(nil).Project(root, nodes)
}

// CastURL builds the web link for a cast.
func CastURL(base, username, hash string) string {
	if username == "" {
		return fmt.Sprintf("%s/~/conversations/%s", base, hash)
	}
	return fmt.Sprintf("%s/%s/%s", base, username, domain.ShortHash(hash))
}

func copyEmbeds(embeds []domain.Embed) []domain.Embed {
	out := make([]domain.Embed, len(embeds))
	copy(out, embeds)
	return out
}
