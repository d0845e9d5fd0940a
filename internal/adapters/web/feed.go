package web

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"unreplied/internal/domain"

	"github.com/gorilla/feeds"
)

// FeedConfig describes the RSS channel.
type FeedConfig struct {
	Title   string
	SiteURL string
}

// titleLen bounds the reply text used as item title.
const titleLen = 80

// BuildFeed renders an unreplied page as an RSS document. Items keep the
// page order.
func BuildFeed(cfg FeedConfig, fid uint64, page *domain.UnrepliedPage, now time.Time) (string, error) {
	title := cfg.Title
	if title == "" {
		title = "Unreplied"
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s: fid %d", title, fid),
		Link:        &feeds.Link{Href: strings.TrimRight(cfg.SiteURL, "/") + "/api/unreplied?fid=" + strconv.FormatUint(fid, 10)},
		Description: page.Message,
		Created:     now,
	}

	for _, d := range page.UnrepliedDetails {
		author := d.Username
		if author == "" {
			author = "fid " + strconv.FormatUint(d.AuthorFID, 10)
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          d.CastHash,
			Title:       author + ": " + truncate(d.Text, titleLen),
			Link:        &feeds.Link{Href: d.CastURL},
			Author:      &feeds.Author{Name: author},
			Description: itemDescription(d),
			Created:     d.Timestamp,
		})
	}

	return feed.ToRss()
}

func itemDescription(d domain.UnrepliedDetail) string {
	var b strings.Builder
	b.WriteString(d.Text)
	if d.OriginalCastText != "" {
		b.WriteString("\n\nIn reply to: ")
		b.WriteString(d.OriginalCastText)
	}
	if d.ReplyCount > 0 {
		fmt.Fprintf(&b, "\n\n%d replies below this one", d.ReplyCount)
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
