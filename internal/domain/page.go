package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayFilter restricts which root casts are considered.
type DayFilter string

const (
	DayFilterAll      DayFilter = "all"
	DayFilterToday    DayFilter = "today"
	DayFilter3Days    DayFilter = "3days"
	DayFilter7Days    DayFilter = "7days"
	DefaultDayFilter            = DayFilterToday
	DefaultPageLimit            = 25
)

// ParseDayFilter parses a query value. Empty input yields the default filter.
func ParseDayFilter(s string) (DayFilter, error) {
	switch DayFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultDayFilter, nil
	case DayFilterAll:
		return DayFilterAll, nil
	case DayFilterToday:
		return DayFilterToday, nil
	case DayFilter3Days:
		return DayFilter3Days, nil
	case DayFilter7Days:
		return DayFilter7Days, nil
	}
	return "", fmt.Errorf("%w: unknown day filter %q", ErrInvalidInput, s)
}

// Window returns the rolling window covered by the filter, zero for all.
func (f DayFilter) Window() time.Duration {
	switch f {
	case DayFilterToday:
		return 24 * time.Hour
	case DayFilter3Days:
		return 3 * 24 * time.Hour
	case DayFilter7Days:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Since returns the oldest instant a root cast may have, or the zero time.
func (f DayFilter) Since(now time.Time) time.Time {
	w := f.Window()
	if w == 0 {
		return time.Time{}
	}
	return now.Add(-w)
}

// ListQuery is a request for one page of an account's casts.
type ListQuery struct {
	FID       uint64
	Limit     int
	Cursor    string
	DayFilter DayFilter
	Since     time.Time // zero means no lower bound
}

// Includes reports whether a cast timestamp passes the query's window.
func (q ListQuery) Includes(ts time.Time) bool {
	return q.Since.IsZero() || !ts.Before(q.Since)
}

// CastPage is one page of listed casts. An empty NextCursor means there are
// no more pages.
type CastPage struct {
	Casts      []Cast `json:"casts"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// UnrepliedDetail is the user-facing projection of one unreplied reply.
type UnrepliedDetail struct {
	CastHash               string    `json:"castHash"`
	AuthorFID              uint64    `json:"authorFid"`
	Username               string    `json:"username"`
	AvatarURL              string    `json:"avatarUrl"`
	Text                   string    `json:"text"`
	Timestamp              time.Time `json:"timestamp"`
	TimeAgo                string    `json:"timeAgo"`
	CastURL                string    `json:"castUrl"`
	Embeds                 []Embed   `json:"embeds"`
	OriginalCastHash       string    `json:"originalCastHash"`
	OriginalCastText       string    `json:"originalCastText"`
	OriginalAuthorUsername string    `json:"originalAuthorUsername"`
	ReplyCount             int       `json:"replyCount"`
}

// UnrepliedPage is the response of one fetch.
type UnrepliedPage struct {
	UnrepliedCount   int               `json:"unrepliedCount"`
	UnrepliedDetails []UnrepliedDetail `json:"unrepliedDetails"`
	Message          string            `json:"message"`
	NextCursor       *string           `json:"nextCursor"`
	// Partial is set when a walk hit a cap or lost a branch, so the count
	// may be low.
	Partial bool `json:"partial,omitempty"`
}

// MessageFor builds the summary line. The wording says "today" for every
// day filter; changing it is a product decision.
func MessageFor(count int) string {
	return fmt.Sprintf("You have %d unreplied comments today.", count)
}

// CursorPtr maps the empty cursor to nil for JSON null.
func CursorPtr(c string) *string {
	if c == "" {
		return nil
	}
	return &c
}

// ConversationSummary is one row of the read-replica conversation query.
type ConversationSummary struct {
	Cast             Cast      `json:"cast"`
	ReplyCount       int       `json:"replyCount"`
	FirstReplyAuthor uint64    `json:"firstReplyAuthor"`
	FirstReplyTime   time.Time `json:"firstReplyTime"`
}

// ConversationList is the result of the read-replica conversation query.
type ConversationList struct {
	Conversations []ConversationSummary `json:"conversations"`
	TotalCount    int                   `json:"totalCount"`
}
