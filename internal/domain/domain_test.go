package domain_test

import (
	"errors"
	"testing"
	"time"

	"unreplied/internal/domain"
)

func TestParseDayFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.DayFilter
		wantErr bool
	}{
		{"", domain.DayFilterToday, false},
		{"all", domain.DayFilterAll, false},
		{"TODAY", domain.DayFilterToday, false},
		{" 3days ", domain.DayFilter3Days, false},
		{"7days", domain.DayFilter7Days, false},
		{"yesterday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseDayFilter(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestDayFilter_Since(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	if !domain.DayFilterAll.Since(now).IsZero() {
		t.Error("all: expected zero time")
	}
	if got := domain.DayFilter3Days.Since(now); !got.Equal(now.Add(-72 * time.Hour)) {
		t.Errorf("3days: got %v", got)
	}

	q := domain.ListQuery{Since: domain.DayFilterToday.Since(now)}
	if q.Includes(now.Add(-25 * time.Hour)) {
		t.Error("today must exclude a 25h old cast")
	}
	if !q.Includes(now.Add(-time.Hour)) {
		t.Error("today must include a 1h old cast")
	}
}

func TestNormalizeTimestamp_SecondsAndMillis(t *testing.T) {
	sec := domain.NormalizeTimestamp(1714521600)
	ms := domain.NormalizeTimestamp(1714521600000)

	if !sec.Equal(ms) {
		t.Errorf("got %v and %v, want equal instants", sec, ms)
	}
}

func TestFromFarcasterTime(t *testing.T) {
	got := domain.FromFarcasterTime(0)
	if !got.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("got %v", got)
	}
}

func TestNormalizeHash(t *testing.T) {
	if got := domain.NormalizeHash(" ABCDEF "); got != "0xabcdef" {
		t.Errorf("got %q", got)
	}
	if got := domain.ShortHash("0x1234567890abcdef"); got != "0x12345678" {
		t.Errorf("ShortHash: got %q", got)
	}
}

func TestReplyNode_DescendantsAndWalk(t *testing.T) {
	root := domain.NewReplyNode(domain.Cast{Hash: "r"})
	a := domain.NewReplyNode(domain.Cast{Hash: "a"})
	a.Children = []*domain.ReplyNode{domain.NewReplyNode(domain.Cast{Hash: "a1"})}
	root.Children = []*domain.ReplyNode{a, domain.NewReplyNode(domain.Cast{Hash: "b"})}

	if got := root.Descendants(); got != 3 {
		t.Errorf("Descendants: got %d, want 3", got)
	}

	var order []string
	root.Walk(func(n *domain.ReplyNode, depth int) bool {
		order = append(order, n.Hash)
		return n.Hash != "a"
	})
	if len(order) != 3 || order[2] != "b" {
		t.Errorf("Walk order: got %v, want [r a b]", order)
	}
}

func TestMessageFor_AlwaysSaysToday(t *testing.T) {
	if got := domain.MessageFor(0); got != "You have 0 unreplied comments today." {
		t.Errorf("got %q", got)
	}
}
