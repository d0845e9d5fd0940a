package scraper

import (
	"testing"
	"time"

	"unreplied/test/fixtures"
)

func TestParseConversation_ExtractsCastsInPageOrder(t *testing.T) {
	// Arrange
	page := fixtures.ConversationPage()

	// Act
	casts := parseConversation(page, defaultAttributes())

	// Assert
	if len(casts) != 3 {
		t.Fatalf("casts: got %d, want 3", len(casts))
	}
	want := []string{fixtures.RootHash, fixtures.BobHash, fixtures.CarolHash}
	for i, h := range want {
		if casts[i].Hash != h {
			t.Errorf("casts[%d].Hash: got %v, want %v", i, casts[i].Hash, h)
		}
	}
}

func TestParseConversation_RootCastFields(t *testing.T) {
	// Act
	root := parseConversation(fixtures.ConversationPage(), defaultAttributes())[0]

	// Assert
	if root.AuthorFID != fixtures.AliceFID {
		t.Errorf("AuthorFID: got %v, want %v", root.AuthorFID, fixtures.AliceFID)
	}
	if root.Username != "alice" {
		t.Errorf("Username: got %v, want alice", root.Username)
	}
	if root.DisplayName != "Alice" {
		t.Errorf("DisplayName: got %v, want Alice", root.DisplayName)
	}
	if root.AvatarURL != "https://example.com/alice.png" {
		t.Errorf("AvatarURL: got %v", root.AvatarURL)
	}
	wantText := "gm farcaster\n\nnew post is up https://example.com/post"
	if root.Text != wantText {
		t.Errorf("Text: got %q, want %q", root.Text, wantText)
	}
	wantTime := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	if !root.Timestamp.Equal(wantTime) {
		t.Errorf("Timestamp: got %v, want %v", root.Timestamp, wantTime)
	}
	if !root.IsRoot() {
		t.Errorf("ParentHash: got %v, want empty", root.ParentHash)
	}
	if len(root.Embeds) != 2 {
		t.Fatalf("Embeds: got %d, want 2", len(root.Embeds))
	}
	if root.Embeds[0].URL != "https://example.com/post" {
		t.Errorf("Embeds[0].URL: got %v", root.Embeds[0].URL)
	}
	quoted := root.Embeds[1].CastID
	if quoted == nil || quoted.Hash != fixtures.QuoteHash || quoted.FID != 11 {
		t.Errorf("Embeds[1].CastID: got %+v, want %s/11", quoted, fixtures.QuoteHash)
	}
}

func TestParseConversation_ReplyKeepsParentAndMentions(t *testing.T) {
	// Act
	bob := parseConversation(fixtures.ConversationPage(), defaultAttributes())[1]

	// Assert
	if bob.ParentHash != fixtures.RootHash {
		t.Errorf("ParentHash: got %v, want %v", bob.ParentHash, fixtures.RootHash)
	}
	if bob.ParentFID != fixtures.AliceFID {
		t.Errorf("ParentFID: got %v, want %v", bob.ParentFID, fixtures.AliceFID)
	}
	if bob.Text != "nice one @alice & thanks" {
		t.Errorf("Text: got %q", bob.Text)
	}
	if len(bob.Embeds) != 0 {
		t.Errorf("Embeds: got %v, want none", bob.Embeds)
	}
}

func TestParseConversation_PartialCast(t *testing.T) {
	// Act
	casts := parseConversation(fixtures.PartialCastPage(), defaultAttributes())

	// Assert
	if len(casts) != 1 {
		t.Fatalf("casts: got %d, want 1 (element without hash skipped)", len(casts))
	}
	c := casts[0]
	if c.AuthorFID != 0 || c.Username != "" {
		t.Errorf("author: got %d/%q, want empty", c.AuthorFID, c.Username)
	}
	if !c.Timestamp.IsZero() {
		t.Errorf("Timestamp: got %v, want zero", c.Timestamp)
	}
	if c.Text != "text without an author" {
		t.Errorf("Text: got %q", c.Text)
	}
}

func TestParseConversation_EmptyPage(t *testing.T) {
	casts := parseConversation(fixtures.EmptyConversationPage(), defaultAttributes())
	if len(casts) != 0 {
		t.Errorf("casts: got %d, want 0", len(casts))
	}
}

func TestParseConversation_CustomAttributes(t *testing.T) {
	// Arrange
	page := `<li data-h="0xABC" data-f="5"><div data-testid="body">hi</div></li>`
	attrs := Attributes{Hash: "data-h", AuthorFID: "data-f", TextTestID: "body"}

	// Act
	casts := parseConversation(page, attrs)

	// Assert
	if len(casts) != 1 {
		t.Fatalf("casts: got %d, want 1", len(casts))
	}
	if casts[0].Hash != "0xabc" || casts[0].AuthorFID != 5 || casts[0].Text != "hi" {
		t.Errorf("cast: got %+v", casts[0])
	}
}

func TestCleanTextPreserveNewlines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces", "a   b\tc", "a b c"},
		{"trims lines", "  a  \n  b  ", "a\nb"},
		{"max one blank line", "a\n\n\n\nb", "a\n\nb"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanTextPreserveNewlines(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttrValue(t *testing.T) {
	tag := `<article data-cast-hash="0x1" data-author-username="a&amp;b">`
	if got := attrValue(tag, "data-cast-hash"); got != "0x1" {
		t.Errorf("hash: got %q", got)
	}
	if got := attrValue(tag, "data-author-username"); got != "a&b" {
		t.Errorf("username: got %q", got)
	}
	if got := attrValue(tag, "data-missing"); got != "" {
		t.Errorf("missing: got %q", got)
	}
}
