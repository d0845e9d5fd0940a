package scraper

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"unreplied/internal/domain"
)

var (
	linkRe      = regexp.MustCompile(`<a[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	lineBreakRe = regexp.MustCompile(`<br\s*/?\s*>|</div>|</p>`)
	tagRe       = regexp.MustCompile(`<[^>]*>`)
	spacesRe    = regexp.MustCompile(`\s+`)
	hspaceRe    = regexp.MustCompile(`[^\S\n]+`)
	newlinesRe  = regexp.MustCompile(`\n{3,}`)
	timeRe      = regexp.MustCompile(`<time[^>]*datetime="([^"]+)"`)
	imgRe       = regexp.MustCompile(`<img[^>]*>`)
	openTagRe   = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
)

// parseConversation extracts every cast element from a rendered
// conversation page, in page order. Elements without a hash are skipped.
func parseConversation(page string, attrs Attributes) []domain.Cast {
	var casts []domain.Cast
	for _, block := range castBlocks(page, attrs.Hash) {
		c, ok := parseCast(block, attrs)
		if !ok {
			continue
		}
		casts = append(casts, c)
	}
	return casts
}

// castBlocks splits the page at each element carrying the hash attribute.
// A block runs until the next cast element.
func castBlocks(page, hashAttr string) []string {
	startRe := regexp.MustCompile(`<[a-zA-Z]+[^>]*\s` + regexp.QuoteMeta(hashAttr) + `="`)
	idx := startRe.FindAllStringIndex(page, -1)
	blocks := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(page)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		blocks = append(blocks, page[loc[0]:end])
	}
	return blocks
}

// parseCast reads one cast element. The second result is false when the
// element has no usable hash.
func parseCast(block string, attrs Attributes) (domain.Cast, bool) {
	open := block
	if i := strings.Index(block, ">"); i >= 0 {
		open = block[:i+1]
	}

	hash := domain.NormalizeHash(attrValue(open, attrs.Hash))
	if hash == "" {
		return domain.Cast{}, false
	}

	text, links := extractCastText(block, attrs.TextTestID)
	c := domain.Cast{
		Hash:        hash,
		AuthorFID:   parseFID(attrValue(open, attrs.AuthorFID)),
		Username:    attrValue(open, attrs.Username),
		DisplayName: attrValue(open, attrs.DisplayName),
		AvatarURL:   extractAvatar(block, attrs.AvatarTestID),
		Text:        text,
		Timestamp:   extractTimestamp(block),
		ParentHash:  domain.NormalizeHash(attrValue(open, attrs.ParentHash)),
		ParentFID:   parseFID(attrValue(open, attrs.ParentFID)),
	}
	for _, link := range links {
		c.Embeds = append(c.Embeds, domain.Embed{URL: link})
	}
	if quoted := extractQuotedCast(block, attrs); quoted != nil {
		c.Embeds = append(c.Embeds, domain.Embed{CastID: quoted})
	}
	return c, true
}

// attrValue returns the unescaped value of name inside a tag.
func attrValue(tag, name string) string {
	if name == "" {
		return ""
	}
	key := " " + name + `="`
	i := strings.Index(tag, key)
	if i < 0 {
		key = "\n" + name + `="`
		if i = strings.Index(tag, key); i < 0 {
			return ""
		}
	}
	rest := tag[i+len(key):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return ""
	}
	return html.UnescapeString(strings.TrimSpace(rest[:j]))
}

func parseFID(s string) uint64 {
	fid, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return fid
}

// extractCastText returns the cast text with line breaks kept, plus the
// external links found in it.
func extractCastText(block, testID string) (string, []string) {
	re := regexp.MustCompile(`data-testid="` + regexp.QuoteMeta(testID) + `"[^>]*>([\s\S]*?)</div>`)
	matches := re.FindStringSubmatch(block)
	if len(matches) < 2 {
		return "", nil
	}

	content, links := replaceLinks(matches[1])
	content = lineBreakRe.ReplaceAllString(content, "\n")
	content = tagRe.ReplaceAllString(content, "")
	return cleanTextPreserveNewlines(html.UnescapeString(content)), links
}

// replaceLinks swaps anchors for their target. Client-relative links
// (mentions, channels) keep their visible text; external links become the
// full URL and are reported as embeds.
func replaceLinks(fragment string) (string, []string) {
	var links []string
	out := linkRe.ReplaceAllStringFunc(fragment, func(match string) string {
		sub := linkRe.FindStringSubmatch(match)
		href, label := html.UnescapeString(sub[1]), sub[2]
		if strings.HasPrefix(href, "/") || strings.HasPrefix(href, "#") {
			return stripHTML(label)
		}
		links = append(links, href)
		return href
	})
	return out, links
}

// extractAvatar finds the avatar image by test id.
func extractAvatar(block, testID string) string {
	for _, img := range imgRe.FindAllString(block, -1) {
		if attrValue(img, "data-testid") == testID {
			return attrValue(img, "src")
		}
	}
	return ""
}

// extractTimestamp reads the first <time datetime> of the block.
func extractTimestamp(block string) time.Time {
	matches := timeRe.FindStringSubmatch(block)
	if len(matches) < 2 {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, matches[1])
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// extractQuotedCast finds a quoted cast reference (one level only).
func extractQuotedCast(block string, attrs Attributes) *domain.CastID {
	for _, tag := range openTagRe.FindAllString(block, -1) {
		hash := attrValue(tag, attrs.EmbedHash)
		if hash == "" {
			continue
		}
		return &domain.CastID{
			FID:  parseFID(attrValue(tag, attrs.EmbedFID)),
			Hash: domain.NormalizeHash(hash),
		}
	}
	return nil
}

// cleanText collapses whitespace and trims the text.
func cleanText(text string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(text, " "))
}

// cleanTextPreserveNewlines normalizes horizontal whitespace but keeps
// line breaks, collapsing runs to one blank line.
func cleanTextPreserveNewlines(text string) string {
	text = hspaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(newlinesRe.ReplaceAllString(text, "\n\n"))
}

// stripHTML removes HTML tags from a string.
func stripHTML(fragment string) string {
	return cleanText(tagRe.ReplaceAllString(fragment, ""))
}
