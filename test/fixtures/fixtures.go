// Package fixtures provides rendered conversation pages for testing the
// web source parser.
package fixtures

// Hashes and FIDs used by the conversation fixtures.
const (
	RootHash  = "0xa1b2c3d4e5f60718293a4b5c6d7e8f9012345678"
	BobHash   = "0xb0b0000000000000000000000000000000000001"
	CarolHash = "0xca201000000000000000000000000000000000002"
	QuoteHash = "0x9e0000000000000000000000000000000000000f"

	AliceFID = 42
	BobFID   = 7
	CarolFID = 9
)

// ConversationPage renders a conversation: the focused root cast by alice
// followed by two direct replies. Bob's reply carries an explicit parent,
// carol's relies on the page order.
func ConversationPage() string {
	return `
<!DOCTYPE html>
<html>
<head><title>Conversation</title></head>
<body>
<main data-testid="conversation">
<article data-testid="cast" data-cast-hash="0xA1B2C3D4E5F60718293A4B5C6D7E8F9012345678" data-author-fid="42" data-author-username="alice" data-author-name="Alice">
    <img data-testid="cast-avatar" src="https://example.com/alice.png"/>
    <div data-testid="cast-text" dir="auto">
        gm farcaster<br/>
        new post is up <a href="https://example.com/post">example.com/post</a>
    </div>
    <div data-testid="cast-embed" data-embed-cast-hash="0x9e0000000000000000000000000000000000000f" data-embed-cast-fid="11"></div>
    <time datetime="2024-05-01T11:00:00Z">1h</time>
</article>
<article data-testid="cast" data-cast-hash="0xb0b0000000000000000000000000000000000001" data-author-fid="7" data-author-username="bob" data-parent-hash="0xa1b2c3d4e5f60718293a4b5c6d7e8f9012345678" data-parent-fid="42">
    <img data-testid="cast-avatar" src="https://example.com/bob.png"/>
    <div data-testid="cast-text" dir="auto">
        nice one <a href="/alice">@alice</a> &amp; thanks
    </div>
    <time datetime="2024-05-01T11:30:00Z">30m</time>
</article>
<article data-testid="cast" data-cast-hash="0xca201000000000000000000000000000000000002" data-author-fid="9" data-author-username="carol">
    <div data-testid="cast-text" dir="auto">
        agreed
    </div>
    <time datetime="2024-05-01T11:45:00Z">15m</time>
</article>
</main>
</body>
</html>
`
}

// EmptyConversationPage renders the client's "cast not found" state.
func EmptyConversationPage() string {
	return `
<!DOCTYPE html>
<html>
<head><title>Conversation</title></head>
<body>
<main data-testid="conversation">
    <p>This cast could not be found.</p>
</main>
</body>
</html>
`
}

// PartialCastPage renders a cast with missing author data and an
// unparseable timestamp.
func PartialCastPage() string {
	return `
<!DOCTYPE html>
<html>
<head><title>Conversation</title></head>
<body>
<main data-testid="conversation">
<article data-testid="cast" data-cast-hash="0xdead0000000000000000000000000000000000ff">
    <div data-testid="cast-text" dir="auto">
        text without an author
    </div>
    <time datetime="yesterday">yesterday</time>
</article>
<article data-testid="cast" data-author-fid="7">
    <div data-testid="cast-text" dir="auto">no hash, skipped</div>
</article>
</main>
</body>
</html>
`
}
