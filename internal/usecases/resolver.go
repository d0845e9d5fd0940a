package usecases

import "unreplied/internal/domain"

// ResolveUnreplied returns the replies below root that still wait for an
// answer from authorFID, in upstream child order.
//
// A reply by someone else is emitted when nothing in its subtree was
// written by the author. Once the author answered somewhere inside a
// branch, the branch is covered: the only replies that can surface again
// are those hanging below the author's own nodes. authorFID 0 never
// matches a cast.
func ResolveUnreplied(root *domain.ReplyNode, authorFID uint64) []*domain.ReplyNode {
	if root == nil {
		return nil
	}
	var out []*domain.ReplyNode
	resolveOpen(root.Children, authorFID, &out)
	return out
}

// HasAuthorReply reports whether any node below n was authored by authorFID.
func HasAuthorReply(n *domain.ReplyNode, authorFID uint64) bool {
	if n == nil {
		return false
	}
	for _, ch := range n.Children {
		if isAuthor(ch, authorFID) || HasAuthorReply(ch, authorFID) {
			return true
		}
	}
	return false
}

func resolveOpen(children []*domain.ReplyNode, authorFID uint64, out *[]*domain.ReplyNode) {
	for _, ch := range children {
		switch {
		case isAuthor(ch, authorFID):
			resolveOpen(ch.Children, authorFID, out)
		case !HasAuthorReply(ch, authorFID):
			*out = append(*out, ch)
		default:
			resolveCovered(ch.Children, authorFID, out)
		}
	}
}

// resolveCovered descends a covered branch looking only for the author's
// own nodes; everything else in it counts as answered.
func resolveCovered(children []*domain.ReplyNode, authorFID uint64, out *[]*domain.ReplyNode) {
	for _, ch := range children {
		switch {
		case isAuthor(ch, authorFID):
			resolveOpen(ch.Children, authorFID, out)
		case HasAuthorReply(ch, authorFID):
			resolveCovered(ch.Children, authorFID, out)
		}
	}
}

func isAuthor(n *domain.ReplyNode, authorFID uint64) bool {
	return authorFID != 0 && n.AuthorFID == authorFID
}
