package usecases

import (
	"context"

	"unreplied/internal/domain"
)

// ConversationSource fetches casts and their direct replies from one
// upstream (hub API, search index, read replica, rendered web client).
type ConversationSource interface {
	// Name identifies the source in logs.
	Name() string

	// FetchCast resolves a single cast. Returns domain.ErrNotFound when the
	// hash does not exist.
	FetchCast(ctx context.Context, id domain.CastID) (*domain.Cast, error)

	// FetchDirectReplies returns at most limit direct replies of parent,
	// in the order the upstream provides them.
	FetchDirectReplies(ctx context.Context, parent domain.Cast, limit int) ([]domain.Cast, error)
}

// CastLister lists the casts an account authored, newest first.
type CastLister interface {
	ListCastsByAuthor(ctx context.Context, q domain.ListQuery) (domain.CastPage, error)
}

// ProfileResolver looks up display data for accounts.
type ProfileResolver interface {
	Profiles(ctx context.Context, fids []uint64) (map[uint64]domain.Profile, error)
}

// ListingCache caches listing pages by key.
type ListingCache interface {
	Get(key string) (*domain.CastPage, bool)
	Set(key string, page *domain.CastPage)
}

// ConversationRepository is the read-replica query contract.
type ConversationRepository interface {
	UnrepliedConversations(ctx context.Context, fid uint64, limit int) (domain.ConversationList, error)
}
