package usecases

import (
	"context"
	"fmt"

	"unreplied/internal/domain"
)

// ListConversationsUseCase reads conversation summaries from the read
// replica.
type ListConversationsUseCase struct {
	repo         ConversationRepository
	defaultLimit int
	maxLimit     int
}

// NewListConversationsUseCase creates a new ListConversationsUseCase. A nil
// repo makes every call fail with domain.ErrMisconfigured.
func NewListConversationsUseCase(repo ConversationRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{
		repo:         repo,
		defaultLimit: domain.DefaultPageLimit,
		maxLimit:     DefaultMaxPageLimit,
	}
}

// Execute returns the account's conversations that still have replies
// waiting for an answer.
func (uc *ListConversationsUseCase) Execute(ctx context.Context, fid uint64, limit int) (*domain.ConversationList, error) {
	if uc.repo == nil {
		return nil, fmt.Errorf("%w: conversation summaries need the replica source", domain.ErrMisconfigured)
	}
	if fid == 0 {
		return nil, fmt.Errorf("%w: fid is required", domain.ErrInvalidInput)
	}
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	case limit == 0:
		limit = uc.defaultLimit
	case limit > uc.maxLimit:
		limit = uc.maxLimit
	}

	list, err := uc.repo.UnrepliedConversations(ctx, fid, limit)
	if err != nil {
		return nil, upstreamError(err, "list conversations")
	}
	if list.Conversations == nil {
		list.Conversations = []domain.ConversationSummary{}
	}
	return &list, nil
}
