package service

import (
	"context"
	"fmt"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

// QuotaService is the ledger over users.remaining_posts. Every decrement is
// attributable to exactly one post's first transition to published; the
// guard lives in the post row's own status, inside one serializable
// transaction in the repository.
type QuotaService interface {
	// HasRemaining is the pre-dispatch gate: when it reports false no
	// platform call is made for the user's posts.
	HasRemaining(ctx context.Context, userID int64) (bool, error)
	// CommitPublish marks the post published and deducts one post, or does
	// neither. decremented is false when the post was already published;
	// repository.ErrQuotaExhausted is returned when the counter is empty.
	CommitPublish(ctx context.Context, postID, userID int64, platformPostID string) (decremented bool, err error)
	Status(ctx context.Context, userID int64) (*transfer.QuotaStatus, error)
}

type quotaService struct {
	u repository.UserRepository
	p repository.PostRepository
}

func NewQuotaService(u repository.UserRepository, p repository.PostRepository) QuotaService {
	return &quotaService{
		u: u,
		p: p,
	}
}

func (s *quotaService) HasRemaining(ctx context.Context, userID int64) (bool, error) {
	remaining, _, err := s.u.QuotaStatus(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("reading quota: %w", err)
	}
	return remaining > 0, nil
}

func (s *quotaService) CommitPublish(ctx context.Context, postID, userID int64, platformPostID string) (bool, error) {
	return s.p.PublishAndDecrement(ctx, postID, userID, platformPostID)
}

func (s *quotaService) Status(ctx context.Context, userID int64) (*transfer.QuotaStatus, error) {
	remaining, total, err := s.u.QuotaStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading quota: %w", err)
	}
	return &transfer.QuotaStatus{
		RemainingPosts: remaining,
		TotalPosts:     total,
	}, nil
}
