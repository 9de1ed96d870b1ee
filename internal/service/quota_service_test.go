package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
)

type fakeUserRepo struct {
	repository.UserRepository

	quotaStatus func(userID int64) (int, int, error)
	getByEmail  func(email string) (*models.User, bool, error)
	resetCycle  func(userID int64, plan string, totalPosts int, cycleStart, cycleEnd time.Time) error
}

func (f *fakeUserRepo) QuotaStatus(ctx context.Context, userID int64) (int, int, error) {
	return f.quotaStatus(userID)
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	return f.getByEmail(email)
}

func (f *fakeUserRepo) ResetCycle(ctx context.Context, userID int64, plan string, totalPosts int, cycleStart, cycleEnd time.Time) error {
	return f.resetCycle(userID, plan, totalPosts, cycleStart, cycleEnd)
}

func TestHasRemaining(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		want      bool
	}{
		{"posts left", 5, true},
		{"last post", 1, true},
		{"exhausted", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ur := &fakeUserRepo{
				quotaStatus: func(userID int64) (int, int, error) { return tt.remaining, 12, nil },
			}
			s := NewQuotaService(ur, nil)

			got, err := s.HasRemaining(context.Background(), 42)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasRemainingPropagatesError(t *testing.T) {
	ur := &fakeUserRepo{
		quotaStatus: func(userID int64) (int, int, error) { return 0, 0, errors.New("db down") },
	}
	s := NewQuotaService(ur, nil)

	_, err := s.HasRemaining(context.Background(), 42)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	ur := &fakeUserRepo{
		quotaStatus: func(userID int64) (int, int, error) { return 7, 27, nil },
	}
	s := NewQuotaService(ur, nil)

	status, err := s.Status(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 7, status.RemainingPosts)
	assert.Equal(t, 27, status.TotalPosts)
}
