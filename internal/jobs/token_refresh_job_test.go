package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/service"
)

type fakeConnRepo struct {
	repository.ConnectionRepository

	expiring []*models.PlatformConnection
	window   time.Duration
}

func (f *fakeConnRepo) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformConnection, error) {
	f.window = finalTime.Sub(initialTime)
	return f.expiring, nil
}

type fakeTokenService struct {
	mu        sync.Mutex
	refreshed []int64
	err       error
}

func (f *fakeTokenService) EnsureValid(ctx context.Context, conn *models.PlatformConnection) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, conn.ID)
	return "token", f.err
}

func TestRefreshTokensVisitsEveryExpiringConnection(t *testing.T) {
	cr := &fakeConnRepo{
		expiring: []*models.PlatformConnection{
			{ID: 1, Platform: models.PlatformFacebook, IsActive: true},
			{ID: 2, Platform: models.PlatformLinkedIn, IsActive: true},
			{ID: 3, Platform: models.PlatformX, IsActive: true},
		},
	}
	tokens := &fakeTokenService{}

	cfg := config.Config{TokenRefreshMargin: 30 * time.Minute}
	NewTokenRefreshJob(cfg, cr, tokens).RefreshTokens()

	assert.ElementsMatch(t, []int64{1, 2, 3}, tokens.refreshed)
	assert.Equal(t, cfg.TokenRefreshMargin, cr.window)
}

func TestRefreshTokensToleratesReauthFailures(t *testing.T) {
	cr := &fakeConnRepo{
		expiring: []*models.PlatformConnection{
			{ID: 1, Platform: models.PlatformFacebook, IsActive: true},
			{ID: 2, Platform: models.PlatformLinkedIn, IsActive: true},
		},
	}
	tokens := &fakeTokenService{err: service.ErrReauthRequired}

	cfg := config.Config{TokenRefreshMargin: 30 * time.Minute}
	NewTokenRefreshJob(cfg, cr, tokens).RefreshTokens()

	assert.Len(t, tokens.refreshed, 2)
}
