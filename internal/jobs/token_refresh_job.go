package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/service"
)

// TokenRefreshJob proactively refreshes connections whose token expires
// soon, so scheduled publishes rarely pay the refresh round-trip on the
// hot path. The lookahead window equals the token service's refresh
// margin, so every connection listed here actually gets refreshed.
// Connections the token service deactivates surface as REAUTH_REQUIRED
// on the next enforcement run.
type TokenRefreshJob struct {
	cfg    config.Config
	cr     repository.ConnectionRepository
	tokens service.TokenService
}

func NewTokenRefreshJob(cfg config.Config, cr repository.ConnectionRepository, tokens service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cfg:    cfg,
		cr:     cr,
		tokens: tokens,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	windowEnd := currentTime.Add(j.cfg.TokenRefreshMargin)

	connections, err := j.cr.ListExpiringBetween(ctx, currentTime, windowEnd)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, conn := range connections {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(conn *models.PlatformConnection) {
			defer wg.Done()
			defer func() { <-semaphore }()

			_, err := j.tokens.EnsureValid(ctx, conn)
			if err != nil {
				if errors.Is(err, service.ErrReauthRequired) {
					slog.Info("connection needs reauthorization",
						"platform", conn.Platform, "user_id", conn.UserID)
					return
				}
				slog.Info("unable to refresh token",
					"platform", conn.Platform, "user_id", conn.UserID, "error", err)
			}
		}(conn)
	}

	wg.Wait()
}
