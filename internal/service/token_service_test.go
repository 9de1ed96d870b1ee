package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

type trackingConnRepo struct {
	repository.ConnectionRepository

	touched     bool
	deactivated bool
}

func (r *trackingConnRepo) Touch(ctx context.Context, id int64, validatedAt time.Time) error {
	r.touched = true
	return nil
}

func (r *trackingConnRepo) Deactivate(ctx context.Context, id int64) error {
	r.deactivated = true
	return nil
}

func encryptToken(t *testing.T, plaintext string) string {
	t.Helper()
	encrypted, err := utils.Encrypt([]byte(plaintext), []byte(testSecretKey))
	require.NoError(t, err)
	return encrypted
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// newTestTokenService stubs the validation transport so no test leaves
// the process. Every validation request answers with the given status
// and is counted in *calls.
func newTestTokenService(cr repository.ConnectionRepository, status int, calls *int) TokenService {
	cfg := config.Config{
		SecretKey:          testSecretKey,
		TokenFreshness:     5 * time.Minute,
		TokenRefreshMargin: 30 * time.Minute,
	}
	s := NewTokenService(cfg, cr).(*tokenService)
	s.client = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if calls != nil {
			*calls++
		}
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader("{}")),
			Header:     make(http.Header),
		}, nil
	})}
	return s
}

func TestEnsureValidRejectsMissingConnection(t *testing.T) {
	s := newTestTokenService(&trackingConnRepo{}, http.StatusOK, nil)

	_, err := s.EnsureValid(context.Background(), nil)
	assert.ErrorIs(t, err, ErrReauthRequired)
}

func TestEnsureValidRejectsInactiveConnection(t *testing.T) {
	s := newTestTokenService(&trackingConnRepo{}, http.StatusOK, nil)

	conn := &models.PlatformConnection{
		ID:       1,
		Platform: models.PlatformFacebook,
		IsActive: false,
	}

	_, err := s.EnsureValid(context.Background(), conn)
	assert.ErrorIs(t, err, ErrReauthRequired)
}

func TestEnsureValidFreshTokenSkipsNetwork(t *testing.T) {
	cr := &trackingConnRepo{}
	var calls int
	s := newTestTokenService(cr, http.StatusOK, &calls)

	conn := &models.PlatformConnection{
		ID:              1,
		Platform:        models.PlatformFacebook,
		AccessToken:     encryptToken(t, "fb-access-token"),
		TokenExpiresAt:  time.Now().Add(time.Hour),
		LastValidatedAt: time.Now().Add(-time.Minute),
		IsActive:        true,
	}

	token, err := s.EnsureValid(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "fb-access-token", token)
	assert.Zero(t, calls)
	assert.False(t, cr.touched)
	assert.False(t, cr.deactivated)
}

func TestEnsureValidStaleUnexpiredTokenRevalidates(t *testing.T) {
	cr := &trackingConnRepo{}
	var calls int
	s := newTestTokenService(cr, http.StatusOK, &calls)

	conn := &models.PlatformConnection{
		ID:              1,
		Platform:        models.PlatformLinkedIn,
		AccessToken:     encryptToken(t, "li-access-token"),
		TokenExpiresAt:  time.Now().Add(time.Hour),
		LastValidatedAt: time.Now().Add(-time.Hour),
		IsActive:        true,
	}

	token, err := s.EnsureValid(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "li-access-token", token)
	assert.Equal(t, 1, calls)
	assert.True(t, cr.touched)
}

func TestEnsureValidStaleRevokedTokenGoesThroughRefresh(t *testing.T) {
	cr := &trackingConnRepo{}
	s := newTestTokenService(cr, http.StatusUnauthorized, nil)

	// No refresh token stored, so the refresh attempt deactivates the
	// connection instead of silently trusting the revoked token.
	conn := &models.PlatformConnection{
		ID:              1,
		Platform:        models.PlatformLinkedIn,
		AccessToken:     encryptToken(t, "li-access-token"),
		TokenExpiresAt:  time.Now().Add(time.Hour),
		LastValidatedAt: time.Now().Add(-time.Hour),
		IsActive:        true,
	}

	_, err := s.EnsureValid(context.Background(), conn)
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.True(t, cr.deactivated)
	assert.False(t, cr.touched)
}

func TestEnsureValidRefreshesInsideExpiryMargin(t *testing.T) {
	cr := &trackingConnRepo{}
	var calls int
	s := newTestTokenService(cr, http.StatusOK, &calls)

	// Expires in 10 minutes, inside the 30-minute refresh margin: the
	// token must be refreshed, not handed out with a bumped
	// last_validated_at.
	conn := &models.PlatformConnection{
		ID:              1,
		Platform:        models.PlatformX,
		AccessToken:     encryptToken(t, "x-access-token"),
		TokenExpiresAt:  time.Now().Add(10 * time.Minute),
		LastValidatedAt: time.Now().Add(-time.Hour),
		IsActive:        true,
	}

	_, err := s.EnsureValid(context.Background(), conn)
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.True(t, cr.deactivated)
	assert.False(t, cr.touched)
	assert.Zero(t, calls)
}

func TestEnsureValidExpiredWithoutRefreshTokenDeactivates(t *testing.T) {
	cr := &trackingConnRepo{}
	s := newTestTokenService(cr, http.StatusOK, nil)

	conn := &models.PlatformConnection{
		ID:             1,
		Platform:       models.PlatformX,
		AccessToken:    encryptToken(t, "x-access-token"),
		TokenExpiresAt: time.Now().Add(-time.Hour),
		IsActive:       true,
	}

	_, err := s.EnsureValid(context.Background(), conn)
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.True(t, cr.deactivated)
}
