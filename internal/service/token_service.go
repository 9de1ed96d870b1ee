package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrReauthRequired means the stored credentials are beyond repair: the
// user must reconnect the platform before any further publishing.
var ErrReauthRequired = errors.New("platform connection requires reauthorization")

type TokenService interface {
	// EnsureValid returns a usable decrypted access token for the
	// connection, refreshing and persisting it first when needed. On
	// irrecoverable failure the connection is deactivated and
	// ErrReauthRequired is returned. All state transitions are persisted
	// before returning.
	EnsureValid(ctx context.Context, conn *models.PlatformConnection) (string, error)
}

type tokenService struct {
	cfg    config.Config
	cr     repository.ConnectionRepository
	client *http.Client
}

func NewTokenService(cfg config.Config, cr repository.ConnectionRepository) TokenService {
	return &tokenService{
		cfg:    cfg,
		cr:     cr,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *tokenService) EnsureValid(ctx context.Context, conn *models.PlatformConnection) (string, error) {
	if conn == nil || !conn.IsActive {
		return "", ErrReauthRequired
	}

	now := time.Now()

	// Expired, or close enough to expiry that a publish could race it:
	// refresh now. The background refresh job feeds connections inside
	// this margin.
	if !conn.TokenExpiresAt.After(now.Add(s.cfg.TokenRefreshMargin)) {
		return s.refresh(ctx, conn)
	}

	accessToken, err := utils.Decrypt(conn.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", err
	}

	// Validated recently: no network call.
	if now.Sub(conn.LastValidatedAt) < s.cfg.TokenFreshness {
		return accessToken, nil
	}

	// Stale: confirm the token still works before trusting it, so
	// last_validated_at only moves after a real check. A revoked token
	// goes through the refresh path.
	if !s.stillValid(ctx, conn.Platform, accessToken) {
		return s.refresh(ctx, conn)
	}
	if err := s.cr.Touch(ctx, conn.ID, now); err != nil {
		return "", err
	}
	return accessToken, nil
}

// validationEndpoints are cheap authenticated reads used to confirm a
// stale token.
var validationEndpoints = map[string]string{
	models.PlatformFacebook:  "https://graph.facebook.com/v21.0/me?fields=id",
	models.PlatformInstagram: "https://graph.instagram.com/me?fields=id",
	models.PlatformLinkedIn:  "https://api.linkedin.com/v2/userinfo",
	models.PlatformX:         "https://api.x.com/2/users/me",
	models.PlatformYouTube:   "https://oauth2.googleapis.com/tokeninfo",
}

func (s *tokenService) stillValid(ctx context.Context, platform, accessToken string) bool {
	endpoint, ok := validationEndpoints[platform]
	if !ok {
		return true
	}
	if platform == models.PlatformYouTube {
		endpoint += "?access_token=" + url.QueryEscape(accessToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return true
	}
	if platform != models.PlatformYouTube {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Transport failures get classified on the publish path.
		slog.Info(err.Error(), "platform", platform)
		return true
	}
	defer resp.Body.Close()

	return resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden
}

func (s *tokenService) refresh(ctx context.Context, conn *models.PlatformConnection) (string, error) {
	if conn.RefreshToken == "" {
		slog.Info("no refresh token stored", "platform", conn.Platform, "connection_id", conn.ID)
		return "", s.deactivate(ctx, conn)
	}

	refreshToken, err := utils.Decrypt(conn.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", err
	}

	conf := platformOAuthConfig(s.cfg, conn.Platform)
	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error(), "platform", conn.Platform, "connection_id", conn.ID)
		return "", s.deactivate(ctx, conn)
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return "", err
	}

	// Some providers rotate the refresh token on every grant; persist it
	// only when a new one arrived.
	var encryptedRefreshToken string
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return "", err
		}
	}

	if err := s.cr.UpdateToken(ctx, conn.ID, encryptedAccessToken, encryptedRefreshToken, token.Expiry); err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

func (s *tokenService) deactivate(ctx context.Context, conn *models.PlatformConnection) error {
	if err := s.cr.Deactivate(ctx, conn.ID); err != nil {
		return fmt.Errorf("deactivating connection: %w", err)
	}
	return ErrReauthRequired
}

// platformOAuthConfig builds the oauth2 client configuration for a
// platform. Shared by the refresh path and the connect callbacks.
func platformOAuthConfig(cfg config.Config, platform string) *oauth2.Config {
	switch platform {
	case models.PlatformYouTube:
		return &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
			Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
			Endpoint:     google.Endpoint,
		}
	case models.PlatformFacebook:
		return &oauth2.Config{
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			RedirectURL:  cfg.Facebook.RedirectURI,
			Scopes:       []string{"pages_manage_posts", "pages_read_engagement"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.facebook.com/v21.0/dialog/oauth",
				TokenURL: "https://graph.facebook.com/v21.0/oauth/access_token",
			},
		}
	case models.PlatformInstagram:
		return &oauth2.Config{
			ClientID:     cfg.Instagram.ClientID,
			ClientSecret: cfg.Instagram.ClientSecret,
			RedirectURL:  cfg.Instagram.RedirectURI,
			Scopes:       []string{"instagram_business_basic", "instagram_business_content_publish"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.instagram.com/oauth/authorize",
				TokenURL: "https://api.instagram.com/oauth/access_token",
			},
		}
	case models.PlatformLinkedIn:
		return &oauth2.Config{
			ClientID:     cfg.LinkedIn.ClientID,
			ClientSecret: cfg.LinkedIn.ClientSecret,
			RedirectURL:  cfg.LinkedIn.RedirectURI,
			Scopes:       []string{"openid", "profile", "w_member_social"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
				TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
			},
		}
	case models.PlatformX:
		return &oauth2.Config{
			ClientID:     cfg.X.ClientID,
			ClientSecret: cfg.X.ClientSecret,
			RedirectURL:  cfg.X.RedirectURI,
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://x.com/i/oauth2/authorize",
				TokenURL: "https://api.x.com/2/oauth2/token",
			},
		}
	default:
		return &oauth2.Config{}
	}
}
