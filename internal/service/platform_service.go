package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/pkg/utils"
	"golang.org/x/oauth2"
)

// PlatformService owns the connect flow: building the consent URL, handling
// the OAuth callback, listing and disconnecting platform connections.
type PlatformService interface {
	GetAuthURL(ctx context.Context, platform, state string) string
	Callback(ctx context.Context, platform, code string, userID int64) error
	List(ctx context.Context, userID int64) ([]*models.PlatformConnection, error)
	Delete(ctx context.Context, userID, connectionID int64) error
}

type platformService struct {
	cfg config.Config
	cr  repository.ConnectionRepository
}

func NewPlatformService(cfg config.Config, cr repository.ConnectionRepository) PlatformService {
	return &platformService{
		cfg: cfg,
		cr:  cr,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platform, state string) string {
	if !models.KnownPlatform(platform) {
		return ""
	}

	conf := platformOAuthConfig(s.cfg, platform)
	opts := []oauth2.AuthCodeOption{}
	if platform == models.PlatformYouTube {
		// offline access so Google issues a refresh token
		opts = append(opts, oauth2.AccessTypeOffline)
	}
	return conf.AuthCodeURL(state, opts...)
}

func (s *platformService) Callback(ctx context.Context, platform, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}
	if !models.KnownPlatform(platform) {
		return fmt.Errorf("unknown platform %q", platform)
	}

	conf := platformOAuthConfig(s.cfg, platform)
	if conf.ClientID == "" || conf.ClientSecret == "" || conf.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	conn, err := s.accountInfo(ctx, conf, platform, token)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	conn.AccessToken = encryptedAccessToken

	if token.RefreshToken != "" {
		encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		conn.RefreshToken = encryptedRefreshToken
	}

	conn.UserID = userID
	conn.Platform = platform
	conn.TokenExpiresAt = token.Expiry
	if conn.TokenExpiresAt.IsZero() {
		// Long-lived tokens without an expiry (Facebook page tokens);
		// treat them as valid for sixty days.
		conn.TokenExpiresAt = time.Now().Add(60 * 24 * time.Hour)
	}

	_, err = s.cr.Create(ctx, nil, conn)
	if err != nil {
		return err
	}

	return nil
}

func (s *platformService) accountInfo(ctx context.Context, conf *oauth2.Config, platform string, token *oauth2.Token) (*models.PlatformConnection, error) {
	client := conf.Client(ctx, token)
	bearer := &http.Client{Timeout: 15 * time.Second}

	switch platform {
	case models.PlatformYouTube:
		info, err := GoogleUserInfo(client)
		if err != nil {
			return nil, err
		}
		return &models.PlatformConnection{
			AccountID:       info.ID,
			AccountName:     info.Name,
			AccountUsername: info.Email,
			ProfilePicture:  info.Picture,
		}, nil
	case models.PlatformFacebook:
		info, err := FacebookUserInfo(ctx, bearer, token.AccessToken)
		if err != nil {
			return nil, err
		}
		return &models.PlatformConnection{
			AccountID:      info.ID,
			AccountName:    info.Name,
			ProfilePicture: info.Picture.Data.URL,
		}, nil
	case models.PlatformInstagram:
		info, err := InstagramUserInfo(ctx, bearer, token.AccessToken)
		if err != nil {
			return nil, err
		}
		return &models.PlatformConnection{
			AccountID:       info.UserID,
			AccountName:     info.Name,
			AccountUsername: info.Username,
			ProfilePicture:  info.ProfilePicture,
		}, nil
	case models.PlatformLinkedIn:
		info, err := LinkedInUserInfo(ctx, bearer, token.AccessToken)
		if err != nil {
			return nil, err
		}
		return &models.PlatformConnection{
			AccountID:      info.Sub,
			AccountName:    info.Name,
			ProfilePicture: info.Picture,
		}, nil
	case models.PlatformX:
		info, err := XUserInfo(ctx, bearer, token.AccessToken)
		if err != nil {
			return nil, err
		}
		return &models.PlatformConnection{
			AccountID:       info.Data.ID,
			AccountName:     info.Data.Name,
			AccountUsername: info.Data.Username,
		}, nil
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.PlatformConnection, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	connections, err := s.cr.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting platform connections")
	}

	return connections, nil
}

func (s *platformService) Delete(ctx context.Context, userID, connectionID int64) error {
	if userID == 0 || connectionID == 0 {
		err := errors.New("identifier is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.cr.CheckByUserID(ctx, connectionID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		return errors.New("connection does not belong to user")
	}

	return s.cr.Remove(ctx, connectionID)
}
