package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

const instagramGraphURL = "https://graph.instagram.com/v21.0"

type instagramPublisher struct {
	cfg    config.Config
	client *http.Client
}

func NewInstagramPublisher(cfg config.Config) Publisher {
	return &instagramPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.PublishTimeout},
	}
}

func (p *instagramPublisher) Platform() string {
	return models.PlatformInstagram
}

// Publish is the two-step Instagram flow: create a media container for the
// video, then publish the container. Both calls share the request context.
func (p *instagramPublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if err := checkConstraints(p.Platform(), req); err != nil {
		return "", err
	}

	containerID, err := p.createContainer(ctx, req)
	if err != nil {
		return "", err
	}

	return p.publishContainer(ctx, req, containerID)
}

func (p *instagramPublisher) createContainer(ctx context.Context, req PublishRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", instagramGraphURL, req.AccountID)

	data := url.Values{}
	data.Add("media_type", "REELS")
	data.Add("video_url", req.MediaURL)
	data.Add("caption", req.Content)

	result, err := p.graphPost(ctx, endpoint, data, req.AccessToken)
	if err != nil {
		return "", err
	}
	return result, nil
}

func (p *instagramPublisher) publishContainer(ctx context.Context, req PublishRequest, containerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", instagramGraphURL, req.AccountID)

	data := url.Values{}
	data.Add("creation_id", containerID)

	return p.graphPost(ctx, endpoint, data, req.AccessToken)
}

func (p *instagramPublisher) graphPost(ctx context.Context, endpoint string, data url.Values, accessToken string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "building request failed", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindPlatformUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.classifyError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "decoding response failed", err)
	}
	return result.ID, nil
}

func (p *instagramPublisher) classifyError(resp *http.Response) error {
	kind := classifyStatus(p.Platform(), resp.StatusCode)
	message := fmt.Sprintf("status %d", resp.StatusCode)

	var graphErr transfer.GraphErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&graphErr); err == nil && graphErr.Error.Message != "" {
		message = graphErr.Error.Message
		switch graphErr.Error.Code {
		case 190:
			kind = KindAuthExpired
		case 4, 9, 17:
			kind = KindRateLimited
		case 352, 2207026:
			// unsupported or invalid video format
			kind = KindContentRejected
		default:
			if graphErr.Error.IsTransient {
				kind = KindPlatformUnavailable
			}
		}
	}

	return NewPublishError(p.Platform(), kind, message, nil)
}

// InstagramUserInfo fetches the professional account profile during the
// OAuth callback.
func InstagramUserInfo(ctx context.Context, client *http.Client, accessToken string) (*transfer.InstagramUserInfo, error) {
	endpoint := "https://graph.instagram.com/me?fields=id,username,name,profile_picture_url"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error fetching user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("Instagram user info returned non-200 status")
		return nil, fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}

	var userInfo transfer.InstagramUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}
