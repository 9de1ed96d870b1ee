package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

const linkedinAPIURL = "https://api.linkedin.com/v2"

type linkedinPublisher struct {
	cfg    config.Config
	client *http.Client
}

func NewLinkedInPublisher(cfg config.Config) Publisher {
	return &linkedinPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.PublishTimeout},
	}
}

func (p *linkedinPublisher) Platform() string {
	return models.PlatformLinkedIn
}

func (p *linkedinPublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if err := checkConstraints(p.Platform(), req); err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"author":         "urn:li:person:" + req.AccountID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary": map[string]string{
					"text": req.Content,
				},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "encoding request failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinAPIURL+"/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "building request failed", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindPlatformUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", p.classifyError(resp)
	}

	// LinkedIn returns the post URN in a header, with a body fallback.
	if postID := resp.Header.Get("X-RestLi-Id"); postID != "" {
		return postID, nil
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

func (p *linkedinPublisher) classifyError(resp *http.Response) error {
	kind := classifyStatus(p.Platform(), resp.StatusCode)
	message := fmt.Sprintf("status %d", resp.StatusCode)

	var apiErr transfer.LinkedInErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
		// 65600/65601 are revoked or expired token service codes.
		if apiErr.ServiceErrorCode == 65600 || apiErr.ServiceErrorCode == 65601 {
			kind = KindAuthExpired
		}
		// LinkedIn reports duplicate shares as 422.
		if apiErr.Status == http.StatusUnprocessableEntity {
			kind = KindContentRejected
		}
	}

	return NewPublishError(p.Platform(), kind, message, nil)
}

// LinkedInUserInfo fetches the member profile during the OAuth callback
// (OpenID Connect userinfo endpoint).
func LinkedInUserInfo(ctx context.Context, client *http.Client, accessToken string) (*transfer.LinkedInUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.linkedin.com/v2/userinfo", nil)
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
		slog.Info("LinkedIn user info returned non-200 status")
		return nil, fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}

	var userInfo transfer.LinkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}
