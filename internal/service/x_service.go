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

const xAPIURL = "https://api.x.com/2"

type xPublisher struct {
	cfg    config.Config
	client *http.Client
}

func NewXPublisher(cfg config.Config) Publisher {
	return &xPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.PublishTimeout},
	}
}

func (p *xPublisher) Platform() string {
	return models.PlatformX
}

func (p *xPublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if err := checkConstraints(p.Platform(), req); err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"text": req.Content,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "encoding request failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, xAPIURL+"/tweets", bytes.NewReader(payload))
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "building request failed", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindPlatformUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", p.classifyError(resp)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "decoding response failed", err)
	}

	return result.Data.ID, nil
}

func (p *xPublisher) classifyError(resp *http.Response) error {
	kind := classifyStatus(p.Platform(), resp.StatusCode)
	message := fmt.Sprintf("status %d", resp.StatusCode)

	var apiErr transfer.XErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Detail != "" {
		message = apiErr.Detail
		// X flags duplicate tweets as 403 with a duplicate-content title,
		// which must not be treated as an auth failure.
		if resp.StatusCode == http.StatusForbidden && apiErr.Title == "Duplicate content" {
			kind = KindContentRejected
		}
	}

	return NewPublishError(p.Platform(), kind, message, nil)
}

// XUserInfo fetches the authenticated account during the OAuth callback.
func XUserInfo(ctx context.Context, client *http.Client, accessToken string) (*transfer.XUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, xAPIURL+"/users/me", nil)
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
		slog.Info("X user info returned non-200 status")
		return nil, fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}

	var userInfo transfer.XUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}
