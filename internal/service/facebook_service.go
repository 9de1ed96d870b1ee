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

const facebookGraphURL = "https://graph.facebook.com/v21.0"

type facebookPublisher struct {
	cfg    config.Config
	client *http.Client
}

func NewFacebookPublisher(cfg config.Config) Publisher {
	return &facebookPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.PublishTimeout},
	}
}

func (p *facebookPublisher) Platform() string {
	return models.PlatformFacebook
}

func (p *facebookPublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if err := checkConstraints(p.Platform(), req); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/feed", facebookGraphURL, req.AccountID)

	data := url.Values{}
	data.Add("message", req.Content)
	if req.MediaURL != "" {
		data.Add("link", req.MediaURL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "building request failed", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
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

// classifyError refines the Graph error envelope beyond the HTTP status:
// code 190 is an invalid/expired token, 4/17/32 are throttling codes, and
// is_transient marks retryable failures regardless of status.
func (p *facebookPublisher) classifyError(resp *http.Response) error {
	kind := classifyStatus(p.Platform(), resp.StatusCode)
	message := fmt.Sprintf("status %d", resp.StatusCode)

	var graphErr transfer.GraphErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&graphErr); err == nil && graphErr.Error.Message != "" {
		message = graphErr.Error.Message
		switch graphErr.Error.Code {
		case 190:
			kind = KindAuthExpired
		case 4, 17, 32, 613:
			kind = KindRateLimited
		case 368, 506:
			// policy block and duplicate content
			kind = KindContentRejected
		default:
			if graphErr.Error.IsTransient {
				kind = KindPlatformUnavailable
			}
		}
	}

	return NewPublishError(p.Platform(), kind, message, nil)
}

// FacebookUserInfo fetches the account profile during the OAuth callback.
func FacebookUserInfo(ctx context.Context, client *http.Client, accessToken string) (*transfer.FacebookUserInfo, error) {
	endpoint := facebookGraphURL + "/me?fields=id,name,picture"

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
		slog.Info("Facebook user info returned non-200 status")
		return nil, fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}

	var userInfo transfer.FacebookUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}
