package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type youtubePublisher struct {
	cfg    config.Config
	client *http.Client
}

func NewYoutubePublisher(cfg config.Config) Publisher {
	return &youtubePublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.PublishTimeout},
	}
}

func (p *youtubePublisher) Platform() string {
	return models.PlatformYouTube
}

// Publish downloads the video from media storage to a temp file and uploads
// it through the YouTube Data API. The upload itself has no fixed timeout;
// it is bounded by ctx.
func (p *youtubePublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if err := checkConstraints(p.Platform(), req); err != nil {
		return "", err
	}

	token := &oauth2.Token{AccessToken: req.AccessToken}
	oauthClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	yt, err := youtube.NewService(ctx, option.WithHTTPClient(oauthClient))
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "creating service failed", err)
	}

	tempFile, err := p.downloadVideo(ctx, req.MediaURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "opening video file failed", err)
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Content,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := yt.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		return "", p.classifyAPIError(err)
	}

	return response.Id, nil
}

func (p *youtubePublisher) downloadVideo(ctx context.Context, mediaURL string) (string, error) {
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "creating temporary file failed", err)
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindUnknown, "building download request failed", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindPlatformUnavailable, "downloading video failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info(fmt.Sprintf("media download returned status %d", resp.StatusCode))
		return "", NewPublishError(p.Platform(), KindPlatformUnavailable,
			fmt.Sprintf("media download status %d", resp.StatusCode), nil)
	}

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		slog.Info(err.Error())
		return "", NewPublishError(p.Platform(), KindPlatformUnavailable, "saving video failed", err)
	}

	return tempFile.Name(), nil
}

func (p *youtubePublisher) classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		kind := classifyStatus(p.Platform(), apiErr.Code)
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "uploadLimitExceeded":
				kind = KindRateLimited
			case "authError", "invalidCredentials":
				kind = KindAuthExpired
			case "invalidVideoMetadata", "invalidFilename", "badRequest":
				kind = KindContentRejected
			}
		}
		return NewPublishError(p.Platform(), kind, apiErr.Message, err)
	}

	slog.Info(err.Error())
	return NewPublishError(p.Platform(), KindPlatformUnavailable, "upload failed", err)
}
