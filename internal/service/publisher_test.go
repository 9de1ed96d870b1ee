package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
)

func TestCheckConstraints(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		req      PublishRequest
		wantKind ErrorKind
	}{
		{
			name:     "facebook text post passes",
			platform: models.PlatformFacebook,
			req:      PublishRequest{Content: "hello #world"},
		},
		{
			name:     "x post over character limit",
			platform: models.PlatformX,
			req:      PublishRequest{Content: strings.Repeat("a", 281)},
			wantKind: KindContentRejected,
		},
		{
			name:     "x post at character limit passes",
			platform: models.PlatformX,
			req:      PublishRequest{Content: strings.Repeat("a", 280)},
		},
		{
			name:     "linkedin rejects hashtags",
			platform: models.PlatformLinkedIn,
			req:      PublishRequest{Content: "launch day #startup"},
			wantKind: KindContentRejected,
		},
		{
			name:     "instagram requires media",
			platform: models.PlatformInstagram,
			req:      PublishRequest{Content: "caption only"},
			wantKind: KindContentRejected,
		},
		{
			name:     "instagram with media passes",
			platform: models.PlatformInstagram,
			req:      PublishRequest{Content: "caption", MediaURL: "https://cdn.example.com/clip.mp4"},
		},
		{
			name:     "youtube requires media",
			platform: models.PlatformYouTube,
			req:      PublishRequest{Content: "description only"},
			wantKind: KindContentRejected,
		},
		{
			name:     "unsupported platform",
			platform: "myspace",
			req:      PublishRequest{Content: "hello"},
			wantKind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkConstraints(tt.platform, tt.req)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		want       ErrorKind
	}{
		{401, KindAuthExpired},
		{403, KindAuthExpired},
		{429, KindRateLimited},
		{500, KindPlatformUnavailable},
		{503, KindPlatformUnavailable},
		{400, KindContentRejected},
		{422, KindContentRejected},
		{404, KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(models.PlatformFacebook, tt.statusCode), "status %d", tt.statusCode)
	}
}

func TestErrorKindRetryable(t *testing.T) {
	assert.True(t, KindRateLimited.Retryable())
	assert.True(t, KindPlatformUnavailable.Retryable())

	assert.False(t, KindAuthExpired.Retryable())
	assert.False(t, KindContentRejected.Retryable())
	assert.False(t, KindQuotaExhausted.Retryable())
	assert.False(t, KindReauthRequired.Retryable())
	assert.False(t, KindUnknown.Retryable())
}

func TestKindOf(t *testing.T) {
	pubErr := NewPublishError(models.PlatformX, KindRateLimited, "slow down", nil)

	assert.Equal(t, KindRateLimited, KindOf(pubErr))
	assert.Equal(t, KindRateLimited, KindOf(fmt.Errorf("publishing: %w", pubErr)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain error")))
}
