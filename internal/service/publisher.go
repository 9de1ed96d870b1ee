package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
)

// ErrorKind is the shared failure taxonomy every platform publisher maps
// its native errors into. The retry scheduler and the enforcer branch on
// it instead of platform-specific payloads.
type ErrorKind string

const (
	KindAuthExpired         ErrorKind = "AUTH_EXPIRED"
	KindRateLimited         ErrorKind = "RATE_LIMITED"
	KindContentRejected     ErrorKind = "CONTENT_REJECTED"
	KindPlatformUnavailable ErrorKind = "PLATFORM_UNAVAILABLE"
	KindQuotaExhausted      ErrorKind = "QUOTA_EXHAUSTED"
	KindReauthRequired      ErrorKind = "REAUTH_REQUIRED"
	KindUnknown             ErrorKind = "UNKNOWN"
)

// Retryable reports whether a failure of this kind may succeed on a later
// attempt of the same call. Auth problems are the token service's job and
// content rejections are permanent, so neither is retried.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindPlatformUnavailable
}

type PublishError struct {
	Kind     ErrorKind
	Platform string
	Message  string
	Err      error
}

func (e *PublishError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Kind)
}

func (e *PublishError) Unwrap() error { return e.Err }

func NewPublishError(platform string, kind ErrorKind, message string, err error) *PublishError {
	return &PublishError{Kind: kind, Platform: platform, Message: message, Err: err}
}

// PublishRequest carries everything a publisher needs for one call. The
// access token arrives already validated and decrypted; publishers never
// touch the token store.
type PublishRequest struct {
	Content     string
	Title       string
	MediaURL    string
	AccessToken string
	AccountID   string
}

// Publisher is the per-platform adapter. Implementations are stateless
// beyond configuration and must honour ctx for the whole network call.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, req PublishRequest) (platformPostID string, err error)
}

// platformRule captures per-platform content constraints checked before
// any network call. Violations are CONTENT_REJECTED and never retried.
type platformRule struct {
	MaxContentLength int
	AllowsHashtags   bool
	RequiresMedia    bool
}

var platformRules = map[string]platformRule{
	models.PlatformFacebook:  {MaxContentLength: 63206, AllowsHashtags: true},
	models.PlatformInstagram: {MaxContentLength: 2200, AllowsHashtags: true, RequiresMedia: true},
	models.PlatformLinkedIn:  {MaxContentLength: 3000, AllowsHashtags: false},
	models.PlatformX:         {MaxContentLength: 280, AllowsHashtags: true},
	models.PlatformYouTube:   {MaxContentLength: 5000, AllowsHashtags: true, RequiresMedia: true},
}

// checkConstraints validates a request against the platform's rule entry.
// Adding a platform means one rule entry plus one Publisher implementation.
func checkConstraints(platform string, req PublishRequest) error {
	rule, ok := platformRules[platform]
	if !ok {
		return NewPublishError(platform, KindUnknown, "unsupported platform", nil)
	}

	if rule.MaxContentLength > 0 && len([]rune(req.Content)) > rule.MaxContentLength {
		return NewPublishError(platform, KindContentRejected,
			fmt.Sprintf("content exceeds %d characters", rule.MaxContentLength), nil)
	}
	if !rule.AllowsHashtags && strings.Contains(req.Content, "#") {
		return NewPublishError(platform, KindContentRejected, "hashtags are not allowed on this platform", nil)
	}
	if rule.RequiresMedia && req.MediaURL == "" {
		return NewPublishError(platform, KindContentRejected, "a media attachment is required", nil)
	}
	return nil
}

// classifyStatus maps an HTTP status to the shared taxonomy. Publishers
// refine the result with payload-specific knowledge where they have it.
func classifyStatus(platform string, statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuthExpired
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindPlatformUnavailable
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return KindContentRejected
	default:
		return KindUnknown
	}
}

// KindOf extracts the taxonomy kind from any error produced by the
// publishing pipeline.
func KindOf(err error) ErrorKind {
	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return pubErr.Kind
	}
	return KindUnknown
}
