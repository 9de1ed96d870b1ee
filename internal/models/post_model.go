package models

import "time"

type Post struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Platform       string    `db:"platform" json:"platform"`
	Content        string    `db:"content" json:"content"`
	Title          string    `db:"title" json:"title"`
	MediaURL       string    `db:"media_url" json:"media_url"`
	ScheduledFor   time.Time `db:"scheduled_for" json:"scheduled_for"`
	Status         string    `db:"status" json:"status"`
	PlatformPostID string    `db:"platform_post_id" json:"platform_post_id"`
	AttemptCount   int       `db:"attempt_count" json:"attempt_count"`
	LastError      string    `db:"last_error" json:"last_error"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// A post moves draft -> approved -> publishing -> published | failed.
// The publishing state is a claim: it is only ever entered by the guarded
// UPDATE in PostRepository.Claim, so overlapping enforcer runs cannot
// both own the same row.
const (
	PostStatusDraft      = "draft"
	PostStatusApproved   = "approved"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
