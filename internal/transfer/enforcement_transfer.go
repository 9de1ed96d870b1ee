package transfer

// EnforcementReport is returned verbatim to the caller of an enforcement
// run. Individual post failures are collected here, never raised.
type EnforcementReport struct {
	PostsProcessed    int               `json:"postsProcessed"`
	PostsPublished    int               `json:"postsPublished"`
	PostsFailed       int               `json:"postsFailed"`
	ConnectionRepairs []string          `json:"connectionRepairs"`
	Errors            []EnforcementItem `json:"errors"`
}

// EnforcementItem is one failed post in a batch, with the typed error kind
// so the UI can render actionable guidance.
type EnforcementItem struct {
	PostID   int64  `json:"post_id"`
	Platform string `json:"platform"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

type QuotaStatus struct {
	RemainingPosts int `json:"remaining_posts"`
	TotalPosts     int `json:"total_posts"`
}
