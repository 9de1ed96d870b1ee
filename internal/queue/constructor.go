package queue

import (
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/service"
)

type Queue struct {
	pr       repository.PostRepository
	enforcer service.EnforcerService
}

func NewQueue(pr repository.PostRepository, enforcer service.EnforcerService) *Queue {
	return &Queue{
		pr:       pr,
		enforcer: enforcer,
	}
}

const (
	// TaskTypeEnforcePost fires when one scheduled post comes due.
	TaskTypeEnforcePost = "enforce:post"
	// TaskTypeEnforceBatch sweeps all users for due posts.
	TaskTypeEnforceBatch = "enforce:batch"
)

type EnforcePostPayload struct {
	PostID int64 `json:"post_id"`
}
