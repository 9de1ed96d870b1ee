package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandleEnforcePostTask runs enforcement for the owner of one due post.
// The enforcer re-selects due posts itself, so a task racing a manual
// trigger or a batch sweep is harmless.
func (q *Queue) HandleEnforcePostTask(ctx context.Context, task *asynq.Task) error {
	var payload EnforcePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	post, err := q.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		// Deleted before its schedule fired.
		slog.Info("scheduled post no longer exists", "post_id", payload.PostID)
		return nil
	}

	report, err := q.enforcer.Run(ctx, post.UserID)
	if err != nil {
		return err
	}

	slog.Info("scheduled enforcement finished",
		"post_id", payload.PostID,
		"processed", report.PostsProcessed,
		"published", report.PostsPublished,
		"failed", report.PostsFailed)
	return nil
}

// HandleEnforceBatchTask sweeps all users.
func (q *Queue) HandleEnforceBatchTask(ctx context.Context, task *asynq.Task) error {
	report, err := q.enforcer.Run(ctx, 0)
	if err != nil {
		return err
	}

	slog.Info("batch enforcement finished",
		"processed", report.PostsProcessed,
		"published", report.PostsPublished,
		"failed", report.PostsFailed)
	return nil
}
