package queue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueEnforcePost schedules an enforcement run for the post's owner at
// the post's publish time.
func EnqueueEnforcePost(asynqClient *asynq.Client, payload EnforcePostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeEnforcePost, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	slog.Info("enforcement task scheduled", "post_id", payload.PostID, "delay", delay)
	return nil
}

// EnqueueEnforceBatch schedules a system-wide sweep. Unique over its window
// so periodic enqueues do not pile overlapping sweeps onto the queue.
func EnqueueEnforceBatch(asynqClient *asynq.Client) error {
	task := asynq.NewTask(TaskTypeEnforceBatch, nil)

	_, err := asynqClient.Enqueue(task, asynq.Unique(5*time.Minute))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return err
	}

	slog.Info("batch enforcement task scheduled")
	return nil
}
