package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

type fakePostRepo struct {
	repository.PostRepository

	posts map[int64]*models.Post
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return f.posts[id], nil
}

type fakeEnforcer struct {
	runs []int64
}

func (f *fakeEnforcer) Run(ctx context.Context, userID int64) (*transfer.EnforcementReport, error) {
	f.runs = append(f.runs, userID)
	return &transfer.EnforcementReport{}, nil
}

func enforcePostTask(t *testing.T, postID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(EnforcePostPayload{PostID: postID})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypeEnforcePost, payload)
}

func TestHandleEnforcePostTaskRunsForOwner(t *testing.T) {
	pr := &fakePostRepo{posts: map[int64]*models.Post{
		7: {ID: 7, UserID: 42, Platform: models.PlatformFacebook},
	}}
	enforcer := &fakeEnforcer{}
	q := NewQueue(pr, enforcer)

	err := q.HandleEnforcePostTask(context.Background(), enforcePostTask(t, 7))
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, enforcer.runs)
}

func TestHandleEnforcePostTaskSkipsDeletedPost(t *testing.T) {
	pr := &fakePostRepo{posts: map[int64]*models.Post{}}
	enforcer := &fakeEnforcer{}
	q := NewQueue(pr, enforcer)

	err := q.HandleEnforcePostTask(context.Background(), enforcePostTask(t, 99))
	require.NoError(t, err)
	assert.Empty(t, enforcer.runs)
}

func TestHandleEnforceBatchTaskSweepsAllUsers(t *testing.T) {
	enforcer := &fakeEnforcer{}
	q := NewQueue(&fakePostRepo{}, enforcer)

	err := q.HandleEnforceBatchTask(context.Background(), asynq.NewTask(TaskTypeEnforceBatch, nil))
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, enforcer.runs)
}
