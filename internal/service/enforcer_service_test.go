package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type fakePostRepo struct {
	repository.PostRepository

	mu         sync.Mutex
	listDue    func(userID int64) ([]*models.Post, error)
	claim      func(postID int64) (bool, error)
	markFailed []string
}

func (f *fakePostRepo) ListDue(ctx context.Context, userID int64, now time.Time, maxAttempts int) ([]*models.Post, error) {
	return f.listDue(userID)
}

func (f *fakePostRepo) Claim(ctx context.Context, postID int64) (bool, error) {
	if f.claim != nil {
		return f.claim(postID)
	}
	return true, nil
}

func (f *fakePostRepo) MarkFailed(ctx context.Context, postID int64, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markFailed = append(f.markFailed, lastError)
	return nil
}

type fakeConnRepo struct {
	repository.ConnectionRepository

	getByUserAndPlatform func(userID int64, platform string) (*models.PlatformConnection, error)
}

func (f *fakeConnRepo) GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.PlatformConnection, error) {
	if f.getByUserAndPlatform != nil {
		return f.getByUserAndPlatform(userID, platform)
	}
	return &models.PlatformConnection{ID: 1, UserID: userID, Platform: platform, AccountID: "acct", IsActive: true}, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (f *fakeHistoryRepo) Create(ctx context.Context, history *models.PostingHistory) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, history)
	return int64(len(f.entries)), nil
}

func (f *fakeHistoryRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	return nil, nil
}

type fakeQuota struct {
	hasRemaining  func(userID int64) (bool, error)
	commitPublish func(postID, userID int64, platformPostID string) (bool, error)
}

func (f *fakeQuota) HasRemaining(ctx context.Context, userID int64) (bool, error) {
	if f.hasRemaining != nil {
		return f.hasRemaining(userID)
	}
	return true, nil
}

func (f *fakeQuota) CommitPublish(ctx context.Context, postID, userID int64, platformPostID string) (bool, error) {
	if f.commitPublish != nil {
		return f.commitPublish(postID, userID, platformPostID)
	}
	return true, nil
}

func (f *fakeQuota) Status(ctx context.Context, userID int64) (*transfer.QuotaStatus, error) {
	return &transfer.QuotaStatus{}, nil
}

type fakeTokens struct {
	ensureValid func(conn *models.PlatformConnection) (string, error)
}

func (f *fakeTokens) EnsureValid(ctx context.Context, conn *models.PlatformConnection) (string, error) {
	if f.ensureValid != nil {
		return f.ensureValid(conn)
	}
	return "access-token", nil
}

type fakePublisher struct {
	platform string

	mu      sync.Mutex
	calls   int
	publish func(req PublishRequest) (string, error)
}

func (f *fakePublisher) Platform() string { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.publish != nil {
		return f.publish(req)
	}
	return "platform-post-1", nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func duePost(id, userID int64, platform string) *models.Post {
	return &models.Post{
		ID:           id,
		UserID:       userID,
		Platform:     platform,
		Content:      "hello world",
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       models.PostStatusApproved,
	}
}

func newTestEnforcer(pr *fakePostRepo, hr *fakeHistoryRepo, quota *fakeQuota, tokens *fakeTokens, publishers ...Publisher) EnforcerService {
	cfg := config.Config{MaxAttempts: 3}
	retry := NewRetryScheduler(3, time.Millisecond, 0)
	return NewEnforcerService(cfg, pr, &fakeConnRepo{}, hr, quota, tokens, retry, publishers...)
}

func TestRunPublishesDuePost(t *testing.T) {
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{duePost(1, 42, models.PlatformFacebook)}, nil
		},
	}
	hr := &fakeHistoryRepo{}
	pub := &fakePublisher{platform: models.PlatformFacebook}

	var committedPostID int64
	var committedPlatformID string
	quota := &fakeQuota{
		commitPublish: func(postID, userID int64, platformPostID string) (bool, error) {
			committedPostID = postID
			committedPlatformID = platformPostID
			return true, nil
		},
	}

	enforcer := newTestEnforcer(pr, hr, quota, &fakeTokens{}, pub)
	report, err := enforcer.Run(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 1, report.PostsProcessed)
	assert.Equal(t, 1, report.PostsPublished)
	assert.Equal(t, 0, report.PostsFailed)
	assert.Empty(t, report.Errors)
	assert.Equal(t, int64(1), committedPostID)
	assert.Equal(t, "platform-post-1", committedPlatformID)

	require.Len(t, hr.entries, 1)
	assert.Empty(t, hr.entries[0].ErrorMessage)
}

func TestRunExhaustedQuotaMakesNoPlatformCall(t *testing.T) {
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{duePost(1, 42, models.PlatformFacebook)}, nil
		},
	}
	hr := &fakeHistoryRepo{}
	pub := &fakePublisher{platform: models.PlatformFacebook}
	quota := &fakeQuota{
		hasRemaining: func(userID int64) (bool, error) { return false, nil },
	}

	enforcer := newTestEnforcer(pr, hr, quota, &fakeTokens{}, pub)
	report, err := enforcer.Run(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 0, pub.callCount())
	assert.Equal(t, 1, report.PostsFailed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, string(KindQuotaExhausted), report.Errors[0].Kind)

	require.Len(t, pr.markFailed, 1)
	assert.Contains(t, pr.markFailed[0], "QUOTA_EXHAUSTED")
}

func TestRunReauthRequiredReportsRepair(t *testing.T) {
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{duePost(1, 42, models.PlatformLinkedIn)}, nil
		},
	}
	hr := &fakeHistoryRepo{}
	pub := &fakePublisher{platform: models.PlatformLinkedIn}
	tokens := &fakeTokens{
		ensureValid: func(conn *models.PlatformConnection) (string, error) {
			return "", ErrReauthRequired
		},
	}

	enforcer := newTestEnforcer(pr, hr, &fakeQuota{}, tokens, pub)
	report, err := enforcer.Run(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 0, pub.callCount())
	assert.Equal(t, 1, report.PostsFailed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, string(KindReauthRequired), report.Errors[0].Kind)
	assert.Equal(t, []string{models.PlatformLinkedIn}, report.ConnectionRepairs)
}

func TestRunSkipsPostsClaimedElsewhere(t *testing.T) {
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{duePost(1, 42, models.PlatformFacebook)}, nil
		},
		claim: func(postID int64) (bool, error) { return false, nil },
	}
	hr := &fakeHistoryRepo{}
	pub := &fakePublisher{platform: models.PlatformFacebook}

	enforcer := newTestEnforcer(pr, hr, &fakeQuota{}, &fakeTokens{}, pub)
	report, err := enforcer.Run(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 0, report.PostsProcessed)
	assert.Equal(t, 0, pub.callCount())
	assert.Empty(t, hr.entries)
}

func TestRunOneFailureDoesNotAbortBatch(t *testing.T) {
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{
				duePost(1, 42, models.PlatformFacebook),
				duePost(2, 42, models.PlatformX),
			}, nil
		},
	}
	hr := &fakeHistoryRepo{}
	fb := &fakePublisher{platform: models.PlatformFacebook}
	x := &fakePublisher{
		platform: models.PlatformX,
		publish: func(req PublishRequest) (string, error) {
			return "", NewPublishError(models.PlatformX, KindContentRejected, "duplicate content", nil)
		},
	}

	enforcer := newTestEnforcer(pr, hr, &fakeQuota{}, &fakeTokens{}, fb, x)
	report, err := enforcer.Run(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 2, report.PostsProcessed)
	assert.Equal(t, 1, report.PostsPublished)
	assert.Equal(t, 1, report.PostsFailed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, int64(2), report.Errors[0].PostID)
	assert.Equal(t, string(KindContentRejected), report.Errors[0].Kind)
}

func TestRunQuotaRaceAtCommit(t *testing.T) {
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{duePost(1, 42, models.PlatformFacebook)}, nil
		},
	}
	hr := &fakeHistoryRepo{}
	pub := &fakePublisher{platform: models.PlatformFacebook}
	quota := &fakeQuota{
		commitPublish: func(postID, userID int64, platformPostID string) (bool, error) {
			return false, repository.ErrQuotaExhausted
		},
	}

	enforcer := newTestEnforcer(pr, hr, quota, &fakeTokens{}, pub)
	report, err := enforcer.Run(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 0, report.PostsPublished)
	assert.Equal(t, 1, report.PostsFailed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, string(KindQuotaExhausted), report.Errors[0].Kind)
}

func TestRunAlreadyPublishedPostChargesNothing(t *testing.T) {
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{duePost(1, 42, models.PlatformFacebook)}, nil
		},
	}
	hr := &fakeHistoryRepo{}
	pub := &fakePublisher{platform: models.PlatformFacebook}
	quota := &fakeQuota{
		commitPublish: func(postID, userID int64, platformPostID string) (bool, error) {
			// Post row was already published by a previous run.
			return false, nil
		},
	}

	enforcer := newTestEnforcer(pr, hr, quota, &fakeTokens{}, pub)
	report, err := enforcer.Run(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 1, report.PostsPublished)
	assert.Equal(t, 0, report.PostsFailed)
}

func TestRunCancelledContextClaimsNothing(t *testing.T) {
	claimCalls := 0
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return []*models.Post{
				duePost(1, 42, models.PlatformFacebook),
				duePost(2, 42, models.PlatformFacebook),
			}, nil
		},
		claim: func(postID int64) (bool, error) {
			claimCalls++
			return true, nil
		},
	}
	hr := &fakeHistoryRepo{}
	pub := &fakePublisher{platform: models.PlatformFacebook}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enforcer := newTestEnforcer(pr, hr, &fakeQuota{}, &fakeTokens{}, pub)
	report, err := enforcer.Run(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, 0, claimCalls)
	assert.Equal(t, 0, report.PostsProcessed)
	assert.Equal(t, 0, pub.callCount())
}

func TestConcurrentRunsCommitEachPostOnce(t *testing.T) {
	posts := []*models.Post{
		duePost(1, 42, models.PlatformFacebook),
		duePost(2, 42, models.PlatformLinkedIn),
		duePost(3, 42, models.PlatformX),
	}

	// The claim is the exclusivity point: whichever run claims a post
	// first owns it, the other run must walk away.
	var claimMu sync.Mutex
	claimed := map[int64]bool{}
	pr := &fakePostRepo{
		listDue: func(userID int64) ([]*models.Post, error) {
			return posts, nil
		},
		claim: func(postID int64) (bool, error) {
			claimMu.Lock()
			defer claimMu.Unlock()
			if claimed[postID] {
				return false, nil
			}
			claimed[postID] = true
			return true, nil
		},
	}
	hr := &fakeHistoryRepo{}

	var commitMu sync.Mutex
	commits := map[int64]int{}
	quota := &fakeQuota{
		commitPublish: func(postID, userID int64, platformPostID string) (bool, error) {
			commitMu.Lock()
			defer commitMu.Unlock()
			commits[postID]++
			return true, nil
		},
	}

	enforcer := newTestEnforcer(pr, hr, quota, &fakeTokens{},
		&fakePublisher{platform: models.PlatformFacebook},
		&fakePublisher{platform: models.PlatformLinkedIn},
		&fakePublisher{platform: models.PlatformX})

	var wg sync.WaitGroup
	reports := make([]*transfer.EnforcementReport, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = enforcer.Run(context.Background(), 42)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.Len(t, commits, len(posts))
	for postID, count := range commits {
		assert.Equal(t, 1, count, "post %d charged more than once", postID)
	}
	assert.Equal(t, len(posts), reports[0].PostsPublished+reports[1].PostsPublished)
	assert.Equal(t, 0, reports[0].PostsFailed+reports[1].PostsFailed)
}
