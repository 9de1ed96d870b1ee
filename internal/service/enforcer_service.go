package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

// EnforcerService drives one enforcement batch: select due approved posts,
// validate credentials, dispatch to the platform, settle quota. Scope 0
// means all users. Overlapping runs are safe: the claim on each post row
// and the serializable publish transaction keep publishing and quota
// deduction exactly-once per post.
type EnforcerService interface {
	Run(ctx context.Context, userID int64) (*transfer.EnforcementReport, error)
}

type enforcerService struct {
	cfg        config.Config
	pr         repository.PostRepository
	cr         repository.ConnectionRepository
	ph         repository.PostingHistoryRepository
	quota      QuotaService
	tokens     TokenService
	retry      *RetryScheduler
	publishers map[string]Publisher
}

func NewEnforcerService(
	cfg config.Config,
	pr repository.PostRepository,
	cr repository.ConnectionRepository,
	ph repository.PostingHistoryRepository,
	quota QuotaService,
	tokens TokenService,
	retry *RetryScheduler,
	publishers ...Publisher) EnforcerService {

	byPlatform := make(map[string]Publisher, len(publishers))
	for _, pub := range publishers {
		byPlatform[pub.Platform()] = pub
	}

	return &enforcerService{
		cfg:        cfg,
		pr:         pr,
		cr:         cr,
		ph:         ph,
		quota:      quota,
		tokens:     tokens,
		retry:      retry,
		publishers: byPlatform,
	}
}

// batchReport guards the shared report while posts are processed
// concurrently.
type batchReport struct {
	mu      sync.Mutex
	report  transfer.EnforcementReport
	repairs map[string]struct{}
}

func (b *batchReport) published() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.PostsPublished++
}

func (b *batchReport) failed(post *models.Post, kind ErrorKind, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.PostsFailed++
	b.report.Errors = append(b.report.Errors, transfer.EnforcementItem{
		PostID:   post.ID,
		Platform: post.Platform,
		Kind:     string(kind),
		Message:  message,
	})
	if kind == KindReauthRequired {
		b.repairs[post.Platform] = struct{}{}
	}
}

func (b *batchReport) finish() *transfer.EnforcementReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.ConnectionRepairs = make([]string, 0, len(b.repairs))
	for platform := range b.repairs {
		b.report.ConnectionRepairs = append(b.report.ConnectionRepairs, platform)
	}
	return &b.report
}

func (s *enforcerService) Run(ctx context.Context, userID int64) (*transfer.EnforcementReport, error) {
	posts, err := s.pr.ListDue(ctx, userID, time.Now(), s.cfg.MaxAttempts)
	if err != nil {
		// Selection failure means no further progress is trustworthy.
		return nil, fmt.Errorf("selecting due posts: %w", err)
	}

	report := &batchReport{repairs: make(map[string]struct{})}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	for _, post := range posts {
		// Cooperative cancellation: stop selecting new posts, let in-flight
		// publishes finish so no post is left stuck in publishing.
		if ctx.Err() != nil {
			break
		}

		claimed, err := s.pr.Claim(ctx, post.ID)
		if err != nil {
			slog.Error("claiming post failed", "post_id", post.ID, "error", err)
			continue
		}
		if !claimed {
			// Another run owns this post.
			continue
		}

		report.mu.Lock()
		report.report.PostsProcessed++
		report.mu.Unlock()

		wg.Add(1)
		semaphore <- struct{}{}
		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()
			s.processPost(ctx, post, report)
		}(post)
	}

	wg.Wait()
	return report.finish(), nil
}

// processPost takes a claimed post to a terminal state. A failure here
// never aborts the batch; it is recorded on the post row and in the report.
func (s *enforcerService) processPost(ctx context.Context, post *models.Post, report *batchReport) {
	// Quota gate before any network call: a post the user cannot be
	// charged for must not spend a real platform post.
	hasQuota, err := s.quota.HasRemaining(ctx, post.UserID)
	if err != nil {
		s.fail(ctx, post, report, KindUnknown, err.Error())
		return
	}
	if !hasQuota {
		s.fail(ctx, post, report, KindQuotaExhausted, "monthly post quota exhausted")
		return
	}

	publisher, ok := s.publishers[post.Platform]
	if !ok {
		s.fail(ctx, post, report, KindUnknown, fmt.Sprintf("no publisher for platform %q", post.Platform))
		return
	}

	conn, err := s.cr.GetByUserAndPlatform(ctx, post.UserID, post.Platform)
	if err != nil {
		s.fail(ctx, post, report, KindUnknown, err.Error())
		return
	}

	accessToken, err := s.tokens.EnsureValid(ctx, conn)
	if err != nil {
		if errors.Is(err, ErrReauthRequired) {
			s.fail(ctx, post, report, KindReauthRequired, fmt.Sprintf("reconnect %s to resume publishing", post.Platform))
		} else {
			s.fail(ctx, post, report, KindUnknown, err.Error())
		}
		return
	}

	req := PublishRequest{
		Content:     post.Content,
		Title:       post.Title,
		MediaURL:    post.MediaURL,
		AccessToken: accessToken,
		AccountID:   conn.AccountID,
	}

	platformPostID, err := s.retry.Execute(ctx, post.Platform, func(ctx context.Context) (string, error) {
		return publisher.Publish(ctx, req)
	})
	if err != nil {
		s.fail(ctx, post, report, KindOf(err), err.Error())
		return
	}

	// The platform post exists; settle status and quota in one transaction.
	decremented, err := s.quota.CommitPublish(ctx, post.ID, post.UserID, platformPostID)
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			// Quota raced to zero between the gate and the commit. The
			// platform post was spent; record the failure honestly.
			slog.Warn("platform post spent with exhausted quota", "post_id", post.ID, "user_id", post.UserID)
			s.fail(ctx, post, report, KindQuotaExhausted, "quota exhausted at commit")
			return
		}
		s.fail(ctx, post, report, KindUnknown, err.Error())
		return
	}
	if !decremented {
		slog.Info("post already published, no quota change", "post_id", post.ID)
	}

	report.published()
	s.recordHistory(ctx, post, "")
}

func (s *enforcerService) fail(ctx context.Context, post *models.Post, report *batchReport, kind ErrorKind, message string) {
	lastError := fmt.Sprintf("%s: %s", kind, message)
	if err := s.pr.MarkFailed(ctx, post.ID, lastError); err != nil {
		slog.Error("marking post failed", "post_id", post.ID, "error", err)
	}
	report.failed(post, kind, message)
	s.recordHistory(ctx, post, lastError)
}

func (s *enforcerService) recordHistory(ctx context.Context, post *models.Post, errorMessage string) {
	history := &models.PostingHistory{
		UserID:       post.UserID,
		PostID:       post.ID,
		Platform:     post.Platform,
		ErrorMessage: errorMessage,
	}
	if _, err := s.ph.Create(ctx, history); err != nil {
		slog.Error("saving posting history", "post_id", post.ID, "error", err)
	}
}
