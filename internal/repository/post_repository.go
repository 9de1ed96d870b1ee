package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
)

// ErrQuotaExhausted is returned by PublishAndDecrement when the user has no
// remaining posts in the current cycle.
var ErrQuotaExhausted = errors.New("quota exhausted for current cycle")

const postColumns = `id, user_id, platform, content, title, media_url, scheduled_for, status, platform_post_id, attempt_count, last_error, created_at, updated_at`

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListDue(ctx context.Context, userID int64, now time.Time, maxAttempts int) ([]*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	Approve(ctx context.Context, postID int64) (bool, error)
	Claim(ctx context.Context, postID int64) (bool, error)
	MarkFailed(ctx context.Context, postID int64, lastError string) error
	PublishAndDecrement(ctx context.Context, postID, userID int64, platformPostID string) (bool, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, platform, content, title, media_url, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Platform, post.Content, post.Title, post.MediaURL, post.ScheduledFor, post.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Platform, post.Content, post.Title, post.MediaURL, post.ScheduledFor, post.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY scheduled_for`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

// ListDue selects approved posts whose schedule has passed, plus failed
// posts still under the attempt cap. userID 0 means all users. Posts held
// in publishing by a concurrent run are excluded by status.
func (r *postRepository) ListDue(ctx context.Context, userID int64, now time.Time, maxAttempts int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE scheduled_for <= $1
		AND (status = $2 OR (status = $3 AND attempt_count < $4))`
	args := []interface{}{now, models.PostStatusApproved, models.PostStatusFailed, maxAttempts}

	if userID != 0 {
		query += ` AND user_id = $5`
		args = append(args, userID)
	}
	query += ` ORDER BY scheduled_for`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

// Approve moves a draft into the enforcer's selection set.
func (r *postRepository) Approve(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusApproved, time.Now(), postID, models.PostStatusDraft)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// Claim flips a post into publishing. The status guard in the WHERE clause
// makes the claim exclusive: of two overlapping enforcer runs, exactly one
// sees a row affected.
func (r *postRepository) Claim(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusPublishing, time.Now(), postID,
		models.PostStatusApproved, models.PostStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkFailed(ctx context.Context, postID int64, lastError string) error {
	query := `
		UPDATE posts
		SET status = $1,
			last_error = $2,
			attempt_count = attempt_count + 1,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, lastError, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// PublishAndDecrement is the one serializable unit in the engine: mark the
// post published and take one post off the user's quota, or do neither.
// Returns false without mutating anything when the post already reached
// published, which makes re-runs after a crash or overlapping batch no-ops.
func (r *postRepository) PublishAndDecrement(ctx context.Context, postID, userID int64, platformPostID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&status)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	if status == models.PostStatusPublished {
		return false, nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET remaining_posts = remaining_posts - 1, updated_at = $1 WHERE id = $2 AND remaining_posts > 0`,
		time.Now(), userID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	if affected != 1 {
		return false, ErrQuotaExhausted
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE posts SET status = $1, platform_post_id = $2, last_error = '', updated_at = $3 WHERE id = $4`,
		models.PostStatusPublished, platformPostID, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	// quota_ledger has a unique index on post_id, so even a bug upstream
	// cannot record two decrements for one post.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO quota_ledger (user_id, post_id) VALUES ($1, $2)`,
		userID, postID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return true, nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := `SELECT 1 FROM posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Platform, &post.Content, &post.Title, &post.MediaURL,
		&post.ScheduledFor, &post.Status, &post.PlatformPostID, &post.AttemptCount, &post.LastError,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func collectPosts(rows *sql.Rows) ([]*models.Post, error) {
	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}
