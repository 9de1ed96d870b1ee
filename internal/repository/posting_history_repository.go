package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, history *models.PostingHistory) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, history *models.PostingHistory) (int64, error) {
	query := `INSERT INTO posting_history (user_id, post_id, platform, error_message) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, query, history.UserID, history.PostID, history.Platform, history.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postingHistoryRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	query := `SELECT id, user_id, post_id, platform, error_message, created_at FROM posting_history WHERE post_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.PostingHistory
	for rows.Next() {
		var entry models.PostingHistory
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.PostID, &entry.Platform, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
