package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, bool, error)
	GetByEmail(ctx context.Context, email string) (*models.User, bool, error)
	Create(ctx context.Context, tx *sql.Tx, user *models.User) (int64, error)
	QuotaStatus(ctx context.Context, userID int64) (remaining, total int, err error)
	ResetCycle(ctx context.Context, userID int64, plan string, totalPosts int, cycleStart, cycleEnd time.Time) error
	Remove(ctx context.Context, id int64) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	var user models.User
	query := `SELECT id, google_id, email, name, profile_picture, plan, total_posts, remaining_posts, cycle_start, cycle_end
		FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name,
		&user.ProfilePicture, &user.Plan, &user.TotalPosts, &user.RemainingPosts, &user.CycleStart, &user.CycleEnd)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &user, true, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	var user models.User
	query := `SELECT id, google_id, email, name, plan, total_posts, remaining_posts FROM users WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name,
		&user.Plan, &user.TotalPosts, &user.RemainingPosts)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &user, true, nil
}

func (r *userRepository) Create(ctx context.Context, tx *sql.Tx, user *models.User) (int64, error) {
	query := `INSERT INTO users (google_id, email, name, profile_picture, plan, total_posts, remaining_posts)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	var err error
	var id int64

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, user.GoogleID, user.Email, user.Name, user.ProfilePicture,
			user.Plan, user.TotalPosts, user.RemainingPosts).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, user.GoogleID, user.Email, user.Name, user.ProfilePicture,
			user.Plan, user.TotalPosts, user.RemainingPosts).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *userRepository) QuotaStatus(ctx context.Context, userID int64) (int, int, error) {
	var remaining, total int
	query := `SELECT remaining_posts, total_posts FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&remaining, &total)
	if err != nil {
		slog.Info(err.Error())
		return 0, 0, err
	}
	return remaining, total, nil
}

// ResetCycle is written by the billing webhook on renewal: new allocation,
// counter back to full, new cycle boundaries.
func (r *userRepository) ResetCycle(ctx context.Context, userID int64, plan string, totalPosts int, cycleStart, cycleEnd time.Time) error {
	query := `
		UPDATE users
		SET plan = $1,
			total_posts = $2,
			remaining_posts = $2,
			cycle_start = $3,
			cycle_end = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, plan, totalPosts, cycleStart, cycleEnd, time.Now(), userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *userRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
