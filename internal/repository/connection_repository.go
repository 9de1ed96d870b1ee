package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
)

const connectionColumns = `id, user_id, platform, account_id, account_name, account_username, profile_picture_url, access_token, refresh_token, token_expires_at, is_active, last_validated_at, created_at, updated_at`

type ConnectionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, conn *models.PlatformConnection) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PlatformConnection, error)
	GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.PlatformConnection, error)
	ListInfoByUserID(ctx context.Context, userID int64) ([]*models.PlatformConnection, error)
	ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformConnection, error)
	CheckByUserID(ctx context.Context, connectionID, userID int64) (bool, error)
	UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	Touch(ctx context.Context, id int64, validatedAt time.Time) error
	Deactivate(ctx context.Context, id int64) error
	Remove(ctx context.Context, id int64) error
}

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, tx *sql.Tx, conn *models.PlatformConnection) (int64, error) {
	var err error
	var id int64

	// One connection per (user, platform); reconnecting replaces tokens
	// and reactivates the row.
	insertQuery := `
		INSERT INTO platform_connections(
			user_id,
			platform,
			account_id,
			account_name,
			account_username,
			profile_picture_url,
			access_token,
			refresh_token,
			token_expires_at,
			is_active,
			last_validated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			account_name = EXCLUDED.account_name,
			account_username = EXCLUDED.account_username,
			profile_picture_url = EXCLUDED.profile_picture_url,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active = TRUE,
			last_validated_at = EXCLUDED.last_validated_at,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	args := []interface{}{
		conn.UserID,
		conn.Platform,
		conn.AccountID,
		conn.AccountName,
		conn.AccountUsername,
		conn.ProfilePicture,
		conn.AccessToken,
		conn.RefreshToken,
		conn.TokenExpiresAt,
		time.Now(),
	}

	if tx != nil {
		err = tx.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id int64) (*models.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	conn, err := scanConnection(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections WHERE user_id = $1 AND platform = $2`
	row := r.db.QueryRowContext(ctx, query, userID, platform)

	conn, err := scanConnection(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.PlatformConnection, error) {
	query := `SELECT id, account_name, profile_picture_url, platform, is_active FROM platform_connections WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.PlatformConnection
	for rows.Next() {
		var conn models.PlatformConnection
		err := rows.Scan(&conn.ID, &conn.AccountName, &conn.ProfilePicture, &conn.Platform, &conn.IsActive)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, &conn)
	}
	return connections, nil
}

// ListExpiringBetween feeds the proactive refresh job: active connections
// whose token expires in the window, or already expired.
func (r *connectionRepository) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM platform_connections
		WHERE is_active = TRUE
		AND ((token_expires_at BETWEEN $1 AND $2) OR token_expires_at < $1)`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, conn)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return connections, nil
}

func (r *connectionRepository) CheckByUserID(ctx context.Context, connectionID, userID int64) (bool, error) {
	query := `SELECT 1 FROM platform_connections WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, connectionID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *connectionRepository) UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE platform_connections
		SET
			access_token = COALESCE(NULLIF($2, ''), access_token),
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			last_validated_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; connection may not exist")
		return errors.New("no rows affected; connection may not exist")
	}
	return nil
}

func (r *connectionRepository) Touch(ctx context.Context, id int64, validatedAt time.Time) error {
	query := `UPDATE platform_connections SET last_validated_at = $1, updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, validatedAt, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *connectionRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE platform_connections SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *connectionRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM platform_connections WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func scanConnection(row rowScanner) (*models.PlatformConnection, error) {
	var conn models.PlatformConnection
	err := row.Scan(&conn.ID, &conn.UserID, &conn.Platform, &conn.AccountID, &conn.AccountName,
		&conn.AccountUsername, &conn.ProfilePicture, &conn.AccessToken, &conn.RefreshToken,
		&conn.TokenExpiresAt, &conn.IsActive, &conn.LastValidatedAt, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}
