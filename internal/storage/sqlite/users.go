package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/pkg/logger"
)

func (c *Client) InsertUser(user *models.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(query, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Username, models.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	logger.Info("User created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

func (c *Client) GetUser(id string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`
	return c.scanUser(c.db.QueryRow(query, id), id)
}

func (c *Client) GetUserByUsername(username string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`
	return c.scanUser(c.db.QueryRow(query, username), username)
}

func (c *Client) scanUser(row *sql.Row, key string) (*models.User, error) {
	var u models.User
	var createdAt int64

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

// EnsureProfile creates an empty profile row if the user has none yet.
// Called at registration and before profile reads, never from a
// persistence hook.
func (c *Client) EnsureProfile(userID string) error {
	now := time.Now().Unix()
	query := `INSERT OR IGNORE INTO profiles (user_id, bio, avatar_url, total_analyses, created_at, updated_at)
		VALUES (?, '', '', 0, ?, ?)`

	_, err := c.db.Exec(query, userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure profile: %w", err)
	}
	return nil
}

func (c *Client) GetProfile(userID string) (*models.Profile, error) {
	if err := c.EnsureProfile(userID); err != nil {
		return nil, err
	}

	query := `SELECT user_id, bio, avatar_url, total_analyses, last_analysis_at, created_at, updated_at
		FROM profiles WHERE user_id = ?`

	var p models.Profile
	var lastAnalysisAt sql.NullInt64
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, userID).Scan(
		&p.UserID,
		&p.Bio,
		&p.AvatarURL,
		&p.TotalAnalyses,
		&lastAnalysisAt,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile for user %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if lastAnalysisAt.Valid {
		t := time.Unix(lastAnalysisAt.Int64, 0)
		p.LastAnalysisAt = &t
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

func (c *Client) UpdateProfile(profile *models.Profile) error {
	query := `UPDATE profiles SET bio = ?, avatar_url = ?, updated_at = ? WHERE user_id = ?`

	res, err := c.db.Exec(query, profile.Bio, profile.AvatarURL, time.Now().Unix(), profile.UserID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("profile for user %s: %w", profile.UserID, models.ErrNotFound)
	}
	return nil
}

// IncrementProfileAnalyses bumps the lifetime analysis counter and
// last-analysis timestamp. A missing profile row is expected for users
// created before profiles existed, so zero affected rows is not an error.
func (c *Client) IncrementProfileAnalyses(userID string, at time.Time) error {
	query := `UPDATE profiles SET total_analyses = total_analyses + 1, last_analysis_at = ?, updated_at = ?
		WHERE user_id = ?`

	_, err := c.db.Exec(query, at.Unix(), at.Unix(), userID)
	if err != nil {
		return fmt.Errorf("failed to increment analysis count: %w", err)
	}
	return nil
}
