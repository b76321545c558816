package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/pkg/logger"
)

// InsertComparison stores a comparison and its membership rows in one
// transaction. Callers validate ownership of the analysis ids first.
func (c *Client) InsertComparison(comparison *models.Comparison) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO comparisons (id, user_id, name, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		comparison.ID,
		comparison.UserID,
		comparison.Name,
		comparison.Notes,
		comparison.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert comparison: %w", err)
	}

	for _, analysisID := range comparison.AnalysisIDs {
		_, err = tx.Exec(
			`INSERT INTO comparison_analyses (comparison_id, analysis_id) VALUES (?, ?)`,
			comparison.ID,
			analysisID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert comparison member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comparison: %w", err)
	}

	logger.Info("Comparison created",
		zap.String("comparison_id", comparison.ID),
		zap.String("user_id", comparison.UserID),
		zap.Int("members", len(comparison.AnalysisIDs)),
	)

	return nil
}

func (c *Client) GetComparison(id, userID string) (*models.Comparison, error) {
	query := `SELECT id, user_id, name, notes, created_at FROM comparisons WHERE id = ? AND user_id = ?`

	var comp models.Comparison
	var createdAt int64

	err := c.db.QueryRow(query, id, userID).Scan(&comp.ID, &comp.UserID, &comp.Name, &comp.Notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("comparison %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}
	comp.CreatedAt = time.Unix(createdAt, 0)

	rows, err := c.db.Query(
		`SELECT analysis_id FROM comparison_analyses WHERE comparison_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var analysisID string
		if err := rows.Scan(&analysisID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		comp.AnalysisIDs = append(comp.AnalysisIDs, analysisID)
	}

	return &comp, rows.Err()
}

func (c *Client) ListComparisons(userID string) ([]models.Comparison, error) {
	query := `SELECT id, user_id, name, notes, created_at FROM comparisons
		WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := c.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []models.Comparison
	for rows.Next() {
		var comp models.Comparison
		var createdAt int64
		if err := rows.Scan(&comp.ID, &comp.UserID, &comp.Name, &comp.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		comp.CreatedAt = time.Unix(createdAt, 0)
		comparisons = append(comparisons, comp)
	}

	return comparisons, rows.Err()
}

func (c *Client) DeleteComparison(id, userID string) error {
	res, err := c.db.Exec(`DELETE FROM comparisons WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete comparison: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("comparison %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetPreferences returns a user's preferences, creating the default row
// on first access.
func (c *Client) GetPreferences(userID string) (*models.Preferences, error) {
	now := time.Now().Unix()
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO preferences (user_id, preferred_categories, notification_settings, default_depth, created_at, updated_at)
		VALUES (?, '[]', '{}', 'detailed', ?, ?)`,
		userID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure preferences: %w", err)
	}

	query := `SELECT user_id, preferred_categories, notification_settings, default_depth, created_at, updated_at
		FROM preferences WHERE user_id = ?`

	var p models.Preferences
	var categoriesJSON, settingsJSON, depth string
	var createdAt, updatedAt int64

	err = c.db.QueryRow(query, userID).Scan(&p.UserID, &categoriesJSON, &settingsJSON, &depth, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	json.Unmarshal([]byte(categoriesJSON), &p.PreferredCategories)
	json.Unmarshal([]byte(settingsJSON), &p.NotificationSettings)
	p.DefaultDepth = models.AnalysisDepth(depth)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

func (c *Client) UpdatePreferences(prefs *models.Preferences) error {
	categoriesJSON, _ := json.Marshal(prefs.PreferredCategories)
	settingsJSON, _ := json.Marshal(prefs.NotificationSettings)

	query := `UPDATE preferences SET preferred_categories = ?, notification_settings = ?, default_depth = ?, updated_at = ?
		WHERE user_id = ?`

	res, err := c.db.Exec(query, string(categoriesJSON), string(settingsJSON), string(prefs.DefaultDepth),
		time.Now().Unix(), prefs.UserID)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("preferences for user %s: %w", prefs.UserID, models.ErrNotFound)
	}
	return nil
}
