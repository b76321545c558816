package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		bio TEXT,
		avatar_url TEXT,
		total_analyses INTEGER DEFAULT 0,
		last_analysis_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		content TEXT,
		url TEXT UNIQUE NOT NULL,
		image_url TEXT,
		author TEXT,
		source TEXT,
		category TEXT,
		keywords TEXT,
		language TEXT DEFAULT 'en',
		published_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		is_active INTEGER DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);
	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category, published_at);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source, published_at);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		political_bias TEXT NOT NULL,
		bias_confidence REAL,
		bias_reasoning TEXT,
		positive_sentiment REAL,
		negative_sentiment REAL,
		neutral_sentiment REAL,
		overall_sentiment REAL,
		primary_topics TEXT,
		topic_distribution TEXT,
		key_themes TEXT,
		emotional_tone TEXT,
		controversy_level REAL,
		analysis_version TEXT,
		processing_seconds REAL,
		created_at INTEGER NOT NULL,
		raw_response TEXT,
		UNIQUE(user_id, article_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_article ON analyses(article_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_bias ON analyses(political_bias);

	CREATE TABLE IF NOT EXISTS comparisons (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		notes TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS comparison_analyses (
		comparison_id TEXT NOT NULL,
		analysis_id TEXT NOT NULL,
		PRIMARY KEY (comparison_id, analysis_id),
		FOREIGN KEY (comparison_id) REFERENCES comparisons(id) ON DELETE CASCADE,
		FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id TEXT PRIMARY KEY,
		preferred_categories TEXT,
		notification_settings TEXT,
		default_depth TEXT DEFAULT 'detailed',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// isUniqueViolation reports whether err is a sqlite unique-constraint
// rejection.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// InsertArticle stores a new article keyed by URL. A duplicate URL is
// not an error: the existing row wins and created is false.
func (c *Client) InsertArticle(article *models.Article) (created bool, err error) {
	keywordsJSON, _ := json.Marshal(article.Keywords)

	query := `
		INSERT INTO articles (id, title, description, content, url, image_url, author,
			source, category, keywords, language, published_at, created_at, updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`

	res, err := c.db.Exec(
		query,
		article.ID,
		article.Title,
		article.Description,
		article.Content,
		article.URL,
		article.ImageURL,
		article.Author,
		article.Source,
		article.Category,
		string(keywordsJSON),
		article.Language,
		article.PublishedAt.Unix(),
		article.CreatedAt.Unix(),
		article.UpdatedAt.Unix(),
		boolToInt(article.IsActive),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected > 0 {
		logger.Debug("Article inserted", zap.String("article_id", article.ID), zap.String("url", article.URL))
	}
	return affected > 0, nil
}

func (c *Client) GetArticle(id string) (*models.Article, error) {
	query := `
		SELECT id, title, description, content, url, image_url, author, source,
			category, keywords, language, published_at, created_at, updated_at, is_active
		FROM articles WHERE id = ?
	`

	article, err := scanArticle(c.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("article %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

type ArticleFilter struct {
	Category string
	Source   string
	Search   string
	Limit    int
	Offset   int
}

func (c *Client) ListArticles(filter ArticleFilter) ([]models.Article, error) {
	query := `
		SELECT id, title, description, content, url, image_url, author, source,
			category, keywords, language, published_at, created_at, updated_at, is_active
		FROM articles WHERE is_active = 1
	`
	args := []interface{}{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.Search != "" {
		query += " AND (title LIKE ? OR description LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	query += " ORDER BY published_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		articles = append(articles, *article)
	}

	return articles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	var keywordsJSON string
	var publishedAt, createdAt, updatedAt int64
	var isActive int

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.Content,
		&a.URL,
		&a.ImageURL,
		&a.Author,
		&a.Source,
		&a.Category,
		&keywordsJSON,
		&a.Language,
		&publishedAt,
		&createdAt,
		&updatedAt,
		&isActive,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(keywordsJSON), &a.Keywords)
	a.PublishedAt = time.Unix(publishedAt, 0)
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	a.IsActive = isActive == 1

	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
