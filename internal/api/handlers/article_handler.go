package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/news"
	"github.com/newslens/backend/internal/storage/models"
	"github.com/newslens/backend/internal/storage/sqlite"
	"github.com/newslens/backend/pkg/logger"
)

type ArticleHandler struct {
	store       *sqlite.Client
	fetcher     *news.Fetcher
	fetchBudget int
}

// NewArticleHandler builds the article endpoints. fetchBudget caps how many
// articles a single fetch request may pull from the news provider.
func NewArticleHandler(store *sqlite.Client, fetcher *news.Fetcher, fetchBudget int) *ArticleHandler {
	if fetchBudget <= 0 {
		fetchBudget = 100
	}
	return &ArticleHandler{
		store:       store,
		fetcher:     fetcher,
		fetchBudget: fetchBudget,
	}
}

func (h *ArticleHandler) ListArticles(c *fiber.Ctx) error {
	filter := sqlite.ArticleFilter{
		Category: c.Query("category"),
		Source:   c.Query("source"),
		Search:   c.Query("search"),
		Limit:    clampLimit(c.QueryInt("limit", 50)),
		Offset:   c.QueryInt("offset", 0),
	}
	if filter.Category != "" && !models.IsValidCategory(filter.Category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown category",
		})
	}

	articles, err := h.store.ListArticles(filter)
	if err != nil {
		logger.Error("Failed to list articles", zap.Error(err))
		return errorResponse(c, err, "Failed to list articles")
	}

	items := make([]fiber.Map, 0, len(articles))
	for i := range articles {
		items = append(items, articleJSON(&articles[i]))
	}
	return c.JSON(fiber.Map{
		"articles": items,
		"count":    len(items),
	})
}

func (h *ArticleHandler) GetArticle(c *fiber.Ctx) error {
	article, err := h.store.GetArticle(c.Params("id"))
	if err != nil {
		return errorResponse(c, err, "Failed to load article")
	}
	return c.JSON(articleJSON(article))
}

// FetchArticles pulls articles from the news provider and stores the
// new ones. With a query the provider's full-text search is used,
// otherwise the current headlines for a category.
func (h *ArticleHandler) FetchArticles(c *fiber.Ctx) error {
	var req struct {
		Category    string `json:"category"`
		Query       string `json:"query"`
		MaxArticles int    `json:"max_articles"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Category == "" {
		req.Category = "general"
	}
	if req.MaxArticles <= 0 || req.MaxArticles > h.fetchBudget {
		req.MaxArticles = 20
	}

	var (
		stored int
		err    error
	)
	if req.Query != "" {
		stored, err = h.fetcher.SearchAndStore(c.Context(), req.Query, req.MaxArticles)
	} else {
		stored, err = h.fetcher.FetchAndStore(c.Context(), req.Category, req.MaxArticles)
	}
	if err != nil {
		logger.Error("Article fetch failed",
			zap.String("category", req.Category),
			zap.String("query", req.Query),
			zap.Error(err))
		return errorResponse(c, err, "Failed to fetch articles")
	}

	return c.JSON(fiber.Map{
		"category": req.Category,
		"stored":   stored,
	})
}
