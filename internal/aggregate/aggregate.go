// Package aggregate reduces collections of analysis records into
// statistics. Everything here is pure: no store access, no mutation of
// inputs, and stable output order for identical input order.
package aggregate

import (
	"sort"
	"time"

	"github.com/newslens/backend/internal/storage/models"
)

// ControversialThreshold is the controversy level at or above which an
// analysis counts as controversial in user stats.
const ControversialThreshold = 0.7

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type SentimentRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type ComparativeStats struct {
	TotalArticles      int            `json:"total_articles"`
	AverageBiasScore   float64        `json:"average_bias_score"`
	AverageSentiment   float64        `json:"average_sentiment"`
	AverageControversy float64        `json:"average_controversy"`
	BiasDistribution   map[string]int `json:"bias_distribution"`
	TopTopics          []TopicCount   `json:"top_topics"`
	SentimentRange     SentimentRange `json:"sentiment_range"`
}

type DailyActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type UserStats struct {
	TotalAnalyses       int             `json:"total_analyses"`
	AnalysesThisMonth   int             `json:"analyses_this_month"`
	FavoriteCategories  []CategoryCount `json:"favorite_categories"`
	AverageBiasScore    float64         `json:"average_bias_score"`
	ControversialTopics []TopicCount    `json:"most_controversial_topics"`
	DailyActivity       []DailyActivity `json:"daily_activity"`
}

// CompareAnalyses computes comparative statistics over a set of
// analyses. Empty input yields a zeroed result, never an error.
func CompareAnalyses(analyses []models.Analysis) ComparativeStats {
	stats := ComparativeStats{
		BiasDistribution: map[string]int{},
		TopTopics:        []TopicCount{},
	}

	if len(analyses) == 0 {
		return stats
	}

	var biasSum, sentimentSum, controversySum float64
	minSentiment := analyses[0].OverallSentiment
	maxSentiment := analyses[0].OverallSentiment

	for _, a := range analyses {
		biasSum += a.NormalizedBiasScore()
		sentimentSum += a.OverallSentiment
		controversySum += a.ControversyLevel

		stats.BiasDistribution[string(a.PoliticalBias)]++

		if a.OverallSentiment < minSentiment {
			minSentiment = a.OverallSentiment
		}
		if a.OverallSentiment > maxSentiment {
			maxSentiment = a.OverallSentiment
		}
	}

	n := float64(len(analyses))
	stats.TotalArticles = len(analyses)
	stats.AverageBiasScore = biasSum / n
	stats.AverageSentiment = sentimentSum / n
	stats.AverageControversy = controversySum / n
	stats.SentimentRange = SentimentRange{Min: minSentiment, Max: maxSentiment}
	stats.TopTopics = topTopics(analyses, 10, 0)

	return stats
}

// TrendingTopics ranks the ten most frequent topics across analyses,
// descending, with ties kept in first-seen order. Each analysis
// contributes once per topic it lists. Callers pre-filter by time
// window with FilterSince.
func TrendingTopics(analyses []models.Analysis) []TopicCount {
	return topTopics(analyses, 10, 0)
}

// FilterSince returns the analyses created at or after since, keeping
// input order. The input slice is not modified.
func FilterSince(analyses []models.Analysis, since time.Time) []models.Analysis {
	var out []models.Analysis
	for _, a := range analyses {
		if !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out
}

// ComputeUserStats summarizes a user's full analysis history. The
// caller supplies the clock so month and activity windows are testable.
func ComputeUserStats(analyses []models.Analysis, now time.Time) UserStats {
	stats := UserStats{
		FavoriteCategories:  []CategoryCount{},
		ControversialTopics: []TopicCount{},
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var biasSum float64
	categoryCounts := map[string]int{}
	var categoryOrder []string

	for _, a := range analyses {
		biasSum += a.NormalizedBiasScore()

		if !a.CreatedAt.Before(monthStart) {
			stats.AnalysesThisMonth++
		}

		if a.ArticleCategory != "" {
			if _, seen := categoryCounts[a.ArticleCategory]; !seen {
				categoryOrder = append(categoryOrder, a.ArticleCategory)
			}
			categoryCounts[a.ArticleCategory]++
		}
	}

	stats.TotalAnalyses = len(analyses)
	if len(analyses) > 0 {
		stats.AverageBiasScore = biasSum / float64(len(analyses))
	}

	sort.SliceStable(categoryOrder, func(i, j int) bool {
		return categoryCounts[categoryOrder[i]] > categoryCounts[categoryOrder[j]]
	})
	for i, name := range categoryOrder {
		if i >= 5 {
			break
		}
		stats.FavoriteCategories = append(stats.FavoriteCategories, CategoryCount{Name: name, Count: categoryCounts[name]})
	}

	stats.ControversialTopics = topTopics(analyses, 5, ControversialThreshold)
	stats.DailyActivity = dailyActivity(analyses, now, 30)

	return stats
}

// topTopics counts topic occurrences across analyses with controversy
// at or above minControversy, ranked by count descending with first-seen
// tie order. limit 0 means unbounded.
func topTopics(analyses []models.Analysis, limit int, minControversy float64) []TopicCount {
	counts := map[string]int{}
	var order []string

	for _, a := range analyses {
		if a.ControversyLevel < minControversy {
			continue
		}
		for _, topic := range a.PrimaryTopics {
			if _, seen := counts[topic]; !seen {
				order = append(order, topic)
			}
			counts[topic]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	topics := make([]TopicCount, 0, len(order))
	for _, topic := range order {
		topics = append(topics, TopicCount{Topic: topic, Count: counts[topic]})
	}

	return topics
}

// dailyActivity buckets analyses per calendar day over the trailing
// window, oldest day first. Days with no analyses appear with count 0.
func dailyActivity(analyses []models.Analysis, now time.Time, days int) []DailyActivity {
	counts := map[string]int{}
	for _, a := range analyses {
		counts[a.CreatedAt.Format("2006-01-02")]++
	}

	activity := make([]DailyActivity, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		activity = append(activity, DailyActivity{Date: date, Count: counts[date]})
	}

	return activity
}
