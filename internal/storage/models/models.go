package models

import (
	"fmt"
	"math"
	"time"
)

type PoliticalBias string

const (
	BiasFarLeft     PoliticalBias = "far_left"
	BiasLeft        PoliticalBias = "left"
	BiasCenterLeft  PoliticalBias = "center_left"
	BiasCenter      PoliticalBias = "center"
	BiasCenterRight PoliticalBias = "center_right"
	BiasRight       PoliticalBias = "right"
	BiasFarRight    PoliticalBias = "far_right"
	BiasNeutral     PoliticalBias = "neutral"
)

// biasScores projects the bias classification onto a symmetric
// [-1, 1] scale. Both "center" and "neutral" map to 0.
var biasScores = map[PoliticalBias]float64{
	BiasFarLeft:     -1.0,
	BiasLeft:        -0.66,
	BiasCenterLeft:  -0.33,
	BiasCenter:      0.0,
	BiasNeutral:     0.0,
	BiasCenterRight: 0.33,
	BiasRight:       0.66,
	BiasFarRight:    1.0,
}

func (b PoliticalBias) IsValid() bool {
	_, ok := biasScores[b]
	return ok
}

// NormalizedScore returns the numeric bias score; unknown values score 0.
func (b PoliticalBias) NormalizedScore() float64 {
	return biasScores[b]
}

type AnalysisDepth string

const (
	DepthBasic         AnalysisDepth = "basic"
	DepthDetailed      AnalysisDepth = "detailed"
	DepthComprehensive AnalysisDepth = "comprehensive"
)

func (d AnalysisDepth) IsValid() bool {
	switch d {
	case DepthBasic, DepthDetailed, DepthComprehensive:
		return true
	}
	return false
}

// Categories is the fixed set of article categories accepted in
// user preferences and used for ingestion.
var Categories = []string{
	"general",
	"business",
	"technology",
	"politics",
	"health",
	"science",
	"sports",
	"entertainment",
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

type Article struct {
	ID          string
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	Author      string
	Source      string
	Category    string
	Keywords    []string
	Language    string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsActive    bool
}

// BodyText resolves the text submitted for analysis: full content when
// available, the description otherwise.
func (a *Article) BodyText() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Description
}

// Analysis is one completed bias/sentiment evaluation of one article by
// one user. Records are immutable once created; the store enforces at
// most one per (user, article) pair.
type Analysis struct {
	ID                string
	UserID            string
	ArticleID         string
	PoliticalBias     PoliticalBias
	BiasConfidence    float64
	BiasReasoning     string
	PositiveSentiment float64
	NegativeSentiment float64
	NeutralSentiment  float64
	OverallSentiment  float64
	PrimaryTopics     []string
	TopicDistribution map[string]float64
	KeyThemes         []string
	EmotionalTone     string
	ControversyLevel  float64
	AnalysisVersion   string
	ProcessingSeconds float64
	CreatedAt         time.Time
	RawResponse       string

	// Denormalized from the article on list queries.
	ArticleTitle    string
	ArticleCategory string
}

// SentimentSumTolerance is the allowed deviation of
// positive+negative+neutral from 1.0 for externally submitted records.
const SentimentSumTolerance = 0.01

// Validate checks an externally supplied analysis record. Engine-created
// records are trusted and never pass through here.
func (a *Analysis) Validate() error {
	if !a.PoliticalBias.IsValid() {
		return fmt.Errorf("%w: unknown political bias %q", ErrValidation, a.PoliticalBias)
	}
	sum := a.PositiveSentiment + a.NegativeSentiment + a.NeutralSentiment
	if math.Abs(sum-1.0) > SentimentSumTolerance {
		return fmt.Errorf("%w: sentiment percentages sum to %.3f, expected 1.0", ErrValidation, sum)
	}
	return nil
}

// NormalizedBiasScore is the derived [-1, 1] projection of the bias
// classification. It is computed, never stored.
func (a *Analysis) NormalizedBiasScore() float64 {
	return a.PoliticalBias.NormalizedScore()
}

// Comparison is a user-named set of analyses used for comparative stats.
// Membership is restricted to analyses owned by the same user.
type Comparison struct {
	ID          string
	UserID      string
	Name        string
	Notes       string
	AnalysisIDs []string
	CreatedAt   time.Time
}

type Preferences struct {
	UserID               string
	PreferredCategories  []string
	NotificationSettings map[string]bool
	DefaultDepth         AnalysisDepth
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (p *Preferences) Validate() error {
	for _, c := range p.PreferredCategories {
		if !IsValidCategory(c) {
			return fmt.Errorf("%w: %q is not a valid category", ErrValidation, c)
		}
	}
	if p.DefaultDepth != "" && !p.DefaultDepth.IsValid() {
		return fmt.Errorf("%w: %q is not a valid analysis depth", ErrValidation, p.DefaultDepth)
	}
	return nil
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile tracks per-user usage. Created explicitly via EnsureProfile,
// never as a side effect of user persistence.
type Profile struct {
	UserID         string
	Bio            string
	AvatarURL      string
	TotalAnalyses  int
	LastAnalysisAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
