package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/newslens/backend/internal/storage/models"
)

// The model's reply is parsed against this schema exactly once, here.
// Every field is optional; a section or field the model omits gets its
// documented default. Only a reply that fails to parse as JSON at all
// is a hard error.
type responsePayload struct {
	PoliticalBias     *biasSection      `json:"political_bias"`
	SentimentAnalysis *sentimentSection `json:"sentiment_analysis"`
	TopicAnalysis     *topicSection     `json:"topic_analysis"`
	KeyInsights       *insightsSection  `json:"key_insights"`
}

type biasSection struct {
	Classification  *string  `json:"classification"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Reasoning       *string  `json:"reasoning"`
}

type sentimentSection struct {
	PositiveSentiment     *float64 `json:"positive_sentiment"`
	NegativeSentiment     *float64 `json:"negative_sentiment"`
	NeutralSentiment      *float64 `json:"neutral_sentiment"`
	OverallSentimentScore *float64 `json:"overall_sentiment_score"`
	EmotionalTone         *string  `json:"emotional_tone"`
}

type topicSection struct {
	PrimaryTopics     []string           `json:"primary_topics"`
	TopicDistribution map[string]float64 `json:"topic_distribution"`
}

type insightsSection struct {
	MainThemes       []string `json:"main_themes"`
	ControversyLevel *float64 `json:"controversy_level"`
}

// Result is the extracted analysis with all defaults applied. Raw keeps
// the reply verbatim (code fences stripped) for the audit column.
type Result struct {
	PoliticalBias     models.PoliticalBias
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
	Raw               string
}

// Documented defaults for absent fields.
const (
	defaultBias              = models.BiasNeutral
	defaultBiasConfidence    = 0.5
	defaultPositiveSentiment = 0.33
	defaultNegativeSentiment = 0.33
	defaultNeutralSentiment  = 0.34
	defaultOverallSentiment  = 0.0
	defaultEmotionalTone     = "neutral"
	defaultControversyLevel  = 0.0
)

// ParseResponse validates the model reply against the analysis schema
// and fills defaults for anything missing. Out-of-range confidence and
// controversy values are passed through unmodified.
func ParseResponse(raw string) (*Result, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", models.ErrInvalidResponse)
	}

	var payload responsePayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	result := &Result{
		PoliticalBias:     defaultBias,
		BiasConfidence:    defaultBiasConfidence,
		PositiveSentiment: defaultPositiveSentiment,
		NegativeSentiment: defaultNegativeSentiment,
		NeutralSentiment:  defaultNeutralSentiment,
		OverallSentiment:  defaultOverallSentiment,
		PrimaryTopics:     []string{},
		TopicDistribution: map[string]float64{},
		KeyThemes:         []string{},
		EmotionalTone:     defaultEmotionalTone,
		ControversyLevel:  defaultControversyLevel,
		Raw:               text,
	}

	if bias := payload.PoliticalBias; bias != nil {
		if bias.Classification != nil {
			result.PoliticalBias = models.PoliticalBias(*bias.Classification)
		}
		if bias.ConfidenceScore != nil {
			result.BiasConfidence = *bias.ConfidenceScore
		}
		if bias.Reasoning != nil {
			result.BiasReasoning = *bias.Reasoning
		}
	}

	if sentiment := payload.SentimentAnalysis; sentiment != nil {
		if sentiment.PositiveSentiment != nil {
			result.PositiveSentiment = *sentiment.PositiveSentiment
		}
		if sentiment.NegativeSentiment != nil {
			result.NegativeSentiment = *sentiment.NegativeSentiment
		}
		if sentiment.NeutralSentiment != nil {
			result.NeutralSentiment = *sentiment.NeutralSentiment
		}
		if sentiment.OverallSentimentScore != nil {
			result.OverallSentiment = *sentiment.OverallSentimentScore
		}
		if sentiment.EmotionalTone != nil {
			result.EmotionalTone = *sentiment.EmotionalTone
		}
	}

	if topics := payload.TopicAnalysis; topics != nil {
		if topics.PrimaryTopics != nil {
			result.PrimaryTopics = topics.PrimaryTopics
		}
		if topics.TopicDistribution != nil {
			result.TopicDistribution = topics.TopicDistribution
		}
	}

	if insights := payload.KeyInsights; insights != nil {
		if insights.MainThemes != nil {
			result.KeyThemes = insights.MainThemes
		}
		if insights.ControversyLevel != nil {
			result.ControversyLevel = *insights.ControversyLevel
		}
	}

	return result, nil
}

// stripCodeFences removes a surrounding markdown code block, which some
// models emit despite the JSON response format. The closing fence may be
// missing or sit on the same line as the payload.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	// The opening fence may carry a language tag.
	if strings.HasPrefix(text, "json") {
		text = strings.TrimSpace(strings.TrimPrefix(text, "json"))
	}

	return text
}
