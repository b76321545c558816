package analysis

import (
	"fmt"
	"unicode/utf8"
)

// MaxContentChars bounds how much article body text is embedded in the
// prompt, to cap request size and cost.
const MaxContentChars = 3000

const promptTemplate = `Please analyze the following news article for political bias, sentiment, and topical content:

Title: %s
Description: %s
Content: %s

Provide a comprehensive analysis in the following JSON format:

{
    "political_bias": {
        "classification": "far_left|left|center_left|center|center_right|right|far_right|neutral",
        "confidence_score": 0.85,
        "reasoning": "Detailed explanation of why this classification was chosen"
    },
    "sentiment_analysis": {
        "positive_sentiment": 0.25,
        "negative_sentiment": 0.15,
        "neutral_sentiment": 0.60,
        "overall_sentiment_score": 0.10,
        "emotional_tone": "cautious|optimistic|pessimistic|angry|neutral|concerned"
    },
    "topic_analysis": {
        "primary_topics": ["economy", "healthcare", "foreign_policy", "immigration", "climate"],
        "topic_distribution": {
            "economy": 0.40,
            "healthcare": 0.30,
            "immigration": 0.20,
            "foreign_policy": 0.10
        }
    },
    "key_insights": {
        "main_themes": ["economic recovery", "policy implications", "public reaction"],
        "controversy_level": 0.65,
        "key_phrases": ["significant development", "policy change", "public concern"],
        "target_audience": "general_public|political_insiders|industry_experts|activists"
    },
    "detailed_analysis": {
        "bias_indicators": ["word choice", "source selection", "framing"],
        "factual_vs_opinion": {
            "factual_content": 0.70,
            "opinion_content": 0.30
        },
        "rhetorical_devices": ["statistics", "expert quotes", "emotional appeals"],
        "missing_perspectives": ["opposition viewpoint", "expert analysis"]
    }
}

Rules:
1. Be objective and analytical
2. All numeric values should be between 0 and 1
3. Sentiment percentages should sum to 1.0
4. Classification must be one of the specified options
5. Provide specific evidence for bias classification
6. Focus on political and social implications`

// BuildPrompt renders the analysis instruction for one article. It is
// pure: identical inputs always yield identical prompt text. Content
// falls back to the description when empty and is truncated to
// MaxContentChars.
func BuildPrompt(title, description, content string) string {
	if content == "" {
		content = description
	}
	if len(content) > MaxContentChars {
		cut := MaxContentChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	return fmt.Sprintf(promptTemplate, title, description, content)
}
