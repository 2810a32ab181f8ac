package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	summarySystem = "You are a helpful assistant that provides friendly, conversational summaries of articles. " +
		"Keep your responses concise but engaging. End with a fun fact and a short comma-separated list of the most important words."

	analyzeSystem = "You are an AI assistant that analyzes article content. Provide analysis in JSON format with the " +
		"following fields: categories (array of 3 main categories), sentiment (positive, negative, or neutral), " +
		"keywords (array of 5 most relevant keywords), readingTimeMinutes (estimated reading time)."

	recommendSystem = "You are an AI recommendation engine. Based on an article and user preferences, recommend " +
		"similar articles from the available collection. Return JSON with an array of recommended article IDs " +
		"under the key recommendedArticles and a brief explanation for each recommendation."
)

// Analysis is the structured result of an analyze call.
type Analysis struct {
	Categories         []string `json:"categories"`
	Sentiment          string   `json:"sentiment"`
	Keywords           []string `json:"keywords"`
	ReadingTimeMinutes int      `json:"readingTimeMinutes"`
}

// Candidate is one article offered to the recommendation prompt.
type Candidate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Recommendation carries the model's raw JSON plus the parsed article IDs.
type Recommendation struct {
	Raw                 json.RawMessage
	RecommendedArticles []string
}

// Assistant builds prompts for the reader's AI features on top of a
// Generator.
type Assistant struct {
	gen Generator
}

func NewAssistant(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

// Summarize produces a free-form conversational summary of an article.
func (a *Assistant) Summarize(ctx context.Context, title, snippet string) (string, error) {
	prompt := fmt.Sprintf("Please provide a friendly summary of this article:\nTitle: %s\n", title)
	if strings.TrimSpace(snippet) != "" {
		prompt += fmt.Sprintf("Content: %s", snippet)
	}
	return a.gen.Generate(ctx, Request{
		System:      summarySystem,
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   500,
	})
}

// Analyze categorizes an article and estimates its reading time.
func (a *Assistant) Analyze(ctx context.Context, title, snippet string) (Analysis, error) {
	prompt := fmt.Sprintf("Analyze this article and return JSON data only:\nTitle: %s\n", title)
	if strings.TrimSpace(snippet) != "" {
		prompt += fmt.Sprintf("Content: %s", snippet)
	}
	out, err := a.gen.Generate(ctx, Request{
		System:      analyzeSystem,
		Prompt:      prompt,
		JSONMode:    true,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return Analysis{}, err
	}
	var analysis Analysis
	if err := json.Unmarshal([]byte(out), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	return analysis, nil
}

// Recommend asks the model to pick similar articles out of the candidate
// catalog. Preferences and recently-read are serialized into the prompt
// as-is.
func (a *Assistant) Recommend(ctx context.Context, current Candidate, preferences, recentlyRead any, catalog []Candidate) (Recommendation, error) {
	prefsJSON, err := json.Marshal(orEmptyObject(preferences))
	if err != nil {
		return Recommendation{}, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	recentJSON, err := json.Marshal(orEmptyList(recentlyRead))
	if err != nil {
		return Recommendation{}, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return Recommendation{}, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}

	prompt := fmt.Sprintf(
		"Current article: %s\n%s\n\nUser preferences: %s\n\nRecently read: %s\n\nAvailable articles: %s",
		current.Title, current.Snippet, prefsJSON, recentJSON, catalogJSON,
	)
	out, err := a.gen.Generate(ctx, Request{
		System:      recommendSystem,
		Prompt:      prompt,
		JSONMode:    true,
		Temperature: 0.5,
		MaxTokens:   500,
	})
	if err != nil {
		return Recommendation{}, err
	}

	var parsed struct {
		RecommendedArticles []string `json:"recommendedArticles"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return Recommendation{}, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	return Recommendation{
		Raw:                 json.RawMessage(out),
		RecommendedArticles: parsed.RecommendedArticles,
	}, nil
}

func orEmptyObject(v any) any {
	if v == nil {
		return map[string]any{}
	}
	return v
}

func orEmptyList(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}
