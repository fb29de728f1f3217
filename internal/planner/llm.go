package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/storage/models"
)

// Config configures the OpenAI-compatible chat completions client.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// LLMGenerator asks a chat completions model for a plan in JSON mode.
type LLMGenerator struct {
	client *resty.Client
	cfg    Config
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []chatMessage      `json:"messages"`
	Temperature    float64            `json:"temperature"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	ResponseFormat chatResponseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewLLMGenerator creates a generator from cfg.
func NewLLMGenerator(cfg Config) *LLMGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}

	return &LLMGenerator{client: c, cfg: cfg}
}

// GenerateDailyPlan implements Generator.
func (g *LLMGenerator) GenerateDailyPlan(ctx context.Context, items []models.WorkItem, prefs models.SchedulingPreferences, date time.Time) (*models.DailyPlan, error) {
	system, user := renderDailyPrompt(items, prefs, date)

	content, err := g.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var raw rawDailyPlan
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding daily plan: %v", ErrPlanningUnavailable, err)
	}
	return validateDaily(raw)
}

// GenerateWeeklyPlan implements Generator.
func (g *LLMGenerator) GenerateWeeklyPlan(ctx context.Context, items []models.WorkItem, prefs models.SchedulingPreferences, weekStart time.Time) (*models.WeeklyPlan, error) {
	system, user := renderWeeklyPrompt(items, prefs, weekStart)

	content, err := g.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var raw rawWeeklyPlan
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding weekly plan: %v", ErrPlanningUnavailable, err)
	}
	return validateWeekly(raw, weekStart)
}

// complete performs one chat completion and returns the first choice's content.
func (g *LLMGenerator) complete(ctx context.Context, system, user string) (string, error) {
	body := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    g.cfg.Temperature,
		MaxTokens:      g.cfg.MaxTokens,
		ResponseFormat: chatResponseFormat{Type: "json_object"},
	}

	var out chatResponse
	started := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(&body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: planner request: %v", ErrPlanningUnavailable, err)
	}

	log.Debug().
		Int("status", resp.StatusCode()).
		Dur("duration", time.Since(started)).
		Str("model", g.cfg.Model).
		Msg("planner call finished")

	if resp.IsError() {
		return "", fmt.Errorf("%w: planner returned status %d", ErrPlanningUnavailable, resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: planner returned no choices", ErrPlanningUnavailable)
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: planner returned empty content", ErrPlanningUnavailable)
	}
	return stripCodeFence(content), nil
}

// stripCodeFence removes a surrounding ``` or ```json fence some models add even in JSON mode.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
