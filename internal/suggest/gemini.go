package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BuzzLyutic/tasktrack/internal/metrics"
	"github.com/BuzzLyutic/tasktrack/internal/model"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.5-flash"
	DefaultTimeout  = 10 * time.Second
)

type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
	// RPS caps outgoing calls; calls over the limit are answered with no suggestion.
	RPS   float64
	Burst int
}

// GeminiClient talks to the generateContent REST API.
type GeminiClient struct {
	apiKey   string
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New returns a GeminiClient, or Disabled when cfg carries no API key.
func New(cfg Config, logger *zap.Logger) Suggester {
	if cfg.APIKey == "" {
		logger.Warn("text suggestion API key not set, suggestions disabled")
		return Disabled{}
	}
	return NewGeminiClient(cfg, &http.Client{}, logger)
}

func NewGeminiClient(cfg Config, client *http.Client, logger *zap.Logger) *GeminiClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &GeminiClient{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		client:   client,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		logger:   logger,
	}
}

func (c *GeminiClient) SuggestPriority(ctx context.Context, title, description string) (model.Priority, bool) {
	names := make([]string, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		names = append(names, string(p))
	}
	prompt := fmt.Sprintf(
		"Based on the following task title and description, suggest a priority level from this list: %s. "+
			"Respond with only one word from the list.\nTitle: %q\nDescription: %q",
		strings.Join(names, ", "), title, description)

	text, ok := c.generate(ctx, "priority", prompt, parsePriority)
	if !ok {
		return "", false
	}
	return model.Priority(text), true
}

// parsePriority принимает ответ вида "High" или "critical." и возвращает
// каноническое имя приоритета.
func parsePriority(text string) (string, bool) {
	word := strings.TrimRight(text, ".")
	for _, p := range model.Priorities {
		if strings.EqualFold(word, string(p)) {
			return string(p), true
		}
	}
	return "", false
}

func (c *GeminiClient) GenerateDescription(ctx context.Context, title string) (string, bool) {
	prompt := fmt.Sprintf(
		"Based on the task title %q, write a detailed task description for a professional office environment. "+
			"The description should be clear, concise, and actionable.", title)
	return c.generate(ctx, "description", prompt, nil)
}

func (c *GeminiClient) SuggestUpdateNote(ctx context.Context, title string, from, to model.Status) (string, bool) {
	prompt := fmt.Sprintf(
		"A task with the title %q is changing status from %q to %q.\n"+
			"Write a brief, professional update note (1-2 sentences) explaining the reason for this change or the next steps.",
		title, from, to)
	return c.generate(ctx, "note", prompt, nil)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate never returns an error: failures are logged, counted and turned
// into "no suggestion". When parse is set it normalizes the answer or rejects
// it as invalid. Each call is counted under exactly one outcome.
func (c *GeminiClient) generate(ctx context.Context, kind, prompt string, parse func(string) (string, bool)) (string, bool) {
	if !c.limiter.Allow() {
		metrics.SuggestionsTotal.WithLabelValues(kind, "throttled").Inc()
		return "", false
	}

	text, err := c.call(ctx, prompt)
	if err != nil {
		c.logger.Warn("text suggestion failed", zap.String("kind", kind), zap.Error(err))
		metrics.SuggestionsTotal.WithLabelValues(kind, "error").Inc()
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.SuggestionsTotal.WithLabelValues(kind, "empty").Inc()
		return "", false
	}
	if parse != nil {
		parsed, ok := parse(text)
		if !ok {
			c.logger.Warn("suggestion rejected", zap.String("kind", kind), zap.String("suggestion", text))
			metrics.SuggestionsTotal.WithLabelValues(kind, "invalid").Inc()
			return "", false
		}
		text = parsed
	}
	metrics.SuggestionsTotal.WithLabelValues(kind, "ok").Inc()
	return text, true
}

func (c *GeminiClient) call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode response")
	}

	if len(out.Candidates) == 0 {
		return "", errors.New("response has no candidates")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts { // первого кандидата достаточно
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
