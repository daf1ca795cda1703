// Package reasoning classifies log patterns and extracts identifiers with a hosted language model.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
	extractMaxTokens = 512
)

// ErrNoAPIKey is returned when the reasoner is constructed without credentials.
var ErrNoAPIKey = errors.New("reasoning: API key is required")

// AnthropicReasoner implements verdict classification and identifier extraction over the
// Anthropic Messages API.
type AnthropicReasoner struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	extract   bool
	logger    *slog.Logger
}

// NewAnthropicReasoner builds a reasoner. Extra request options are appended after the API key,
// so tests can redirect the base URL.
func NewAnthropicReasoner(cfg config.ReasoningConfig, logger *slog.Logger, opts ...option.RequestOption) (*AnthropicReasoner, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	all := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}, opts...)
	return &AnthropicReasoner{
		client:    anthropic.NewClient(all...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
		extract:   cfg.Extract,
		logger:    logger.With("component", "reasoning", "model", model),
	}, nil
}

// Classify asks the model for a verdict on one pattern.
func (r *AnthropicReasoner) Classify(ctx context.Context, in models.ReasoningInput) (models.ReasoningOutput, error) {
	reply, err := r.complete(ctx, classifySystem, classifyPrompt(in), r.maxTokens)
	if err != nil {
		return models.ReasoningOutput{}, err
	}
	out, err := parseVerdict(reply)
	if err != nil {
		r.logger.Warn("unparseable verdict", "pattern", in.PatternID, "error", err)
		return models.ReasoningOutput{}, utils.NewAppError("reasoning.classify", "invalid model reply", err)
	}
	return out, nil
}

// Extract returns identifiers the model found in text. Every identifier is marked inferred.
// When extraction is disabled in configuration it returns nothing.
func (r *AnthropicReasoner) Extract(ctx context.Context, text string) ([]models.Identifier, error) {
	if !r.extract || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	reply, err := r.complete(ctx, extractSystem, text, extractMaxTokens)
	if err != nil {
		return nil, err
	}
	ids, err := parseIdentifiers(reply, text)
	if err != nil {
		return nil, utils.NewAppError("reasoning.extract", "invalid model reply", err)
	}
	return ids, nil
}

func (r *AnthropicReasoner) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	r.logger.Debug("model call finished",
		"duration", time.Since(start),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	if b.Len() == 0 {
		return "", fmt.Errorf("reasoning: empty reply (stop reason %s)", resp.StopReason)
	}
	return b.String(), nil
}

// classifyAPIError marks rate limits and server faults as transient.
func classifyAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return utils.Transient(fmt.Errorf("reasoning: %w", err))
		}
		return fmt.Errorf("reasoning: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return utils.Transient(fmt.Errorf("reasoning: %w", err))
}
