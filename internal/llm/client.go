// Package llm provides the optional LLM-enrichment capability: a judgment
// call on whether two entity names refer to the same real-world entity,
// used only when composite string similarity lands in the ambiguous band
// between the synonym and review thresholds.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/models"
)

// ProviderKind identifies which backend a Client is configured against.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderNone      ProviderKind = "none"
)

// EnrichmentRequest carries the two names under comparison plus the
// context a judge needs to decide whether they're the same entity.
type EnrichmentRequest struct {
	RawName       string
	CandidateName string
	EntityType    models.EntityType
	KnownSynonyms []string
}

// EnrichmentResult is the provider's structured judgment.
type EnrichmentResult struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Provider is the capability the resolution orchestrator depends on. It is
// optional: callers that don't configure a provider use Disabled(), which
// always reports Available() == false and never makes a network call.
type Provider interface {
	Enrich(ctx context.Context, req EnrichmentRequest) (*EnrichmentResult, error)
	Available() bool
}

// Client provides a unified enrichment interface over OpenAI and
// Anthropic, selecting a provider by which API key is present in the
// environment. Grounded on the teacher's llm.Client provider-selection
// shape; generalized from freeform investigation completions to a single
// structured entity-match judgment.
type Client struct {
	provider        ProviderKind
	openaiClient    *openai.Client
	anthropicClient *anthropic.Client
	limiter         *RateLimiter
	logger          *slog.Logger
	enabled         bool
}

// NewClient builds an enrichment client from environment configuration. It
// never fails: if no key is found, or LLM_ENRICHMENT_ENABLED is not "true",
// it returns a disabled client whose Available() is false.
func NewClient(ctx context.Context, limiter *RateLimiter) (*Client, error) {
	logger := slog.Default().With("component", "llm")

	if os.Getenv("LLM_ENRICHMENT_ENABLED") != "true" {
		logger.Info("llm enrichment disabled via configuration")
		return &Client{provider: ProviderNone, logger: logger, enabled: false}, nil
	}

	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		logger.Info("openai enrichment client initialized")
		return &Client{
			provider:     ProviderOpenAI,
			openaiClient: openai.NewClient(openaiKey),
			limiter:      limiter,
			logger:       logger,
			enabled:      true,
		}, nil
	}

	if anthropicKey := os.Getenv("ANTHROPIC_API_KEY"); anthropicKey != "" {
		client := anthropic.NewClient()
		logger.Info("anthropic enrichment client initialized")
		return &Client{
			provider:        ProviderAnthropic,
			anthropicClient: &client,
			limiter:         limiter,
			logger:          logger,
			enabled:         true,
		}, nil
	}

	logger.Warn("llm enrichment enabled but no API key configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	return &Client{provider: ProviderNone, logger: logger, enabled: false}, nil
}

// Available reports whether this client can serve Enrich calls.
func (c *Client) Available() bool {
	return c.enabled
}

const systemPrompt = `You judge whether two names refer to the same real-world entity.
Respond with strict JSON: {"match": bool, "confidence": number between 0 and 1, "reasoning": short string}.
Consider abbreviations, transliterations, and known aliases. Do not explain outside the JSON.`

// Enrich asks the configured provider to judge whether req.RawName and
// req.CandidateName name the same entity. Returns a
// *errors.Error(ErrorTypeProviderUnavailable) if the client is disabled or
// the provider call fails.
func (c *Client) Enrich(ctx context.Context, req EnrichmentRequest) (*EnrichmentResult, error) {
	if !c.enabled {
		return nil, errors.ProviderUnavailableError(nil, "llm enrichment client not enabled")
	}

	if c.limiter != nil {
		if err := c.limiter.CheckAndIncrement(ctx, estimateTokens(req)); err != nil {
			return nil, errors.ProviderUnavailableError(err, "llm rate limit exceeded")
		}
	}

	userPrompt := fmt.Sprintf(
		"Entity type: %s\nName A: %q\nName B: %q\nKnown synonyms of A: %s",
		req.EntityType, req.RawName, req.CandidateName, strings.Join(req.KnownSynonyms, "; "),
	)

	var raw string
	var err error
	switch c.provider {
	case ProviderOpenAI:
		raw, err = c.completeOpenAI(ctx, systemPrompt, userPrompt)
	case ProviderAnthropic:
		raw, err = c.completeAnthropic(ctx, systemPrompt, userPrompt)
	default:
		return nil, errors.ProviderUnavailableError(nil, "no llm provider configured")
	}
	if err != nil {
		return nil, errors.ProviderUnavailableError(err, "llm enrichment call failed")
	}

	var result EnrichmentResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return nil, errors.ProviderUnavailableError(err, "llm returned unparseable enrichment response")
	}
	return &result, nil
}

func (c *Client) completeOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.0,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	response := resp.Choices[0].Message.Content
	c.logger.Debug("openai enrichment completion",
		"prompt_length", len(userPrompt),
		"tokens_used", resp.Usage.TotalTokens)
	return response, nil
}

func (c *Client) completeAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	message, err := c.anthropicClient.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 200,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic returned no content blocks")
	}

	c.logger.Debug("anthropic enrichment completion", "prompt_length", len(userPrompt))
	return message.Content[0].Text, nil
}

// extractJSON strips any leading/trailing prose a provider adds despite
// instructions, returning just the outermost {...} span.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func estimateTokens(req EnrichmentRequest) int64 {
	chars := len(systemPrompt) + len(req.RawName) + len(req.CandidateName)
	for _, s := range req.KnownSynonyms {
		chars += len(s)
	}
	return int64(chars/4) + 100 // rough chars-per-token + response budget
}

// disabledProvider always reports unavailable, used when no Client could
// be constructed (e.g. tests that don't want a live provider dependency).
type disabledProvider struct{}

// Disabled returns a Provider that never makes a network call.
func Disabled() Provider { return disabledProvider{} }

func (disabledProvider) Available() bool { return false }

func (disabledProvider) Enrich(ctx context.Context, req EnrichmentRequest) (*EnrichmentResult, error) {
	return nil, errors.ProviderUnavailableError(nil, "llm enrichment disabled")
}
