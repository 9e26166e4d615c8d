package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"notifyme/internal/config"
	"notifyme/internal/models"
)

const evaluationPromptTemplate = `Analyze this webpage and determine if the condition is TRUE or FALSE.

CONDITION: %s

WEBPAGE CONTENT:
%s

IMPORTANT: Set "condition_met" to true ONLY if the condition is satisfied. If the condition is NOT met, set it to false.

Respond with JSON only:
{"condition_met": true or false, "explanation": "why condition is met or not met", "relevant_details": "key info like scores, dates, prices", "event_id": "YYYY-MM-DD_identifier - must be consistent format for deduplication"}`

var conditionMetSalvageRegex = regexp.MustCompile(`(?i)"?condition_met"?\s*[:=]\s*"?true`)

// OpenAIEvaluator evaluates natural-language conditions against page content
// through a chat completion model.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    config.EvaluatorConfig
	logger zerolog.Logger
}

// NewOpenAIEvaluator creates a new OpenAIEvaluator.
func NewOpenAIEvaluator(cfg config.EvaluatorConfig, logger zerolog.Logger) (*OpenAIEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("evaluator API key is not configured")
	}
	return &OpenAIEvaluator{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger.With().Str("component", "OpenAIEvaluator").Logger(),
	}, nil
}

// Evaluate asks the model whether the condition holds for the content. The
// model is expected to answer with a strict JSON payload; markdown fences are
// tolerated, and free-text answers fall back to a pattern-based boolean
// extraction before giving up.
func (oe *OpenAIEvaluator) Evaluate(ctx context.Context, content, condition string) (*models.Evaluation, error) {
	prompt := fmt.Sprintf(evaluationPromptTemplate, condition, content)

	resp, err := oe.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     oe.cfg.Model,
		MaxTokens: oe.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	evaluation, err := ParseEvaluation(raw)
	if err != nil {
		oe.logger.Warn().Str("response", truncate(raw, 200)).Msg("Unparseable evaluation response, using salvage extraction")
		return salvageEvaluation(raw), nil
	}
	return evaluation, nil
}

// evaluationPayload mirrors the JSON contract of the evaluation prompt.
// relevant_details may arrive as either an object or a bare string.
type evaluationPayload struct {
	ConditionMet    bool            `json:"condition_met"`
	Explanation     string          `json:"explanation"`
	RelevantDetails json.RawMessage `json:"relevant_details"`
	EventID         string          `json:"event_id"`
}

// ParseEvaluation decodes a model response into an Evaluation, stripping
// markdown code fences first.
func ParseEvaluation(raw string) (*models.Evaluation, error) {
	cleaned := stripCodeFence(raw)

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation payload: %w", err)
	}

	evaluation := &models.Evaluation{
		ConditionMet: payload.ConditionMet,
		Explanation:  payload.Explanation,
		Details:      decodeDetails(payload.RelevantDetails),
		EventID:      payload.EventID,
	}
	if evaluation.Explanation == "" {
		evaluation.Explanation = "No explanation provided"
	}
	return evaluation, nil
}

// salvageEvaluation is the degraded-mode recovery for free-text answers: scan
// for an affirmative condition_met marker and keep the raw text as the
// explanation. This is best-effort, not a contract guarantee.
func salvageEvaluation(raw string) *models.Evaluation {
	return &models.Evaluation{
		ConditionMet: conditionMetSalvageRegex.MatchString(raw),
		Explanation:  truncate(raw, 500),
		Details:      map[string]any{},
	}
}

func decodeDetails(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil && asString != "" {
		return map[string]any{"info": asString}
	}
	return map[string]any{}
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func truncate(s string, limit int) string {
	return models.TruncateText(s, limit)
}
