package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"trupharma/backend/pkg/logger"
)

// maxPromptText caps the label prose sent to the model to stay inside
// token limits
const maxPromptText = 3000

const extractionPrompt = `You are a pharmacology expert. Extract ALL drug names mentioned as interacting with the target drug from the following drug interaction text.

Target drug: %s

Drug interaction text:
"""
%s
"""

Return ONLY a JSON array of drug names (generic names preferred). Example: ["warfarin", "aspirin", "methotrexate"]
If no interacting drugs are found, return an empty array: []
Do NOT include the target drug itself. Do NOT include drug classes (like "NSAIDs") - only specific drug names.`

// DrugNameExtractor extracts interacting-drug candidates from label prose
// via an OpenAI-compatible endpoint
type DrugNameExtractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewDrugNameExtractor creates an extractor against baseURL (e.g. a LiteLLM
// proxy). A dummy key is substituted when none is configured.
func NewDrugNameExtractor(baseURL, apiKey, model string) *DrugNameExtractor {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"

	return &DrugNameExtractor{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger.Get(),
	}
}

// ExtractDrugNames returns case-folded drug-name candidates found in text.
// Errors propagate so the caller can fall back to dictionary matching.
func (e *DrugNameExtractor) ExtractDrugNames(ctx context.Context, text, subjectName string) ([]string, error) {
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(extractionPrompt, subjectName, text),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	names, err := parseNameArray(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Debug("unparseable extractor response",
			zap.String("subject", subjectName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("parsing extractor response: %w", err)
	}
	return names, nil
}

// parseNameArray decodes a JSON array of names from a model response,
// tolerating markdown code fences around the payload
func parseNameArray(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(raw, "```")
		raw = strings.TrimSpace(raw)
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			result = append(result, n)
		}
	}
	return result, nil
}
