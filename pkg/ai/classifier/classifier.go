package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-dispatch-be/pkg/llm"
)

// Intent type constants produced by classification.
const (
	IntentVideoAnalysis = "VIDEO_ANALYSIS"
	IntentRescue        = "RESCUE"
	IntentDeviceControl = "DEVICE_CONTROL"
	IntentChat          = "CHAT"
)

// Result is the classifier verdict for one raw input.
type Result struct {
	IntentType string            `json:"intent_type"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots"`
}

// Classifier maps raw natural-language input to an intent and any slot
// values it can extract. A classification failure is surfaced to the caller
// as-is; there is no silent fallback to a guessed intent.
type Classifier interface {
	Classify(ctx context.Context, rawInput string) (*Result, error)
}

// LLMClassifier performs pure LLM-based classification. No retries or
// backoff; the provider's error is the caller's error.
type LLMClassifier struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

var _ Classifier = &LLMClassifier{}

func NewLLMClassifier(llmProvider llm.LLMProvider, logger *log.Logger) *LLMClassifier {
	return &LLMClassifier{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, rawInput string) (*Result, error) {
	prompt := buildPrompt(rawInput)

	// Temperature 0 for deterministic output
	response, err := c.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		return nil, fmt.Errorf("intent classification failed: %w", err)
	}

	result, err := parseResult(response)
	if err != nil {
		return nil, fmt.Errorf("intent classification returned unparseable output: %w", err)
	}

	c.logger.Printf("[CLASSIFIER] %s (confidence %.2f, slots %v)", result.IntentType, result.Confidence, result.Slots)
	return result, nil
}

func buildPrompt(rawInput string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent classifier for a facility assistance system.\n")
	prompt.WriteString("You do NOT answer the request. You only classify it.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<intents>\n")
	prompt.WriteString("VIDEO_ANALYSIS: the user wants footage from a camera or sensor analyzed\n")
	prompt.WriteString("RESCUE: someone needs help, a medical or safety incident is reported\n")
	prompt.WriteString("DEVICE_CONTROL: the user wants a device switched, locked, rebooted or reconfigured\n")
	prompt.WriteString("CHAT: anything else\n")
	prompt.WriteString("</intents>\n\n")

	prompt.WriteString("<user_input>\n")
	prompt.WriteString(rawInput)
	prompt.WriteString("\n</user_input>\n\n")

	prompt.WriteString("Respond with ONLY a JSON object:\n")
	prompt.WriteString(`{"intent_type": "VIDEO_ANALYSIS|RESCUE|DEVICE_CONTROL|CHAT", "confidence": 0.0, "slots": {"device_name": "...", "location": "..."}}`)
	prompt.WriteString("\nOmit slot keys you cannot extract from the input.\n")

	return prompt.String()
}

func parseResult(response string) (*Result, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var result Result
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	switch result.IntentType {
	case IntentVideoAnalysis, IntentRescue, IntentDeviceControl, IntentChat:
	default:
		return nil, fmt.Errorf("unknown intent type %q", result.IntentType)
	}
	if result.Slots == nil {
		result.Slots = map[string]string{}
	}

	return &result, nil
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
