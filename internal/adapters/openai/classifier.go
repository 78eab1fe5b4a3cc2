package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/utils"
)

// OpenAIClassifier is an implementation of the Classifier interface using OpenAI
type OpenAIClassifier struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	promptFormat  string
	textProcessor *utils.TextProcessor
}

// BillingAnalysisResponse represents the structured response from the LLM
type BillingAnalysisResponse struct {
	IsBilling  bool    `json:"is_billing"`
	EmailType  string  `json:"email_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// NewOpenAIClassifier creates a new OpenAI classifier
func NewOpenAIClassifier(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClassifier {
	return &OpenAIClassifier{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are a billing-email analyst. Classify the following email by its billing role.
Respond with a JSON object containing:
- is_billing: boolean (true if the email concerns billing, invoicing or payments)
- email_type: string, exactly one of "bill" (requests a payment), "receipt" (confirms a completed payment) or "other" (billing-related but neither)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- reasoning: string (brief explanation of your classification)

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// ClassifyMessage determines whether a message is a bill, a receipt or
// something else billing-adjacent
func (c *OpenAIClassifier) ClassifyMessage(ctx context.Context, msg *core.NormalizedMessage) (*core.ClassificationResult, error) {
	// Process the body (sanitize and truncate)
	processedBody := c.textProcessor.ProcessText(classifierBody(msg), c.maxBodySize)

	prompt := fmt.Sprintf(c.promptFormat, formatSender(msg), msg.Subject, processedBody)

	// Create the request
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a billing-email classification system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	// Call OpenAI API
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	responseText := resp.Choices[0].Message.Content

	analysis, err := parseBillingResponse(responseText)
	if err != nil {
		return nil, err
	}

	emailType, err := core.ParseEmailType(analysis.EmailType)
	if err != nil {
		return nil, fmt.Errorf("invalid classification from OpenAI model: %w", err)
	}

	c.logger.Debug("OpenAI classification complete",
		zap.String("message_id", msg.ID),
		zap.String("processing_id", resp.ID),
		zap.String("email_type", string(emailType)))

	return &core.ClassificationResult{
		IsBilling:  analysis.IsBilling,
		EmailType:  emailType,
		Confidence: analysis.Confidence,
		Reasoning:  analysis.Reasoning,
		ModelUsed:  c.modelName,
		AnalyzedAt: time.Now(),
	}, nil
}

// parseBillingResponse parses the LLM's JSON response, extracting the
// JSON object from surrounding prose if necessary
func parseBillingResponse(responseText string) (*BillingAnalysisResponse, error) {
	var analysis BillingAnalysisResponse
	if err := json.Unmarshal([]byte(responseText), &analysis); err != nil {
		// Try to extract JSON from the text response
		jsonStart := 0
		jsonEnd := len(responseText)

		// Find JSON start
		for i := 0; i < len(responseText); i++ {
			if responseText[i] == '{' {
				jsonStart = i
				break
			}
		}

		// Find JSON end
		for i := len(responseText) - 1; i >= 0; i-- {
			if responseText[i] == '}' {
				jsonEnd = i + 1
				break
			}
		}

		if jsonStart >= jsonEnd {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}

		jsonStr := responseText[jsonStart:jsonEnd]
		if err := json.Unmarshal([]byte(jsonStr), &analysis); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	return &analysis, nil
}

// formatSender renders the sender for the prompt
func formatSender(msg *core.NormalizedMessage) string {
	if msg.SenderName != "" {
		return fmt.Sprintf("%s <%s>", msg.SenderName, msg.SenderAddress)
	}
	return msg.SenderAddress
}

// classifierBody joins the body with any extracted attachment text
func classifierBody(msg *core.NormalizedMessage) string {
	if msg.AttachmentText == "" {
		return msg.BodyText
	}
	return msg.BodyText + "\n\n[attachment text]\n" + msg.AttachmentText
}
