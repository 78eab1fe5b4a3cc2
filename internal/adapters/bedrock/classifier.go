package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/utils"
)

// BedrockClassifier is an implementation of the Classifier interface using Amazon Bedrock
type BedrockClassifier struct {
	client        *bedrockruntime.Client
	modelID       string
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

// NewBedrockClassifier creates a new Bedrock classifier
func NewBedrockClassifier(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClassifier {
	return &BedrockClassifier{
		client:        client,
		modelID:       modelID,
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
func (c *BedrockClassifier) ClassifyMessage(ctx context.Context, msg *core.NormalizedMessage) (*core.ClassificationResult, error) {
	// Process the body (sanitize and truncate)
	processedBody := c.textProcessor.ProcessText(classifierBody(msg), c.maxBodySize)

	prompt := fmt.Sprintf(c.promptFormat, formatSender(msg), msg.Subject, processedBody)

	// Create the request based on the model
	var payload []byte
	var err error

	if c.isAnthropicModel() {
		// Anthropic Claude models
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		// Amazon Titan models
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		// Default to a generic format
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	// Call Bedrock API
	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := c.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

	analysis, err := parseBillingResponse(responseText)
	if err != nil {
		return nil, err
	}

	emailType, err := core.ParseEmailType(analysis.EmailType)
	if err != nil {
		return nil, fmt.Errorf("invalid classification from Bedrock model: %w", err)
	}

	return &core.ClassificationResult{
		IsBilling:  analysis.IsBilling,
		EmailType:  emailType,
		Confidence: analysis.Confidence,
		Reasoning:  analysis.Reasoning,
		ModelUsed:  c.modelID,
		AnalyzedAt: time.Now(),
	}, nil
}

// responseText extracts the model's text output from the raw response
// body, based on the model family
func (c *BedrockClassifier) responseText(body []byte) (string, error) {
	if c.isAnthropicModel() {
		// Anthropic Claude models
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		// Amazon Titan models
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	// Try a generic approach
	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}

	// Try different fields
	if genericResp.Output != "" {
		return genericResp.Output, nil
	}
	if genericResp.Text != "" {
		return genericResp.Text, nil
	}
	if genericResp.Response != "" {
		return genericResp.Response, nil
	}

	// Just use the raw response as a string
	return string(body), nil
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

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClassifier) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClassifier) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
