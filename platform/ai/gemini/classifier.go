// Package gemini implements the classifier contract on top of the Gemini API
// using structured JSON output. It is a drop-in alternative to the plain HTTP
// classifier client for deployments without a dedicated scoring endpoint.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"leadflow_backend/platform/ai/classifier"

	"google.golang.org/genai"
)

// Classifier scores leads through the Gemini API.
type Classifier struct {
	client *genai.Client
	model  string
}

// Config configures the Gemini-backed classifier.
type Config struct {
	APIKey string
	Model  string
}

// New creates a Gemini-backed classifier.
func New(ctx context.Context, cfg Config) (*Classifier, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Classifier{client: client, model: cfg.Model}, nil
}

const scoringPrompt = `You are a lead qualification analyst for an online marketplace.
Given the JSON context below, score the prospect's propensity to buy.

Respond with ONLY a JSON object of this exact shape:
{"score": <0-100>, "interestLevel": "very_low|low|medium|high|very_high",
"conversionProbability": <0-100>, "insights": [<strings>],
"recommendedActions": [<strings>], "tags": [<strings>]}

Context:
%s`

// ScoreLead submits a lead context document for scoring.
func (c *Classifier) ScoreLead(ctx context.Context, req classifier.LeadScoringRequest) (classifier.LeadScoringResult, error) {
	var result classifier.LeadScoringResult
	if err := c.generate(ctx, scoringPrompt, req, &result); err != nil {
		return classifier.LeadScoringResult{}, err
	}
	if result.InterestLevel == "" {
		return classifier.LeadScoringResult{}, fmt.Errorf("gemini response missing interestLevel")
	}
	return result, nil
}

const assignmentPrompt = `You are a sales operations assistant. Given the lead and the
roster of sellers below (with performance scores and current load), pick the
single best seller for this lead. Prefer strong performers with capacity.

Respond with ONLY a JSON object:
{"recommendedSellerId": "<sellerId from the roster>", "reasoning": "<one sentence>"}

Context:
%s`

// RecommendSeller asks Gemini to rank the seller roster for a lead.
func (c *Classifier) RecommendSeller(ctx context.Context, req classifier.AssignmentRequest) (classifier.AssignmentResult, error) {
	if len(req.Sellers) == 0 {
		return classifier.AssignmentResult{}, fmt.Errorf("seller roster is empty")
	}

	var result classifier.AssignmentResult
	if err := c.generate(ctx, assignmentPrompt, req, &result); err != nil {
		return classifier.AssignmentResult{}, err
	}
	if result.RecommendedSellerID == "" {
		return classifier.AssignmentResult{}, fmt.Errorf("gemini response missing recommendedSellerId")
	}
	return result, nil
}

const insightPrompt = `You are a sales analyst. Summarize the lead pipeline movement
described by the JSON aggregates below for a busy sales team.

Respond with ONLY a JSON object:
{"summary": "<2-3 sentences>", "keyFindings": [<strings>], "trends": [<strings>],
"recommendations": [<strings>], "opportunityScore": <0-100>}

Aggregates:
%s`

// BatchInsights asks Gemini for a batch-level pipeline summary.
func (c *Classifier) BatchInsights(ctx context.Context, req classifier.InsightRequest) (classifier.InsightResult, error) {
	var result classifier.InsightResult
	if err := c.generate(ctx, insightPrompt, req, &result); err != nil {
		return classifier.InsightResult{}, err
	}
	if result.Summary == "" {
		return classifier.InsightResult{}, fmt.Errorf("gemini response missing summary")
	}
	return result, nil
}

func (c *Classifier) generate(ctx context.Context, promptFmt string, payload any, out any) error {
	contextJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gemini context: %w", err)
	}

	prompt := fmt.Sprintf(promptFmt, string(contextJSON))

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return fmt.Errorf("gemini returned empty response")
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}

	return nil
}
