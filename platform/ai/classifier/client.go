package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is an HTTP client for the external AI classifier endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config configures the classifier client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls so batch jobs respect the
	// classifier's rate limits. Zero disables limiting.
	RequestsPerSecond float64
}

// NewClient creates a new classifier client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// ScoreLead submits a lead context document for scoring.
func (c *Client) ScoreLead(ctx context.Context, req LeadScoringRequest) (LeadScoringResult, error) {
	var result LeadScoringResult
	if err := c.post(ctx, "/v1/score-lead", req, &result); err != nil {
		return LeadScoringResult{}, err
	}
	if result.InterestLevel == "" {
		return LeadScoringResult{}, fmt.Errorf("classifier response missing interestLevel")
	}
	return result, nil
}

// RecommendSeller submits a lead and seller roster for an assignment ranking.
func (c *Client) RecommendSeller(ctx context.Context, req AssignmentRequest) (AssignmentResult, error) {
	if len(req.Sellers) == 0 {
		return AssignmentResult{}, fmt.Errorf("seller roster is empty")
	}

	var result AssignmentResult
	if err := c.post(ctx, "/v1/recommend-seller", req, &result); err != nil {
		return AssignmentResult{}, err
	}
	if result.RecommendedSellerID == "" {
		return AssignmentResult{}, fmt.Errorf("classifier response missing recommendedSellerId")
	}
	return result, nil
}

// BatchInsights submits aggregate counts for a batch-level summary.
func (c *Client) BatchInsights(ctx context.Context, req InsightRequest) (InsightResult, error) {
	var result InsightResult
	if err := c.post(ctx, "/v1/batch-insights", req, &result); err != nil {
		return InsightResult{}, err
	}
	if result.Summary == "" {
		return InsightResult{}, fmt.Errorf("classifier response missing summary")
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal classifier request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create classifier request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read classifier response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode classifier response: %w", err)
	}

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
