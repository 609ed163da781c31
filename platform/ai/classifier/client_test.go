package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestScoreLeadParsesStructuredResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/score-lead" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"score": 82,
			"interestLevel": "high",
			"conversionProbability": 74,
			"insights": ["repeat buyer"],
			"recommendedActions": ["call today"],
			"tags": ["returning"]
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	result, err := client.ScoreLead(context.Background(), LeadScoringRequest{})
	if err != nil {
		t.Fatalf("ScoreLead returned error: %v", err)
	}

	if result.Score != 82 {
		t.Errorf("score = %d, want 82", result.Score)
	}
	if result.InterestLevel != "high" {
		t.Errorf("interestLevel = %q, want high", result.InterestLevel)
	}
	if len(result.Insights) != 1 || result.Insights[0] != "repeat buyer" {
		t.Errorf("unexpected insights %v", result.Insights)
	}
}

func TestScoreLeadRejectsMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{"not json", `<html>gateway error</html>`, http.StatusOK},
		{"missing interest level", `{"score": 50}`, http.StatusOK},
		{"server error", `{"error":"overloaded"}`, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL})
			if _, err := client.ScoreLead(context.Background(), LeadScoringRequest{}); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestScoreLeadTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	if _, err := client.ScoreLead(context.Background(), LeadScoringRequest{}); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestRecommendSellerRequiresRoster(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:0"})
	if _, err := client.RecommendSeller(context.Background(), AssignmentRequest{}); err == nil {
		t.Fatal("expected error for empty roster, got nil")
	}
}
