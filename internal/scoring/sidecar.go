package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Metrics served by the LangCheck scoring sidecar.
const (
	SidecarToxicity               = "toxicity"
	SidecarSentiment              = "sentiment"
	SidecarFluency                = "fluency"
	SidecarFactualConsistency     = "factual_consistency"
	SidecarAIDisclaimerSimilarity = "ai_disclaimer_similarity"
	SidecarSemanticSimilarity     = "semantic_similarity"
)

// SidecarClient is a client for the self-hosted LangCheck scoring service,
// which runs the local toxicity, sentiment, fluency and similarity models.
type SidecarClient struct {
	baseURL    string
	httpClient *http.Client
}

// MetricRequest is the body of a metric computation call.
type MetricRequest struct {
	Language string   `json:"language"`
	Inputs   []string `json:"inputs"`
}

// MetricResponse carries one computed value.
type MetricResponse struct {
	Value            float64 `json:"value"`
	ProcessingTimeMs float64 `json:"processing_time_ms,omitempty"`
}

// SidecarHealth represents the health check response.
type SidecarHealth struct {
	Status       string   `json:"status"`
	ModelsLoaded []string `json:"models_loaded"`
	Device       string   `json:"device"`
}

// NewSidecarClient creates a client for the scoring service at baseURL.
func NewSidecarClient(baseURL string, timeout time.Duration) *SidecarClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SidecarClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Compute asks the sidecar for one metric value.
func (c *SidecarClient) Compute(ctx context.Context, metric, language string, inputs []string) (*MetricResponse, error) {
	jsonData, err := json.Marshal(MetricRequest{Language: language, Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/metrics/" + url.PathEscape(metric)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scoring service returned status %d for %s: %s", resp.StatusCode, metric, string(body))
	}

	var result MetricResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// HealthCheck checks if the scoring service is up.
func (c *SidecarClient) HealthCheck(ctx context.Context) (*SidecarHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scoring service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result SidecarHealth
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// Scorer binds a sidecar metric and language into a Scorer.
func (c *SidecarClient) Scorer(metric, language string) Scorer {
	return ScorerFunc(func(ctx context.Context, inputs []string) (Score, error) {
		resp, err := c.Compute(ctx, metric, language, inputs)
		if err != nil {
			return Score{}, err
		}
		return Score{Value: resp.Value}, nil
	})
}
