package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"snapspend/internal/errs"
)

// Analyzer invokes the expense-document structuring service against an
// already-stored object and returns its raw response unmodified.
type Analyzer interface {
	Analyze(ctx context.Context, key string) (json.RawMessage, error)
}

// ExpenseClient is an HTTP client for the expense-analysis service.
type ExpenseClient struct {
	baseURL string
	client  *http.Client
}

func NewExpenseClient(baseURL string) *ExpenseClient {
	return &ExpenseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type analyzeRequest struct {
	Key string `json:"key"`
}

// Analyze asks the service to structure the stored object. All failures,
// including throttling and unreachable-service conditions, surface as a
// retryable AnalysisError; the object itself is durable.
func (c *ExpenseClient) Analyze(ctx context.Context, key string) (json.RawMessage, error) {
	body, err := json.Marshal(analyzeRequest{Key: key})
	if err != nil {
		return nil, &errs.AnalysisError{Key: key, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	url := fmt.Sprintf("%s/analyze-expense", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, &errs.AnalysisError{Key: key, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errs.AnalysisError{Key: key, Err: fmt.Errorf("calling expense API: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.AnalysisError{Key: key, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.AnalysisError{Key: key, Err: fmt.Errorf("expense API error (status %d): %s", resp.StatusCode, raw)}
	}
	if !json.Valid(raw) {
		return nil, &errs.AnalysisError{Key: key, Err: fmt.Errorf("expense API returned non-JSON response")}
	}

	return raw, nil
}
