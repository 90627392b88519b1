package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSearcher queries an external vector-search service for recorded steps.
// The index itself (embedding, ingestion) lives outside this program.
type HTTPSearcher struct {
	// URL is the search endpoint, e.g. http://127.0.0.1:6333/steps/search.
	URL string

	// Client defaults to a client with a 10s timeout.
	Client *http.Client
}

type searchRequest struct {
	Keyword string `json:"keyword"`
	TopK    int    `json:"top_k"`
}

type searchResponse struct {
	Steps []Step `json:"steps"`
}

func (h HTTPSearcher) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// SearchSteps implements StepSearcher.
func (h HTTPSearcher) SearchSteps(ctx context.Context, keyword string, topK int) ([]Step, error) {
	body, err := json.Marshal(searchRequest{Keyword: keyword, TopK: topK})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("step search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("step search: unexpected status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("step search: decode response: %w", err)
	}
	return out.Steps, nil
}
