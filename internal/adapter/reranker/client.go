package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// provider describes one hosted rerank API. Both supported providers
// share the same response shape; they differ only in endpoint, model
// and a couple of request fields.
type provider struct {
	endpoint string
	model    string
	// extra amends the request body with provider-specific fields.
	extra func(body map[string]interface{}, docCount int)
}

func providerFor(name string) (provider, bool) {
	switch name {
	case "jina":
		return provider{
			endpoint: "https://api.jina.ai/v1/rerank",
			model:    "jina-reranker-v1-base-en",
		}, true
	case "cohere":
		return provider{
			endpoint: "https://api.cohere.ai/v1/rerank",
			model:    "rerank-english-v3.0",
			extra: func(body map[string]interface{}, docCount int) {
				body["top_n"] = docCount
				body["return_documents"] = false
			},
		}, true
	}
	return provider{}, false
}

type Client struct {
	apiKey   string
	provider string
	client   *http.Client
	baseURL  string
}

func NewClient(providerName, apiKey string) *Client {
	return &Client{
		provider: providerName,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL overrides the provider endpoint, for tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Rerank returns chunk indices in relevance order. An unknown provider
// keeps the stored order.
func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	p, ok := providerFor(c.provider)
	if !ok {
		indices := make([]int, len(docs))
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	url := p.endpoint
	if c.baseURL != "" {
		url = c.baseURL
	}

	reqBody := map[string]interface{}{
		"model":     p.model,
		"query":     query,
		"documents": docs,
	}
	if p.extra != nil {
		p.extra(reqBody, len(docs))
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s api error: %d %s", c.provider, resp.StatusCode, detail)
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(docs))
	for _, r := range result.Results {
		if r.Index < len(docs) {
			indices = append(indices, r.Index)
		}
	}
	return indices, nil
}
