package reranker

import (
	"context"
	"fmt"
	"sync"

	"docpipe/internal/settings"
)

// DynamicClient resolves the rerank provider and key from runtime
// settings on every call, caching the underlying client until either
// changes.
type DynamicClient struct {
	settingsSvc *settings.Service
	client      *Client
	provider    string
	apiKey      string
	mu          sync.Mutex
}

func NewDynamicClient(svc *settings.Service) *DynamicClient {
	return &DynamicClient{settingsSvc: svc}
}

func (d *DynamicClient) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	s, err := d.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if s.RerankProvider == "" || s.RerankProvider == "none" {
		// Identity order, no remote call
		indices := make([]int, len(docs))
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	return d.getClient(s.RerankProvider, s.RerankAPIKey).Rerank(ctx, query, docs)
}

func (d *DynamicClient) getClient(provider, apiKey string) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil && d.provider == provider && d.apiKey == apiKey {
		return d.client
	}

	d.client = NewClient(provider, apiKey)
	d.provider = provider
	d.apiKey = apiKey
	return d.client
}
