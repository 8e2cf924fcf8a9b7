package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PageProber checks whether a public watch page is reachable.
//
// A 2xx answer is weak evidence that the video exists: the page can answer 200 for a video that
// is unavailable. It is only used to rebuild lost publication records.
type PageProber struct {
	client    *http.Client
	userAgent string
}

// NewPageProber creates a prober. A nil client gets a 15 second timeout.
func NewPageProber(client *http.Client) *PageProber {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PageProber{client: client, userAgent: "ytpub/1.0"}
}

// Probe fetches link and reports whether it answered with a 2xx status.
// Transport failures are returned as errors alongside false.
func (p *PageProber) Probe(ctx context.Context, link string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
