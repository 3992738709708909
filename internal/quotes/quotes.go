// Package quotes supplies the text of auto-replies. It asks a quotable-style
// HTTP API for a random quote and falls back to a fixed local list whenever
// the API is slow, down or returns something unusable.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/apperr"
)

// Provider fetches quotes. The zero value is not usable; use NewProvider.
type Provider struct {
	url      string
	client   *http.Client
	fallback []string
}

// quotableResponse is the subset of the quotable.io /random payload we use.
type quotableResponse struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// NewProvider returns a provider for url. fallback must not be empty.
func NewProvider(url string, timeout time.Duration, fallback []string) *Provider {
	return &Provider{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
	}
}

// Quote always returns a non-empty string.
func (p *Provider) Quote(ctx context.Context) string {
	q, err := p.Fetch(ctx)
	if err != nil {
		log.Printf("quote provider unavailable, using fallback: %v", err)
		return p.Fallback()
	}
	return q
}

// Fetch asks the upstream API for one quote. Errors are apperr.Upstream.
func (p *Provider) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "build quote request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "quote request failed", err)
	}
	defer resp.Body.Close()

	// cap the body; a quote is a few hundred bytes
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "read quote response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.Upstream, fmt.Sprintf("quote API status %d", resp.StatusCode))
	}

	var parsed quotableResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperr.Wrap(apperr.Upstream, "decode quote response", err)
	}
	content := strings.TrimSpace(parsed.Content)
	if content == "" {
		return "", apperr.New(apperr.Upstream, "quote API returned empty content")
	}
	if author := strings.TrimSpace(parsed.Author); author != "" {
		return content + " — " + author, nil
	}
	return content, nil
}

// Fallback picks a pseudo-random entry of the local list.
func (p *Provider) Fallback() string {
	return p.fallback[rand.IntN(len(p.fallback))]
}
