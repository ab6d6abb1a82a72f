// Package fetch is the outbound HTTP client shared by drivers. Responses
// are cached in-process for a short TTL so identical provider calls within
// a burst of queries do not hammer upstreams.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spatialmesh/stac-federator/internal/core/observability"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.Status)
}

type cached struct {
	body []byte
	at   time.Time
}

type Client struct {
	http  *http.Client
	cache *lru.Cache[uint64, cached]
	ttl   time.Duration
	clock func() time.Time
}

// New builds a fetch client. size <= 0 disables caching entirely.
func New(hc *http.Client, size int, ttl time.Duration) (*Client, error) {
	c := &Client{http: hc, ttl: ttl, clock: time.Now}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if size > 0 {
		cache, err := lru.New[uint64, cached](size)
		if err != nil {
			return nil, fmt.Errorf("build fetch cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

func cacheKey(method, url string, body []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(method)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(url)
	_, _ = d.WriteString("|")
	_, _ = d.Write(body)
	return d.Sum64()
}

// Do performs the request and returns the response body. GET and POST with
// identical url+body share cache entries until the TTL lapses.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	key := cacheKey(method, url, body)
	if c.cache != nil {
		if ent, ok := c.cache.Get(key); ok {
			if c.clock().Sub(ent.at) < c.ttl {
				observability.IncFetchHit()
				return ent.body, nil
			}
			c.cache.Remove(key)
		}
		observability.IncFetchMiss()
	}

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := c.clock()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	observability.ObserveUpstreamLatency(req.URL.Host, time.Since(start).Seconds())

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	if c.cache != nil {
		c.cache.Add(key, cached{body: data, at: c.clock()})
	}
	return data, nil
}
