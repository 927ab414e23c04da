// Package institutions looks up financial institution details from the
// user/FI API, caching successful answers per LEI.
package institutions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/metrics"
)

const (
	DefaultTTL       = time.Hour
	defaultCacheSize = 1024
)

type LEIStatus struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	CanFile bool   `json:"can_file"`
}

// Institution is the part of the FI record the action validators read.
type Institution struct {
	LEI           string     `json:"lei"`
	Name          string     `json:"name"`
	TaxID         string     `json:"tax_id"`
	LEIStatusCode string     `json:"lei_status_code"`
	LEIStatus     *LEIStatus `json:"lei_status"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *expirable.LRU[string, *Institution]
	group      singleflight.Group
	log        logging.Logger
}

// New returns a client for the API at baseURL; the LEI is appended to it
// verbatim. Answers are kept for ttl.
func New(baseURL string, timeout, ttl time.Duration, log logging.Logger) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		cache:      expirable.NewLRU[string, *Institution](defaultCacheSize, nil, ttl),
		log:        log.With("module", "institutions"),
	}
}

// Get returns the institution for lei, or nil when it could not be fetched.
// The cache is keyed by LEI only; authorization is forwarded upstream on a
// miss. Concurrent misses for one LEI share a single upstream call. Failed
// lookups are never cached.
func (c *Client) Get(ctx context.Context, lei, authorization string) *Institution {
	if inst, ok := c.cache.Get(lei); ok {
		metrics.InstitutionCache.WithLabelValues("hit").Inc()
		return inst
	}
	metrics.InstitutionCache.WithLabelValues("miss").Inc()

	v, _, _ := c.group.Do(lei, func() (any, error) {
		inst, err := c.fetch(ctx, lei, authorization)
		if err != nil {
			metrics.InstitutionCache.WithLabelValues("error").Inc()
			c.log.Error(ctx, "Failed to retrieve fi data", "lei", lei, "error", err)
			c.cache.Remove(lei)
			return (*Institution)(nil), nil
		}
		c.cache.Add(lei, inst)
		return inst, nil
	})
	return v.(*Institution)
}

// Invalidate drops the cached entry for lei.
func (c *Client) Invalidate(lei string) {
	c.cache.Remove(lei)
}

func (c *Client) fetch(ctx context.Context, lei, authorization string) (*Institution, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+lei, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if authorization != "" {
		req.Header.Set(common.AuthorizationHeaderName, authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", lei, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fi api returned %d for %s: %s", resp.StatusCode, lei, body)
	}

	var inst Institution
	if err := json.NewDecoder(resp.Body).Decode(&inst); err != nil {
		return nil, fmt.Errorf("decode institution %s: %w", lei, err)
	}
	return &inst, nil
}
