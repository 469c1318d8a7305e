package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/ports"
)

// UpstreamConfig configures the upstream producer.
type UpstreamConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// UpstreamProducer fetches analyses from an HTTP service exposing
// GET {base}/analysis/{symbol}, which returns an Analysis JSON object
// or 404.
type UpstreamProducer struct {
	client  *http.Client
	baseURL *url.URL
}

// NewUpstreamProducer creates an upstream producer.
func NewUpstreamProducer(cfg UpstreamConfig) (*UpstreamProducer, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", cfg.BaseURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}

	return &UpstreamProducer{
		client:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		baseURL: baseURL,
	}, nil
}

// Produce fetches and formats the analysis for the subject.
func (u *UpstreamProducer) Produce(ctx context.Context, req ports.PayloadRequest) (map[string]any, error) {
	target := u.baseURL.JoinPath("analysis", strings.ToUpper(req.Subject))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, gate.Internal(fmt.Errorf("build upstream request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, gate.StorageUnavailable(fmt.Errorf("upstream timeout: %w", err))
		}
		return nil, gate.StorageUnavailable(fmt.Errorf("upstream request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, gate.NotFound(fmt.Sprintf("No analysis found for symbol %s", req.Subject))
	case resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body)
		return nil, gate.StorageUnavailable(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	var a Analysis
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&a); err != nil {
		return nil, gate.Internal(fmt.Errorf("decode upstream analysis: %w", err))
	}
	if a.Symbol == "" {
		a.Symbol = strings.ToUpper(req.Subject)
	}
	return Format(a, req.Fields), nil
}

// Ensure interface compliance.
var _ ports.PayloadProducer = (*UpstreamProducer)(nil)
