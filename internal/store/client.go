package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrBaseURLRequired = errors.New("store: base url required")
	ErrUnavailable     = errors.New("store: persistence service unavailable")
	ErrRejected        = errors.New("store: transition rejected")
)

// GatewayConfig configures the persistence service client.
type GatewayConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	Client         *http.Client
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RequestTimeout: 5 * time.Second,
	}
}

// Gateway is the synchronous client for the persistence service: fetch
// the full transition history, commit a new transition. Transport
// failures and timeouts surface as ErrUnavailable, explicit refusals as
// ErrRejected; the gateway keeps no state beyond its connection pool.
type Gateway struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLRequired
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultGatewayConfig().RequestTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		baseURL: base,
		timeout: cfg.RequestTimeout,
		client:  client,
	}, nil
}

// History fetches the full persisted history. There is no delta fetch;
// every call returns every record the service holds.
func (g *Gateway) History(ctx context.Context) ([]Record, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, g.baseURL+"/lamp", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: history status=%d", ErrUnavailable, resp.StatusCode)
	}
	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: history decode: %v", ErrUnavailable, err)
	}
	return records, nil
}

// Commit persists one transition. The caller guarantees at most one
// commit per genuine transition; the gateway does not deduplicate.
func (g *Gateway) Commit(ctx context.Context, next bool) (Record, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/lamp/%s", g.baseURL, StateToken(next))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, nil)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Record{}, fmt.Errorf("%w: commit status=%d", ErrRejected, resp.StatusCode)
	default:
		return Record{}, fmt.Errorf("%w: commit status=%d", ErrUnavailable, resp.StatusCode)
	}

	// The service echoes the created record when it can; an empty body
	// still counts as a durable commit of the requested status.
	body, err := io.ReadAll(resp.Body)
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		return Record{Status: next}, nil
	}
	var created Record
	if err := json.Unmarshal(body, &created); err != nil {
		return Record{Status: next}, nil
	}
	return created, nil
}
