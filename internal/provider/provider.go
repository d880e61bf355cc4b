// Package provider builds the OpenAI-compatible client shared by the
// embedding and generation services and classifies its failures.
package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"eventbot/internal/config"
	"eventbot/internal/domain"
)

// Client wraps an openai.Client with the per-call timeout.
type Client struct {
	API     *openai.Client
	Timeout time.Duration
}

// New returns a client for the configured endpoint. The API key must already
// have been resolved; New never reads the environment.
func New(cfg config.ProviderConfig, apiKey string) *Client {
	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{}
	t := time.Duration(cfg.TimeoutSecs) * time.Second
	if t <= 0 {
		t = 60 * time.Second
	}
	return &Client{API: openai.NewClientWithConfig(oc), Timeout: t}
}

// WithTimeout derives the context for one remote call.
func (c *Client) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.Timeout)
}

// Classify wraps err in a domain.RemoteError for the named service.
func Classify(service string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.RemoteError{Service: service, Kind: kindOf(err), Err: err}
}

func kindOf(err error) domain.RemoteKind {
	if errors.Is(err, context.Canceled) {
		return domain.RemoteCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.RemoteTimeout
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindOfStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return kindOfStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.RemoteTimeout
		}
		return domain.RemoteNetwork
	}
	return domain.RemoteService
}

func kindOfStatus(code int) domain.RemoteKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.RemoteAuth
	case http.StatusTooManyRequests:
		return domain.RemoteRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.RemoteTimeout
	default:
		return domain.RemoteService
	}
}
