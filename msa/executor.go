package msa

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
)

// RawResponse is the outcome of a single request that produced any response
// at all. Provider error payloads arrive with non-2xx statuses, so the body
// is returned regardless of status; stages interpret it.
type RawResponse struct {
	Status int
	Body   string
}

// Executor issues single HTTP requests with method, URL, body and headers.
// It routes through the configured proxy and retries transient transport
// faults transparently; it never retries based on response content, that
// policy belongs to the stages.
type Executor struct {
	client *retry.Client
}

// NewExecutor builds an Executor. proxyURL may be nil for a direct
// connection.
func NewExecutor(proxyURL *url.URL) (*Executor, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(&http.Client{Transport: transport}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return &Executor{client: client}, nil
}

// Execute performs one request. body may be empty; it is sent as UTF-8 text.
// A nil error means a response was read, whatever its status; only genuine
// IO failures return an error.
func (e *Executor) Execute(
	ctx context.Context,
	method, rawURL, body string,
	headers map[string]string,
) (*RawResponse, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &RawResponse{Status: resp.StatusCode, Body: string(data)}, nil
}
