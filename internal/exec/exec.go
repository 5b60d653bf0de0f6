// Package exec calls the external sandboxed execution service. The service
// is an untrusted black box: slow responses and failures are expected and
// must never leak past the dispatcher as anything but an error result.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one code run to be performed by the sandbox.
type Request struct {
	Code     string
	Language string
	Version  string
}

type wireRequest struct {
	Language string     `json:"language"`
	Version  string     `json:"version"`
	Files    []wireFile `json:"files"`
}

type wireFile struct {
	Content string `json:"content"`
}

// Run is the sandbox's description of one execution.
type Run struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   int    `json:"code"`
}

// Result is the decoded sandbox response plus the raw body, which is
// relayed to clients unmodified.
type Result struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Run      Run    `json:"run"`

	Raw json.RawMessage `json:"-"`
}

// Client dispatches execution requests to a Piston-compatible service.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a client for the given execute endpoint. The timeout
// bounds the whole call, connect included.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Execute performs one bounded sandbox call. The returned error covers
// transport failures, timeouts, and non-2xx responses; the room is left
// untouched in all of those cases.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(wireRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []wireFile{{Content: req.Code}},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execution service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("execution service: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("execution service: status %d", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("execution service: decode response: %w", err)
	}
	result.Raw = raw

	return &result, nil
}
