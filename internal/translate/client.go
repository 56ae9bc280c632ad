// Package translate provides the name translators used by the renderer: an
// HTTP client for the public Google translate endpoint, a Redis-backed
// cache in front of it and a fixed in-memory table.
package translate

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
)

// DefaultEndpoint is the keyless endpoint used by browser extensions.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// ErrEmptyTranslation is returned when the service answers without text.
var ErrEmptyTranslation = errors.New("empty translation")

// Client calls the translate_a/single endpoint. It is safe for concurrent
// use.
type Client struct {
	httpClient *http.Client // httpClient performs the requests
	endpoint   string       // endpoint is the full URL of translate_a/single
}

// NewClient returns a Client for endpoint. An empty endpoint selects
// DefaultEndpoint; a nil httpClient gets one with the given timeout.
func NewClient(endpoint string, timeout time.Duration, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: httpClient, endpoint: endpoint}
}

// Translate translates text from the source to the target language.
func (c *Client) Translate(ctx context.Context, text, from, to string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", from)
	q.Set("tl", to)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translate failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	return parseResponse(b)
}

// parseResponse extracts the translated text from the nested array the
// endpoint returns, e.g. [[["नमस्ते","hello",null,null,10]],null,"en"].
// Long inputs come back in several segments which are joined in order.
func parseResponse(b []byte) (string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return "", fmt.Errorf("could not decode response: %w", err)
	}
	if len(top) == 0 {
		return "", ErrEmptyTranslation
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return "", fmt.Errorf("could not decode segments: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(seg[0], &part); err != nil {
			continue
		}
		sb.WriteString(part)
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}
