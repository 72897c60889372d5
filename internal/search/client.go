package search

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 30 * time.Second
	userAgent       = "job-digest (+https://github.com/job-digest/job-digest)"
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// Client performs GET requests against the search APIs and returns the
// list found under a top-level response field.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		logger:     logger,
	}
}

// GetItems requests endpoint with the query and returns the items stored
// under field. A missing field yields no items.
func (c *Client) GetItems(ctx context.Context, endpoint string, q url.Values, headers http.Header, field string) ([]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	c.setHeaders(req)
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.URL.RawQuery = q.Encode()

	c.logger.Debug("make request", zap.String("url", redact(req.URL)))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	var payload map[string]any
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if msg, ok := payload["error"].(string); ok && msg != "" {
		if isEmptyResultMessage(msg) {
			c.logger.Debug("no results", zap.String("message", msg))
			return nil, nil
		}
		return nil, fmt.Errorf("api error: %s", msg)
	}

	raw, ok := payload[field]
	if !ok || raw == nil {
		return nil, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected %q payload type %T", field, raw)
	}

	return items, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
}

// decodeItems maps loosely typed API items into typed raw structs.
func decodeItems(items []any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(items)
}

func isEmptyResultMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "hasn't returned any results")
}

// redact hides credentials passed as query parameters.
func redact(u *url.URL) string {
	copied := *u
	q := copied.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
	}
	copied.RawQuery = q.Encode()
	return copied.String()
}
