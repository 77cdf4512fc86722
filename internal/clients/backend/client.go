// Package backend forwards optimisation requests to an upstream optimisation service.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

// ErrUnreachable is returned when the backend could not be reached after every attempt.
var ErrUnreachable = errors.New("optimization backend unreachable")

const optimizePath = "/api/optimize"

// Response is the backend reply, passed through unchanged.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client for the upstream optimisation backend
type Client struct {
	baseURL  string
	client   *http.Client
	attempts uint
	delay    time.Duration
	log      zerolog.Logger
}

// NewClient creates a new backend client. timeout bounds each attempt.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		attempts: 3,
		delay:    200 * time.Millisecond,
		log:      log.With().Str("client", "backend").Logger(),
	}
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Optimize posts body to the backend's /api/optimize endpoint. Transport failures are retried;
// any HTTP response, whatever its status, is returned as-is.
func (c *Client) Optimize(ctx context.Context, body []byte) (*Response, error) {
	url := c.baseURL + optimizePath

	var out *Response
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			out = &Response{
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        data,
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			c.log.Warn().Err(err).Uint("attempt", n+1).Msg("Backend request failed, retrying")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		c.log.Error().Err(err).Str("url", url).Msg("Backend unreachable")
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	c.log.Debug().
		Int("status", out.StatusCode).
		Int("bytes", len(out.Body)).
		Msg("Backend responded")
	return out, nil
}
