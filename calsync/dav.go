package calsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/emersion/go-ical"
	"golang.org/x/time/rate"
)

const maxObjectSize = 1 << 20

// DAVCalendar reads and writes calendar objects on a CalDAV server with plain
// GET and PUT requests. Requests are paced by a token bucket limiter.
type DAVCalendar struct {
	client  *http.Client
	baseURL *url.URL
	limiter *rate.Limiter
	logger  *slog.Logger

	username, password string
}

// DAVOption configures a DAVCalendar
type DAVOption func(*DAVCalendar)

// WithHTTPClient sets the client requests are sent with
func WithHTTPClient(client *http.Client) DAVOption {
	return func(c *DAVCalendar) {
		if client != nil {
			c.client = client
		}
	}
}

// WithCredentials enables basic authentication
func WithCredentials(username, password string) DAVOption {
	return func(c *DAVCalendar) {
		c.username = username
		c.password = password
	}
}

// WithRateLimit allows r requests per second with bursts of burst
func WithRateLimit(r rate.Limit, burst int) DAVOption {
	return func(c *DAVCalendar) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithDAVLogger sets the logger for the calendar client
func WithDAVLogger(logger *slog.Logger) DAVOption {
	return func(c *DAVCalendar) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewDAVCalendar creates a client for the server at baseURL. Object URIs
// passed to Get and Put are resolved against it.
func NewDAVCalendar(baseURL string, opts ...DAVOption) (*DAVCalendar, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %q: %w", baseURL, err)
	}

	c := &DAVCalendar{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: base,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.username != "" {
		// copy so a shared client passed in is left untouched
		client := *c.client
		client.Transport = NewBasicAuthTransport(c.username, c.password, client.Transport, c.logger)
		c.client = &client
	}
	return c, nil
}

func (c *DAVCalendar) resolveURL(uri string) (string, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", uri, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

func (c *DAVCalendar) Get(ctx context.Context, uri string) (*ical.Event, string, error) {
	target, err := c.resolveURL(uri)
	if err != nil {
		return nil, "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("GET request failed", "url", target, "error", err)
		return nil, "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, "", ErrNotFound
	default:
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read calendar object: %w", err)
	}
	event, err := decodeEvent(data)
	if err != nil {
		return nil, "", err
	}

	etag := resp.Header.Get("ETag")
	c.logger.Debug("GET request complete", "url", target, "etag", etag)
	return event, etag, nil
}

func (c *DAVCalendar) Put(ctx context.Context, uri string, event *ical.Event, etag string) (string, error) {
	target, err := c.resolveURL(uri)
	if err != nil {
		return "", err
	}
	data, err := encodeEvent(event)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	c.logger.Debug("starting PUT request",
		"url", target,
		"etag", etag,
		"data_length", len(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if etag != "" {
		req.Header.Set("If-Match", etag)
	} else {
		req.Header.Set("If-None-Match", "*")
	}
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("PUT request failed", "url", target, "error", err)
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	case http.StatusPreconditionFailed:
		return "", ErrPreconditionFailed
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		c.logger.Debug("unexpected status code",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	newETag := resp.Header.Get("ETag")
	c.logger.Debug("PUT request complete",
		"status", resp.Status,
		"new_etag", newETag)
	return newETag, nil
}

var _ Calendar = (*DAVCalendar)(nil)
