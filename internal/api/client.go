// Package api is the NetGuard REST client. Every call attaches the session
// credential, is logged and counted, and returns records that have already
// been normalized.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/session"
	"github.com/nshruti113/netguard-dashboard/internal/telemetry"
)

const (
	// DefaultBaseURL is where a local NetGuard API listens
	DefaultBaseURL = "http://127.0.0.1:8000/api"

	// RequestTimeout bounds every call, including reading the body
	RequestTimeout = 10 * time.Second

	maxBodyBytes = 16 << 20
)

// Client talks to one NetGuard API
type Client struct {
	baseURL string
	http    *http.Client
	session session.Session
}

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	BaseURL   string
	Transport http.RoundTripper
}

// NewClient builds a client that authenticates with sess
func NewClient(sess session.Session, opts Options) (*Client, error) {
	if sess == nil {
		return nil, errors.New("api: nil session")
	}
	base, err := ValidateBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   RequestTimeout,
			Transport: otelhttp.NewTransport(transport),
		},
		session: sess,
	}, nil
}

// ValidateBaseURL checks raw is an http(s) URL with a host and strips any
// trailing slash, query or fragment. Empty selects DefaultBaseURL.
func ValidateBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultBaseURL, nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("API base URL must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("API base URL must include a host")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

// BaseURL returns the normalized API root
func (c *Client) BaseURL() string { return c.baseURL }

// Session returns the credential holder the client authenticates with
func (c *Client) Session() session.Session { return c.session }

type call struct {
	resource string
	method   string
	path     string
	body     any
	public   bool // sent even without a credential
}

func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	token := c.session.Token()
	if token == "" && !cl.public {
		err := &AuthError{Resource: cl.resource, Reason: reasonNoCredential}
		telemetry.ObserveAPICall(cl.resource, telemetry.OutcomeAuth, 0)
		logging.LogAPIError(cl.resource, cl.method, cl.path, err)
		return nil, err
	}

	var reader io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", cl.resource, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", cl.resource, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	data, status, err := c.roundTrip(req)
	took := time.Since(start)

	switch {
	case err != nil:
		err = &TransportError{Resource: cl.resource, Method: cl.method, Path: cl.path, Err: err}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		err = &AuthError{Resource: cl.resource, StatusCode: status, Reason: reasonRejected}
	case status < 200 || status > 299:
		err = &TransportError{
			Resource:   cl.resource,
			Method:     cl.method,
			Path:       cl.path,
			StatusCode: status,
			Err:        fmt.Errorf("response: %s", snippet(data)),
		}
	}

	if err != nil {
		outcome := telemetry.OutcomeTransport
		if IsAuth(err) {
			outcome = telemetry.OutcomeAuth
		}
		telemetry.ObserveAPICall(cl.resource, outcome, took)
		logging.LogAPIError(cl.resource, cl.method, cl.path, err)
		return nil, err
	}

	telemetry.ObserveAPICall(cl.resource, telemetry.OutcomeOK, took)
	logging.LogAPICall(cl.resource, cl.method, cl.path, status, took)
	return data, nil
}

func (c *Client) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func malformed(cl call) error {
	return &TransportError{Resource: cl.resource, Method: cl.method, Path: cl.path, Err: ErrMalformedResponse}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
