// Package apiclient is the typed request layer over the travel blog HTTP API.
//
// Every endpoint answers with the same envelope:
//
//	{"success": bool, "data": ..., "message": "...", "error": "..."}
//
// Do decodes the data field into the caller's type; DoVoid is for operations with no payload.
// A non-2xx status or success=false becomes a single *errs.APIError. There are no retries.
package apiclient

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

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/travelblog/internal/errs"
)

// DefaultTimeout bounds a single request when the caller supplies no http.Client.
const DefaultTimeout = 30 * time.Second

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-ID"
	contentTypeJSON     = "application/json"
)

// TokenSource supplies the bearer token for outbound requests; "" means no credential.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Envelope is the uniform response wrapper. Data stays raw so an absent field (nil) can be
// told apart from an explicit null.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client sends requests relative to a base URL.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	log       *zap.Logger
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

// New constructs a Client for baseURL, e.g. "http://127.0.0.1:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		log:       zap.NewNop(),
		userAgent: "travelblog-cli",
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

type callOpts struct {
	header http.Header
	query  url.Values
}

// CallOption adjusts a single request.
type CallOption func(*callOpts)

// WithHeader sets a request header. An explicit Authorization or Content-Type header replaces
// the client's default for that request.
func WithHeader(key, value string) CallOption {
	return func(o *callOpts) { o.header.Set(key, value) }
}

// WithQuery adds query parameters.
func WithQuery(q url.Values) CallOption {
	return func(o *callOpts) {
		for k, vs := range q {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// Do sends the request and decodes the envelope's data into T.
// A successful envelope without data (absent or null) fails with errs.ErrNoData.
func Do[T any](ctx context.Context, c *Client, method, path string, body any, opts ...CallOption) (T, error) {
	var out T
	env, err := c.Send(ctx, method, path, body, opts...)
	if err != nil {
		return out, err
	}
	if env.Data == nil || bytes.Equal(env.Data, []byte("null")) {
		return out, fmt.Errorf("%s %s: %w", method, path, errs.ErrNoData)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return out, nil
}

// DoVoid sends a request whose success carries no value; data, if any, is ignored.
func DoVoid(ctx context.Context, c *Client, method, path string, body any, opts ...CallOption) error {
	_, err := c.Send(ctx, method, path, body, opts...)
	return err
}

// Send performs one attempt and returns the parsed envelope of a successful response.
func (c *Client) Send(ctx context.Context, method, path string, body any, opts ...CallOption) (*Envelope, error) {
	co := callOpts{header: http.Header{}, query: url.Values{}}
	for _, o := range opts {
		o(&co)
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	target := c.baseURL + path
	if len(co.query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		target += sep + co.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(ctx, req, co.header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("http",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", req.Header.Get(headerRequestID)),
			zap.Error(err),
		)
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	// metadata only, never payloads or tokens
	c.log.Debug("http",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
		zap.String("request_id", req.Header.Get(headerRequestID)),
	)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("read %s %s response", method, path), Err: err}
	}

	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("decode %s %s response (HTTP %d)", method, path, resp.StatusCode), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		return nil, &errs.APIError{Status: resp.StatusCode, Message: env.Error}
	}
	return env, nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request, explicit http.Header) {
	for k, vs := range explicit {
		req.Header[k] = append([]string(nil), vs...)
	}
	if req.Header.Get(headerContentType) == "" {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if req.Header.Get(headerAuthorization) == "" && c.tokens != nil {
		if tok := c.tokens.Token(ctx); tok != "" {
			req.Header.Set(headerAuthorization, "Bearer "+tok)
		}
	}
	if req.Header.Get(headerRequestID) == "" {
		if id, err := uuid.NewV4(); err == nil {
			req.Header.Set(headerRequestID, id.String())
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// parseEnvelope treats an empty body as {success:false}.
func parseEnvelope(raw []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Envelope{Success: false}, nil
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// TransportError is a failure below the envelope: network, timeout or a body that was not JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
