package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultMaxRetries = 3
	maxResponseSize   = 64 << 20
)

type authMode int

const (
	authNone authMode = iota
	authDevice
	authBearer
)

// Client talks to one key server on behalf of one SDK instance.
type Client struct {
	base       string
	appID      string
	http       *http.Client
	creds      CredentialsFunc
	maxRetries uint64
	newBackOff func() backoff.BackOff
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithCredentials sets the source of device credentials.
func WithCredentials(f CredentialsFunc) Option { return func(c *Client) { c.creds = f } }

// WithMaxRetries bounds retries of transient failures. Zero disables retries.
func WithMaxRetries(n uint64) Option { return func(c *Client) { c.maxRetries = n } }

// WithBackOff replaces the exponential backoff policy.
func WithBackOff(f func() backoff.BackOff) Option { return func(c *Client) { c.newBackOff = f } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

// WithAppID sets the application ID sent with every request.
func WithAppID(id string) Option { return func(c *Client) { c.appID = id } }

// NewHTTP returns a client for the key server at base.
func NewHTTP(base string, opts ...Option) *Client {
	c := &Client{
		base:       strings.TrimRight(base, "/") + APIPrefix,
		http:       http.DefaultClient,
		creds:      func() (Credentials, bool) { return Credentials{}, false },
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the server URL the client was built with.
func (c *Client) BaseURL() string { return strings.TrimSuffix(c.base, APIPrefix) }

type call struct {
	method string
	path   string
	query  string
	in     any
	out    any
	auth   authMode
	bearer string
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, call{method: http.MethodPost, path: path, in: in, out: out, auth: authDevice})
}

func (c *Client) put(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, call{method: http.MethodPut, path: path, in: in, out: out, auth: authDevice})
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, call{method: http.MethodGet, path: path, out: out, auth: authDevice})
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body []byte
	if cl.in != nil {
		b, err := json.Marshal(cl.in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = b
	}

	var creds Credentials
	if cl.auth == authDevice {
		var ok bool
		if creds, ok = c.creds(); !ok {
			return errors.Errorf("%s %s: no device credentials", cl.method, cl.path)
		}
	}

	attempt := func() error {
		url := c.base + cl.path
		if cl.query != "" {
			url += "?" + cl.query
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if c.appID != "" {
			req.Header.Set(HeaderAppID, c.appID)
		}
		switch cl.auth {
		case authDevice:
			SignRequest(req, creds, body, c.now())
		case authBearer:
			req.Header.Set("Authorization", "Bearer "+cl.bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			apiErr := decodeError(resp)
			if apiErr.Temporary() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if cl.out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(cl.out); err != nil {
			return backoff.Permanent(errors.Wrapf(err, "decode %s %s", cl.method, cl.path))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Str("method", cl.method).Str("path", cl.path).
			Dur("wait", wait).Msg("retrying key server request")
	}
	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return errors.Wrapf(err, "%s %s", cl.method, cl.path)
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == "" {
		apiErr = &APIError{Code: codeForStatus(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
	}
	apiErr.Status = resp.StatusCode
	if apiErr.ID == "" {
		apiErr.ID = resp.Header.Get("X-Request-Id")
	}
	return apiErr
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return CodeBadRequest
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// NewRequestID returns an identifier for correlating a request in logs.
func NewRequestID() string { return uuid.NewString() }
