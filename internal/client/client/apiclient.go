package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/logging"
	"golang.org/x/net/publicsuffix"
)

const csrfPath = "/auth/csrf"

// Options configures an APIClient.
type Options struct {
	// BaseURL is the backend API root, e.g. "https://sidequest.example/api".
	BaseURL string
	// Timeout bounds a whole call, replay included. Zero leaves the
	// transport defaults in charge.
	Timeout time.Duration
	// Transport is the underlying round tripper; http.DefaultTransport if nil.
	Transport http.RoundTripper
	// Jar holds session cookies; a fresh in-memory jar if nil.
	Jar    http.CookieJar
	Logger logging.Logger
}

// APIClient is the single shared channel to the SideQuest backend.
type APIClient struct {
	baseURL *url.URL
	http    *http.Client
	csrf    *CSRFSession
	logger  logging.Logger
}

func NewAPIClient(opts Options) (*APIClient, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	c := &APIClient{baseURL: base, logger: logger}
	c.csrf = NewCSRFSession(c.fetchCSRFToken)
	c.http = &http.Client{
		Jar:       jar,
		Timeout:   opts.Timeout,
		Transport: newCSRFTransport(opts.Transport, c.csrf, jar, logger),
	}
	return c, nil
}

// CSRF exposes the session's token state.
func (c *APIClient) CSRF() *CSRFSession {
	return c.csrf
}

// InitCSRF makes sure a CSRF token is held. See CSRFSession.Init.
func (c *APIClient) InitCSRF(ctx context.Context) (string, error) {
	return c.csrf.Init(ctx)
}

// HTTPClient returns the credentialed client. Requests made through it get
// the same CSRF handling as APIClient calls.
func (c *APIClient) HTTPClient() *http.Client {
	return c.http
}

// URL resolves an API path such as "/hunts/42" against the base URL.
func (c *APIClient) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *APIClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *APIClient) fetchCSRFToken(ctx context.Context) (string, error) {
	// The token endpoint itself is never replayed.
	ctx = withCSRFAttempt(ctx, maxCSRFReplays)

	var resp struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.do(ctx, http.MethodGet, csrfPath, nil, nil, &resp); err != nil {
		c.logger.Error(ctx, "failed to init csrf token", "error", err)
		return "", err
	}
	return resp.CSRFToken, nil
}

// do sends one JSON request and decodes a 2xx body into out.
func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return nil
}

// unwrap returns the object stored under key when raw is an envelope like
// {"checkpoint": {...}}, and raw itself otherwise.
func unwrap(raw json.RawMessage, key string) json.RawMessage {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	inner, ok := env[key]
	if !ok {
		return raw
	}
	trimmed := bytes.TrimSpace(inner)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	return inner
}

// decodeEnveloped decodes raw into out, accepting both the flat and the
// {key: {...}} shapes.
func decodeEnveloped(raw json.RawMessage, key string, out any) error {
	if err := json.Unmarshal(unwrap(raw, key), out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return nil
}

// decodeList accepts a bare array or an object carrying the array under key.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
		}
		return list, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	inner, ok := env[key]
	if !ok {
		return []T{}, nil
	}
	var list []T
	if err := json.Unmarshal(inner, &list); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// isNotFoundOrMethod reports whether a fallback endpoint is worth trying.
func isNotFoundOrMethod(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	code := StatusCode(err)
	return code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented
}
