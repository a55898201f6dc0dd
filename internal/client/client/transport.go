package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/dmitrijs2005/sidequest/internal/logging"
	"github.com/google/uuid"
)

const (
	CSRFHeaderName      = "X-CSRF-Token"
	RequestIDHeaderName = "X-Request-ID"

	// maxCSRFReplays is how many times one request may be replayed after a 403.
	maxCSRFReplays = 1

	maxBufferedErrorBody = 1 << 20
)

type csrfAttemptKey struct{}

// withCSRFAttempt records how many CSRF replays the request has used.
func withCSRFAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, csrfAttemptKey{}, n)
}

func csrfAttempt(ctx context.Context) int {
	n, _ := ctx.Value(csrfAttemptKey{}).(int)
	return n
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// csrfTransport decorates mutating requests with the session's CSRF token and
// replays a request once after a 403, with a refreshed token. The replay
// carries the jar's cookies as they are after the refresh, since backends
// may bind the token to a cookie set by the token endpoint.
type csrfTransport struct {
	base    http.RoundTripper
	session *CSRFSession
	jar     http.CookieJar
	logger  logging.Logger
}

func newCSRFTransport(base http.RoundTripper, session *CSRFSession, jar http.CookieJar, logger logging.Logger) *csrfTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &csrfTransport{base: base, session: session, jar: jar, logger: logger}
}

func (t *csrfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempt := csrfAttempt(ctx)

	out := req.Clone(ctx)
	requestID := out.Header.Get(RequestIDHeaderName)
	if requestID == "" {
		requestID = uuid.NewString()
		out.Header.Set(RequestIDHeaderName, requestID)
	}

	out.Header.Del(CSRFHeaderName)
	if isMutating(out.Method) {
		if token := t.session.Token(); token != "" {
			out.Header.Set(CSRFHeaderName, token)
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusForbidden || attempt >= maxCSRFReplays {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// body cannot be rewound, so the request cannot be replayed
		return resp, nil
	}

	// Keep the 403 body around so it can still be surfaced if the refresh fails.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBufferedErrorBody))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	log := t.logger.With("request_id", requestID, "method", req.Method, "path", req.URL.Path)

	if _, err := t.session.Refresh(ctx); err != nil {
		log.Error(ctx, "csrf refresh failed", "error", err)
		return resp, nil
	}

	retry := req.Clone(withCSRFAttempt(ctx, attempt+1))
	retry.Header.Set(RequestIDHeaderName, requestID)
	if t.jar != nil {
		retry.Header.Del("Cookie")
		for _, c := range t.jar.Cookies(retry.URL) {
			retry.AddCookie(c)
		}
	}
	if req.GetBody != nil {
		b, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = b
	}

	log.Warn(ctx, "request rejected with 403, replaying with refreshed csrf token")
	return t.RoundTrip(retry)
}
