// Package client is the SideQuest session client: the single outbound HTTP
// channel to the hunt backend.
//
// # Overview
//
// The package provides:
//  1. APIClient, a JSON-over-HTTP client that always sends credentials
//     (a cookie jar shared by every request) and resolves paths against the
//     backend's /api base.
//  2. CSRFSession, which owns the anti-forgery token: fetched lazily or at
//     boot from GET /auth/csrf, with concurrent initializations collapsed into
//     one network call.
//  3. csrfTransport, an http.RoundTripper that attaches X-CSRF-Token to
//     mutating requests and, when the backend answers 403, refreshes the token
//     and replays the request exactly once. The replay budget travels in the
//     request context, so independent requests never share it.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) for the
//     client-side storage that stands in for browser localStorage.
//
// # Error Handling
//
// Non-2xx responses become *APIError carrying the backend message verbatim.
// APIError matches the sentinels ErrUnauthorized, ErrForbidden and ErrNotFound
// with errors.Is; transport failures wrap ErrUnavailable. Business rejections
// (wrong answer, bad join code) are not interpreted here.
//
// # Concurrency
//
// APIClient and CSRFSession are safe for concurrent use. All operations accept
// a context.Context and honor cancellation.
package client
