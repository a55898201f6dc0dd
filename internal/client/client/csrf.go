package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	flightInit    = "csrf:init"
	flightRefresh = "csrf:refresh"

	defaultCSRFFetchTimeout = 10 * time.Second
)

// TokenFetcher retrieves a fresh CSRF token from the backend.
type TokenFetcher func(ctx context.Context) (string, error)

// CSRFSession owns the CSRF token lifecycle:
//
//	UNSET -> FETCHING -> SET      on success
//	FETCHING -> UNSET             on failure
//	SET -> FETCHING               only via Refresh
//
// Concurrent Init calls share one in-flight fetch. The in-flight handle is
// released when the fetch completes, so a failed fetch can be retried.
type CSRFSession struct {
	mu    sync.RWMutex
	token string

	group   singleflight.Group
	fetch   TokenFetcher
	timeout time.Duration
}

func NewCSRFSession(fetch TokenFetcher) *CSRFSession {
	return &CSRFSession{fetch: fetch, timeout: defaultCSRFFetchTimeout}
}

// Token returns the held token or "".
func (s *CSRFSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Init returns the held token, fetching one first if none is held.
func (s *CSRFSession) Init(ctx context.Context) (string, error) {
	if t := s.Token(); t != "" {
		return t, nil
	}
	return s.load(ctx, flightInit, false)
}

// Refresh fetches a new token even when one is held. Used after the backend
// rejects the current token.
func (s *CSRFSession) Refresh(ctx context.Context) (string, error) {
	return s.load(ctx, flightRefresh, true)
}

// Invalidate drops the held token.
func (s *CSRFSession) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func (s *CSRFSession) load(ctx context.Context, key string, force bool) (string, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		if !force {
			// a flight that finished between Token() and DoChan already set it
			if t := s.Token(); t != "" {
				return t, nil
			}
		}

		// The fetch is shared; one caller giving up must not cancel it for the rest.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		token, err := s.fetch(fctx)
		if err == nil && token == "" {
			err = ErrCSRFUnavailable
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.token = ""
			return "", err
		}
		s.token = token
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
