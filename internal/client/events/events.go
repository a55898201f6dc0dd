// Package events subscribes to the backend's server-sent event stream
// (GET /api/events) over the shared credentialed client and dispatches
// named events to registered handlers.
package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/sidequest/internal/logging"
)

const (
	streamPath  = "/events"
	defaultName = "message"
	maxLine     = 1 << 20
)

var ErrBadStatus = errors.New("event stream rejected")

// Event is one dispatched server-sent event.
type Event struct {
	Name string
	ID   string
	Data string
	// Payload is Data decoded as JSON, or Data itself when it is not JSON.
	Payload any
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

type Handler func(ctx context.Context, ev Event)

// Source is where the stream lives. *client.APIClient satisfies it.
type Source interface {
	HTTPClient() *http.Client
	URL(path string, query url.Values) string
}

type Option func(*Subscriber)

func WithLogger(l logging.Logger) Option {
	return func(s *Subscriber) { s.logger = l }
}

// WithBackOff replaces the reconnect policy. The factory is called once per
// Run.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *Subscriber) { s.newBackOff = f }
}

// WithConnectHook is called each time the stream is (re)established.
func WithConnectHook(f func()) Option {
	return func(s *Subscriber) { s.onConnect = f }
}

type Subscriber struct {
	http *http.Client
	url  string

	mu       sync.RWMutex
	handlers map[string][]Handler
	any      []Handler

	logger     logging.Logger
	newBackOff func() backoff.BackOff
	onConnect  func()

	lastID string
}

func NewSubscriber(src Source, opts ...Option) *Subscriber {
	// Streams stay open indefinitely, so the whole-call timeout of the shared
	// client must not apply. Jar and transport are shared.
	hc := *src.HTTPClient()
	hc.Timeout = 0

	s := &Subscriber{
		http:       &hc,
		url:        src.URL(streamPath, nil),
		handlers:   map[string][]Handler{},
		logger:     logging.Discard(),
		newBackOff: defaultBackOff,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	return b
}

// On registers h for events named name. Unnamed events are "message".
func (s *Subscriber) On(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = append(s.handlers[name], h)
}

// OnAny registers h for every event.
func (s *Subscriber) OnAny(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.any = append(s.any, h)
}

// Run keeps the stream open until ctx ends, reconnecting with backoff when
// it drops. It always returns ctx.Err().
func (s *Subscriber) Run(ctx context.Context) error {
	b := s.newBackOff()
	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = defaultBackOff().NextBackOff()
		}
		s.logger.Debug(ctx, "event stream dropped", "error", err, "retry_in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// stream runs one connection. connected reports whether the server accepted
// it, which resets the backoff.
func (s *Subscriber) stream(ctx context.Context) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.lastID != "" {
		req.Header.Set("Last-Event-ID", s.lastID)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("%w: status %d", ErrBadStatus, resp.StatusCode)
	}

	s.logger.Debug(ctx, "event stream connected", "url", s.url)
	if s.onConnect != nil {
		s.onConnect()
	}
	return true, s.read(ctx, resp.Body)
}

func (s *Subscriber) read(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)

	var (
		name string
		id   string
		data []string
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				s.dispatch(ctx, newEvent(name, id, data))
			}
			name, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		case "id":
			if !strings.ContainsRune(value, 0) {
				id = value
				s.lastID = value
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func newEvent(name, id string, data []string) Event {
	if name == "" {
		name = defaultName
	}
	ev := Event{Name: name, ID: id, Data: strings.Join(data, "\n")}

	var v any
	if err := json.Unmarshal([]byte(ev.Data), &v); err == nil {
		ev.Payload = v
	} else {
		ev.Payload = ev.Data
	}
	return ev
}

func (s *Subscriber) dispatch(ctx context.Context, ev Event) {
	s.mu.RLock()
	hs := append(append([]Handler(nil), s.handlers[ev.Name]...), s.any...)
	s.mu.RUnlock()

	if len(hs) == 0 {
		s.logger.Debug(ctx, "unhandled event", "event", ev.Name)
		return
	}
	for _, h := range hs {
		h(ctx, ev)
	}
}
