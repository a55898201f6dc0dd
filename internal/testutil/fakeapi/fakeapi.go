// Package fakeapi is an in-process stand-in for the SideQuest backend, used
// by tests that exercise the client end to end over real HTTP.
//
// It enforces the CSRF contract (token from GET /api/auth/csrf required on
// every mutating request, 403 otherwise), keeps a session cookie, and serves
// a small seeded hunt. Tests tweak behaviour through exported fields while
// holding no locks; use the helper methods when the server is live.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/go-chi/chi/v5"
)

const (
	sessionCookie = "sid"
	csrfCookie    = "_csrf"
	csrfHeader    = "X-CSRF-Token"
)

// Request is a recorded inbound call.
type Request struct {
	Method    string
	Path      string
	CSRFToken string
	HasCookie bool
	Body      []byte
}

// Event is pushed to connected /api/events streams.
type Event struct {
	Name string
	Data string
}

type Server struct {
	*httptest.Server

	mu sync.Mutex

	token     string
	csrfHits  int
	requests  []Request
	forbidden int

	// CSRFGate, when set, blocks GET /auth/csrf until it is closed.
	CSRFGate chan struct{}
	// CSRFStatus, when non-zero, makes GET /auth/csrf fail with that status.
	CSRFStatus int
	// BindCSRFCookie issues the token as a _csrf cookie too and requires the
	// header to match that cookie, like a double-submit backend.
	BindCSRFCookie bool

	// EnvelopeCheckpoints wraps checkpoint responses as {checkpoint: {...}}.
	EnvelopeCheckpoints bool
	// RequireMembership rejects attempts without a userHuntId.
	RequireMembership bool
	// RequireLogin rejects POST /hunts/:ref/join without a logged in user.
	RequireLogin bool

	User     *models.User
	loggedIn bool

	Hunts       map[int64]*models.Hunt
	JoinCodes   map[string]int64
	Leaderboard map[int64][]map[string]any
	Badges      []models.Badge

	nextUserHuntID int64
	attempts       map[int64]int

	events chan Event
}

// New starts a fake backend seeded with hunt 42 ("tutorial", join code
// TUTORIAL) holding checkpoints 101 and 102.
func New() *Server {
	s := &Server{
		User:           &models.User{ID: 7, Username: "ann", Email: "ann@example.com"},
		Hunts:          map[int64]*models.Hunt{},
		JoinCodes:      map[string]int64{"TUTORIAL": 42},
		Leaderboard:    map[int64][]map[string]any{},
		nextUserHuntID: 500,
		attempts:       map[int64]int{},
		events:         make(chan Event, 16),
	}
	s.Hunts[42] = &models.Hunt{
		ID: 42, Slug: "tutorial", Title: "SideQuest Tutorial", CreatorID: 7, IsPublished: true,
		Checkpoints: []models.Checkpoint{
			{ID: 102, HuntID: 42, Order: 2, Title: "Second", Riddle: "What is 2+2?", Answer: "four", Lat: 40.7138, Lng: -74.0060, Tolerance: 25},
			{ID: 101, HuntID: 42, Order: 1, Title: "Start", Riddle: "Type ready", Answer: "ready", Lat: 40.7128, Lng: -74.0060, Tolerance: 25},
		},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the API root the client should be configured with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/csrf", s.handleCSRF)
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.requireCSRF)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/signup", s.handleLogin)
			r.Post("/auth/google", s.handleLogin)
			r.Post("/auth/auth0", s.handleLogin)
			r.Post("/auth/logout", s.handleLogout)
			r.Put("/auth/profile", s.handleProfile)

			r.Post("/hunts", s.handleCreateHunt)
			r.Get("/hunts/creator/{id}", s.handleCreatorHunts)
			r.Post("/hunts/join", s.handleJoinByCode)
			r.Get("/hunts/slug/{slug}", s.handleGetHuntBySlug)
			r.Get("/hunts/{ref}", s.handleGetHunt)
			r.Delete("/hunts/{ref}", s.handleDeleteHunt)
			r.Patch("/hunts/{ref}/publish", s.handlePublish)
			r.Post("/hunts/{ref}/join", s.handleJoinHunt)

			r.Get("/users/{id}/hunts/joined", s.handleJoined)
			r.Get("/users/{id}/badges", s.handleBadges)
			r.Get("/leaderboard/{ref}", s.handleLeaderboard)

			r.Get("/play/checkpoints/{id}", s.handleCheckpoint)
			r.Post("/play/checkpoints/{id}/attempt", s.handleAttempt)
			r.Post("/play/checkpoints/{id}/anchor", s.handleAnchor)
		})
	})
	return r
}

// ---- inspection helpers ----

func (s *Server) CSRFHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfHits
}

func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Requests returns a copy of the recorded calls, optionally filtered by path suffix.
func (s *Server) Requests(pathSuffix string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		if pathSuffix == "" || strings.HasSuffix(r.Path, pathSuffix) {
			out = append(out, r)
		}
	}
	return out
}

// ForbidNext rejects the next n mutating requests with 403. A request that
// carried the valid token also rotates it, as if the token had expired.
func (s *Server) ForbidNext(n int) {
	s.mu.Lock()
	s.forbidden = n
	s.mu.Unlock()
}

// Configure mutates the exported knobs while the server is live.
func (s *Server) Configure(fn func(*Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// RotateToken invalidates the issued token without telling the client.
func (s *Server) RotateToken() {
	s.mu.Lock()
	s.token = "rotated-" + s.token
	s.mu.Unlock()
}

// Publish pushes an event to the SSE stream.
func (s *Server) Publish(name, data string) {
	s.events <- Event{Name: name, Data: data}
}

func (s *Server) Hunt(id int64) *models.Hunt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Hunts[id]
}

// ---- middleware ----

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		_, err := r.Cookie(sessionCookie)
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			CSRFToken: r.Header.Get(csrfHeader),
			HasCookie: err == nil,
			Body:      body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(csrfHeader)
		cookie, cookieErr := r.Cookie(csrfCookie)

		s.mu.Lock()
		ok := s.token != "" && header == s.token
		if ok && s.BindCSRFCookie {
			ok = cookieErr == nil && cookie.Value == header
		}
		if s.forbidden > 0 {
			s.forbidden--
			if ok {
				s.token = "expired-" + s.token
			}
			ok = false
		}
		s.mu.Unlock()

		if !ok {
			writeError(w, http.StatusForbidden, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- handlers ----

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.CSRFGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	s.csrfHits++
	status := s.CSRFStatus
	if status == 0 {
		s.token = fmt.Sprintf("tok-%d", s.csrfHits)
	}
	token := s.token
	bind := s.BindCSRFCookie
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, "csrf unavailable")
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "session-1", Path: "/"})
	if bind {
		http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: token, Path: "/"})
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loggedIn {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": s.User})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	if pw, ok := body["password"].(string); ok && strings.HasPrefix(pw, "wrong") {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.mu.Lock()
	s.loggedIn = true
	user := s.User
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.loggedIn = false
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var body models.User
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	if body.Username != "" {
		s.User.Username = body.Username
	}
	user := *s.User
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleCreateHunt(w http.ResponseWriter, r *http.Request) {
	var draft models.HuntDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	id := int64(len(s.Hunts) + 100)
	h := &models.Hunt{ID: id, Title: draft.Title, Description: draft.Description, Visibility: draft.Visibility, CreatorID: s.User.ID}
	for i, c := range draft.Checkpoints {
		h.Checkpoints = append(h.Checkpoints, models.Checkpoint{
			ID: id*10 + int64(i), HuntID: id, Order: c.Order, Title: c.Title, Riddle: c.Riddle,
			Answer: c.Answer, Lat: c.Lat, Lng: c.Lng, Tolerance: c.Tolerance,
		})
	}
	s.Hunts[id] = h
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleCreatorHunts(w http.ResponseWriter, r *http.Request) {
	creator, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	s.mu.Lock()
	var list []models.Hunt
	for _, h := range s.Hunts {
		if h.CreatorID == creator {
			list = append(list, *h)
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"rows": list})
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JoinCode string `json:"joinCode"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	id, ok := s.JoinCodes[body.JoinCode]
	var slug string
	if h := s.Hunts[id]; h != nil {
		slug = h.Slug
	}
	s.nextUserHuntID++
	uh := s.nextUserHuntID
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Invalid join code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"huntId": id, "slug": slug, "userHuntId": uh})
}

func (s *Server) findHunt(ref string) *models.Hunt {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.Hunts[id]
	}
	for _, h := range s.Hunts {
		if h.Slug == ref {
			return h
		}
	}
	return nil
}

func (s *Server) handleGetHunt(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	s.mu.Lock()
	h := s.findHunt(ref)
	s.mu.Unlock()
	if h == nil {
		writeError(w, http.StatusNotFound, "Hunt not found")
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleGetHuntBySlug(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.findHunt(chi.URLParam(r, "slug"))
	s.mu.Unlock()
	if h == nil {
		writeError(w, http.StatusNotFound, "Hunt not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hunt": h})
}

func (s *Server) handleDeleteHunt(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.findHunt(chi.URLParam(r, "ref"))
	if h != nil {
		delete(s.Hunts, h.ID)
	}
	s.mu.Unlock()
	if h == nil {
		writeError(w, http.StatusNotFound, "Hunt not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.findHunt(chi.URLParam(r, "ref"))
	if h != nil {
		h.IsPublished = !h.IsPublished
	}
	var out models.Hunt
	if h != nil {
		out = *h
	}
	s.mu.Unlock()
	if h == nil {
		writeError(w, http.StatusNotFound, "Hunt not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJoinHunt(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.findHunt(chi.URLParam(r, "ref"))
	needLogin := s.RequireLogin && !s.loggedIn
	s.nextUserHuntID++
	uh := s.nextUserHuntID
	var first int64
	if h != nil {
		if c, ok := h.FirstCheckpoint(); ok {
			first = c.ID
		}
	}
	s.mu.Unlock()

	switch {
	case needLogin:
		writeError(w, http.StatusUnauthorized, "Login required")
	case h == nil:
		writeError(w, http.StatusNotFound, "Hunt not found")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"userHuntId": uh, "firstCheckpointId": first})
	}
}

func (s *Server) handleJoined(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{
		{"id": 42, "title": "SideQuest Tutorial", "userHuntId": 501, "completedAt": "2025-05-01T10:00:00Z"},
		{"id": 43, "title": "Old Town", "userHuntId": 502},
	})
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	badges := s.Badges
	s.mu.Unlock()
	if badges == nil {
		badges = []models.Badge{}
	}
	writeJSON(w, http.StatusOK, badges)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "ref"), 10, 64)
	s.mu.Lock()
	rows := s.Leaderboard[id]
	s.mu.Unlock()
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// checkpoint returns a copy of the checkpoint and its hunt.
func (s *Server) checkpoint(id int64) (models.Checkpoint, *models.Hunt, bool) {
	for _, h := range s.Hunts {
		for _, c := range h.Checkpoints {
			if c.ID == id {
				return c, h, true
			}
		}
	}
	return models.Checkpoint{}, nil, false
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.mu.Lock()
	c, _, ok := s.checkpoint(id)
	envelope := s.EnvelopeCheckpoints
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Checkpoint not found")
		return
	}
	c.Answer = ""
	if envelope {
		writeJSON(w, http.StatusOK, map[string]any{"checkpoint": c})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req models.AttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, h, ok := s.checkpoint(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Checkpoint not found")
		return
	}
	if s.RequireMembership && req.UserHuntID == nil {
		writeError(w, http.StatusConflict, "You must join this hunt before attempting checkpoints.")
		return
	}

	s.attempts[id]++
	resp := map[string]any{
		"wasCorrect":        strings.EqualFold(strings.TrimSpace(req.Answer), c.Answer),
		"attemptsUsed":      s.attempts[id],
		"attemptsRemaining": 3 - s.attempts[id],
	}
	if resp["wasCorrect"].(bool) {
		if next, ok := h.NextCheckpoint(c.Order); ok {
			resp["nextCheckpointId"] = next.ID
		} else {
			resp["finished"] = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnchor(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req models.AnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.Hunts {
		for i := range h.Checkpoints {
			if h.Checkpoints[i].ID == id {
				h.Checkpoints[i].Lat = req.Lat
				h.Checkpoints[i].Lng = req.Lng
				c := h.Checkpoints[i]
				c.Answer = ""
				writeJSON(w, http.StatusOK, map[string]any{"checkpoint": c})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "Checkpoint not found")
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-s.events:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
