package play

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/geo"
	"github.com/dmitrijs2005/sidequest/internal/client/location"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/client/playstate"
	"github.com/stretchr/testify/require"
)

/*************
 * Fake API
 *************/

type fakeAPI struct {
	mu sync.Mutex

	csrfCalls     int
	csrfErr       error
	checkpoints   map[int64]*models.Checkpoint
	checkpointErr error
	loads         []int64

	joinCalls int
	joinRes   *models.JoinResult
	joinErr   error

	attempts   []models.AttemptRequest
	attemptRes []*models.AttemptResult
	attemptErr error
	// attemptGate, when set, blocks SubmitAttempt until closed or ctx ends.
	attemptGate chan struct{}

	anchors   []models.AnchorRequest
	anchorErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		checkpoints: map[int64]*models.Checkpoint{
			101: {ID: 101, HuntID: 42, Order: 1, Title: "Start", Riddle: "Type ready", Lat: 40.7128, Lng: -74.0060, Tolerance: 25},
			102: {ID: 102, HuntID: 42, Order: 2, Title: "Second", Riddle: "2+2", Lat: 40.7138, Lng: -74.0060, Tolerance: 25},
		},
	}
}

func (f *fakeAPI) InitCSRF(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.csrfCalls++
	return "tok", f.csrfErr
}

func (f *fakeAPI) Checkpoint(ctx context.Context, id int64) (*models.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, id)
	if f.checkpointErr != nil {
		return nil, f.checkpointErr
	}
	cp, ok := f.checkpoints[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Message: "Checkpoint not found"}
	}
	c := *cp
	return &c, nil
}

func (f *fakeAPI) JoinHunt(ctx context.Context, ref string) (*models.JoinResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinCalls++
	return f.joinRes, f.joinErr
}

func (f *fakeAPI) SubmitAttempt(ctx context.Context, id int64, req models.AttemptRequest) (*models.AttemptResult, error) {
	f.mu.Lock()
	gate := f.attemptGate
	f.attempts = append(f.attempts, req)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attemptErr != nil {
		return nil, f.attemptErr
	}
	if len(f.attemptRes) == 0 {
		return &models.AttemptResult{}, nil
	}
	res := f.attemptRes[0]
	f.attemptRes = f.attemptRes[1:]
	return res, nil
}

func (f *fakeAPI) Anchor(ctx context.Context, id int64, req models.AnchorRequest) (*models.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anchors = append(f.anchors, req)
	if f.anchorErr != nil {
		return nil, f.anchorErr
	}
	c := *f.checkpoints[id]
	c.Lat, c.Lng = req.Lat, req.Lng
	return &c, nil
}

func (f *fakeAPI) counts() (csrf, attempts, joins int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.csrfCalls, len(f.attempts), f.joinCalls
}

func (f *fakeAPI) lastAttempt() models.AttemptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[len(f.attempts)-1]
}

/*************
 * Fake session
 *************/

type fakeSession struct {
	mu       sync.Mutex
	userHunt *int64
	joins    []playstate.Join
	last     []string
}

func (s *fakeSession) UserHuntFor(ctx context.Context, ref string) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userHunt, nil
}

func (s *fakeSession) RecordJoin(ctx context.Context, j playstate.Join) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins = append(s.joins, j)
	if j.UserHuntID != nil {
		s.userHunt = j.UserHuntID
	}
	return nil
}

func (s *fakeSession) SetLastHunt(ctx context.Context, refs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = refs
	return nil
}

func (s *fakeSession) recordedJoins() []playstate.Join {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]playstate.Join(nil), s.joins...)
}

/*************
 * Fake timers
 *************/

type pendingTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

type fakeTimers struct {
	mu      sync.Mutex
	pending []*pendingTimer
}

func (ft *fakeTimers) after(d time.Duration, f func()) func() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	p := &pendingTimer{d: d, f: f}
	ft.pending = append(ft.pending, p)
	return func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		was := !p.stopped
		p.stopped = true
		return was
	}
}

// fire runs the oldest live timer and returns its delay.
func (ft *fakeTimers) fire(t *testing.T) time.Duration {
	t.Helper()
	ft.mu.Lock()
	var p *pendingTimer
	for len(ft.pending) > 0 {
		p, ft.pending = ft.pending[0], ft.pending[1:]
		if !p.stopped {
			break
		}
		p = nil
	}
	if p != nil {
		p.stopped = true
	}
	ft.mu.Unlock()

	require.NotNil(t, p, "no pending timer")
	p.f()
	return p.d
}

func (ft *fakeTimers) live() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for _, p := range ft.pending {
		if !p.stopped {
			n++
		}
	}
	return n
}

/*************
 * Navigator
 *************/

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNav) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

/*************
 * Harness
 *************/

type harness struct {
	api     *fakeAPI
	session *fakeSession
	gps     *location.Manual
	tracker *location.Tracker
	timers  *fakeTimers
	nav     *recordingNav
	engine  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	uh := int64(501)
	h := &harness{
		api:     newFakeAPI(),
		session: &fakeSession{userHunt: &uh},
		gps:     location.NewManual(),
		timers:  &fakeTimers{},
		nav:     &recordingNav{},
	}
	h.tracker = location.NewTracker(h.gps, location.Options{}, nil)
	h.engine = New(h.api, h.session, h.tracker,
		WithAfterFunc(h.timers.after),
		WithNavigator(h.nav),
	)
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Open(context.Background(), "42", 101))
}

func (h *harness) at(lat, lng float64) {
	h.gps.Set(geo.Coordinate{Lat: lat, Lng: lng}, 5)
}

func ptr[T any](v T) *T { return &v }
