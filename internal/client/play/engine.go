package play

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/geo"
	"github.com/dmitrijs2005/sidequest/internal/client/location"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/client/playstate"
	"github.com/dmitrijs2005/sidequest/internal/logging"
)

const (
	DefaultFeedbackDelay = 900 * time.Millisecond
	DefaultRedirectDelay = 1500 * time.Millisecond
)

// API is the part of the backend the engine talks to.
type API interface {
	InitCSRF(ctx context.Context) (string, error)
	Checkpoint(ctx context.Context, id int64) (*models.Checkpoint, error)
	JoinHunt(ctx context.Context, ref string) (*models.JoinResult, error)
	SubmitAttempt(ctx context.Context, checkpointID int64, req models.AttemptRequest) (*models.AttemptResult, error)
	Anchor(ctx context.Context, checkpointID int64, req models.AnchorRequest) (*models.Checkpoint, error)
}

// Session is the persisted play state the engine reads and updates.
type Session interface {
	UserHuntFor(ctx context.Context, ref string) (*int64, error)
	RecordJoin(ctx context.Context, j playstate.Join) error
	SetLastHunt(ctx context.Context, refs ...string) error
}

// Tracker supplies location fixes. *location.Tracker implements it.
type Tracker interface {
	Start(ctx context.Context) error
	Stop()
	Current() (location.Fix, bool)
	Err() error
}

// Navigator is told whenever the engine moves the player to another route.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// AfterFunc schedules f after d and returns a func that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type Option func(*Engine)

func WithFeedbackDelay(d time.Duration) Option { return func(e *Engine) { e.feedbackDelay = d } }
func WithRedirectDelay(d time.Duration) Option { return func(e *Engine) { e.redirectDelay = d } }
func WithNavigator(n Navigator) Option         { return func(e *Engine) { e.nav = n } }
func WithLogger(l logging.Logger) Option       { return func(e *Engine) { e.logger = l } }
func WithAfterFunc(f AfterFunc) Option         { return func(e *Engine) { e.after = f } }

// WithListener registers fn to receive a Snapshot after every state change.
// fn runs without engine locks held and may call back into the engine.
func WithListener(fn func(Snapshot)) Option { return func(e *Engine) { e.listener = fn } }

type Engine struct {
	api     API
	session Session
	tracker Tracker

	nav           Navigator
	logger        logging.Logger
	after         AfterFunc
	listener      func(Snapshot)
	feedbackDelay time.Duration
	redirectDelay time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	visit   uint64
	timers  []func() bool
	started bool
	// joinTried holds hunts an auto-join was already attempted for.
	joinTried map[string]bool

	phase      Phase
	huntRef    string
	cpID       int64
	cp         *models.Checkpoint
	answer     string
	busy       bool
	userHuntID *int64
	loadErr    string
	errMsg     string
	result     *models.AttemptResult
}

func New(api API, session Session, tracker Tracker, opts ...Option) *Engine {
	e := &Engine{
		api:           api,
		session:       session,
		tracker:       tracker,
		nav:           NavigatorFunc(func(string) {}),
		logger:        logging.Discard(),
		after:         timeAfterFunc,
		feedbackDelay: DefaultFeedbackDelay,
		redirectDelay: DefaultRedirectDelay,
		phase:         PhaseIdle,
		joinTried:     map[string]bool{},
	}
	for _, o := range opts {
		o(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Open starts a visit to checkpointID of the hunt huntRef. Location tracking
// starts on the first Open and keeps running across visits. The checkpoint
// is loaded before Open returns; a load failure is returned and also kept in
// the snapshot, and the player may still submit.
func (e *Engine) Open(ctx context.Context, huntRef string, checkpointID int64) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.stopTimersLocked()
	e.visit++
	visit := e.visit
	e.huntRef = huntRef
	e.cpID = checkpointID
	e.cp = nil
	e.answer = ""
	e.busy = false
	e.userHuntID = nil
	e.loadErr, e.errMsg, e.result = "", "", nil
	e.phase = PhaseLoading
	startTracker := !e.started
	e.started = true
	e.mu.Unlock()

	e.logger.Debug(ctx, "opening checkpoint", "hunt", huntRef, "checkpoint", checkpointID)
	e.emit()

	if startTracker {
		// location failures are non-fatal and show up in the snapshot
		_ = e.tracker.Start(e.ctx)
	}

	if huntRef != "" {
		if err := e.session.SetLastHunt(ctx, huntRef); err != nil {
			e.logger.Warn(ctx, "failed to remember last hunt", "error", err)
		}
		uh, err := e.session.UserHuntFor(ctx, huntRef)
		if err != nil {
			e.logger.Warn(ctx, "failed to read play session", "error", err)
		}
		e.mu.Lock()
		e.userHuntID = uh
		join := uh == nil && !e.joinTried[huntRef]
		if join {
			e.joinTried[huntRef] = true
		}
		e.mu.Unlock()
		if join {
			go e.autoJoin(huntRef)
		}
	}

	return e.load(ctx, visit, checkpointID)
}

// autoJoin joins the parent hunt when the player arrived without a
// membership. Every failure is swallowed; the backend decides later whether
// an unjoined attempt is acceptable.
func (e *Engine) autoJoin(huntRef string) {
	ctx := e.ctx
	log := e.logger.With("hunt", huntRef)

	if _, err := e.api.InitCSRF(ctx); err != nil {
		log.Warn(ctx, "auto-join skipped, csrf unavailable", "error", err)
		return
	}
	res, err := e.api.JoinHunt(ctx, huntRef)
	if err != nil {
		log.Warn(ctx, "auto-join failed", "error", err)
		return
	}

	status := models.JoinedAsGuest
	if res.UserHuntID != nil {
		status = models.JoinedAsUser
	}
	if err := e.session.RecordJoin(ctx, playstate.Join{Refs: []string{huntRef}, Status: status, UserHuntID: res.UserHuntID}); err != nil {
		log.Warn(ctx, "failed to record auto-join", "error", err)
	}

	e.mu.Lock()
	if e.closed || e.huntRef != huntRef {
		e.mu.Unlock()
		return
	}
	if e.userHuntID == nil {
		e.userHuntID = res.UserHuntID
	}
	e.mu.Unlock()

	log.Info(ctx, "auto-joined hunt")
	e.emit()
}

func (e *Engine) load(ctx context.Context, visit uint64, id int64) error {
	rctx, cancel := e.requestContext(ctx)
	defer cancel()

	cp, err := e.api.Checkpoint(rctx, id)

	e.mu.Lock()
	if e.closed || e.visit != visit {
		e.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		e.loadErr = client.Message(err, MsgLoadFailed)
	} else {
		e.cp = cp
	}
	e.phase = PhaseAwaiting
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn(ctx, "failed to load checkpoint", "checkpoint", id, "error", err)
	}
	e.emit()
	return err
}

// SetAnswer replaces the answer being typed.
func (e *Engine) SetAnswer(answer string) {
	e.mu.Lock()
	e.answer = answer
	e.mu.Unlock()
}

// RetryLocation tears down the location subscription and starts a new one.
func (e *Engine) RetryLocation() error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.busy:
		e.mu.Unlock()
		return ErrBusy
	}
	e.started = true
	e.mu.Unlock()

	err := e.tracker.Start(e.ctx)
	e.emit()
	return err
}

// Submit sends the current answer with the current fix. It is rejected
// locally, without any request, when the answer is blank or there is no fix.
func (e *Engine) Submit(ctx context.Context) (*models.AttemptResult, error) {
	e.mu.Lock()
	if err := e.submittableLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	answer := strings.TrimSpace(e.answer)
	if answer == "" {
		e.errMsg = MsgEmptyAnswer
		e.mu.Unlock()
		e.emit()
		return nil, ErrEmptyAnswer
	}
	fix, ok := e.tracker.Current()
	if !ok {
		e.errMsg = MsgNoLocationFix
		e.mu.Unlock()
		e.emit()
		return nil, ErrNoLocationFix
	}

	e.busy = true
	e.phase = PhaseSubmitting
	e.errMsg, e.result = "", nil
	visit, cpID, huntRef, uh := e.visit, e.cpID, e.huntRef, e.userHuntID
	e.mu.Unlock()
	e.emit()

	if uh == nil && huntRef != "" {
		// auto-join may have finished since Open
		uh, _ = e.session.UserHuntFor(ctx, huntRef)
	}

	rctx, cancel := e.requestContext(ctx)
	defer cancel()

	res, err := e.attempt(rctx, cpID, models.AttemptRequest{
		Answer:     answer,
		Lat:        geo.Round6(fix.Lat),
		Lng:        geo.Round6(fix.Lng),
		UserHuntID: uh,
	})

	e.mu.Lock()
	if e.closed || e.visit != visit {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.busy = false

	if err != nil {
		e.phase = PhaseAwaiting
		e.errMsg = client.Message(err, MsgSubmitFailed)
		redirect := isMembershipError(e.errMsg)
		if redirect {
			e.scheduleLocked(e.redirectDelay, func() { e.redirect(visit, huntRef) })
		}
		e.mu.Unlock()

		e.logger.Warn(ctx, "attempt failed", "checkpoint", cpID, "error", err, "redirect", redirect)
		e.emit()
		return nil, err
	}

	e.result = res
	if !res.Correct {
		e.phase = PhaseAwaiting
		e.mu.Unlock()
		e.emit()
		return res, nil
	}

	e.answer = ""
	e.phase = PhaseAdvancing
	e.scheduleLocked(e.feedbackDelay, func() { e.advance(visit, huntRef, res) })
	e.mu.Unlock()

	e.logger.Info(ctx, "correct answer", "checkpoint", cpID, "complete", res.Complete())
	e.emit()
	return res, nil
}

func (e *Engine) submittableLocked() error {
	switch {
	case e.closed:
		return ErrClosed
	case e.busy, e.phase == PhaseAdvancing, e.phase == PhaseLoading:
		return ErrBusy
	case e.phase == PhaseComplete:
		return ErrHuntComplete
	case e.cpID == 0:
		return ErrNoCheckpoint
	}
	return nil
}

func (e *Engine) attempt(ctx context.Context, cpID int64, req models.AttemptRequest) (*models.AttemptResult, error) {
	if _, err := e.api.InitCSRF(ctx); err != nil {
		return nil, err
	}
	return e.api.SubmitAttempt(ctx, cpID, req)
}

// advance runs after the feedback delay that follows a correct answer.
func (e *Engine) advance(visit uint64, huntRef string, res *models.AttemptResult) {
	e.mu.Lock()
	if e.closed || e.visit != visit {
		e.mu.Unlock()
		return
	}

	if res.Complete() {
		e.phase = PhaseComplete
		e.mu.Unlock()
		e.logger.Info(e.ctx, "hunt complete", "hunt", huntRef)
		e.emit()
		return
	}

	next := *res.NextCheckpointID
	e.visit++
	visit = e.visit
	e.cpID = next
	e.cp = nil
	e.loadErr, e.errMsg, e.result = "", "", nil
	e.phase = PhaseLoading
	e.mu.Unlock()

	e.nav.Navigate(PlayPath(huntRef, next))
	e.emit()
	_ = e.load(e.ctx, visit, next)
}

// redirect leaves the rejected checkpoint for the hunt's landing route. The
// visit ends there: nothing more can be submitted until a checkpoint is
// opened again. The rejection message stays in the snapshot.
func (e *Engine) redirect(visit uint64, huntRef string) {
	e.mu.Lock()
	if e.closed || e.visit != visit {
		e.mu.Unlock()
		return
	}
	e.visit++
	e.phase = PhaseIdle
	e.cpID = 0
	e.cp = nil
	e.answer = ""
	e.result = nil
	e.mu.Unlock()

	e.logger.Debug(e.ctx, "left checkpoint for hunt page", "hunt", huntRef)
	e.nav.Navigate(HuntPath(huntRef))
	e.emit()
}

// Anchor moves the open checkpoint's target to the current fix. It is meant
// for tutorial checkpoints so that onboarding works from anywhere.
func (e *Engine) Anchor(ctx context.Context, force, forceNeighbors bool) (*models.Checkpoint, error) {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return nil, ErrClosed
	case e.cpID == 0:
		e.mu.Unlock()
		return nil, ErrNoCheckpoint
	}
	visit, cpID, uh := e.visit, e.cpID, e.userHuntID
	e.mu.Unlock()

	fix, ok := e.tracker.Current()
	if !ok {
		return nil, ErrNoLocationFix
	}

	rctx, cancel := e.requestContext(ctx)
	defer cancel()

	if _, err := e.api.InitCSRF(rctx); err != nil {
		return nil, err
	}
	cp, err := e.api.Anchor(rctx, cpID, models.AnchorRequest{
		Lat:            geo.Round6(fix.Lat),
		Lng:            geo.Round6(fix.Lng),
		UserHuntID:     uh,
		Force:          force,
		ForceNeighbors: forceNeighbors,
	})

	e.mu.Lock()
	if e.closed || e.visit != visit {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if err != nil {
		e.errMsg = client.Message(err, MsgAnchorFailed)
	} else if e.cp != nil {
		moved := *e.cp
		moved.Lat, moved.Lng = cp.Lat, cp.Lng
		e.cp = &moved
	} else {
		e.cp = cp
	}
	e.mu.Unlock()

	e.emit()
	return cp, err
}

// Proximity reports the distance from the last fix to the checkpoint
// target. ok is false until both are known.
func (e *Engine) Proximity() (Proximity, bool) {
	e.mu.Lock()
	cp := e.cp
	e.mu.Unlock()

	fix, ok := e.tracker.Current()
	if cp == nil || !ok {
		return Proximity{}, false
	}
	return proximity(fix.Coordinate, cp), true
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	s := Snapshot{
		Phase:        e.phase,
		HuntRef:      e.huntRef,
		CheckpointID: e.cpID,
		Answer:       e.answer,
		Busy:         e.busy,
		LoadErr:      e.loadErr,
		Error:        e.errMsg,
	}
	if e.cp != nil {
		cp := *e.cp
		s.Checkpoint = &cp
	}
	if e.result != nil {
		r := *e.result
		s.Result = &r
	}
	if e.userHuntID != nil {
		id := *e.userHuntID
		s.UserHuntID = &id
	}
	e.mu.Unlock()

	if fix, ok := e.tracker.Current(); ok {
		s.Fix = &fix
		if s.Checkpoint != nil {
			p := proximity(fix.Coordinate, s.Checkpoint)
			s.Proximity = &p
		}
	}
	s.LocationErr = LocationMessage(e.tracker.Err())
	return s
}

// Close stops location tracking, cancels in-flight requests and pending
// timers. Results arriving afterwards are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.phase = PhaseClosed
	e.stopTimersLocked()
	e.mu.Unlock()

	e.cancel()
	e.tracker.Stop()
}

// requestContext derives a context that also ends when the engine closes.
func (e *Engine) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

func (e *Engine) scheduleLocked(d time.Duration, f func()) {
	e.timers = append(e.timers, e.after(d, f))
}

func (e *Engine) stopTimersLocked() {
	for _, stop := range e.timers {
		stop()
	}
	e.timers = nil
}

func (e *Engine) emit() {
	if e.listener != nil {
		e.listener(e.Snapshot())
	}
}
