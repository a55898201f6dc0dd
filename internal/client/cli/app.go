package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/config"
	"github.com/dmitrijs2005/sidequest/internal/client/events"
	"github.com/dmitrijs2005/sidequest/internal/client/location"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/client/play"
	"github.com/dmitrijs2005/sidequest/internal/client/playstate"
	"github.com/dmitrijs2005/sidequest/internal/client/services"
	"github.com/dmitrijs2005/sidequest/internal/filex"
	"github.com/dmitrijs2005/sidequest/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger

	api    *client.APIClient
	repos  *client.Repositories
	state  *playstate.Store
	events *events.Subscriber

	authService services.AuthService
	huntService services.HuntService
	dashService services.DashboardService

	gps     *location.Manual
	tracker *location.Tracker
	engine  *play.Engine

	reader *bufio.Reader
	out    io.Writer

	mu   sync.Mutex
	user *models.User
	// shownCP and shownDone keep the listener from repeating itself.
	shownCP   int64
	shownDone bool
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	if err := filex.EnsureParentDir(c.DBPath); err != nil {
		return nil, err
	}
	repos, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	api, err := client.NewAPIClient(client.Options{
		BaseURL: c.APIBase(),
		Timeout: c.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	a := &App{
		config:      c,
		logger:      logger,
		api:         api,
		repos:       repos,
		state:       playstate.New(repos.DB),
		authService: services.NewAuthService(api),
		dashService: services.NewDashboardService(api),
		gps:         location.NewManual(),
		out:         os.Stdout,
	}
	a.huntService = services.NewHuntService(api, a.state)

	a.tracker = location.NewTracker(a.gps, location.Options{
		HighAccuracy: true,
		Timeout:      c.LocationTimeout,
		MaximumAge:   c.LocationMaxAge,
	}, logger.With("component", "location"))

	a.engine = play.New(api, a.state, a.tracker,
		play.WithFeedbackDelay(c.FeedbackDelay),
		play.WithRedirectDelay(c.RedirectDelay),
		play.WithNavigator(play.NavigatorFunc(a.navigate)),
		play.WithListener(a.onSnapshot),
		play.WithLogger(logger.With("component", "play")),
	)

	a.events = events.NewSubscriber(api, events.WithLogger(logger.With("component", "events")))
	a.events.OnAny(a.onEvent)

	return a, nil
}

// Run restores the session, starts the event stream and blocks in the REPL
// until the user exits or in is exhausted.
func (a *App) Run(ctx context.Context, in io.Reader) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printlnFn("Welcome to SideQuest (type 'help' for commands)")
	if u, err := a.authService.Me(ctx); err != nil {
		a.logger.Warn(ctx, "could not restore session", "error", err)
	} else if u != nil {
		a.setUser(u)
		printlnFn("Signed in as", u.DisplayName())
	}

	go func() { _ = a.events.Run(ctx) }()

	a.reader = bufio.NewReader(in)
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) Close() {
	a.engine.Close()
	_ = a.api.Close()
	if err := a.repos.Close(); err != nil {
		a.logger.Warn(context.Background(), "close database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user != nil
}

func (a *App) currentUser() *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

func (a *App) setUser(u *models.User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

func (a *App) getStatus() string {
	var parts []string
	if u := a.currentUser(); u != nil {
		parts = append(parts, u.DisplayName())
	}
	if s := a.engine.Snapshot(); s.CheckpointID != 0 {
		parts = append(parts, fmt.Sprintf("%s#%d", s.HuntRef, s.CheckpointID))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// navigate follows a route change made by the play engine. A hunt route
// means the checkpoint was left, so the hunt screen is shown in its place.
func (a *App) navigate(path string) {
	escaped, ok := strings.CutPrefix(path, "/hunts/")
	if !ok {
		printlnFn("→", path)
		return
	}
	ref, err := url.PathUnescape(escaped)
	if err != nil {
		ref = escaped
	}

	a.mu.Lock()
	a.shownCP, a.shownDone = 0, false
	a.mu.Unlock()

	printlnFn("You need to join this hunt first.")
	ctx, cancel := context.WithTimeout(context.Background(), a.config.RequestTimeout)
	defer cancel()
	if err := a.Hunt(ctx, []string{ref}); err != nil {
		printlnFn("Error: " + errorMessage(err))
		return
	}
	printlnFn(fmt.Sprintf("Sign in and type 'play %s' to join and start.", ref))
}

// onSnapshot announces a newly loaded checkpoint and the end of the hunt.
func (a *App) onSnapshot(s play.Snapshot) {
	a.mu.Lock()
	var announceCP, announceDone bool
	switch {
	case s.Phase == play.PhaseAwaiting && s.Checkpoint != nil && s.Checkpoint.ID != a.shownCP:
		a.shownCP = s.Checkpoint.ID
		a.shownDone = false
		announceCP = true
	case s.Phase == play.PhaseComplete && !a.shownDone:
		a.shownDone = true
		announceDone = true
	}
	a.mu.Unlock()

	switch {
	case announceCP:
		printCheckpoint(s.Checkpoint)
	case announceDone:
		printlnFn("Hunt complete! Congratulations.")
	}
}

func (a *App) onEvent(ctx context.Context, ev events.Event) {
	a.logger.Debug(ctx, "event", "name", ev.Name, "data", ev.Data)
	printlnFn(fmt.Sprintf("[%s] %v", ev.Name, ev.Payload))
}
