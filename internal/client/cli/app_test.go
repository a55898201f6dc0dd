package cli

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/config"
	"github.com/dmitrijs2005/sidequest/internal/client/play"
	"github.com/dmitrijs2005/sidequest/internal/testutil/fakeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *fakeapi.Server) {
	t.Helper()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIURL = srv.BaseURL()
	cfg.DBPath = filepath.Join(t.TempDir(), "cli.db")
	cfg.FeedbackDelay = 5 * time.Millisecond
	cfg.RedirectDelay = 5 * time.Millisecond
	cfg.LocationTimeout = 0

	a, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	a.reader = bufio.NewReader(strings.NewReader(""))
	a.out = io.Discard
	t.Cleanup(a.Close)
	return a, srv
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) (string, error) { return pw, nil }
	t.Cleanup(func() { getPassword = orig })
}

func stubText(t *testing.T, answers ...string) {
	t.Helper()
	orig := getSimpleText
	getSimpleText = func(*bufio.Reader, string, io.Writer) (string, error) {
		if len(answers) == 0 {
			return "", io.EOF
		}
		v := answers[0]
		answers = answers[1:]
		return v, nil
	}
	t.Cleanup(func() { getSimpleText = orig })
}

func TestLoginMeLogout(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t)
	ctx := context.Background()
	stubPassword(t, "secret1")
	stubText(t, "ann")

	require.NoError(t, a.Login(ctx, nil))
	assert.True(t, a.isLoggedIn())
	assert.True(t, out.Contains("Welcome, ann"))
	assert.Equal(t, "(ann)", a.getStatus())

	require.NoError(t, a.Me(ctx, nil))
	assert.True(t, out.Contains("ann (id 7)"))

	require.NoError(t, a.Logout(ctx, nil))
	assert.False(t, a.isLoggedIn())

	require.NoError(t, a.Me(ctx, nil))
	assert.True(t, out.Contains("Not signed in"))
}

func TestLogin_Rejected(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t)
	stubPassword(t, "wrongpass")

	err := a.Login(context.Background(), []string{"ann"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", errorMessage(err))
	assert.False(t, a.isLoggedIn())

	stubPassword(t, "123")
	err = a.Login(context.Background(), []string{"ann"})
	assert.Equal(t, "Password must be at least 6 characters", errorMessage(err))
}

func TestSignup_ValidatesLocally(t *testing.T) {
	captureOutput(t)
	a, srv := newTestApp(t)
	stubText(t, "an", "Ann", "Lee", "ann@example.com")
	stubPassword(t, "secret1")

	err := a.Signup(context.Background(), nil)
	assert.Equal(t, "Username must be 3-20 characters", errorMessage(err))
	assert.Empty(t, srv.Requests("/auth/signup"))
}

func TestJoinAndPlayThroughTutorial(t *testing.T) {
	out := captureOutput(t)
	a, srv := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Join(ctx, []string{"tutorial"}))
	assert.True(t, out.Contains("Joined hunt 42"))

	require.NoError(t, a.Play(ctx, []string{"42"}))
	assert.True(t, out.Contains("Checkpoint 1: Start"))
	assert.Equal(t, "(tutorial#101)", a.getStatus())

	err := a.Submit(ctx, []string{"ready"})
	assert.Equal(t, play.MsgNoLocationFix, errorMessage(err))

	require.NoError(t, a.GPS(ctx, []string{"40.7128", "-74.0060", "5"}))
	assert.True(t, out.Contains("0.0 m from the target"))

	require.NoError(t, a.Submit(ctx, []string{"ready"}))
	assert.True(t, out.Contains("Correct! Loading the next checkpoint..."))

	require.Eventually(t, func() bool {
		s := a.engine.Snapshot()
		return s.CheckpointID == 102 && s.Phase == play.PhaseAwaiting
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, out.Contains("→ /play/tutorial/checkpoints/102"))
	assert.True(t, out.Contains("Checkpoint 2: Second"))

	require.NoError(t, a.Answer(ctx, []string{"five"}))
	require.NoError(t, a.Submit(ctx, nil))
	assert.True(t, out.Contains("Not quite. Try again. 2 attempts left."))

	require.NoError(t, a.GPS(ctx, []string{"40.7138", "-74.0060"}))
	require.NoError(t, a.Submit(ctx, []string{"four"}))
	require.Eventually(t, func() bool {
		return a.engine.Snapshot().Phase == play.PhaseComplete
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return out.Contains("Hunt complete!") }, time.Second, 5*time.Millisecond)

	err = a.Submit(ctx, []string{"four"})
	assert.Equal(t, "You have already completed this hunt.", errorMessage(err))

	for _, r := range srv.Requests("/attempt") {
		assert.Contains(t, string(r.Body), `"userHuntId":`)
		assert.NotEmpty(t, r.CSRFToken)
	}
}

func TestMembershipRejectionShowsHunt(t *testing.T) {
	out := captureOutput(t)
	a, srv := newTestApp(t)
	ctx := context.Background()
	srv.Configure(func(s *fakeapi.Server) {
		s.RequireMembership = true
		s.RequireLogin = true
	})

	require.NoError(t, a.Play(ctx, []string{"42", "101"}))
	require.Eventually(t, func() bool { return len(srv.Requests("/hunts/42/join")) > 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, a.GPS(ctx, []string{"40.7128", "-74.0060"}))

	err := a.Submit(ctx, []string{"ready"})
	assert.Equal(t, play.MsgMembershipNeeded, errorMessage(err))

	require.Eventually(t, func() bool {
		return out.Contains("Sign in and type 'play 42' to join and start.")
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, out.Contains("You need to join this hunt first."))
	assert.True(t, out.Contains("#42 SideQuest Tutorial"))

	s := a.engine.Snapshot()
	assert.Equal(t, play.PhaseIdle, s.Phase)
	assert.Zero(t, s.CheckpointID)
	assert.Empty(t, a.getStatus())

	err = a.Submit(ctx, []string{"ready"})
	assert.ErrorIs(t, err, play.ErrNoCheckpoint)
	assert.Len(t, srv.Requests("/attempt"), 1)
}

func TestPlay_DefaultsToLastHunt(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t)
	ctx := context.Background()

	err := a.Play(ctx, nil)
	assert.Equal(t, "usage: play <hunt> [checkpoint id]", errorMessage(err))

	require.NoError(t, a.Hunt(ctx, []string{"tutorial"}))
	require.NoError(t, a.Play(ctx, nil))
	assert.Equal(t, int64(101), a.engine.Snapshot().CheckpointID)

	err = a.Play(ctx, []string{"tutorial", "abc"})
	assert.Equal(t, "usage: play <hunt> [checkpoint id]", errorMessage(err))
}

func TestPlay_MissingCheckpointStaysOpen(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t)

	require.NoError(t, a.Play(context.Background(), []string{"tutorial", "999"}))
	s := a.engine.Snapshot()
	assert.Equal(t, int64(999), s.CheckpointID)
	assert.Equal(t, "Checkpoint not found", s.LoadErr)
	assert.True(t, out.Contains("! Checkpoint not found"))
}

func TestGPS_ErrorsAndUsage(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Play(ctx, []string{"tutorial", "101"}))

	for _, args := range [][]string{nil, {"1"}, {"north", "east"}, {"91", "0"}} {
		var uerr usageError
		require.ErrorAs(t, a.GPS(ctx, args), &uerr)
	}

	require.NoError(t, a.GPS(ctx, []string{"deny"}))
	assert.True(t, out.Contains("! "+play.MsgLocationDenied))
	assert.Equal(t, play.MsgLocationDenied, a.engine.Snapshot().LocationErr)

	require.NoError(t, a.RetryGPS(ctx, nil))
	assert.Empty(t, a.engine.Snapshot().LocationErr)
	assert.Equal(t, 1, a.gps.Watchers())
}

func TestAnchor(t *testing.T) {
	out := captureOutput(t)
	a, srv := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Play(ctx, []string{"tutorial", "101"}))

	err := a.Anchor(ctx, nil)
	assert.Equal(t, play.MsgNoLocationFix, errorMessage(err))

	require.NoError(t, a.GPS(ctx, []string{"51.5", "-0.12"}))
	require.NoError(t, a.Anchor(ctx, []string{"force"}))
	assert.True(t, out.Contains("Checkpoint 101 moved to"))

	var lat float64
	srv.Configure(func(s *fakeapi.Server) { lat = s.Hunts[42].Checkpoints[1].Lat })
	assert.Equal(t, 51.5, lat)

	var uerr usageError
	require.ErrorAs(t, a.Anchor(ctx, []string{"everywhere"}), &uerr)
}

func TestDashboardAndLeaderboard(t *testing.T) {
	out := captureOutput(t)
	a, srv := newTestApp(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.Dashboard(ctx, nil), errNotLoggedIn)

	stubPassword(t, "secret1")
	require.NoError(t, a.Login(ctx, []string{"ann"}))
	require.NoError(t, a.Dashboard(ctx, nil))
	assert.True(t, out.Contains("In progress (1):"))
	assert.True(t, out.Contains("Completed (1):"))

	require.NoError(t, a.Dashboard(ctx, []string{"creator"}))
	assert.True(t, out.Contains("Hunts: 1"))
	assert.True(t, out.Contains("#42 SideQuest Tutorial (published)"))

	require.NoError(t, a.Leaderboard(ctx, []string{"42"}))
	assert.True(t, out.Contains("No finishers yet."))

	srv.Configure(func(s *fakeapi.Server) {
		s.Leaderboard[42] = []map[string]any{{"username": "zed", "badgeCount": 3, "timeSeconds": 75}}
	})
	require.NoError(t, a.Leaderboard(ctx, []string{"42"}))
	assert.True(t, out.Contains("zed"))
	assert.True(t, out.Contains("1m15s"))
}

func TestRun_Session(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t)

	a.Run(context.Background(), strings.NewReader("help\njoin tutorial\nexit\n"))

	assert.True(t, out.Contains("Welcome to SideQuest"))
	assert.True(t, out.Contains(helpGuest))
	assert.True(t, out.Contains("Joined hunt 42"))
	assert.True(t, out.Contains("Bye!"))
}
