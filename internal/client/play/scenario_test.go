package play

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/geo"
	"github.com/dmitrijs2005/sidequest/internal/client/location"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/client/playstate"
	"github.com/dmitrijs2005/sidequest/internal/testutil/fakeapi"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// TestTutorialRun plays the seeded two-checkpoint hunt end to end over HTTP,
// arriving through a shared link without having joined.
func TestTutorialRun(t *testing.T) {
	ctx := context.Background()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.Configure(func(s *fakeapi.Server) {
		s.EnvelopeCheckpoints = true
		s.RequireMembership = true
	})

	api, err := client.NewAPIClient(client.Options{BaseURL: srv.BaseURL()})
	require.NoError(t, err)

	repos, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "play.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	store := playstate.New(repos.DB)

	gps := location.NewManual()
	nav := &recordingNav{}
	e := New(api, store, location.NewTracker(gps, location.DefaultOptions(), nil),
		WithNavigator(nav),
		WithFeedbackDelay(time.Millisecond),
	)
	t.Cleanup(e.Close)

	require.NoError(t, e.Open(ctx, "42", 101))
	require.Equal(t, "Type ready", e.Snapshot().Checkpoint.Riddle)

	// auto-join lands in the play session
	require.Eventually(t, func() bool {
		m, err := store.Membership(ctx, "42")
		return err == nil && m.Status == models.JoinedAsUser
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return e.Snapshot().UserHuntID != nil }, 2*time.Second, 10*time.Millisecond)

	gps.Set(geo.Coordinate{Lat: 40.71, Lng: -74.00}, 5)
	e.SetAnswer("ready")
	res, err := e.Submit(ctx)
	require.NoError(t, err)
	require.True(t, res.Correct)

	require.Eventually(t, func() bool {
		s := e.Snapshot()
		return s.Phase == PhaseAwaiting && s.CheckpointID == 102 && s.Checkpoint != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"/play/42/checkpoints/102"}, nav.all())

	e.SetAnswer("FOUR")
	res, err = e.Submit(ctx)
	require.NoError(t, err)
	require.True(t, res.Complete())

	require.Eventually(t, func() bool { return e.Snapshot().Phase == PhaseComplete }, 2*time.Second, 10*time.Millisecond)

	// one token fetch served every mutating call
	require.Equal(t, 1, srv.CSRFHits())
	require.Len(t, srv.Requests("/attempt"), 2)

	id, ref, err := store.LastHunt(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.Equal(t, "42", ref)
}

// TestSharedLinkToAnotherHunt opens a hunt the player never joined while
// holding a membership in a different hunt.
func TestSharedLinkToAnotherHunt(t *testing.T) {
	ctx := context.Background()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.Configure(func(s *fakeapi.Server) { s.RequireMembership = true })

	api, err := client.NewAPIClient(client.Options{BaseURL: srv.BaseURL()})
	require.NoError(t, err)

	repos, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "play.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	store := playstate.New(repos.DB)

	other := int64(900)
	require.NoError(t, store.RecordJoin(ctx, playstate.Join{Refs: []string{"7"}, Status: models.JoinedAsUser, UserHuntID: &other}))

	gps := location.NewManual()
	e := New(api, store, location.NewTracker(gps, location.DefaultOptions(), nil), WithFeedbackDelay(time.Millisecond))
	t.Cleanup(e.Close)

	require.NoError(t, e.Open(ctx, "42", 101))
	require.Eventually(t, func() bool { return e.Snapshot().UserHuntID != nil }, 2*time.Second, 10*time.Millisecond)
	require.Len(t, srv.Requests("/hunts/42/join"), 1)

	gps.Set(geo.Coordinate{Lat: 40.71, Lng: -74.00}, 5)
	e.SetAnswer("ready")
	_, err = e.Submit(ctx)
	require.NoError(t, err)

	attempts := srv.Requests("/attempt")
	require.Len(t, attempts, 1)
	var body struct {
		UserHuntID *int64 `json:"userHuntId"`
	}
	require.NoError(t, json.Unmarshal(attempts[0].Body, &body))
	require.NotNil(t, body.UserHuntID)
	require.NotEqual(t, other, *body.UserHuntID)
	require.Equal(t, *e.Snapshot().UserHuntID, *body.UserHuntID)

	m, err := store.Membership(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, other, m.UserHuntID)
}

func TestMembershipRejectionRedirects(t *testing.T) {
	ctx := context.Background()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.Configure(func(s *fakeapi.Server) {
		s.RequireMembership = true
		s.RequireLogin = true
	})

	api, err := client.NewAPIClient(client.Options{BaseURL: srv.BaseURL()})
	require.NoError(t, err)

	repos, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "play.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	gps := location.NewManual()
	redirected := make(chan string, 1)
	e := New(api, playstate.New(repos.DB), location.NewTracker(gps, location.DefaultOptions(), nil),
		WithNavigator(NavigatorFunc(func(p string) { redirected <- p })),
		WithRedirectDelay(time.Millisecond),
	)
	t.Cleanup(e.Close)

	require.NoError(t, e.Open(ctx, "42", 101))
	// the auto-join needs a login and fails quietly
	require.Eventually(t, func() bool { return len(srv.Requests("/hunts/42/join")) > 0 }, 2*time.Second, 10*time.Millisecond)

	gps.Set(geo.Coordinate{Lat: 40.71, Lng: -74.00}, 5)
	e.SetAnswer("ready")
	_, err = e.Submit(ctx)
	require.Error(t, err)
	require.Equal(t, "You must join this hunt before attempting checkpoints.", e.Snapshot().Error)

	select {
	case p := <-redirected:
		require.Equal(t, "/hunts/42", p)
	case <-time.After(2 * time.Second):
		t.Fatal("no redirect")
	}
}
