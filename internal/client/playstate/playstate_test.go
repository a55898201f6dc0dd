package playstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newStore(t *testing.T) (*Store, *client.Repositories) {
	t.Helper()
	repos, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "play.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	s := New(repos.DB)
	s.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, repos
}

func TestMembership_NotJoinedByDefault(t *testing.T) {
	s, _ := newStore(t)

	m, err := s.Membership(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, models.NotJoined, m.Status)
	require.False(t, m.Joined())
	require.Nil(t, m.UserHuntRef())
}

func TestRecordJoin_StoresEveryRef(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	uh := int64(501)

	err := s.RecordJoin(ctx, Join{Refs: []string{"42", "tutorial", "42"}, Status: models.JoinedAsUser, UserHuntID: &uh})
	require.NoError(t, err)

	for _, ref := range []string{"42", "tutorial"} {
		m, err := s.Membership(ctx, ref)
		require.NoError(t, err)
		require.Equal(t, models.JoinedAsUser, m.Status, ref)
		require.Equal(t, ref, m.HuntRef)
		require.Equal(t, int64(501), m.UserHuntID)
	}

	id, err := s.UserHuntID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(501), *id)

	lastID, lastRef, err := s.LastHunt(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(42), lastID)
	require.Equal(t, "tutorial", lastRef)

	all, err := s.Memberships(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestRecordJoin_WithoutUserHuntDefaultsToGuest(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordJoin(ctx, Join{Refs: []string{"7"}}))

	m, err := s.Membership(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, models.JoinedAsGuest, m.Status)

	id, err := s.UserHuntID(ctx)
	require.NoError(t, err)
	require.Nil(t, id)
}

func TestRecordJoin_RequiresRef(t *testing.T) {
	s, _ := newStore(t)
	require.Error(t, s.RecordJoin(context.Background(), Join{Refs: []string{" ", "0"}}))
}

func TestUserHuntFor_UsesOnlyThatHuntsMembership(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	uh := int64(900)

	require.NoError(t, s.RecordJoin(ctx, Join{Refs: []string{"7"}, Status: models.JoinedAsUser, UserHuntID: &uh}))
	require.NoError(t, s.RecordJoin(ctx, Join{Refs: []string{"8"}}))

	id, err := s.UserHuntFor(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, int64(900), *id)

	// joined as guest: no id of its own
	id, err = s.UserHuntFor(ctx, "8")
	require.NoError(t, err)
	require.Nil(t, id)

	// never joined: hunt 7's id must not leak
	id, err = s.UserHuntFor(ctx, "42")
	require.NoError(t, err)
	require.Nil(t, id)
}

func TestUserHuntFor_GlobalKeyWithoutAnyMembership(t *testing.T) {
	s, repos := newStore(t)
	ctx := context.Background()

	require.NoError(t, repos.Local.Set(ctx, KeyUserHuntID, []byte("77")))

	id, err := s.UserHuntFor(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, int64(77), *id)

	require.NoError(t, s.RecordJoin(ctx, Join{Refs: []string{"5"}}))
	id, err = s.UserHuntFor(ctx, "42")
	require.NoError(t, err)
	require.Nil(t, id)
}

func TestMembership_LegacyFlag(t *testing.T) {
	s, repos := newStore(t)
	ctx := context.Background()

	require.NoError(t, repos.Local.Set(ctx, "joined:hunt:5", []byte("1")))
	m, err := s.Membership(ctx, "5")
	require.NoError(t, err)
	require.Equal(t, models.JoinedAsGuest, m.Status)

	require.NoError(t, repos.Local.Set(ctx, "joined:hunt:6", []byte("garbage")))
	m, err = s.Membership(ctx, "6")
	require.NoError(t, err)
	require.Equal(t, models.NotJoined, m.Status)
}

func TestForgetAndReset(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordJoin(ctx, Join{Refs: []string{"42", "tutorial"}}))
	require.NoError(t, s.Forget(ctx, "tutorial"))

	m, err := s.Membership(ctx, "tutorial")
	require.NoError(t, err)
	require.False(t, m.Joined())

	m, err = s.Membership(ctx, "42")
	require.NoError(t, err)
	require.True(t, m.Joined())

	require.NoError(t, s.Reset(ctx))
	_, ref, err := s.LastHunt(ctx)
	require.NoError(t, err)
	require.Empty(t, ref)
}

func TestSetLastHunt(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetLastHunt(ctx, "13"))
	id, ref, err := s.LastHunt(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(13), id)
	require.Equal(t, "13", ref)

	require.NoError(t, s.SetLastHunt(ctx))
	require.NoError(t, s.SetLastHunt(ctx, "old-town"))
	id, ref, err = s.LastHunt(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(13), id)
	require.Equal(t, "old-town", ref)
}
