package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/testutil/fakeapi"
	"github.com/stretchr/testify/require"
)

type creatorClient struct {
	fakeClient
	hunts []models.Hunt
}

func (f *creatorClient) CreatorHunts(ctx context.Context, creatorID int64) ([]models.Hunt, error) {
	return f.hunts, nil
}

type playerClient struct {
	fakeClient
	badgesErr error
}

func (f *playerClient) JoinedHunts(ctx context.Context, userID int64) ([]models.JoinedHunt, error) {
	return nil, nil
}

func (f *playerClient) Badges(ctx context.Context, userID int64) ([]models.Badge, error) {
	return nil, f.badgesErr
}

func TestCreatorDashboard_Stats(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	inactive := false

	f := &creatorClient{hunts: []models.Hunt{
		{ID: 1, PlayersCount: 3},
		{ID: 2, EndsAt: &past, PlayersCount: 2},
		{ID: 3, EndsAt: &future},
		{ID: 4, IsActive: &inactive, EndsAt: &future, PlayersCount: 1},
	}}
	svc := &dashboardService{client: f, now: func() time.Time { return now }}

	d, err := svc.Creator(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, CreatorStats{TotalHunts: 4, ActivePlayers: 6, CompletedHunts: 2}, d.Stats)
}

func TestCreatorDashboard_OverHTTP(t *testing.T) {
	e := setup(t)

	d, err := NewDashboardService(e.api).Creator(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, d.Hunts, 1)
	require.Equal(t, 1, d.Stats.TotalHunts)
}

func TestPlayerDashboard(t *testing.T) {
	e := setup(t)
	e.srv.Configure(func(s *fakeapi.Server) {
		s.Badges = []models.Badge{{ID: 1, Name: "Trailblazer"}, {ID: 2, Name: "Finisher"}}
	})

	d, err := NewDashboardService(e.api).Player(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, d.InProgress, 1)
	require.Len(t, d.Completed, 1)
	require.Equal(t, int64(42), d.Completed[0].ID)
	require.Len(t, d.Badges, 2)

	require.Len(t, e.srv.Requests("/users/7/hunts/joined"), 1)
	require.Len(t, e.srv.Requests("/users/7/badges"), 1)
}

func TestPlayerDashboard_PropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewDashboardService(&playerClient{badgesErr: boom}).Player(context.Background(), 7)
	require.ErrorIs(t, err, boom)
}

func TestLeaderboard(t *testing.T) {
	e := setup(t)
	e.srv.Configure(func(s *fakeapi.Server) {
		s.Leaderboard[42] = []map[string]any{
			{"username": "zed", "badgeCount": 4, "timeSeconds": 90},
			{"username": "amy", "badgeCount": 2},
		}
	})
	svc := NewDashboardService(e.api)

	rows, err := svc.Leaderboard(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, rows[0].Rank)
	require.Equal(t, 2, rows[1].Rank)
	require.Equal(t, 90.0, *rows[0].TimeSeconds)

	_, err = svc.Leaderboard(context.Background(), " ")
	require.ErrorIs(t, err, ErrInvalidInput)
}
