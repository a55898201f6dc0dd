package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"golang.org/x/sync/errgroup"
)

// DashboardService defines the read-only views for creators and players.
type DashboardService interface {
	Creator(ctx context.Context, creatorID int64) (*CreatorDashboard, error)
	Player(ctx context.Context, userID int64) (*PlayerDashboard, error)
	Leaderboard(ctx context.Context, huntRef string) ([]models.LeaderboardRow, error)
}

type CreatorStats struct {
	TotalHunts     int
	ActivePlayers  int
	CompletedHunts int
}

type CreatorDashboard struct {
	Hunts []models.Hunt
	Stats CreatorStats
}

type PlayerDashboard struct {
	InProgress []models.JoinedHunt
	Completed  []models.JoinedHunt
	Badges     []models.Badge
}

type dashboardService struct {
	client client.Client
	now    func() time.Time
}

func NewDashboardService(c client.Client) DashboardService {
	return &dashboardService{client: c, now: time.Now}
}

// Creator lists the creator's hunts with summary counts. A hunt counts as
// completed once it is no longer active.
func (s *dashboardService) Creator(ctx context.Context, creatorID int64) (*CreatorDashboard, error) {
	hunts, err := s.client.CreatorHunts(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("creator hunts: %w", err)
	}

	now := s.now()
	d := &CreatorDashboard{Hunts: hunts}
	d.Stats.TotalHunts = len(hunts)
	for i := range hunts {
		if !hunts[i].Active(now) {
			d.Stats.CompletedHunts++
		}
		if hunts[i].PlayersCount > 0 {
			d.Stats.ActivePlayers += hunts[i].PlayersCount
		}
	}
	return d, nil
}

// Player loads joined hunts and badges in parallel.
func (s *dashboardService) Player(ctx context.Context, userID int64) (*PlayerDashboard, error) {
	var (
		joined []models.JoinedHunt
		badges []models.Badge
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		joined, err = s.client.JoinedHunts(gctx, userID)
		if err != nil {
			return fmt.Errorf("joined hunts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		badges, err = s.client.Badges(gctx, userID)
		if err != nil {
			return fmt.Errorf("badges: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &PlayerDashboard{
		InProgress: []models.JoinedHunt{},
		Completed:  []models.JoinedHunt{},
		Badges:     badges,
	}
	for _, h := range joined {
		if h.CompletedAt != nil {
			d.Completed = append(d.Completed, h)
		} else {
			d.InProgress = append(d.InProgress, h)
		}
	}
	return d, nil
}

func (s *dashboardService) Leaderboard(ctx context.Context, huntRef string) ([]models.LeaderboardRow, error) {
	huntRef = strings.TrimSpace(huntRef)
	if huntRef == "" {
		return nil, &ValidationError{Fields: map[string]string{"hunt": "Hunt id is required"}}
	}
	rows, err := s.client.Leaderboard(ctx, huntRef)
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", huntRef, err)
	}
	for i := range rows {
		if rows[i].Rank == 0 {
			rows[i].Rank = i + 1
		}
	}
	return rows, nil
}
