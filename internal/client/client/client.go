package client

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/sidequest/internal/client/models"
)

// Client is the backend contract used by the CLI services. APIClient is the
// HTTP implementation; tests substitute fakes.
type Client interface {
	Close() error
	InitCSRF(ctx context.Context) (string, error)
	HTTPClient() *http.Client

	Me(ctx context.Context) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (*models.User, error)
	Signup(ctx context.Context, req SignupRequest) (*models.User, error)
	GoogleLogin(ctx context.Context, idToken string) (*models.User, error)
	Auth0Login(ctx context.Context, p Auth0Profile) (*models.User, error)
	UpdateProfile(ctx context.Context, p ProfileUpdate) (*models.User, error)
	Logout(ctx context.Context) error

	JoinByCode(ctx context.Context, code string) (*models.JoinResult, error)
	JoinHunt(ctx context.Context, ref string) (*models.JoinResult, error)
	GetHunt(ctx context.Context, ref string) (*models.Hunt, error)
	GetHuntBySlug(ctx context.Context, slug string) (*models.Hunt, error)
	CreateHunt(ctx context.Context, draft models.HuntDraft) (*models.Hunt, error)
	DeleteHunt(ctx context.Context, id int64) error
	TogglePublish(ctx context.Context, id int64, currentlyPublished bool) (*models.Hunt, error)
	CreatorHunts(ctx context.Context, creatorID int64) ([]models.Hunt, error)
	JoinedHunts(ctx context.Context, userID int64) ([]models.JoinedHunt, error)
	Badges(ctx context.Context, userID int64) ([]models.Badge, error)
	Leaderboard(ctx context.Context, huntRef string) ([]models.LeaderboardRow, error)

	Checkpoint(ctx context.Context, id int64) (*models.Checkpoint, error)
	SubmitAttempt(ctx context.Context, checkpointID int64, req models.AttemptRequest) (*models.AttemptResult, error)
	Anchor(ctx context.Context, checkpointID int64, req models.AnchorRequest) (*models.Checkpoint, error)
}

var _ Client = (*APIClient)(nil)
