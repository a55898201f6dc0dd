package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/sidequest/internal/client/models"
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Auth0Profile is the identity forwarded to POST /auth/auth0 after an Auth0
// login completes.
type Auth0Profile struct {
	Auth0ID   string `json:"auth0Id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
}

// ProfileUpdate is the body of PUT /auth/profile. Empty fields are omitted.
type ProfileUpdate struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Password  string `json:"password,omitempty"`
}

func (c *APIClient) userCall(ctx context.Context, method, path string, in any) (*models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, nil, in, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var u models.User
	if err := decodeEnveloped(raw, "user", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Me returns the authenticated user; the backend may answer {user: {...}}
// or the user fields flat.
func (c *APIClient) Me(ctx context.Context) (*models.User, error) {
	return c.userCall(ctx, http.MethodGet, "/auth/me", nil)
}

func (c *APIClient) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	return c.userCall(ctx, http.MethodPost, "/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
}

func (c *APIClient) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	return c.userCall(ctx, http.MethodPost, "/auth/signup", req)
}

func (c *APIClient) GoogleLogin(ctx context.Context, idToken string) (*models.User, error) {
	return c.userCall(ctx, http.MethodPost, "/auth/google", map[string]string{"id_token": idToken})
}

func (c *APIClient) Auth0Login(ctx context.Context, p Auth0Profile) (*models.User, error) {
	return c.userCall(ctx, http.MethodPost, "/auth/auth0", p)
}

func (c *APIClient) UpdateProfile(ctx context.Context, p ProfileUpdate) (*models.User, error) {
	return c.userCall(ctx, http.MethodPut, "/auth/profile", p)
}

func (c *APIClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, struct{}{}, nil)
}

// JoinByCode resolves a join code to a hunt and joins it.
func (c *APIClient) JoinByCode(ctx context.Context, code string) (*models.JoinResult, error) {
	var res models.JoinResult
	if err := c.do(ctx, http.MethodPost, "/hunts/join", nil, map[string]string{"joinCode": code}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// JoinHunt joins the hunt identified by id or slug.
func (c *APIClient) JoinHunt(ctx context.Context, ref string) (*models.JoinResult, error) {
	var res models.JoinResult
	if err := c.do(ctx, http.MethodPost, "/hunts/"+url.PathEscape(ref)+"/join", nil, struct{}{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) huntCall(ctx context.Context, method, path string, in any) (*models.Hunt, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, nil, in, &raw); err != nil {
		return nil, err
	}
	var h models.Hunt
	if len(raw) == 0 {
		return &h, nil
	}
	if err := decodeEnveloped(raw, "hunt", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetHunt fetches a hunt by numeric id or slug.
func (c *APIClient) GetHunt(ctx context.Context, ref string) (*models.Hunt, error) {
	return c.huntCall(ctx, http.MethodGet, "/hunts/"+url.PathEscape(ref), nil)
}

func (c *APIClient) GetHuntBySlug(ctx context.Context, slug string) (*models.Hunt, error) {
	return c.huntCall(ctx, http.MethodGet, "/hunts/slug/"+url.PathEscape(slug), nil)
}

func (c *APIClient) CreateHunt(ctx context.Context, draft models.HuntDraft) (*models.Hunt, error) {
	return c.huntCall(ctx, http.MethodPost, "/hunts", draft)
}

func (c *APIClient) DeleteHunt(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/hunts/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// TogglePublish flips the publish flag via PATCH /hunts/:id/publish, falling
// back to PATCH /hunts/:id {isPublished} on backends without the dedicated route.
func (c *APIClient) TogglePublish(ctx context.Context, id int64, currentlyPublished bool) (*models.Hunt, error) {
	path := "/hunts/" + strconv.FormatInt(id, 10)
	h, err := c.huntCall(ctx, http.MethodPatch, path+"/publish", nil)
	if err == nil {
		return h, nil
	}
	if !isNotFoundOrMethod(err) {
		return nil, err
	}
	return c.huntCall(ctx, http.MethodPatch, path, map[string]bool{"isPublished": !currentlyPublished})
}

// CreatorHunts lists hunts created by a user, falling back to the query form
// GET /hunts?creatorId= when the dedicated route is missing.
func (c *APIClient) CreatorHunts(ctx context.Context, creatorID int64) ([]models.Hunt, error) {
	id := strconv.FormatInt(creatorID, 10)

	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/hunts/creator/"+id, nil, nil, &raw)
	if err != nil {
		if !isNotFoundOrMethod(err) {
			return nil, err
		}
		raw = nil
		if err := c.do(ctx, http.MethodGet, "/hunts", url.Values{"creatorId": {id}}, nil, &raw); err != nil {
			return nil, err
		}
	}
	return decodeList[models.Hunt](raw, "rows")
}

func (c *APIClient) JoinedHunts(ctx context.Context, userID int64) ([]models.JoinedHunt, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/users/"+strconv.FormatInt(userID, 10)+"/hunts/joined", nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.JoinedHunt](raw, "rows")
}

func (c *APIClient) Badges(ctx context.Context, userID int64) ([]models.Badge, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/users/"+strconv.FormatInt(userID, 10)+"/badges", nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Badge](raw, "badges")
}

// Leaderboard accepts either a bare array or {rows: [...]}.
func (c *APIClient) Leaderboard(ctx context.Context, huntRef string) ([]models.LeaderboardRow, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/leaderboard/"+url.PathEscape(huntRef), nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.LeaderboardRow](raw, "rows")
}

func (c *APIClient) checkpointCall(ctx context.Context, method, path string, in any) (*models.Checkpoint, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, nil, in, &raw); err != nil {
		return nil, err
	}
	var cp models.Checkpoint
	if err := decodeEnveloped(raw, "checkpoint", &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Checkpoint loads a checkpoint; the backend may wrap it as {checkpoint: {...}}.
func (c *APIClient) Checkpoint(ctx context.Context, id int64) (*models.Checkpoint, error) {
	return c.checkpointCall(ctx, http.MethodGet, "/play/checkpoints/"+strconv.FormatInt(id, 10), nil)
}

// SubmitAttempt posts an answer with the player's coordinate. The verdict is
// the backend's; the client only forwards and reports it.
func (c *APIClient) SubmitAttempt(ctx context.Context, checkpointID int64, req models.AttemptRequest) (*models.AttemptResult, error) {
	var res models.AttemptResult
	path := "/play/checkpoints/" + strconv.FormatInt(checkpointID, 10) + "/attempt"
	if err := c.do(ctx, http.MethodPost, path, nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Anchor moves a checkpoint's target to the given coordinate.
func (c *APIClient) Anchor(ctx context.Context, checkpointID int64, req models.AnchorRequest) (*models.Checkpoint, error) {
	path := "/play/checkpoints/" + strconv.FormatInt(checkpointID, 10) + "/anchor"
	return c.checkpointCall(ctx, http.MethodPost, path, req)
}
