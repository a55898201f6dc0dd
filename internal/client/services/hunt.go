package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/geo"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/client/playstate"
)

var ErrBadJoinResponse = errors.New("join response carries no hunt id")

// PlayState is the persisted play session the hunt service keeps current.
type PlayState interface {
	RecordJoin(ctx context.Context, j playstate.Join) error
	SetLastHunt(ctx context.Context, refs ...string) error
}

// HuntService defines hunt operations for the CLI.
//
// Contract:
//   - JoinByCode: normalize and submit a join code; record the membership.
//   - Get: fetch a hunt by id or slug with checkpoints in play order.
//   - Join: join a hunt directly (from its page) and record the membership.
//   - Create, Delete, TogglePublish: creator operations.
type HuntService interface {
	JoinByCode(ctx context.Context, code string) (*Joined, error)
	Get(ctx context.Context, ref string) (*models.Hunt, error)
	Join(ctx context.Context, h *models.Hunt) (*Joined, error)
	Create(ctx context.Context, draft models.HuntDraft) (*models.Hunt, error)
	Delete(ctx context.Context, id int64) error
	TogglePublish(ctx context.Context, id int64, currentlyPublished bool) (*models.Hunt, error)
}

// Joined is the outcome of a successful join.
type Joined struct {
	HuntID            int64
	Slug              string
	UserHuntID        *int64
	FirstCheckpointID *int64
	// Route is where the player goes next.
	Route string
}

type huntService struct {
	client client.Client
	state  PlayState
}

func NewHuntService(c client.Client, state PlayState) HuntService {
	return &huntService{client: c, state: state}
}

// NormalizeJoinCode trims and upper-cases a join code.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *huntService) JoinByCode(ctx context.Context, code string) (*Joined, error) {
	code = NormalizeJoinCode(code)
	if code == "" {
		return nil, &ValidationError{Fields: map[string]string{"joinCode": "Please enter a join code."}}
	}

	if _, err := s.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("join by code: %w", err)
	}
	res, err := s.client.JoinByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("join by code: %w", err)
	}
	if res == nil || res.HuntID <= 0 {
		return nil, ErrBadJoinResponse
	}

	j := &Joined{
		HuntID:            res.HuntID,
		Slug:              res.Slug,
		UserHuntID:        res.UserHuntID,
		FirstCheckpointID: res.FirstCheckpointID,
		Route:             "/hunts/" + strconv.FormatInt(res.HuntID, 10),
	}
	if err := s.state.RecordJoin(ctx, playstate.Join{
		Refs:       []string{strconv.FormatInt(res.HuntID, 10), res.Slug},
		Status:     statusFor(res.UserHuntID),
		UserHuntID: res.UserHuntID,
	}); err != nil {
		return j, fmt.Errorf("record join: %w", err)
	}
	return j, nil
}

// Get fetches by id or slug. A slug the generic route does not know is
// retried on the slug route.
func (s *huntService) Get(ctx context.Context, ref string) (*models.Hunt, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &ValidationError{Fields: map[string]string{"hunt": "Hunt id or slug is required"}}
	}

	h, err := s.client.GetHunt(ctx, ref)
	if err != nil && errors.Is(err, client.ErrNotFound) && !isNumeric(ref) {
		h, err = s.client.GetHuntBySlug(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get hunt %s: %w", ref, err)
	}

	h.SortCheckpoints()
	refs := []string{ref, h.Slug}
	if h.ID > 0 {
		refs = append(refs, strconv.FormatInt(h.ID, 10))
	}
	// convenience only, a failure here must not hide the hunt
	_ = s.state.SetLastHunt(ctx, refs...)
	return h, nil
}

func (s *huntService) Join(ctx context.Context, h *models.Hunt) (*Joined, error) {
	ref := h.Ref()
	if _, err := s.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("join hunt: %w", err)
	}
	res, err := s.client.JoinHunt(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("join hunt: %w", err)
	}

	j := &Joined{
		HuntID:            h.ID,
		Slug:              h.Slug,
		UserHuntID:        res.UserHuntID,
		FirstCheckpointID: res.FirstCheckpointID,
		Route:             "/hunts/" + ref,
	}
	if j.FirstCheckpointID == nil {
		if cp, ok := h.FirstCheckpoint(); ok {
			id := cp.ID
			j.FirstCheckpointID = &id
		}
	}
	if j.FirstCheckpointID != nil {
		j.Route = fmt.Sprintf("/play/%s/checkpoints/%d", ref, *j.FirstCheckpointID)
	}

	refs := []string{ref, h.Slug}
	if h.ID > 0 {
		refs = append(refs, strconv.FormatInt(h.ID, 10))
	}
	if err := s.state.RecordJoin(ctx, playstate.Join{Refs: refs, Status: statusFor(res.UserHuntID), UserHuntID: res.UserHuntID}); err != nil {
		return j, fmt.Errorf("record join: %w", err)
	}
	return j, nil
}

// ValidateDraft checks a hunt before it is sent.
func ValidateDraft(d models.HuntDraft) error {
	var v validator
	if strings.TrimSpace(d.Title) == "" {
		v.add("title", "Hunt name is required")
	}
	switch d.Visibility {
	case "", models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityUnlisted:
	default:
		v.add("visibility", "Visibility must be public, private or unlisted")
	}
	if d.MaxPlayers < 0 {
		v.add("maxPlayers", "Max players cannot be negative")
	}
	if len(d.Checkpoints) == 0 {
		v.add("checkpoints", "Add at least one checkpoint")
	}

	seen := map[int]bool{}
	for i, c := range d.Checkpoints {
		field := fmt.Sprintf("checkpoints[%d]", i)
		switch {
		case strings.TrimSpace(c.Title) == "":
			v.add(field, fmt.Sprintf("Checkpoint %d needs a title", i+1))
		case strings.TrimSpace(c.Riddle) == "":
			v.add(field, fmt.Sprintf("Checkpoint %d needs a riddle", i+1))
		case strings.TrimSpace(c.Answer) == "":
			v.add(field, fmt.Sprintf("Checkpoint %d needs an answer", i+1))
		case !(geo.Coordinate{Lat: c.Lat, Lng: c.Lng}).Valid():
			v.add(field, fmt.Sprintf("Checkpoint %d has an invalid location", i+1))
		case c.Tolerance <= 0:
			v.add(field, fmt.Sprintf("Checkpoint %d needs a positive tolerance", i+1))
		case seen[c.Order]:
			v.add(field, fmt.Sprintf("Checkpoint %d repeats order %d", i+1, c.Order))
		}
		seen[c.Order] = true
	}
	return v.err()
}

// Create validates and submits a new hunt. Checkpoints without an explicit
// order are numbered by position, starting at 1.
func (s *huntService) Create(ctx context.Context, draft models.HuntDraft) (*models.Hunt, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	for i := range draft.Checkpoints {
		if draft.Checkpoints[i].Order == 0 {
			draft.Checkpoints[i].Order = i + 1
		}
	}
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}

	if _, err := s.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("create hunt: %w", err)
	}
	h, err := s.client.CreateHunt(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create hunt: %w", err)
	}
	h.SortCheckpoints()
	return h, nil
}

func (s *huntService) Delete(ctx context.Context, id int64) error {
	if _, err := s.client.InitCSRF(ctx); err != nil {
		return fmt.Errorf("delete hunt: %w", err)
	}
	if err := s.client.DeleteHunt(ctx, id); err != nil {
		return fmt.Errorf("delete hunt %d: %w", id, err)
	}
	return nil
}

func (s *huntService) TogglePublish(ctx context.Context, id int64, currentlyPublished bool) (*models.Hunt, error) {
	if _, err := s.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("toggle publish: %w", err)
	}
	h, err := s.client.TogglePublish(ctx, id, currentlyPublished)
	if err != nil {
		return nil, fmt.Errorf("toggle publish %d: %w", id, err)
	}
	return h, nil
}

func statusFor(userHuntID *int64) models.MembershipStatus {
	if userHuntID != nil {
		return models.JoinedAsUser
	}
	return models.JoinedAsGuest
}

func isNumeric(ref string) bool {
	_, err := strconv.ParseInt(ref, 10, 64)
	return err == nil
}
