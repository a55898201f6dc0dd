package models

import (
	"sort"
	"strconv"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/geo"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

// Hunt is a scavenger hunt with its ordered checkpoints.
type Hunt struct {
	ID           int64        `json:"id"`
	Slug         string       `json:"slug,omitempty"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Visibility   Visibility   `json:"visibility,omitempty"`
	EndsAt       *time.Time   `json:"endsAt,omitempty"`
	MaxPlayers   int          `json:"maxPlayers,omitempty"`
	JoinCode     string       `json:"joinCode,omitempty"`
	CreatorID    int64        `json:"creatorId,omitempty"`
	IsPublished  bool         `json:"isPublished"`
	IsActive     *bool        `json:"isActive,omitempty"`
	PlayersCount int          `json:"playersCount,omitempty"`
	Checkpoints  []Checkpoint `json:"checkpoints,omitempty"`
}

// Ref returns the slug when present, otherwise the numeric id.
func (h *Hunt) Ref() string {
	if h.Slug != "" {
		return h.Slug
	}
	return strconv.FormatInt(h.ID, 10)
}

// SortCheckpoints orders checkpoints by their Order field.
func (h *Hunt) SortCheckpoints() {
	sort.SliceStable(h.Checkpoints, func(i, j int) bool {
		return h.Checkpoints[i].Order < h.Checkpoints[j].Order
	})
}

// FirstCheckpoint returns the checkpoint with the lowest order.
func (h *Hunt) FirstCheckpoint() (Checkpoint, bool) {
	if len(h.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	first := h.Checkpoints[0]
	for _, c := range h.Checkpoints[1:] {
		if c.Order < first.Order {
			first = c
		}
	}
	return first, true
}

// NextCheckpoint returns the checkpoint with the smallest order strictly
// greater than order.
func (h *Hunt) NextCheckpoint(order int) (Checkpoint, bool) {
	var (
		next  Checkpoint
		found bool
	)
	for _, c := range h.Checkpoints {
		if c.Order <= order {
			continue
		}
		if !found || c.Order < next.Order {
			next, found = c, true
		}
	}
	return next, found
}

// Active reports whether the hunt still accepts players. An explicit isActive
// flag wins; otherwise a hunt is active until its end time.
func (h *Hunt) Active(now time.Time) bool {
	if h.IsActive != nil {
		return *h.IsActive
	}
	if h.EndsAt != nil {
		return h.EndsAt.After(now)
	}
	return true
}

// Checkpoint is a geofenced riddle stop within a hunt.
type Checkpoint struct {
	ID        int64   `json:"id"`
	HuntID    int64   `json:"huntId,omitempty"`
	Order     int     `json:"order"`
	Title     string  `json:"title"`
	Riddle    string  `json:"riddle"`
	Answer    string  `json:"answer,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Tolerance float64 `json:"tolerance"`
}

// Target is the checkpoint's coordinate.
func (c Checkpoint) Target() geo.Coordinate {
	return geo.Coordinate{Lat: c.Lat, Lng: c.Lng}
}

// JoinedHunt is a hunt row on the player dashboard.
type JoinedHunt struct {
	Hunt
	UserHuntID  int64      `json:"userHuntId,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JoinResult is returned by both join-by-code and join-by-hunt calls.
type JoinResult struct {
	HuntID            int64  `json:"huntId,omitempty"`
	Slug              string `json:"slug,omitempty"`
	UserHuntID        *int64 `json:"userHuntId,omitempty"`
	FirstCheckpointID *int64 `json:"firstCheckpointId,omitempty"`
}

// CheckpointDraft is a checkpoint as submitted by a hunt creator.
type CheckpointDraft struct {
	Order     int     `json:"order"`
	Title     string  `json:"title"`
	Riddle    string  `json:"riddle"`
	Answer    string  `json:"answer"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Tolerance float64 `json:"tolerance"`
}

// HuntDraft is the body of POST /hunts.
type HuntDraft struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Visibility  Visibility        `json:"visibility,omitempty"`
	EndsAt      *time.Time        `json:"endsAt,omitempty"`
	MaxPlayers  int               `json:"maxPlayers,omitempty"`
	Checkpoints []CheckpointDraft `json:"checkpoints"`
}
