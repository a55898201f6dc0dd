package play

import (
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/sidequest/internal/client/geo"
	"github.com/dmitrijs2005/sidequest/internal/client/location"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
)

type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseLoading    Phase = "LOADING_CHECKPOINT"
	PhaseAwaiting   Phase = "AWAITING_LOCATION_AND_ANSWER"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseAdvancing  Phase = "ADVANCING"
	PhaseComplete   Phase = "HUNT_COMPLETE"
	PhaseClosed     Phase = "CLOSED"
)

// Proximity is how far the last fix is from the checkpoint target. It is for
// display only.
type Proximity struct {
	Distance  float64
	Tolerance float64
	Within    bool
}

func proximity(fix geo.Coordinate, cp *models.Checkpoint) Proximity {
	d := geo.Distance(fix, cp.Target())
	return Proximity{Distance: d, Tolerance: cp.Tolerance, Within: d <= cp.Tolerance}
}

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	Phase        Phase
	HuntRef      string
	CheckpointID int64
	Checkpoint   *models.Checkpoint
	Answer       string
	Busy         bool
	UserHuntID   *int64

	Fix         *location.Fix
	LocationErr string
	Proximity   *Proximity

	// LoadErr is set when checkpoint metadata could not be fetched.
	LoadErr string
	// Error is the last submission or anchor error.
	Error  string
	Result *models.AttemptResult
}

// PlayPath is the route of a checkpoint within a hunt.
func PlayPath(huntRef string, checkpointID int64) string {
	return fmt.Sprintf("/play/%s/checkpoints/%d", url.PathEscape(huntRef), checkpointID)
}

// HuntPath is the landing route of a hunt.
func HuntPath(huntRef string) string {
	return "/hunts/" + url.PathEscape(huntRef)
}
