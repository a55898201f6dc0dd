package play

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/location"
)

var (
	ErrEmptyAnswer   = errors.New("answer is empty")
	ErrNoLocationFix = errors.New("no location fix")
	ErrBusy          = errors.New("a submission is already in progress")
	ErrClosed        = errors.New("play engine closed")
	ErrNoCheckpoint  = errors.New("no checkpoint open")
	ErrHuntComplete  = errors.New("hunt already complete")
)

// Messages shown to the player.
const (
	MsgEmptyAnswer      = "Please enter an answer."
	MsgNoLocationFix    = "We need your location to verify proximity."
	MsgSubmitFailed     = "Submission failed."
	MsgLoadFailed       = "Failed to load checkpoint."
	MsgAnchorFailed     = "Failed to move checkpoint."
	MsgLocationFailed   = "Failed to get your location."
	MsgLocationMissing  = "Location is not supported on this device."
	MsgLocationTimeout  = "Timed out waiting for your location."
	MsgLocationDenied   = "Location permission denied."
	MsgMembershipNeeded = "You must join this hunt before attempting checkpoints."
)

// membershipMarkers are fragments of backend messages meaning the player has
// not joined the hunt.
var membershipMarkers = []string{
	"must join",
	"join this hunt",
	"not joined",
	"not a participant",
}

func isMembershipError(msg string) bool {
	m := strings.ToLower(msg)
	for _, marker := range membershipMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}

// LocationMessage turns a location error into player-facing text.
func LocationMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, location.ErrLocationUnsupported):
		return MsgLocationMissing
	case errors.Is(err, location.ErrLocationTimeout):
		return MsgLocationTimeout
	case errors.Is(err, location.ErrPermissionDenied):
		return MsgLocationDenied
	}
	return MsgLocationFailed
}

// Message turns any engine error into player-facing text.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyAnswer):
		return MsgEmptyAnswer
	case errors.Is(err, ErrNoLocationFix):
		return MsgNoLocationFix
	case errors.Is(err, ErrBusy):
		return "Please wait for the current submission to finish."
	case errors.Is(err, ErrHuntComplete):
		return "You have already completed this hunt."
	case errors.Is(err, ErrNoCheckpoint):
		return "No checkpoint is open."
	case errors.Is(err, ErrClosed):
		return "This checkpoint is no longer open."
	}
	return client.Message(err, MsgSubmitFailed)
}
