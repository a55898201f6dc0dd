package cli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/models"
	"github.com/dmitrijs2005/sidequest/internal/client/play"
)

func printHunt(h *models.Hunt, m models.Membership) {
	printlnFn(fmt.Sprintf("#%d %s [%s]", h.ID, h.Title, h.Ref()))
	if h.Description != "" {
		printlnFn(h.Description)
	}
	if m.Joined() {
		printlnFn("You joined this hunt as", m.Status)
	}
	for _, c := range h.Checkpoints {
		printlnFn(fmt.Sprintf("  %d. %s (checkpoint %d)", c.Order, c.Title, c.ID))
	}
}

func printCheckpoint(c *models.Checkpoint) {
	printlnFn(fmt.Sprintf("Checkpoint %d: %s", c.Order, c.Title))
	printlnFn("  " + c.Riddle)
	printlnFn(fmt.Sprintf("  Find it within %.0f m of the target.", c.Tolerance))
}

func printSnapshot(s play.Snapshot) {
	if s.CheckpointID == 0 {
		printlnFn("No checkpoint is open. Type 'play <hunt>' to start.")
		return
	}
	printlnFn(fmt.Sprintf("Hunt %s, checkpoint %d: %s", s.HuntRef, s.CheckpointID, s.Phase))
	if s.Checkpoint != nil {
		printCheckpoint(s.Checkpoint)
	}
	if s.LoadErr != "" {
		printlnFn("  !", s.LoadErr)
	}

	switch {
	case s.Proximity != nil:
		inside := "outside"
		if s.Proximity.Within {
			inside = "inside"
		}
		printlnFn(fmt.Sprintf("  You are %.1f m away (%s the %.0f m radius).", s.Proximity.Distance, inside, s.Proximity.Tolerance))
	case s.Fix != nil:
		printlnFn("  Position:", s.Fix.Coordinate)
	case s.LocationErr != "":
		printlnFn("  !", s.LocationErr)
	default:
		printlnFn("  Waiting for location. Use 'gps <lat> <lng>'.")
	}

	if s.Answer != "" {
		printlnFn(fmt.Sprintf("  Answer: %q", s.Answer))
	}
	if s.Error != "" {
		printlnFn("  !", s.Error)
	}
}

func printResult(r *models.AttemptResult) {
	if r.Correct {
		if r.Complete() {
			printlnFn("Correct! That was the last checkpoint.")
		} else {
			printlnFn("Correct! Loading the next checkpoint...")
		}
		return
	}
	line := "Not quite. Try again."
	if r.AttemptsRemaining != nil {
		line += fmt.Sprintf(" %d attempts left.", *r.AttemptsRemaining)
	}
	printlnFn(line)
}

func publishedLabel(published bool) string {
	if published {
		return "published"
	}
	return "draft"
}

func formatSeconds(s float64) string {
	return (time.Duration(s) * time.Second).String()
}
