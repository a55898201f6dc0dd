package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sidequest/internal/client/models"
)

var errNotLoggedIn = errors.New("please log in first")

// Join joins a hunt by its join code.
func (a *App) Join(ctx context.Context, args []string) error {
	j, err := a.huntService.JoinByCode(ctx, strings.Join(args, ""))
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Joined hunt %d. Type 'play %d' to start.", j.HuntID, j.HuntID))
	return nil
}

// Hunt shows a hunt by id or slug, defaulting to the last one opened.
func (a *App) Hunt(ctx context.Context, args []string) error {
	ref, err := a.huntRef(ctx, args, "hunt <id|slug>")
	if err != nil {
		return err
	}
	h, err := a.huntService.Get(ctx, ref)
	if err != nil {
		return err
	}
	m, err := a.state.Membership(ctx, h.Ref())
	if err != nil {
		return err
	}
	printHunt(h, m)
	return nil
}

func (a *App) Leaderboard(ctx context.Context, args []string) error {
	ref, err := a.huntRef(ctx, args, "leaderboard <hunt id>")
	if err != nil {
		return err
	}
	rows, err := a.dashService.Leaderboard(ctx, ref)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		printlnFn("No finishers yet.")
		return nil
	}
	for _, r := range rows {
		line := fmt.Sprintf("%3d. %-20s %d badges", r.Rank, r.Username, r.BadgeCount)
		if r.TimeSeconds != nil {
			line += fmt.Sprintf("  %s", formatSeconds(*r.TimeSeconds))
		}
		printlnFn(line)
	}
	return nil
}

// Dashboard shows joined hunts and badges, or with "creator" the hunts the
// user created.
func (a *App) Dashboard(ctx context.Context, args []string) error {
	u := a.currentUser()
	if u == nil {
		return errNotLoggedIn
	}

	if len(args) > 0 && args[0] == "creator" {
		d, err := a.dashService.Creator(ctx, u.ID)
		if err != nil {
			return err
		}
		printlnFn(fmt.Sprintf("Hunts: %d  Players: %d  Completed: %d",
			d.Stats.TotalHunts, d.Stats.ActivePlayers, d.Stats.CompletedHunts))
		for _, h := range d.Hunts {
			printlnFn(fmt.Sprintf("  #%d %s (%s)", h.ID, h.Title, publishedLabel(h.IsPublished)))
		}
		return nil
	}

	d, err := a.dashService.Player(ctx, u.ID)
	if err != nil {
		return err
	}
	printJoined("In progress", d.InProgress)
	printJoined("Completed", d.Completed)
	printlnFn(fmt.Sprintf("Badges (%d):", len(d.Badges)))
	for _, b := range d.Badges {
		printlnFn("  *", b.Name)
	}
	return nil
}

// huntRef returns the first argument or the last hunt opened.
func (a *App) huntRef(ctx context.Context, args []string, usage string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	_, ref, err := a.state.LastHunt(ctx)
	if err != nil {
		return "", err
	}
	if ref == "" {
		return "", usageError(usage)
	}
	return ref, nil
}

func printJoined(title string, hunts []models.JoinedHunt) {
	printlnFn(fmt.Sprintf("%s (%d):", title, len(hunts)))
	for _, h := range hunts {
		printlnFn(fmt.Sprintf("  #%d %s", h.ID, h.Title))
	}
}
