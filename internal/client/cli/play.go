package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sidequest/internal/client/geo"
	"github.com/dmitrijs2005/sidequest/internal/client/location"
	"github.com/dmitrijs2005/sidequest/internal/client/play"
)

var errNoCheckpoints = errors.New("this hunt has no checkpoints")

// Play opens a checkpoint. Without a checkpoint id the hunt's first one is
// used; without a hunt the last one opened. Membership is handled by the
// engine, which joins on the player's behalf when needed.
func (a *App) Play(ctx context.Context, args []string) error {
	ref, err := a.huntRef(ctx, args, "play <hunt> [checkpoint id]")
	if err != nil {
		return err
	}

	var cpID int64
	if len(args) > 1 {
		if cpID, err = strconv.ParseInt(args[1], 10, 64); err != nil || cpID <= 0 {
			return usageError("play <hunt> [checkpoint id]")
		}
	} else {
		h, err := a.huntService.Get(ctx, ref)
		if err != nil {
			return err
		}
		cp, ok := h.FirstCheckpoint()
		if !ok {
			return errNoCheckpoints
		}
		ref, cpID = h.Ref(), cp.ID
	}

	a.mu.Lock()
	a.shownCP, a.shownDone = 0, false
	a.mu.Unlock()

	// A load failure is already in the snapshot; the checkpoint stays open.
	if err := a.engine.Open(ctx, ref, cpID); err != nil && !errors.Is(err, play.ErrClosed) {
		printlnFn("!", a.engine.Snapshot().LoadErr)
	}
	return nil
}

// GPS reports a position to the location provider, or with deny, timeout
// or off makes it fail the way a device would.
func (a *App) GPS(_ context.Context, args []string) error {
	const usage = "gps <lat> <lng> [accuracy] | gps deny|timeout|off"
	if len(args) == 1 {
		switch args[0] {
		case "deny":
			a.gps.Fail(location.ErrPermissionDenied)
		case "timeout":
			a.gps.Fail(location.ErrLocationTimeout)
		case "off":
			a.gps.Fail(location.ErrLocationUnsupported)
		default:
			return usageError(usage)
		}
		printlnFn("!", play.LocationMessage(a.tracker.Err()))
		return nil
	}
	if len(args) < 2 {
		return usageError(usage)
	}

	lat, err1 := strconv.ParseFloat(args[0], 64)
	lng, err2 := strconv.ParseFloat(args[1], 64)
	c := geo.Coordinate{Lat: lat, Lng: lng}
	if err1 != nil || err2 != nil || !c.Valid() {
		return usageError(usage)
	}
	var acc float64
	if len(args) > 2 {
		acc, _ = strconv.ParseFloat(args[2], 64)
	}

	a.gps.Set(c, acc)
	if p, ok := a.engine.Proximity(); ok {
		printlnFn(fmt.Sprintf("%.1f m from the target (radius %.0f m)", p.Distance, p.Tolerance))
	} else {
		printlnFn("Position:", c)
	}
	return nil
}

func (a *App) RetryGPS(_ context.Context, _ []string) error {
	if err := a.engine.RetryLocation(); err != nil {
		return err
	}
	printlnFn("Location tracking restarted.")
	return nil
}

func (a *App) Answer(_ context.Context, args []string) error {
	a.engine.SetAnswer(strings.Join(args, " "))
	return nil
}

// Submit sends the answer. Arguments, when given, replace the typed answer.
func (a *App) Submit(ctx context.Context, args []string) error {
	if len(args) > 0 {
		a.engine.SetAnswer(strings.Join(args, " "))
	}
	res, err := a.engine.Submit(ctx)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func (a *App) Status(_ context.Context, _ []string) error {
	printSnapshot(a.engine.Snapshot())
	return nil
}

// Anchor moves the open checkpoint to the current position. "force" also
// applies to non-tutorial checkpoints, "all" moves the neighbors too.
func (a *App) Anchor(ctx context.Context, args []string) error {
	var force, neighbors bool
	for _, arg := range args {
		switch arg {
		case "force":
			force = true
		case "all":
			force, neighbors = true, true
		default:
			return usageError("anchor [force|all]")
		}
	}

	cp, err := a.engine.Anchor(ctx, force, neighbors)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Checkpoint %d moved to %s.", cp.ID, cp.Target()))
	return nil
}
