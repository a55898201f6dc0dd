package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/play"
	"github.com/dmitrijs2005/sidequest/internal/client/services"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type command func(ctx context.Context, args []string) error

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Login(ctx context.Context, args []string) error
	Signup(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	Me(ctx context.Context, args []string) error

	Join(ctx context.Context, args []string) error
	Hunt(ctx context.Context, args []string) error
	Leaderboard(ctx context.Context, args []string) error
	Dashboard(ctx context.Context, args []string) error

	Play(ctx context.Context, args []string) error
	GPS(ctx context.Context, args []string) error
	RetryGPS(ctx context.Context, args []string) error
	Answer(ctx context.Context, args []string) error
	Submit(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Anchor(ctx context.Context, args []string) error
}

const (
	helpGuest  = "Available commands: login, signup, join, hunt, play, gps, retrygps, answer, submit, status, anchor, leaderboard, exit"
	helpPlayer = "Available commands: me, logout, join, hunt, play, gps, retrygps, answer, submit, status, anchor, leaderboard, dashboard, exit"
)

// runREPL starts a simple read–eval–print loop for the SideQuest CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches the remaining tokens to methods on 'a'. Command errors are
// printed as player-facing messages and never end the loop. The loop exits
// on EOF or when the user types "exit" or "quit".
//
//	login [user]            sign in (password is prompted)
//	signup                  create an account
//	logout | me             end or show the session
//	join <code>             join a hunt by join code
//	hunt <ref>              show a hunt
//	play [ref [checkpoint]] open a checkpoint (defaults: last hunt, first checkpoint)
//	gps <lat> <lng> [acc]   report a position; gps deny|timeout|off to fail
//	retrygps                restart location tracking
//	answer <text>           type an answer
//	submit [text]           submit the answer
//	status                  show the open checkpoint
//	anchor [force]          move a tutorial checkpoint to the current position
//	leaderboard [ref]       show a hunt leaderboard
//	dashboard [creator]     show the player (or creator) dashboard
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	commands := map[string]command{
		"login":       a.Login,
		"signup":      a.Signup,
		"logout":      a.Logout,
		"me":          a.Me,
		"join":        a.Join,
		"hunt":        a.Hunt,
		"leaderboard": a.Leaderboard,
		"lb":          a.Leaderboard,
		"dashboard":   a.Dashboard,
		"play":        a.Play,
		"gps":         a.GPS,
		"retrygps":    a.RetryGPS,
		"answer":      a.Answer,
		"submit":      a.Submit,
		"status":      a.Status,
		"s":           a.Status,
		"anchor":      a.Anchor,
	}

	for {
		printlnFn(fmt.Sprintf("sq %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpPlayer)
			} else {
				printlnFn(helpGuest)
			}
			continue

		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		run, ok := commands[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if err := run(ctx, args); err != nil {
			printlnFn("Error:", errorMessage(err))
		}
	}
}

var playErrors = []error{
	play.ErrEmptyAnswer,
	play.ErrNoLocationFix,
	play.ErrBusy,
	play.ErrHuntComplete,
	play.ErrNoCheckpoint,
	play.ErrClosed,
}

// errorMessage turns a command error into the text shown to the player.
func errorMessage(err error) string {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var uerr usageError
	if errors.As(err, &uerr) {
		return "usage: " + string(uerr)
	}
	for _, target := range playErrors {
		if errors.Is(err, target) {
			return play.Message(err)
		}
	}
	return client.Message(err, err.Error())
}

type usageError string

func (e usageError) Error() string { return "usage: " + string(e) }
