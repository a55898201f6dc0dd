// Package cli provides the interactive SideQuest command-line client.
//
// It wires configuration, local storage, the shared API client, the play
// engine, and an interactive REPL. Location comes from a manual provider:
// the player types coordinates with the gps command and the engine treats
// them as a live position stream.
//
// Key features:
//   - Login / Signup / Logout / Me
//   - Join by code, view hunts, leaderboards, and the player dashboard
//   - Play checkpoints: gps, answer, submit, anchor, status
//
// The REPL is started via App.Run(ctx, in), which blocks until the user
// exits. See App and runREPL for details.
package cli
