// Package models defines the client-side view of SideQuest backend resources:
// hunts, checkpoints, attempts, users, badges, leaderboard rows, and the
// locally persisted hunt membership.
//
// Decoders here are tolerant: the backend has shipped several shapes for the
// same resource (enveloped vs. flat, "wasCorrect" vs. "correct", "userId" vs.
// "id"), and the client accepts all of them.
package models
