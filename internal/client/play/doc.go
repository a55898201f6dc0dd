// Package play drives a player through a hunt one checkpoint at a time.
//
// For each visit the Engine loads the checkpoint, keeps a live location
// subscription, and lets the player submit an answer once both an answer and a
// fix are present:
//
//	LOADING_CHECKPOINT -> AWAITING_LOCATION_AND_ANSWER -> SUBMITTING
//	SUBMITTING -> AWAITING_LOCATION_AND_ANSWER   wrong answer or error
//	SUBMITTING -> ADVANCING                      correct answer
//	ADVANCING -> LOADING_CHECKPOINT | HUNT_COMPLETE
//
// The backend alone decides whether an answer is correct; the engine forwards
// the answer with the player's coordinate and reports the verdict.
package play
