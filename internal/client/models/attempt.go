package models

import "encoding/json"

// AttemptResult is the backend verdict on an answer submission.
type AttemptResult struct {
	Correct           bool
	AttemptsUsed      *int
	AttemptsRemaining *int
	NextCheckpointID  *int64
	Finished          bool
}

// Complete reports whether a correct answer ended the hunt. A correct answer
// with no next checkpoint reference counts as completion.
func (r AttemptResult) Complete() bool {
	return r.Correct && (r.Finished || r.NextCheckpointID == nil)
}

type attemptResultJSON struct {
	WasCorrect        *bool  `json:"wasCorrect"`
	Correct           *bool  `json:"correct"`
	AttemptsUsed      *int   `json:"attemptsUsed"`
	AttemptsRemaining *int   `json:"attemptsRemaining"`
	NextCheckpointID  *int64 `json:"nextCheckpointId"`
	Finished          bool   `json:"finished"`
}

func (r *AttemptResult) UnmarshalJSON(b []byte) error {
	var raw attemptResultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = AttemptResult{
		AttemptsUsed:      raw.AttemptsUsed,
		AttemptsRemaining: raw.AttemptsRemaining,
		NextCheckpointID:  raw.NextCheckpointID,
		Finished:          raw.Finished,
	}
	switch {
	case raw.WasCorrect != nil:
		r.Correct = *raw.WasCorrect
	case raw.Correct != nil:
		r.Correct = *raw.Correct
	}
	return nil
}

// AttemptRequest is the body of POST /play/checkpoints/:id/attempt.
type AttemptRequest struct {
	Answer     string  `json:"answer"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	UserHuntID *int64  `json:"userHuntId"`
}

// AnchorRequest is the body of POST /play/checkpoints/:id/anchor.
type AnchorRequest struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	UserHuntID     *int64  `json:"userHuntId"`
	Force          bool    `json:"force,omitempty"`
	ForceNeighbors bool    `json:"forceNeighbors,omitempty"`
}
