package models

import (
	"encoding/json"
	"time"
)

// User is the authenticated account as reported by the backend.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// DisplayName picks the most readable identifier available.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return "Unknown"
	case u.Username != "":
		return u.Username
	case u.Email != "":
		return u.Email
	default:
		return "Unknown"
	}
}

func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var raw struct {
		plain
		UserID int64 `json:"userId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	if u.ID == 0 {
		u.ID = raw.UserID
	}
	return nil
}

type Badge struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	HuntID      int64      `json:"huntId,omitempty"`
	AwardedAt   *time.Time `json:"awardedAt,omitempty"`
}

// LeaderboardRow is one finisher on a hunt leaderboard.
type LeaderboardRow struct {
	Rank        int
	UserID      int64
	Username    string
	BadgeCount  int
	TimeSeconds *float64
	CompletedAt *time.Time
}

func (r *LeaderboardRow) UnmarshalJSON(b []byte) error {
	var raw struct {
		Rank           int        `json:"rank"`
		UserID         int64      `json:"userId"`
		Username       string     `json:"username"`
		User           *User      `json:"user"`
		BadgeCount     *int       `json:"badgeCount"`
		TotalBadges    *int       `json:"totalBadges"`
		TimeSeconds    *float64   `json:"timeSeconds"`
		CompletionTime *float64   `json:"completionTime"`
		CompletedAt    *time.Time `json:"completedAt"`
		CompletionDate *time.Time `json:"completionDate"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*r = LeaderboardRow{
		Rank:        raw.Rank,
		UserID:      raw.UserID,
		Username:    raw.Username,
		TimeSeconds: firstNonNil(raw.TimeSeconds, raw.CompletionTime),
		CompletedAt: firstNonNil(raw.CompletedAt, raw.CompletionDate),
	}
	if raw.User != nil {
		if r.UserID == 0 {
			r.UserID = raw.User.ID
		}
		if r.Username == "" {
			r.Username = raw.User.DisplayName()
		}
	}
	if r.Username == "" {
		r.Username = "Unknown"
	}
	if c := firstNonNil(raw.BadgeCount, raw.TotalBadges); c != nil {
		r.BadgeCount = *c
	}
	return nil
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
