package models

import "time"

// MembershipStatus is the locally persisted answer to "has this player joined
// the hunt, and as whom".
type MembershipStatus string

const (
	NotJoined     MembershipStatus = "not_joined"
	JoinedAsGuest MembershipStatus = "guest"
	JoinedAsUser  MembershipStatus = "user"
)

// Membership ties a hunt reference (numeric id or slug) to the player's
// server-side user-hunt record.
type Membership struct {
	HuntRef    string           `json:"huntRef"`
	Status     MembershipStatus `json:"status"`
	UserHuntID int64            `json:"userHuntId,omitempty"`
	JoinedAt   time.Time        `json:"joinedAt"`
}

// Joined reports whether the player joined in any capacity.
func (m Membership) Joined() bool {
	return m.Status == JoinedAsGuest || m.Status == JoinedAsUser
}

// UserHuntRef returns the user-hunt id when one is held.
func (m Membership) UserHuntRef() *int64 {
	if m.UserHuntID == 0 {
		return nil
	}
	id := m.UserHuntID
	return &id
}
