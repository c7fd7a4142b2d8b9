package models

import "time"

// ParticipantStatus is the approval state of a team's application to a match.
// pending is the only non-terminal state.
type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantApproved ParticipantStatus = "approved"
	ParticipantRejected ParticipantStatus = "rejected"
)

func (s ParticipantStatus) Valid() bool {
	switch s {
	case ParticipantPending, ParticipantApproved, ParticipantRejected:
		return true
	}
	return false
}

// Participant is a team's application to compete in a match.
type Participant struct {
	ID          int               `json:"id" db:"id"`
	MatchID     int               `json:"match_id" db:"match_id"`
	TeamID      int               `json:"team_id" db:"team_id"`
	Status      ParticipantStatus `json:"status" db:"status"`
	Notes       *string           `json:"notes,omitempty" db:"notes"`
	AppliedAt   time.Time         `json:"applied_at" db:"applied_at"`
	RespondedAt *time.Time        `json:"responded_at,omitempty" db:"responded_at"`
	ResponderID *int              `json:"responder_id,omitempty" db:"responder_id"`

	Team *Team `json:"team,omitempty" db:"-"`
}
