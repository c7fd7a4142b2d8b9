package models

import "time"

type GameStatus string

const (
	GameStatusScheduled  GameStatus = "scheduled"
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
)

// Game is one scheduled contest within a match. In elimination formats the
// (Round, GameNumber) pair addresses the slot of the bracket; GameNumber is
// 1-indexed within its round.
type Game struct {
	ID          int        `json:"id" db:"id"`
	MatchID     int        `json:"match_id" db:"match_id"`
	Round       int        `json:"round" db:"round"`
	GameNumber  int        `json:"game_number" db:"game_number"`
	Team1ID     *int       `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID     *int       `json:"team2_id,omitempty" db:"team2_id"`
	Status      GameStatus `json:"status" db:"status"`
	Team1Score  *int       `json:"team1_score,omitempty" db:"team1_score"`
	Team2Score  *int       `json:"team2_score,omitempty" db:"team2_score"`
	WinnerID    *int       `json:"winner_id,omitempty" db:"winner_id"`
	Venue       *string    `json:"venue,omitempty" db:"venue"`
	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	Team1 *Team `json:"team1,omitempty" db:"-"`
	Team2 *Team `json:"team2,omitempty" db:"-"`
}
