package models

import "time"

// Team is the owning entity for players. The captain (an authenticated user
// id supplied by the auth collaborator) is the only member with authority
// over the team itself.
type Team struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CaptainID   int       `json:"captain_id" db:"captain_id"`
	LogoKey     *string   `json:"-" db:"logo_key"`
	LogoURL     *string   `json:"logo_url,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
