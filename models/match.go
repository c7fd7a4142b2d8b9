package models

import (
	"encoding/json"
	"time"
)

// MatchStatus represents the lifecycle states of a match, matching the ENUM in the DB.
type MatchStatus string

const (
	MatchStatusDraft        MatchStatus = "draft"
	MatchStatusRegistration MatchStatus = "registration"
	MatchStatusInProgress   MatchStatus = "in_progress"
	MatchStatusCompleted    MatchStatus = "completed"
	MatchStatusCancelled    MatchStatus = "cancelled"
)

type MatchFormat string

const (
	FormatSingleElimination MatchFormat = "single_elimination"
	FormatDoubleElimination MatchFormat = "double_elimination"
	FormatRoundRobin        MatchFormat = "round_robin"
	FormatSwiss             MatchFormat = "swiss"
	FormatLeague            MatchFormat = "league"
)

// IsElimination reports whether winners of completed games advance into
// later rounds of the bracket.
func (f MatchFormat) IsElimination() bool {
	return f == FormatSingleElimination || f == FormatDoubleElimination
}

// Match represents one tournament/league instance.
type Match struct {
	ID                   int         `json:"id" db:"id"`
	Title                string      `json:"title" db:"title"`
	Description          *string     `json:"description,omitempty" db:"description"`
	Format               MatchFormat `json:"format" db:"format"`
	Status               MatchStatus `json:"status" db:"status"`
	CreatorID            int         `json:"creator_id" db:"creator_id"`
	MaxParticipants      *int        `json:"max_participants,omitempty" db:"max_participants"`
	RegistrationDeadline *time.Time  `json:"registration_deadline,omitempty" db:"registration_deadline"`
	StartDate            *time.Time  `json:"start_date,omitempty" db:"start_date"`
	EndDate              *time.Time  `json:"end_date,omitempty" db:"end_date"`
	CurrentRound         int         `json:"current_round" db:"current_round"`
	Settings             *string     `json:"-" db:"settings"`
	LogoKey              *string     `json:"-" db:"logo_key"`
	LogoURL              *string     `json:"logo_url,omitempty" db:"-"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`

	// Related entities, loaded on demand (not mapped directly).
	SettingsMap  map[string]interface{} `json:"settings,omitempty" db:"-"`
	Participants []Participant          `json:"participants,omitempty" db:"-"`
	Games        []Game                 `json:"games,omitempty" db:"-"`
}

// DecodeSettings parses the raw settings column into SettingsMap.
// An absent or empty column yields an empty map.
func (m *Match) DecodeSettings() error {
	m.SettingsMap = map[string]interface{}{}
	if m.Settings == nil || *m.Settings == "" {
		return nil
	}
	return json.Unmarshal([]byte(*m.Settings), &m.SettingsMap)
}

// EncodeSettings serializes SettingsMap back into the raw settings column.
func (m *Match) EncodeSettings() error {
	if m.SettingsMap == nil {
		m.Settings = nil
		return nil
	}
	raw, err := json.Marshal(m.SettingsMap)
	if err != nil {
		return err
	}
	s := string(raw)
	m.Settings = &s
	return nil
}
