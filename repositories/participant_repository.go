package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/the-match/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrParticipantConflict maps the partial unique index guarding
	// "at most one pending/approved application per (match, team)".
	ErrParticipantConflict     = errors.New("team already has an open application for this match")
	ErrParticipantTeamInvalid  = errors.New("participant team reference invalid")
	ErrParticipantMatchInvalid = errors.New("participant match reference invalid")
	ErrParticipantNotPending   = errors.New("participant is no longer pending")
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	FindByID(ctx context.Context, id int) (*models.Participant, error)
	// FindOpenByMatchAndTeam returns the pending or approved application
	// for the pair, if any. Rejected applications are terminal and never
	// returned here.
	FindOpenByMatchAndTeam(ctx context.Context, matchID, teamID int) (*models.Participant, error)
	ListByMatch(ctx context.Context, matchID int, statusFilter *models.ParticipantStatus, includeTeams bool) ([]*models.Participant, error)
	// ListApprovedTeamIDs returns team ids of approved participants in
	// approval order. This is the seed order for bracket generation.
	ListApprovedTeamIDs(ctx context.Context, exec SQLExecutor, matchID int) ([]int, error)
	CountByMatchAndStatus(ctx context.Context, matchID int, status models.ParticipantStatus) (int, error)
	// Respond is a compare-and-set on status = pending; the losing side of
	// a concurrent double-respond observes ErrParticipantNotPending.
	Respond(ctx context.Context, id int, status models.ParticipantStatus, responderID int, notes *string) error
	Delete(ctx context.Context, id int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (match_id, team_id, status, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, applied_at`

	err := r.db.QueryRowContext(ctx, query,
		p.MatchID,
		p.TeamID,
		p.Status,
		p.Notes,
	).Scan(&p.ID, &p.AppliedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation (partial index on open applications)
				return ErrParticipantConflict
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "participants_team_id_fkey":
					return ErrParticipantTeamInvalid
				case "participants_match_id_fkey":
					return ErrParticipantMatchInvalid
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) scanParticipant(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.Participant) error {
	return rowScanner.Scan(
		&p.ID,
		&p.MatchID,
		&p.TeamID,
		&p.Status,
		&p.Notes,
		&p.AppliedAt,
		&p.RespondedAt,
		&p.ResponderID,
	)
}

func (r *postgresParticipantRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Participant, error) {
	p := &models.Participant{}
	if err := r.scanParticipant(r.db.QueryRowContext(ctx, query, args...), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

const participantColumns = `id, match_id, team_id, status, notes, applied_at, responded_at, responder_id`

func (r *postgresParticipantRepository) FindByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *postgresParticipantRepository) FindOpenByMatchAndTeam(ctx context.Context, matchID, teamID int) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants
		WHERE match_id = $1 AND team_id = $2 AND status IN ($3, $4)`
	return r.findOne(ctx, query, matchID, teamID, models.ParticipantPending, models.ParticipantApproved)
}

func (r *postgresParticipantRepository) ListByMatch(ctx context.Context, matchID int, statusFilter *models.ParticipantStatus, includeTeams bool) ([]*models.Participant, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT p.id, p.match_id, p.team_id, p.status, p.notes, p.applied_at, p.responded_at, p.responder_id`)
	if includeTeams {
		queryBuilder.WriteString(`,
			t.id, t.name, t.description, t.captain_id, t.logo_key, t.created_at`)
	}
	queryBuilder.WriteString(` FROM participants p`)
	if includeTeams {
		queryBuilder.WriteString(` JOIN teams t ON p.team_id = t.id`)
	}
	queryBuilder.WriteString(` WHERE p.match_id = $1`)

	args := []interface{}{matchID}
	if statusFilter != nil {
		queryBuilder.WriteString(` AND p.status = $2`)
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(` ORDER BY p.applied_at ASC, p.id ASC`)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for match %d: %w", matchID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		scanDest := []interface{}{&p.ID, &p.MatchID, &p.TeamID, &p.Status, &p.Notes, &p.AppliedAt, &p.RespondedAt, &p.ResponderID}
		var t models.Team
		if includeTeams {
			scanDest = append(scanDest, &t.ID, &t.Name, &t.Description, &t.CaptainID, &t.LogoKey, &t.CreatedAt)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		if includeTeams {
			p.Team = &t
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) ListApprovedTeamIDs(ctx context.Context, exec SQLExecutor, matchID int) ([]int, error) {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	// responded_at is the approval moment; it defines the seed order.
	query := `SELECT team_id FROM participants
		WHERE match_id = $1 AND status = $2
		ORDER BY responded_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID, models.ParticipantApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved teams for match %d: %w", matchID, err)
	}
	defer rows.Close()

	teamIDs := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan approved team id: %w", err)
		}
		teamIDs = append(teamIDs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approved team ids: %w", err)
	}
	return teamIDs, nil
}

func (r *postgresParticipantRepository) CountByMatchAndStatus(ctx context.Context, matchID int, status models.ParticipantStatus) (int, error) {
	query := `SELECT COUNT(*) FROM participants WHERE match_id = $1 AND status = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, matchID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants for match %d: %w", matchID, err)
	}
	return count, nil
}

func (r *postgresParticipantRepository) Respond(ctx context.Context, id int, status models.ParticipantStatus, responderID int, notes *string) error {
	query := `
		UPDATE participants
		SET status = $1, responder_id = $2, responded_at = NOW(), notes = COALESCE($3, notes)
		WHERE id = $4 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, status, responderID, notes, id, models.ParticipantPending)
	if err != nil {
		return fmt.Errorf("failed to respond to participant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotPending)
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM participants WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
