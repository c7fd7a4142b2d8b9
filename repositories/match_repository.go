package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/the-match/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchTitleConflict  = errors.New("match title conflict for this creator")
	ErrMatchInUse          = errors.New("match is in use (participants or games exist)")
	ErrMatchStatusConflict = errors.New("match status changed concurrently")
)

type ListMatchesFilter struct {
	CreatorID *int
	Status    *models.MatchStatus
	Format    *models.MatchFormat
	Limit     int
	Offset    int
}

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetByIDForUpdate locks the match row for the lifetime of the
	// transaction. Used to serialize bracket generation.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	List(ctx context.Context, filter ListMatchesFilter) ([]models.Match, error)
	Update(ctx context.Context, match *models.Match) error
	// UpdateStatus is a compare-and-set: it only applies when the stored
	// status still equals from, returning ErrMatchStatusConflict otherwise.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus) error
	SetStartDateIfUnset(ctx context.Context, exec SQLExecutor, id int, t time.Time) error
	SetEndDateIfUnset(ctx context.Context, exec SQLExecutor, id int, t time.Time) error
	UpdateSettings(ctx context.Context, exec SQLExecutor, id int, settings *string) error
	// CancelWithAudit flips the match to cancelled and stores the audit
	// settings in one statement, CAS on the prior status, so a cancelled
	// match can never lack its audit record.
	CancelWithAudit(ctx context.Context, exec SQLExecutor, id int, from models.MatchStatus, settings *string) error
	// RaiseCurrentRound bumps current_round to round but never lowers it.
	RaiseCurrentRound(ctx context.Context, exec SQLExecutor, id int, round int) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, title, description, format, status, creator_id, max_participants,
	registration_deadline, start_date, end_date, current_round, settings, logo_key, created_at`

func (r *postgresMatchRepository) scanMatch(rowScanner interface {
	Scan(dest ...interface{}) error
}, m *models.Match) error {
	return rowScanner.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.Format,
		&m.Status,
		&m.CreatorID,
		&m.MaxParticipants,
		&m.RegistrationDeadline,
		&m.StartDate,
		&m.EndDate,
		&m.CurrentRound,
		&m.Settings,
		&m.LogoKey,
		&m.CreatedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches
			(title, description, format, status, creator_id, max_participants,
			 registration_deadline, start_date, end_date, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, current_round, created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.Title,
		m.Description,
		m.Format,
		m.Status,
		m.CreatorID,
		m.MaxParticipants,
		m.RegistrationDeadline,
		m.StartDate,
		m.EndDate,
		m.Settings,
	).Scan(&m.ID, &m.CurrentRound, &m.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "matches_creator_id_title_key" {
				return ErrMatchTitleConflict
			}
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m := &models.Match{}
	if err := r.scanMatch(r.db.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	m := &models.Match{}
	if err := r.scanMatch(exec.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) List(ctx context.Context, filter ListMatchesFilter) ([]models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE 1=1`)

	args := make([]interface{}, 0, 5)
	placeholder := 1

	if filter.CreatorID != nil {
		queryBuilder.WriteString(" AND creator_id = $" + strconv.Itoa(placeholder))
		args = append(args, *filter.CreatorID)
		placeholder++
	}
	if filter.Status != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(placeholder))
		args = append(args, *filter.Status)
		placeholder++
	}
	if filter.Format != nil {
		queryBuilder.WriteString(" AND format = $" + strconv.Itoa(placeholder))
		args = append(args, *filter.Format)
		placeholder++
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT $" + strconv.Itoa(placeholder))
		args = append(args, filter.Limit)
		placeholder++
	}
	if filter.Offset > 0 {
		queryBuilder.WriteString(" OFFSET $" + strconv.Itoa(placeholder))
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := r.scanMatch(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches
		SET title = $1, description = $2, max_participants = $3,
		    registration_deadline = $4, start_date = $5, end_date = $6, settings = $7
		WHERE id = $8`

	result, err := r.db.ExecContext(ctx, query,
		m.Title,
		m.Description,
		m.MaxParticipants,
		m.RegistrationDeadline,
		m.StartDate,
		m.EndDate,
		m.Settings,
		m.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrMatchTitleConflict
		}
		return fmt.Errorf("failed to update match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus) error {
	executor := r.executor(exec)
	query := `UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update match %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) SetStartDateIfUnset(ctx context.Context, exec SQLExecutor, id int, t time.Time) error {
	query := `UPDATE matches SET start_date = COALESCE(start_date, $1) WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, t, id)
	if err != nil {
		return fmt.Errorf("failed to set match %d start date: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetEndDateIfUnset(ctx context.Context, exec SQLExecutor, id int, t time.Time) error {
	query := `UPDATE matches SET end_date = COALESCE(end_date, $1) WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, t, id)
	if err != nil {
		return fmt.Errorf("failed to set match %d end date: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSettings(ctx context.Context, exec SQLExecutor, id int, settings *string) error {
	query := `UPDATE matches SET settings = $1 WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, settings, id)
	if err != nil {
		return fmt.Errorf("failed to update match %d settings: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CancelWithAudit(ctx context.Context, exec SQLExecutor, id int, from models.MatchStatus, settings *string) error {
	query := `UPDATE matches SET status = $1, settings = $2 WHERE id = $3 AND status = $4`
	result, err := r.executor(exec).ExecContext(ctx, query, models.MatchStatusCancelled, settings, id, from)
	if err != nil {
		return fmt.Errorf("failed to cancel match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) RaiseCurrentRound(ctx context.Context, exec SQLExecutor, id int, round int) error {
	// GREATEST keeps current_round monotonic under concurrent result writes.
	query := `UPDATE matches SET current_round = GREATEST(current_round, $1) WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, round, id)
	if err != nil {
		return fmt.Errorf("failed to raise match %d current round: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	query := `UPDATE matches SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update match %d logo key: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM matches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrMatchInUse
		}
		return fmt.Errorf("failed to delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}
