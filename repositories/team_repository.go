package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/the-match/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name is already in use")
	ErrTeamInUse        = errors.New("team is referenced by participants or games")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByIDs(ctx context.Context, ids []int) (map[int]*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `id, name, description, captain_id, logo_key, created_at`

func (r *postgresTeamRepository) scanTeam(rowScanner interface {
	Scan(dest ...interface{}) error
}, t *models.Team) error {
	return rowScanner.Scan(&t.ID, &t.Name, &t.Description, &t.CaptainID, &t.LogoKey, &t.CreatedAt)
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	query := `
		INSERT INTO teams (name, description, captain_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, t.Name, t.Description, t.CaptainID).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t := &models.Team{}
	if err := r.scanTeam(r.db.QueryRowContext(ctx, query, id), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByIDs(ctx context.Context, ids []int) (map[int]*models.Team, error) {
	teams := make(map[int]*models.Team, len(ids))
	if len(ids) == 0 {
		return teams, nil
	}

	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list teams by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Team
		if err := r.scanTeam(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams[t.ID] = &t
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team rows: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	query := `UPDATE teams SET name = $1, description = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, t.Name, t.Description, t.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to update team %d: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	query := `UPDATE teams SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update team %d logo key: %w", id, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM teams WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrTeamInUse
		}
		return fmt.Errorf("failed to delete team %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}
