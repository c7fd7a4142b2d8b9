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
	ErrGameNotFound     = errors.New("game not found")
	ErrGameSlotConflict = errors.New("game slot conflict: (match, round, game_number) already exists")
	ErrGameMatchInvalid = errors.New("game match reference invalid")
	ErrGameTeamInvalid  = errors.New("game team reference invalid")
)

type GameRepository interface {
	Create(ctx context.Context, exec SQLExecutor, game *models.Game) error
	GetByID(ctx context.Context, id int) (*models.Game, error)
	// GetByPosition resolves a game by its bracket address.
	GetByPosition(ctx context.Context, matchID, round, gameNumber int) (*models.Game, error)
	ListByMatch(ctx context.Context, matchID int, round *int, status *models.GameStatus) ([]*models.Game, error)
	ExistsByMatch(ctx context.Context, exec SQLExecutor, matchID int) (bool, error)
	// RecordResult persists scores, winner, completion status and
	// timestamps as a single write.
	RecordResult(ctx context.Context, id int, team1Score, team2Score *int, winnerID *int, completedAt time.Time) error
	// SetTeamSlot writes one team slot of a game, leaving the other slot
	// untouched so two upstream games can converge concurrently.
	SetTeamSlot(ctx context.Context, matchID, round, gameNumber, slot, teamID int) error
	CountByMatchAndRound(ctx context.Context, matchID, round int) (int, error)
	CountIncompleteInRound(ctx context.Context, matchID, round int) (int, error)
	MaxRound(ctx context.Context, matchID int) (int, error)
	// CountUndecidedInRound counts games of the round without a winner.
	CountUndecidedInRound(ctx context.Context, matchID, round int) (int, error)
}

type postgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

const gameColumns = `id, match_id, round, game_number, team1_id, team2_id, status,
	team1_score, team2_score, winner_id, venue, scheduled_at, started_at, ended_at, created_at`

func (r *postgresGameRepository) scanGame(rowScanner interface {
	Scan(dest ...interface{}) error
}, g *models.Game) error {
	return rowScanner.Scan(
		&g.ID,
		&g.MatchID,
		&g.Round,
		&g.GameNumber,
		&g.Team1ID,
		&g.Team2ID,
		&g.Status,
		&g.Team1Score,
		&g.Team2Score,
		&g.WinnerID,
		&g.Venue,
		&g.ScheduledAt,
		&g.StartedAt,
		&g.EndedAt,
		&g.CreatedAt,
	)
}

func (r *postgresGameRepository) Create(ctx context.Context, exec SQLExecutor, game *models.Game) error {
	executor := r.executor(exec)
	query := `
		INSERT INTO games
			(match_id, round, game_number, team1_id, team2_id, status,
			 team1_score, team2_score, winner_id, venue, scheduled_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		game.MatchID,
		game.Round,
		game.GameNumber,
		game.Team1ID,
		game.Team2ID,
		game.Status,
		game.Team1Score,
		game.Team2Score,
		game.WinnerID,
		game.Venue,
		game.ScheduledAt,
		game.StartedAt,
		game.EndedAt,
	).Scan(&game.ID, &game.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrGameSlotConflict
			case "23503":
				if pqErr.Constraint == "games_match_id_fkey" {
					return ErrGameMatchInvalid
				}
				return ErrGameTeamInvalid
			}
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (r *postgresGameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	g := &models.Game{}
	if err := r.scanGame(r.db.QueryRowContext(ctx, query, id), g); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game %d: %w", id, err)
	}
	return g, nil
}

func (r *postgresGameRepository) GetByPosition(ctx context.Context, matchID, round, gameNumber int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games
		WHERE match_id = $1 AND round = $2 AND game_number = $3`
	g := &models.Game{}
	if err := r.scanGame(r.db.QueryRowContext(ctx, query, matchID, round, gameNumber), g); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game at match %d round %d number %d: %w", matchID, round, gameNumber, err)
	}
	return g, nil
}

func (r *postgresGameRepository) ListByMatch(ctx context.Context, matchID int, round *int, status *models.GameStatus) ([]*models.Game, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + gameColumns + ` FROM games WHERE match_id = $1`)

	args := []interface{}{matchID}
	placeholder := 2

	if round != nil {
		queryBuilder.WriteString(" AND round = $" + strconv.Itoa(placeholder))
		args = append(args, *round)
		placeholder++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(placeholder))
		args = append(args, *status)
	}

	queryBuilder.WriteString(" ORDER BY round ASC, game_number ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games for match %d: %w", matchID, err)
	}
	defer rows.Close()

	games := make([]*models.Game, 0)
	for rows.Next() {
		var g models.Game
		if err := r.scanGame(rows, &g); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		games = append(games, &g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game rows: %w", err)
	}
	return games, nil
}

func (r *postgresGameRepository) ExistsByMatch(ctx context.Context, exec SQLExecutor, matchID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM games WHERE match_id = $1)`
	var exists bool
	if err := r.executor(exec).QueryRowContext(ctx, query, matchID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check games existence for match %d: %w", matchID, err)
	}
	return exists, nil
}

func (r *postgresGameRepository) RecordResult(ctx context.Context, id int, team1Score, team2Score *int, winnerID *int, completedAt time.Time) error {
	query := `
		UPDATE games
		SET team1_score = $1, team2_score = $2, winner_id = $3, status = $4,
		    started_at = COALESCE(started_at, $5), ended_at = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		team1Score, team2Score, winnerID, models.GameStatusCompleted, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to record result for game %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) SetTeamSlot(ctx context.Context, matchID, round, gameNumber, slot, teamID int) error {
	column := "team1_id"
	if slot == 2 {
		column = "team2_id"
	}
	// Only the addressed slot column is written; the sibling slot may be
	// updated concurrently by the other feeder game.
	query := fmt.Sprintf(`UPDATE games SET %s = $1 WHERE match_id = $2 AND round = $3 AND game_number = $4`, column)
	result, err := r.db.ExecContext(ctx, query, teamID, matchID, round, gameNumber)
	if err != nil {
		return fmt.Errorf("failed to set slot %d of game at match %d round %d number %d: %w", slot, matchID, round, gameNumber, err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) CountByMatchAndRound(ctx context.Context, matchID, round int) (int, error) {
	query := `SELECT COUNT(*) FROM games WHERE match_id = $1 AND round = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, matchID, round).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games for match %d round %d: %w", matchID, round, err)
	}
	return count, nil
}

func (r *postgresGameRepository) CountIncompleteInRound(ctx context.Context, matchID, round int) (int, error) {
	query := `SELECT COUNT(*) FROM games WHERE match_id = $1 AND round = $2 AND status != $3`
	var count int
	if err := r.db.QueryRowContext(ctx, query, matchID, round, models.GameStatusCompleted).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incomplete games for match %d round %d: %w", matchID, round, err)
	}
	return count, nil
}

func (r *postgresGameRepository) MaxRound(ctx context.Context, matchID int) (int, error) {
	query := `SELECT COALESCE(MAX(round), 0) FROM games WHERE match_id = $1`
	var round int
	if err := r.db.QueryRowContext(ctx, query, matchID).Scan(&round); err != nil {
		return 0, fmt.Errorf("failed to find max round for match %d: %w", matchID, err)
	}
	return round, nil
}

func (r *postgresGameRepository) CountUndecidedInRound(ctx context.Context, matchID, round int) (int, error) {
	query := `SELECT COUNT(*) FROM games WHERE match_id = $1 AND round = $2 AND winner_id IS NULL`
	var count int
	if err := r.db.QueryRowContext(ctx, query, matchID, round).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count undecided games for match %d round %d: %w", matchID, round, err)
	}
	return count, nil
}

func (r *postgresGameRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}
