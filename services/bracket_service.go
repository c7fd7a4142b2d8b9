package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/the-match/brackets"
	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/repositories"
)

// BracketService turns the approved participant list of a match into
// persisted games. Generation is idempotent: if the match already has
// games, the call is a no-op.
type BracketService interface {
	// GenerateForMatch must run inside the caller's transaction (exec)
	// together with the status transition that triggers it, so a
	// concurrent duplicate transition cannot double-generate.
	GenerateForMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) ([]*models.Game, error)
}

type bracketService struct {
	participantRepo repositories.ParticipantRepository
	gameRepo        repositories.GameRepository
	logger          *slog.Logger
}

func NewBracketService(
	participantRepo repositories.ParticipantRepository,
	gameRepo repositories.GameRepository,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		participantRepo: participantRepo,
		gameRepo:        gameRepo,
		logger:          logger,
	}
}

func generatorForFormat(format models.MatchFormat) (brackets.Generator, error) {
	switch format {
	case models.FormatSingleElimination:
		return brackets.NewSingleEliminationGenerator(), nil
	case models.FormatRoundRobin:
		return brackets.NewRoundRobinGenerator(1), nil
	case models.FormatLeague:
		return brackets.NewRoundRobinGenerator(2), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormatUnsupported, format)
	}
}

func (s *bracketService) GenerateForMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) ([]*models.Game, error) {
	exists, err := s.gameRepo.ExistsByMatch(ctx, exec, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing games for match %d: %w", match.ID, err)
	}
	if exists {
		s.logger.InfoContext(ctx, "bracket already generated, skipping",
			slog.Int("match_id", match.ID))
		return nil, nil
	}

	teamIDs, err := s.participantRepo.ListApprovedTeamIDs(ctx, exec, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved teams for match %d: %w", match.ID, err)
	}
	if len(teamIDs) < 2 {
		return nil, fmt.Errorf("%w: %d approved participants, need at least 2", ErrPreconditionNotMet, len(teamIDs))
	}

	generator, err := generatorForFormat(match.Format)
	if err != nil {
		return nil, err
	}

	generated, err := generator.Generate(ctx, brackets.GenerateParams{
		MatchID: match.ID,
		TeamIDs: teamIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s bracket for match %d: %w", generator.Name(), match.ID, err)
	}

	games := buildGames(match, generated)
	resolveByes(generated, games)

	for _, game := range games {
		if err := s.gameRepo.Create(ctx, exec, game); err != nil {
			return nil, fmt.Errorf("failed to persist game R%dG%d for match %d: %w",
				game.Round, game.GameNumber, match.ID, err)
		}
	}

	s.logger.InfoContext(ctx, "bracket generated",
		slog.Int("match_id", match.ID),
		slog.String("format", string(match.Format)),
		slog.Int("teams", len(teamIDs)),
		slog.Int("games", len(games)))

	return games, nil
}

// buildGames maps generated bracket games onto storable rows. Tagged slots
// collapse to nullable team columns only here, at the storage edge.
func buildGames(match *models.Match, generated []*brackets.BracketGame) []*models.Game {
	scheduledAt := time.Now()
	if match.StartDate != nil && match.StartDate.After(scheduledAt) {
		scheduledAt = *match.StartDate
	}

	games := make([]*models.Game, 0, len(generated))
	for _, bg := range generated {
		game := &models.Game{
			MatchID:     match.ID,
			Round:       bg.Round,
			GameNumber:  bg.GameNumber,
			Status:      models.GameStatusScheduled,
			ScheduledAt: scheduledAt,
		}
		if bg.Slot1.Kind == brackets.SlotFilled {
			teamID := bg.Slot1.TeamID
			game.Team1ID = &teamID
		}
		if bg.Slot2.Kind == brackets.SlotFilled {
			teamID := bg.Slot2.TeamID
			game.Team2ID = &teamID
		}
		games = append(games, game)
	}
	return games
}

// resolveByes completes bye games in generation order and advances their
// winners through the in-memory tree, so the bracket is persisted already
// consistent. A bye cascading into another bye (odd fields) is handled by
// the ascending round order.
func resolveByes(generated []*brackets.BracketGame, games []*models.Game) {
	byRef := make(map[brackets.GameRef]*models.Game, len(games))
	for _, g := range games {
		byRef[brackets.GameRef{Round: g.Round, GameNumber: g.GameNumber}] = g
	}

	ordered := make([]*brackets.BracketGame, len(generated))
	copy(ordered, generated)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Round != ordered[j].Round {
			return ordered[i].Round < ordered[j].Round
		}
		return ordered[i].GameNumber < ordered[j].GameNumber
	})

	now := time.Now()
	for _, bg := range ordered {
		if !bg.Bye {
			continue
		}
		game := byRef[bg.Ref()]
		if game == nil || game.Team1ID == nil || game.WinnerID != nil {
			continue
		}
		winner := *game.Team1ID
		game.WinnerID = &winner
		game.Status = models.GameStatusCompleted
		game.StartedAt = &now
		game.EndedAt = &now

		nextRef, slot := brackets.NextSlot(bg.Ref())
		if next, ok := byRef[nextRef]; ok {
			if slot == 1 {
				next.Team1ID = &winner
			} else {
				next.Team2ID = &winner
			}
		}
	}
}
