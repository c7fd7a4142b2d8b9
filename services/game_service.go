package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/the-match/brackets"
	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/repositories"
)

type RecordResultInput struct {
	Team1Score int `json:"team1_score"`
	Team2Score int `json:"team2_score"`
}

type GameService interface {
	RecordResult(ctx context.Context, matchID, gameID, requesterID int, input RecordResultInput) (*models.Game, error)
	ListByMatch(ctx context.Context, matchID int, round *int) ([]*models.Game, error)
}

type gameService struct {
	matchRepo repositories.MatchRepository
	gameRepo  repositories.GameRepository
	hub       *brackets.Hub
	logger    *slog.Logger
}

func NewGameService(
	matchRepo repositories.MatchRepository,
	gameRepo repositories.GameRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) GameService {
	return &gameService{
		matchRepo: matchRepo,
		gameRepo:  gameRepo,
		hub:       hub,
		logger:    logger,
	}
}

// RecordResult stores a game's final score, decides the winner, and advances
// the winner into its next-round slot. The score write is the primary
// operation; progression runs after it and its failures are logged, never
// returned, so a retry of the same score call can repair the bracket.
func (s *gameService) RecordResult(ctx context.Context, matchID, gameID, requesterID int, input RecordResultInput) (*models.Game, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.CreatorID != requesterID {
		return nil, ErrForbiddenOperation
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: scores can only be recorded while the match is in progress", ErrPreconditionNotMet)
	}

	game, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	if game.MatchID != matchID {
		return nil, ErrGameNotFound
	}
	if game.Status == models.GameStatusCompleted {
		// An identical re-submission is a retry: re-run progression so a
		// transient failure after the score commit can still be repaired.
		if game.Team1Score != nil && *game.Team1Score == input.Team1Score &&
			game.Team2Score != nil && *game.Team2Score == input.Team2Score {
			if match.Format.IsElimination() && game.WinnerID != nil {
				s.advanceWinner(ctx, match, game, *game.WinnerID)
			}
			return game, nil
		}
		return nil, ErrGameCompleted
	}
	if game.Team1ID == nil || game.Team2ID == nil {
		return nil, ErrGameNotReady
	}

	if input.Team1Score < 0 || input.Team2Score < 0 {
		return nil, ErrScoresRequired
	}

	var winnerID *int
	switch {
	case input.Team1Score > input.Team2Score:
		winnerID = game.Team1ID
	case input.Team2Score > input.Team1Score:
		winnerID = game.Team2ID
	default:
		// Ties are meaningless in elimination play; round robin and
		// league record them as drawn games.
		if match.Format.IsElimination() {
			return nil, ErrTieNotAllowed
		}
	}

	now := time.Now()
	if err := s.gameRepo.RecordResult(ctx, gameID, &input.Team1Score, &input.Team2Score, winnerID, now); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}

	game, err = s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "game result recorded",
		slog.Int("match_id", matchID),
		slog.Int("game_id", gameID),
		slog.Int("round", game.Round),
		slog.Int("game_number", game.GameNumber),
		slog.Int("team1_score", input.Team1Score),
		slog.Int("team2_score", input.Team2Score))

	if match.Format.IsElimination() && winnerID != nil {
		s.advanceWinner(ctx, match, game, *winnerID)
	}

	s.hub.BroadcastToRoom(matchRoom(matchID), brackets.Event{
		Type: brackets.EventMatchResult,
		Payload: map[string]interface{}{
			"match_id":    matchID,
			"game_id":     gameID,
			"round":       game.Round,
			"game_number": game.GameNumber,
			"winner_id":   game.WinnerID,
		},
	})

	return game, nil
}

// advanceWinner places the winner into the next game's slot, then walks any
// structural byes the placement uncovers. Each slot write touches only its
// own column, so two feeder games finishing at once cannot clobber each
// other.
func (s *gameService) advanceWinner(ctx context.Context, match *models.Match, game *models.Game, winnerID int) {
	ref := brackets.GameRef{Round: game.Round, GameNumber: game.GameNumber}
	teamID := winnerID

	for {
		next, slot := brackets.NextSlot(ref)

		target, err := s.gameRepo.GetByPosition(ctx, match.ID, next.Round, next.GameNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrGameNotFound) {
				// No next game: this was the final.
				break
			}
			s.logProgressionFailure(ctx, match.ID, ref, err)
			return
		}

		if err := s.gameRepo.SetTeamSlot(ctx, match.ID, next.Round, next.GameNumber, slot, teamID); err != nil {
			s.logProgressionFailure(ctx, match.ID, ref, err)
			return
		}

		// current_round moves once the feeding round has no unfinished
		// games left.
		incomplete, err := s.gameRepo.CountIncompleteInRound(ctx, match.ID, ref.Round)
		if err != nil {
			s.logProgressionFailure(ctx, match.ID, ref, err)
			return
		}
		if incomplete == 0 {
			if err := s.matchRepo.RaiseCurrentRound(ctx, nil, match.ID, next.Round); err != nil {
				s.logProgressionFailure(ctx, match.ID, ref, err)
				return
			}
		}

		// A later-round game whose other slot has no feeder is a
		// structural bye: the placed team advances immediately.
		otherHasFeeder, err := s.slotHasFeeder(ctx, match.ID, next, otherSlot(slot))
		if err != nil {
			s.logProgressionFailure(ctx, match.ID, ref, err)
			return
		}
		if otherHasFeeder {
			break
		}

		now := time.Now()
		if err := s.gameRepo.RecordResult(ctx, target.ID, nil, nil, &teamID, now); err != nil {
			s.logProgressionFailure(ctx, match.ID, ref, err)
			return
		}
		s.logger.InfoContext(ctx, "bye advanced",
			slog.Int("match_id", match.ID),
			slog.Int("round", next.Round),
			slog.Int("game_number", next.GameNumber),
			slog.Int("team_id", teamID))

		ref = next
	}
}

// slotHasFeeder reports whether a feeder game exists for the given slot of a
// game, or the slot is already filled. Slot 1 is fed by game 2g-1 of the
// previous round, slot 2 by game 2g.
func (s *gameService) slotHasFeeder(ctx context.Context, matchID int, ref brackets.GameRef, slot int) (bool, error) {
	target, err := s.gameRepo.GetByPosition(ctx, matchID, ref.Round, ref.GameNumber)
	if err != nil {
		return false, err
	}
	if slot == 1 && target.Team1ID != nil {
		return true, nil
	}
	if slot == 2 && target.Team2ID != nil {
		return true, nil
	}

	feeder := 2 * ref.GameNumber
	if slot == 1 {
		feeder = 2*ref.GameNumber - 1
	}
	count, err := s.gameRepo.CountByMatchAndRound(ctx, matchID, ref.Round-1)
	if err != nil {
		return false, err
	}
	return feeder <= count, nil
}

func otherSlot(slot int) int {
	if slot == 1 {
		return 2
	}
	return 1
}

func (s *gameService) logProgressionFailure(ctx context.Context, matchID int, ref brackets.GameRef, err error) {
	s.logger.ErrorContext(ctx, "winner progression failed, bracket repairable by re-recording the score",
		slog.Int("match_id", matchID),
		slog.Int("round", ref.Round),
		slog.Int("game_number", ref.GameNumber),
		slog.Any("error", err))
}

func (s *gameService) ListByMatch(ctx context.Context, matchID int, round *int) ([]*models.Game, error) {
	if _, err := s.matchRepo.GetByID(ctx, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return s.gameRepo.ListByMatch(ctx, matchID, round, nil)
}
