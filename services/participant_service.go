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

type ApplyInput struct {
	TeamID int     `json:"team_id"`
	Notes  *string `json:"notes"`
}

type RespondInput struct {
	Status models.ParticipantStatus `json:"status"`
	Notes  *string                  `json:"notes"`
}

type ParticipantService interface {
	Apply(ctx context.Context, matchID, requesterID int, input ApplyInput) (*models.Participant, error)
	Respond(ctx context.Context, matchID, teamID, requesterID int, input RespondInput) (*models.Participant, error)
	Withdraw(ctx context.Context, matchID, teamID, requesterID int) error
	ListByMatch(ctx context.Context, matchID int, status *models.ParticipantStatus) ([]*models.Participant, error)
}

type participantService struct {
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	teamRepo        repositories.TeamRepository
	hub             *brackets.Hub
	logger          *slog.Logger
}

func NewParticipantService(
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	teamRepo repositories.TeamRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		teamRepo:        teamRepo,
		hub:             hub,
		logger:          logger,
	}
}

// Apply submits a team's application. Only the team captain can apply, and
// only while the match accepts registrations.
func (s *participantService) Apply(ctx context.Context, matchID, requesterID int, input ApplyInput) (*models.Participant, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	if match.Status != models.MatchStatusDraft && match.Status != models.MatchStatusRegistration {
		return nil, ErrRegistrationClosed
	}
	if match.RegistrationDeadline != nil && time.Now().After(*match.RegistrationDeadline) {
		return nil, ErrRegistrationClosed
	}

	team, err := s.teamRepo.GetByID(ctx, input.TeamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if team.CaptainID != requesterID {
		return nil, ErrCaptainActionForbidden
	}

	if match.MaxParticipants != nil {
		approved, err := s.participantRepo.CountByMatchAndStatus(ctx, matchID, models.ParticipantApproved)
		if err != nil {
			return nil, err
		}
		if approved >= *match.MaxParticipants {
			return nil, ErrMatchFull
		}
	}

	existing, err := s.participantRepo.FindOpenByMatchAndTeam(ctx, matchID, input.TeamID)
	if err != nil && !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateApplication
	}

	participant := &models.Participant{
		MatchID: matchID,
		TeamID:  input.TeamID,
		Status:  models.ParticipantPending,
		Notes:   input.Notes,
	}
	if err := s.participantRepo.Create(ctx, participant); err != nil {
		// The partial unique index is the authority under concurrent
		// applications; the lookup above is only a fast path.
		if errors.Is(err, repositories.ErrParticipantConflict) {
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "participant applied",
		slog.Int("match_id", matchID),
		slog.Int("team_id", input.TeamID),
		slog.Int("participant_id", participant.ID))

	participant.Team = team
	return participant, nil
}

// Respond approves or rejects a team's pending application. Only the match
// creator decides, and a decision is final: the CAS on status=pending makes
// a second respond call fail instead of overwriting the first.
func (s *participantService) Respond(ctx context.Context, matchID, teamID, requesterID int, input RespondInput) (*models.Participant, error) {
	if input.Status != models.ParticipantApproved && input.Status != models.ParticipantRejected {
		return nil, fmt.Errorf("%w: status must be approved or rejected, got %q", ErrValidationFailed, input.Status)
	}

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

	participant, err := s.participantRepo.FindOpenByMatchAndTeam(ctx, matchID, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	if participant.Status != models.ParticipantPending {
		return nil, ErrParticipantNotPending
	}

	if input.Status == models.ParticipantApproved {
		if match.MaxParticipants != nil {
			approved, err := s.participantRepo.CountByMatchAndStatus(ctx, matchID, models.ParticipantApproved)
			if err != nil {
				return nil, err
			}
			if approved >= *match.MaxParticipants {
				return nil, ErrMatchFull
			}
		}
	}

	if err := s.participantRepo.Respond(ctx, participant.ID, input.Status, requesterID, input.Notes); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotPending) {
			return nil, ErrParticipantNotPending
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "participant application decided",
		slog.Int("match_id", matchID),
		slog.Int("participant_id", participant.ID),
		slog.Int("responder_id", requesterID),
		slog.String("status", string(input.Status)))

	s.hub.BroadcastToRoom(matchRoom(matchID), brackets.Event{
		Type: brackets.EventParticipantDecided,
		Payload: map[string]interface{}{
			"match_id":       matchID,
			"participant_id": participant.ID,
			"team_id":        participant.TeamID,
			"status":         input.Status,
		},
	})

	return s.participantRepo.FindByID(ctx, participant.ID)
}

// Withdraw removes a team from a match. The team captain can withdraw their
// own team, the match creator can remove anyone. Approved teams can only
// leave while the match is still in registration.
func (s *participantService) Withdraw(ctx context.Context, matchID, teamID, requesterID int) error {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if match.Status == models.MatchStatusInProgress || match.Status == models.MatchStatusCompleted {
		return ErrMatchLocked
	}

	participant, err := s.participantRepo.FindOpenByMatchAndTeam(ctx, matchID, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}
	if participant.Status == models.ParticipantApproved &&
		match.Status != models.MatchStatusDraft && match.Status != models.MatchStatusRegistration {
		return ErrMatchLocked
	}

	if requesterID != match.CreatorID {
		team, err := s.teamRepo.GetByID(ctx, teamID)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return err
		}
		if team.CaptainID != requesterID {
			return ErrForbiddenOperation
		}
	}

	if err := s.participantRepo.Delete(ctx, participant.ID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}

	s.logger.InfoContext(ctx, "participant withdrawn",
		slog.Int("match_id", matchID),
		slog.Int("team_id", teamID),
		slog.Int("actor_id", requesterID))
	return nil
}

func (s *participantService) ListByMatch(ctx context.Context, matchID int, status *models.ParticipantStatus) ([]*models.Participant, error) {
	if _, err := s.matchRepo.GetByID(ctx, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown participant status %q", ErrValidationFailed, *status)
	}
	return s.participantRepo.ListByMatch(ctx, matchID, status, true)
}
