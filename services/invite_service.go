package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/repositories"
	"github.com/google/uuid"
)

const inviteTTL = 72 * time.Hour

type InviteService interface {
	// CreateInvite issues a single-use join token for a team. Captain only.
	CreateInvite(ctx context.Context, teamID, requesterID int) (*models.Invite, error)
	// ResolveInvite validates a token and returns the team it belongs to.
	// Expired invites are removed on sight.
	ResolveInvite(ctx context.Context, token string) (*models.Team, error)
	RevokeInvite(ctx context.Context, teamID, requesterID int, token string) error
}

type inviteService struct {
	inviteRepo repositories.InviteRepository
	teamRepo   repositories.TeamRepository
	logger     *slog.Logger
}

func NewInviteService(inviteRepo repositories.InviteRepository, teamRepo repositories.TeamRepository, logger *slog.Logger) InviteService {
	return &inviteService{inviteRepo: inviteRepo, teamRepo: teamRepo, logger: logger}
}

func (s *inviteService) CreateInvite(ctx context.Context, teamID, requesterID int) (*models.Invite, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if team.CaptainID != requesterID {
		return nil, ErrCaptainActionForbidden
	}

	invite := &models.Invite{
		TeamID:    teamID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(inviteTTL),
	}
	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "invite created",
		slog.Int("team_id", teamID),
		slog.Int("invite_id", invite.ID))
	return invite, nil
}

func (s *inviteService) ResolveInvite(ctx context.Context, token string) (*models.Team, error) {
	invite, err := s.inviteRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}

	if time.Now().After(invite.ExpiresAt) {
		if delErr := s.inviteRepo.Delete(ctx, invite.ID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove expired invite",
				slog.Int("invite_id", invite.ID), slog.Any("error", delErr))
		}
		return nil, ErrInviteExpired
	}

	team, err := s.teamRepo.GetByID(ctx, invite.TeamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return team, nil
}

func (s *inviteService) RevokeInvite(ctx context.Context, teamID, requesterID int, token string) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	if team.CaptainID != requesterID {
		return ErrCaptainActionForbidden
	}

	invite, err := s.inviteRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return ErrInviteNotFound
		}
		return err
	}
	if invite.TeamID != teamID {
		return ErrInviteNotFound
	}
	return s.inviteRepo.Delete(ctx, invite.ID)
}
