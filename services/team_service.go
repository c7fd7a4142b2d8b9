package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/repositories"
	"github.com/Dosada05/the-match/storage"
	"github.com/google/uuid"
)

type CreateTeamInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type UpdateTeamInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, captainID int, input CreateTeamInput) (*models.Team, error)
	GetTeamByID(ctx context.Context, id int) (*models.Team, error)
	UpdateTeam(ctx context.Context, id, requesterID int, input UpdateTeamInput) (*models.Team, error)
	DeleteTeam(ctx context.Context, id, requesterID int) error
	UploadLogo(ctx context.Context, id, requesterID int, contentType string, body io.Reader) (*models.Team, error)
}

type teamService struct {
	teamRepo repositories.TeamRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewTeamService(teamRepo repositories.TeamRepository, uploader storage.FileUploader, logger *slog.Logger) TeamService {
	return &teamService{teamRepo: teamRepo, uploader: uploader, logger: logger}
}

func (s *teamService) CreateTeam(ctx context.Context, captainID int, input CreateTeamInput) (*models.Team, error) {
	if input.Name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{
		Name:        input.Name,
		Description: input.Description,
		CaptainID:   captainID,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "team created",
		slog.Int("team_id", team.ID),
		slog.Int("captain_id", captainID))
	return team, nil
}

func (s *teamService) GetTeamByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.getTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, id, requesterID int, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.getTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if team.CaptainID != requesterID {
		return nil, ErrCaptainActionForbidden
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrTeamNameRequired
		}
		team.Name = *input.Name
	}
	if input.Description != nil {
		team.Description = input.Description
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, ErrTeamNotFound
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameConflict
		}
		return nil, err
	}

	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) DeleteTeam(ctx context.Context, id, requesterID int) error {
	team, err := s.getTeam(ctx, id)
	if err != nil {
		return err
	}
	if team.CaptainID != requesterID {
		return ErrCaptainActionForbidden
	}

	if err := s.teamRepo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNotFound):
			return ErrTeamNotFound
		case errors.Is(err, repositories.ErrTeamInUse):
			return ErrTeamInUse
		}
		return err
	}

	if team.LogoKey != nil && *team.LogoKey != "" {
		if delErr := s.uploader.Delete(ctx, *team.LogoKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete team logo after team removal",
				slog.Int("team_id", id), slog.String("key", *team.LogoKey), slog.Any("error", delErr))
		}
	}
	return nil
}

func (s *teamService) UploadLogo(ctx context.Context, id, requesterID int, contentType string, body io.Reader) (*models.Team, error) {
	team, err := s.getTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if team.CaptainID != requesterID {
		return nil, ErrCaptainActionForbidden
	}

	ext, err := ExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("teams/%d/logo-%s%s", id, uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}

	oldKey := team.LogoKey
	if err := s.teamRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != "" {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete previous team logo",
				slog.Int("team_id", id), slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	team.LogoKey = &key
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) getTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return team, nil
}
