package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dosada05/the-match/brackets"
	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/repositories"
	"github.com/Dosada05/the-match/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// allowedTransitions is the full lifecycle graph. completed and cancelled
// are terminal. Transitions only ever move forward.
var allowedTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchStatusDraft:        {models.MatchStatusRegistration, models.MatchStatusCancelled},
	models.MatchStatusRegistration: {models.MatchStatusInProgress, models.MatchStatusCancelled},
	models.MatchStatusInProgress:   {models.MatchStatusCompleted, models.MatchStatusCancelled},
	models.MatchStatusCompleted:    {},
	models.MatchStatusCancelled:    {},
}

func allowedTargets(from models.MatchStatus) []models.MatchStatus {
	return allowedTransitions[from]
}

func isTransitionAllowed(from, to models.MatchStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// minApprovedParticipants is the floor for starting any format.
const minApprovedParticipants = 2

type CreateMatchInput struct {
	Title                string                 `json:"title"`
	Description          *string                `json:"description"`
	Format               models.MatchFormat     `json:"format"`
	Status               *models.MatchStatus    `json:"status"`
	MaxParticipants      *int                   `json:"max_participants"`
	RegistrationDeadline *time.Time             `json:"registration_deadline"`
	StartDate            *time.Time             `json:"start_date"`
	EndDate              *time.Time             `json:"end_date"`
	Settings             map[string]interface{} `json:"settings"`
}

type UpdateMatchDetailsInput struct {
	Title                *string    `json:"title"`
	Description          *string    `json:"description"`
	MaxParticipants      *int       `json:"max_participants"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	StartDate            *time.Time `json:"start_date"`
	EndDate              *time.Time `json:"end_date"`
}

type TransitionInput struct {
	Status models.MatchStatus `json:"status"`
	Reason *string            `json:"reason"`
	// Force completes a match even when final-round games are still
	// undecided (the explicit override of the completion precondition).
	Force bool `json:"force"`
}

type TransitionResult struct {
	Match *models.Match      `json:"data"`
	From  models.MatchStatus `json:"from"`
	To    models.MatchStatus `json:"to"`
}

// StatusReport is the affordance payload behind GET /matches/{id}/status:
// everything a client needs to render which transitions are available and
// why the blocked ones are blocked.
type StatusReport struct {
	Status        models.MatchStatus   `json:"status"`
	AllowedNext   []models.MatchStatus `json:"allowed_next"`
	ApprovedCount int                  `json:"approved_count"`
	PendingCount  int                  `json:"pending_count"`
	CanStart      bool                 `json:"can_start"`
	CanComplete   bool                 `json:"can_complete"`
	Blockers      []string             `json:"blockers,omitempty"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, creatorID int, input CreateMatchInput) (*models.Match, error)
	GetMatchByID(ctx context.Context, id int) (*models.Match, error)
	ListMatches(ctx context.Context, filter repositories.ListMatchesFilter) ([]models.Match, error)
	UpdateMatchDetails(ctx context.Context, id, requesterID int, input UpdateMatchDetailsInput) (*models.Match, error)
	DeleteMatch(ctx context.Context, id, requesterID int) error
	Transition(ctx context.Context, id, requesterID int, input TransitionInput) (*TransitionResult, error)
	GetStatusReport(ctx context.Context, id int) (*StatusReport, error)
	UploadLogo(ctx context.Context, id, requesterID int, contentType string, body io.Reader) (*models.Match, error)
}

type matchService struct {
	tx              repositories.TxRunner
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	gameRepo        repositories.GameRepository
	teamRepo        repositories.TeamRepository
	bracketService  BracketService
	uploader        storage.FileUploader
	hub             *brackets.Hub
	logger          *slog.Logger
}

func NewMatchService(
	tx repositories.TxRunner,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	gameRepo repositories.GameRepository,
	teamRepo repositories.TeamRepository,
	bracketService BracketService,
	uploader storage.FileUploader,
	hub *brackets.Hub,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		gameRepo:        gameRepo,
		teamRepo:        teamRepo,
		bracketService:  bracketService,
		uploader:        uploader,
		hub:             hub,
		logger:          logger,
	}
}

func (s *matchService) CreateMatch(ctx context.Context, creatorID int, input CreateMatchInput) (*models.Match, error) {
	if input.Title == "" {
		return nil, ErrMatchTitleRequired
	}
	if !isValidMatchFormat(input.Format) {
		return nil, fmt.Errorf("%w: %q", ErrMatchInvalidFormat, input.Format)
	}
	if input.MaxParticipants != nil && *input.MaxParticipants < minApprovedParticipants {
		return nil, ErrMatchInvalidCapacity
	}
	if err := validateMatchDates(input.RegistrationDeadline, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	status := models.MatchStatusDraft
	if input.Status != nil {
		// Matches can be opened for registration immediately.
		if *input.Status != models.MatchStatusDraft && *input.Status != models.MatchStatusRegistration {
			return nil, fmt.Errorf("%w: new matches start as draft or registration", ErrMatchInvalidStatus)
		}
		status = *input.Status
	}

	match := &models.Match{
		Title:                input.Title,
		Description:          input.Description,
		Format:               input.Format,
		Status:               status,
		CreatorID:            creatorID,
		MaxParticipants:      input.MaxParticipants,
		RegistrationDeadline: input.RegistrationDeadline,
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		SettingsMap:          input.Settings,
	}
	if err := match.EncodeSettings(); err != nil {
		return nil, fmt.Errorf("%w: settings are not serializable: %v", ErrValidationFailed, err)
	}

	if err := s.matchRepo.Create(ctx, match); err != nil {
		if errors.Is(err, repositories.ErrMatchTitleConflict) {
			return nil, ErrMatchTitleConflict
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "match created",
		slog.Int("match_id", match.ID),
		slog.Int("creator_id", creatorID),
		slog.String("format", string(match.Format)),
		slog.String("status", string(match.Status)))

	populateMatchLogoURL(match, s.uploader)
	return match, nil
}

// GetMatchByID loads the match plus its participants and games in parallel.
func (s *matchService) GetMatchByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		participants, err := s.participantRepo.ListByMatch(gCtx, id, nil, true)
		if err != nil {
			return fmt.Errorf("failed to load participants for match %d: %w", id, err)
		}
		for _, p := range participants {
			populateTeamLogoURL(p.Team, s.uploader)
		}
		match.Participants = participantsToValues(participants)
		return nil
	})

	g.Go(func() error {
		games, err := s.gameRepo.ListByMatch(gCtx, id, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to load games for match %d: %w", id, err)
		}
		match.Games = gamesToValues(games)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.attachGameTeams(ctx, match); err != nil {
		return nil, err
	}

	if err := match.DecodeSettings(); err != nil {
		s.logger.WarnContext(ctx, "match settings column is not valid JSON",
			slog.Int("match_id", id), slog.Any("error", err))
	}
	populateMatchLogoURL(match, s.uploader)
	return match, nil
}

// attachGameTeams resolves the team entities referenced by the loaded games
// in one batch lookup.
func (s *matchService) attachGameTeams(ctx context.Context, match *models.Match) error {
	idSet := make(map[int]struct{})
	for i := range match.Games {
		if id := match.Games[i].Team1ID; id != nil {
			idSet[*id] = struct{}{}
		}
		if id := match.Games[i].Team2ID; id != nil {
			idSet[*id] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return nil
	}

	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	teams, err := s.teamRepo.ListByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load teams for match %d games: %w", match.ID, err)
	}
	for _, team := range teams {
		populateTeamLogoURL(team, s.uploader)
	}
	for i := range match.Games {
		game := &match.Games[i]
		if game.Team1ID != nil {
			game.Team1 = teams[*game.Team1ID]
		}
		if game.Team2ID != nil {
			game.Team2 = teams[*game.Team2ID]
		}
	}
	return nil
}

func (s *matchService) ListMatches(ctx context.Context, filter repositories.ListMatchesFilter) ([]models.Match, error) {
	matches, err := s.matchRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		populateMatchLogoURL(&matches[i], s.uploader)
	}
	return matches, nil
}

func (s *matchService) UpdateMatchDetails(ctx context.Context, id, requesterID int, input UpdateMatchDetailsInput) (*models.Match, error) {
	match, err := s.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.CreatorID != requesterID {
		return nil, ErrForbiddenOperation
	}
	if match.Status != models.MatchStatusDraft && match.Status != models.MatchStatusRegistration {
		return nil, ErrMatchUpdateNotAllowed
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, ErrMatchTitleRequired
		}
		match.Title = *input.Title
	}
	if input.Description != nil {
		match.Description = input.Description
	}
	if input.MaxParticipants != nil {
		if *input.MaxParticipants < minApprovedParticipants {
			return nil, ErrMatchInvalidCapacity
		}
		match.MaxParticipants = input.MaxParticipants
	}
	if input.RegistrationDeadline != nil {
		match.RegistrationDeadline = input.RegistrationDeadline
	}
	if input.StartDate != nil {
		match.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		match.EndDate = input.EndDate
	}
	if err := validateMatchDates(match.RegistrationDeadline, match.StartDate, match.EndDate); err != nil {
		return nil, err
	}

	if err := s.matchRepo.Update(ctx, match); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMatchNotFound):
			return nil, ErrMatchNotFound
		case errors.Is(err, repositories.ErrMatchTitleConflict):
			return nil, ErrMatchTitleConflict
		}
		return nil, err
	}

	populateMatchLogoURL(match, s.uploader)
	return match, nil
}

func (s *matchService) DeleteMatch(ctx context.Context, id, requesterID int) error {
	match, err := s.getMatch(ctx, id)
	if err != nil {
		return err
	}
	if match.CreatorID != requesterID {
		return ErrForbiddenOperation
	}
	// A match is never deleted once it is running, finished, or has
	// approved participants.
	if match.Status == models.MatchStatusInProgress || match.Status == models.MatchStatusCompleted {
		return ErrMatchDeletionNotAllowed
	}
	approved, err := s.participantRepo.CountByMatchAndStatus(ctx, id, models.ParticipantApproved)
	if err != nil {
		return err
	}
	if approved > 0 {
		return ErrMatchDeletionNotAllowed
	}

	if err := s.matchRepo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMatchNotFound):
			return ErrMatchNotFound
		case errors.Is(err, repositories.ErrMatchInUse):
			return ErrMatchInUse
		}
		return err
	}
	return nil
}

func (s *matchService) Transition(ctx context.Context, id, requesterID int, input TransitionInput) (*TransitionResult, error) {
	match, err := s.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.CreatorID != requesterID {
		return nil, ErrForbiddenOperation
	}
	if !isValidMatchStatus(input.Status) {
		return nil, fmt.Errorf("%w: %q", ErrMatchInvalidStatus, input.Status)
	}

	from := match.Status
	to := input.Status

	if to == from {
		return nil, fmt.Errorf("%w: %s", ErrNoOpTransition, from)
	}
	if !isTransitionAllowed(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s (allowed from %s: %v)",
			ErrInvalidStatusTransition, from, to, from, allowedTargets(from))
	}

	switch to {
	case models.MatchStatusInProgress:
		err = s.startMatch(ctx, match)
	case models.MatchStatusCompleted:
		err = s.completeMatch(ctx, match, input.Force)
	case models.MatchStatusCancelled:
		err = s.cancelMatch(ctx, match, requesterID, input.Reason)
	default:
		err = s.matchRepo.UpdateStatus(ctx, nil, match.ID, from, to)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			// A concurrent transition won; re-read and report the graph
			// error against the fresh state.
			fresh, freshErr := s.getMatch(ctx, id)
			if freshErr != nil {
				return nil, freshErr
			}
			if fresh.Status == to {
				return nil, fmt.Errorf("%w: %s", ErrNoOpTransition, to)
			}
			return nil, fmt.Errorf("%w: %s -> %s (allowed from %s: %v)",
				ErrInvalidStatusTransition, fresh.Status, to, fresh.Status, allowedTargets(fresh.Status))
		}
		return nil, err
	}

	match, err = s.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	// Append-only audit record of the successful transition.
	s.logger.InfoContext(ctx, "match status transition",
		slog.Int("match_id", id),
		slog.Int("actor_id", requesterID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("reason", derefString(input.Reason)))

	s.hub.BroadcastToRoom(matchRoom(id), brackets.Event{
		Type: brackets.EventStatusChanged,
		Payload: map[string]interface{}{
			"match_id": id,
			"from":     from,
			"to":       to,
		},
	})

	populateMatchLogoURL(match, s.uploader)
	return &TransitionResult{Match: match, From: from, To: to}, nil
}

// startMatch performs the registration -> in_progress transition: the
// status CAS and bracket generation share one transaction, with the match
// row locked, so a duplicate concurrent request can neither flip the
// status twice nor produce a second bracket.
func (s *matchService) startMatch(ctx context.Context, match *models.Match) error {
	approved, err := s.participantRepo.CountByMatchAndStatus(ctx, match.ID, models.ParticipantApproved)
	if err != nil {
		return err
	}
	if approved < minApprovedParticipants {
		return fmt.Errorf("%w: %d approved participants, need at least %d",
			ErrPreconditionNotMet, approved, minApprovedParticipants)
	}

	var games []*models.Game
	err = s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		locked, err := s.matchRepo.GetByIDForUpdate(ctx, exec, match.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if locked.Status != models.MatchStatusRegistration {
			return repositories.ErrMatchStatusConflict
		}

		if err := s.matchRepo.UpdateStatus(ctx, exec, match.ID, models.MatchStatusRegistration, models.MatchStatusInProgress); err != nil {
			return err
		}
		if err := s.matchRepo.SetStartDateIfUnset(ctx, exec, match.ID, time.Now()); err != nil {
			return err
		}

		games, err = s.bracketService.GenerateForMatch(ctx, exec, locked)
		return err
	})
	if err != nil {
		return err
	}

	if len(games) > 0 {
		s.hub.BroadcastToRoom(matchRoom(match.ID), brackets.Event{
			Type:    brackets.EventBracketCreated,
			Payload: map[string]interface{}{"match_id": match.ID, "games": len(games)},
		})
	}
	return nil
}

func (s *matchService) completeMatch(ctx context.Context, match *models.Match, force bool) error {
	if !force {
		finalRound, err := s.gameRepo.MaxRound(ctx, match.ID)
		if err != nil {
			return err
		}
		if finalRound > 0 {
			undecided, err := s.gameRepo.CountUndecidedInRound(ctx, match.ID, finalRound)
			if err != nil {
				return err
			}
			if undecided > 0 {
				return fmt.Errorf("%w: %d final-round games without a winner",
					ErrPreconditionNotMet, undecided)
			}
		}
	}

	if err := s.matchRepo.UpdateStatus(ctx, nil, match.ID, models.MatchStatusInProgress, models.MatchStatusCompleted); err != nil {
		return err
	}
	return s.matchRepo.SetEndDateIfUnset(ctx, nil, match.ID, time.Now())
}

func (s *matchService) cancelMatch(ctx context.Context, match *models.Match, actorID int, reason *string) error {
	if err := match.DecodeSettings(); err != nil {
		s.logger.WarnContext(ctx, "match settings column is not valid JSON, resetting",
			slog.Int("match_id", match.ID), slog.Any("error", err))
	}
	match.SettingsMap["cancellation"] = map[string]interface{}{
		"reason":       derefString(reason),
		"cancelled_by": actorID,
		"cancelled_at": time.Now().Format(time.RFC3339),
	}
	if err := match.EncodeSettings(); err != nil {
		return fmt.Errorf("failed to encode cancellation settings: %w", err)
	}

	// Status flip and audit record land in one CAS statement.
	return s.matchRepo.CancelWithAudit(ctx, nil, match.ID, match.Status, match.Settings)
}

func (s *matchService) GetStatusReport(ctx context.Context, id int) (*StatusReport, error) {
	match, err := s.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Status:      match.Status,
		AllowedNext: allowedTargets(match.Status),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := s.participantRepo.CountByMatchAndStatus(gCtx, id, models.ParticipantApproved)
		if err != nil {
			return err
		}
		report.ApprovedCount = count
		return nil
	})
	g.Go(func() error {
		count, err := s.participantRepo.CountByMatchAndStatus(gCtx, id, models.ParticipantPending)
		if err != nil {
			return err
		}
		report.PendingCount = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch match.Status {
	case models.MatchStatusRegistration:
		report.CanStart = report.ApprovedCount >= minApprovedParticipants
		if !report.CanStart {
			report.Blockers = append(report.Blockers,
				fmt.Sprintf("need at least %d approved participants, have %d",
					minApprovedParticipants, report.ApprovedCount))
		}
	case models.MatchStatusInProgress:
		finalRound, err := s.gameRepo.MaxRound(ctx, id)
		if err != nil {
			return nil, err
		}
		report.CanComplete = true
		if finalRound > 0 {
			undecided, err := s.gameRepo.CountUndecidedInRound(ctx, id, finalRound)
			if err != nil {
				return nil, err
			}
			if undecided > 0 {
				report.CanComplete = false
				report.Blockers = append(report.Blockers,
					fmt.Sprintf("%d final-round games without a winner", undecided))
			}
		}
	}

	return report, nil
}

func (s *matchService) UploadLogo(ctx context.Context, id, requesterID int, contentType string, body io.Reader) (*models.Match, error) {
	match, err := s.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.CreatorID != requesterID {
		return nil, ErrForbiddenOperation
	}

	ext, err := ExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("matches/%d/logo-%s%s", id, uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload match logo: %w", err)
	}

	oldKey := match.LogoKey
	if err := s.matchRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != "" {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete previous match logo",
				slog.Int("match_id", id), slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	match.LogoKey = &key
	populateMatchLogoURL(match, s.uploader)
	return match, nil
}

func (s *matchService) getMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}
