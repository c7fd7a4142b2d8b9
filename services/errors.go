package services

import "errors"

// Shared errors surfaced across services and mapped onto HTTP statuses by
// the handlers package.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Lookup failures with entity context.
	ErrMatchNotFound       = errors.New("match not found")
	ErrGameNotFound        = errors.New("game not found")
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrInviteNotFound      = errors.New("invite not found")

	// Authorization.
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
	ErrCaptainActionForbidden = errors.New("only the team captain can perform this action")

	// Status state machine.
	ErrInvalidStatusTransition = errors.New("invalid match status transition")
	ErrNoOpTransition          = errors.New("match already has the requested status")
	ErrPreconditionNotMet      = errors.New("transition precondition not met")

	// Participant registry.
	ErrDuplicateApplication  = errors.New("team already has an open application for this match")
	ErrParticipantNotPending = errors.New("participant application is no longer pending")
	ErrRegistrationClosed    = errors.New("match registration is not open")
	ErrMatchLocked           = errors.New("match status forbids this mutation")
	ErrMatchFull             = errors.New("match has reached its participant limit")

	// Scores.
	ErrScoresRequired = errors.New("both scores are required and must be non-negative")
	ErrTieNotAllowed  = errors.New("tie results are not allowed in elimination formats")
	ErrGameCompleted  = errors.New("game already has a recorded result")
	ErrGameNotReady   = errors.New("game is missing a team and cannot be scored")

	// Validation.
	ErrValidationFailed        = errors.New("validation failed")
	ErrMatchTitleRequired      = errors.New("match title is required")
	ErrMatchInvalidFormat      = errors.New("invalid match format provided")
	ErrMatchInvalidStatus      = errors.New("invalid match status provided")
	ErrMatchInvalidCapacity    = errors.New("match max participants must be at least 2")
	ErrMatchInvalidDateRange   = errors.New("match end date must be after start date")
	ErrMatchInvalidDeadline    = errors.New("registration deadline cannot be after the start date")
	ErrMatchUpdateNotAllowed   = errors.New("match details can no longer be updated")
	ErrMatchDeletionNotAllowed = errors.New("match cannot be deleted in its current state")
	ErrFormatUnsupported       = errors.New("bracket generation is not supported for this format")
	ErrTeamNameRequired        = errors.New("team name is required")

	// Conflicts.
	ErrMatchTitleConflict = errors.New("match title already exists for this creator")
	ErrTeamNameConflict   = errors.New("team name is already in use")
	ErrTeamInUse          = errors.New("team has open match participations")
	ErrMatchInUse         = errors.New("match has approved participants or recorded games")

	// Invites.
	ErrInviteExpired = errors.New("invite has expired")
)
