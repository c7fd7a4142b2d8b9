package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/the-match/brackets"
	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/storage"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func matchRoom(matchID int) string {
	return brackets.MatchRoom(matchID)
}

func isValidMatchFormat(f models.MatchFormat) bool {
	switch f {
	case models.FormatSingleElimination, models.FormatDoubleElimination,
		models.FormatRoundRobin, models.FormatSwiss, models.FormatLeague:
		return true
	}
	return false
}

func isValidMatchStatus(s models.MatchStatus) bool {
	switch s {
	case models.MatchStatusDraft, models.MatchStatusRegistration,
		models.MatchStatusInProgress, models.MatchStatusCompleted, models.MatchStatusCancelled:
		return true
	}
	return false
}

func validateMatchDates(deadline, start, end *time.Time) error {
	if deadline != nil && start != nil && deadline.After(*start) {
		return fmt.Errorf("%w: deadline %s is after start %s", ErrMatchInvalidDeadline,
			deadline.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if start != nil && end != nil && !start.Before(*end) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrMatchInvalidDateRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func populateMatchLogoURL(match *models.Match, uploader storage.FileUploader) {
	if match != nil && match.LogoKey != nil && *match.LogoKey != "" && uploader != nil {
		if url := uploader.GetPublicURL(*match.LogoKey); url != "" {
			match.LogoURL = &url
		}
	}
}

func populateTeamLogoURL(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		if url := uploader.GetPublicURL(*team.LogoKey); url != "" {
			team.LogoURL = &url
		}
	}
}

func participantsToValues(slice []*models.Participant) []models.Participant {
	if slice == nil {
		return []models.Participant{}
	}
	result := make([]models.Participant, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}

func gamesToValues(slice []*models.Game) []models.Game {
	if slice == nil {
		return []models.Game{}
	}
	result := make([]models.Game, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}

// ExtensionFromContentType resolves the file extension used for uploaded
// logo objects.
func ExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type %q", contentType)
	}
}
