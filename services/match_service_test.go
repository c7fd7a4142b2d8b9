package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/the-match/brackets"
	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type matchServiceFixture struct {
	txRunner        *fakeTxRunner
	matchRepo       *fakeMatchRepo
	participantRepo *fakeParticipantRepo
	gameRepo        *fakeGameRepo
	teamRepo        *fakeTeamRepo
	uploader        *fakeUploader
	service         MatchService
}

func newMatchServiceFixture() *matchServiceFixture {
	f := &matchServiceFixture{
		txRunner:        &fakeTxRunner{},
		matchRepo:       newFakeMatchRepo(),
		participantRepo: newFakeParticipantRepo(),
		gameRepo:        newFakeGameRepo(),
		teamRepo:        newFakeTeamRepo(),
		uploader:        newFakeUploader(),
	}
	logger := testLogger()
	bracketSvc := NewBracketService(f.participantRepo, f.gameRepo, logger)
	f.service = NewMatchService(f.txRunner, f.matchRepo, f.participantRepo, f.gameRepo, f.teamRepo, bracketSvc, f.uploader, brackets.NewHub(), logger)
	return f
}

func (f *matchServiceFixture) seedMatch(creatorID int, status models.MatchStatus) *models.Match {
	return f.matchRepo.add(&models.Match{
		Title:     "Spring Cup",
		Format:    models.FormatSingleElimination,
		Status:    status,
		CreatorID: creatorID,
	})
}

func (f *matchServiceFixture) approveTeams(t *testing.T, matchID int, teamIDs ...int) {
	t.Helper()
	ctx := context.Background()
	for _, teamID := range teamIDs {
		p := &models.Participant{MatchID: matchID, TeamID: teamID, Status: models.ParticipantPending}
		require.NoError(t, f.participantRepo.Create(ctx, p))
		require.NoError(t, f.participantRepo.Respond(ctx, p.ID, models.ParticipantApproved, 1, nil))
	}
}

func TestCreateMatch_Validation(t *testing.T) {
	badCapacity := 1
	deadline := time.Now().Add(48 * time.Hour)
	start := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name    string
		input   CreateMatchInput
		wantErr error
	}{
		{
			name:    "missing title",
			input:   CreateMatchInput{Format: models.FormatSingleElimination},
			wantErr: ErrMatchTitleRequired,
		},
		{
			name:    "unknown format",
			input:   CreateMatchInput{Title: "Cup", Format: "ladder"},
			wantErr: ErrMatchInvalidFormat,
		},
		{
			name:    "capacity below minimum",
			input:   CreateMatchInput{Title: "Cup", Format: models.FormatSingleElimination, MaxParticipants: &badCapacity},
			wantErr: ErrMatchInvalidCapacity,
		},
		{
			name: "deadline after start date",
			input: CreateMatchInput{
				Title: "Cup", Format: models.FormatSingleElimination,
				RegistrationDeadline: &deadline, StartDate: &start,
			},
			wantErr: ErrMatchInvalidDeadline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMatchServiceFixture()
			_, err := f.service.CreateMatch(context.Background(), 1, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateMatch_DefaultsToDraft(t *testing.T) {
	f := newMatchServiceFixture()

	match, err := f.service.CreateMatch(context.Background(), 7, CreateMatchInput{
		Title:  "Autumn Open",
		Format: models.FormatRoundRobin,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusDraft, match.Status)
	assert.Equal(t, 7, match.CreatorID)
	assert.NotZero(t, match.ID)
}

func TestCreateMatch_RejectsNonInitialStatus(t *testing.T) {
	f := newMatchServiceFixture()
	inProgress := models.MatchStatusInProgress

	_, err := f.service.CreateMatch(context.Background(), 1, CreateMatchInput{
		Title:  "Cup",
		Format: models.FormatSingleElimination,
		Status: &inProgress,
	})
	assert.ErrorIs(t, err, ErrMatchInvalidStatus)
}

func TestTransition_OnlyCreator(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusDraft)

	_, err := f.service.Transition(context.Background(), match.ID, 99, TransitionInput{
		Status: models.MatchStatusRegistration,
	})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestTransition_NoOp(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusRegistration)

	_, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusRegistration,
	})
	assert.ErrorIs(t, err, ErrNoOpTransition)
}

func TestTransition_GraphRejectsSkipsAndTerminalExits(t *testing.T) {
	tests := []struct {
		name string
		from models.MatchStatus
		to   models.MatchStatus
	}{
		{"draft to in_progress", models.MatchStatusDraft, models.MatchStatusInProgress},
		{"draft to completed", models.MatchStatusDraft, models.MatchStatusCompleted},
		{"registration to completed", models.MatchStatusRegistration, models.MatchStatusCompleted},
		{"registration to draft", models.MatchStatusRegistration, models.MatchStatusDraft},
		{"completed to in_progress", models.MatchStatusCompleted, models.MatchStatusInProgress},
		{"cancelled to registration", models.MatchStatusCancelled, models.MatchStatusRegistration},
		{"completed to cancelled", models.MatchStatusCompleted, models.MatchStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMatchServiceFixture()
			match := f.seedMatch(1, tt.from)

			_, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{Status: tt.to})
			assert.ErrorIs(t, err, ErrInvalidStatusTransition)
		})
	}
}

func TestTransition_DraftToRegistration(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusDraft)

	result, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusRegistration,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusDraft, result.From)
	assert.Equal(t, models.MatchStatusRegistration, result.To)
	assert.Equal(t, models.MatchStatusRegistration, result.Match.Status)
}

func TestTransition_StartRequiresTwoApproved(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusRegistration)
	f.approveTeams(t, match.ID, 10)

	_, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusInProgress,
	})
	assert.ErrorIs(t, err, ErrPreconditionNotMet)

	stored, getErr := f.matchRepo.GetByID(context.Background(), match.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.MatchStatusRegistration, stored.Status, "failed precondition must not move the status")
}

func TestTransition_StartWithTwoApprovedGeneratesBracket(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusRegistration)
	f.approveTeams(t, match.ID, 10, 20)

	result, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusInProgress,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusInProgress, result.Match.Status)
	assert.NotNil(t, result.Match.StartDate, "starting must stamp the start date")
	assert.Equal(t, 1, f.txRunner.calls, "status flip and bracket generation share one transaction")

	games, err := f.gameRepo.ListByMatch(context.Background(), match.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.NotNil(t, games[0].Team1ID)
	require.NotNil(t, games[0].Team2ID)
	assert.Equal(t, 10, *games[0].Team1ID)
	assert.Equal(t, 20, *games[0].Team2ID)
}

func TestTransition_RepeatedStartDoesNotRegenerate(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusRegistration)
	f.approveTeams(t, match.ID, 10, 20)

	_, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusInProgress,
	})
	require.NoError(t, err)

	_, err = f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusInProgress,
	})
	assert.ErrorIs(t, err, ErrNoOpTransition)

	games, listErr := f.gameRepo.ListByMatch(context.Background(), match.ID, nil, nil)
	require.NoError(t, listErr)
	assert.Len(t, games, 1, "the repeated start must not produce a second bracket")
}

func TestTransition_CompleteBlockedByUndecidedFinal(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusInProgress)

	team1, team2 := 10, 20
	winner := team1
	require.NoError(t, f.gameRepo.Create(context.Background(), nil, &models.Game{
		MatchID: match.ID, Round: 1, GameNumber: 1,
		Team1ID: &team1, Team2ID: &team2, WinnerID: &winner,
		Status: models.GameStatusCompleted,
	}))
	require.NoError(t, f.gameRepo.Create(context.Background(), nil, &models.Game{
		MatchID: match.ID, Round: 2, GameNumber: 1,
		Team1ID: &winner, Status: models.GameStatusScheduled,
	}))

	_, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusCompleted,
	})
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
}

func TestTransition_ForceCompletesDespiteUndecidedFinal(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusInProgress)

	team1 := 10
	require.NoError(t, f.gameRepo.Create(context.Background(), nil, &models.Game{
		MatchID: match.ID, Round: 1, GameNumber: 1,
		Team1ID: &team1, Status: models.GameStatusScheduled,
	}))

	result, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusCompleted,
		Force:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusCompleted, result.Match.Status)
	assert.NotNil(t, result.Match.EndDate, "completion must stamp the end date")
}

func TestTransition_CompleteWithoutGames(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusInProgress)

	result, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, result.Match.Status)
}

func TestTransition_CancelRecordsAudit(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(4, models.MatchStatusRegistration)

	reason := "venue unavailable"
	result, err := f.service.Transition(context.Background(), match.ID, 4, TransitionInput{
		Status: models.MatchStatusCancelled,
		Reason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCancelled, result.Match.Status)

	require.NoError(t, result.Match.DecodeSettings())
	cancellation, ok := result.Match.SettingsMap["cancellation"].(map[string]interface{})
	require.True(t, ok, "cancellation audit record must be stored in settings")
	assert.Equal(t, reason, cancellation["reason"])
	assert.Equal(t, float64(4), cancellation["cancelled_by"])
}

func TestTransition_CancelLeavesNoAuditOnConflict(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusRegistration)
	f.matchRepo.updateStatusErr = repositories.ErrMatchStatusConflict

	reason := "rained out"
	_, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
		Status: models.MatchStatusCancelled,
		Reason: &reason,
	})
	require.Error(t, err)

	stored, getErr := f.matchRepo.GetByID(context.Background(), match.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.MatchStatusRegistration, stored.Status)
	assert.Nil(t, stored.Settings, "a lost cancel race must not write the audit record")
}

func TestTransition_CancellableFromEveryActiveStatus(t *testing.T) {
	for _, from := range []models.MatchStatus{
		models.MatchStatusDraft,
		models.MatchStatusRegistration,
		models.MatchStatusInProgress,
	} {
		t.Run(string(from), func(t *testing.T) {
			f := newMatchServiceFixture()
			match := f.seedMatch(1, from)

			result, err := f.service.Transition(context.Background(), match.ID, 1, TransitionInput{
				Status: models.MatchStatusCancelled,
			})
			require.NoError(t, err)
			assert.Equal(t, models.MatchStatusCancelled, result.Match.Status)
		})
	}
}

func TestUpdateMatchDetails_LockedAfterRegistration(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusInProgress)

	newTitle := "Renamed"
	_, err := f.service.UpdateMatchDetails(context.Background(), match.ID, 1, UpdateMatchDetailsInput{
		Title: &newTitle,
	})
	assert.ErrorIs(t, err, ErrMatchUpdateNotAllowed)
}

func TestDeleteMatch_RefusedWithApprovedParticipants(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusRegistration)
	f.approveTeams(t, match.ID, 10)

	err := f.service.DeleteMatch(context.Background(), match.ID, 1)
	assert.ErrorIs(t, err, ErrMatchDeletionNotAllowed)
}

func TestDeleteMatch_DraftWithoutParticipants(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusDraft)

	require.NoError(t, f.service.DeleteMatch(context.Background(), match.ID, 1))

	_, err := f.service.GetMatchByID(context.Background(), match.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestGetStatusReport(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusRegistration)

	report, err := f.service.GetStatusReport(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusRegistration, report.Status)
	assert.ElementsMatch(t, []models.MatchStatus{models.MatchStatusInProgress, models.MatchStatusCancelled}, report.AllowedNext)
	assert.False(t, report.CanStart)
	assert.NotEmpty(t, report.Blockers)

	f.approveTeams(t, match.ID, 10, 20)

	report, err = f.service.GetStatusReport(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ApprovedCount)
	assert.True(t, report.CanStart)
	assert.Empty(t, report.Blockers)
}

func TestGetMatchByID_LoadsParticipantsAndGames(t *testing.T) {
	f := newMatchServiceFixture()
	match := f.seedMatch(1, models.MatchStatusInProgress)
	f.approveTeams(t, match.ID, 10, 20)
	f.teamRepo.add(&models.Team{ID: 10, Name: "Reds"})
	f.teamRepo.add(&models.Team{ID: 20, Name: "Blues"})

	team1, team2 := 10, 20
	require.NoError(t, f.gameRepo.Create(context.Background(), nil, &models.Game{
		MatchID: match.ID, Round: 1, GameNumber: 1,
		Team1ID: &team1, Team2ID: &team2, Status: models.GameStatusScheduled,
	}))

	loaded, err := f.service.GetMatchByID(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Participants, 2)
	require.Len(t, loaded.Games, 1)
	require.NotNil(t, loaded.Games[0].Team1)
	require.NotNil(t, loaded.Games[0].Team2)
	assert.Equal(t, "Reds", loaded.Games[0].Team1.Name)
	assert.Equal(t, "Blues", loaded.Games[0].Team2.Name)
}
