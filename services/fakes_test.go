package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Dosada05/the-match/models"
	"github.com/Dosada05/the-match/repositories"
	"github.com/Dosada05/the-match/storage"
)

// In-memory repository fakes. They mirror the behavior of the Postgres
// implementations closely enough for service-level tests: sentinel errors,
// compare-and-set semantics, approval ordering.

type fakeMatchRepo struct {
	nextID  int
	matches map[int]*models.Match

	updateStatusErr error
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) add(m *models.Match) *models.Match {
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	m.CreatedAt = time.Now()
	r.matches[m.ID] = m
	return m
}

func (r *fakeMatchRepo) Create(_ context.Context, m *models.Match) error {
	for _, existing := range r.matches {
		if existing.Title == m.Title && existing.CreatorID == m.CreatorID {
			return repositories.ErrMatchTitleConflict
		}
	}
	r.add(m)
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	clone := *m
	return &clone, nil
}

func (r *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeMatchRepo) List(_ context.Context, filter repositories.ListMatchesFilter) ([]models.Match, error) {
	ids := make([]int, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := make([]models.Match, 0)
	for _, id := range ids {
		m := r.matches[id]
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.CreatorID != nil && m.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Format != nil && m.Format != *filter.Format {
			continue
		}
		result = append(result, *m)
	}
	return result, nil
}

func (r *fakeMatchRepo) Update(_ context.Context, m *models.Match) error {
	if _, ok := r.matches[m.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	clone := *m
	r.matches[m.ID] = &clone
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.MatchStatus) error {
	if r.updateStatusErr != nil {
		return r.updateStatusErr
	}
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Status != from {
		return repositories.ErrMatchStatusConflict
	}
	m.Status = to
	return nil
}

func (r *fakeMatchRepo) SetStartDateIfUnset(_ context.Context, _ repositories.SQLExecutor, id int, t time.Time) error {
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.StartDate == nil {
		m.StartDate = &t
	}
	return nil
}

func (r *fakeMatchRepo) SetEndDateIfUnset(_ context.Context, _ repositories.SQLExecutor, id int, t time.Time) error {
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.EndDate == nil {
		m.EndDate = &t
	}
	return nil
}

func (r *fakeMatchRepo) UpdateSettings(_ context.Context, _ repositories.SQLExecutor, id int, settings *string) error {
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Settings = settings
	return nil
}

func (r *fakeMatchRepo) CancelWithAudit(_ context.Context, _ repositories.SQLExecutor, id int, from models.MatchStatus, settings *string) error {
	if r.updateStatusErr != nil {
		return r.updateStatusErr
	}
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Status != from {
		return repositories.ErrMatchStatusConflict
	}
	m.Status = models.MatchStatusCancelled
	m.Settings = settings
	return nil
}

func (r *fakeMatchRepo) RaiseCurrentRound(_ context.Context, _ repositories.SQLExecutor, id int, round int) error {
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if round > m.CurrentRound {
		m.CurrentRound = round
	}
	return nil
}

func (r *fakeMatchRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.LogoKey = logoKey
	return nil
}

func (r *fakeMatchRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(r.matches, id)
	return nil
}

type fakeParticipantRepo struct {
	nextID       int
	participants map[int]*models.Participant
	order        []int
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{nextID: 1, participants: make(map[int]*models.Participant)}
}

func (r *fakeParticipantRepo) Create(_ context.Context, p *models.Participant) error {
	for _, existing := range r.participants {
		if existing.MatchID == p.MatchID && existing.TeamID == p.TeamID &&
			existing.Status != models.ParticipantRejected {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.nextID
	r.nextID++
	p.AppliedAt = time.Now()
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

func (r *fakeParticipantRepo) FindByID(_ context.Context, id int) (*models.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *fakeParticipantRepo) FindOpenByMatchAndTeam(_ context.Context, matchID, teamID int) (*models.Participant, error) {
	for _, p := range r.participants {
		if p.MatchID == matchID && p.TeamID == teamID && p.Status != models.ParticipantRejected {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByMatch(_ context.Context, matchID int, statusFilter *models.ParticipantStatus, _ bool) ([]*models.Participant, error) {
	result := make([]*models.Participant, 0)
	for _, id := range r.order {
		p, ok := r.participants[id]
		if !ok || p.MatchID != matchID {
			continue
		}
		if statusFilter != nil && p.Status != *statusFilter {
			continue
		}
		clone := *p
		result = append(result, &clone)
	}
	return result, nil
}

func (r *fakeParticipantRepo) ListApprovedTeamIDs(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]int, error) {
	type approval struct {
		teamID int
		at     time.Time
		id     int
	}
	approved := make([]approval, 0)
	for _, p := range r.participants {
		if p.MatchID == matchID && p.Status == models.ParticipantApproved && p.RespondedAt != nil {
			approved = append(approved, approval{teamID: p.TeamID, at: *p.RespondedAt, id: p.ID})
		}
	}
	sort.Slice(approved, func(i, j int) bool {
		if !approved[i].at.Equal(approved[j].at) {
			return approved[i].at.Before(approved[j].at)
		}
		return approved[i].id < approved[j].id
	})
	ids := make([]int, 0, len(approved))
	for _, a := range approved {
		ids = append(ids, a.teamID)
	}
	return ids, nil
}

func (r *fakeParticipantRepo) CountByMatchAndStatus(_ context.Context, matchID int, status models.ParticipantStatus) (int, error) {
	count := 0
	for _, p := range r.participants {
		if p.MatchID == matchID && p.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeParticipantRepo) Respond(_ context.Context, id int, status models.ParticipantStatus, responderID int, notes *string) error {
	p, ok := r.participants[id]
	if !ok || p.Status != models.ParticipantPending {
		return repositories.ErrParticipantNotPending
	}
	now := time.Now()
	p.Status = status
	p.ResponderID = &responderID
	p.RespondedAt = &now
	if notes != nil {
		p.Notes = notes
	}
	return nil
}

func (r *fakeParticipantRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.participants, id)
	return nil
}

type fakeGameRepo struct {
	nextID int
	games  map[int]*models.Game

	createErr      error
	setTeamSlotErr error
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{nextID: 1, games: make(map[int]*models.Game)}
}

func (r *fakeGameRepo) Create(_ context.Context, _ repositories.SQLExecutor, game *models.Game) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, g := range r.games {
		if g.MatchID == game.MatchID && g.Round == game.Round && g.GameNumber == game.GameNumber {
			return repositories.ErrGameSlotConflict
		}
	}
	game.ID = r.nextID
	r.nextID++
	game.CreatedAt = time.Now()
	clone := *game
	r.games[game.ID] = &clone
	return nil
}

func (r *fakeGameRepo) GetByID(_ context.Context, id int) (*models.Game, error) {
	g, ok := r.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	clone := *g
	return &clone, nil
}

func (r *fakeGameRepo) GetByPosition(_ context.Context, matchID, round, gameNumber int) (*models.Game, error) {
	for _, g := range r.games {
		if g.MatchID == matchID && g.Round == round && g.GameNumber == gameNumber {
			clone := *g
			return &clone, nil
		}
	}
	return nil, repositories.ErrGameNotFound
}

func (r *fakeGameRepo) ListByMatch(_ context.Context, matchID int, round *int, status *models.GameStatus) ([]*models.Game, error) {
	result := make([]*models.Game, 0)
	for _, g := range r.games {
		if g.MatchID != matchID {
			continue
		}
		if round != nil && g.Round != *round {
			continue
		}
		if status != nil && g.Status != *status {
			continue
		}
		clone := *g
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Round != result[j].Round {
			return result[i].Round < result[j].Round
		}
		return result[i].GameNumber < result[j].GameNumber
	})
	return result, nil
}

func (r *fakeGameRepo) ExistsByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) (bool, error) {
	for _, g := range r.games {
		if g.MatchID == matchID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGameRepo) RecordResult(_ context.Context, id int, team1Score, team2Score *int, winnerID *int, completedAt time.Time) error {
	g, ok := r.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	g.Team1Score = team1Score
	g.Team2Score = team2Score
	g.WinnerID = winnerID
	g.Status = models.GameStatusCompleted
	if g.StartedAt == nil {
		g.StartedAt = &completedAt
	}
	g.EndedAt = &completedAt
	return nil
}

func (r *fakeGameRepo) SetTeamSlot(_ context.Context, matchID, round, gameNumber, slot, teamID int) error {
	if r.setTeamSlotErr != nil {
		return r.setTeamSlotErr
	}
	for _, g := range r.games {
		if g.MatchID == matchID && g.Round == round && g.GameNumber == gameNumber {
			if slot == 1 {
				g.Team1ID = &teamID
			} else {
				g.Team2ID = &teamID
			}
			return nil
		}
	}
	return repositories.ErrGameNotFound
}

func (r *fakeGameRepo) CountByMatchAndRound(_ context.Context, matchID, round int) (int, error) {
	count := 0
	for _, g := range r.games {
		if g.MatchID == matchID && g.Round == round {
			count++
		}
	}
	return count, nil
}

func (r *fakeGameRepo) CountIncompleteInRound(_ context.Context, matchID, round int) (int, error) {
	count := 0
	for _, g := range r.games {
		if g.MatchID == matchID && g.Round == round && g.Status != models.GameStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeGameRepo) MaxRound(_ context.Context, matchID int) (int, error) {
	max := 0
	for _, g := range r.games {
		if g.MatchID == matchID && g.Round > max {
			max = g.Round
		}
	}
	return max, nil
}

func (r *fakeGameRepo) CountUndecidedInRound(_ context.Context, matchID, round int) (int, error) {
	count := 0
	for _, g := range r.games {
		if g.MatchID == matchID && g.Round == round && g.WinnerID == nil {
			count++
		}
	}
	return count, nil
}

type fakeTeamRepo struct {
	nextID int
	teams  map[int]*models.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{nextID: 1, teams: make(map[int]*models.Team)}
}

func (r *fakeTeamRepo) add(t *models.Team) *models.Team {
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	}
	t.CreatedAt = time.Now()
	r.teams[t.ID] = t
	return t
}

func (r *fakeTeamRepo) Create(_ context.Context, t *models.Team) error {
	for _, existing := range r.teams {
		if existing.Name == t.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	r.add(t)
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	t, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTeamRepo) ListByIDs(_ context.Context, ids []int) (map[int]*models.Team, error) {
	result := make(map[int]*models.Team, len(ids))
	for _, id := range ids {
		if t, ok := r.teams[id]; ok {
			clone := *t
			result[id] = &clone
		}
	}
	return result, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, t *models.Team) error {
	if _, ok := r.teams[t.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	clone := *t
	r.teams[t.ID] = &clone
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	t, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

type fakeTxRunner struct {
	beginErr error
	calls    int
}

func (r *fakeTxRunner) RunInTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	if r.beginErr != nil {
		return r.beginErr
	}
	r.calls++
	return fn(nil)
}

type fakeUploader struct {
	uploaded map[string]string
	deleted  []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(map[string]string)}
}

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, _ io.Reader) (*storage.UploadResult, error) {
	u.uploaded[key] = contentType
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return fmt.Sprintf("https://cdn.example.com/%s", key)
}
