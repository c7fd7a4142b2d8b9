package brackets

import (
	"context"
	"errors"
)

var ErrNotEnoughTeams = errors.New("not enough teams to generate a bracket (minimum 2)")

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Name() string {
	return "single_elimination"
}

// Generate builds the full single elimination tree over the seeded teams.
// Round 1 holds ceil(n/2) games; game i pairs seeds 2i-1 and 2i (1-indexed).
// Each later round holds ceil(previous/2) games whose slots await the
// winners of their feeder games, down to a single final game. When n is odd
// the last round-1 game, and any later game missing a feeder for its second
// slot, is marked as a bye.
func (g *SingleEliminationGenerator) Generate(_ context.Context, params GenerateParams) ([]*BracketGame, error) {
	n := len(params.TeamIDs)
	if n < 2 {
		return nil, ErrNotEnoughTeams
	}

	games := make([]*BracketGame, 0, n)

	firstRound := (n + 1) / 2
	for i := 1; i <= firstRound; i++ {
		bg := &BracketGame{
			Round:      1,
			GameNumber: i,
			Slot1:      FilledSlot(params.TeamIDs[2*(i-1)]),
			Slot2:      EmptySlot(),
		}
		if 2*i-1 < n {
			bg.Slot2 = FilledSlot(params.TeamIDs[2*i-1])
		} else {
			bg.Bye = true
		}
		games = append(games, bg)
	}

	prev := firstRound
	for round := 2; prev > 1; round++ {
		count := (prev + 1) / 2
		for i := 1; i <= count; i++ {
			bg := &BracketGame{
				Round:      round,
				GameNumber: i,
				Slot1:      AwaitingSlot(GameRef{Round: round - 1, GameNumber: 2*i - 1}),
				Slot2:      EmptySlot(),
			}
			if 2*i <= prev {
				bg.Slot2 = AwaitingSlot(GameRef{Round: round - 1, GameNumber: 2 * i})
			} else {
				bg.Bye = true
			}
			games = append(games, bg)
		}
		prev = count
	}

	return games, nil
}
