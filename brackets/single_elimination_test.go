package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, teamIDs []int) []*BracketGame {
	t.Helper()
	games, err := NewSingleEliminationGenerator().Generate(context.Background(), GenerateParams{
		MatchID: 1,
		TeamIDs: teamIDs,
	})
	require.NoError(t, err)
	return games
}

func findGame(t *testing.T, games []*BracketGame, round, number int) *BracketGame {
	t.Helper()
	for _, g := range games {
		if g.Round == round && g.GameNumber == number {
			return g
		}
	}
	t.Fatalf("game R%dG%d not found", round, number)
	return nil
}

func TestSingleElimination_TooFewTeams(t *testing.T) {
	gen := NewSingleEliminationGenerator()
	for _, teams := range [][]int{nil, {}, {7}} {
		_, err := gen.Generate(context.Background(), GenerateParams{MatchID: 1, TeamIDs: teams})
		assert.ErrorIs(t, err, ErrNotEnoughTeams)
	}
}

func TestSingleElimination_TwoTeams(t *testing.T) {
	games := generate(t, []int{10, 20})

	require.Len(t, games, 1)
	g := games[0]
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, 1, g.GameNumber)
	assert.Equal(t, FilledSlot(10), g.Slot1)
	assert.Equal(t, FilledSlot(20), g.Slot2)
	assert.False(t, g.Bye)
}

func TestSingleElimination_FourTeams(t *testing.T) {
	games := generate(t, []int{1, 2, 3, 4})
	require.Len(t, games, 3)

	g1 := findGame(t, games, 1, 1)
	assert.Equal(t, FilledSlot(1), g1.Slot1)
	assert.Equal(t, FilledSlot(2), g1.Slot2)

	g2 := findGame(t, games, 1, 2)
	assert.Equal(t, FilledSlot(3), g2.Slot1)
	assert.Equal(t, FilledSlot(4), g2.Slot2)

	final := findGame(t, games, 2, 1)
	assert.Equal(t, AwaitingSlot(GameRef{Round: 1, GameNumber: 1}), final.Slot1)
	assert.Equal(t, AwaitingSlot(GameRef{Round: 1, GameNumber: 2}), final.Slot2)
	assert.False(t, final.Bye)
}

func TestSingleElimination_ThreeTeams(t *testing.T) {
	games := generate(t, []int{1, 2, 3})
	require.Len(t, games, 3)

	g1 := findGame(t, games, 1, 1)
	assert.Equal(t, FilledSlot(1), g1.Slot1)
	assert.Equal(t, FilledSlot(2), g1.Slot2)
	assert.False(t, g1.Bye)

	// Odd field: the last round-1 game holds the unpaired seed.
	g2 := findGame(t, games, 1, 2)
	assert.Equal(t, FilledSlot(3), g2.Slot1)
	assert.Equal(t, SlotEmpty, g2.Slot2.Kind)
	assert.True(t, g2.Bye)

	final := findGame(t, games, 2, 1)
	assert.Equal(t, AwaitingSlot(GameRef{Round: 1, GameNumber: 1}), final.Slot1)
	assert.Equal(t, AwaitingSlot(GameRef{Round: 1, GameNumber: 2}), final.Slot2)
}

func TestSingleElimination_FiveTeams(t *testing.T) {
	games := generate(t, []int{1, 2, 3, 4, 5})
	// Rounds: 3 + 2 + 1 games.
	require.Len(t, games, 6)

	g3 := findGame(t, games, 1, 3)
	assert.Equal(t, FilledSlot(5), g3.Slot1)
	assert.True(t, g3.Bye)

	// Round 2 game 2 has only one feeder (round-1 game 3).
	r2g2 := findGame(t, games, 2, 2)
	assert.Equal(t, AwaitingSlot(GameRef{Round: 1, GameNumber: 3}), r2g2.Slot1)
	assert.Equal(t, SlotEmpty, r2g2.Slot2.Kind)
	assert.True(t, r2g2.Bye)

	final := findGame(t, games, 3, 1)
	assert.Equal(t, AwaitingSlot(GameRef{Round: 2, GameNumber: 1}), final.Slot1)
	assert.Equal(t, AwaitingSlot(GameRef{Round: 2, GameNumber: 2}), final.Slot2)
	assert.False(t, final.Bye)
}

func TestSingleElimination_EightTeams(t *testing.T) {
	games := generate(t, []int{1, 2, 3, 4, 5, 6, 7, 8})
	require.Len(t, games, 7)

	for i := 1; i <= 4; i++ {
		g := findGame(t, games, 1, i)
		assert.Equal(t, FilledSlot(2*i-1), g.Slot1)
		assert.Equal(t, FilledSlot(2*i), g.Slot2)
		assert.False(t, g.Bye)
	}
	for _, g := range games {
		assert.False(t, g.Bye, "full power-of-two field must have no byes")
	}
}

// Every generated feeder reference must agree with NextSlot, otherwise
// winner placement would route teams into games that never expect them.
func TestSingleElimination_FeedersMatchNextSlot(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 6, 7, 8, 9, 16} {
		teams := make([]int, n)
		for i := range teams {
			teams[i] = i + 1
		}
		games := generate(t, teams)

		for _, g := range games {
			for slotNum, slot := range map[int]Slot{1: g.Slot1, 2: g.Slot2} {
				if slot.Kind != SlotAwaitingWinner {
					continue
				}
				nextRef, nextSlot := NextSlot(slot.FromGame)
				assert.Equal(t, g.Ref(), nextRef,
					"n=%d: feeder R%dG%d should route to R%dG%d",
					n, slot.FromGame.Round, slot.FromGame.GameNumber, g.Round, g.GameNumber)
				assert.Equal(t, slotNum, nextSlot, "n=%d: slot mismatch at R%dG%d", n, g.Round, g.GameNumber)
			}
		}
	}
}

func TestNextSlot(t *testing.T) {
	tests := []struct {
		from     GameRef
		wantRef  GameRef
		wantSlot int
	}{
		{GameRef{1, 1}, GameRef{2, 1}, 1},
		{GameRef{1, 2}, GameRef{2, 1}, 2},
		{GameRef{1, 3}, GameRef{2, 2}, 1},
		{GameRef{1, 4}, GameRef{2, 2}, 2},
		{GameRef{2, 1}, GameRef{3, 1}, 1},
		{GameRef{2, 2}, GameRef{3, 1}, 2},
		{GameRef{3, 1}, GameRef{4, 1}, 1},
	}
	for _, tt := range tests {
		ref, slot := NextSlot(tt.from)
		assert.Equal(t, tt.wantRef, ref, "from R%dG%d", tt.from.Round, tt.from.GameNumber)
		assert.Equal(t, tt.wantSlot, slot, "from R%dG%d", tt.from.Round, tt.from.GameNumber)
	}
}
