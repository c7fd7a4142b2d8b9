package brackets

import "context"

// SlotKind distinguishes what a bracket slot currently holds.
type SlotKind int

const (
	// SlotEmpty means nothing can ever fill the slot from inside the
	// bracket (a structural bye position).
	SlotEmpty SlotKind = iota
	// SlotAwaitingWinner means the slot will receive the winner of an
	// earlier game.
	SlotAwaitingWinner
	// SlotFilled means a concrete team occupies the slot.
	SlotFilled
)

// GameRef addresses a game inside a bracket: round and 1-indexed position
// within the round. This pair is the only addressing scheme used for
// winner placement.
type GameRef struct {
	Round      int
	GameNumber int
}

// Slot is one side of a game. Exactly one of TeamID/FromGame is meaningful,
// selected by Kind.
type Slot struct {
	Kind     SlotKind
	TeamID   int
	FromGame GameRef
}

func FilledSlot(teamID int) Slot { return Slot{Kind: SlotFilled, TeamID: teamID} }

func AwaitingSlot(ref GameRef) Slot { return Slot{Kind: SlotAwaitingWinner, FromGame: ref} }

func EmptySlot() Slot { return Slot{Kind: SlotEmpty} }

// BracketGame is a generated game before it is persisted.
type BracketGame struct {
	Round      int
	GameNumber int
	Slot1      Slot
	Slot2      Slot

	// Bye marks a game whose second slot can never be filled: the team
	// arriving in Slot1 advances without playing.
	Bye bool
}

func (g *BracketGame) Ref() GameRef {
	return GameRef{Round: g.Round, GameNumber: g.GameNumber}
}

type GenerateParams struct {
	MatchID int
	// TeamIDs in seed order (approval order unless an explicit seeding
	// was applied upstream).
	TeamIDs []int
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*BracketGame, error)

	Name() string
}

// NextSlot returns the downstream position fed by the winner of the game at
// ref: game (g+1)/2 of the following round, slot 1 when g is odd, slot 2
// when g is even. The rule determines bracket shape and must stay in sync
// with the generators.
func NextSlot(ref GameRef) (GameRef, int) {
	next := GameRef{Round: ref.Round + 1, GameNumber: (ref.GameNumber + 1) / 2}
	if ref.GameNumber%2 == 1 {
		return next, 1
	}
	return next, 2
}
