package brackets

import "context"

// RoundRobinGenerator pairs every team against every other team. Legs
// controls how many times each pairing is played (1 for a plain round
// robin, 2 for a league season). No winner progression applies: all games
// are played, standings are derived from results.
type RoundRobinGenerator struct {
	Legs int
}

func NewRoundRobinGenerator(legs int) Generator {
	if legs < 1 {
		legs = 1
	}
	return &RoundRobinGenerator{Legs: legs}
}

func (g *RoundRobinGenerator) Name() string {
	return "round_robin"
}

func (g *RoundRobinGenerator) Generate(_ context.Context, params GenerateParams) ([]*BracketGame, error) {
	teams := params.TeamIDs
	if len(teams) < 2 {
		return nil, ErrNotEnoughTeams
	}

	games := make([]*BracketGame, 0, g.Legs*len(teams)*(len(teams)-1)/2)
	number := 0

	for leg := 1; leg <= g.Legs; leg++ {
		for i := 0; i < len(teams); i++ {
			for j := i + 1; j < len(teams); j++ {
				number++
				home, away := teams[i], teams[j]
				if leg%2 == 0 {
					// Reverse home advantage on the return leg.
					home, away = away, home
				}
				games = append(games, &BracketGame{
					Round:      leg,
					GameNumber: number,
					Slot1:      FilledSlot(home),
					Slot2:      FilledSlot(away),
				})
			}
		}
		number = 0
	}

	return games, nil
}
