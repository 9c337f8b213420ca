package rewards

// Prize is one segment of the spin wheel.
type Prize struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	Points int64  `json:"points"`
}

// Prizes is the wheel in display order.
var Prizes = []Prize{
	{ID: 1, Label: "KES 600", Points: 600},
	{ID: 2, Label: "-KES 500", Points: -500},
	{ID: 3, Label: "KES 500", Points: 500},
	{ID: 4, Label: "-KES 750", Points: -750},
	{ID: 5, Label: "KES 800", Points: 800},
	{ID: 6, Label: "-KES 600", Points: -600},
	{ID: 7, Label: "KES 1000", Points: 1000},
	{ID: 8, Label: "-KES 1000", Points: -1000},
}

// Intn is satisfied by *math/rand/v2.Rand.
type Intn interface {
	IntN(n int) int
}

// Spin picks the landing segment. The wheel only ever lands on winning
// segments; the losing ones are decoration.
func Spin(r Intn) Prize {
	winning := make([]Prize, 0, len(Prizes))
	for _, p := range Prizes {
		if p.Points > 0 {
			winning = append(winning, p)
		}
	}
	return winning[r.IntN(len(winning))]
}
