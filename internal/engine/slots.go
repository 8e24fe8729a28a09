package engine

type SlotType string

const (
	SlotJackpot SlotType = "jackpot"
	SlotPoints  SlotType = "points"
	SlotCenter  SlotType = "center"
)

// Slot is one bucket along the floor. Team is the side of the board the
// slot sits on (empty for the center). Take applies when the opposing team
// lands here, Give when the owning team does; both are percentages of the bet.
type Slot struct {
	Type SlotType
	Team Team
	Take int
	Give int
}

// Slots runs left to right across the floor.
var Slots = []Slot{
	{Type: SlotJackpot, Team: TeamRed},
	{Type: SlotPoints, Team: TeamRed, Take: 50, Give: 10},
	{Type: SlotPoints, Team: TeamRed, Take: 40, Give: 20},
	{Type: SlotPoints, Team: TeamRed, Take: 30, Give: 30},
	{Type: SlotPoints, Team: TeamRed, Take: 20, Give: 40},
	{Type: SlotCenter},
	{Type: SlotPoints, Team: TeamBlue, Take: 20, Give: 40},
	{Type: SlotPoints, Team: TeamBlue, Take: 30, Give: 30},
	{Type: SlotPoints, Team: TeamBlue, Take: 40, Give: 20},
	{Type: SlotPoints, Team: TeamBlue, Take: 50, Give: 10},
	{Type: SlotJackpot, Team: TeamBlue},
}

// SlotIndexAt maps a floor x coordinate to its slot.
func SlotIndexAt(x float64) int {
	x = max(0, min(BoardWidth-1, x))
	i := int(x / (BoardWidth / float64(len(Slots))))
	return max(0, min(len(Slots)-1, i))
}
