package engine

const (
	StartingBalance = 500

	centerReturnPct = 50
	centerPotPct    = 45
	houseCutPct     = 5
	potCutPct       = 5
)

type Balances struct {
	Red   int `json:"redBalance"`
	Blue  int `json:"blueBalance"`
	Pot   int `json:"pot"`
	House int `json:"houseTotal"`
}

// InitialBalances is the state a fresh or reset match starts from. Reset
// keeps the house total, so callers that reset carry House over themselves.
func InitialBalances() Balances {
	return Balances{Red: StartingBalance, Blue: StartingBalance}
}

func (b Balances) Of(team Team) int {
	if team == TeamRed {
		return b.Red
	}
	return b.Blue
}

func (b *Balances) add(team Team, amount int) {
	if team == TeamRed {
		b.Red += amount
	} else {
		b.Blue += amount
	}
}

func (b *Balances) set(team Team, amount int) {
	if team == TeamRed {
		b.Red = amount
	} else {
		b.Blue = amount
	}
}

type EventType string

const (
	EvtJackpot     EventType = "Jackpot"
	EvtCenter      EventType = "Center"
	EvtGave        EventType = "Gave"
	EvtTook        EventType = "Took"
	EvtTakeBlocked EventType = "TakeBlocked"
)

type Event struct {
	Type      EventType `json:"type"`
	Team      Team      `json:"team"`
	SlotIndex int       `json:"slot"`
	Amount    int       `json:"amount"`
}

// Settle pays out a ball of the given team landing in slot. Percentages are
// floored, matching whole-dollar balances.
func Settle(b Balances, slot Slot, team Team, bet int) (Event, Balances) {
	opp := team.Opponent()

	switch slot.Type {
	case SlotJackpot:
		won := b.Pot + bet
		b.add(team, won)
		b.Pot = 0
		return Event{Type: EvtJackpot, Team: team, Amount: won}, b

	case SlotCenter:
		keep := pct(bet, centerReturnPct)
		b.add(team, keep)
		b.Pot += pct(bet, centerPotPct)
		b.House += pct(bet, houseCutPct)
		return Event{Type: EvtCenter, Team: team, Amount: keep}, b

	case SlotPoints:
		if slot.Team == team {
			give := pct(bet, slot.Give)
			b.add(team, bet-give)
			b.add(opp, give)
			b.Pot += pct(bet, potCutPct)
			return Event{Type: EvtGave, Team: team, Amount: give}, b
		}

		take := pct(bet, slot.Take)
		evt := Event{Type: EvtTook, Team: team, Amount: take}
		if b.Of(opp) >= take {
			b.add(opp, -take)
			b.add(team, take+bet)
		} else {
			// Opponent can't cover it; the lander still gets the bet back.
			b.add(team, bet)
			evt.Type = EvtTakeBlocked
			evt.Amount = 0
		}
		b.Pot += pct(bet, potCutPct)
		return evt, b
	}

	return Event{}, b
}

func pct(amount, percent int) int {
	return amount * percent / 100
}
