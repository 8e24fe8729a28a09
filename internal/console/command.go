package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
)

var ErrUnknownCommand = errors.New("unknown command")
var ErrUsage = errors.New("bad arguments")

type CommandType string

const (
	CmdDrop       CommandType = "drop"
	CmdBoost      CommandType = "boost"
	CmdReset      CommandType = "reset"
	CmdTeam       CommandType = "team"
	CmdSet        CommandType = "set"
	CmdStatus     CommandType = "status"
	CmdDisconnect CommandType = "disconnect"
	CmdHelp       CommandType = "help"
	CmdQuit       CommandType = "quit"
)

type Command struct {
	Type   CommandType
	Bet    int
	Boost  engine.Boost // Team is empty for a bare direction
	Team   engine.Team
	Amount int
}

// Parse reads one input line. A missing or unreadable bet falls back to
// defaultBet and bets are never below 1.
func Parse(line string, defaultBet int) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	args := fields[1:]

	switch CommandType(fields[0]) {
	case CmdDrop:
		bet := defaultBet
		if len(args) > 0 {
			if n, err := strconv.Atoi(strings.TrimPrefix(args[0], "$")); err == nil {
				bet = n
			}
		}
		return Command{Type: CmdDrop, Bet: max(1, bet)}, nil

	case CmdBoost:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: boost <r_left|b_up|left|...>", ErrUsage)
		}
		switch d := engine.Direction(args[0]); d {
		case engine.DirLeft, engine.DirRight, engine.DirUp, engine.DirDown:
			return Command{Type: CmdBoost, Boost: engine.Boost{Direction: d}}, nil
		}
		b, err := engine.ParseBoost(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Type: CmdBoost, Boost: b}, nil

	case CmdTeam:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: team <red|blue>", ErrUsage)
		}
		team, err := engine.ParseTeam(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Type: CmdTeam, Team: team}, nil

	case CmdSet:
		if len(args) != 2 {
			return Command{}, fmt.Errorf("%w: set <red|blue> <amount>", ErrUsage)
		}
		team, err := engine.ParseTeam(args[0])
		if err != nil {
			return Command{}, err
		}
		amount, err := strconv.Atoi(strings.TrimPrefix(args[1], "$"))
		if err != nil {
			return Command{}, fmt.Errorf("%w: amount %q", ErrUsage, args[1])
		}
		return Command{Type: CmdSet, Team: team, Amount: amount}, nil

	case CmdReset, CmdStatus, CmdDisconnect, CmdHelp, CmdQuit:
		return Command{Type: CommandType(fields[0])}, nil

	case "exit", "q":
		return Command{Type: CmdQuit}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
}

// Describe renders a payout the way the table announces it.
func Describe(evt engine.Event) string {
	team := strings.ToUpper(string(evt.Team))
	switch evt.Type {
	case engine.EvtJackpot:
		return fmt.Sprintf("%s JACKPOT! +$%d", team, evt.Amount)
	case engine.EvtCenter:
		return fmt.Sprintf("%s center: keeps $%d", team, evt.Amount)
	case engine.EvtGave:
		return fmt.Sprintf("%s gives $%d", team, evt.Amount)
	case engine.EvtTook:
		return fmt.Sprintf("%s takes $%d", team, evt.Amount)
	case engine.EvtTakeBlocked:
		return fmt.Sprintf("%s lands on the other side, nothing to take", team)
	}
	return string(evt.Type)
}
