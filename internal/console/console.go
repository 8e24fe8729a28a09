// Package console is the terminal front end: it walks the user through the
// token exchange and turns typed commands into lobby input.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/lobby"
	"github.com/DoyleJ11/plinko-sync/internal/session"
)

const help = `commands:
  drop [bet]            start a round (host or local)
  boost <dir>           r_left, b_up, ... or left/right/up/down for your team
  reset                 back to $500 each
  team <red|blue>       host only, once connected
  set <red|blue> <amt>  house override (host or local)
  status                show balances and connection
  disconnect            leave the match
  quit`

type Console struct {
	In  io.Reader
	Out io.Writer

	Lobby      *lobby.Lobby
	Session    *session.Session
	Negotiator *session.Negotiator // nil in local mode

	DefaultBet       int
	HandshakeTimeout time.Duration
	Log              *zap.Logger
}

// Run blocks until the user quits, input ends or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go c.readLines(ctx, lines)

	if err := c.connect(ctx, lines); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, lobby.ErrClosed) {
			return nil
		}
		return err
	}
	go c.follow(ctx)

	c.printf("%s\n", help)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if quit := c.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

func (c *Console) readLines(ctx context.Context, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(c.In)
	// Tokens carry a full SDP.
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (c *Console) prompt(ctx context.Context, lines <-chan string, msg string) (string, error) {
	c.printf("%s\n> ", msg)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			if line = strings.TrimSpace(line); line != "" {
				return line, nil
			}
		}
	}
}

func (c *Console) connect(ctx context.Context, lines <-chan string) error {
	switch c.Session.Role() {
	case session.RoleHost:
		return c.host(ctx, lines)
	case session.RoleJoiner:
		return c.join(ctx, lines)
	}
	c.printf("local game: you control both teams\n")
	return nil
}

func (c *Console) host(ctx context.Context, lines <-chan string) error {
	c.printf("creating offer, gathering candidates...\n")
	offer, err := c.Negotiator.StartHosting(ctx)
	if err != nil {
		return err
	}
	c.printf("\nsend this offer token to your opponent:\n\n%s\n\n", offer)

	for {
		answer, err := c.prompt(ctx, lines, "paste the answer token:")
		if err != nil {
			return err
		}
		hctx, cancel := c.handshakeContext(ctx)
		err = c.Negotiator.CompleteHandshake(hctx, answer)
		cancel()
		if err == nil {
			break
		}
		c.printf("%v\n", err)
	}
	if err := c.send(ctx, lobby.Attach{Channel: c.Session.Channel()}); err != nil {
		return err
	}
	c.printf("connected\n")

	for {
		line, err := c.prompt(ctx, lines, "pick your team: red or blue")
		if err != nil {
			return err
		}
		team, err := engine.ParseTeam(strings.ToLower(line))
		if err != nil {
			c.printf("%v\n", err)
			continue
		}
		err = c.Lobby.Ask(ctx, func(r chan error) lobby.Msg { return lobby.SelectTeam{Team: team, Reply: r} })
		if err != nil {
			if errors.Is(err, lobby.ErrClosed) {
				return err
			}
			c.printf("%v (use the team command to retry)\n", err)
			return nil
		}
		return nil
	}
}

func (c *Console) join(ctx context.Context, lines <-chan string) error {
	for {
		offer, err := c.prompt(ctx, lines, "paste the host's offer token:")
		if err != nil {
			return err
		}
		answer, err := c.Negotiator.AcceptOffer(ctx, offer)
		if err != nil {
			c.printf("%v\n", err)
			continue
		}
		c.printf("\nsend this answer token back to the host:\n\n%s\n\n", answer)
		break
	}

	c.printf("waiting for the host...\n")
	hctx, cancel := c.handshakeContext(ctx)
	defer cancel()
	if err := c.Negotiator.AwaitConnected(hctx); err != nil {
		return err
	}
	if err := c.send(ctx, lobby.Attach{Channel: c.Session.Channel()}); err != nil {
		return err
	}
	c.printf("connected, waiting for the host to pick teams\n")
	return nil
}

func (c *Console) send(ctx context.Context, m lobby.Msg) error {
	select {
	case c.Lobby.Inbox() <- m:
		return nil
	case <-c.Lobby.Done():
		return lobby.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Console) handshakeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.HandshakeTimeout > 0 {
		return context.WithTimeout(ctx, c.HandshakeTimeout)
	}
	return context.WithCancel(ctx)
}

// exec runs one command and reports whether the user asked to quit.
func (c *Console) exec(ctx context.Context, line string) bool {
	cmd, err := Parse(line, c.DefaultBet)
	if err != nil {
		c.printf("%v\n", err)
		return false
	}

	switch cmd.Type {
	case CmdDrop:
		err = c.Lobby.Ask(ctx, func(r chan error) lobby.Msg { return lobby.Drop{Bet: cmd.Bet, Reply: r} })
	case CmdBoost:
		b := cmd.Boost
		if b.Team == engine.TeamNone {
			b.Team = c.Session.MyTeam()
		}
		if b.Team == engine.TeamNone {
			err = fmt.Errorf("%w: say which team, e.g. r_%s", ErrUsage, b.Direction)
			break
		}
		err = c.Lobby.Ask(ctx, func(r chan error) lobby.Msg { return lobby.BoostInput{Boost: b, Reply: r} })
	case CmdReset:
		err = c.Lobby.Ask(ctx, func(r chan error) lobby.Msg { return lobby.ResetInput{Reply: r} })
	case CmdTeam:
		err = c.Lobby.Ask(ctx, func(r chan error) lobby.Msg { return lobby.SelectTeam{Team: cmd.Team, Reply: r} })
	case CmdSet:
		err = c.Lobby.Ask(ctx, func(r chan error) lobby.Msg {
			return lobby.SetBalance{Team: cmd.Team, Amount: cmd.Amount, Reply: r}
		})
	case CmdStatus:
		var v lobby.View
		if v, err = c.Lobby.View(ctx); err == nil {
			c.status(v.State)
		}
	case CmdDisconnect:
		err = c.Lobby.Ask(ctx, func(r chan error) lobby.Msg { return lobby.Disconnect{Reply: r} })
	case CmdHelp:
		c.printf("%s\n", help)
	case CmdQuit:
		return true
	}

	if err != nil {
		c.printf("%v\n", err)
	}
	return false
}

// follow prints payouts and connection changes as they happen.
func (c *Console) follow(ctx context.Context) {
	var last lobby.State
	for ctx.Err() == nil {
		select {
		case <-c.Lobby.Done():
			return
		default:
		}
		out := make(chan lobby.Snapshot, 256)
		select {
		case c.Lobby.Inbox() <- lobby.Join{ClientID: "console", Outbox: out}:
		case <-c.Lobby.Done():
			return
		case <-ctx.Done():
			return
		}

		for snap := range out {
			c.announce(last, snap.State)
			last = snap.State
		}
	}
}

func (c *Console) announce(prev, next lobby.State) {
	if next.Session.State != prev.Session.State && prev.Session.State != "" {
		c.printf("connection: %s\n", next.Session.State)
		if next.Session.Error != "" && next.Session.State == session.StateDisconnected {
			c.printf("  %s\n", next.Session.Error)
		}
	}
	if next.Session.MyTeam != prev.Session.MyTeam && next.Session.MyTeam != engine.TeamNone && prev.Session.Role != "" {
		c.printf("you are %s\n", next.Session.MyTeam)
	}
	if next.LastEvent != nil && (prev.LastEvent == nil || *prev.LastEvent != *next.LastEvent) {
		c.printf("%s\n", Describe(*next.LastEvent))
	}
	if next.Balances != prev.Balances && len(next.Balls) == 0 && prev.Session.Role != "" {
		c.status(next)
	}
}

func (c *Console) status(s lobby.State) {
	b := s.Balances
	c.printf("red $%d | blue $%d | pot $%d | house $%d | %s %s",
		b.Red, b.Blue, b.Pot, b.House, s.Session.Role, s.Session.State)
	if s.Session.MyTeam != engine.TeamNone {
		c.printf(" as %s", s.Session.MyTeam)
	}
	c.printf("\n")
}

func (c *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.Out, format, args...); err != nil && c.Log != nil {
		c.Log.Debug("console write failed", zap.Error(err))
	}
}
