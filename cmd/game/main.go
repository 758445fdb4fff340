// Command game is a command line client for the battles API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/narasim-teja/Sorobon-Battles/internal/api"
	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/server"
)

// ========================= Config (env-configurable) =========================
// Defaults can be overridden via environment variables:
//   BATTLES_API      (default: http://localhost:8081)
//   BATTLES_ADDRESS  caller address sent with every request

// Build metadata injected via -ldflags at build time
var (
	buildVersion = "dev"
	buildTime    = ""
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

const usage = `usage: game [-api URL] [-as ADDRESS] <command> [args]

commands:
  register <name>          register the caller as a player
  mint <name>              mint a token for the caller
  create <battle>          create a battle
  join <battle>            join a pending battle
  move <battle> <choice>   submit attack or defend
  quit <battle>            leave a battle
  battle <battle>          show a battle
  battles [status]         list battles, optionally pending, started or ended
  player [address]         show a player and their token (default: caller)
  transfer <to> <kind> <n> send n ledger units of a kind (1-6)
  approve <operator> [off] let operator move the caller's ledger units
  watch [battle]           stream events for a battle, or for the caller
  version                  print build information
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("game", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	base := fs.String("api", getenv("BATTLES_API", "http://localhost:8081"), "battles API base URL")
	as := fs.String("as", getenv("BATTLES_ADDRESS", ""), "caller address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	c := api.NewClient(*base, models.Address(*as))
	cmd, rest := rest[0], rest[1:]

	arg := func(i int, what string) (string, error) {
		if i >= len(rest) || strings.TrimSpace(rest[i]) == "" {
			return "", fmt.Errorf("%s: missing %s", cmd, what)
		}
		return rest[i], nil
	}
	needCaller := func() error {
		if *as == "" {
			return fmt.Errorf("%s: set -as or BATTLES_ADDRESS", cmd)
		}
		return nil
	}

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "game %s %s\n", buildVersion, buildTime)
		return nil

	case "register", "mint", "create":
		if err := needCaller(); err != nil {
			return err
		}
		name, err := arg(0, "name")
		if err != nil {
			return err
		}
		var out any
		switch cmd {
		case "register":
			out, err = c.Register(ctx, name)
		case "mint":
			out, err = c.Mint(ctx, name)
		default:
			out, err = c.CreateBattle(ctx, name)
		}
		if err != nil {
			return err
		}
		return printJSON(stdout, out)

	case "join", "quit":
		if err := needCaller(); err != nil {
			return err
		}
		name, err := arg(0, "battle")
		if err != nil {
			return err
		}
		var b server.BattleView
		if cmd == "join" {
			b, err = c.JoinBattle(ctx, name)
		} else {
			b, err = c.QuitBattle(ctx, name)
		}
		if err != nil {
			return err
		}
		return printJSON(stdout, b)

	case "move":
		if err := needCaller(); err != nil {
			return err
		}
		name, err := arg(0, "battle")
		if err != nil {
			return err
		}
		choice, err := arg(1, "choice")
		if err != nil {
			return err
		}
		m, ok := server.ParseMove(choice)
		if !ok {
			return fmt.Errorf("move: choice must be attack or defend, got %q", choice)
		}
		res, err := c.SubmitMove(ctx, name, m)
		if err != nil {
			return err
		}
		if !res.Result.Resolved {
			fmt.Fprintln(stdout, "move submitted, waiting for opponent")
			return nil
		}
		return printJSON(stdout, res)

	case "battle":
		name, err := arg(0, "battle")
		if err != nil {
			return err
		}
		b, err := c.Battle(ctx, name)
		if err != nil {
			return err
		}
		return printJSON(stdout, b)

	case "battles":
		status := ""
		if len(rest) > 0 {
			status = rest[0]
		}
		bs, err := c.Battles(ctx, status)
		if err != nil {
			return err
		}
		for _, b := range bs {
			fmt.Fprintf(stdout, "%-20s %-8s round %d  %s\n", b.Name, b.Status, b.Round, strings.Join(addrs(b.Participants()), " vs "))
		}
		return nil

	case "player":
		addr := models.Address(*as)
		if len(rest) > 0 {
			addr = models.Address(rest[0])
		}
		if addr == "" {
			return errors.New("player: missing address")
		}
		p, err := c.Player(ctx, addr)
		if err != nil {
			return err
		}
		out := map[string]any{"player": p}
		tok, err := c.Token(ctx, addr)
		switch {
		case err == nil:
			out["token"] = tok
		case !errors.Is(err, game.ErrNoToken):
			return err
		}
		return printJSON(stdout, out)

	case "transfer":
		if err := needCaller(); err != nil {
			return err
		}
		to, err := arg(0, "recipient")
		if err != nil {
			return err
		}
		k, err := arg(1, "kind")
		if err != nil {
			return err
		}
		n, err := arg(2, "amount")
		if err != nil {
			return err
		}
		kind, err := strconv.ParseUint(k, 10, 8)
		if err != nil {
			return fmt.Errorf("transfer: invalid kind %q", k)
		}
		amount, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return fmt.Errorf("transfer: invalid amount %q", n)
		}
		l, err := c.Transfer(ctx, "", models.Address(to), []models.TokenKind{models.TokenKind(kind)}, []uint64{amount})
		if err != nil {
			return err
		}
		return printJSON(stdout, l)

	case "approve":
		if err := needCaller(); err != nil {
			return err
		}
		op, err := arg(0, "operator")
		if err != nil {
			return err
		}
		approved := len(rest) < 2 || rest[1] != "off"
		v, err := c.SetApproval(ctx, models.Address(op), approved)
		if err != nil {
			return err
		}
		return printJSON(stdout, v)

	case "watch":
		battle := ""
		if len(rest) > 0 {
			battle = rest[0]
		}
		var player models.Address
		if battle == "" {
			if err := needCaller(); err != nil {
				return err
			}
			player = models.Address(*as)
		}
		err := c.Watch(ctx, battle, player, func(ev game.Event) error {
			fmt.Fprintln(stdout, describe(ev))
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addrs(as []models.Address) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.String()
	}
	return out
}

// describe renders an event as one line of text.
func describe(ev game.Event) string {
	switch ev.Kind {
	case game.EventPlayerRegistered:
		return fmt.Sprintf("#%d %s registered", ev.Seq, ev.Actor)
	case game.EventTokenMinted:
		if ev.Token != nil {
			return fmt.Sprintf("#%d %s minted %q (%d/%d)", ev.Seq, ev.Actor, ev.Token.Name, ev.Token.Attack, ev.Token.Defense)
		}
		return fmt.Sprintf("#%d %s minted a token", ev.Seq, ev.Actor)
	case game.EventBattleCreated:
		return fmt.Sprintf("#%d %s created battle %s", ev.Seq, ev.Actor, ev.Battle)
	case game.EventBattleStarted:
		return fmt.Sprintf("#%d battle %s started: %s", ev.Seq, ev.Battle, strings.Join(addrs(ev.Players), " vs "))
	case game.EventMoveSubmitted:
		if ev.WaitingForOpponent {
			return fmt.Sprintf("#%d %s moved in %s, waiting for opponent", ev.Seq, ev.Actor, ev.Battle)
		}
		return fmt.Sprintf("#%d %s moved in %s", ev.Seq, ev.Actor, ev.Battle)
	case game.EventRoundEnded:
		var parts []string
		for _, d := range ev.Damage {
			parts = append(parts, fmt.Sprintf("%s -%d", d.Player, d.Amount))
		}
		if len(parts) == 0 {
			parts = append(parts, "no damage")
		}
		return fmt.Sprintf("#%d %s round %d: %s", ev.Seq, ev.Battle, ev.Round, strings.Join(parts, ", "))
	case game.EventBattleEnded:
		if ev.Winner == nil {
			return fmt.Sprintf("#%d battle %s cancelled", ev.Seq, ev.Battle)
		}
		return fmt.Sprintf("#%d battle %s won by %s", ev.Seq, ev.Battle, *ev.Winner)
	}
	return fmt.Sprintf("#%d %s", ev.Seq, ev.Kind)
}
