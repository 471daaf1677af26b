// Command demo plays a staked match between two bots against the in-memory
// ledger and prints the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"unostake/internal/app"
	"unostake/internal/bot"
	"unostake/internal/config"
	"unostake/internal/domain"
	"unostake/internal/ledger"
	"unostake/internal/token"
)

const maxTurns = 1000

func main() {
	botsFlag := flag.String("bots", "data/bot_identities.json", "bot identity file")
	gameFlag := flag.String("game", "data/game_config.json", "game config file")
	tierFlag := flag.String("tier", "", "stake tier (default tier when empty)")
	buyFlag := flag.String("buy", "1", "stake tokens each bot converts before playing")
	seedFlag := flag.Int64("seed", 0, "shuffle seed (random when 0)")
	flag.Parse()

	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
	if err := run(context.Background(), logger, *botsFlag, *gameFlag, *tierFlag, *buyFlag, *seedFlag); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, botsPath, gamePath, tier, buy string, seed int64) error {
	cfg, err := config.Load(environ())
	if err != nil {
		return err
	}
	game, err := config.LoadGameConfig(gamePath, cfg.RewardDecimals)
	if err != nil {
		return err
	}
	ids, err := bot.LoadIdentities(botsPath)
	if err != nil {
		logger.Warn("using default bots", "error", err)
		ids = bot.DefaultIdentities()
	}
	if ids.Len() < 2 {
		return fmt.Errorf("need two bots, have %d", ids.Len())
	}

	if seed == 0 {
		seed = rand.Int63()
	}
	conv := cfg.Converter()
	mem := ledger.NewMemory(cfg.ExchangeRate, conv)
	coordinator := app.NewCoordinator(mem, app.Options{
		Converter:    &conv,
		Logger:       logger,
		Rng:          rand.New(rand.NewSource(seed)),
		HandSize:     game.HandSize,
		DefaultColor: domain.Color(game.DefaultColor),
		StakeTiers:   game.TierStakes(),
		DefaultTier:  game.DefaultTier,
		AutoStake:    true,
	})

	agents := make([]*bot.Agent, 2)
	for i := range agents {
		agents[i], err = bot.NewAgent(ids.Get(i))
		if err != nil {
			return err
		}
		res, err := coordinator.Purchase(ctx, app.PurchaseRequest{Amount: buy, Buyer: agents[i].Address})
		if err != nil {
			return fmt.Errorf("purchase for %s: %w", agents[i].Name, err)
		}
		pterm.Info.Printfln("%s bought %s reward tokens", pterm.Cyan(agents[i].Name), token.FormatUnits(res.Reward, conv.RewardDecimals))
	}

	handle, err := coordinator.StartMatch(ctx, app.StartMatchRequest{
		Player1: agents[0].Address,
		Player2: agents[1].Address,
		Tier:    tier,
	})
	if err != nil {
		return err
	}
	if handle.AutoStakeErr != nil {
		return fmt.Errorf("auto-stake: %w", handle.AutoStakeErr)
	}
	matchID := handle.Match.MatchID
	if _, err := coordinator.RequestStake(ctx, matchID, agents[1].Address); err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	pterm.Success.Printfln("Match %s staked at %s each (seed %d)", matchID, handle.Match.Stake, seed)

	view, err := play(ctx, coordinator, matchID, agents)
	if err != nil {
		return err
	}
	printResult(view, agents, mem, conv)
	if err := mem.Verify(); err != nil {
		return fmt.Errorf("ledger verification: %w", err)
	}
	pterm.Success.Printfln("Ledger verified over %d blocks", len(mem.Blocks()))
	return nil
}

// play drives the match until a winner is committed. An exhausted deck ends
// the game in favour of the player holding fewer points.
func play(ctx context.Context, coordinator *app.Coordinator, matchID string, agents []*bot.Agent) (app.MatchView, error) {
	seat := func(view app.MatchView) int {
		if view.Game.CurrentPlayer.Equal(agents[0].Address) {
			return 0
		}
		return 1
	}

	for turn := 0; turn < maxTurns; turn++ {
		view, err := coordinator.Match(matchID)
		if err != nil {
			return app.MatchView{}, err
		}
		if view.Status.Terminal() {
			return view, nil
		}
		current := seat(view)
		agent := agents[current]
		hand, err := coordinator.Hand(matchID, agent.Address)
		if err != nil {
			return app.MatchView{}, err
		}

		move, err := agent.Play(bot.View{
			Hand:          hand,
			TopCard:       view.Game.TopCard,
			ActiveColor:   view.Game.ActiveColor,
			OpponentCards: view.Game.HandSizes[1-current],
		})
		if err != nil {
			pterm.Warning.Printfln("%s: %v", agent.Name, err)
		}

		if move.Draw {
			if _, err := coordinator.DrawCard(ctx, matchID, agent.Address); err != nil {
				if errors.Is(err, domain.ErrEmptyDeck) {
					return settleExhausted(ctx, coordinator, matchID, agents)
				}
				return app.MatchView{}, err
			}
			pterm.Printfln("%s draws", agent.Name)
			continue
		}

		res, err := coordinator.PlayMove(ctx, app.MoveRequest{
			MatchID:   matchID,
			Player:    agent.Address,
			CardIndex: move.CardIndex,
			Color:     move.Color,
		})
		if err != nil && res.Winner == "" {
			return app.MatchView{}, err
		}
		line := fmt.Sprintf("%s plays %s", agent.Name, res.Card)
		if res.Card.IsWild() {
			line += fmt.Sprintf(" and names %s", res.ActiveColor)
		}
		pterm.Printfln("%s (%d left)", line, res.CardsLeft)
		if err != nil {
			pterm.Error.Printfln("commit failed: %v", err)
		}
	}
	return app.MatchView{}, fmt.Errorf("no winner after %d turns", maxTurns)
}

func settleExhausted(ctx context.Context, coordinator *app.Coordinator, matchID string, agents []*bot.Agent) (app.MatchView, error) {
	points := make([]int, len(agents))
	for i, a := range agents {
		hand, err := coordinator.Hand(matchID, a.Address)
		if err != nil {
			return app.MatchView{}, err
		}
		points[i] = domain.Score(hand)
	}
	winner := agents[0]
	if points[1] < points[0] {
		winner = agents[1]
	}
	pterm.Warning.Printfln("Deck exhausted (%d vs %d points), awarding %s", points[0], points[1], winner.Name)
	if _, err := coordinator.RecordWin(ctx, matchID, winner.Address); err != nil {
		return app.MatchView{}, err
	}
	return coordinator.Match(matchID)
}

func printResult(view app.MatchView, agents []*bot.Agent, mem *ledger.Memory, conv token.Converter) {
	rows := pterm.TableData{{"Bot", "Address", "Balance"}}
	for _, a := range agents {
		name := a.Name
		if view.Winner.Equal(a.Address) {
			name = pterm.LightGreen(name + " (winner)")
		}
		rows = append(rows, []string{name, string(a.Address), token.FormatUnits(mem.Balance(a.Address), conv.RewardDecimals)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	receipts := make([]string, 0, len(view.Receipts))
	for _, r := range view.Receipts {
		receipts = append(receipts, fmt.Sprintf("%-12s %s", r.Op, r.TxHash))
	}
	pterm.DefaultBox.WithTitle(pterm.LightYellow("|RECEIPTS|")).WithTitleTopCenter().Println(strings.Join(receipts, "\n"))
	if view.Status != app.StatusCompleted {
		pterm.Error.Printfln("Match ended as %s: %s", view.Status, view.Failure)
	}
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
