// Command amongus runs a single game or a tournament of the headless
// social-deduction engine from the command line.
//
// CLI surface grounded on spec.md §6, built with cobra (the corpus's
// common multi-subcommand CLI library) in place of the original
// prototype's argparse.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishananand06/8fold-Amoungus/internal/agent"
	"github.com/ishananand06/8fold-Amoungus/internal/config"
	"github.com/ishananand06/8fold-Amoungus/internal/enginelog"
	"github.com/ishananand06/8fold-Amoungus/internal/engine"
	"github.com/ishananand06/8fold-Amoungus/internal/spectator"
	"github.com/ishananand06/8fold-Amoungus/internal/statusserver"
	"github.com/ishananand06/8fold-Amoungus/internal/tournament"
)

var (
	configPath   string
	seed         int64
	spectateAddr string
	statusAddr   string
)

func main() {
	root := &cobra.Command{
		Use:   "amongus",
		Short: "Headless hidden-role social-deduction simulation engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config override file")
	root.PersistentFlags().Int64Var(&seed, "seed", time.Now().UnixNano(), "PRNG seed (deterministic given a fixed seed and fixed agent behavior)")

	root.AddCommand(playCmd(), tournamentCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run a single game to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed))
			logger := enginelog.New(true)

			var hub *spectator.Hub
			if spectateAddr != "" {
				hub = spectator.NewHub()
				go hub.Run()
				go func() {
					http.HandleFunc("/spectate", hub.ServeWS)
					if err := http.ListenAndServe(spectateAddr, nil); err != nil {
						log.Printf("spectator server stopped: %v", err)
					}
				}()
			}

			agents := map[string]agent.Agent{}
			for i := 0; i < cfg.NumPlayers; i++ {
				id := fmt.Sprintf("p%d", i)
				agents[id] = agent.NewRuleBasedBot(rng)
			}

			matchID := "local-game"
			e := engine.New(matchID, cfg, agents, rng, logger)
			e.Setup()

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.MaxTotalRounds)*time.Duration(cfg.AgentTimeoutSeconds)*time.Second)
			defer cancel()

			result, err := e.Run(ctx)
			if err != nil {
				return err
			}
			if hub != nil {
				hub.Broadcast(spectator.Event{MatchID: matchID, Type: "game_end", Payload: result})
			}
			fmt.Printf("winner=%s cause=%s rounds=%d\n", result.Winner, result.WinCause, result.Rounds)
			return nil
		},
	}
	cmd.Flags().StringVar(&spectateAddr, "spectate-addr", "", "if set, serve a spectator websocket on this address")
	return cmd
}

func tournamentCmd() *cobra.Command {
	var gamesPerContestant int
	cmd := &cobra.Command{
		Use:   "tournament",
		Short: "Run a role-balanced tournament across a contestant pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed))
			logger := enginelog.New(true)

			contestants := []tournament.Contestant{
				{Name: "random", NewSeat: func(rng *rand.Rand) agent.Agent { return agent.NewRandomBot(rng) }},
				{Name: "rule_based", NewSeat: func(rng *rand.Rand) agent.Agent { return agent.NewRuleBasedBot(rng) }},
			}
			runner := tournament.NewRunner(cfg, contestants, gamesPerContestant, rng, logger)

			if statusAddr != "" {
				srv := statusserver.New(standingsAdapter{runner})
				go func() {
					if err := srv.ListenAndServe(statusAddr); err != nil {
						log.Printf("status server stopped: %v", err)
					}
				}()
			}

			ctx := context.Background()
			records := runner.Run(ctx)
			fmt.Printf("played %d games\n", len(records))
			for _, s := range runner.Standings() {
				fmt.Printf("%-16s elo=%.1f games=%d wins=%d losses=%d\n", s.Name, s.Elo, s.Games, s.Wins, s.Losses)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "if set, serve live standings as JSON on this address")
	cmd.Flags().IntVar(&gamesPerContestant, "games-per-contestant", 10, "how many games each contestant is scheduled into")
	return cmd
}

type standingsAdapter struct {
	r *tournament.Runner
}

func (s standingsAdapter) Standings() interface{} {
	return s.r.Standings()
}
