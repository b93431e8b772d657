// Package tournament schedules role-balanced matchups across a pool of
// agents and tracks Elo ratings and per-agent stats across a run.
//
// Scheduling (quota-balanced multisets, shuffle-and-deal, fallback-bot
// fill) is this module's own algorithm per spec.md §4.6, superseding
// the simpler modulo-based scheduler in
// _examples/original_source/tournament.py:generate_matchups. The Elo
// delta formula and stats shape are grounded directly on that file's
// compute_elo_delta/_update_elo/_update_stats.
package tournament

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/ishananand06/8fold-Amoungus/internal/agent"
	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/engine"
	"github.com/ishananand06/8fold-Amoungus/internal/enginelog"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

// fallbackBotName is excluded from opponent-average Elo calculations,
// matching tournament.py's __RuleBasedBot__ sentinel exclusion.
const fallbackBotName = "__fallback_bot__"

const startingElo = 1000.0

// Stats is one contestant's accumulated record across a tournament run.
type Stats struct {
	Elo        float64 `json:"elo"`
	Games      int     `json:"games"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	CrewGames  int     `json:"crew_games"`
	ImpGames   int     `json:"imp_games"`
	Ejections  int     `json:"ejections"`
	Kills      int     `json:"kills"`
}

func emptyStats() Stats {
	return Stats{Elo: startingElo}
}

// Contestant is one named entrant with a factory for fresh agent
// instances (a fresh instance is dealt into every game it plays).
type Contestant struct {
	Name    string
	NewSeat func(rng *rand.Rand) agent.Agent
}

// Runner drives a round-robin-ish tournament: role-balanced matchups
// dealt from a roster, with fallback bots filling seats the roster
// can't, Elo updates after every game, and sorted final standings.
type Runner struct {
	Config      catalog.GameConfig
	Contestants []Contestant
	GamesPerContestant int
	rng         *rand.Rand
	Logger      *enginelog.Logger

	stats map[string]Stats
}

// NewRunner builds a Runner. gamesPerContestant is, per contestant, how
// many games it is scheduled into across the run.
func NewRunner(cfg catalog.GameConfig, contestants []Contestant, gamesPerContestant int, rng *rand.Rand, logger *enginelog.Logger) *Runner {
	stats := make(map[string]Stats, len(contestants))
	for _, c := range contestants {
		stats[c.Name] = emptyStats()
	}
	return &Runner{
		Config: cfg, Contestants: contestants, GamesPerContestant: gamesPerContestant,
		rng: rng, Logger: logger, stats: stats,
	}
}

// matchup is one scheduled lobby: contestant names mapped to the role
// quota bucket they were dealt into.
type matchup struct {
	impostors []string
	crewmates []string
}

// generateMatchups deals every contestant into games so that, across the
// whole run, each plays impPerTeam games as impostor and crewPerTeam as
// crewmate, per spec.md §4.6:
//
//	imp_per_team  = ceil(gamesPerContestant * num_impostors / num_players)
//	crew_per_team = gamesPerContestant - imp_per_team
//
// Two independently-shuffled multisets realize the quota: one lists every
// contestant impPerTeam times (their impostor-role assignments), the
// other lists every contestant crewPerTeam times (their crewmate-role
// assignments). Lobbies are dealt by popping num_impostors names off the
// impostor multiset and num_players-num_impostors off the crewmate
// multiset, filling any shortfall with fallback bots once a multiset runs
// dry. Independent shuffling (rather than slicing one shared shuffled
// pool into role buckets) is what gives each contestant the guaranteed
// long-run impostor/crewmate ratio; a single shared pool cannot.
func (r *Runner) generateMatchups() []matchup {
	names := make([]string, 0, len(r.Contestants))
	for _, c := range r.Contestants {
		names = append(names, c.Name)
	}
	sort.Strings(names)

	impPerTeam := int(math.Ceil(float64(r.GamesPerContestant*r.Config.NumImpostors) / float64(r.Config.NumPlayers)))
	if impPerTeam > r.GamesPerContestant {
		impPerTeam = r.GamesPerContestant
	}
	crewPerTeam := r.GamesPerContestant - impPerTeam

	impPool := make([]string, 0, len(names)*impPerTeam)
	crewPool := make([]string, 0, len(names)*crewPerTeam)
	for _, n := range names {
		for i := 0; i < impPerTeam; i++ {
			impPool = append(impPool, n)
		}
		for i := 0; i < crewPerTeam; i++ {
			crewPool = append(crewPool, n)
		}
	}
	r.rng.Shuffle(len(impPool), func(i, j int) { impPool[i], impPool[j] = impPool[j], impPool[i] })
	r.rng.Shuffle(len(crewPool), func(i, j int) { crewPool[i], crewPool[j] = crewPool[j], crewPool[i] })

	impSeats := r.Config.NumImpostors
	crewSeats := r.Config.NumPlayers - r.Config.NumImpostors

	var matchups []matchup
	ii, ci := 0, 0
	for ii < len(impPool) || ci < len(crewPool) {
		var m matchup
		for i := 0; i < impSeats; i++ {
			if ii < len(impPool) {
				m.impostors = append(m.impostors, impPool[ii])
				ii++
			} else {
				m.impostors = append(m.impostors, fallbackBotName)
			}
		}
		for i := 0; i < crewSeats; i++ {
			if ci < len(crewPool) {
				m.crewmates = append(m.crewmates, crewPool[ci])
				ci++
			} else {
				m.crewmates = append(m.crewmates, fallbackBotName)
			}
		}
		matchups = append(matchups, m)
	}
	return matchups
}

// GameRecord is the persisted per-game summary a tournament run emits.
type GameRecord struct {
	MatchID string            `json:"match_id"`
	Result  engine.Result     `json:"result"`
	Seats   map[string]string `json:"seats"` // seat id -> contestant name
}

// Run plays every scheduled matchup to completion, updating Elo and
// stats after each, and returns the per-game records in play order.
func (r *Runner) Run(ctx context.Context) []GameRecord {
	byName := make(map[string]Contestant, len(r.Contestants))
	for _, c := range r.Contestants {
		byName[c.Name] = c
	}

	var records []GameRecord
	for _, m := range r.generateMatchups() {
		matchID := uuid.NewString()
		seats := make(map[string]agent.Agent)
		seatOwner := make(map[string]string)

		seatID := 0
		assign := func(name string) {
			id := fmt.Sprintf("p%d", seatID)
			seatID++
			if c, ok := byName[name]; ok {
				seats[id] = c.NewSeat(r.rng)
			} else {
				seats[id] = agent.NewRandomBot(r.rng)
			}
			seatOwner[id] = name
		}
		for _, n := range m.impostors {
			assign(n)
		}
		for _, n := range m.crewmates {
			assign(n)
		}

		e := engine.New(matchID, r.Config, seats, r.rng, r.Logger)
		e.Setup()
		result, err := e.Run(ctx)
		if err != nil {
			// An invariant failure aborts only this game; the tournament
			// keeps scheduling the rest of the contestant pool.
			continue
		}

		r.updateEloAndStats(result, seatOwner)
		records = append(records, GameRecord{MatchID: matchID, Result: result, Seats: seatOwner})
	}
	return records
}

func expectedScore(own, opp float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opp-own)/400))
}

// computeEloDelta matches tournament.py's compute_elo_delta exactly:
// a logistic expected-score update against the average opponent rating.
func computeEloDelta(own, oppAvg float64, won bool, k float64) float64 {
	actual := 0.0
	if won {
		actual = 1.0
	}
	return k * (actual - expectedScore(own, oppAvg))
}

func kFactor(games int) float64 {
	if games < 10 {
		return 32
	}
	return 16
}

func (r *Runner) updateEloAndStats(result engine.Result, seatOwner map[string]string) {
	var winningNames, losingNames []string
	for seatID, role := range result.FinalRoles {
		name := seatOwner[seatID]
		if name == fallbackBotName {
			continue
		}
		won := (role == string(state.RoleImpostor) && result.Winner == "impostors") ||
			(role == string(state.RoleCrewmate) && result.Winner == "crewmates")
		if won {
			winningNames = append(winningNames, name)
		} else {
			losingNames = append(losingNames, name)
		}
	}

	allNames := append(append([]string{}, winningNames...), losingNames...)
	oppAvgFor := func(self string) float64 {
		total, count := 0.0, 0
		for _, n := range allNames {
			if n == self {
				continue
			}
			total += r.stats[n].Elo
			count++
		}
		if count == 0 {
			return startingElo
		}
		return total / float64(count)
	}

	apply := func(name string, won bool) {
		s := r.stats[name]
		delta := computeEloDelta(s.Elo, oppAvgFor(name), won, kFactor(s.Games))
		s.Elo += delta
		s.Games++
		if won {
			s.Wins++
		} else {
			s.Losses++
		}
		r.stats[name] = s
	}
	for _, n := range winningNames {
		apply(n, true)
	}
	for _, n := range losingNames {
		apply(n, false)
	}

	for seatID, role := range result.FinalRoles {
		name := seatOwner[seatID]
		if name == fallbackBotName {
			continue
		}
		s := r.stats[name]
		if role == string(state.RoleImpostor) {
			s.ImpGames++
		} else {
			s.CrewGames++
		}
		r.stats[name] = s
	}
}

// Standing is one row of the final leaderboard.
type Standing struct {
	Name string `json:"name"`
	Stats
}

// Standings returns every contestant's stats sorted by descending Elo.
func (r *Runner) Standings() []Standing {
	out := make([]Standing, 0, len(r.stats))
	for name, s := range r.stats {
		out = append(out, Standing{Name: name, Stats: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elo != out[j].Elo {
			return out[i].Elo > out[j].Elo
		}
		return out[i].Name < out[j].Name
	})
	return out
}
