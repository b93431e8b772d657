// Package engine drives one game from setup through a terminal win
// condition: role assignment, task dealing, the round loop, meeting
// dispatch, and result emission.
//
// The per-round agent fan-out pattern (bounded worker pool over a
// sync.WaitGroup, per-call context.WithTimeout, results gathered behind
// a mutex before the resolver ever runs) is adapted from the teacher's
// one-goroutine-per-connection idiom in client.go's readPump/writePump,
// reapplied here as one goroutine per in-flight agent call this round.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ishananand06/8fold-Amoungus/internal/agent"
	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/enginelog"
	"github.com/ishananand06/8fold-Amoungus/internal/observe"
	"github.com/ishananand06/8fold-Amoungus/internal/resolve"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

const maxConcurrentAgents = 16

// Result is the terminal record of one completed game.
type Result struct {
	MatchID    string            `json:"match_id"`
	Winner     string            `json:"winner"`
	WinCause   string            `json:"win_cause"`
	Rounds     int               `json:"rounds"`
	FinalRoles map[string]string `json:"final_roles"`
}

// Engine owns a single in-progress game: its state, resolver, seated
// agents, and logging sink.
type Engine struct {
	MatchID  string
	State    *state.GameState
	Resolver *resolve.Resolver
	Agents   map[string]agent.Agent
	Logger   *enginelog.Logger
	rng      *rand.Rand
}

// New builds an Engine ready for Setup. cfg must already have passed
// Validate(); seats maps player id to the agent occupying that seat.
func New(matchID string, cfg catalog.GameConfig, seats map[string]agent.Agent, rng *rand.Rand, logger *enginelog.Logger) *Engine {
	s := state.NewGameState(cfg)
	return &Engine{
		MatchID:  matchID,
		State:    s,
		Resolver: resolve.New(s),
		Agents:   seats,
		Logger:   logger,
		rng:      rng,
	}
}

// Setup assigns roles, deals tasks, and places every seat at the spawn
// room. It must run exactly once, before Run.
func (e *Engine) Setup() {
	s := e.State
	ids := make([]string, 0, len(e.Agents))
	for id := range e.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shuffled := append([]string{}, ids...)
	e.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	impostors := make(map[string]bool, s.Config.NumImpostors)
	for i := 0; i < s.Config.NumImpostors && i < len(shuffled); i++ {
		impostors[shuffled[i]] = true
	}

	for _, id := range ids {
		role := state.RoleCrewmate
		if impostors[id] {
			role = state.RoleImpostor
		}
		s.Players[id] = &state.Player{
			ID:                         id,
			Role:                       role,
			Alive:                      true,
			Location:                   catalog.SpawnRoom,
			EmergencyMeetingsRemaining: s.Config.EmergencyMeetingsPerPlayer,
		}
		if role == state.RoleCrewmate {
			s.Tasks[id] = e.dealTasks()
		}
	}
}

// dealTasks samples TasksPerCrewmate templates from the catalog pool,
// guaranteeing at least VisualTasksPerCrewmate of them are visual.
func (e *Engine) dealTasks() []*state.Task {
	pool := append([]catalog.TaskTemplate{}, catalog.TaskPool...)
	e.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	var visual, rest []catalog.TaskTemplate
	for _, t := range pool {
		if t.Visual {
			visual = append(visual, t)
		} else {
			rest = append(rest, t)
		}
	}

	need := e.State.Config.TasksPerCrewmate
	needVisual := e.State.Config.VisualTasksPerCrewmate
	var picked []catalog.TaskTemplate
	for i := 0; i < needVisual && i < len(visual); i++ {
		picked = append(picked, visual[i])
	}
	remaining := append(append([]catalog.TaskTemplate{}, visual[min(needVisual, len(visual)):]...), rest...)
	for i := 0; len(picked) < need && i < len(remaining); i++ {
		picked = append(picked, remaining[i])
	}

	tasks := make([]*state.Task, 0, len(picked))
	for i, t := range picked {
		tasks = append(tasks, &state.Task{
			TaskID: fmt.Sprintf("task-%d", i), Name: t.Name, Location: t.Location, Required: t.Required, Visual: t.Visual,
		})
	}
	return tasks
}

// Run drives the game to completion, returning its terminal Result. ctx
// governs the whole game; per-agent calls get their own timeout derived
// from it. A resolver invariant violation aborts only this game: Run
// recovers the panic, logs it, and returns it as err rather than
// silently patching the state or crashing the process.
func (e *Engine) Run(ctx context.Context) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			invErr, ok := r.(*resolve.EngineInvariantError)
			if !ok {
				invErr = &resolve.EngineInvariantError{Reason: fmt.Sprint(r)}
			}
			e.Logger.Error(e.MatchID, invErr)
			err = invErr
			result = Result{MatchID: e.MatchID, Rounds: e.State.Round}
		}
	}()
	return e.run(ctx), nil
}

func (e *Engine) run(ctx context.Context) Result {
	e.fanOutGameStart(ctx)

	for e.State.Winner == "" {
		select {
		case <-ctx.Done():
			e.State.Winner = "crewmates"
			e.State.WinCause = "timeout"
			e.State.Phase = state.PhaseGameOver
		default:
		}
		if e.State.Winner != "" {
			break
		}

		actions := e.gatherActions(ctx)
		e.Resolver.ResolveRound(actions)

		validated, rejected := 0, 0
		for _, r := range e.State.ActionResults {
			if r.Success {
				validated++
			} else {
				rejected++
			}
		}
		e.Logger.Round(e.MatchID, e.State.Round, string(e.State.Phase), validated, rejected)

		if e.State.Phase == state.PhaseDiscussion {
			e.runMeeting(ctx)
		}
	}

	e.fanOutGameEnd(ctx)
	e.Logger.GameEnd(e.MatchID, e.State.Round, e.State.Winner, e.State.WinCause)

	roles := make(map[string]string, len(e.State.Players))
	for id, p := range e.State.Players {
		roles[id] = string(p.Role)
	}
	return Result{
		MatchID: e.MatchID, Winner: e.State.Winner, WinCause: e.State.WinCause,
		Rounds: e.State.Round, FinalRoles: roles,
	}
}

// fanOut runs fn once per seated agent, bounded to maxConcurrentAgents
// in flight, each under its own per-call timeout derived from ctx.
func (e *Engine) fanOut(ctx context.Context, fn func(cctx context.Context, id string, a agent.Agent)) {
	sem := make(chan struct{}, maxConcurrentAgents)
	var wg sync.WaitGroup
	timeout := time.Duration(e.State.Config.AgentTimeoutSeconds) * time.Second
	for id, a := range e.Agents {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string, a agent.Agent) {
			defer wg.Done()
			defer func() { <-sem }()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			fn(cctx, id, a)
		}(id, a)
	}
	wg.Wait()
}

func (e *Engine) fanOutGameStart(ctx context.Context) {
	e.fanOut(ctx, func(cctx context.Context, id string, a agent.Agent) {
		defer recoverAsNoop()
		info := observe.GenerateGameStartInfo(e.State, id)
		a.OnGameStart(cctx, info)
	})
}

func (e *Engine) fanOutGameEnd(ctx context.Context) {
	e.fanOut(ctx, func(cctx context.Context, id string, a agent.Agent) {
		defer recoverAsNoop()
		info := observe.GenerateGameEndInfo(e.State, id)
		a.OnGameEnd(cctx, info)
	})
}

func recoverAsNoop() {
	recover() //nolint:errcheck // AgentCrash: a panicking callback is treated as if it had done nothing.
}

// gatherActions fans out OnTaskPhase to every seat and collapses a
// timed-out, panicking, or unresponsive agent's action to "wait" —
// the resolver never learns the difference between silence and a
// deliberate wait.
func (e *Engine) gatherActions(ctx context.Context) map[string]state.Action {
	actions := make(map[string]state.Action, len(e.Agents))
	var mu sync.Mutex

	e.fanOut(ctx, func(cctx context.Context, id string, a agent.Agent) {
		act := state.Action{Action: catalog.ActionWait}
		func() {
			defer func() {
				if recover() != nil {
					act = state.Action{Action: catalog.ActionWait}
				}
			}()
			p := e.State.Players[id]
			if p.Alive {
				o := observe.GenerateTaskObservation(e.State, id)
				result := a.OnTaskPhase(cctx, o)
				if cctx.Err() == nil {
					act = result
				}
			} else {
				o := observe.GenerateGhostObservation(e.State, id)
				result := a.OnTaskPhase(cctx, o)
				if cctx.Err() == nil {
					act = result
				}
			}
		}()
		mu.Lock()
		actions[id] = act
		mu.Unlock()
	})
	return actions
}

// runMeeting executes discussion rotations followed by a plurality
// vote, then returns the state to the task phase.
func (e *Engine) runMeeting(ctx context.Context) {
	s := e.State
	mc := s.MeetingContext
	if mc == nil {
		return
	}

	for rotation := 0; rotation < s.Config.DiscussionRotations; rotation++ {
		for _, speaker := range mc.SpeakerOrder {
			a := e.Agents[speaker]
			if a == nil {
				continue
			}
			cctx, cancel := context.WithTimeout(ctx, time.Duration(s.Config.AgentTimeoutSeconds)*time.Second)
			text := e.speak(cctx, speaker, a)
			cancel()
			if text == "" {
				continue
			}
			if len(text) > s.Config.MessageCharLimit {
				text = text[:s.Config.MessageCharLimit]
			}
			s.ChatHistory = append(s.ChatHistory, state.ChatMessage{Speaker: speaker, Rotation: rotation, Text: text})
		}
	}

	s.Phase = state.PhaseVoting
	votes := e.collectVotes(ctx)
	ejected, _ := tallyVotes(votes, mc.SpeakerOrder)

	record := state.MeetingRecord{
		Trigger: mc.Trigger, Caller: mc.CalledBy, BodyFound: mc.BodyFound,
		Transcript: s.ChatHistory, Votes: votes, EjectedPlayer: ejected,
	}
	if ejected != "" {
		p := s.Players[ejected]
		p.Alive = false
		p.Ejected = true
		if s.Config.ConfirmEjects {
			role := p.Role
			record.RoleRevealed = &role
		}
	}
	s.MeetingHistory = append(s.MeetingHistory, record)
	e.Logger.Meeting(e.MatchID, s.Round, mc.Trigger, mc.CalledBy, ejected)

	s.MeetingContext = nil
	s.ChatHistory = nil
	s.Phase = state.PhaseTask

	e.Resolver.CheckWinCondition()
}

func (e *Engine) speak(ctx context.Context, id string, a agent.Agent) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	obs := observe.GenerateDiscussionObservation(e.State, id)
	text = a.OnDiscussion(ctx, obs)
	if ctx.Err() != nil {
		return ""
	}
	return text
}

func (e *Engine) collectVotes(ctx context.Context) map[string]string {
	s := e.State
	votes := make(map[string]string, len(s.MeetingContext.SpeakerOrder))
	var mu sync.Mutex

	e.fanOut(ctx, func(cctx context.Context, id string, a agent.Agent) {
		p := s.Players[id]
		if !p.Alive {
			return
		}
		vote := "skip"
		func() {
			defer func() {
				if recover() != nil {
					vote = "skip"
				}
			}()
			obs := observe.GenerateVotingObservation(s, id)
			result := a.OnVote(cctx, obs)
			if cctx.Err() == nil && result != "" {
				vote = result
			}
		}()
		mu.Lock()
		votes[id] = vote
		mu.Unlock()
	})
	return votes
}

// tallyVotes applies plurality-with-skip rules: a strict, sole
// plurality leader (not "skip") is ejected; any tie — including a tie
// with "skip" — results in no ejection.
func tallyVotes(votes map[string]string, order []string) (ejected string, tally map[string]int) {
	tally = make(map[string]int)
	for _, v := range votes {
		tally[v]++
	}
	best, bestCount := "", -1
	tiedAtBest := 0
	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c := tally[k]
		if c > bestCount {
			best, bestCount, tiedAtBest = k, c, 1
		} else if c == bestCount {
			tiedAtBest++
		}
	}
	if tiedAtBest != 1 || best == "skip" || bestCount == 0 {
		return "", tally
	}
	return best, tally
}
