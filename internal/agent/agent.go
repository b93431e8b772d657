// Package agent defines the decision-making interface games drive, plus
// two reference implementations and the text plumbing an LLM-backed
// agent needs. Decision policy is explicitly out of scope for the
// engine itself (spec Non-goals) — this package exists only so the
// engine has something to call during development and testing.
//
// Grounded on _examples/original_source/agents.py and template_agent.py.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/observe"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

// Agent is the decision-making contract one seat at the table fulfills.
// Every call is handed a context carrying the per-round timeout; an
// agent that ignores ctx.Done() risks being collapsed to "wait" by the
// caller, not by itself.
type Agent interface {
	OnGameStart(ctx context.Context, info observe.GameStartInfo)
	OnTaskPhase(ctx context.Context, obs observe.TaskObservation) state.Action
	OnDiscussion(ctx context.Context, obs observe.MeetingObservation) string
	OnVote(ctx context.Context, obs observe.MeetingObservation) string
	OnGameEnd(ctx context.Context, info observe.GameEndInfo)
}

// RandomBot picks uniformly among its currently available actions. It
// never reasons about role; it is the baseline opponent every matchup
// in a tournament can fall back on.
type RandomBot struct {
	rng *rand.Rand
}

// NewRandomBot builds a RandomBot seeded from the given source.
func NewRandomBot(rng *rand.Rand) *RandomBot {
	return &RandomBot{rng: rng}
}

func (b *RandomBot) OnGameStart(ctx context.Context, info observe.GameStartInfo) {}
func (b *RandomBot) OnGameEnd(ctx context.Context, info observe.GameEndInfo)     {}

func (b *RandomBot) OnTaskPhase(ctx context.Context, obs observe.TaskObservation) state.Action {
	choice := obs.AvailableActions[b.rng.Intn(len(obs.AvailableActions))]
	switch choice {
	case catalog.ActionMove:
		if len(obs.AdjacentRooms) == 0 {
			return state.Action{Action: catalog.ActionWait}
		}
		return state.Action{Action: catalog.ActionMove, Target: obs.AdjacentRooms[b.rng.Intn(len(obs.AdjacentRooms))]}
	case catalog.ActionDoTask, catalog.ActionFakeTask:
		if len(obs.TaskList) == 0 {
			return state.Action{Action: catalog.ActionWait}
		}
		t := obs.TaskList[b.rng.Intn(len(obs.TaskList))]
		return state.Action{Action: choice, Target: t.TaskID}
	case catalog.ActionKill:
		if len(obs.RoomOccupants) == 0 {
			return state.Action{Action: catalog.ActionWait}
		}
		return state.Action{Action: catalog.ActionKill, Target: obs.RoomOccupants[b.rng.Intn(len(obs.RoomOccupants))]}
	case catalog.ActionSabotage:
		return state.Action{Action: catalog.ActionSabotage, Target: "lights"}
	default:
		return state.Action{Action: choice}
	}
}

func (b *RandomBot) OnDiscussion(ctx context.Context, obs observe.MeetingObservation) string {
	return ""
}

func (b *RandomBot) OnVote(ctx context.Context, obs observe.MeetingObservation) string {
	candidates := make([]string, 0, len(obs.Candidates))
	for _, c := range obs.Candidates {
		if c != obs.SelfID {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return "skip"
	}
	return candidates[b.rng.Intn(len(candidates))]
}

// RuleBasedBot plays a simple task-route heuristic: it works any
// incomplete task in its current room, otherwise walks toward its first
// incomplete task by shortest path (or to a random adjacent room when
// none is left). As an impostor it kills when exactly one other player
// shares its room and a kill is available. It does not react to
// sightings, and since its suspicion scores are never raised it votes
// for the first candidate other than itself.
type RuleBasedBot struct {
	rng        *rand.Rand
	suspicion  map[string]int
	taskRoute  []string
}

// NewRuleBasedBot builds a RuleBasedBot seeded from the given source.
func NewRuleBasedBot(rng *rand.Rand) *RuleBasedBot {
	return &RuleBasedBot{rng: rng, suspicion: make(map[string]int)}
}

func (b *RuleBasedBot) OnGameStart(ctx context.Context, info observe.GameStartInfo) {
	b.taskRoute = nil
	for _, t := range info.TaskList {
		b.taskRoute = append(b.taskRoute, t.Location)
	}
}

func (b *RuleBasedBot) OnGameEnd(ctx context.Context, info observe.GameEndInfo) {}

func (b *RuleBasedBot) OnTaskPhase(ctx context.Context, obs observe.TaskObservation) state.Action {
	for _, t := range obs.TaskList {
		if !t.Completed && t.Location == obs.Location {
			return state.Action{Action: catalog.ActionDoTask, Target: t.TaskID}
		}
	}

	if obs.Role == state.RoleImpostor {
		if len(obs.RoomOccupants) == 1 {
			for _, c := range obs.AvailableActions {
				if c == catalog.ActionKill {
					return state.Action{Action: catalog.ActionKill, Target: obs.RoomOccupants[0]}
				}
			}
		}
	}

	var targetLoc string
	for _, t := range obs.TaskList {
		if !t.Completed {
			targetLoc = t.Location
			break
		}
	}
	if targetLoc == "" {
		if len(obs.AdjacentRooms) == 0 {
			return state.Action{Action: catalog.ActionWait}
		}
		return state.Action{Action: catalog.ActionMove, Target: obs.AdjacentRooms[b.rng.Intn(len(obs.AdjacentRooms))]}
	}

	path := BFSShortestPath(obs.Location, targetLoc)
	if len(path) < 2 {
		return state.Action{Action: catalog.ActionWait}
	}
	return state.Action{Action: catalog.ActionMove, Target: path[1]}
}

func (b *RuleBasedBot) OnDiscussion(ctx context.Context, obs observe.MeetingObservation) string {
	if obs.BodyFound != "" {
		return fmt.Sprintf("found %s's body near the last meeting", obs.BodyFound)
	}
	return "nothing suspicious to report"
}

func (b *RuleBasedBot) OnVote(ctx context.Context, obs observe.MeetingObservation) string {
	most, worst := "", -1
	for _, c := range obs.Candidates {
		if c == obs.SelfID {
			continue
		}
		if b.suspicion[c] > worst {
			worst = b.suspicion[c]
			most = c
		}
	}
	if most == "" {
		return "skip"
	}
	return most
}

// BFSShortestPath returns the shortest room path from -> to (inclusive
// of both ends), or nil if no path exists.
func BFSShortestPath(from, to string) []string {
	if from == to {
		return []string{from}
	}
	visited := map[string]bool{from: true}
	parent := map[string]string{}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		neighbors := append([]string{}, catalog.MapAdjacency[cur]...)
		sort.Strings(neighbors)
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			parent[n] = cur
			if n == to {
				path := []string{to}
				for cur := to; cur != from; {
					cur = parent[cur]
					path = append([]string{cur}, path...)
				}
				return path
			}
			queue = append(queue, n)
		}
	}
	return nil
}

// LLMAgent wraps a text-completion provider behind the Agent interface.
// It never issues network calls itself (out of scope per spec
// Non-goals) — Complete is supplied by the caller, keeping any actual
// transport outside this package.
type LLMAgent struct {
	Provider string
	Model    string
	Complete func(ctx context.Context, prompt string) (string, error)
	fallback Agent
}

// NewLLMAgent builds an LLMAgent; fallback is used whenever Complete
// errors, times out, or its reply can't be parsed into a valid action.
func NewLLMAgent(provider, model string, complete func(context.Context, string) (string, error), fallback Agent) *LLMAgent {
	return &LLMAgent{Provider: provider, Model: model, Complete: complete, fallback: fallback}
}

func (a *LLMAgent) OnGameStart(ctx context.Context, info observe.GameStartInfo) {
	a.fallback.OnGameStart(ctx, info)
}
func (a *LLMAgent) OnGameEnd(ctx context.Context, info observe.GameEndInfo) {
	a.fallback.OnGameEnd(ctx, info)
}

func (a *LLMAgent) OnTaskPhase(ctx context.Context, obs observe.TaskObservation) state.Action {
	prompt := FormatObservationAsText(obs)
	reply, err := a.Complete(ctx, prompt)
	if err != nil {
		return a.fallback.OnTaskPhase(ctx, obs)
	}
	action, ok := ParseLLMAction(reply)
	if !ok {
		return a.fallback.OnTaskPhase(ctx, obs)
	}
	return action
}

func (a *LLMAgent) OnDiscussion(ctx context.Context, obs observe.MeetingObservation) string {
	reply, err := a.Complete(ctx, "Discuss. Body found: "+obs.BodyFound)
	if err != nil {
		return a.fallback.OnDiscussion(ctx, obs)
	}
	return strings.TrimSpace(reply)
}

func (a *LLMAgent) OnVote(ctx context.Context, obs observe.MeetingObservation) string {
	reply, err := a.Complete(ctx, "Vote for one of: "+strings.Join(obs.Candidates, ", "))
	if err != nil {
		return a.fallback.OnVote(ctx, obs)
	}
	vote, ok := ParseLLMVote(reply, obs.Candidates)
	if !ok {
		return a.fallback.OnVote(ctx, obs)
	}
	return vote
}

// FormatObservationAsText renders a task observation as plain English
// for a text-completion agent, grounded on agents.py's
// format_observation_as_text.
func FormatObservationAsText(obs observe.TaskObservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d. You are %s (%s), currently %s.\n", obs.Round, obs.SelfID, obs.Role, obs.Location)
	if len(obs.RoomOccupants) > 0 {
		fmt.Fprintf(&b, "With you: %s.\n", strings.Join(obs.RoomOccupants, ", "))
	}
	if len(obs.VisibleBodies) > 0 {
		fmt.Fprintf(&b, "Bodies here: %s.\n", strings.Join(obs.VisibleBodies, ", "))
	}
	fmt.Fprintf(&b, "Adjacent rooms: %s.\n", strings.Join(obs.AdjacentRooms, ", "))
	if len(obs.TaskList) > 0 {
		b.WriteString("Your tasks:\n")
		for _, t := range obs.TaskList {
			status := "incomplete"
			if t.Completed {
				status = "complete"
			}
			fmt.Fprintf(&b, "  - %s at %s (%d/%d, %s)\n", t.Name, t.Location, t.Progress, t.Required, status)
		}
	}
	if obs.ImpostorInfo != nil {
		fmt.Fprintf(&b, "Your teammates: %s. Kill cooldown: %d.\n",
			strings.Join(obs.ImpostorInfo.Teammates, ", "), obs.ImpostorInfo.KillCooldown)
	}
	if obs.ActiveSabotageType != "" {
		fmt.Fprintf(&b, "Active sabotage: %s.\n", obs.ActiveSabotageType)
	}
	if obs.PreviousActionResult != nil && !obs.PreviousActionResult.Success {
		fmt.Fprintf(&b, "Your last action failed: %s.\n", obs.PreviousActionResult.Reason)
	}
	fmt.Fprintf(&b, "Available actions: %s.\n", strings.Join(obs.AvailableActions, ", "))
	b.WriteString("Reply with a JSON object: {\"action\": \"...\", \"target\": \"...\"}\n")
	return b.String()
}

// ParseLLMAction extracts a state.Action from a free-text LLM reply,
// tolerating code fences and surrounding prose, grounded on
// agents.py's parse_llm_json.
func ParseLLMAction(reply string) (state.Action, bool) {
	raw, ok := extractJSONObject(reply)
	if !ok {
		return state.Action{}, false
	}
	var action state.Action
	if err := json.Unmarshal([]byte(raw), &action); err != nil || action.Action == "" {
		return state.Action{}, false
	}
	return action, true
}

// ParseLLMVote extracts a vote target (or "skip") from a free-text
// reply, falling back to a substring match against the candidate list.
func ParseLLMVote(reply string, candidates []string) (string, bool) {
	trimmed := strings.TrimSpace(reply)
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "skip") {
		return "skip", true
	}
	for _, c := range candidates {
		if strings.Contains(reply, c) {
			return c, true
		}
	}
	return "", false
}

// extractJSONObject finds the first balanced {...} span in text,
// stripping a surrounding ```json fence if present.
func extractJSONObject(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
