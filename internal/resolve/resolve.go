// Package resolve implements the Action Resolver: the pure per-round
// transition function (state, actions) -> state'. Ordering, tie-breaks
// and win-condition checks all live here; this is the core of the core.
//
// Grounded line-for-line on
// _examples/original_source/engine.py:ActionResolver.resolve_round.
package resolve

import (
	"fmt"
	"sort"

	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

// EngineInvariantError is raised (as a panic, recovered at the game
// boundary) when the resolver discovers state it should never be able
// to produce — e.g. a player in an unknown room. Per spec.md §7 this is
// fatal for the game in progress; it must never be silently patched.
type EngineInvariantError struct {
	Reason string
}

func (e *EngineInvariantError) Error() string {
	return fmt.Sprintf("engine invariant violated: %s", e.Reason)
}

// Resolver advances a GameState by exactly one round at a time.
type Resolver struct {
	State *state.GameState
}

// New returns a Resolver bound to the given state.
func New(s *state.GameState) *Resolver {
	return &Resolver{State: s}
}

func sortedPlayerIDs(s *state.GameState) []string {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveRound consumes a mapping player_id -> action and advances the
// state by exactly one round, per the 13 ordered phases in spec.md §4.3.
// If the game already has a winner, this is a no-op.
func (r *Resolver) ResolveRound(actions map[string]state.Action) {
	s := r.State
	if s.Winner != "" {
		return
	}

	allPlayers := sortedPlayerIDs(s)

	// Step 0: reset transient state, advance round counter.
	s.EventsLastRound = make(map[string][]string, len(allPlayers))
	for _, pid := range allPlayers {
		s.EventsLastRound[pid] = nil
	}
	s.AdminTableSnapshot = nil
	s.Round++
	s.ActionResults = make(map[string]state.ActionResult, len(allPlayers))

	// Step 1: cooldowns.
	for _, p := range s.Players {
		if p.Role == state.RoleImpostor && p.KillCooldown > 0 {
			p.KillCooldown--
		}
	}
	if s.SabotageCooldown > 0 {
		s.SabotageCooldown--
	}

	// Step 2: sabotage countdown.
	if s.Sabotage != nil && s.Sabotage.Critical && s.Sabotage.Countdown != nil {
		*s.Sabotage.Countdown--
		if *s.Sabotage.Countdown <= 0 {
			s.Winner = "impostors"
			s.WinCause = "sabotage_" + s.Sabotage.Type
			s.Phase = state.PhaseGameOver
			return
		}
	}

	// Step 3: validate actions.
	validated := make(map[string]state.Action, len(allPlayers))
	for pid, action := range actions {
		if _, ok := s.Players[pid]; !ok {
			continue
		}
		result := r.validate(pid, action)
		s.ActionResults[pid] = result
		if !result.Success {
			validated[pid] = state.Action{Action: catalog.ActionWait}
		} else {
			validated[pid] = action
		}
	}
	for _, pid := range allPlayers {
		if _, ok := validated[pid]; !ok {
			validated[pid] = state.Action{Action: catalog.ActionWait}
			s.ActionResults[pid] = state.ActionResult{Action: catalog.ActionWait, Success: true}
		}
	}

	// Step 4: resolve movement.
	r.resolveMovement(validated)
	for _, pid := range allPlayers {
		if _, ok := catalog.MapAdjacency[s.Players[pid].Location]; !ok {
			panic(&EngineInvariantError{Reason: fmt.Sprintf("player %s is in unknown room %q", pid, s.Players[pid].Location)})
		}
	}

	// Step 5: resolve kills.
	r.resolveKills(validated)
	if r.checkWinCondition() {
		return
	}

	// Step 6: resolve tasks.
	r.resolveTasks(validated)
	if r.checkWinCondition() {
		return
	}

	// Step 7: meetings. Returns true if a meeting was triggered (and
	// resolution must stop here for this round).
	if r.resolveMeetings(validated) {
		return
	}

	// Step 8: sabotage triggers.
	r.resolveSabotageTrigger(validated)

	// Step 9: fix actions.
	r.resolveFixActions(validated)

	// Step 10: admin table.
	r.resolveAdminTable(validated)

	// Step 11: fill remaining last_action.
	for pid, action := range validated {
		switch action.Action {
		case catalog.ActionWait, catalog.ActionReport, catalog.ActionCallEmergency, catalog.ActionSabotage:
			s.Players[pid].LastAction = "idle"
		}
	}

	// Step 12: sighting history.
	r.updateSightingHistory()

	// Step 13: log and final win-check.
	s.GameLog = append(s.GameLog, state.RoundLogEntry{
		Round:   s.Round,
		Actions: validated,
		Results: cloneResults(s.ActionResults),
	})
	r.checkWinCondition()
}

func cloneResults(m map[string]state.ActionResult) map[string]state.ActionResult {
	out := make(map[string]state.ActionResult, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *Resolver) isBlinded(p *state.Player) bool {
	s := r.State
	return s.Sabotage != nil && s.Sabotage.Type == "lights" && p.Role == state.RoleCrewmate
}

type move struct {
	pid    string
	origin string
	target string
}

func (r *Resolver) resolveMovement(validated map[string]state.Action) {
	s := r.State
	var moves []move
	moverSet := make(map[string]bool)
	for _, pid := range sortedKeysFromValidated(validated) {
		action := validated[pid]
		if action.Action == catalog.ActionMove {
			p := s.Players[pid]
			moves = append(moves, move{pid: pid, origin: p.Location, target: action.Target})
			moverSet[pid] = true
			p.LastAction = "moving"
		}
	}

	for _, m := range moves {
		s.Players[m.pid].Location = m.target
		for _, other := range s.Players {
			if other.ID == m.pid || !other.Alive || moverSet[other.ID] {
				continue
			}
			if other.Location == m.origin {
				s.EventsLastRound[other.ID] = append(s.EventsLastRound[other.ID], fmt.Sprintf("%s left toward %s", m.pid, m.target))
			} else if other.Location == m.target {
				s.EventsLastRound[other.ID] = append(s.EventsLastRound[other.ID], fmt.Sprintf("%s arrived from %s", m.pid, m.origin))
			}
		}
	}

	for i, a := range moves {
		for _, b := range moves[i+1:] {
			if a.origin == b.target && a.target == b.origin {
				s.EventsLastRound[a.pid] = append(s.EventsLastRound[a.pid], fmt.Sprintf("You passed %s between %s and %s", b.pid, a.origin, a.target))
				s.EventsLastRound[b.pid] = append(s.EventsLastRound[b.pid], fmt.Sprintf("You passed %s between %s and %s", a.pid, b.origin, b.target))
			}
		}
		hist := append(s.MovementHistory[a.pid], state.MovementEntry{Round: s.Round, Location: a.target})
		if len(hist) > s.Config.MemoryMovementCap {
			hist = hist[len(hist)-s.Config.MemoryMovementCap:]
		}
		s.MovementHistory[a.pid] = hist
	}
}

func sortedKeysFromValidated(m map[string]state.Action) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Resolver) resolveKills(validated map[string]state.Action) {
	s := r.State
	var killers []string
	for pid, action := range validated {
		if action.Action == catalog.ActionKill {
			killers = append(killers, pid)
		}
	}
	sort.Strings(killers)

	for _, pid := range killers {
		killer := s.Players[pid]
		targetID := validated[pid].Target
		target := s.Players[targetID]
		result := s.ActionResults[pid]
		if target != nil && target.Alive && target.Location == killer.Location {
			target.Alive = false
			s.Bodies = append(s.Bodies, state.Body{PlayerID: targetID, Location: target.Location})
			killer.KillCooldown = s.Config.KillCooldown
			result.Success = true
			result.Reason = ""

			for _, w := range s.Players {
				if w.ID == killer.ID || w.ID == target.ID {
					continue
				}
				if w.Alive && w.Location == killer.Location && !r.isBlinded(w) {
					s.EventsLastRound[w.ID] = append(s.EventsLastRound[w.ID], fmt.Sprintf("%s was killed!", targetID))
				}
			}
		} else {
			result.Success = false
			result.Reason = fmt.Sprintf("target %s is not in your room after movement resolved or is dead", targetID)
		}
		s.ActionResults[pid] = result
	}
}

func (r *Resolver) resolveTasks(validated map[string]state.Action) {
	s := r.State
	for _, pid := range sortedKeysFromValidated(validated) {
		action := validated[pid]
		p := s.Players[pid]
		switch action.Action {
		case catalog.ActionDoTask:
			task := findTask(s.Tasks[pid], action.Target)
			if task != nil {
				task.Progress++
				p.LastAction = "doing_task"
				if task.Completed() && task.Visual {
					for _, w := range s.Players {
						if w.ID == p.ID {
							continue
						}
						if w.Alive && w.Location == p.Location && !r.isBlinded(w) {
							s.EventsLastRound[w.ID] = append(s.EventsLastRound[w.ID], fmt.Sprintf("%s completed visual task %s in %s", pid, task.Name, p.Location))
						}
					}
				}
			}
		case catalog.ActionFakeTask:
			p.LastAction = "doing_task"
		}
	}
}

func findTask(tasks []*state.Task, id string) *state.Task {
	for _, t := range tasks {
		if t.TaskID == id {
			return t
		}
	}
	return nil
}

// resolveMeetings returns true if resolution must stop here this round.
func (r *Resolver) resolveMeetings(validated map[string]state.Action) bool {
	s := r.State
	var reports, emergencies []string
	for pid, action := range validated {
		switch action.Action {
		case catalog.ActionReport:
			reports = append(reports, pid)
		case catalog.ActionCallEmergency:
			emergencies = append(emergencies, pid)
		}
	}
	sort.Strings(reports)
	sort.Strings(emergencies)

	if len(reports) == 0 && len(emergencies) == 0 {
		return false
	}

	var trigger, caller string
	var bodyFound *state.Body
	if len(reports) > 0 {
		caller = reports[0]
		trigger = "body_report"
		room := s.Players[caller].Location
		for i := range s.Bodies {
			if s.Bodies[i].Location == room {
				bodyFound = &s.Bodies[i]
				break
			}
		}
	} else {
		caller = emergencies[0]
		trigger = "emergency_meeting"
		s.Players[caller].EmergencyMeetingsRemaining--
	}

	mc := &state.MeetingContext{Trigger: trigger, CalledBy: caller}
	if bodyFound != nil {
		mc.BodyFound = bodyFound.PlayerID
		mc.BodyLocation = bodyFound.Location
		// consume the reported body.
		filtered := s.Bodies[:0]
		removed := false
		for _, b := range s.Bodies {
			if !removed && b.PlayerID == bodyFound.PlayerID && b.Location == bodyFound.Location {
				removed = true
				continue
			}
			filtered = append(filtered, b)
		}
		s.Bodies = filtered
	}

	alive := make([]string, 0, len(s.Players))
	for _, pid := range sortedPlayerIDs(s) {
		if s.Players[pid].Alive {
			alive = append(alive, pid)
		}
	}
	mc.SpeakerOrder = rotateFrom(alive, caller)
	s.MeetingContext = mc
	s.Phase = state.PhaseDiscussion

	for _, other := range append(append([]string{}, reports...), emergencies...) {
		if other == caller {
			continue
		}
		s.ActionResults[other] = state.ActionResult{
			Action:  validated[other].Action,
			Success: false,
			Reason:  "superseded by another meeting",
		}
	}
	return true
}

// rotateFrom returns alive (already sorted) rotated so it starts at caller.
func rotateFrom(alive []string, caller string) []string {
	idx := -1
	for i, id := range alive {
		if id == caller {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return alive
	}
	out := make([]string, 0, len(alive))
	out = append(out, alive[idx:]...)
	out = append(out, alive[:idx]...)
	return out
}

func (r *Resolver) resolveSabotageTrigger(validated map[string]state.Action) {
	s := r.State
	if s.Sabotage != nil {
		return
	}
	var saboteurs []string
	for pid, action := range validated {
		if action.Action == catalog.ActionSabotage {
			saboteurs = append(saboteurs, pid)
		}
	}
	if len(saboteurs) == 0 {
		return
	}
	sort.Strings(saboteurs)
	pid := saboteurs[0]
	sabName := validated[pid].Target
	catalogDefs := s.Config.Sabotages()
	def, ok := catalogDefs[sabName]
	if !ok {
		return
	}
	var countdown *int
	if def.Critical {
		v := s.Config.SabotageCountdown
		countdown = &v
	}
	fixProgress := make(map[string]int, len(def.FixLocations))
	fixRequired := make(map[string]int, len(def.FixLocations))
	for loc, req := range def.FixLocations {
		fixProgress[loc] = 0
		fixRequired[loc] = req
	}
	s.Sabotage = &state.ActiveSabotage{
		Type:        sabName,
		Critical:    def.Critical,
		Countdown:   countdown,
		FixProgress: fixProgress,
		FixRequired: fixRequired,
	}
}

func (r *Resolver) resolveFixActions(validated map[string]state.Action) {
	s := r.State
	for _, pid := range sortedKeysFromValidated(validated) {
		action := validated[pid]
		if action.Action != catalog.ActionFixSabotage {
			continue
		}
		p := s.Players[pid]
		p.LastAction = "fixing"
		if s.Sabotage != nil {
			if _, ok := s.Sabotage.FixProgress[p.Location]; ok {
				s.Sabotage.FixProgress[p.Location]++
			}
		}
	}
	if s.Sabotage != nil && s.Sabotage.Resolved() {
		s.Sabotage = nil
		s.SabotageCooldown = s.Config.SabotageCooldown
	}
}

func (r *Resolver) resolveAdminTable(validated map[string]state.Action) {
	s := r.State
	var adminUsers []string
	for pid, action := range validated {
		if action.Action == catalog.ActionUseAdmin {
			adminUsers = append(adminUsers, pid)
		}
	}
	if len(adminUsers) == 0 {
		return
	}
	sort.Strings(adminUsers)
	counts := make(map[string]int, len(catalog.MapAdjacency))
	for room := range catalog.MapAdjacency {
		counts[room] = 0
	}
	for _, p := range s.Players {
		if p.Alive {
			counts[p.Location]++
		}
	}
	s.AdminTableSnapshot = make(map[string]map[string]int, len(adminUsers))
	for _, pid := range adminUsers {
		s.Players[pid].LastAction = "admin"
		snapshot := make(map[string]int, len(counts))
		for k, v := range counts {
			snapshot[k] = v
		}
		s.AdminTableSnapshot[pid] = snapshot
	}
}

func (r *Resolver) updateSightingHistory() {
	s := r.State
	for _, pid := range sortedPlayerIDs(s) {
		p := s.Players[pid]
		if !p.Alive || r.isBlinded(p) {
			continue
		}
		for _, otherID := range sortedPlayerIDs(s) {
			other := s.Players[otherID]
			if other.ID == p.ID || !other.Alive || other.Location != p.Location {
				continue
			}
			hist := append(s.SightingHistory[p.ID], state.SightingEntry{
				Round:      s.Round,
				ObservedID: other.ID,
				Location:   p.Location,
				Action:     other.LastAction,
			})
			if len(hist) > s.Config.MemorySightingCap {
				hist = hist[len(hist)-s.Config.MemorySightingCap:]
			}
			s.SightingHistory[p.ID] = hist
		}
	}
}

// CheckWinCondition re-evaluates win conditions on demand — used by the
// engine after an ejection changes living counts outside a normal round.
func (r *Resolver) CheckWinCondition() bool {
	return r.checkWinCondition()
}

// checkWinCondition evaluates the win conditions in spec.md §4.3.2
// order, setting Winner/WinCause/Phase and returning true if a winner
// was just determined (or already existed).
func (r *Resolver) checkWinCondition() bool {
	s := r.State
	if s.Winner != "" {
		return true
	}
	crewmates, impostors := s.LivingCounts()

	if impostors == 0 {
		s.Winner = "crewmates"
		s.WinCause = "all_impostors_eliminated"
		s.Phase = state.PhaseGameOver
		return true
	}
	if impostors >= crewmates {
		s.Winner = "impostors"
		s.WinCause = "impostors_majority"
		s.Phase = state.PhaseGameOver
		return true
	}
	if s.Sabotage != nil && s.Sabotage.Critical && s.Sabotage.Countdown != nil && *s.Sabotage.Countdown <= 0 {
		s.Winner = "impostors"
		s.WinCause = "sabotage_" + s.Sabotage.Type
		s.Phase = state.PhaseGameOver
		return true
	}
	if s.GlobalTaskProgress() >= 1.0 {
		s.Winner = "crewmates"
		s.WinCause = "all_tasks_completed"
		s.Phase = state.PhaseGameOver
		return true
	}
	if s.Round >= s.Config.MaxTotalRounds {
		s.Winner = "crewmates"
		s.WinCause = "timeout"
		s.Phase = state.PhaseGameOver
		return true
	}
	return false
}

// validate checks one action against the rules in spec.md §4.3.1.
func (r *Resolver) validate(playerID string, action state.Action) state.ActionResult {
	s := r.State
	if action.Action == "" {
		return state.ActionResult{Action: catalog.ActionWait, Success: false, Reason: "malformed action"}
	}
	act := action.Action
	p, ok := s.Players[playerID]
	if !ok {
		return state.ActionResult{Action: act, Success: false, Reason: "player not found"}
	}

	if act == catalog.ActionWait {
		return state.ActionResult{Action: act, Success: true}
	}

	if !p.Alive {
		switch act {
		case catalog.ActionMove:
			if contains(catalog.MapAdjacency[p.Location], action.Target) {
				return state.ActionResult{Action: act, Success: true}
			}
			return state.ActionResult{Action: act, Success: false, Reason: "invalid move target"}
		case catalog.ActionDoTask:
			if p.Role == state.RoleCrewmate && s.Config.GhostTasksEnabled {
				task := findTask(s.Tasks[playerID], action.Target)
				if task != nil && !task.Completed() && task.Location == p.Location {
					return state.ActionResult{Action: act, Success: true}
				}
				return state.ActionResult{Action: act, Success: false, Reason: "invalid task or location"}
			}
			return state.ActionResult{Action: act, Success: false, Reason: "ghosts can only move or do tasks"}
		default:
			return state.ActionResult{Action: act, Success: false, Reason: "ghosts can only move or do tasks"}
		}
	}

	switch act {
	case catalog.ActionMove:
		if contains(catalog.MapAdjacency[p.Location], action.Target) {
			return state.ActionResult{Action: act, Success: true}
		}
		return state.ActionResult{Action: act, Success: false, Reason: "invalid move target"}

	case catalog.ActionDoTask:
		if p.Role != state.RoleCrewmate {
			return state.ActionResult{Action: act, Success: false, Reason: "only crewmates do tasks"}
		}
		task := findTask(s.Tasks[playerID], action.Target)
		if task == nil {
			return state.ActionResult{Action: act, Success: false, Reason: "task not found"}
		}
		if task.Completed() {
			return state.ActionResult{Action: act, Success: false, Reason: "task already complete"}
		}
		if task.Location != p.Location {
			return state.ActionResult{Action: act, Success: false, Reason: "wrong room for task"}
		}
		return state.ActionResult{Action: act, Success: true}

	case catalog.ActionFakeTask:
		if p.Role != state.RoleImpostor {
			return state.ActionResult{Action: act, Success: false, Reason: "only impostors can fake tasks"}
		}
		return state.ActionResult{Action: act, Success: true}

	case catalog.ActionKill:
		if p.Role != state.RoleImpostor {
			return state.ActionResult{Action: act, Success: false, Reason: "only impostors can kill"}
		}
		if p.KillCooldown > 0 {
			return state.ActionResult{Action: act, Success: false, Reason: "kill cooldown active"}
		}
		target := s.Players[action.Target]
		if target == nil || !target.Alive {
			return state.ActionResult{Action: act, Success: false, Reason: "invalid target"}
		}
		if target.Role == state.RoleImpostor {
			return state.ActionResult{Action: act, Success: false, Reason: "cannot kill teammate"}
		}
		return state.ActionResult{Action: act, Success: true}

	case catalog.ActionReport:
		for _, b := range s.Bodies {
			if b.Location == p.Location {
				return state.ActionResult{Action: act, Success: true}
			}
		}
		return state.ActionResult{Action: act, Success: false, Reason: "no body to report"}

	case catalog.ActionCallEmergency:
		if p.Location != catalog.SpawnRoom {
			return state.ActionResult{Action: act, Success: false, Reason: "must be in " + catalog.SpawnRoom}
		}
		if p.EmergencyMeetingsRemaining <= 0 {
			return state.ActionResult{Action: act, Success: false, Reason: "no meetings left"}
		}
		if s.Sabotage != nil && s.Sabotage.Critical {
			return state.ActionResult{Action: act, Success: false, Reason: "critical sabotage active"}
		}
		return state.ActionResult{Action: act, Success: true}

	case catalog.ActionSabotage:
		if p.Role != state.RoleImpostor {
			return state.ActionResult{Action: act, Success: false, Reason: "only impostors can sabotage"}
		}
		if s.Sabotage != nil {
			return state.ActionResult{Action: act, Success: false, Reason: "sabotage already active"}
		}
		if s.SabotageCooldown > 0 {
			return state.ActionResult{Action: act, Success: false, Reason: "sabotage cooldown active"}
		}
		if _, ok := s.Config.Sabotages()[action.Target]; !ok {
			return state.ActionResult{Action: act, Success: false, Reason: "invalid sabotage"}
		}
		return state.ActionResult{Action: act, Success: true}

	case catalog.ActionFixSabotage:
		if s.Sabotage == nil {
			return state.ActionResult{Action: act, Success: false, Reason: "no active sabotage"}
		}
		if _, ok := s.Sabotage.FixRequired[p.Location]; !ok {
			return state.ActionResult{Action: act, Success: false, Reason: "wrong room to fix"}
		}
		return state.ActionResult{Action: act, Success: true}

	case catalog.ActionUseAdmin:
		if p.Location != "Admin" {
			return state.ActionResult{Action: act, Success: false, Reason: "must be in Admin"}
		}
		return state.ActionResult{Action: act, Success: true}

	default:
		return state.ActionResult{Action: act, Success: false, Reason: "unknown action"}
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
