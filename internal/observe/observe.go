// Package observe builds the information-asymmetric, per-player view of
// a GameState. Every function here is a pure read: it never mutates the
// state it is handed.
//
// Grounded on _examples/original_source/engine.py:ObservationGenerator.
package observe

import (
	"sort"

	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

// TaskView is a crewmate-facing task summary.
type TaskView struct {
	TaskID    string `json:"task_id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	Required  int    `json:"required"`
	Progress  int    `json:"progress"`
	Completed bool   `json:"completed"`
}

// ImpostorInfo is visible only to impostors: teammates and kill state.
type ImpostorInfo struct {
	Teammates    []string `json:"teammates"`
	KillCooldown int      `json:"kill_cooldown"`
}

// TaskObservation is the per-player view during the task phase.
type TaskObservation struct {
	Round                int                 `json:"round"`
	Phase                string              `json:"phase"`
	SelfID               string              `json:"self_id"`
	Role                 state.Role          `json:"role"`
	Location             string              `json:"location"`
	Alive                bool                `json:"alive"`
	AdjacentRooms         []string            `json:"adjacent_rooms"`
	RoomOccupants        []string            `json:"room_occupants"`
	VisibleBodies        []string            `json:"visible_bodies"`
	TaskList             []TaskView          `json:"task_list,omitempty"`
	GlobalTaskProgress   float64             `json:"global_task_progress"`
	ImpostorInfo         *ImpostorInfo       `json:"impostor_info,omitempty"`
	ActiveSabotageType   string              `json:"active_sabotage_type,omitempty"`
	AdminTableData       map[string]int      `json:"admin_table_data,omitempty"`
	AvailableActions     []string            `json:"available_actions"`
	PreviousActionResult *state.ActionResult `json:"previous_action_result,omitempty"`
	EventsLastRound      []string            `json:"events_last_round,omitempty"`
	MemorySummary        MemorySummary       `json:"memory_summary"`
}

// MemorySummary is the capped recall window handed to an agent.
type MemorySummary struct {
	RecentMovements []state.MovementEntry `json:"recent_movements"`
	RecentSightings []state.SightingEntry `json:"recent_sightings"`
}

// lightsBlind reports whether an active lights sabotage blinds this
// (crewmate) observer to room occupants and bodies alike, per
// _examples/original_source/engine.py:128-136,187 (players_present and
// bodies_present are zeroed together, never independently).
func lightsBlind(s *state.GameState, p *state.Player) bool {
	return s.Sabotage != nil && s.Sabotage.Type == "lights" && p.Role == state.RoleCrewmate
}

func commsDisabled(s *state.GameState) bool {
	return s.Sabotage != nil && s.Sabotage.Type == "comms"
}

func memorySummary(s *state.GameState, playerID string) MemorySummary {
	return MemorySummary{
		RecentMovements: s.MovementHistory[playerID],
		RecentSightings: s.SightingHistory[playerID],
	}
}

func availableActionsAlive(s *state.GameState, p *state.Player) []string {
	actions := []string{catalog.ActionWait, catalog.ActionMove}
	switch p.Role {
	case state.RoleCrewmate:
		actions = append(actions, catalog.ActionDoTask)
	case state.RoleImpostor:
		actions = append(actions, catalog.ActionFakeTask)
		if p.KillCooldown == 0 {
			actions = append(actions, catalog.ActionKill)
		}
		if s.Sabotage == nil && s.SabotageCooldown == 0 {
			actions = append(actions, catalog.ActionSabotage)
		}
	}
	if !lightsBlind(s, p) {
		for _, b := range s.Bodies {
			if b.Location == p.Location {
				actions = append(actions, catalog.ActionReport)
				break
			}
		}
	}
	if p.Location == catalog.SpawnRoom && p.EmergencyMeetingsRemaining > 0 &&
		!(s.Sabotage != nil && s.Sabotage.Critical) {
		actions = append(actions, catalog.ActionCallEmergency)
	}
	if s.Sabotage != nil {
		if _, ok := s.Sabotage.FixRequired[p.Location]; ok {
			actions = append(actions, catalog.ActionFixSabotage)
		}
	}
	if p.Location == "Admin" {
		actions = append(actions, catalog.ActionUseAdmin)
	}
	return actions
}

// GenerateTaskObservation builds the task-phase view for a living player.
func GenerateTaskObservation(s *state.GameState, playerID string) TaskObservation {
	p := s.Players[playerID]
	obs := TaskObservation{
		Round:              s.Round,
		Phase:              string(s.Phase),
		SelfID:             playerID,
		Role:               p.Role,
		Location:           p.Location,
		Alive:              p.Alive,
		AdjacentRooms:      append([]string{}, catalog.MapAdjacency[p.Location]...),
		GlobalTaskProgress: s.GlobalTaskProgress(),
		EventsLastRound:    s.EventsLastRound[playerID],
		MemorySummary:      memorySummary(s, playerID),
	}

	if lightsBlind(s, p) {
		obs.RoomOccupants = nil
	} else {
		for _, other := range sortedPlayers(s) {
			if other.ID == p.ID || !other.Alive || other.Location != p.Location {
				continue
			}
			obs.RoomOccupants = append(obs.RoomOccupants, other.ID)
		}
		for _, b := range s.Bodies {
			if b.Location == p.Location {
				obs.VisibleBodies = append(obs.VisibleBodies, b.PlayerID)
			}
		}
	}

	if !commsDisabled(s) {
		for _, t := range s.Tasks[playerID] {
			obs.TaskList = append(obs.TaskList, TaskView{
				TaskID: t.TaskID, Name: t.Name, Location: t.Location,
				Required: t.Required, Progress: t.Progress, Completed: t.Completed(),
			})
		}
	}

	if p.Role == state.RoleImpostor {
		var teammates []string
		for _, other := range sortedPlayers(s) {
			if other.ID != p.ID && other.Role == state.RoleImpostor {
				teammates = append(teammates, other.ID)
			}
		}
		obs.ImpostorInfo = &ImpostorInfo{Teammates: teammates, KillCooldown: p.KillCooldown}
	}

	if s.Sabotage != nil {
		obs.ActiveSabotageType = s.Sabotage.Type
	}

	if snapshot, ok := s.AdminTableSnapshot[playerID]; ok {
		obs.AdminTableData = snapshot
	}

	if result, ok := s.ActionResults[playerID]; ok {
		r := result
		obs.PreviousActionResult = &r
	}

	obs.AvailableActions = availableActionsAlive(s, p)
	return obs
}

// GenerateGhostObservation builds the reduced view for a dead player.
// Ghosts may move freely and, if ghost_tasks_enabled, keep working tasks;
// every other field a living observation carries (room occupants, other
// bodies, impostor info, admin data) is stripped.
func GenerateGhostObservation(s *state.GameState, playerID string) TaskObservation {
	p := s.Players[playerID]
	obs := TaskObservation{
		Round:              s.Round,
		Phase:              string(s.Phase),
		SelfID:             playerID,
		Role:               p.Role,
		Location:           p.Location,
		Alive:              false,
		AdjacentRooms:      append([]string{}, catalog.MapAdjacency[p.Location]...),
		GlobalTaskProgress: s.GlobalTaskProgress(),
		MemorySummary:      memorySummary(s, playerID),
	}

	if s.Config.GhostTasksEnabled && p.Role == state.RoleCrewmate {
		for _, t := range s.Tasks[playerID] {
			obs.TaskList = append(obs.TaskList, TaskView{
				TaskID: t.TaskID, Name: t.Name, Location: t.Location,
				Required: t.Required, Progress: t.Progress, Completed: t.Completed(),
			})
		}
	}

	actions := []string{catalog.ActionWait, catalog.ActionMove}
	if s.Config.GhostTasksEnabled && p.Role == state.RoleCrewmate {
		actions = append(actions, catalog.ActionDoTask)
	}
	obs.AvailableActions = actions

	if result, ok := s.ActionResults[playerID]; ok {
		r := result
		obs.PreviousActionResult = &r
	}
	return obs
}

// MeetingObservation is the shared shape of discussion and voting views:
// both omit room/task/sabotage facts entirely and surface only the
// meeting context and (for voting) the candidate list.
type MeetingObservation struct {
	Round        int      `json:"round"`
	Phase        string   `json:"phase"`
	SelfID       string   `json:"self_id"`
	Role         state.Role `json:"role"`
	Alive        bool     `json:"alive"`
	Trigger      string   `json:"trigger"`
	CalledBy     string   `json:"called_by"`
	BodyFound    string   `json:"body_found,omitempty"`
	SpeakerOrder []string `json:"speaker_order"`
	Transcript   []state.ChatMessage `json:"transcript,omitempty"`
	Candidates   []string `json:"candidates,omitempty"`
}

// GenerateDiscussionObservation builds the per-player discussion view.
func GenerateDiscussionObservation(s *state.GameState, playerID string) MeetingObservation {
	p := s.Players[playerID]
	mc := s.MeetingContext
	obs := MeetingObservation{
		Round: s.Round, Phase: string(s.Phase), SelfID: playerID,
		Role: p.Role, Alive: p.Alive, Transcript: s.ChatHistory,
	}
	if mc != nil {
		obs.Trigger = mc.Trigger
		obs.CalledBy = mc.CalledBy
		obs.BodyFound = mc.BodyFound
		obs.SpeakerOrder = mc.SpeakerOrder
	}
	return obs
}

// GenerateVotingObservation builds the per-player voting view, adding
// the eligible candidate list (living players, sorted, self included
// per spec.md's skip-by-self-vote semantics).
func GenerateVotingObservation(s *state.GameState, playerID string) MeetingObservation {
	obs := GenerateDiscussionObservation(s, playerID)
	for _, other := range sortedPlayers(s) {
		if other.Alive {
			obs.Candidates = append(obs.Candidates, other.ID)
		}
	}
	return obs
}

// GameStartInfo is delivered once to every agent before round 1.
type GameStartInfo struct {
	SelfID       string               `json:"self_id"`
	Role         state.Role           `json:"role"`
	Config       catalog.GameConfig   `json:"config"`
	MapAdjacency map[string][]string  `json:"map_adjacency"`
	TaskList     []TaskView           `json:"task_list,omitempty"`
	Teammates    []string             `json:"teammates,omitempty"`
}

// GenerateGameStartInfo builds the one-time game-start briefing.
func GenerateGameStartInfo(s *state.GameState, playerID string) GameStartInfo {
	p := s.Players[playerID]
	info := GameStartInfo{
		SelfID: playerID, Role: p.Role, Config: s.Config, MapAdjacency: catalog.MapAdjacency,
	}
	for _, t := range s.Tasks[playerID] {
		info.TaskList = append(info.TaskList, TaskView{
			TaskID: t.TaskID, Name: t.Name, Location: t.Location,
			Required: t.Required, Progress: t.Progress, Completed: t.Completed(),
		})
	}
	if p.Role == state.RoleImpostor {
		for _, other := range sortedPlayers(s) {
			if other.ID != p.ID && other.Role == state.RoleImpostor {
				info.Teammates = append(info.Teammates, other.ID)
			}
		}
	}
	return info
}

// GameEndInfo is delivered once to every agent after the game concludes.
type GameEndInfo struct {
	Winner     string            `json:"winner"`
	WinCause   string            `json:"win_cause"`
	Rounds     int               `json:"rounds"`
	FinalRoles map[string]string `json:"final_roles"`
	Survived   bool              `json:"survived"`
}

// GenerateGameEndInfo builds the per-player end-of-game summary.
func GenerateGameEndInfo(s *state.GameState, playerID string) GameEndInfo {
	roles := make(map[string]string, len(s.Players))
	for id, p := range s.Players {
		roles[id] = string(p.Role)
	}
	return GameEndInfo{
		Winner: s.Winner, WinCause: s.WinCause, Rounds: s.Round,
		FinalRoles: roles, Survived: s.Players[playerID].Alive,
	}
}

func sortedPlayers(s *state.GameState) []*state.Player {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*state.Player, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Players[id])
	}
	return out
}
