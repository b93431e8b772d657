package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

func newTestGame(t *testing.T, numCrew, numImp int) *state.GameState {
	t.Helper()
	cfg := catalog.DefaultConfig()
	cfg.NumPlayers = numCrew + numImp
	cfg.NumImpostors = numImp
	cfg.MaxTotalRounds = 60
	s := state.NewGameState(cfg)
	for i := 0; i < numCrew; i++ {
		id := "crew" + string(rune('a'+i))
		s.Players[id] = &state.Player{ID: id, Role: state.RoleCrewmate, Alive: true, Location: catalog.SpawnRoom, EmergencyMeetingsRemaining: 1}
	}
	for i := 0; i < numImp; i++ {
		id := "imp" + string(rune('a'+i))
		s.Players[id] = &state.Player{ID: id, Role: state.RoleImpostor, Alive: true, Location: catalog.SpawnRoom, EmergencyMeetingsRemaining: 1}
	}
	return s
}

// S1: Simple kill — impostor and victim share a room, no cooldown.
func TestS1SimpleKill(t *testing.T) {
	s := newTestGame(t, 2, 1)
	r := New(s)
	r.ResolveRound(map[string]state.Action{
		"impa": {Action: catalog.ActionKill, Target: "crewa"},
	})
	assert.False(t, s.Players["crewa"].Alive)
	require.Len(t, s.Bodies, 1)
	assert.Equal(t, "crewa", s.Bodies[0].PlayerID)
	assert.Equal(t, cfgKillCooldown(s), s.Players["impa"].KillCooldown)
}

func cfgKillCooldown(s *state.GameState) int { return s.Config.KillCooldown }

// S2: Kill with victim fleeing — movement resolves before kills, so a
// victim that moved away this round can't be killed in their old room.
func TestS2KillWithVictimFleeing(t *testing.T) {
	s := newTestGame(t, 2, 1)
	s.Players["crewa"].Location = catalog.SpawnRoom
	r := New(s)
	r.ResolveRound(map[string]state.Action{
		"crewa": {Action: catalog.ActionMove, Target: "Admin"},
		"impa":  {Action: catalog.ActionKill, Target: "crewa"},
	})
	assert.True(t, s.Players["crewa"].Alive)
	assert.Empty(t, s.Bodies)
	assert.False(t, s.ActionResults["impa"].Success)
}

// S3: Double meeting trigger — two players report/call in the same
// round; only the lexicographically-first caller's meeting happens.
func TestS3DoubleMeetingTrigger(t *testing.T) {
	s := newTestGame(t, 3, 1)
	s.Bodies = append(s.Bodies, state.Body{PlayerID: "victim", Location: catalog.SpawnRoom})
	r := New(s)
	r.ResolveRound(map[string]state.Action{
		"crewa": {Action: catalog.ActionReport},
		"crewb": {Action: catalog.ActionCallEmergency},
	})
	require.NotNil(t, s.MeetingContext)
	assert.Equal(t, "crewa", s.MeetingContext.CalledBy)
	assert.False(t, s.ActionResults["crewb"].Success)
}

// S4: Critical sabotage timeout — an active critical sabotage whose
// countdown reaches zero ends the game for the impostors.
func TestS4CriticalSabotageTimeout(t *testing.T) {
	s := newTestGame(t, 3, 1)
	countdown := 1
	s.Sabotage = &state.ActiveSabotage{
		Type: "reactor", Critical: true, Countdown: &countdown,
		FixProgress: map[string]int{"Reactor": 0}, FixRequired: map[string]int{"Reactor": 4},
	}
	r := New(s)
	r.ResolveRound(map[string]state.Action{})
	assert.Equal(t, "impostors", s.Winner)
	assert.Equal(t, "sabotage_reactor", s.WinCause)
}

// S5: Visual task witness — a crewmate in the same room as a completed
// visual task observes a witness event.
func TestS5VisualTaskWitness(t *testing.T) {
	s := newTestGame(t, 2, 1)
	s.Tasks["crewa"] = []*state.Task{{TaskID: "t1", Name: "Body Scan", Location: catalog.SpawnRoom, Required: 1, Visual: true}}
	r := New(s)
	r.ResolveRound(map[string]state.Action{
		"crewa": {Action: catalog.ActionDoTask, Target: "t1"},
	})
	assert.Contains(t, s.EventsLastRound["crewb"], "crewa completed visual task Body Scan in "+catalog.SpawnRoom)
}

// S6: Lights blind kill — an active lights sabotage blinds crewmate
// witnesses to a kill in their own room.
func TestS6LightsBlindKill(t *testing.T) {
	s := newTestGame(t, 3, 1)
	s.Sabotage = &state.ActiveSabotage{Type: "lights", Critical: false,
		FixProgress: map[string]int{"Electrical": 0}, FixRequired: map[string]int{"Electrical": 3}}
	r := New(s)
	r.ResolveRound(map[string]state.Action{
		"impa": {Action: catalog.ActionKill, Target: "crewa"},
	})
	assert.False(t, s.Players["crewa"].Alive)
	assert.Empty(t, s.EventsLastRound["crewb"])
}

func TestWinConditionAllImpostorsEliminated(t *testing.T) {
	s := newTestGame(t, 3, 1)
	s.Players["impa"].Alive = false
	r := New(s)
	won := r.CheckWinCondition()
	assert.True(t, won)
	assert.Equal(t, "crewmates", s.Winner)
	assert.Equal(t, "all_impostors_eliminated", s.WinCause)
}

func TestWinConditionImpostorMajority(t *testing.T) {
	s := newTestGame(t, 2, 1)
	s.Players["crewa"].Alive = false
	r := New(s)
	won := r.CheckWinCondition()
	assert.True(t, won)
	assert.Equal(t, "impostors", s.Winner)
	assert.Equal(t, "impostors_majority", s.WinCause)
}

func TestGhostCanOnlyMoveOrTask(t *testing.T) {
	s := newTestGame(t, 2, 1)
	s.Players["crewa"].Alive = false
	s.Config.GhostTasksEnabled = false
	r := New(s)
	result := r.validate("crewa", state.Action{Action: catalog.ActionDoTask, Target: "t1"})
	assert.False(t, result.Success)
}

func TestSabotageCannotStartWhileOneActive(t *testing.T) {
	s := newTestGame(t, 3, 1)
	s.Sabotage = &state.ActiveSabotage{Type: "lights", FixRequired: map[string]int{"Electrical": 3}, FixProgress: map[string]int{}}
	r := New(s)
	result := r.validate("impa", state.Action{Action: catalog.ActionSabotage, Target: "comms"})
	assert.False(t, result.Success)
}
