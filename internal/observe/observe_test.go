package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

func newObsGame() *state.GameState {
	cfg := catalog.DefaultConfig()
	s := state.NewGameState(cfg)
	s.Players["crewa"] = &state.Player{ID: "crewa", Role: state.RoleCrewmate, Alive: true, Location: catalog.SpawnRoom}
	s.Players["crewb"] = &state.Player{ID: "crewb", Role: state.RoleCrewmate, Alive: true, Location: catalog.SpawnRoom}
	s.Players["impa"] = &state.Player{ID: "impa", Role: state.RoleImpostor, Alive: true, Location: catalog.SpawnRoom}
	return s
}

func TestTaskObservationShowsRoomOccupants(t *testing.T) {
	s := newObsGame()
	obs := GenerateTaskObservation(s, "crewa")
	assert.Contains(t, obs.RoomOccupants, "crewb")
	assert.Contains(t, obs.RoomOccupants, "impa")
	assert.Nil(t, obs.ImpostorInfo)
}

func TestTaskObservationImpostorSeesTeammates(t *testing.T) {
	s := newObsGame()
	s.Players["impb"] = &state.Player{ID: "impb", Role: state.RoleImpostor, Alive: true, Location: catalog.SpawnRoom}
	obs := GenerateTaskObservation(s, "impa")
	require.NotNil(t, obs.ImpostorInfo)
	assert.Contains(t, obs.ImpostorInfo.Teammates, "impb")
	assert.NotContains(t, obs.ImpostorInfo.Teammates, "impa")
}

func TestLightsBlindsCrewmateRoomView(t *testing.T) {
	s := newObsGame()
	s.Sabotage = &state.ActiveSabotage{Type: "lights"}
	obs := GenerateTaskObservation(s, "crewa")
	assert.Empty(t, obs.RoomOccupants)
	assert.Equal(t, catalog.MapAdjacency[catalog.SpawnRoom], obs.AdjacentRooms)
}

func TestLightsDoesNotBlindImpostors(t *testing.T) {
	s := newObsGame()
	s.Sabotage = &state.ActiveSabotage{Type: "lights"}
	obs := GenerateTaskObservation(s, "impa")
	assert.NotEmpty(t, obs.RoomOccupants)
}

func TestLightsBlindsCrewmateToBodiesAndReportAction(t *testing.T) {
	s := newObsGame()
	s.Bodies = append(s.Bodies, state.Body{PlayerID: "crewb", Location: catalog.SpawnRoom})
	s.Sabotage = &state.ActiveSabotage{Type: "lights"}

	obs := GenerateTaskObservation(s, "crewa")
	assert.Empty(t, obs.VisibleBodies)
	assert.NotContains(t, obs.AvailableActions, catalog.ActionReport)
}

func TestLightsDoesNotBlindImpostorsToBodies(t *testing.T) {
	s := newObsGame()
	s.Bodies = append(s.Bodies, state.Body{PlayerID: "crewb", Location: catalog.SpawnRoom})
	s.Sabotage = &state.ActiveSabotage{Type: "lights"}

	obs := GenerateTaskObservation(s, "impa")
	assert.Contains(t, obs.VisibleBodies, "crewb")
	assert.Contains(t, obs.AvailableActions, catalog.ActionReport)
}

func TestBodyVisibleAndReportableWithoutLights(t *testing.T) {
	s := newObsGame()
	s.Bodies = append(s.Bodies, state.Body{PlayerID: "crewb", Location: catalog.SpawnRoom})

	obs := GenerateTaskObservation(s, "crewa")
	assert.Contains(t, obs.VisibleBodies, "crewb")
	assert.Contains(t, obs.AvailableActions, catalog.ActionReport)
}

func TestCommsHidesTaskList(t *testing.T) {
	s := newObsGame()
	s.Tasks["crewa"] = []*state.Task{{TaskID: "t1", Name: "Fix Wiring", Location: "Electrical", Required: 3}}
	s.Sabotage = &state.ActiveSabotage{Type: "comms"}
	obs := GenerateTaskObservation(s, "crewa")
	assert.Empty(t, obs.TaskList)
}

func TestGhostObservationHidesRoomAndImpostorInfo(t *testing.T) {
	s := newObsGame()
	s.Players["crewa"].Alive = false
	obs := GenerateGhostObservation(s, "crewa")
	assert.False(t, obs.Alive)
	assert.Empty(t, obs.RoomOccupants)
	assert.Nil(t, obs.ImpostorInfo)
}

func TestGhostTasksDisabledHidesTaskList(t *testing.T) {
	s := newObsGame()
	s.Config.GhostTasksEnabled = false
	s.Players["crewa"].Alive = false
	s.Tasks["crewa"] = []*state.Task{{TaskID: "t1", Required: 2}}
	obs := GenerateGhostObservation(s, "crewa")
	assert.Empty(t, obs.TaskList)
	assert.NotContains(t, obs.AvailableActions, catalog.ActionDoTask)
}

func TestPreviousActionResultOnlyDeliveredToActor(t *testing.T) {
	s := newObsGame()
	s.ActionResults["crewa"] = state.ActionResult{Action: catalog.ActionWait, Success: true}
	obsA := GenerateTaskObservation(s, "crewa")
	obsB := GenerateTaskObservation(s, "crewb")
	require.NotNil(t, obsA.PreviousActionResult)
	assert.Nil(t, obsB.PreviousActionResult)
}

func TestVotingObservationListsLivingCandidatesOnly(t *testing.T) {
	s := newObsGame()
	s.Players["crewb"].Alive = false
	s.MeetingContext = &state.MeetingContext{Trigger: "body_report", CalledBy: "crewa", SpeakerOrder: []string{"crewa", "impa"}}
	obs := GenerateVotingObservation(s, "crewa")
	assert.Contains(t, obs.Candidates, "crewa")
	assert.Contains(t, obs.Candidates, "impa")
	assert.NotContains(t, obs.Candidates, "crewb")
}

func TestVotingObservationReportsVotingPhase(t *testing.T) {
	s := newObsGame()
	s.Phase = state.PhaseVoting
	s.MeetingContext = &state.MeetingContext{Trigger: "body_report", CalledBy: "crewa", SpeakerOrder: []string{"crewa", "impa"}}
	obs := GenerateVotingObservation(s, "crewa")
	assert.Equal(t, string(state.PhaseVoting), obs.Phase)
}
