package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishananand06/8fold-Amoungus/internal/agent"
	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
	"github.com/ishananand06/8fold-Amoungus/internal/enginelog"
	"github.com/ishananand06/8fold-Amoungus/internal/observe"
	"github.com/ishananand06/8fold-Amoungus/internal/state"
)

func newTestEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	cfg := catalog.DefaultConfig()
	cfg.NumPlayers = 5
	cfg.NumImpostors = 1
	cfg.MaxTotalRounds = 15
	cfg.AgentTimeoutSeconds = 1

	rng := rand.New(rand.NewSource(seed))
	seats := make(map[string]agent.Agent)
	for i := 0; i < cfg.NumPlayers; i++ {
		id := string(rune('a' + i))
		seats[id] = agent.NewRandomBot(rng)
	}
	return New("test-game", cfg, seats, rng, enginelog.New(false))
}

func TestSetupAssignsExactlyConfiguredImpostors(t *testing.T) {
	e := newTestEngine(t, 1)
	e.Setup()

	impCount := 0
	for _, p := range e.State.Players {
		if p.Role == state.RoleImpostor {
			impCount++
		}
	}
	assert.Equal(t, e.State.Config.NumImpostors, impCount)
	assert.Len(t, e.State.Players, e.State.Config.NumPlayers)
}

func TestSetupDealsVisualTaskGuarantee(t *testing.T) {
	e := newTestEngine(t, 2)
	e.Setup()

	for id, p := range e.State.Players {
		if p.Role != state.RoleCrewmate {
			continue
		}
		visualCount := 0
		for _, task := range e.State.Tasks[id] {
			if task.Visual {
				visualCount++
			}
		}
		assert.GreaterOrEqual(t, visualCount, e.State.Config.VisualTasksPerCrewmate)
		assert.Len(t, e.State.Tasks[id], e.State.Config.TasksPerCrewmate)
	}
}

func TestSetupPlacesEveryoneAtSpawn(t *testing.T) {
	e := newTestEngine(t, 3)
	e.Setup()
	for _, p := range e.State.Players {
		assert.Equal(t, catalog.SpawnRoom, p.Location)
		assert.True(t, p.Alive)
	}
}

func TestRunTerminatesWithAWinner(t *testing.T) {
	e := newTestEngine(t, 4)
	e.Setup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := e.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, result.Winner)
	assert.LessOrEqual(t, result.Rounds, e.State.Config.MaxTotalRounds)
	assert.Len(t, result.FinalRoles, e.State.Config.NumPlayers)
}

// phaseSpyAgent wraps a RandomBot and records the phase string its
// observation carried at vote time, to verify the engine actually
// transitions into the voting phase before collecting votes.
type phaseSpyAgent struct {
	*agent.RandomBot
	votePhase *string
}

func (a *phaseSpyAgent) OnVote(ctx context.Context, obs observe.MeetingObservation) string {
	*a.votePhase = obs.Phase
	return a.RandomBot.OnVote(ctx, obs)
}

func TestRunMeetingTransitionsToVotingPhaseForVoteCollection(t *testing.T) {
	e := newTestEngine(t, 5)
	e.Setup()

	var observedPhase string
	for id, a := range e.Agents {
		bot, ok := a.(*agent.RandomBot)
		require.True(t, ok)
		e.Agents[id] = &phaseSpyAgent{RandomBot: bot, votePhase: &observedPhase}
	}

	var caller string
	for id := range e.State.Players {
		caller = id
		break
	}
	e.State.MeetingContext = &state.MeetingContext{
		Trigger: "emergency", CalledBy: caller, SpeakerOrder: []string{caller},
	}
	e.State.Phase = state.PhaseDiscussion
	e.State.Config.DiscussionRotations = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.runMeeting(ctx)

	assert.Equal(t, string(state.PhaseVoting), observedPhase)
	assert.Equal(t, state.PhaseTask, e.State.Phase)
}

func TestTallyVotesNoEjectionOnTie(t *testing.T) {
	votes := map[string]string{"a": "b", "b": "a", "c": "skip"}
	ejected, _ := tallyVotes(votes, []string{"a", "b", "c"})
	assert.Empty(t, ejected)
}

func TestTallyVotesEjectsSolePlurality(t *testing.T) {
	votes := map[string]string{"a": "c", "b": "c", "c": "skip"}
	ejected, _ := tallyVotes(votes, []string{"a", "b", "c"})
	assert.Equal(t, "c", ejected)
}

func TestTallyVotesSkipWinsNoEjection(t *testing.T) {
	votes := map[string]string{"a": "skip", "b": "skip", "c": "a"}
	ejected, _ := tallyVotes(votes, []string{"a", "b", "c"})
	assert.Empty(t, ejected)
}
