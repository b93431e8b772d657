package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
)

func newTestState() *GameState {
	return NewGameState(catalog.DefaultConfig())
}

func TestNewGameStateStartsInTaskPhase(t *testing.T) {
	s := newTestState()
	assert.Equal(t, PhaseTask, s.Phase)
	assert.Equal(t, 0, s.Round)
	assert.Empty(t, s.Winner)
}

func TestGlobalTaskProgressIgnoresImpostors(t *testing.T) {
	s := newTestState()
	s.Players["crew1"] = &Player{ID: "crew1", Role: RoleCrewmate, Alive: true}
	s.Players["imp1"] = &Player{ID: "imp1", Role: RoleImpostor, Alive: true}
	s.Tasks["crew1"] = []*Task{{TaskID: "t1", Required: 2, Progress: 1}}
	s.Tasks["imp1"] = []*Task{{TaskID: "fake", Required: 2, Progress: 2}}

	assert.InDelta(t, 0.5, s.GlobalTaskProgress(), 0.0001)
}

func TestGlobalTaskProgressAllComplete(t *testing.T) {
	s := newTestState()
	s.Players["crew1"] = &Player{ID: "crew1", Role: RoleCrewmate, Alive: true}
	s.Tasks["crew1"] = []*Task{{TaskID: "t1", Required: 2, Progress: 2}}
	assert.Equal(t, 1.0, s.GlobalTaskProgress())
}

func TestLivingCountsExcludesDead(t *testing.T) {
	s := newTestState()
	s.Players["c1"] = &Player{ID: "c1", Role: RoleCrewmate, Alive: true}
	s.Players["c2"] = &Player{ID: "c2", Role: RoleCrewmate, Alive: false}
	s.Players["i1"] = &Player{ID: "i1", Role: RoleImpostor, Alive: true}

	crew, imp := s.LivingCounts()
	require.Equal(t, 1, crew)
	require.Equal(t, 1, imp)
}

func TestActiveSabotageResolved(t *testing.T) {
	sab := &ActiveSabotage{
		FixRequired: map[string]int{"Reactor": 4},
		FixProgress: map[string]int{"Reactor": 3},
	}
	assert.False(t, sab.Resolved())
	sab.FixProgress["Reactor"] = 4
	assert.True(t, sab.Resolved())
}
