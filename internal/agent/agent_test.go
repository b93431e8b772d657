package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishananand06/8fold-Amoungus/internal/catalog"
)

func TestBFSShortestPathFindsDirectRoute(t *testing.T) {
	path := BFSShortestPath(catalog.SpawnRoom, "Admin")
	require.NotEmpty(t, path)
	assert.Equal(t, catalog.SpawnRoom, path[0])
	assert.Equal(t, "Admin", path[len(path)-1])
}

func TestBFSShortestPathMultiHop(t *testing.T) {
	path := BFSShortestPath(catalog.SpawnRoom, "Shields")
	require.NotEmpty(t, path)
	assert.Equal(t, "Shields", path[len(path)-1])
	for i := 0; i < len(path)-1; i++ {
		assert.Contains(t, catalog.MapAdjacency[path[i]], path[i+1])
	}
}

func TestBFSShortestPathSameRoom(t *testing.T) {
	path := BFSShortestPath("Admin", "Admin")
	assert.Equal(t, []string{"Admin"}, path)
}

func TestParseLLMActionFromFencedJSON(t *testing.T) {
	reply := "Sure, here's my move:\n```json\n{\"action\": \"move\", \"target\": \"Admin\"}\n```\nHope that works."
	action, ok := ParseLLMAction(reply)
	require.True(t, ok)
	assert.Equal(t, "move", action.Action)
	assert.Equal(t, "Admin", action.Target)
}

func TestParseLLMActionRejectsGarbage(t *testing.T) {
	_, ok := ParseLLMAction("I don't know what to do.")
	assert.False(t, ok)
}

func TestParseLLMVoteMatchesSkip(t *testing.T) {
	vote, ok := ParseLLMVote("I'll skip this round.", []string{"crewa", "crewb"})
	require.True(t, ok)
	assert.Equal(t, "skip", vote)
}

func TestParseLLMVoteMatchesCandidate(t *testing.T) {
	vote, ok := ParseLLMVote("I vote for crewb, they were acting weird.", []string{"crewa", "crewb"})
	require.True(t, ok)
	assert.Equal(t, "crewb", vote)
}
