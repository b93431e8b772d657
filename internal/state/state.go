// Package state defines the mutable record of a single game in
// progress. Everything here is owned by exactly one engine instance;
// there is no external writer.
package state

import "github.com/ishananand06/8fold-Amoungus/internal/catalog"

// Role is a player's hidden allegiance.
type Role string

const (
	RoleCrewmate Role = "crewmate"
	RoleImpostor Role = "impostor"
)

// Phase is the coarse game state machine label.
type Phase string

const (
	PhaseTask       Phase = "task"
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseGameOver   Phase = "game_over"
)

// Player is a seat at the table.
type Player struct {
	ID                         string `json:"id"`
	Role                       Role   `json:"role"`
	Alive                      bool   `json:"alive"`
	Ejected                    bool   `json:"ejected"`
	Location                   string `json:"location"`
	EmergencyMeetingsRemaining int    `json:"emergency_meetings_remaining"`
	KillCooldown               int    `json:"kill_cooldown"`
	LastAction                 string `json:"last_action"`
}

// Task is a crewmate's assigned task instance.
type Task struct {
	TaskID   string `json:"task_id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Required int    `json:"required"`
	Progress int    `json:"progress"`
	Visual   bool   `json:"visual"`
}

// Completed reports whether the task's progress has met its requirement.
func (t *Task) Completed() bool {
	return t.Progress >= t.Required
}

// Body is a killed (not ejected) player's corpse.
type Body struct {
	PlayerID string `json:"player_id"`
	Location string `json:"location"`
}

// ActiveSabotage is an in-progress sabotage instance.
type ActiveSabotage struct {
	Type         string         `json:"type"`
	Critical     bool           `json:"critical"`
	Countdown    *int           `json:"countdown,omitempty"`
	FixProgress  map[string]int `json:"fix_progress"`
	FixRequired  map[string]int `json:"fix_required"`
}

// Resolved reports whether every fix location has met its requirement.
func (s *ActiveSabotage) Resolved() bool {
	for loc, req := range s.FixRequired {
		if s.FixProgress[loc] < req {
			return false
		}
	}
	return true
}

// ActionResult is the validation outcome of one player's submitted action.
type ActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// ChatMessage is one spoken line during a meeting.
type ChatMessage struct {
	Speaker  string `json:"speaker"`
	Rotation int    `json:"rotation"`
	Text     string `json:"text"`
}

// MeetingContext describes the meeting currently in progress.
type MeetingContext struct {
	Trigger      string   `json:"trigger"` // "body_report" | "emergency_meeting"
	CalledBy     string   `json:"called_by"`
	BodyFound    string   `json:"body_found,omitempty"`
	BodyLocation string   `json:"body_location,omitempty"`
	SpeakerOrder []string `json:"speaker_order"`
}

// MeetingRecord is an archived, completed meeting.
type MeetingRecord struct {
	Trigger       string          `json:"trigger"`
	Caller        string          `json:"caller"`
	BodyFound     string          `json:"body_found,omitempty"`
	Transcript    []ChatMessage   `json:"transcript"`
	Votes         map[string]string `json:"votes"`
	EjectedPlayer string          `json:"ejected_player,omitempty"`
	RoleRevealed  *Role           `json:"role_revealed,omitempty"`
}

// MovementEntry is one ring-buffer entry of a player's own movement.
type MovementEntry struct {
	Round    int    `json:"round"`
	Location string `json:"location"`
}

// SightingEntry is one ring-buffer entry of a co-located player sighting.
type SightingEntry struct {
	Round      int    `json:"round"`
	ObservedID string `json:"player"`
	Location   string `json:"location"`
	Action     string `json:"action"`
}

// RoundLogEntry archives one resolved round for the game log.
type RoundLogEntry struct {
	Round   int                          `json:"round"`
	Actions map[string]Action            `json:"actions"`
	Results map[string]ActionResult      `json:"results"`
}

// Action is a tagged action record submitted by an agent.
type Action struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// GameState is the full mutable record of a single game in progress.
type GameState struct {
	Config catalog.GameConfig
	Phase  Phase
	Round  int
	Winner string
	WinCause string

	Players map[string]*Player
	Tasks   map[string][]*Task

	Bodies          []Body
	Sabotage        *ActiveSabotage
	SabotageCooldown int

	MeetingContext *MeetingContext
	ChatHistory    []ChatMessage

	EventsLastRound map[string][]string
	AdminTableSnapshot map[string]map[string]int
	ActionResults   map[string]ActionResult

	MovementHistory map[string][]MovementEntry
	SightingHistory map[string][]SightingEntry
	MeetingHistory  []MeetingRecord

	GameLog []RoundLogEntry
}

// NewGameState constructs an empty game state ready for setup.
func NewGameState(cfg catalog.GameConfig) *GameState {
	return &GameState{
		Config:          cfg,
		Phase:           PhaseTask,
		Players:         make(map[string]*Player),
		Tasks:           make(map[string][]*Task),
		EventsLastRound: make(map[string][]string),
		ActionResults:   make(map[string]ActionResult),
		MovementHistory: make(map[string][]MovementEntry),
		SightingHistory: make(map[string][]SightingEntry),
	}
}

// GlobalTaskProgress is the fraction of required crewmate task progress
// completed so far (0 if there are no crewmate task requirements).
func (s *GameState) GlobalTaskProgress() float64 {
	total, done := 0, 0
	for pid, p := range s.Players {
		if p.Role != RoleCrewmate {
			continue
		}
		for _, t := range s.Tasks[pid] {
			total += t.Required
			if t.Progress < t.Required {
				done += t.Progress
			} else {
				done += t.Required
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// LivingCounts returns the number of living crewmates and impostors.
func (s *GameState) LivingCounts() (crewmates, impostors int) {
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		if p.Role == RoleCrewmate {
			crewmates++
		} else {
			impostors++
		}
	}
	return
}
