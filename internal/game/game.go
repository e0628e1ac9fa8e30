// Package game holds the pure state machine for a two-team throwing
// contest. All turn and roster arithmetic lives here; persistence and
// transport layers never compute indices themselves.
package game

import (
	"errors"
	"strings"
)

var ErrInvalidTeam = errors.New("invalid team")
var ErrInvalidName = errors.New("invalid player name")
var ErrInvalidColor = errors.New("invalid team color")
var ErrNothingToUndo = errors.New("nothing to undo")
var ErrTooManyPlayers = errors.New("roster is full")
var ErrTooFewPlayers = errors.New("roster at minimum size")
var ErrIndexOutOfRange = errors.New("index out of range")
var ErrInvalidRoster = errors.New("roster is not a permutation")

type Team string

const (
	TeamA Team = "a"
	TeamB Team = "b"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorPurple Color = "purple"
	ColorTeal   Color = "teal"
)

// Palette is the closed set of team colors accepted at creation.
var Palette = []Color{ColorRed, ColorBlue, ColorGreen, ColorOrange, ColorPurple, ColorTeal}

const (
	MinPlayers = 2
	MaxPlayers = 8
	MaxNameLen = 50
)

type TeamState struct {
	Name                string   `json:"name"`
	Color               Color    `json:"color"`
	Throws              int      `json:"throws"`
	Players             []string `json:"players"`
	CurrentThrowerIndex int      `json:"currentThrowerIndex"`
}

// State is one contest between two teams. It is also the wire shape
// pushed to viewers on every broadcast; the admin token is kept out of
// it on purpose.
type State struct {
	ID            string    `json:"id"`
	TeamA         TeamState `json:"teamA"`
	TeamB         TeamState `json:"teamB"`
	LastThrowTeam *Team     `json:"lastThrowTeam"`
	Status        Status    `json:"status"`
	Winner        *Team     `json:"winner"`
	CreatedAt     int64     `json:"createdAt"`
	UpdatedAt     int64     `json:"updatedAt"`
}

// New validates team names, rosters and colors and builds the initial
// state: zero throws, both thrower indices at 0, status active.
func New(id, teamAName, teamBName string, teamAPlayers, teamBPlayers []string, teamAColor, teamBColor Color, now int64) (State, error) {
	a, err := newTeam(teamAName, teamAPlayers, teamAColor)
	if err != nil {
		return State{}, err
	}
	b, err := newTeam(teamBName, teamBPlayers, teamBColor)
	if err != nil {
		return State{}, err
	}
	return State{
		ID:        id,
		TeamA:     a,
		TeamB:     b,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func newTeam(name string, players []string, color Color) (TeamState, error) {
	name, err := ValidName(name)
	if err != nil {
		return TeamState{}, err
	}
	if !ValidColor(color) {
		return TeamState{}, ErrInvalidColor
	}
	if len(players) < MinPlayers {
		return TeamState{}, ErrTooFewPlayers
	}
	if len(players) > MaxPlayers {
		return TeamState{}, ErrTooManyPlayers
	}
	roster := make([]string, 0, len(players))
	for _, p := range players {
		p, err := ValidName(p)
		if err != nil {
			return TeamState{}, err
		}
		roster = append(roster, p)
	}
	return TeamState{Name: name, Color: color, Players: roster}, nil
}

// ValidName trims the name and checks the 1-50 char bound.
func ValidName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

func ValidColor(c Color) bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

func ValidTeam(t Team) bool {
	return t == TeamA || t == TeamB
}

// Ended reports whether the contest has been closed out.
func (s State) Ended() bool { return s.Status == StatusEnded }

func (s State) team(t Team) TeamState {
	if t == TeamA {
		return s.TeamA
	}
	return s.TeamB
}

func (s State) withTeam(t Team, ts TeamState) State {
	if t == TeamA {
		s.TeamA = ts
	} else {
		s.TeamB = ts
	}
	return s
}

// CurrentThrower returns the roster entry whose turn it is.
func (ts TeamState) CurrentThrower() string {
	return ts.Players[ts.CurrentThrowerIndex%len(ts.Players)]
}

func clone(players []string) []string {
	out := make([]string, len(players))
	copy(out, players)
	return out
}
