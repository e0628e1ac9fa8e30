package game

import (
	"slices"
)

// AddPlayer appends a player to the end of the roster.
func AddPlayer(s State, team Team, name string) (State, error) {
	if !ValidTeam(team) {
		return s, ErrInvalidTeam
	}
	name, err := ValidName(name)
	if err != nil {
		return s, err
	}
	ts := s.team(team)
	if len(ts.Players) >= MaxPlayers {
		return s, ErrTooManyPlayers
	}
	ts.Players = append(clone(ts.Players), name)
	s = s.withTeam(team, ts)
	s.LastThrowTeam = nil
	return s, nil
}

// RemovePlayer drops the roster entry at index and repairs the thrower
// index: entries removed before the thrower shift it down by one, and
// removing the thrower itself keeps the numeric index, wrapped to the
// shorter roster.
func RemovePlayer(s State, team Team, index int) (State, error) {
	if !ValidTeam(team) {
		return s, ErrInvalidTeam
	}
	ts := s.team(team)
	if len(ts.Players) <= MinPlayers {
		return s, ErrTooFewPlayers
	}
	if index < 0 || index >= len(ts.Players) {
		return s, ErrIndexOutOfRange
	}
	players := clone(ts.Players)
	players = slices.Delete(players, index, index+1)

	switch {
	case index < ts.CurrentThrowerIndex:
		ts.CurrentThrowerIndex--
	case index == ts.CurrentThrowerIndex:
		ts.CurrentThrowerIndex = ts.CurrentThrowerIndex % len(players)
	}
	if ts.CurrentThrowerIndex >= len(players) {
		ts.CurrentThrowerIndex = 0
	}
	ts.Players = players
	s = s.withTeam(team, ts)
	s.LastThrowTeam = nil
	return s, nil
}

// ReorderPlayers replaces the roster with a permutation of itself. The
// current thrower is re-identified by name; with duplicate names the
// first occurrence in the new order wins, which keeps the result
// deterministic.
func ReorderPlayers(s State, team Team, newOrder []string) (State, error) {
	if !ValidTeam(team) {
		return s, ErrInvalidTeam
	}
	ts := s.team(team)
	if !samePlayers(ts.Players, newOrder) {
		return s, ErrInvalidRoster
	}
	thrower := ts.Players[ts.CurrentThrowerIndex%len(ts.Players)]
	ts.Players = clone(newOrder)
	if i := slices.Index(ts.Players, thrower); i >= 0 {
		ts.CurrentThrowerIndex = i
	} else {
		ts.CurrentThrowerIndex = 0
	}
	s = s.withTeam(team, ts)
	s.LastThrowTeam = nil
	return s, nil
}

// SetThrower points the turn at an explicit roster index.
func SetThrower(s State, team Team, index int) (State, error) {
	if !ValidTeam(team) {
		return s, ErrInvalidTeam
	}
	ts := s.team(team)
	if index < 0 || index >= len(ts.Players) {
		return s, ErrIndexOutOfRange
	}
	ts.CurrentThrowerIndex = index
	s = s.withTeam(team, ts)
	s.LastThrowTeam = nil
	return s, nil
}

// samePlayers compares the two rosters as multisets.
func samePlayers(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	a := clone(current)
	b := clone(proposed)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
