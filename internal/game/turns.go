package game

// RecordThrow counts a throw for the team, rotates its thrower to the
// next roster position and arms the one-level undo marker.
func RecordThrow(s State, team Team) (State, error) {
	if !ValidTeam(team) {
		return s, ErrInvalidTeam
	}
	ts := s.team(team)
	ts.Throws++
	ts.CurrentThrowerIndex = (ts.CurrentThrowerIndex + 1) % len(ts.Players)
	t := team
	s = s.withTeam(team, ts)
	s.LastThrowTeam = &t
	return s, nil
}

// UndoThrow reverses the most recent throw. It only works while the
// undo marker is armed; any other mutation in between forfeits it.
func UndoThrow(s State) (State, error) {
	if s.LastThrowTeam == nil {
		return s, ErrNothingToUndo
	}
	team := *s.LastThrowTeam
	ts := s.team(team)
	ts.Throws--
	ts.CurrentThrowerIndex = (ts.CurrentThrowerIndex - 1 + len(ts.Players)) % len(ts.Players)
	s = s.withTeam(team, ts)
	s.LastThrowTeam = nil
	return s, nil
}

// End closes the contest and picks the winner: fewer throws wins, a
// tie leaves the winner unset. Ending an already-ended contest is a
// no-op, reported via the changed flag.
func End(s State) (State, bool) {
	if s.Ended() {
		return s, false
	}
	s.Status = StatusEnded
	switch {
	case s.TeamA.Throws < s.TeamB.Throws:
		w := TeamA
		s.Winner = &w
	case s.TeamB.Throws < s.TeamA.Throws:
		w := TeamB
		s.Winner = &w
	}
	s.LastThrowTeam = nil
	return s, true
}
