package game

import (
	"errors"
	"testing"
)

func TestAddPlayer_Bounds(t *testing.T) {
	s := newTestState(t)

	s, err := AddPlayer(s, TeamB, "q3")
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if got := s.TeamB.Players; len(got) != 3 || got[2] != "q3" {
		t.Fatalf("want q3 appended, got %v", got)
	}

	// fill team B up to 8, then one more must fail
	for _, name := range []string{"q4", "q5", "q6", "q7", "q8"} {
		s, err = AddPlayer(s, TeamB, name)
		if err != nil {
			t.Fatalf("AddPlayer(%s): %v", name, err)
		}
	}
	if _, err := AddPlayer(s, TeamB, "q9"); !errors.Is(err, ErrTooManyPlayers) {
		t.Fatalf("want ErrTooManyPlayers, got %v", err)
	}
}

func TestAddPlayer_TrimsAndValidatesName(t *testing.T) {
	s := newTestState(t)

	s, err := AddPlayer(s, TeamA, "  p4  ")
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if got := s.TeamA.Players[3]; got != "p4" {
		t.Fatalf("want trimmed name, got %q", got)
	}

	if _, err := AddPlayer(s, TeamA, "   "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("want ErrInvalidName, got %v", err)
	}
}

func TestRemovePlayer_IndexPolicy(t *testing.T) {
	cases := []struct {
		name        string
		players     []string
		thrower     int
		remove      int
		wantThrower int
		wantPlayers []string
	}{
		{"before thrower shifts down", []string{"p1", "p2", "p3"}, 2, 0, 1, []string{"p2", "p3"}},
		{"after thrower leaves it alone", []string{"p1", "p2", "p3"}, 0, 2, 0, []string{"p1", "p2"}},
		{"thrower itself wraps", []string{"p1", "p2", "p3"}, 2, 2, 0, []string{"p1", "p2"}},
		{"thrower itself keeps index", []string{"p1", "p2", "p3", "p4"}, 1, 1, 1, []string{"p1", "p3", "p4"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New("g", "A", "B", tc.players, []string{"q1", "q2"}, ColorRed, ColorBlue, 0)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			s.TeamA.CurrentThrowerIndex = tc.thrower

			s, err = RemovePlayer(s, TeamA, tc.remove)
			if err != nil {
				t.Fatalf("RemovePlayer: %v", err)
			}
			checkIndexes(t, s)
			if s.TeamA.CurrentThrowerIndex != tc.wantThrower {
				t.Fatalf("want thrower %d, got %d", tc.wantThrower, s.TeamA.CurrentThrowerIndex)
			}
			for i, p := range tc.wantPlayers {
				if s.TeamA.Players[i] != p {
					t.Fatalf("want roster %v, got %v", tc.wantPlayers, s.TeamA.Players)
				}
			}
		})
	}
}

func TestRemovePlayer_Guards(t *testing.T) {
	s := newTestState(t)

	// team B is already at the minimum of two
	if _, err := RemovePlayer(s, TeamB, 0); !errors.Is(err, ErrTooFewPlayers) {
		t.Fatalf("want ErrTooFewPlayers, got %v", err)
	}
	if _, err := RemovePlayer(s, TeamA, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("want ErrIndexOutOfRange, got %v", err)
	}
	if _, err := RemovePlayer(s, TeamA, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("want ErrIndexOutOfRange, got %v", err)
	}
}

func TestReorderPlayers_FollowsThrowerByName(t *testing.T) {
	s := newTestState(t)
	s.TeamA.CurrentThrowerIndex = 1 // p2

	s, err := ReorderPlayers(s, TeamA, []string{"p3", "p2", "p1"})
	if err != nil {
		t.Fatalf("ReorderPlayers: %v", err)
	}
	if s.TeamA.CurrentThrowerIndex != 1 {
		t.Fatalf("thrower p2 should sit at index 1, got %d", s.TeamA.CurrentThrowerIndex)
	}
	if s.TeamA.Players[0] != "p3" {
		t.Fatalf("roster not reordered: %v", s.TeamA.Players)
	}
}

func TestReorderPlayers_RejectsNonPermutation(t *testing.T) {
	cases := []struct {
		name  string
		order []string
	}{
		{"wrong length", []string{"p1", "p2"}},
		{"unknown name", []string{"p1", "p2", "px"}},
		{"duplicated entry", []string{"p1", "p1", "p2"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestState(t)
			if _, err := ReorderPlayers(s, TeamA, tc.order); !errors.Is(err, ErrInvalidRoster) {
				t.Fatalf("want ErrInvalidRoster, got %v", err)
			}
		})
	}
}

func TestReorderPlayers_DuplicateNamesPickFirstMatch(t *testing.T) {
	s, err := New("g", "A", "B", []string{"jan", "jan", "piet"}, []string{"q1", "q2"}, ColorRed, ColorBlue, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.TeamA.CurrentThrowerIndex = 1 // the second "jan"

	s, err = ReorderPlayers(s, TeamA, []string{"piet", "jan", "jan"})
	if err != nil {
		t.Fatalf("ReorderPlayers: %v", err)
	}
	// "jan" first occurs at index 1 in the new order
	if s.TeamA.CurrentThrowerIndex != 1 {
		t.Fatalf("want thrower at first duplicate, got %d", s.TeamA.CurrentThrowerIndex)
	}
}

func TestSetThrower(t *testing.T) {
	s := newTestState(t)

	s, err := SetThrower(s, TeamA, 2)
	if err != nil {
		t.Fatalf("SetThrower: %v", err)
	}
	if s.TeamA.CurrentThrowerIndex != 2 {
		t.Fatalf("want index 2, got %d", s.TeamA.CurrentThrowerIndex)
	}
	if s.TeamA.CurrentThrower() != "p3" {
		t.Fatalf("want p3 up, got %s", s.TeamA.CurrentThrower())
	}

	if _, err := SetThrower(s, TeamA, 5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("want ErrIndexOutOfRange, got %v", err)
	}
}

// Fuzz-ish sweep: any mix of operations keeps both thrower indices in
// range, roster sizes between 2 and 8 and throw counts non-negative.
func TestOperationSequencesKeepInvariants(t *testing.T) {
	s := newTestState(t)

	ops := []func(State) (State, error){
		func(s State) (State, error) { return RecordThrow(s, TeamA) },
		func(s State) (State, error) { return RecordThrow(s, TeamB) },
		func(s State) (State, error) { return AddPlayer(s, TeamA, "extra") },
		func(s State) (State, error) { return RemovePlayer(s, TeamA, 0) },
		func(s State) (State, error) { return SetThrower(s, TeamB, 1) },
		UndoThrow,
		func(s State) (State, error) { return RemovePlayer(s, TeamB, 1) },
		func(s State) (State, error) { return RecordThrow(s, TeamA) },
		func(s State) (State, error) { return AddPlayer(s, TeamB, "late") },
		UndoThrow,
	}

	for i, op := range ops {
		next, err := op(s)
		if err != nil {
			// guarded failures must leave state untouched
			next = s
		}
		checkIndexes(t, next)
		for _, ts := range []TeamState{next.TeamA, next.TeamB} {
			if len(ts.Players) < MinPlayers || len(ts.Players) > MaxPlayers {
				t.Fatalf("op %d: roster size %d out of bounds", i, len(ts.Players))
			}
			if ts.Throws < 0 {
				t.Fatalf("op %d: negative throw count", i)
			}
		}
		s = next
	}
}
