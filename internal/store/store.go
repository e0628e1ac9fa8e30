// Package store persists game sessions in sqlite. It is a dumb
// persistence target: every state transition is computed by the game
// package and committed here as a single transaction, so observers
// never see a half-applied mutation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kloatscheeten/scoreboard-backend/internal/game"
)

var ErrNotFound = errors.New("game not found")

// errNoChange signals a mutation that left the state as-is and must
// not be written back (e.g. ending an already-ended game).
var errNoChange = errors.New("no state change")

type Store struct {
	db  *gorm.DB
	now func() int64
}

// gameRow is the sqlite row shape. Rosters are stored as JSON arrays,
// one row per session.
type gameRow struct {
	ID                   string `gorm:"primaryKey;column:id"`
	AdminToken           string `gorm:"column:admin_token;not null"`
	TeamAName            string `gorm:"column:team_a_name;not null"`
	TeamBName            string `gorm:"column:team_b_name;not null"`
	TeamAColor           string `gorm:"column:team_a_color;not null"`
	TeamBColor           string `gorm:"column:team_b_color;not null"`
	TeamAThrows          int    `gorm:"column:team_a_throws;not null;default:0"`
	TeamBThrows          int    `gorm:"column:team_b_throws;not null;default:0"`
	TeamAPlayers         string `gorm:"column:team_a_players;not null"`
	TeamBPlayers         string `gorm:"column:team_b_players;not null"`
	TeamACurrentThrower  int    `gorm:"column:team_a_current_thrower;not null;default:0"`
	TeamBCurrentThrower  int    `gorm:"column:team_b_current_thrower;not null;default:0"`
	LastThrowTeam        *string `gorm:"column:last_throw_team"`
	Status               string  `gorm:"column:status;not null;default:active"`
	Winner               *string `gorm:"column:winner"`
	CreatedAt            int64   `gorm:"column:created_at;not null"`
	UpdatedAt            int64   `gorm:"column:updated_at;not null"`
}

func (gameRow) TableName() string { return "games" }

// Open opens (or creates) the sqlite database at path and migrates the
// games table. WAL mode and a busy timeout keep concurrent readers
// from tripping over the single writer.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&gameRow{}); err != nil {
		return nil, fmt.Errorf("migrate games table: %w", err)
	}
	return &Store{db: db, now: func() int64 { return time.Now().Unix() }}, nil
}

// Create inserts a brand-new session. The admin token lives only in
// the row, never in the state handed back to callers.
func (s *Store) Create(state game.State, adminToken string) (game.State, error) {
	row, err := fromState(state, adminToken)
	if err != nil {
		return game.State{}, err
	}
	if err := s.db.Create(&row).Error; err != nil {
		return game.State{}, fmt.Errorf("insert game %s: %w", state.ID, err)
	}
	return state, nil
}

// Get fetches the current snapshot, or ErrNotFound.
func (s *Store) Get(id string) (game.State, error) {
	var row gameRow
	if err := s.db.Take(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return game.State{}, ErrNotFound
		}
		return game.State{}, fmt.Errorf("load game %s: %w", id, err)
	}
	return row.toState()
}

// ValidateAdmin reports whether the session exists and the presented
// token matches its admin token exactly.
func (s *Store) ValidateAdmin(id, token string) (bool, error) {
	var row gameRow
	if err := s.db.Select("admin_token").Take(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load game %s: %w", id, err)
	}
	return token != "" && row.AdminToken == token, nil
}

// mutate runs fn against the current state inside one transaction and
// writes the result back with a fresh updated_at. fn returning
// errNoChange commits nothing and hands back the unchanged state.
func (s *Store) mutate(id string, fn func(game.State) (game.State, error)) (game.State, error) {
	var next game.State
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row gameRow
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load game %s: %w", id, err)
		}
		cur, err := row.toState()
		if err != nil {
			return err
		}
		next, err = fn(cur)
		if errors.Is(err, errNoChange) {
			next = cur
			return nil
		}
		if err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		updated, err := fromState(next, row.AdminToken)
		if err != nil {
			return err
		}
		return tx.Save(&updated).Error
	})
	if err != nil {
		return game.State{}, err
	}
	return next, nil
}

func (s *Store) RecordThrow(id string, team game.Team) (game.State, error) {
	return s.mutate(id, func(cur game.State) (game.State, error) {
		return game.RecordThrow(cur, team)
	})
}

func (s *Store) UndoThrow(id string) (game.State, error) {
	return s.mutate(id, game.UndoThrow)
}

// End closes the game once; ending an ended game is a visible no-op.
func (s *Store) End(id string) (game.State, error) {
	return s.mutate(id, func(cur game.State) (game.State, error) {
		next, changed := game.End(cur)
		if !changed {
			return cur, errNoChange
		}
		return next, nil
	})
}

func (s *Store) AddPlayer(id string, team game.Team, name string) (game.State, error) {
	return s.mutate(id, func(cur game.State) (game.State, error) {
		return game.AddPlayer(cur, team, name)
	})
}

func (s *Store) RemovePlayer(id string, team game.Team, index int) (game.State, error) {
	return s.mutate(id, func(cur game.State) (game.State, error) {
		return game.RemovePlayer(cur, team, index)
	})
}

func (s *Store) ReorderPlayers(id string, team game.Team, newOrder []string) (game.State, error) {
	return s.mutate(id, func(cur game.State) (game.State, error) {
		return game.ReorderPlayers(cur, team, newOrder)
	})
}

func (s *Store) SetThrower(id string, team game.Team, index int) (game.State, error) {
	return s.mutate(id, func(cur game.State) (game.State, error) {
		return game.SetThrower(cur, team, index)
	})
}

func fromState(st game.State, adminToken string) (gameRow, error) {
	aPlayers, err := json.Marshal(st.TeamA.Players)
	if err != nil {
		return gameRow{}, fmt.Errorf("encode team a roster: %w", err)
	}
	bPlayers, err := json.Marshal(st.TeamB.Players)
	if err != nil {
		return gameRow{}, fmt.Errorf("encode team b roster: %w", err)
	}
	return gameRow{
		ID:                  st.ID,
		AdminToken:          adminToken,
		TeamAName:           st.TeamA.Name,
		TeamBName:           st.TeamB.Name,
		TeamAColor:          string(st.TeamA.Color),
		TeamBColor:          string(st.TeamB.Color),
		TeamAThrows:         st.TeamA.Throws,
		TeamBThrows:         st.TeamB.Throws,
		TeamAPlayers:        string(aPlayers),
		TeamBPlayers:        string(bPlayers),
		TeamACurrentThrower: st.TeamA.CurrentThrowerIndex,
		TeamBCurrentThrower: st.TeamB.CurrentThrowerIndex,
		LastThrowTeam:       (*string)(st.LastThrowTeam),
		Status:              string(st.Status),
		Winner:              (*string)(st.Winner),
		CreatedAt:           st.CreatedAt,
		UpdatedAt:           st.UpdatedAt,
	}, nil
}

func (r gameRow) toState() (game.State, error) {
	var aPlayers, bPlayers []string
	if err := json.Unmarshal([]byte(r.TeamAPlayers), &aPlayers); err != nil {
		return game.State{}, fmt.Errorf("decode team a roster: %w", err)
	}
	if err := json.Unmarshal([]byte(r.TeamBPlayers), &bPlayers); err != nil {
		return game.State{}, fmt.Errorf("decode team b roster: %w", err)
	}
	return game.State{
		ID: r.ID,
		TeamA: game.TeamState{
			Name:                r.TeamAName,
			Color:               game.Color(r.TeamAColor),
			Throws:              r.TeamAThrows,
			Players:             aPlayers,
			CurrentThrowerIndex: r.TeamACurrentThrower,
		},
		TeamB: game.TeamState{
			Name:                r.TeamBName,
			Color:               game.Color(r.TeamBColor),
			Throws:              r.TeamBThrows,
			Players:             bPlayers,
			CurrentThrowerIndex: r.TeamBCurrentThrower,
		},
		LastThrowTeam: (*game.Team)(r.LastThrowTeam),
		Status:        game.Status(r.Status),
		Winner:        (*game.Team)(r.Winner),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}
