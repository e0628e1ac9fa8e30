// Package types defines the websocket wire shapes exchanged with
// viewers and admins.
package types

import "github.com/kloatscheeten/scoreboard-backend/internal/game"

// Client -> server action names.
const (
	ActionJoin           = "join"
	ActionLeave          = "leave"
	ActionThrow          = "throw"
	ActionUndo           = "undo"
	ActionEnd            = "end"
	ActionAddPlayer      = "addPlayer"
	ActionRemovePlayer   = "removePlayer"
	ActionReorderPlayers = "reorderPlayers"
	ActionSetThrower     = "setThrower"
)

// ClientMessage is the single inbound envelope; which fields matter
// depends on Type. Index is a pointer so a missing index can be told
// apart from index 0.
type ClientMessage struct {
	Type     string   `json:"type"`
	GameID   string   `json:"gameId"`
	Token    string   `json:"token,omitempty"`
	Team     string   `json:"team,omitempty"`
	Name     string   `json:"name,omitempty"`
	Index    *int     `json:"index,omitempty"`
	NewOrder []string `json:"newOrder,omitempty"`
}

// Server -> client message types.
const (
	MsgGameUpdated = "game:updated"
	MsgGameError   = "game:error"
)

type ErrorCode string

const (
	CodeGameNotFound    ErrorCode = "GAME_NOT_FOUND"
	CodeInvalidToken    ErrorCode = "INVALID_TOKEN"
	CodeGameAlreadyOver ErrorCode = "GAME_ALREADY_ENDED"
	CodeCannotUndo      ErrorCode = "CANNOT_UNDO"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeInvalidPlayer   ErrorCode = "INVALID_PLAYER"
	CodeTooManyPlayers  ErrorCode = "TOO_MANY_PLAYERS"
	CodeTooFewPlayers   ErrorCode = "TOO_FEW_PLAYERS"
)

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ServerMessage carries either a full game snapshot (broadcast to the
// whole room) or a typed error (sent to one connection only).
type ServerMessage struct {
	Type  string      `json:"type"`
	Game  *game.State `json:"game,omitempty"`
	Error *ErrorBody  `json:"error,omitempty"`
}

func Updated(st game.State) ServerMessage {
	return ServerMessage{Type: MsgGameUpdated, Game: &st}
}

func Errorf(code ErrorCode, message string) ServerMessage {
	return ServerMessage{Type: MsgGameError, Error: &ErrorBody{Code: code, Message: message}}
}
