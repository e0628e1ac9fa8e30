// Package room runs one goroutine per game session. All actions for a
// session funnel through its inbox, so a mutation is always fully
// processed and broadcast before the next one starts.
package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/kloatscheeten/scoreboard-backend/internal/auth"
	"github.com/kloatscheeten/scoreboard-backend/internal/game"
	"github.com/kloatscheeten/scoreboard-backend/internal/ratelimit"
	"github.com/kloatscheeten/scoreboard-backend/internal/store"
	"github.com/kloatscheeten/scoreboard-backend/internal/types"
)

type Msg interface{ isRoomMsg() }

// Join subscribes a connection to the room's broadcasts. The token is
// checked against the game's admin token exactly once, here; the
// resulting binding lives in the gate until the connection leaves.
type Join struct {
	ConnID string
	Addr   string
	Token  string
	Outbox chan types.ServerMessage
	Reply  chan bool
}

type Leave struct{ ConnID string }

// Action is one already-decoded client message from a joined
// connection.
type Action struct {
	ConnID string
	Msg    types.ClientMessage
}

type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()     {}
func (Leave) isRoomMsg()    {}
func (Action) isRoomMsg()   {}
func (GetView) isRoomMsg()  {}
func (Shutdown) isRoomMsg() {}

// View reflects internal state for tests and the hub's empty check.
type View struct {
	NumClients int
}

type client struct {
	id     string
	addr   string
	outbox chan types.ServerMessage
}

type Deps struct {
	Store   *store.Store
	Gate    *auth.Gate
	Limiter *ratelimit.Limiter
	Log     *zap.Logger
	// OnEmpty is called from the room goroutine whenever the last
	// client leaves; the hub uses it to schedule eviction.
	OnEmpty func()
}

type Room struct {
	gameID  string
	inbox   chan Msg
	clients map[string]*client
	deps    Deps
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, gameID string, deps Deps) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		gameID:  gameID,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]*client),
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)

			case Leave:
				r.dropClient(msg.ConnID)

			case Action:
				r.handleAction(msg)

			case GetView:
				msg.Reply <- View{NumClients: len(r.clients)}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(j Join) {
	st, err := r.deps.Store.Get(r.gameID)
	if err != nil {
		j.Reply <- false
		return
	}

	admin := false
	if j.Token != "" {
		admin, err = r.deps.Store.ValidateAdmin(r.gameID, j.Token)
		if err != nil {
			r.deps.Log.Warn("admin validation failed", zap.String("game", r.gameID), zap.Error(err))
			admin = false
		}
	}
	r.deps.Gate.Bind(j.ConnID, r.gameID, admin)

	cl := &client{id: j.ConnID, addr: j.Addr, outbox: j.Outbox}
	r.clients[j.ConnID] = cl
	j.Reply <- true

	// new subscriber gets the current snapshot right away
	r.unicast(cl, types.Updated(st))
}

// handleAction runs the dispatch pipeline: authorize, shape-validate,
// domain guard, admission control, mutate, then broadcast on success
// or report to the one caller on failure.
func (r *Room) handleAction(a Action) {
	cl, ok := r.clients[a.ConnID]
	if !ok {
		return
	}

	if !r.deps.Gate.IsAdmin(a.ConnID, r.gameID) {
		r.unicast(cl, types.Errorf(types.CodeInvalidToken, "admin authorization required"))
		return
	}

	msg := a.Msg

	// malformed payloads never reach the store, whatever the game's
	// status; they are dropped without a reply
	if !validShape(msg) {
		return
	}

	// ending is exempt from the ended-game guard: it is idempotent
	if msg.Type == types.ActionEnd {
		st, err := r.deps.Store.End(r.gameID)
		if err != nil {
			r.unicast(cl, types.Errorf(types.CodeGameNotFound, "game not found"))
			return
		}
		r.broadcast(types.Updated(st))
		return
	}

	cur, err := r.deps.Store.Get(r.gameID)
	if err != nil || cur.Ended() {
		r.unicast(cl, types.Errorf(types.CodeGameAlreadyOver, "game is already over"))
		return
	}

	switch msg.Type {
	case types.ActionThrow:
		team := game.Team(msg.Team)
		if !r.deps.Limiter.Allow(cl.addr, ratelimit.ClassThrow) {
			r.unicast(cl, types.Errorf(types.CodeRateLimited, "too many throws"))
			return
		}
		st, err := r.deps.Store.RecordThrow(r.gameID, team)
		if err != nil {
			r.unicast(cl, types.Errorf(types.CodeGameNotFound, "game not found"))
			return
		}
		r.broadcast(types.Updated(st))

	case types.ActionUndo:
		st, err := r.deps.Store.UndoThrow(r.gameID)
		if err != nil {
			r.unicast(cl, types.Errorf(types.CodeCannotUndo, "nothing to undo"))
			return
		}
		r.broadcast(types.Updated(st))

	case types.ActionAddPlayer:
		team := game.Team(msg.Team)
		if _, err := game.ValidName(msg.Name); err != nil {
			r.unicast(cl, types.Errorf(types.CodeInvalidPlayer, "invalid player name"))
			return
		}
		st, err := r.deps.Store.AddPlayer(r.gameID, team, msg.Name)
		if err != nil {
			r.unicast(cl, types.Errorf(types.CodeTooManyPlayers, "at most 8 players per team"))
			return
		}
		r.broadcast(types.Updated(st))

	case types.ActionRemovePlayer:
		team := game.Team(msg.Team)
		st, err := r.deps.Store.RemovePlayer(r.gameID, team, *msg.Index)
		if err != nil {
			r.unicast(cl, types.Errorf(types.CodeTooFewPlayers, "at least 2 players per team"))
			return
		}
		r.broadcast(types.Updated(st))

	case types.ActionReorderPlayers:
		team := game.Team(msg.Team)
		st, err := r.deps.Store.ReorderPlayers(r.gameID, team, msg.NewOrder)
		if err != nil {
			r.unicast(cl, types.Errorf(types.CodeInvalidPlayer, "invalid roster"))
			return
		}
		r.broadcast(types.Updated(st))

	case types.ActionSetThrower:
		team := game.Team(msg.Team)
		st, err := r.deps.Store.SetThrower(r.gameID, team, *msg.Index)
		if err != nil {
			r.unicast(cl, types.Errorf(types.CodeInvalidPlayer, "invalid player index"))
			return
		}
		r.broadcast(types.Updated(st))

	default:
		// unknown types never reach the store
	}
}

// validShape checks the per-action payload shape: team present and
// known, index or order supplied where the action needs one.
func validShape(msg types.ClientMessage) bool {
	switch msg.Type {
	case types.ActionThrow, types.ActionAddPlayer:
		return game.ValidTeam(game.Team(msg.Team))
	case types.ActionRemovePlayer, types.ActionSetThrower:
		return game.ValidTeam(game.Team(msg.Team)) && msg.Index != nil
	case types.ActionReorderPlayers:
		return game.ValidTeam(game.Team(msg.Team)) && msg.NewOrder != nil
	default:
		return true
	}
}

// unicast reports a failure to the one connection that caused it;
// errors are never broadcast.
func (r *Room) unicast(cl *client, msg types.ServerMessage) {
	select {
	case cl.outbox <- msg:
	default:
		r.dropClient(cl.id)
	}
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for id, cl := range r.clients {
		select {
		case cl.outbox <- msg:
		default:
			// slow consumer, cut it loose
			r.deps.Log.Debug("dropping slow client", zap.String("game", r.gameID), zap.String("conn", id))
			r.dropClient(id)
		}
	}
}

func (r *Room) dropClient(connID string) {
	cl, ok := r.clients[connID]
	if !ok {
		return
	}
	close(cl.outbox)
	delete(r.clients, connID)
	r.deps.Gate.DropIf(connID, r.gameID)
	if len(r.clients) == 0 && r.deps.OnEmpty != nil {
		r.deps.OnEmpty()
	}
}

func (r *Room) shutdown() {
	for id, cl := range r.clients {
		close(cl.outbox)
		delete(r.clients, id)
		r.deps.Gate.DropIf(id, r.gameID)
	}
	r.cancel()
}
