// Package hub owns the set of live rooms. Joins are routed through the
// hub goroutine so room creation and eviction can never race with a
// subscriber arriving.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/kloatscheeten/scoreboard-backend/internal/auth"
	"github.com/kloatscheeten/scoreboard-backend/internal/ratelimit"
	"github.com/kloatscheeten/scoreboard-backend/internal/room"
	"github.com/kloatscheeten/scoreboard-backend/internal/store"
)

type Msg interface{ isHubMsg() }

// JoinGame looks up (or lazily creates) the room for an existing game
// and forwards the join to it. Reply carries the room, or nil when the
// game does not exist.
type JoinGame struct {
	GameID string
	Join   room.Join
	Reply  chan *room.Room
}

// GetRoom fetches the live room without creating one. May reply nil.
type GetRoom struct {
	GameID string
	Reply  chan *room.Room
}

// roomEmpty is posted by a room when its last client leaves.
type roomEmpty struct {
	GameID string
}

type Shutdown struct{}

func (JoinGame) isHubMsg()  {}
func (GetRoom) isHubMsg()   {}
func (roomEmpty) isHubMsg() {}
func (Shutdown) isHubMsg()  {}

type Hub struct {
	inbox   chan Msg
	rooms   map[string]*room.Room
	store   *store.Store
	gate    *auth.Gate
	limiter *ratelimit.Limiter
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

type Config struct {
	Store   *store.Store
	Gate    *auth.Gate
	Limiter *ratelimit.Limiter
	Log     *zap.Logger
}

func New(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan Msg, 64),
		rooms:   make(map[string]*room.Room),
		store:   cfg.Store,
		gate:    cfg.Gate,
		limiter: cfg.Limiter,
		log:     cfg.Log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case JoinGame:
				h.handleJoin(msg)

			case GetRoom:
				msg.Reply <- h.rooms[msg.GameID]

			case roomEmpty:
				h.maybeEvict(msg.GameID)

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) handleJoin(msg JoinGame) {
	rm, ok := h.rooms[msg.GameID]
	if !ok {
		// rooms only exist for games that exist
		if _, err := h.store.Get(msg.GameID); err != nil {
			msg.Reply <- nil
			return
		}
		gameID := msg.GameID
		rm = room.New(h.ctx, gameID, room.Deps{
			Store:   h.store,
			Gate:    h.gate,
			Limiter: h.limiter,
			Log:     h.log,
			OnEmpty: func() { h.notifyEmpty(gameID) },
		})
		h.rooms[gameID] = rm
		h.log.Info("room opened", zap.String("game", gameID))
	}
	rm.Inbox() <- msg.Join
	msg.Reply <- rm
}

// notifyEmpty runs on the room goroutine; the send must not block or
// an overloaded hub could deadlock against the room it is feeding.
// A dropped notice just leaves one idle room in the map.
func (h *Hub) notifyEmpty(gameID string) {
	select {
	case h.inbox <- roomEmpty{GameID: gameID}:
	default:
	}
}

// maybeEvict re-checks occupancy before tearing the room down: a join
// forwarded after the empty notice keeps the room alive.
func (h *Hub) maybeEvict(gameID string) {
	rm := h.rooms[gameID]
	if rm == nil {
		return
	}
	reply := make(chan room.View, 1)
	rm.Inbox() <- room.GetView{Reply: reply}
	if v := <-reply; v.NumClients > 0 {
		return
	}
	rm.Inbox() <- room.Shutdown{}
	delete(h.rooms, gameID)
	h.log.Info("room evicted", zap.String("game", gameID))
}

func (h *Hub) shutdown() {
	for id, rm := range h.rooms {
		rm.Inbox() <- room.Shutdown{}
		delete(h.rooms, id)
	}
	h.cancel()
}
