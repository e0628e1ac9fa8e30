// Package ws is the websocket transport. It decodes inbound frames
// into typed client messages, routes joins through the hub and
// everything else to the connection's bound room.
package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/kloatscheeten/scoreboard-backend/internal/hub"
	"github.com/kloatscheeten/scoreboard-backend/internal/ratelimit"
	"github.com/kloatscheeten/scoreboard-backend/internal/room"
	"github.com/kloatscheeten/scoreboard-backend/internal/types"
)

const writeTimeout = 3 * time.Second

type Handler struct {
	hub     *hub.Hub
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

func NewHandler(h *hub.Hub, limiter *ratelimit.Limiter, log *zap.Logger) *Handler {
	return &Handler{hub: h, limiter: limiter, log: log}
}

// membership tracks the connection's current room subscription. A
// connection belongs to at most one room at a time.
type membership struct {
	room   *room.Room
	gameID string
	outbox chan types.ServerMessage
	closed chan struct{} // closed by the writer once outbox is gone
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	connID, err := gonanoid.New()
	if err != nil {
		return
	}
	addr := actorAddr(r)
	ctx := r.Context()

	var sub *membership
	defer func() {
		if sub == nil {
			return
		}
		select {
		case <-sub.closed: // room already dropped us
		default:
			sub.room.Inbox() <- room.Leave{ConnID: connID}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			h.send(ctx, conn, types.Errorf(types.CodeInvalidPlayer, "malformed message"))
			continue
		}

		// a room that dropped us or shut down invalidates the binding
		if sub != nil {
			select {
			case <-sub.closed:
				sub = nil
			default:
			}
		}

		switch cm.Type {
		case types.ActionJoin:
			sub = h.handleJoin(ctx, conn, connID, addr, cm, sub)

		case types.ActionLeave:
			if sub != nil && cm.GameID == sub.gameID {
				sub.room.Inbox() <- room.Leave{ConnID: connID}
				sub = nil
			}

		case types.ActionThrow, types.ActionUndo, types.ActionEnd,
			types.ActionAddPlayer, types.ActionRemovePlayer,
			types.ActionReorderPlayers, types.ActionSetThrower:
			if sub == nil || cm.GameID != sub.gameID {
				h.send(ctx, conn, types.Errorf(types.CodeInvalidToken, "admin authorization required"))
				continue
			}
			sub.room.Inbox() <- room.Action{ConnID: connID, Msg: cm}

		default:
			h.send(ctx, conn, types.Errorf(types.CodeInvalidPlayer, "unknown action"))
		}
	}
}

func (h *Handler) handleJoin(ctx context.Context, conn *websocket.Conn, connID, addr string, cm types.ClientMessage, prev *membership) *membership {
	if cm.GameID == "" {
		return prev
	}
	if !h.limiter.Allow(addr, ratelimit.ClassJoin) {
		h.send(ctx, conn, types.Errorf(types.CodeRateLimited, "too many join attempts"))
		return prev
	}

	// switching games implicitly leaves the old room
	if prev != nil {
		prev.room.Inbox() <- room.Leave{ConnID: connID}
	}

	outbox := make(chan types.ServerMessage, 8)
	joined := make(chan bool, 1)
	reply := make(chan *room.Room, 1)
	h.hub.Inbox() <- hub.JoinGame{
		GameID: cm.GameID,
		Join: room.Join{
			ConnID: connID,
			Addr:   addr,
			Token:  cm.Token,
			Outbox: outbox,
			Reply:  joined,
		},
		Reply: reply,
	}

	rm := <-reply
	if rm == nil || !<-joined {
		h.send(ctx, conn, types.Errorf(types.CodeGameNotFound, "game not found"))
		return nil
	}

	sub := &membership{
		room:   rm,
		gameID: cm.GameID,
		outbox: outbox,
		closed: make(chan struct{}),
	}
	go h.writeLoop(ctx, conn, sub)
	return sub
}

// writeLoop drains the room's outbox onto the socket until the room
// closes it (leave, drop or shutdown).
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *membership) {
	defer close(sub.closed)
	for msg := range sub.outbox {
		h.send(ctx, conn, msg)
	}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal server message", zap.Error(err))
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, payload); err != nil {
		h.log.Debug("websocket write failed", zap.Error(err))
	}
}

// actorAddr extracts the network identity used for rate limiting; it
// survives reconnects, unlike the connection id.
func actorAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
