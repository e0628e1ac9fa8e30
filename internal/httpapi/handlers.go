package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/kloatscheeten/scoreboard-backend/internal/game"
	"github.com/kloatscheeten/scoreboard-backend/internal/ratelimit"
	"github.com/kloatscheeten/scoreboard-backend/internal/store"
)

const (
	gameIDLen     = 6
	adminTokenLen = 21
)

type CreateGameRequest struct {
	TeamAName    string   `json:"teamAName"`
	TeamBName    string   `json:"teamBName"`
	TeamAPlayers []string `json:"teamAPlayers"`
	TeamBPlayers []string `json:"teamBPlayers"`
	TeamAColor   string   `json:"teamAColor,omitempty"`
	TeamBColor   string   `json:"teamBColor,omitempty"`
}

type CreateGameResponse struct {
	GameID     string `json:"gameId"`
	AdminToken string `json:"adminToken"`
	ViewerURL  string `json:"viewerUrl"`
}

type API struct {
	store   *store.Store
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

func NewAPI(st *store.Store, limiter *ratelimit.Limiter, log *zap.Logger) *API {
	return &API{store: st, limiter: limiter, log: log}
}

// CreateGame validates the request, mints a short game id plus the
// admin token and persists the initial state.
func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	if !a.limiter.Allow(remoteHost(r), ratelimit.ClassCreate) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many games created, slow down"})
		return
	}

	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	if errs := validateCreate(&req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": errs})
		return
	}

	gameID, err := gonanoid.New(gameIDLen)
	if err != nil {
		http.Error(w, "failed to generate game id", http.StatusInternalServerError)
		return
	}
	adminToken, err := gonanoid.New(adminTokenLen)
	if err != nil {
		http.Error(w, "failed to generate admin token", http.StatusInternalServerError)
		return
	}

	st, err := game.New(gameID, req.TeamAName, req.TeamBName,
		req.TeamAPlayers, req.TeamBPlayers,
		game.Color(req.TeamAColor), game.Color(req.TeamBColor), time.Now().Unix())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": {err.Error()}})
		return
	}

	if _, err := a.store.Create(st, adminToken); err != nil {
		a.log.Error("create game failed", zap.String("game", gameID), zap.Error(err))
		http.Error(w, "failed to create game", http.StatusInternalServerError)
		return
	}

	a.log.Info("game created", zap.String("game", gameID))
	writeJSON(w, http.StatusCreated, CreateGameResponse{
		GameID:     gameID,
		AdminToken: adminToken,
		ViewerURL:  viewerURL(r, gameID),
	})
}

// GetGame returns the current snapshot; the admin token never leaves
// the store.
func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := a.store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "game not found"})
			return
		}
		a.log.Error("load game failed", zap.String("game", id), zap.Error(err))
		http.Error(w, "failed to load game", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validateCreate(req *CreateGameRequest) []string {
	var errs []string

	if _, err := game.ValidName(req.TeamAName); err != nil {
		errs = append(errs, "team A name invalid")
	}
	if _, err := game.ValidName(req.TeamBName); err != nil {
		errs = append(errs, "team B name invalid")
	}
	if len(req.TeamAPlayers) < game.MinPlayers || len(req.TeamAPlayers) > game.MaxPlayers {
		errs = append(errs, "team A needs 2-8 players")
	}
	if len(req.TeamBPlayers) < game.MinPlayers || len(req.TeamBPlayers) > game.MaxPlayers {
		errs = append(errs, "team B needs 2-8 players")
	}
	for _, name := range append(append([]string{}, req.TeamAPlayers...), req.TeamBPlayers...) {
		if _, err := game.ValidName(name); err != nil {
			errs = append(errs, fmt.Sprintf("invalid player name: %q", name))
		}
	}

	// colors are optional; default to the classic pairing
	if req.TeamAColor == "" {
		req.TeamAColor = string(game.ColorRed)
	}
	if req.TeamBColor == "" {
		req.TeamBColor = string(game.ColorBlue)
	}
	if !game.ValidColor(game.Color(req.TeamAColor)) {
		errs = append(errs, "team A color not in palette")
	}
	if !game.ValidColor(game.Color(req.TeamBColor)) {
		errs = append(errs, "team B color not in palette")
	}

	return errs
}

func viewerURL(r *http.Request, gameID string) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
	}
	host := r.Host
	return fmt.Sprintf("%s://%s/game/%s", proto, host, gameID)
}

// remoteHost is the rate-limit identity for HTTP callers.
func remoteHost(r *http.Request) string {
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
