// Package gateway exposes a Game to browsers: a WebSocket that streams bus
// events and accepts actions, plus a few read-only HTTP endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/gameserver"
)

// Gateway serves one Game over HTTP and WebSocket.
type Gateway struct {
	game     *gameserver.Game
	cfg      config.GatewayConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
	srv      *http.Server
	timeout  time.Duration
}

// New creates a Gateway for game.
//
// Precondition: game and logger must be non-nil; cfg must be validated.
// shutdownTimeout bounds Stop; zero waits for open requests indefinitely.
func New(game *gameserver.Game, cfg config.GatewayConfig, shutdownTimeout time.Duration, logger *zap.Logger) *Gateway {
	g := &Gateway{
		game:   game,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		timeout: shutdownTimeout,
	}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", g.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", g.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/saves/{slot:[0-9]+}", g.handleSave).Methods(http.MethodGet)
	r.HandleFunc("/actions", g.handleAction).Methods(http.MethodPost)
	r.HandleFunc("/ws", g.handleWebSocket)
	g.router = r
	g.srv = &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	return g
}

// Handler returns the gateway's routes.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start listens on the configured address and blocks until Stop.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", g.srv.Addr)
	if err != nil {
		return err
	}
	g.logger.Info("gateway listening", zap.String("addr", ln.Addr().String()))
	if err := g.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down. Open WebSockets are hijacked connections
// and end when their peers notice the closed listener or the game closes.
func (g *Gateway) Stop() {
	ctx := context.Background()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if err := g.srv.Shutdown(ctx); err != nil {
		g.logger.Warn("gateway shutdown", zap.Error(err))
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.game.Status())
}

func (g *Gateway) handleSave(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil || state.ValidSlot(slot) != nil {
		writeError(w, http.StatusBadRequest, "invalid save slot")
		return
	}
	info, ok := g.game.SaveInfo(r.Context(), slot)
	if !ok {
		writeError(w, http.StatusNotFound, "no save in slot")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (g *Gateway) handleAction(w http.ResponseWriter, r *http.Request) {
	var a gameserver.Action
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxMessageSize)).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "decoding action: "+err.Error())
		return
	}
	out, err := g.game.Act(r.Context(), a)
	if err != nil {
		writeError(w, httpStatus(gameserver.ErrorCode(err)), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	c := newClient(g, conn)
	g.logger.Info("websocket client connected", zap.String("client", c.id), zap.String("remote", r.RemoteAddr))
	go c.writePump()
	go c.readPump()
}

// httpStatus maps a game error class onto an HTTP status.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
