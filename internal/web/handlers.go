package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/renvrose/moving-tic-tac-toe/internal/app"
	"github.com/renvrose/moving-tic-tac-toe/internal/domain"
	"github.com/renvrose/moving-tic-tac-toe/internal/proto"
)

var errBadMessage = errors.New("bad message")

type handlers struct {
	svc         *app.Service
	tpl         *templates
	log         *zap.Logger
	heartbeat   time.Duration
	defaultSize int
}

func (h *handlers) state(gs app.GameState) proto.State {
	return proto.NewState(gs.ID, gs.Game, gs.Profile)
}

// render executes t and logs a failure; the partial output is still returned.
func (h *handlers) render(t *template.Template, data any) []byte {
	b, err := renderTemplate(t, "", data)
	if err != nil {
		h.log.Error("render template", zap.String("template", t.Name()), zap.Error(err))
	}
	return b
}

func (h *handlers) renderBoard(gs app.GameState, errMsg string) []byte {
	lo, hi := h.svc.SizeLimits()
	return h.render(h.tpl.board, newBoardView(h.state(gs), errMsg, lo, hi))
}

func (h *handlers) renderJSON(gs app.GameState) []byte {
	b, err := json.Marshal(h.state(gs))
	if err != nil {
		h.log.Error("encode state", zap.String("game_id", gs.ID), zap.Error(err))
		return nil
	}
	return b
}

// describe maps an error to a wire code and a message for the player.
func (h *handlers) describe(err error) (code, msg string) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return "not_found", "Game not found"
	case errors.Is(err, app.ErrInvalidSize):
		lo, hi := h.svc.SizeLimits()
		return "invalid_size", fmt.Sprintf("Board size must be between %d and %d", lo, hi)
	case errors.Is(err, domain.ErrGameOver):
		return "game_over", "Game is over"
	case errors.Is(err, domain.ErrOutOfBounds):
		return "out_of_bounds", "Out of bounds"
	case errors.Is(err, domain.ErrOccupied):
		return "occupied", "Cell is occupied"
	case errors.Is(err, domain.ErrNoSelection):
		return "no_selection", "Select one of your pieces first"
	case errors.Is(err, domain.ErrNotAdjacent):
		return "not_adjacent", "Pieces move one step to an adjacent empty cell"
	case errors.Is(err, domain.ErrIllegalMove):
		return "illegal_move", "Invalid move"
	case errors.Is(err, errBadMessage):
		return "bad_message", "Unrecognised message"
	default:
		return "internal", "Something went wrong"
	}
}

func writeHTML(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	lo, hi := h.svc.SizeLimits()
	data := struct{ MinSize, MaxSize, DefaultSize int }{lo, hi, h.defaultSize}
	writeHTML(w, h.render(h.tpl.index, data))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	pid := ensurePlayerCookie(w, r)
	_ = r.ParseForm()
	size := h.defaultSize
	if v := r.Form.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid board size", http.StatusBadRequest)
			return
		}
		size = n
	}
	gs, err := h.svc.CreateGame(r.Context(), pid, size)
	if errors.Is(err, app.ErrInvalidSize) {
		_, msg := h.describe(err)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error("create game", zap.Error(err))
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ensurePlayerCookie(w, r)
	gs, ok := h.svc.Get(r.Context(), id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	lo, hi := h.svc.SizeLimits()
	writeHTML(w, h.render(h.tpl.game, newBoardView(h.state(*gs), "", lo, hi)))
}

// action adapts a service mutation into a handler that answers with the
// board fragment, carrying an error line when the mutation was rejected.
func (h *handlers) action(op func(r *http.Request, id string) (*app.GameState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		_ = r.ParseForm()
		gs, err := op(r, id)
		var errMsg string
		if err != nil {
			if errors.Is(err, app.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			var code string
			code, errMsg = h.describe(err)
			if code == "internal" {
				h.log.Error("game action failed", zap.String("game_id", id), zap.Error(err))
			}
			g, ok := h.svc.Get(r.Context(), id)
			if !ok {
				http.NotFound(w, r)
				return
			}
			gs = g
		}
		writeHTML(w, h.renderBoard(*gs, errMsg))
	}
}

func formInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.Form.Get(key)))
	if err != nil {
		return -1
	}
	return n
}

func (h *handlers) click(r *http.Request, id string) (*app.GameState, error) {
	return h.svc.Click(r.Context(), id, formInt(r, "i"))
}

func (h *handlers) undo(r *http.Request, id string) (*app.GameState, error) {
	return h.svc.Undo(r.Context(), id)
}

func (h *handlers) reset(r *http.Request, id string) (*app.GameState, error) {
	return h.svc.Reset(r.Context(), id)
}

func (h *handlers) resize(r *http.Request, id string) (*app.GameState, error) {
	return h.svc.Resize(r.Context(), id, formInt(r, "size"))
}

func (h *handlers) names(r *http.Request, id string) (*app.GameState, error) {
	return h.svc.SetNames(r.Context(), id, r.Form.Get("x"), r.Form.Get("o"))
}

func (h *handlers) session(r *http.Request, id string) (*app.GameState, error) {
	return h.svc.NewSession(r.Context(), id)
}

func (h *handlers) apiState(w http.ResponseWriter, r *http.Request) {
	gs, ok := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(proto.NewError("not_found", "Game not found"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.state(*gs))
}

// writeEvent emits one SSE event; multi-line payloads get one data line each.
func writeEvent(w io.Writer, event string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(string(data), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(r.Context(), id); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", b)
			flusher.Flush()
		}
	}
}

func (h *handlers) ws(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before the snapshot so no committed move falls between them.
	updates, unsub, err := h.svc.SubscribeWith(ctx, id, h.renderJSON)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket accept", zap.String("game_id", id), zap.Error(err))
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	gs, ok := h.svc.Get(ctx, id)
	if !ok {
		c.Close(websocket.StatusPolicyViolation, "game not found")
		return
	}
	if err := wsjson.Write(ctx, c, h.state(*gs)); err != nil {
		return
	}

	go func() {
		defer cancel()
		for b := range updates {
			if err := c.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
		if ctx.Err() == nil {
			// dropped by the service for falling behind
			c.Close(websocket.StatusTryAgainLater, "too slow")
		}
	}()

	for {
		var m proto.ClientMsg
		if err := wsjson.Read(ctx, c, &m); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				return
			}
			h.log.Debug("websocket read", zap.String("game_id", id), zap.Error(err))
			return
		}
		if err := h.apply(ctx, id, m); err != nil {
			code, msg := h.describe(err)
			if err := wsjson.Write(ctx, c, proto.NewError(code, msg)); err != nil {
				return
			}
		}
	}
}

// apply routes a client message to the service. Successful mutations reach
// the client through its subscription.
func (h *handlers) apply(ctx context.Context, id string, m proto.ClientMsg) error {
	var err error
	switch m.Type {
	case proto.TypeClick:
		if m.Cell == nil {
			return errBadMessage
		}
		_, err = h.svc.Click(ctx, id, *m.Cell)
	case proto.TypeUndo:
		_, err = h.svc.Undo(ctx, id)
	case proto.TypeReset:
		_, err = h.svc.Reset(ctx, id)
	case proto.TypeResize:
		_, err = h.svc.Resize(ctx, id, m.Size)
	case proto.TypeNames:
		_, err = h.svc.SetNames(ctx, id, m.X, m.O)
	case proto.TypeNewSession:
		_, err = h.svc.NewSession(ctx, id)
	default:
		return errBadMessage
	}
	return err
}
