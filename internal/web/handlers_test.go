package web

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/renvrose/moving-tic-tac-toe/internal/app"
	"github.com/renvrose/moving-tic-tac-toe/internal/domain"
	"github.com/renvrose/moving-tic-tac-toe/internal/proto"
)

func newTestServer(t *testing.T) (*app.Service, http.Handler) {
	t.Helper()
	s := app.NewService(app.WithSizeLimits(3, 7))
	h := NewServer(s)
	return s, h
}

func newGame(t *testing.T, s *app.Service) *app.GameState {
	t.Helper()
	gs, err := s.CreateGame(context.Background(), "p1", 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return gs
}

func post(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIndexPage(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<form") || !strings.Contains(body, "action=\"/game\"") {
		t.Fatalf("index should contain create form; got body: %q", body)
	}
	if !strings.Contains(body, `<option value="7"`) || strings.Contains(body, `<option value="8"`) {
		t.Fatalf("size select should follow the limits; got body: %q", body)
	}
}

func TestCreateRedirectsToGame(t *testing.T) {
	svc, h := newTestServer(t)
	rr := post(h, "/game", url.Values{"size": {"5"}})
	if rr.Code != http.StatusSeeOther && rr.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	loc := rr.Result().Header.Get("Location")
	if !strings.HasPrefix(loc, "/game/") {
		t.Fatalf("expected redirect to /game/{id}, got %q", loc)
	}
	gs, ok := svc.Get(context.Background(), strings.TrimPrefix(loc, "/game/"))
	if !ok || gs.Game.Size() != 5 {
		t.Fatalf("expected a 5x5 game behind the redirect")
	}
	var owner string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "player_id" {
			owner = c.Value
		}
	}
	if owner == "" || gs.Owner != owner {
		t.Fatalf("game owner should be the player cookie; owner=%q cookie=%q", gs.Owner, owner)
	}
}

func TestCreateRejectsBadSize(t *testing.T) {
	_, h := newTestServer(t)
	for _, v := range []string{"2", "12", "abc"} {
		if rr := post(h, "/game", url.Values{"size": {v}}); rr.Code != http.StatusBadRequest {
			t.Fatalf("size %q: expected 400, got %d", v, rr.Code)
		}
	}
}

func TestGamePageSetsCookieAndRendersBoard(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)

	req := httptest.NewRequest("GET", "/game/"+url.PathEscape(gs.ID), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var playerID string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "player_id" {
			playerID = c.Value
			break
		}
	}
	if playerID == "" {
		t.Fatalf("expected player_id cookie to be set")
	}
	body := rr.Body.String()
	if !strings.Contains(body, "hx-ext=\"sse\"") || !strings.Contains(body, "/game/"+gs.ID+"/events") {
		t.Fatalf("expected SSE wiring in page; got body: %q", body)
	}
	if strings.Count(body, `name="i"`) != 9 {
		t.Fatalf("expected 9 cells")
	}
	if !strings.Contains(body, "Player X: place a piece") {
		t.Fatalf("expected status line; got body: %q", body)
	}
}

func TestUnknownGame(t *testing.T) {
	_, h := newTestServer(t)
	for _, path := range []string{"/game/nope", "/api/game/nope", "/game/nope/events"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rr.Code)
		}
	}
	if rr := post(h, "/game/nope/click", url.Values{"i": {"0"}}); rr.Code != http.StatusNotFound {
		t.Fatalf("click on unknown game: expected 404, got %d", rr.Code)
	}
}

func TestClickEndpointUpdatesStateAndReturnsFragment(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)

	rr := post(h, "/game/"+gs.ID+"/click", url.Values{"i": {"4"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "id=\"board\"") || !strings.Contains(body, `class="cell X"`) {
		t.Fatalf("expected board fragment with an X, got %q", body)
	}
	latest, _ := svc.Get(context.Background(), gs.ID)
	if latest.Game.Moves != 1 || latest.Game.Board[4] != domain.X {
		t.Fatalf("expected move applied, moves=%d", latest.Game.Moves)
	}
}

func TestClickRejectionsRenderErrorLine(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	post(h, "/game/"+gs.ID+"/click", url.Values{"i": {"4"}})

	cases := []struct {
		cell, want string
	}{
		{"4", "Cell is occupied"},
		{"9", "Out of bounds"},
		{"x", "Out of bounds"},
	}
	for _, c := range cases {
		rr := post(h, "/game/"+gs.ID+"/click", url.Values{"i": {c.cell}})
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), c.want) {
			t.Fatalf("cell %q: expected %q in fragment, got %q", c.cell, c.want, rr.Body.String())
		}
	}
	latest, _ := svc.Get(context.Background(), gs.ID)
	if latest.Game.Moves != 1 {
		t.Fatalf("rejected clicks must not move, moves=%d", latest.Game.Moves)
	}
}

func TestSelectionHighlightsDestinations(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	for _, c := range []string{"0", "8", "1", "7", "3", "5"} {
		post(h, "/game/"+gs.ID+"/click", url.Values{"i": {c}})
	}
	rr := post(h, "/game/"+gs.ID+"/click", url.Values{"i": {"0"}})
	body := rr.Body.String()
	if !strings.Contains(body, `class="cell X selected"`) {
		t.Fatalf("selected piece should be marked; got %q", body)
	}
	if strings.Count(body, " valid\"") != 1 || !strings.Contains(body, "select a destination") {
		t.Fatalf("expected exactly one destination (cell 4); got %q", body)
	}
	rr = post(h, "/game/"+gs.ID+"/click", url.Values{"i": {"2"}})
	if !strings.Contains(rr.Body.String(), "adjacent empty cell") {
		t.Fatalf("expected adjacency error, got %q", rr.Body.String())
	}
}

func TestWinUndoResetAndResize(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	var rr *httptest.ResponseRecorder
	for _, c := range []string{"0", "3", "1", "4", "2"} {
		rr = post(h, "/game/"+gs.ID+"/click", url.Values{"i": {c}})
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Player X wins!") || strings.Count(body, " win\"") != 3 {
		t.Fatalf("expected win status and highlighted line; got %q", body)
	}
	if !strings.Contains(body, "Player X: 1") {
		t.Fatalf("expected X score 1; got %q", body)
	}

	rr = post(h, "/game/"+gs.ID+"/undo", nil)
	if !strings.Contains(rr.Body.String(), "Player X: 0") || !strings.Contains(rr.Body.String(), "Player X: place a piece") {
		t.Fatalf("undo should roll back the win; got %q", rr.Body.String())
	}

	post(h, "/game/"+gs.ID+"/reset", nil)
	latest, _ := svc.Get(context.Background(), gs.ID)
	if latest.Game.Moves != 0 {
		t.Fatalf("reset should clear the board")
	}

	rr = post(h, "/game/"+gs.ID+"/size", url.Values{"size": {"4"}})
	if strings.Count(rr.Body.String(), `name="i"`) != 16 {
		t.Fatalf("expected 16 cells after resize")
	}
	rr = post(h, "/game/"+gs.ID+"/size", url.Values{"size": {"9"}})
	if !strings.Contains(rr.Body.String(), "Board size must be between 3 and 7") {
		t.Fatalf("expected size error; got %q", rr.Body.String())
	}
}

func TestNamesAndSession(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	rr := post(h, "/game/"+gs.ID+"/names", url.Values{"x": {"Ada"}, "o": {"Grace"}})
	if !strings.Contains(rr.Body.String(), "Ada: place a piece") || !strings.Contains(rr.Body.String(), "Grace: 0") {
		t.Fatalf("names should show in status and scores; got %q", rr.Body.String())
	}
	rr = post(h, "/game/"+gs.ID+"/session", nil)
	if !strings.Contains(rr.Body.String(), "Player X: place a piece") {
		t.Fatalf("new session should forget the names; got %q", rr.Body.String())
	}
}

func TestAPIState(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	if _, err := svc.Click(context.Background(), gs.ID, 4); err != nil {
		t.Fatalf("click: %v", err)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/game/"+gs.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var st proto.State
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.ID != gs.ID || st.Board[4] != "X" || st.Turn != "O" || st.Moves != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
	_, h := newTestServer(t)
	rrCreate := post(h, "/game", nil)
	loc := rrCreate.Result().Header.Get("Location")
	if loc == "" {
		t.Fatalf("missing redirect location")
	}
	req := httptest.NewRequest("GET", loc+"/events", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	ct := rr.Result().Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/event-stream") {
		io.Copy(io.Discard, rr.Result().Body)
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
}

func TestEventsStreamBoardUpdates(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/game/"+gs.ID+"/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()

	if _, err := svc.Click(context.Background(), gs.ID, 4); err != nil {
		t.Fatalf("click: %v", err)
	}

	sc := bufio.NewScanner(resp.Body)
	sawEvent := false
	for sc.Scan() {
		line := sc.Text()
		if line == "event: board" {
			sawEvent = true
		}
		if sawEvent && strings.Contains(line, `class="cell X"`) {
			if !strings.HasPrefix(line, "data: ") {
				t.Fatalf("payload line without data prefix: %q", line)
			}
			return
		}
	}
	t.Fatalf("no board event received: %v", sc.Err())
}

func TestWebSocketPlay(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + gs.ID + "/ws"
	c, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "bye")

	var st proto.State
	if err := wsjson.Read(ctx, c, &st); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if st.Type != "state" || st.Moves != 0 || len(st.Board) != 9 {
		t.Fatalf("unexpected initial state %+v", st)
	}

	cell := 4
	if err := wsjson.Write(ctx, c, proto.ClientMsg{Type: proto.TypeClick, Cell: &cell}); err != nil {
		t.Fatalf("write click: %v", err)
	}
	if err := wsjson.Read(ctx, c, &st); err != nil {
		t.Fatalf("read state: %v", err)
	}
	if st.Board[4] != "X" || st.Turn != "O" {
		t.Fatalf("click not applied: %+v", st)
	}

	if err := wsjson.Write(ctx, c, proto.ClientMsg{Type: proto.TypeClick, Cell: &cell}); err != nil {
		t.Fatalf("write click: %v", err)
	}
	var perr proto.Error
	if err := wsjson.Read(ctx, c, &perr); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if perr.Type != "error" || perr.Code != "occupied" {
		t.Fatalf("expected occupied error, got %+v", perr)
	}

	if err := wsjson.Write(ctx, c, proto.ClientMsg{Type: "bogus"}); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	if err := wsjson.Read(ctx, c, &perr); err != nil || perr.Code != "bad_message" {
		t.Fatalf("expected bad_message, got %+v err=%v", perr, err)
	}

	// Moves made elsewhere reach the socket too.
	if _, err := svc.Click(context.Background(), gs.ID, 0); err != nil {
		t.Fatalf("click: %v", err)
	}
	if err := wsjson.Read(ctx, c, &st); err != nil || st.Board[0] != "O" {
		t.Fatalf("expected O at 0 pushed to socket, got %+v err=%v", st, err)
	}
}

func TestWebSocketSeesMoveMadeWhileConnecting(t *testing.T) {
	svc, h := newTestServer(t)
	gs := newGame(t, svc)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + gs.ID + "/ws"
	done := make(chan error, 1)
	go func() {
		_, err := svc.Click(context.Background(), gs.ID, 4)
		done <- err
	}()
	c, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "bye")
	if err := <-done; err != nil {
		t.Fatalf("click: %v", err)
	}

	// Either the snapshot or a pushed update carries the move.
	for {
		var st proto.State
		if err := wsjson.Read(ctx, c, &st); err != nil {
			t.Fatalf("move never reached the socket: %v", err)
		}
		if st.Board[4] == "X" {
			return
		}
	}
}

func TestWebSocketUnknownGame(t *testing.T) {
	_, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/game/nope/ws", nil)
	if err == nil {
		t.Fatalf("expected dial to fail for unknown game")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}
