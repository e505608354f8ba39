package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/google/uuid"

	"github.com/renvrose/moving-tic-tac-toe/internal/proto"
)

type templates struct {
	base  *template.Template
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"iter": func(from, to int) []int {
			var a []int
			for i := from; i <= to; i++ {
				a = append(a, i)
			}
			return a
		},
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Moving Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
<style>
.grid{display:grid;gap:4px}
.cell{width:3rem;height:3rem;font-size:1.5rem}
.cell.X{color:#c0392b}.cell.O{color:#2c3e50}
.cell.selected{outline:3px solid #f1c40f}
.cell.valid{background:#d5f5e3}
.cell.win{background:#f9e79f}
</style>
</head><body>{{template "content" .}}</body></html>`))
	template.Must(base.New("board").Funcs(funcs()).Parse(boardTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(indexTemplate))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
<h1>Moving Tic-Tac-Toe</h1>
<div hx-ext="sse" hx-sse="connect:/game/{{.ID}}/events">
  <div hx-sse="swap:board">{{template "board" .}}</div>
</div>`))
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{base: base, game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if name == "" {
		err = t.Execute(&buf, data)
	} else {
		err = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes(), err
}

const indexTemplate = `<h1>Moving Tic-Tac-Toe</h1>
<form action="/game" method="post">
  <label>Board size
    <select name="size">
      {{range iter .MinSize .MaxSize}}<option value="{{.}}"{{if eq . $.DefaultSize}} selected{{end}}>{{.}} x {{.}}</option>{{end}}
    </select>
  </label>
  <button>New game</button>
</form>`

const boardTemplate = `
<div id="board">
  <p class="status">{{.Status}}</p>
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  <p class="scores"><span class="X">{{.NameX}}: {{.WinsX}}</span> <span class="O">{{.NameO}}: {{.WinsO}}</span></p>
  <div class="grid" style="grid-template-columns: repeat({{.Size}}, 3rem)">
    {{range .Cells}}
      <form hx-post="/game/{{$.ID}}/click" hx-target="#board" hx-swap="outerHTML" action="/game/{{$.ID}}/click" method="post">
        <input type="hidden" name="i" value="{{.Index}}">
        <button type="submit" class="{{.Class}}"{{if $.Over}} disabled{{end}}>{{.Mark}}</button>
      </form>
    {{end}}
  </div>
  <div class="controls">
    <form hx-post="/game/{{.ID}}/undo" hx-target="#board" hx-swap="outerHTML" action="/game/{{.ID}}/undo" method="post">
      <button type="submit"{{if not .CanUndo}} disabled{{end}}>Undo</button>
    </form>
    <form hx-post="/game/{{.ID}}/reset" hx-target="#board" hx-swap="outerHTML" action="/game/{{.ID}}/reset" method="post">
      <button type="submit">Reset</button>
    </form>
    <form hx-post="/game/{{.ID}}/size" hx-target="#board" hx-swap="outerHTML" action="/game/{{.ID}}/size" method="post">
      <select name="size">
        {{range iter .MinSize .MaxSize}}<option value="{{.}}"{{if eq . $.Size}} selected{{end}}>{{.}} x {{.}}</option>{{end}}
      </select>
      <button type="submit">Resize</button>
    </form>
    <form hx-post="/game/{{.ID}}/names" hx-target="#board" hx-swap="outerHTML" action="/game/{{.ID}}/names" method="post">
      <input name="x" value="{{.NameX}}" placeholder="Player X">
      <input name="o" value="{{.NameO}}" placeholder="Player O">
      <button type="submit">Save names</button>
    </form>
    <form hx-post="/game/{{.ID}}/session" hx-target="#board" hx-swap="outerHTML" action="/game/{{.ID}}/session" method="post">
      <button type="submit">New session</button>
    </form>
  </div>
</div>
`

type cellView struct {
	Index int
	Mark  string
	Class string
}

type boardView struct {
	ID      string
	Size    int
	Status  string
	Error   string
	Over    bool
	CanUndo bool
	NameX   string
	NameO   string
	WinsX   int
	WinsO   int
	MinSize int
	MaxSize int
	Cells   []cellView
}

func newBoardView(st proto.State, errMsg string, minSize, maxSize int) boardView {
	mark := func(xs []int) map[int]bool {
		m := make(map[int]bool, len(xs))
		for _, x := range xs {
			m[x] = true
		}
		return m
	}
	valid, win := mark(st.Destinations), mark(st.WinningLine)

	v := boardView{
		ID:      st.ID,
		Size:    st.Size,
		Status:  st.Status,
		Error:   errMsg,
		Over:    st.Over,
		CanUndo: st.CanUndo,
		NameX:   st.Names["X"],
		NameO:   st.Names["O"],
		WinsX:   st.Wins["X"],
		WinsO:   st.Wins["O"],
		MinSize: minSize,
		MaxSize: maxSize,
		Cells:   make([]cellView, len(st.Board)),
	}
	for i, m := range st.Board {
		class := "cell"
		if m != "" {
			class += " " + m
		}
		if st.Selected != nil && *st.Selected == i {
			class += " selected"
		}
		if valid[i] {
			class += " valid"
		}
		if win[i] {
			class += " win"
		}
		v.Cells[i] = cellView{Index: i, Mark: m, Class: class}
	}
	return v
}

const playerCookie = "player_id"

// Helper to set cookie
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookie); err == nil && c.Value != "" {
		return c.Value
	}
	v := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookie,
		Value:    v,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return v
}
