package proto

import (
	"github.com/renvrose/moving-tic-tac-toe/internal/domain"
	"github.com/renvrose/moving-tic-tac-toe/internal/store"
)

// Client message types.
const (
	TypeClick      = "click"
	TypeUndo       = "undo"
	TypeReset      = "reset"
	TypeResize     = "resize"
	TypeNames      = "names"
	TypeNewSession = "new_session"
)

// ---- Client -> Server ----
type ClientMsg struct {
	Type string `json:"type"`           // see Type* constants
	Cell *int   `json:"cell,omitempty"` // for "click"
	Size int    `json:"size,omitempty"` // for "resize"
	X    string `json:"x,omitempty"`    // for "names"
	O    string `json:"o,omitempty"`
}

// ---- Server -> Client ----
type State struct {
	Type         string            `json:"type"` // "state"
	ID           string            `json:"id"`
	Size         int               `json:"size"`
	WinLength    int               `json:"win_length"`
	MaxPieces    int               `json:"max_pieces"`
	Board        []string          `json:"board"`
	Turn         string            `json:"turn"`
	Phase        string            `json:"phase"`
	State        string            `json:"state"`
	Status       string            `json:"status"`
	Selected     *int              `json:"selected,omitempty"`
	Destinations []int             `json:"destinations"`
	WinningLine  []int             `json:"winning_line"`
	Over         bool              `json:"over"`
	Winner       string            `json:"winner,omitempty"`
	Moves        int               `json:"moves"`
	CanUndo      bool              `json:"can_undo"`
	Names        map[string]string `json:"names"`
	Wins         map[string]int    `json:"wins"`
}

type Error struct {
	Type   string `json:"type"` // "error"
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// NewError builds an error message.
func NewError(code, detail string) Error {
	return Error{Type: "error", Code: code, Detail: detail}
}

// NewState flattens a game and its owner's profile into a state message.
func NewState(id string, g domain.Game, p store.Profile) State {
	board := make([]string, len(g.Board))
	for i, c := range g.Board {
		board[i] = c.String()
	}
	st := State{
		Type:         "state",
		ID:           id,
		Size:         g.Size(),
		WinLength:    g.Config.WinLength,
		MaxPieces:    g.Config.MaxPieces,
		Board:        board,
		Turn:         g.Turn.String(),
		Phase:        g.PhaseOf(g.Turn).String(),
		State:        g.State().String(),
		Status:       g.Status(p.Name),
		Destinations: nonNil(g.Destinations()),
		WinningLine:  nonNil(g.WinningLine),
		Over:         g.Over,
		Moves:        g.Moves,
		CanUndo:      g.HistoryLen() > 0,
		Names: map[string]string{
			"X": p.Name(domain.X),
			"O": p.Name(domain.O),
		},
		Wins: map[string]int{
			"X": p.Wins(domain.X),
			"O": p.Wins(domain.O),
		},
	}
	if g.Selected != domain.NoSelection {
		sel := g.Selected
		st.Selected = &sel
	}
	if g.Winner != domain.Empty {
		st.Winner = g.Winner.String()
	}
	return st
}

func nonNil(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return append([]int(nil), xs...)
}
