package domain

import (
	"errors"
	"fmt"
)

// Phase is a player's current mode of play, derived from their piece count.
type Phase uint8

const (
	Placement Phase = iota
	Movement
)

func (p Phase) String() string {
	if p == Movement {
		return "movement"
	}
	return "placement"
}

// State is the controller state the game is in.
type State uint8

const (
	AwaitingPlacement State = iota
	AwaitingSelection
	AwaitingDestination
	Won
	Draw
)

func (s State) String() string {
	switch s {
	case AwaitingPlacement:
		return "awaiting_placement"
	case AwaitingSelection:
		return "awaiting_selection"
	case AwaitingDestination:
		return "awaiting_destination"
	case Won:
		return "won"
	case Draw:
		return "draw"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further moves are accepted.
func (s State) Terminal() bool { return s == Won || s == Draw }

// Errors returned by domain operations.
var (
	ErrOutOfBounds = errors.New("out of bounds")
	ErrGameOver    = errors.New("game over")
	ErrIllegalMove = errors.New("illegal move")

	ErrOccupied    = fmt.Errorf("%w: cell occupied", ErrIllegalMove)
	ErrNoSelection = fmt.Errorf("%w: no piece selected", ErrIllegalMove)
	ErrNotAdjacent = fmt.Errorf("%w: destination not adjacent", ErrIllegalMove)
)

type snapshot struct {
	board Board
	turn  Cell
}

// Game holds the current state of a match.
type Game struct {
	Config      Config
	Board       Board
	Turn        Cell
	Selected    int
	Winner      Cell
	WinningLine []int
	Over        bool
	Moves       int

	history []snapshot
}

// New returns a new game on an n x n board with X to move.
func New(n int) (Game, error) {
	return NewWithConfig(DefaultConfig(n))
}

// NewWithConfig returns a new game for an explicit rule set.
func NewWithConfig(cfg Config) (Game, error) {
	if err := cfg.Validate(); err != nil {
		return Game{}, err
	}
	g := Game{Config: cfg}
	g.Reset()
	return g, nil
}

// Size is the board side length.
func (g Game) Size() int { return g.Config.BoardSize }

// PhaseOf derives p's phase from the pieces p has on the board.
func (g Game) PhaseOf(p Cell) Phase {
	if CountPieces(g.Board, p) < g.Config.MaxPieces {
		return Placement
	}
	return Movement
}

// State derives the controller state.
func (g Game) State() State {
	switch {
	case g.Over && g.Winner != Empty:
		return Won
	case g.Over:
		return Draw
	case g.PhaseOf(g.Turn) == Placement:
		return AwaitingPlacement
	case g.Selected != NoSelection:
		return AwaitingDestination
	default:
		return AwaitingSelection
	}
}

// HistoryLen is the number of undoable moves.
func (g Game) HistoryLen() int { return len(g.history) }

// Clone returns a deep copy, history included.
func (g Game) Clone() Game {
	cp := g
	cp.Board = g.Board.Clone()
	if g.WinningLine != nil {
		cp.WinningLine = append([]int(nil), g.WinningLine...)
	}
	if g.history != nil {
		cp.history = make([]snapshot, len(g.history))
		for i, s := range g.history {
			cp.history[i] = snapshot{board: s.board.Clone(), turn: s.turn}
		}
	}
	return cp
}

// Click feeds a cell index to the controller: it selects an own piece in
// movement phase, or places/slides the current player's piece. Rejected
// input leaves the game unchanged.
func (g *Game) Click(i int) error {
	if g.Over {
		return ErrGameOver
	}
	if !g.Board.inBounds(i) {
		return ErrOutOfBounds
	}
	p := g.Turn
	placing := g.PhaseOf(p) == Placement

	if !placing && g.Board[i] == p {
		g.Selected = i
		return nil
	}
	if !IsValidMove(i, g.Selected, g.Board, g.Size(), g.Config.MaxPieces, p) {
		return g.rejection(i, placing)
	}

	g.history = append(g.history, snapshot{board: g.Board.Clone(), turn: p})
	if !placing {
		g.Board[g.Selected] = Empty
	}
	g.Board[i] = p
	g.Selected = NoSelection
	g.Moves++
	g.endTurn(p)
	return nil
}

func (g *Game) rejection(i int, placing bool) error {
	switch {
	case g.Board[i] != Empty:
		return ErrOccupied
	case placing:
		return ErrIllegalMove
	case g.Selected == NoSelection:
		return ErrNoSelection
	default:
		return ErrNotAdjacent
	}
}

// endTurn decides win or draw after p moved. A stalemate is judged for the
// player about to move, not for p.
func (g *Game) endTurn(p Cell) {
	if line := CheckWin(g.Board, p, g.Size(), g.Config.WinLength); line != nil {
		g.Winner = p
		g.WinningLine = line
		g.Over = true
		return
	}
	next := p.Opponent()
	g.Turn = next
	if g.PhaseOf(next) == Movement {
		if !HasValidMove(g.Board, next, g.Size()) {
			g.Over = true
		}
		return
	}
	if !g.Board.HasEmpty() {
		g.Over = true
	}
}

// Undo restores the board and mover from before the last move. It reports
// false when there is nothing to undo.
func (g *Game) Undo() bool {
	if len(g.history) == 0 {
		return false
	}
	last := g.history[len(g.history)-1]
	g.history = g.history[:len(g.history)-1]
	g.Board = last.board
	g.Turn = last.turn
	g.Selected = NoSelection
	g.Winner = Empty
	g.WinningLine = nil
	g.Over = false
	g.Moves--
	return true
}

// Reset clears the board of the configured size and hands the move to X.
func (g *Game) Reset() {
	g.Board = NewBoard(g.Config.BoardSize)
	g.Turn = X
	g.Selected = NoSelection
	g.Winner = Empty
	g.WinningLine = nil
	g.Over = false
	g.Moves = 0
	g.history = nil
}

// Resize reallocates the board for side n with default rules and resets.
func (g *Game) Resize(n int) error {
	cfg := DefaultConfig(n)
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.Config = cfg
	g.Reset()
	return nil
}

// ApplyCellClick is the value form of Click: g is left untouched.
func ApplyCellClick(g Game, i int) (Game, error) {
	next := g.Clone()
	if err := next.Click(i); err != nil {
		return g, err
	}
	return next, nil
}

// Undo is the value form of (*Game).Undo.
func Undo(g Game) Game {
	next := g.Clone()
	next.Undo()
	return next
}

// Reset returns a fresh game of side n.
func Reset(g Game, n int) (Game, error) {
	next := g.Clone()
	if err := next.Resize(n); err != nil {
		return g, err
	}
	return next, nil
}

// Destinations lists the empty neighbours of the selected piece.
func (g Game) Destinations() []int {
	if g.Selected == NoSelection || !g.Board.inBounds(g.Selected) {
		return nil
	}
	var out []int
	for _, a := range Adjacency(g.Selected, g.Size()) {
		if g.Board[a] == Empty {
			out = append(out, a)
		}
	}
	return out
}

// IsWinningCell reports whether i is part of the winning line.
func (g Game) IsWinningCell(i int) bool {
	for _, w := range g.WinningLine {
		if w == i {
			return true
		}
	}
	return false
}

// DefaultLabel names a player the way the status line does when no display name is set.
func DefaultLabel(c Cell) string { return "Player " + c.String() }

// Status renders the status line. label maps a player to its display name;
// nil uses DefaultLabel.
func (g Game) Status(label func(Cell) string) string {
	if label == nil {
		label = DefaultLabel
	}
	switch g.State() {
	case Won:
		return label(g.Winner) + " wins!"
	case Draw:
		return "It's a draw!"
	case AwaitingPlacement:
		return label(g.Turn) + ": place a piece"
	case AwaitingDestination:
		return label(g.Turn) + ": select a destination"
	default:
		return label(g.Turn) + ": select a piece to move"
	}
}
