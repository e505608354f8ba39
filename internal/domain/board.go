package domain

import "errors"

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other player. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Board is a square board stored row-major: index i is row i/n, column i%n.
type Board []Cell

// NewBoard allocates an empty n x n board.
func NewBoard(n int) Board {
	if n < 0 {
		n = 0
	}
	return make(Board, n*n)
}

// Clone returns a deep copy.
func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	out := make(Board, len(b))
	copy(out, b)
	return out
}

func (b Board) inBounds(i int) bool { return i >= 0 && i < len(b) }

// HasEmpty reports whether any cell is still free.
func (b Board) HasEmpty() bool {
	for _, c := range b {
		if c == Empty {
			return true
		}
	}
	return false
}

// Config holds the three independent rule parameters.
type Config struct {
	BoardSize int
	MaxPieces int
	WinLength int
}

// ErrInvalidConfig is returned for configurations the engine cannot play.
var ErrInvalidConfig = errors.New("invalid game config")

// DefaultConfig keeps pieces and win length equal to the board size.
func DefaultConfig(n int) Config {
	return Config{BoardSize: n, MaxPieces: n, WinLength: n}
}

// Validate checks that the board can hold a winning line.
func (c Config) Validate() error {
	if c.BoardSize < 1 || c.MaxPieces < 1 || c.WinLength < 1 || c.WinLength > c.BoardSize {
		return ErrInvalidConfig
	}
	return nil
}
