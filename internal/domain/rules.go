package domain

// NoSelection marks the absence of a selected cell.
const NoSelection = -1

// Adjacency returns the king-move neighbours of cell i on an n x n board,
// clipped at the edges, in row-major order.
func Adjacency(i, n int) []int {
	if n < 1 || i < 0 || i >= n*n {
		return nil
	}
	row, col := i/n, i%n
	adj := make([]int, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r >= 0 && r < n && c >= 0 && c < n {
				adj = append(adj, r*n+c)
			}
		}
	}
	return adj
}

func isAdjacent(a, b, n int) bool {
	for _, j := range Adjacency(a, n) {
		if j == b {
			return true
		}
	}
	return false
}

// Patterns enumerates every straight run of k cells on an n x n board:
// horizontals, verticals, diagonals, then anti-diagonals.
func Patterns(n, k int) [][]int {
	if n < 1 || k < 1 || k > n {
		return nil
	}
	var out [][]int
	run := func(start, step int) []int {
		p := make([]int, k)
		for i := range p {
			p[i] = start + i*step
		}
		return p
	}
	// rows
	for r := 0; r < n; r++ {
		for c := 0; c <= n-k; c++ {
			out = append(out, run(r*n+c, 1))
		}
	}
	// cols
	for c := 0; c < n; c++ {
		for r := 0; r <= n-k; r++ {
			out = append(out, run(r*n+c, n))
		}
	}
	// diags
	for r := 0; r <= n-k; r++ {
		for c := 0; c <= n-k; c++ {
			out = append(out, run(r*n+c, n+1))
		}
	}
	// anti-diags
	for r := 0; r <= n-k; r++ {
		for c := k - 1; c < n; c++ {
			out = append(out, run(r*n+c, n-1))
		}
	}
	return out
}

// CheckWin returns the first run of winLength cells all held by player, or nil.
func CheckWin(b Board, player Cell, n, winLength int) []int {
	if player == Empty || len(b) != n*n {
		return nil
	}
	for _, p := range Patterns(n, winLength) {
		if owns(b, player, p) {
			return p
		}
	}
	return nil
}

func owns(b Board, player Cell, line []int) bool {
	for _, i := range line {
		if b[i] != player {
			return false
		}
	}
	return true
}

// CountPieces counts the cells held by player.
func CountPieces(b Board, player Cell) int {
	n := 0
	for _, c := range b {
		if c == player {
			n++
		}
	}
	return n
}

// IsValidMove decides whether player may place on, or slide from selected to, target.
// Placement applies while the player holds fewer than maxPieces.
func IsValidMove(target, selected int, b Board, n, maxPieces int, player Cell) bool {
	if !b.inBounds(target) || b[target] != Empty {
		return false
	}
	if CountPieces(b, player) < maxPieces {
		return true
	}
	if selected == NoSelection || !b.inBounds(selected) {
		return false
	}
	return isAdjacent(selected, target, n)
}

// HasValidMove reports whether any of player's pieces has an empty neighbour.
func HasValidMove(b Board, player Cell, n int) bool {
	for i, c := range b {
		if c != player {
			continue
		}
		for _, a := range Adjacency(i, n) {
			if b[a] == Empty {
				return true
			}
		}
	}
	return false
}
