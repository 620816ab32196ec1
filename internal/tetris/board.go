package tetris

import "sort"

// Board is the playfield. An empty string is an empty cell; any other value is
// the color tag of a locked block. Rows are indexed top to bottom.
type Board [Height][Width]string

// LockedCell is one locked block as published to peers.
type LockedCell struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// Occupied reports whether the in-bounds cell (x, y) holds a block.
func (b *Board) Occupied(x, y int) bool {
	return b[y][x] != ""
}

// Collides reports whether piece p anchored at pos overlaps a wall, the floor
// or a locked block. Cells above row 0 only collide with the side walls.
func Collides(p Piece, pos Point, b *Board) bool {
	for y, row := range p.Shape {
		for x, v := range row {
			if v == 0 {
				continue
			}
			bx, by := pos.X+x, pos.Y+y
			if bx < 0 || bx >= Width || by >= Height {
				return true
			}
			if by >= 0 && b.Occupied(bx, by) {
				return true
			}
		}
	}
	return false
}

// Merge writes p into a copy of b at pos and returns the new board together
// with the cells that were locked. Cells above the visible board are dropped.
func Merge(b Board, p Piece, pos Point) (Board, []LockedCell) {
	color := p.Kind.Color()
	locked := make([]LockedCell, 0, 4)
	for y, row := range p.Shape {
		for x, v := range row {
			if v == 0 {
				continue
			}
			bx, by := pos.X+x, pos.Y+y
			if by < 0 || by >= Height || bx < 0 || bx >= Width {
				continue
			}
			b[by][bx] = color
			locked = append(locked, LockedCell{X: bx, Y: by, Color: color})
		}
	}
	return b, locked
}

// CompleteLines returns the indices of fully occupied rows, top to bottom.
func CompleteLines(b *Board) []int {
	var rows []int
	for y := 0; y < Height; y++ {
		full := true
		for x := 0; x < Width; x++ {
			if !b.Occupied(x, y) {
				full = false
				break
			}
		}
		if full {
			rows = append(rows, y)
		}
	}
	return rows
}

// ClearLines removes the given rows in one operation. Remaining rows keep
// their order and slide down; empty rows fill the top so the height is fixed.
func ClearLines(b Board, rows []int) Board {
	if len(rows) == 0 {
		return b
	}
	remove := rowSet(rows)

	var out Board
	dst := Height - 1
	for y := Height - 1; y >= 0; y-- {
		if remove[y] {
			continue
		}
		out[dst] = b[y]
		dst--
	}
	return out
}

// ShiftLockedCells applies a line clear to a locked-cell list: cells on the
// cleared rows are dropped and each remaining cell moves down by the number of
// cleared rows beneath it.
func ShiftLockedCells(cells []LockedCell, rows []int) []LockedCell {
	if len(rows) == 0 {
		return cells
	}
	remove := rowSet(rows)
	sorted := make([]int, 0, len(remove))
	for r := range remove {
		sorted = append(sorted, r)
	}
	sort.Ints(sorted)

	out := make([]LockedCell, 0, len(cells))
	for _, c := range cells {
		if remove[c.Y] {
			continue
		}
		below := len(sorted) - sort.SearchInts(sorted, c.Y+1)
		c.Y += below
		out = append(out, c)
	}
	return out
}

// LockedCells lists every occupied cell of b, row by row.
func (b *Board) LockedCells() []LockedCell {
	var cells []LockedCell
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if b.Occupied(x, y) {
				cells = append(cells, LockedCell{X: x, Y: y, Color: b[y][x]})
			}
		}
	}
	return cells
}

func rowSet(rows []int) map[int]bool {
	set := make(map[int]bool, len(rows))
	for _, r := range rows {
		if r >= 0 && r < Height {
			set[r] = true
		}
	}
	return set
}
