// Package tetris implements the falling-block simulation: the board and piece
// model, the per-player state machine, input gating and the gravity runner.
package tetris

import "github.com/vovakirdan/blockduel/internal/core"

// Board geometry and queue lookahead.
const (
	Width      = 10
	Height     = 20
	QueueDepth = 5
)

// Point is a board coordinate. Rows above the visible board are negative.
type Point = core.Point

// SpawnPosition is the anchor every new or held piece starts from.
var SpawnPosition = Point{X: 3, Y: 0}

// Kind enumerates the seven tetromino shapes.
type Kind uint8

const (
	KindNone Kind = iota
	KindI
	KindO
	KindT
	KindS
	KindZ
	KindJ
	KindL
)

// Kinds lists every playable kind in table order.
var Kinds = [...]Kind{KindI, KindO, KindT, KindS, KindZ, KindJ, KindL}

// Shape is a piece occupancy matrix; non-zero cells are occupied.
type Shape [][]uint8

type kindInfo struct {
	letter string
	color  string
	shape  Shape
}

var kindTable = [...]kindInfo{
	KindNone: {},
	KindI: {"I", "#00f0f0", Shape{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}},
	KindO: {"O", "#f0f000", Shape{
		{1, 1},
		{1, 1},
	}},
	KindT: {"T", "#a000f0", Shape{
		{0, 1, 0},
		{1, 1, 1},
		{0, 0, 0},
	}},
	KindS: {"S", "#00f000", Shape{
		{0, 1, 1},
		{1, 1, 0},
		{0, 0, 0},
	}},
	KindZ: {"Z", "#f00000", Shape{
		{1, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	}},
	KindJ: {"J", "#0000f0", Shape{
		{1, 0, 0},
		{1, 1, 1},
		{0, 0, 0},
	}},
	KindL: {"L", "#f0a000", Shape{
		{0, 0, 1},
		{1, 1, 1},
		{0, 0, 0},
	}},
}

// Valid reports whether k is one of the seven playable kinds.
func (k Kind) Valid() bool {
	return k >= KindI && k <= KindL
}

// String returns the kind letter, or "" for KindNone.
func (k Kind) String() string {
	if int(k) >= len(kindTable) {
		return ""
	}
	return kindTable[k].letter
}

// Color returns the kind's display color tag.
func (k Kind) Color() string {
	if int(k) >= len(kindTable) {
		return ""
	}
	return kindTable[k].color
}

// Shape returns a fresh copy of the kind's spawn orientation.
func (k Kind) Shape() Shape {
	if !k.Valid() {
		return nil
	}
	return kindTable[k].shape.clone()
}

// ParseKind maps a kind letter back to a Kind. Unknown input yields KindNone.
func ParseKind(s string) Kind {
	for _, k := range Kinds {
		if kindTable[k].letter == s {
			return k
		}
	}
	return KindNone
}

func (s Shape) clone() Shape {
	out := make(Shape, len(s))
	for i, row := range s {
		out[i] = append([]uint8(nil), row...)
	}
	return out
}

// Equal reports whether two shapes have identical occupancy.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if len(s[i]) != len(o[i]) {
			return false
		}
		for j := range s[i] {
			if (s[i][j] != 0) != (o[i][j] != 0) {
				return false
			}
		}
	}
	return true
}

// Piece is a tetromino in its current orientation.
type Piece struct {
	Kind  Kind
	Shape Shape
}

// NewPiece returns a piece of kind k in spawn orientation.
func NewPiece(k Kind) Piece {
	return Piece{Kind: k, Shape: k.Shape()}
}

// Cells returns the offsets of the occupied cells relative to the anchor.
func (p Piece) Cells() []Point {
	cells := make([]Point, 0, 4)
	for y, row := range p.Shape {
		for x, v := range row {
			if v != 0 {
				cells = append(cells, Point{X: x, Y: y})
			}
		}
	}
	return cells
}

// RotateCW returns p rotated clockwise (transpose, then reverse each row).
// The caller tests the result for collision and discards it on failure.
func RotateCW(p Piece) Piece {
	rows := len(p.Shape)
	if rows == 0 {
		return p
	}
	cols := len(p.Shape[0])
	out := make(Shape, cols)
	for i := range out {
		out[i] = make([]uint8, rows)
		for j := 0; j < rows; j++ {
			out[i][j] = p.Shape[rows-1-j][i]
		}
	}
	return Piece{Kind: p.Kind, Shape: out}
}

// RotateCCW returns p rotated counter-clockwise, the inverse of RotateCW.
func RotateCCW(p Piece) Piece {
	rows := len(p.Shape)
	if rows == 0 {
		return p
	}
	cols := len(p.Shape[0])
	out := make(Shape, cols)
	for i := range out {
		out[i] = make([]uint8, rows)
		for j := 0; j < rows; j++ {
			out[i][j] = p.Shape[j][cols-1-i]
		}
	}
	return Piece{Kind: p.Kind, Shape: out}
}
