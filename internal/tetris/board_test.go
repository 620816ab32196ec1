package tetris

import "testing"

func fillRow(b *Board, y int, except ...int) {
	skip := make(map[int]bool)
	for _, x := range except {
		skip[x] = true
	}
	for x := 0; x < Width; x++ {
		if !skip[x] {
			b[y][x] = "#ffffff"
		}
	}
}

func TestCollides(t *testing.T) {
	var b Board
	b[19][4] = "#ffffff"
	p := NewPiece(KindO)

	tests := []struct {
		name string
		pos  Point
		want bool
	}{
		{"spawn", SpawnPosition, false},
		{"left wall", Point{X: -1, Y: 0}, true},
		{"right wall", Point{X: Width - 1, Y: 0}, true},
		{"floor", Point{X: 0, Y: Height - 1}, true},
		{"above board", Point{X: 0, Y: -1}, false},
		{"locked block", Point{X: 3, Y: 18}, true},
		{"beside block", Point{X: 5, Y: 18}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Collides(p, tt.pos, &b); got != tt.want {
				t.Errorf("Collides at %+v = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	var b Board
	out, cells := Merge(b, NewPiece(KindO), Point{X: 0, Y: 18})
	if len(cells) != 4 {
		t.Fatalf("locked %d cells, want 4", len(cells))
	}
	if out[19][1] != KindO.Color() {
		t.Errorf("cell (1,19) = %q, want %q", out[19][1], KindO.Color())
	}
	if b[19][1] != "" {
		t.Error("Merge must not modify its input board")
	}

	_, cells = Merge(b, NewPiece(KindO), Point{X: 0, Y: -1})
	if len(cells) != 2 {
		t.Errorf("cells above the board should be dropped, got %d locked", len(cells))
	}
}

func TestClearNonContiguousLines(t *testing.T) {
	var b Board
	fillRow(&b, 19)
	fillRow(&b, 17)
	b[18][0] = "A"
	b[16][1] = "B"

	rows := CompleteLines(&b)
	if len(rows) != 2 || rows[0] != 17 || rows[1] != 19 {
		t.Fatalf("CompleteLines = %v, want [17 19]", rows)
	}

	out := ClearLines(b, rows)
	if out[19][0] != "A" {
		t.Errorf("row 18 should land on row 19, got %q", out[19][0])
	}
	if out[18][1] != "B" {
		t.Errorf("row 16 should land on row 18, got %q", out[18][1])
	}
	if len(out) != Height || len(out.LockedCells()) != 2 {
		t.Errorf("board should keep %d rows and 2 blocks, got %d blocks", Height, len(out.LockedCells()))
	}
	if len(CompleteLines(&out)) != 0 {
		t.Error("no complete rows should remain")
	}
}

func TestShiftLockedCells(t *testing.T) {
	cells := []LockedCell{
		{X: 0, Y: 18, Color: "A"},
		{X: 1, Y: 16, Color: "B"},
		{X: 2, Y: 17, Color: "C"},
		{X: 3, Y: 5, Color: "D"},
	}
	got := ShiftLockedCells(cells, []int{19, 17, 17})
	want := map[string]int{"A": 19, "B": 18, "D": 7}
	if len(got) != len(want) {
		t.Fatalf("got %d cells, want %d: %+v", len(got), len(want), got)
	}
	for _, c := range got {
		if want[c.Color] != c.Y {
			t.Errorf("cell %s at row %d, want %d", c.Color, c.Y, want[c.Color])
		}
	}
}
