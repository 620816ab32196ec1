package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

// colorStyles maps core.Color to lipgloss styles.
var colorStyles = map[core.Color]lipgloss.Style{
	core.ColorDefault:       lipgloss.NewStyle(),
	core.ColorRed:           lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	core.ColorGreen:         lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	core.ColorYellow:        lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	core.ColorBlue:          lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	core.ColorMagenta:       lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	core.ColorCyan:          lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	core.ColorWhite:         lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	core.ColorBrightRed:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	core.ColorBrightGreen:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	core.ColorBrightYellow:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	core.ColorBrightBlue:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	core.ColorBrightMagenta: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	core.ColorBrightCyan:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	core.ColorBrightWhite:   lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
	core.ColorOrange:        lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	core.ColorGray:          lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	core.ColorDarkGray:      lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
}

// RenderScreen converts a Screen buffer to a styled string for display.
// Groups adjacent cells with the same color to minimize ANSI escape sequences.
func RenderScreen(s *core.Screen) string {
	var sb strings.Builder
	// Pre-allocate with extra space for ANSI codes
	sb.Grow(s.Width()*s.Height()*2 + s.Height())

	for y := range s.Height() {
		if y > 0 {
			sb.WriteRune('\n')
		}

		// Group consecutive cells with the same color for efficiency
		x := 0
		for x < s.Width() {
			cell := s.GetCell(x, y)
			startColor := cell.Color

			var run strings.Builder
			for x < s.Width() {
				cell = s.GetCell(x, y)
				if cell.Color != startColor {
					break
				}
				run.WriteRune(cell.Rune)
				x++
			}

			style, ok := colorStyles[startColor]
			if !ok {
				style = colorStyles[core.ColorDefault]
			}
			sb.WriteString(style.Render(run.String()))
		}
	}
	return sb.String()
}

// Board cells are two characters wide so they look square.
const cellWidth = 2

// Playfield dimensions on screen, including the frame.
const (
	fieldW = tetris.Width*cellWidth + 2
	fieldH = tetris.Height + 2
)

// playfield is everything needed to draw one board, local or mirrored.
type playfield struct {
	Title    string
	Board    tetris.Board
	Active   *tetris.Piece
	Position tetris.Point
	Landing  tetris.Point
	Ghost    bool  // draw the hard-drop landing outline
	Marker   bool  // active piece is only approximate (mirrored)
	Clearing []int // rows flashing before removal
	Frozen   bool  // nothing new will arrive
}

func fieldFromState(title string, st tetris.State) playfield {
	return playfield{
		Title:    title,
		Board:    st.Board,
		Active:   st.Active,
		Position: st.Position,
		Landing:  st.Landing,
		Ghost:    st.Active != nil,
		Clearing: st.ClearingRows,
	}
}

// fieldFromMirror draws a remote board. The snapshot carries only the kind
// and anchor of the falling piece, so it is drawn in spawn orientation as a
// marker.
func fieldFromMirror(title string, m replication.MirrorState) playfield {
	f := playfield{
		Title:  title,
		Board:  m.Snapshot.Board(),
		Frozen: m.Departed,
	}
	if k := m.Snapshot.Kind(); k.Valid() && m.Snapshot.Position != nil && !m.Snapshot.GameOver {
		p := tetris.NewPiece(k)
		f.Active = &p
		f.Position = tetris.Point{X: m.Snapshot.Position.X, Y: m.Snapshot.Position.Y}
		f.Marker = true
	}
	return f
}

func drawCell(s *core.Screen, x, y int, runes string, c core.Color) {
	for i, r := range []rune(runes) {
		s.SetCell(x+i, y, r, c)
	}
}

// drawPlayfield draws a framed board with its top-left corner at (x, y).
func drawPlayfield(s *core.Screen, x, y int, f playfield) {
	frame := core.ColorGray
	if f.Frozen {
		frame = core.ColorDarkGray
	}
	s.DrawBox(core.NewRect(x, y, fieldW, fieldH), frame)
	if f.Title != "" {
		s.DrawTextColored(x+2, y, " "+f.Title+" ", core.ColorBrightWhite)
	}

	clearing := make(map[int]bool, len(f.Clearing))
	for _, r := range f.Clearing {
		clearing[r] = true
	}

	for row := 0; row < tetris.Height; row++ {
		for col := 0; col < tetris.Width; col++ {
			sx, sy := x+1+col*cellWidth, y+1+row
			switch tag := f.Board[row][col]; {
			case clearing[row]:
				drawCell(s, sx, sy, "▓▓", core.ColorBrightWhite)
			case tag != "":
				c := core.ColorFromTag(tag)
				if f.Frozen {
					c = core.ColorGray
				}
				drawCell(s, sx, sy, "██", c)
			default:
				drawCell(s, sx, sy, " .", core.ColorDarkGray)
			}
		}
	}

	if f.Active == nil {
		return
	}
	cells := f.Active.Cells()
	color := core.ColorFromTag(f.Active.Kind.Color())
	if f.Ghost && f.Landing != f.Position {
		for _, c := range cells {
			p := f.Landing.Add(c)
			if p.Y >= 0 && p.Y < tetris.Height {
				drawCell(s, x+1+p.X*cellWidth, y+1+p.Y, "░░", core.ColorGray)
			}
		}
	}
	block := "██"
	if f.Marker {
		block = "▒▒"
	}
	for _, c := range cells {
		p := f.Position.Add(c)
		if p.X >= 0 && p.X < tetris.Width && p.Y >= 0 && p.Y < tetris.Height {
			drawCell(s, x+1+p.X*cellWidth, y+1+p.Y, block, color)
		}
	}
}

// drawPreview draws a small piece preview two rows tall.
func drawPreview(s *core.Screen, x, y int, k tetris.Kind, dim bool) {
	if !k.Valid() {
		return
	}
	color := core.ColorFromTag(k.Color())
	if dim {
		color = core.ColorGray
	}
	for _, c := range tetris.NewPiece(k).Cells() {
		if c.Y > 1 {
			continue
		}
		drawCell(s, x+c.X*cellWidth, y+c.Y, "██", color)
	}
}

// drawStats prints label/value lines starting at (x, y) and returns the next
// free row.
func drawStats(s *core.Screen, x, y int, lines [][2]string) int {
	for _, l := range lines {
		s.DrawTextColored(x, y, l[0], core.ColorGray)
		s.DrawTextColored(x+8, y, l[1], core.ColorBrightWhite)
		y++
	}
	return y
}

// formatClock renders a duration as m:ss.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// centerText centers text within given width.
func centerText(text string, width int) string {
	n := lipgloss.Width(text)
	if n >= width {
		return text
	}
	padding := (width - n) / 2
	return strings.Repeat(" ", padding) + text
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
