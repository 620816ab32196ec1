package core

// Color represents a foreground color for a screen cell.
// Values map to ANSI 256-color codes in the platform layer.
type Color uint8

// Predefined colors. Tetromino kinds use the bright variants.
const (
	ColorDefault Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightMagenta
	ColorBrightCyan
	ColorBrightWhite
	ColorOrange
	ColorGray
	ColorDarkGray
)

// hexColors maps the color tags used on the wire to terminal colors.
var hexColors = map[string]Color{
	"#00f0f0": ColorBrightCyan,
	"#f0f000": ColorBrightYellow,
	"#a000f0": ColorBrightMagenta,
	"#00f000": ColorBrightGreen,
	"#f00000": ColorBrightRed,
	"#0000f0": ColorBrightBlue,
	"#f0a000": ColorOrange,
}

// ColorFromTag converts a block color tag such as "#00f0f0" to a Color.
// Unknown tags render as white so foreign snapshots stay visible.
func ColorFromTag(tag string) Color {
	if c, ok := hexColors[tag]; ok {
		return c
	}
	if tag == "" {
		return ColorDefault
	}
	return ColorWhite
}
