package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	KeyLit   rune // ■ key indicator on
	KeyDark  rune // □ key indicator off
	Sounding rune // ● pitch currently held by the pool
	Beat     rune // ▶ current beat of the cycle
	NoBeat   rune // · other beats
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			KeyLit:   '■',
			KeyDark:  '□',
			Sounding: '●',
			Beat:     '▶',
			NoBeat:   '·',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.35
	RoleFG      = 0.5
	RoleAccent  = 0.65
	RoleActive  = 0.8
	RoleWarning = 1.0
)

func (t *Theme) BG() lipgloss.Color { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color { return t.Color(RoleFG) }
func (t *Theme) Muted() lipgloss.Color { return t.Color(RoleMuted) }
func (t *Theme) Accent() lipgloss.Color { return t.Color(RoleAccent) }
func (t *Theme) Active() lipgloss.Color { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }

// Color returns the lipgloss colour for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Hex(t.Palette.Lookup(norm))
}

// Key renders one indicator cell
func (t *Theme) Key(on bool) string {
	if on {
		return lipgloss.NewStyle().Foreground(t.Active()).Bold(true).Render(string(t.Symbols.KeyLit))
	}
	return lipgloss.NewStyle().Foreground(t.Muted()).Render(string(t.Symbols.KeyDark))
}

// Label renders a mode label, highlighted when on
func (t *Theme) Label(text string, on bool) string {
	if on {
		return lipgloss.NewStyle().Foreground(t.Accent()).Bold(true).Render(text)
	}
	return lipgloss.NewStyle().Foreground(t.Muted()).Render(text)
}

// Hex formats a colour as a lipgloss hex colour
func Hex(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
