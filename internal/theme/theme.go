// Package theme holds the visual configuration shared by every view: the
// palette, gradients and component styles. It has no behaviour beyond
// rendering helpers.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Shade is a main colour with its lighter and darker variants.
type Shade struct {
	Main    lipgloss.Color
	Light   lipgloss.Color
	Dark    lipgloss.Color
	Lighter lipgloss.Color
}

// Palette lists every colour the client uses.
type Palette struct {
	Primary    Shade
	Secondary  Shade
	Success    Shade
	Warning    Shade
	Info       Shade
	Error      Shade
	Background lipgloss.Color
	Paper      lipgloss.Color
	Text       lipgloss.Color
	Muted      lipgloss.Color
}

// GradientStops is a two colour linear gradient.
type GradientStops struct {
	From string
	To   string
}

// Gradients are used for banners and highlighted controls.
type Gradients struct {
	Brand   GradientStops
	Primary GradientStops
	Hover   GradientStops
	Success GradientStops
	Warning GradientStops
}

// Theme is the complete visual configuration.
type Theme struct {
	Palette   Palette
	Gradients Gradients
	Border    lipgloss.Border
	Styles    Styles
}

// Styles are the component level styles derived from the palette.
type Styles struct {
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Paper      lipgloss.Style
	Button     lipgloss.Style
	Contained  lipgloss.Style
	Chip       lipgloss.Style
	ChipFocus  lipgloss.Style
	Selected   lipgloss.Style
	Muted      lipgloss.Style
	Done       lipgloss.Style
	Label      lipgloss.Style
	Input      lipgloss.Style
	InputFocus lipgloss.Style
	Toast      map[Level]lipgloss.Style
	Help       lipgloss.Style
}

// Level is a notification severity.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Default is the client's theme.
var Default = New()

// New builds the theme from the brand palette.
func New() Theme {
	p := Palette{
		Primary:    Shade{Main: "#4A90E2", Light: "#A4C8E1", Dark: "#003D66"},
		Secondary:  Shade{Main: "#F39C12", Light: "#F6B93B", Dark: "#C67A00"},
		Success:    Shade{Main: "#10B981", Lighter: "#ECFDF5"},
		Warning:    Shade{Main: "#F59E0B", Lighter: "#FEF3C7"},
		Info:       Shade{Main: "#3B82F6", Lighter: "#EFF6FF"},
		Error:      Shade{Main: "#EF4444", Lighter: "#FEE2E2"},
		Background: "#F4F6F8",
		Paper:      "#FFFFFF",
		Text:       "#1E293B",
		Muted:      "#94A3B8",
	}
	g := Gradients{
		Brand:   GradientStops{From: "#4A90E2", To: "#F39C12"},
		Primary: GradientStops{From: "#2563EB", To: "#60A5FA"},
		Hover:   GradientStops{From: "#1E40AF", To: "#3B82F6"},
		Success: GradientStops{From: "#059669", To: "#10B981"},
		Warning: GradientStops{From: "#D97706", To: "#F59E0B"},
	}

	t := Theme{Palette: p, Gradients: g, Border: lipgloss.RoundedBorder()}
	t.Styles = newStyles(p, t.Border)
	return t
}

func newStyles(p Palette, border lipgloss.Border) Styles {
	toast := func(s Shade) lipgloss.Style {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(s.Main).
			Bold(true).
			Padding(0, 1)
	}

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(p.Primary.Dark),
		Subtitle: lipgloss.NewStyle().Foreground(p.Muted),
		Paper: lipgloss.NewStyle().
			Border(border).
			BorderForeground(p.Primary.Light).
			Padding(0, 1),
		Button: lipgloss.NewStyle().
			Foreground(p.Primary.Main).
			Padding(0, 1),
		Contained: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(p.Primary.Main).
			Bold(true).
			Padding(0, 2),
		Chip: lipgloss.NewStyle().
			Foreground(p.Secondary.Dark).
			Border(border).
			BorderForeground(p.Secondary.Light).
			Padding(0, 1),
		ChipFocus: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(p.Secondary.Main).
			Border(border).
			BorderForeground(p.Secondary.Dark).
			Bold(true).
			Padding(0, 1),
		Selected:   lipgloss.NewStyle().Foreground(p.Primary.Main).Bold(true),
		Muted:      lipgloss.NewStyle().Foreground(p.Muted),
		Done:       lipgloss.NewStyle().Foreground(p.Success.Main).Strikethrough(true),
		Label:      lipgloss.NewStyle().Foreground(p.Primary.Dark).Bold(true),
		Input:      lipgloss.NewStyle().Border(border).BorderForeground(p.Muted).Padding(0, 1),
		InputFocus: lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("#60A5FA")).Padding(0, 1),
		Toast: map[Level]lipgloss.Style{
			LevelInfo:    toast(p.Info),
			LevelSuccess: toast(p.Success),
			LevelWarning: toast(p.Warning),
			LevelError:   toast(p.Error),
		},
		Help: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Gradient colours text rune by rune from stops.From to stops.To, blending
// in Lab space. Invalid hex stops render the text unstyled.
func Gradient(text string, stops GradientStops, bold bool) string {
	from, err := colorful.Hex(stops.From)
	if err != nil {
		return text
	}
	to, err := colorful.Hex(stops.To)
	if err != nil {
		return text
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range runes {
		frac := 0.0
		if len(runes) > 1 {
			frac = float64(i) / float64(len(runes)-1)
		}
		c := from.BlendLab(to, frac).Clamped()
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Hex())).
			Bold(bold).
			Render(string(r)))
	}
	return b.String()
}

// Bar renders a full-width banner whose background runs along stops.
func Bar(text string, width int, stops GradientStops) string {
	from, err := colorful.Hex(stops.From)
	if err != nil {
		return text
	}
	to, err := colorful.Hex(stops.To)
	if err != nil {
		return text
	}

	runes := []rune(text)
	if width < len(runes) {
		width = len(runes)
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		frac := 0.0
		if width > 1 {
			frac = float64(i) / float64(width-1)
		}
		ch := " "
		if i < len(runes) {
			ch = string(runes[i])
		}
		c := from.BlendLab(to, frac).Clamped()
		b.WriteString(lipgloss.NewStyle().
			Background(lipgloss.Color(c.Hex())).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Render(ch))
	}
	return b.String()
}
