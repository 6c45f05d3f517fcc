// Package render builds the text pages and banners sent to XO Online clients.
package render

import (
	"github.com/fatih/color"
)

// Styler applies ANSI styling to rendered text.
// When disabled every method returns its input unstyled.
type Styler struct {
	title  *color.Color
	host   *color.Color
	banner *color.Color
	mine   *color.Color
	theirs *color.Color
	hint   *color.Color
}

// NewStyler creates a Styler. Color output is decided here rather than by
// inspecting the server's own stdout, since text is written to remote
// terminals.
func NewStyler(enabled bool) *Styler {
	s := &Styler{
		title:  color.New(color.Bold),
		host:   color.New(color.FgCyan),
		banner: color.New(color.FgYellow, color.Bold),
		mine:   color.New(color.FgGreen, color.Bold),
		theirs: color.New(color.FgRed),
		hint:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{s.title, s.host, s.banner, s.mine, s.theirs, s.hint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}
