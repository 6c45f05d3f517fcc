package render

import (
	"fmt"
	"strings"
)

// bannerPrefix precedes the opponent's name in the game banner.
const bannerPrefix = "You are playing against "

// GameLine is one open session on the games page.
type GameLine struct {
	ID      int32
	Host    string
	Players int
}

// Header returns the pluralised games page heading.
//
// Postcondition: "There is 1 game" for one; "There are N games" otherwise.
func Header(count int) string {
	if count == 1 {
		return "There is 1 game"
	}
	return fmt.Sprintf("There are %d games", count)
}

// GamesPage renders the open-games page, one element per line.
func (s *Styler) GamesPage(games []GameLine, footer string) []string {
	lines := make([]string, 0, len(games)+4)
	lines = append(lines, s.title.Sprint(Header(len(games))), "")
	for i, g := range games {
		lines = append(lines, fmt.Sprintf("%d)\t%s's game (%d/2)", i+1, s.host.Sprint(g.Host), g.Players))
	}
	if footer != "" {
		if len(games) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, s.hint.Sprint(footer))
	}
	return lines
}

// Banner renders the versus banner shown to a player when a game starts.
// Its rules are as wide as the banner line would be for the longer of the
// two names, so both players see the same frame width.
func (s *Styler) Banner(self, opponent string) []string {
	width := len(bannerPrefix) + max(len([]rune(self)), len([]rune(opponent)))
	rule := s.banner.Sprint(strings.Repeat("=", width))
	return []string{rule, s.banner.Sprint(bannerPrefix + opponent), rule}
}

// TurnLine tells a player whether they hold the move.
func (s *Styler) TurnLine(yours bool) string {
	if yours {
		return s.mine.Sprint("Your turn")
	}
	return s.theirs.Sprint("Their turn")
}

// Menu styles a multi-line block, bolding its first line.
func (s *Styler) Menu(text string) []string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > 0 && lines[0] != "" {
		lines[0] = s.title.Sprint(lines[0])
	}
	return lines
}

// Hint styles a single dim help line.
func (s *Styler) Hint(text string) string {
	return s.hint.Sprint(text)
}
