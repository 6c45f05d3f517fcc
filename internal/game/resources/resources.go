// Package resources provides the display strings sent to clients.
package resources

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxLine is the longest line a String message can carry.
const maxLine = 254

//go:embed strings.yaml
var defaultStrings []byte

// Strings is the table of client-facing text.
type Strings struct {
	ClearScreen  string `yaml:"clear_screen"`
	NamePrompt   string `yaml:"name_prompt"`
	NameRejected string `yaml:"name_rejected"`
	MainMenu     string `yaml:"main_menu"`
	ListFooter   string `yaml:"list_footer"`
	Waiting      string `yaml:"waiting"`
	GameOver     string `yaml:"game_over"`
}

// Default returns the embedded string table.
//
// Postcondition: Returns a validated table or an error if the embedded file
// is malformed.
func Default() (*Strings, error) {
	var s Strings
	if err := yaml.Unmarshal(defaultStrings, &s); err != nil {
		return nil, fmt.Errorf("parsing embedded strings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("embedded strings: %w", err)
	}
	return &s, nil
}

// Load returns the embedded table with any keys in path applied on top.
// An empty path returns the embedded table unchanged.
func Load(path string) (*Strings, error) {
	s, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing strings file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("strings file %s: %w", path, err)
	}
	return s, nil
}

// Validate checks that every entry is present and every line fits in one
// String message.
func (s *Strings) Validate() error {
	fields := []struct {
		key, value string
	}{
		{"clear_screen", s.ClearScreen},
		{"name_prompt", s.NamePrompt},
		{"name_rejected", s.NameRejected},
		{"main_menu", s.MainMenu},
		{"list_footer", s.ListFooter},
		{"waiting", s.Waiting},
		{"game_over", s.GameOver},
	}
	var errs []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Sprintf("%s must not be empty", f.key))
			continue
		}
		for _, line := range strings.Split(f.value, "\n") {
			if len(line) > maxLine {
				errs = append(errs, fmt.Sprintf("%s has a line longer than %d bytes", f.key, maxLine))
				break
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
