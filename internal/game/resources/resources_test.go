package resources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "\x1b[2J\x1b[H", s.ClearScreen)
	assert.True(t, strings.HasPrefix(s.MainMenu, "Welcome to XO Online!\n\n1)\tView Active Games"))
	assert.NotEmpty(t, s.Waiting)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	want, err := Default()
	require.NoError(t, err)
	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("waiting: \"Hang on...\"\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Hang on...", s.Waiting)
	assert.Equal(t, "\x1b[2J\x1b[H", s.ClearScreen)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsBlankOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name_prompt: \"  \"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name_prompt must not be empty")
}

func TestValidate_LongLine(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	s.ListFooter = strings.Repeat("x", 255)
	err = s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list_footer")
}
