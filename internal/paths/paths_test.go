package paths_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruminaider/editor-kit/internal/paths"
	"github.com/stretchr/testify/assert"
)

func TestHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(paths.HomeEnv, dir)
	assert.Equal(t, dir, paths.Home())
	assert.Equal(t, filepath.Join(dir, ".editor-kit.yaml"), paths.PreferencesFile())
}

func TestProject(t *testing.T) {
	assert.True(t, filepath.IsAbs(paths.Project()))
}

func TestDisplay(t *testing.T) {
	t.Setenv(paths.HomeEnv, "/home/dev")
	assert.Equal(t, filepath.Join("~", ".claude", "commands"), paths.Display("/home/dev/.claude/commands"))
	assert.Equal(t, "~", paths.Display("/home/dev"))
	assert.Equal(t, "/srv/app", paths.Display("/srv/app"))
	assert.Equal(t, "/home/developer", paths.Display("/home/developer"))
	assert.True(t, strings.HasPrefix(paths.Display("/home/dev/..x/y"), "~"))
}
