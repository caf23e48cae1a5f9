package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the home directory, for tests and sandboxed runs.
const HomeEnv = "EDITOR_KIT_HOME"

// Home returns the user's home directory.
func Home() string {
	if h := os.Getenv(HomeEnv); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// Project returns the directory project-scope installs are rooted at.
func Project() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// PreferencesFile returns ~/.editor-kit.yaml.
func PreferencesFile() string {
	return filepath.Join(Home(), ".editor-kit.yaml")
}

// Display shortens path for output by replacing the home directory with ~.
func Display(path string) string {
	home := Home()
	if home == "" {
		return path
	}
	rel, err := filepath.Rel(home, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	if rel == "." {
		return "~"
	}
	return filepath.Join("~", rel)
}
