package connection

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// StandardPaths returns the locations searched for the terminal executable
// when no path is configured. Entries containing '*' are glob patterns.
func StandardPaths(home string) []string {
	return []string{
		`C:\Program Files\MetaTrader 5\terminal64.exe`,
		`C:\Program Files (x86)\MetaTrader 5\terminal.exe`,
		filepath.Join(home, "AppData", "Roaming", "MetaQuotes", "Terminal", "*", "terminal64.exe"),
	}
}

// PathFinder locates the terminal executable.
type PathFinder struct {
	Paths  []string
	Glob   func(pattern string) ([]string, error)
	IsFile func(path string) bool
}

// NewPathFinder returns a finder over the standard paths of the current user.
func NewPathFinder() *PathFinder {
	home, _ := os.UserHomeDir()
	return &PathFinder{
		Paths:  StandardPaths(home),
		Glob:   glob,
		IsFile: isFile,
	}
}

func glob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern)
}

// Find returns the first existing terminal path, or "" to let the terminal
// discover its own installation.
func (f *PathFinder) Find() string {
	for _, path := range f.Paths {
		if strings.Contains(path, "*") {
			matches, err := f.Glob(path)
			if err == nil && len(matches) > 0 {
				return matches[0]
			}
			continue
		}
		if f.IsFile(path) {
			return path
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
