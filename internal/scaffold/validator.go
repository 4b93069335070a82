package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckExisting returns an error naming any starter file already in dir.
func CheckExisting(dir string) error {
	var existing []string
	for _, t := range templates {
		if _, err := os.Stat(filepath.Join(dir, t.path)); err == nil {
			existing = append(existing, t.path)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("workspace already initialized\n\nFound existing")
	if len(existing) == 1 {
		fmt.Fprintf(&b, ": %s\n", existing[0])
	} else {
		b.WriteString(" files:\n")
		for _, file := range existing {
			fmt.Fprintf(&b, "  - %s\n", file)
		}
	}
	b.WriteString("\nUse 'auditor init --force' to reinitialize (this will overwrite existing files)")
	return fmt.Errorf("%s", b.String())
}
