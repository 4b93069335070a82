// Package scaffold creates a starter audit workspace: audit.yml plus two
// example dataset files.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dyluth/auditor/internal/config"
	"github.com/dyluth/auditor/internal/dataset"
)

//go:embed templates/*
var templatesFS embed.FS

// DatasetDir holds the example dataset files, relative to the workspace.
const DatasetDir = "datasets"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

var templates = []struct {
	name string
	path string
}{
	{"audit.yml.tmpl", "audit.yml"},
	{"requirements.yml.tmpl", filepath.Join(DatasetDir, "requirements.yml")},
	{"implementation.yml.tmpl", filepath.Join(DatasetDir, "implementation.yml")},
}

// Initialize writes the starter files into dir. With force, existing files
// are overwritten; otherwise CheckExisting should be called first.
func Initialize(dir string, force bool) ([]string, error) {
	if force {
		if err := handleForce(dir); err != nil {
			return nil, err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(dir, DatasetDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", DatasetDir, err)
	}

	created := make([]string, 0, len(files))
	for _, file := range files {
		if err := os.WriteFile(filepath.Join(dir, file.Path), file.Content, file.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		created = append(created, file.Path)
	}

	if err := validateCreatedFiles(dir); err != nil {
		return nil, err
	}
	return created, nil
}

// handleForce removes files a previous init created.
func handleForce(dir string) error {
	for _, t := range templates {
		path := filepath.Join(dir, t.path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", t.path, err)
		}
	}
	return nil
}

func getTemplateFiles() ([]FileInfo, error) {
	files := make([]FileInfo, 0, len(templates))
	for _, t := range templates {
		content, err := templatesFS.ReadFile("templates/" + t.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", t.path, err)
		}
		files = append(files, FileInfo{Path: t.path, Content: content, Permissions: 0644})
	}
	return files, nil
}

// validateCreatedFiles loads the written files the way run and ingest will.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, "audit.yml")); err != nil {
		return fmt.Errorf("created audit.yml is invalid: %w", err)
	}
	for _, t := range templates[1:] {
		if _, err := dataset.Load(filepath.Join(dir, t.path)); err != nil {
			return fmt.Errorf("created %s is invalid: %w", t.path, err)
		}
	}
	return nil
}

// PrintSuccess prints the created files and next steps.
func PrintSuccess(w io.Writer, created []string) {
	fmt.Fprintln(w, "\n✅ Successfully initialized audit workspace!")
	fmt.Fprintln(w, "\nCreated:")
	for _, path := range created {
		fmt.Fprintf(w, "  ✓ %s\n", path)
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Set the provider API key (XAI_API_KEY by default) and adjust audit.yml")
	fmt.Fprintln(w, "  2. Replace the example datasets with your requirements and implementation")
	fmt.Fprintln(w, "  3. auditor ingest --run my-audit --dataset1 datasets/requirements.yml --dataset2 datasets/implementation.yml")
	fmt.Fprintln(w, "  4. auditor run --run my-audit")
}
