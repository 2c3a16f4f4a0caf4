// Package service implements the application services wiring the analysis
// daemon adapter to the HTTP and WebSocket surfaces.
package service

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/codika/dartbridge/internal/adapter/lsp"
	"github.com/codika/dartbridge/internal/config"
)

// WorkspaceInfo describes the workspace a session is bound to.
type WorkspaceInfo struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	SDKConstraint   string `json:"sdk_constraint,omitempty"`
	Root            string `json:"root"`
	DartFiles       int    `json:"dart_files"`
	HasLib          bool   `json:"has_lib"`
	HasTest         bool   `json:"has_test"`
	Dependencies    int    `json:"dependencies"`
	DevDependencies int    `json:"dev_dependencies"`
}

// ValidationResult is the outcome of a workspace sanity check.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// pubspec is the subset of pubspec.yaml the service reads.
type pubspec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Environment struct {
		SDK string `yaml:"sdk"`
	} `yaml:"environment"`
	Dependencies    map[string]any `yaml:"dependencies"`
	DevDependencies map[string]any `yaml:"dev_dependencies"`
}

// WorkspaceService enumerates and describes the Dart workspace on disk.
type WorkspaceService struct {
	root    string
	exclude []string
}

// NewWorkspaceService creates a workspace service for the configured root.
func NewWorkspaceService(cfg config.Workspace) *WorkspaceService {
	return &WorkspaceService{root: cfg.Root, exclude: cfg.ExcludeGlobs}
}

// Root returns the workspace root path.
func (s *WorkspaceService) Root() string {
	return s.root
}

// excluded reports whether a root-relative slash path matches any exclude
// glob.
func (s *WorkspaceService) excluded(rel string) bool {
	for _, g := range s.exclude {
		if g == "" {
			continue
		}
		ok, err := doublestar.Match(g, rel)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// ListDartFiles walks the workspace and returns root-relative paths of all
// Dart sources, skipping excluded directories and generated files. The
// result is sorted for stable analysis ordering.
func (s *WorkspaceService) ListDartFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == s.root {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if s.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == ".dart" {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list dart files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Info reads pubspec.yaml and the top-level layout. A missing or broken
// pubspec is reported as an error; the workspace is not a Dart package
// without one.
func (s *WorkspaceService) Info() (*WorkspaceInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.root, "pubspec.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read pubspec: %w", err)
	}
	var ps pubspec
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("parse pubspec: %w", err)
	}

	files, err := s.ListDartFiles()
	if err != nil {
		return nil, err
	}

	return &WorkspaceInfo{
		Name:            ps.Name,
		Description:     ps.Description,
		SDKConstraint:   ps.Environment.SDK,
		Root:            s.root,
		DartFiles:       len(files),
		HasLib:          s.dirExists("lib"),
		HasTest:         s.dirExists("test"),
		Dependencies:    len(ps.Dependencies),
		DevDependencies: len(ps.DevDependencies),
	}, nil
}

// Validate checks that the workspace looks like a Dart package and that the
// analyzer session is usable.
func (s *WorkspaceService) Validate(sessionState lsp.State) ValidationResult {
	var problems []string

	if _, err := os.Stat(s.root); err != nil {
		problems = append(problems, fmt.Sprintf("workspace root %s does not exist", s.root))
	} else {
		if _, err := os.Stat(filepath.Join(s.root, "pubspec.yaml")); err != nil {
			problems = append(problems, "pubspec.yaml not found")
		}
		if !s.dirExists("lib") {
			problems = append(problems, "lib/ directory not found")
		}
	}
	if sessionState == lsp.StateClosed {
		problems = append(problems, "analyzer session is closed")
	}

	return ValidationResult{Valid: len(problems) == 0, Problems: problems}
}

func (s *WorkspaceService) dirExists(name string) bool {
	info, err := os.Stat(filepath.Join(s.root, name))
	return err == nil && info.IsDir()
}
