// Package curriculum holds the reusable subject and task catalog.
package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// subjectFile is the on-disk shape of one subject template.
type subjectFile struct {
	Name              string   `yaml:"name"`
	EstimatedTimeDays int      `yaml:"estimated_time_days"`
	MaxScore          int      `yaml:"max_score"`
	Tasks             []string `yaml:"tasks"`
}

// Loader loads and caches subject templates from the filesystem.
type Loader struct {
	rootDir  string
	subjects map[string]Subject // keyed by NormalizeName(name)
	mu       sync.RWMutex
}

// NewLoader creates a new catalog loader and loads all templates under rootDir.
// A missing rootDir yields an empty catalog.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:  rootDir,
		subjects: make(map[string]Subject),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "subjects", len(l.subjects), "path", rootDir)
	return l, nil
}

// GetSubject returns a template by name, compared case- and whitespace-insensitively.
func (l *Loader) GetSubject(name string) (Subject, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.subjects[NormalizeName(name)]
	return s, ok
}

// AllSubjects returns all loaded templates sorted by name.
func (l *Loader) AllSubjects() []Subject {
	l.mu.RLock()
	defer l.mu.RUnlock()
	subjects := make([]Subject, 0, len(l.subjects))
	for _, s := range l.subjects {
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool {
		return NormalizeName(subjects[i].Name) < NormalizeName(subjects[j].Name)
	})
	return subjects
}

// Seed creates every loaded template the writer does not already hold (matched
// by normalized name). It returns the number of templates created.
func (l *Loader) Seed(ctx context.Context, w CatalogWriter) (int, error) {
	existing, err := w.ListSubjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subjects: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		known[NormalizeName(s.Name)] = struct{}{}
	}

	created := 0
	for _, s := range l.AllSubjects() {
		if _, ok := known[NormalizeName(s.Name)]; ok {
			continue
		}
		if _, err := w.CreateSubject(ctx, s); err != nil {
			return created, fmt.Errorf("create subject %q: %w", s.Name, err)
		}
		created++
	}

	if created > 0 {
		slog.Info("catalog seeded", "created", created)
	}
	return created, nil
}

func (l *Loader) loadAll() error {
	if _, err := os.Stat(l.rootDir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadSubject(path)
		}
		return nil
	})
}

func (l *Loader) loadSubject(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Warn("skipping invalid subject YAML", "path", path, "error", err)
		return nil
	}
	if doc == nil {
		return nil // Empty file
	}
	if err := ValidateDocument(doc); err != nil {
		slog.Warn("skipping subject YAML", "path", path, "error", err)
		return nil
	}

	var f subjectFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid subject YAML", "path", path, "error", err)
		return nil
	}

	s := Subject{
		Name:              CleanName(f.Name),
		EstimatedTimeDays: f.EstimatedTimeDays,
		MaxScore:          f.MaxScore,
	}
	for i, name := range f.Tasks {
		s.Tasks = append(s.Tasks, Task{Name: CleanName(name), Position: i + 1})
	}
	if err := s.Validate(); err != nil {
		slog.Warn("skipping subject YAML", "path", path, "error", err)
		return nil
	}

	l.mu.Lock()
	l.subjects[NormalizeName(s.Name)] = s
	l.mu.Unlock()

	return nil
}
