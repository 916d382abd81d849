package curriculum

import (
	"context"
	"fmt"
	"strings"
)

// Subject is a reusable catalog template describing a unit of training.
type Subject struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	EstimatedTimeDays int    `json:"estimated_time_days"`
	MaxScore          int    `json:"max_score"`
	Tasks             []Task `json:"tasks,omitempty"`
}

// Task is a checklist item. Templates have an empty CourseSubjectID; instances
// copied onto a course subject carry it.
type Task struct {
	ID              string `json:"id"`
	SubjectID       string `json:"subject_id"`
	CourseSubjectID string `json:"course_subject_id,omitempty"`
	Name            string `json:"name"`
	Position        int    `json:"position"`
}

// CatalogWriter is the part of the persistence layer the loader seeds into.
type CatalogWriter interface {
	ListSubjects(ctx context.Context) ([]Subject, error)
	CreateSubject(ctx context.Context, s Subject) (Subject, error)
}

// Validate checks the template fields that do not need persistence.
func (s Subject) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("subject name is required")
	}
	if s.EstimatedTimeDays < 0 {
		return fmt.Errorf("estimated_time_days must be non-negative, got %d", s.EstimatedTimeDays)
	}
	if s.MaxScore < 0 {
		return fmt.Errorf("max_score must be non-negative, got %d", s.MaxScore)
	}
	names := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		names = append(names, t.Name)
	}
	if dup, ok := FirstDuplicate(names); ok {
		return fmt.Errorf("duplicate task name %q", dup)
	}
	for _, n := range names {
		if NormalizeName(n) == "" {
			return fmt.Errorf("task name is required")
		}
	}
	return nil
}

// TaskNames returns the task names in position order.
func (s Subject) TaskNames() []string {
	out := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, t.Name)
	}
	return out
}
