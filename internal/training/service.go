package training

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/curriculum"
)

// Confirmation actions passed to a Confirm hook.
const (
	ActionRemoveSubject    = "remove_subject"
	ActionDeleteTask       = "delete_task"
	ActionFinishIncomplete = "finish_incomplete"
)

// Prompt describes an irreversible action awaiting confirmation.
type Prompt struct {
	Action   string
	TargetID string
	Name     string
	// Pending is the number of unfinished tasks for ActionFinishIncomplete.
	Pending int
}

// Confirm asks the initiating actor to confirm an action. A nil Confirm
// declines.
type Confirm func(ctx context.Context, p Prompt) bool

// AlwaysConfirm accepts every prompt.
func AlwaysConfirm(context.Context, Prompt) bool { return true }

// NeverConfirm declines every prompt.
func NeverConfirm(context.Context, Prompt) bool { return false }

func (c Confirm) ask(ctx context.Context, p Prompt) bool {
	if c == nil {
		return false
	}
	return c(ctx, p)
}

// Config holds dependencies for the training service.
type Config struct {
	Store  Store
	Events EventLogger
	Now    func() time.Time
}

// Service is the curriculum and progress core.
type Service struct {
	store  Store
	events EventLogger
	now    func() time.Time
}

// NewService creates a new training service.
func NewService(cfg Config) *Service {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		events: events,
		now:    now,
	}
}

// Store returns the underlying persistence collaborator.
func (s *Service) Store() Store {
	return s.store
}

// Subjects lists the catalog templates.
func (s *Service) Subjects(ctx context.Context) ([]curriculum.Subject, error) {
	return s.store.ListSubjects(ctx)
}

// Curriculum returns a course's subjects in display order.
func (s *Service) Curriculum(ctx context.Context, courseID string) ([]CourseSubject, error) {
	list, err := s.store.FetchCurriculum(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch curriculum: %w", err)
	}
	SortCurriculum(list)
	return list, nil
}

// AddSubject attaches a subject at the end of a course's curriculum. Without a
// SubjectID the catalog template with the same normalized name is reused, or
// created from the definition when there is none.
func (s *Service) AddSubject(ctx context.Context, courseID string, def SubjectDefinition) (CourseSubject, error) {
	if strings.TrimSpace(courseID) == "" {
		return CourseSubject{}, &ValidationError{Field: "course_id", Message: "is required"}
	}
	if err := checkDateRange("planned dates", def.PlannedStartDate, def.PlannedFinishDate); err != nil {
		return CourseSubject{}, err
	}

	subjectID := def.SubjectID
	if subjectID == "" {
		tmpl, err := templateFromDefinition(def)
		if err != nil {
			return CourseSubject{}, err
		}
		existing, ok, err := s.findSubject(ctx, tmpl.Name)
		if err != nil {
			return CourseSubject{}, err
		}
		if ok {
			subjectID = existing.ID
		} else {
			created, err := s.store.CreateSubject(ctx, tmpl)
			if err != nil {
				return CourseSubject{}, fmt.Errorf("create subject: %w", err)
			}
			subjectID = created.ID
			slog.Info("catalog subject created", "subject_id", subjectID, "name", created.Name)
		}
	}

	cs, err := s.store.AttachSubject(ctx, NewCourseSubject{
		CourseID:          courseID,
		SubjectID:         subjectID,
		PlannedStartDate:  DayPtr(def.PlannedStartDate),
		PlannedFinishDate: DayPtr(def.PlannedFinishDate),
	})
	if err != nil {
		return CourseSubject{}, fmt.Errorf("attach subject: %w", err)
	}

	s.emit(Event{
		CourseID:  courseID,
		EventType: EventSubjectAdded,
		Data: map[string]any{
			"course_subject_id": cs.ID,
			"subject_id":        cs.SubjectID,
			"position":          cs.Position,
		},
	})
	return cs, nil
}

// RemoveSubject deletes a course subject with its tasks and trainee rows once
// confirmed. Remaining positions are not renumbered.
func (s *Service) RemoveSubject(ctx context.Context, courseSubjectID string, confirm Confirm) error {
	cs, err := s.store.GetCourseSubject(ctx, courseSubjectID)
	if err != nil {
		return fmt.Errorf("get course subject: %w", err)
	}
	if !confirm.ask(ctx, Prompt{Action: ActionRemoveSubject, TargetID: cs.ID, Name: cs.Subject.Name}) {
		return ErrNotConfirmed
	}

	if err := s.store.RemoveCourseSubject(ctx, courseSubjectID); err != nil {
		return fmt.Errorf("remove course subject: %w", err)
	}

	s.emit(Event{
		CourseID:  cs.CourseID,
		EventType: EventSubjectRemoved,
		Data:      map[string]any{"course_subject_id": cs.ID},
	})
	return nil
}

// UpdateFields edits the name (on the catalog template), estimated duration
// and planned dates of a course subject.
func (s *Service) UpdateFields(ctx context.Context, courseSubjectID string, patch CourseSubjectPatch) (CourseSubject, error) {
	if patch.Name != nil && curriculum.NormalizeName(*patch.Name) == "" {
		return CourseSubject{}, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if patch.EstimatedTimeDays != nil && *patch.EstimatedTimeDays < 0 {
		return CourseSubject{}, &ValidationError{Field: "estimated_time_days", Message: "must be non-negative"}
	}
	if patch.PlannedStartDate != nil && patch.ClearPlannedStartDate {
		return CourseSubject{}, &ValidationError{Field: "planned_start_date", Message: "cannot be set and cleared at once"}
	}
	if patch.PlannedFinishDate != nil && patch.ClearPlannedFinishDate {
		return CourseSubject{}, &ValidationError{Field: "planned_finish_date", Message: "cannot be set and cleared at once"}
	}

	cs, err := s.store.GetCourseSubject(ctx, courseSubjectID)
	if err != nil {
		return CourseSubject{}, fmt.Errorf("get course subject: %w", err)
	}
	start, finish := patch.Dates(cs.PlannedStartDate, cs.PlannedFinishDate)
	if err := checkDateRange("planned dates", start, finish); err != nil {
		return CourseSubject{}, err
	}

	updated, err := s.store.UpdateCourseSubject(ctx, courseSubjectID, patch)
	if err != nil {
		return CourseSubject{}, fmt.Errorf("update course subject: %w", err)
	}

	s.emit(Event{
		CourseID:  updated.CourseID,
		EventType: EventSubjectUpdated,
		Data:      map[string]any{"course_subject_id": updated.ID},
	})
	return updated, nil
}

// findSubject returns the catalog template whose name matches under
// curriculum.NormalizeName, the identity the catalog seeder also uses.
func (s *Service) findSubject(ctx context.Context, name string) (curriculum.Subject, bool, error) {
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return curriculum.Subject{}, false, fmt.Errorf("list subjects: %w", err)
	}
	for _, subj := range subjects {
		if curriculum.SameName(subj.Name, name) {
			return subj, true, nil
		}
	}
	return curriculum.Subject{}, false, nil
}

func templateFromDefinition(def SubjectDefinition) (curriculum.Subject, error) {
	if dup, ok := curriculum.FirstDuplicate(def.Tasks); ok {
		return curriculum.Subject{}, &DuplicateTaskNameError{Name: dup}
	}
	tmpl := curriculum.Subject{
		Name:              curriculum.CleanName(def.Name),
		EstimatedTimeDays: def.EstimatedTimeDays,
		MaxScore:          def.MaxScore,
	}
	for i, name := range def.Tasks {
		tmpl.Tasks = append(tmpl.Tasks, curriculum.Task{Name: curriculum.CleanName(name), Position: i + 1})
	}
	if err := tmpl.Validate(); err != nil {
		return curriculum.Subject{}, &ValidationError{Field: "subject", Message: err.Error()}
	}
	return tmpl, nil
}

// emit logs an event; failures are logged and never fail the mutation.
func (s *Service) emit(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if err := s.events.LogEvent(event); err != nil {
		slog.Warn("failed to log event",
			"type", event.EventType,
			"course_id", event.CourseID,
			"error", err,
		)
	}
}
