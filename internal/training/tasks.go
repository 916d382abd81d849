package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/curriculum"
)

// AddTask appends a task to a course subject. Every trainee already enrolled in
// the course gets a NOT_DONE row for it.
func (s *Service) AddTask(ctx context.Context, courseSubjectID, name string) (curriculum.Task, error) {
	if curriculum.NormalizeName(name) == "" {
		return curriculum.Task{}, &ValidationError{Field: "name", Message: "must not be empty"}
	}

	cs, err := s.store.GetCourseSubject(ctx, courseSubjectID)
	if err != nil {
		return curriculum.Task{}, fmt.Errorf("get course subject: %w", err)
	}
	if err := checkTaskName(cs.Tasks, "", name); err != nil {
		return curriculum.Task{}, err
	}

	task, err := s.store.AddTask(ctx, courseSubjectID, name)
	if err != nil {
		return curriculum.Task{}, fmt.Errorf("add task: %w", err)
	}

	s.emit(Event{
		CourseID:  cs.CourseID,
		EventType: EventTaskAdded,
		Data: map[string]any{
			"course_subject_id": cs.ID,
			"task_id":           task.ID,
			"name":              task.Name,
		},
	})
	return task, nil
}

// RenameTask renames a task; the new name must not collide with another task
// of the same course subject.
func (s *Service) RenameTask(ctx context.Context, taskID, name string) (curriculum.Task, error) {
	if curriculum.NormalizeName(name) == "" {
		return curriculum.Task{}, &ValidationError{Field: "name", Message: "must not be empty"}
	}

	task, cs, err := s.taskWithOwner(ctx, taskID)
	if err != nil {
		return curriculum.Task{}, err
	}
	if err := checkTaskName(cs.Tasks, task.ID, name); err != nil {
		return curriculum.Task{}, err
	}

	renamed, err := s.store.RenameTask(ctx, taskID, name)
	if err != nil {
		return curriculum.Task{}, fmt.Errorf("rename task: %w", err)
	}

	s.emit(Event{
		CourseID:  cs.CourseID,
		EventType: EventTaskRenamed,
		Data:      map[string]any{"task_id": taskID, "name": renamed.Name},
	})
	return renamed, nil
}

// DeleteTask removes a task and every trainee status row for it once confirmed.
func (s *Service) DeleteTask(ctx context.Context, taskID string, confirm Confirm) error {
	task, cs, err := s.taskWithOwner(ctx, taskID)
	if err != nil {
		return err
	}
	if !confirm.ask(ctx, Prompt{Action: ActionDeleteTask, TargetID: task.ID, Name: task.Name}) {
		return ErrNotConfirmed
	}

	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	s.emit(Event{
		CourseID:  cs.CourseID,
		EventType: EventTaskDeleted,
		Data:      map[string]any{"task_id": taskID, "course_subject_id": cs.ID},
	})
	return nil
}

// ToggleTask flips a trainee's status on one task and returns the new status.
func (s *Service) ToggleTask(ctx context.Context, taskID, traineeID string) (TaskStatus, error) {
	if strings.TrimSpace(traineeID) == "" {
		return "", &ValidationError{Field: "trainee_id", Message: "is required"}
	}
	task, cs, err := s.taskWithOwner(ctx, taskID)
	if err != nil {
		return "", err
	}

	p, err := s.store.FetchProgress(ctx, cs.ID, traineeID)
	if err != nil {
		return "", fmt.Errorf("fetch progress: %w", err)
	}
	current := TaskNotDone
	for _, t := range p.Tasks {
		if t.TaskID == task.ID {
			current = t.Status
			break
		}
	}

	next := current.Flip()
	if err := s.setTaskStatus(ctx, cs, taskID, traineeID, next); err != nil {
		return "", err
	}
	return next, nil
}

// SetTaskStatus sets a trainee's status on one task explicitly.
func (s *Service) SetTaskStatus(ctx context.Context, taskID, traineeID string, status TaskStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown task status %q", status)}
	}
	if strings.TrimSpace(traineeID) == "" {
		return &ValidationError{Field: "trainee_id", Message: "is required"}
	}
	_, cs, err := s.taskWithOwner(ctx, taskID)
	if err != nil {
		return err
	}
	return s.setTaskStatus(ctx, cs, taskID, traineeID, status)
}

func (s *Service) setTaskStatus(ctx context.Context, cs CourseSubject, taskID, traineeID string, status TaskStatus) error {
	if err := s.store.SetTaskStatus(ctx, taskID, traineeID, status); err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	s.emit(Event{
		CourseID:  cs.CourseID,
		TraineeID: traineeID,
		EventType: EventTaskStatusChanged,
		Data:      map[string]any{"task_id": taskID, "status": string(status)},
	})
	return nil
}

// Enroll adds a trainee to a course. Existing tasks get NOT_DONE rows for the
// trainee. Enrolling twice is a no-op.
func (s *Service) Enroll(ctx context.Context, courseID, traineeID string) error {
	if strings.TrimSpace(courseID) == "" {
		return &ValidationError{Field: "course_id", Message: "is required"}
	}
	if strings.TrimSpace(traineeID) == "" {
		return &ValidationError{Field: "trainee_id", Message: "is required"}
	}

	created, err := s.store.Enroll(ctx, courseID, traineeID)
	if err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	if created {
		s.emit(Event{CourseID: courseID, TraineeID: traineeID, EventType: EventTraineeEnrolled})
	}
	return nil
}

// Enrolled lists the trainees of a course.
func (s *Service) Enrolled(ctx context.Context, courseID string) ([]string, error) {
	return s.store.ListEnrolled(ctx, courseID)
}

func (s *Service) taskWithOwner(ctx context.Context, taskID string) (curriculum.Task, CourseSubject, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return curriculum.Task{}, CourseSubject{}, fmt.Errorf("get task: %w", err)
	}
	cs, err := s.store.GetCourseSubject(ctx, task.CourseSubjectID)
	if err != nil {
		return curriculum.Task{}, CourseSubject{}, fmt.Errorf("get course subject: %w", err)
	}
	return task, cs, nil
}

// checkTaskName rejects name when it collides with a task other than exceptID.
func checkTaskName(tasks []curriculum.Task, exceptID, name string) error {
	for _, t := range tasks {
		if t.ID != exceptID && curriculum.SameName(t.Name, name) {
			return &DuplicateTaskNameError{Name: name}
		}
	}
	return nil
}
