package training

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FinishRequest is a trainee's self-reported completion of a course subject.
type FinishRequest struct {
	CourseSubjectID string
	TraineeID       string
	ActualStart     *time.Time
	ActualEnd       *time.Time
}

// Progress returns a trainee's progress on a course subject with the derived
// status and completion percentage. The record is created on first read.
func (s *Service) Progress(ctx context.Context, courseSubjectID, traineeID string) (ProgressView, error) {
	if strings.TrimSpace(traineeID) == "" {
		return ProgressView{}, &ValidationError{Field: "trainee_id", Message: "is required"}
	}
	cs, p, err := s.load(ctx, courseSubjectID, traineeID)
	if err != nil {
		return ProgressView{}, err
	}
	return BuildView(s.now(), cs, p), nil
}

// TraineeFinish records the trainee's actual start and end dates. When some
// tasks are not DONE the confirm hook must accept, otherwise ErrNotConfirmed
// is returned and nothing is written. Task statuses are left as they are.
func (s *Service) TraineeFinish(ctx context.Context, req FinishRequest, confirm Confirm) (ProgressView, error) {
	if req.ActualStart == nil || req.ActualEnd == nil {
		return ProgressView{}, &InvalidDateRangeError{Field: "actual dates", Start: req.ActualStart, Finish: req.ActualEnd}
	}
	if err := checkDateRange("actual dates", req.ActualStart, req.ActualEnd); err != nil {
		return ProgressView{}, err
	}
	if strings.TrimSpace(req.TraineeID) == "" {
		return ProgressView{}, &ValidationError{Field: "trainee_id", Message: "is required"}
	}

	cs, p, err := s.load(ctx, req.CourseSubjectID, req.TraineeID)
	if err != nil {
		return ProgressView{}, err
	}

	if pending := PendingTasks(p.Tasks); pending > 0 {
		ok := confirm.ask(ctx, Prompt{
			Action:   ActionFinishIncomplete,
			TargetID: cs.ID,
			Name:     cs.Subject.Name,
			Pending:  pending,
		})
		if !ok {
			return ProgressView{}, ErrNotConfirmed
		}
	}

	start, end := DayPtr(req.ActualStart), DayPtr(req.ActualEnd)
	status := DeriveStatus(s.now(), cs.PlannedFinishDate, start, end, p.Tasks)
	if err := s.store.SaveCompletion(ctx, Completion{
		TraineeID:        req.TraineeID,
		CourseSubjectID:  cs.ID,
		Status:           status,
		ActualStartDate:  start,
		ActualFinishDate: end,
	}); err != nil {
		return ProgressView{}, fmt.Errorf("save completion: %w", err)
	}

	s.emit(Event{
		CourseID:  cs.CourseID,
		TraineeID: req.TraineeID,
		EventType: EventSubjectFinished,
		Data:      map[string]any{"course_subject_id": cs.ID, "status": string(status)},
	})
	return s.Progress(ctx, cs.ID, req.TraineeID)
}

// ForceComplete is the supervisor override: every task becomes DONE and the
// subject finishes today. An existing actual start is kept unless it lies
// after today, in which case it is moved to today.
func (s *Service) ForceComplete(ctx context.Context, courseSubjectID, traineeID string) (ProgressView, error) {
	if strings.TrimSpace(traineeID) == "" {
		return ProgressView{}, &ValidationError{Field: "trainee_id", Message: "is required"}
	}
	cs, p, err := s.load(ctx, courseSubjectID, traineeID)
	if err != nil {
		return ProgressView{}, err
	}

	today := Day(s.now())
	start := DayPtr(p.ActualStartDate)
	if start == nil || start.After(today) {
		start = &today
	}

	done := make([]TaskProgress, len(p.Tasks))
	for i, t := range p.Tasks {
		t.Status = TaskDone
		done[i] = t
	}
	status := DeriveStatus(today, cs.PlannedFinishDate, start, &today, done)

	if err := s.store.SaveCompletion(ctx, Completion{
		TraineeID:        traineeID,
		CourseSubjectID:  cs.ID,
		Status:           status,
		ActualStartDate:  start,
		ActualFinishDate: &today,
		MarkAllDone:      true,
	}); err != nil {
		return ProgressView{}, fmt.Errorf("save completion: %w", err)
	}

	slog.Info("subject force-completed",
		"course_subject_id", cs.ID,
		"trainee_id", traineeID,
		"pending_before", PendingTasks(p.Tasks),
	)
	s.emit(Event{
		CourseID:  cs.CourseID,
		TraineeID: traineeID,
		EventType: EventSubjectForceCompleted,
		Data:      map[string]any{"course_subject_id": cs.ID, "status": string(status)},
	})
	return s.Progress(ctx, cs.ID, traineeID)
}

func (s *Service) load(ctx context.Context, courseSubjectID, traineeID string) (CourseSubject, Progress, error) {
	cs, err := s.store.GetCourseSubject(ctx, courseSubjectID)
	if err != nil {
		return CourseSubject{}, Progress{}, fmt.Errorf("get course subject: %w", err)
	}
	p, err := s.store.FetchProgress(ctx, courseSubjectID, traineeID)
	if err != nil {
		return CourseSubject{}, Progress{}, fmt.Errorf("fetch progress: %w", err)
	}
	return cs, p, nil
}
