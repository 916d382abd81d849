package training

import (
	"context"
	"fmt"
	"time"
)

// CourseReport is every enrolled trainee's progress across a course's subjects.
// Rows[i].Progress[j] belongs to Subjects[j].
type CourseReport struct {
	CourseID    string
	GeneratedAt time.Time
	Subjects    []CourseSubject
	Rows        []TraineeRow
}

// TraineeRow is one trainee's line of a CourseReport.
type TraineeRow struct {
	TraineeID string
	Progress  []ProgressView
}

// CourseReport builds the progress matrix for a course.
func (s *Service) CourseReport(ctx context.Context, courseID string) (CourseReport, error) {
	subjects, err := s.Curriculum(ctx, courseID)
	if err != nil {
		return CourseReport{}, err
	}
	trainees, err := s.store.ListEnrolled(ctx, courseID)
	if err != nil {
		return CourseReport{}, fmt.Errorf("list enrolled: %w", err)
	}

	now := s.now()
	rep := CourseReport{
		CourseID:    courseID,
		GeneratedAt: now,
		Subjects:    subjects,
		Rows:        make([]TraineeRow, 0, len(trainees)),
	}
	for _, traineeID := range trainees {
		row := TraineeRow{TraineeID: traineeID, Progress: make([]ProgressView, 0, len(subjects))}
		for _, cs := range subjects {
			p, err := s.store.FetchProgress(ctx, cs.ID, traineeID)
			if err != nil {
				return CourseReport{}, fmt.Errorf("fetch progress: %w", err)
			}
			row.Progress = append(row.Progress, BuildView(now, cs, p))
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}
