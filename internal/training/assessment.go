package training

import (
	"context"
	"fmt"
	"strings"
)

// CheckScore rejects a score outside [0, max]. A nil score clears the grade.
func CheckScore(score *int, max int) error {
	if score == nil {
		return nil
	}
	if *score < 0 || *score > max {
		return &ScoreOutOfRangeError{Score: *score, Max: max}
	}
	return nil
}

// SaveAssessment overwrites a trainee's score and supervisor comment on a
// course subject. No history is kept.
func (s *Service) SaveAssessment(ctx context.Context, courseSubjectID, traineeID string, score *int, comment *string) (ProgressView, error) {
	if strings.TrimSpace(traineeID) == "" {
		return ProgressView{}, &ValidationError{Field: "trainee_id", Message: "is required"}
	}
	cs, err := s.store.GetCourseSubject(ctx, courseSubjectID)
	if err != nil {
		return ProgressView{}, fmt.Errorf("get course subject: %w", err)
	}
	if err := CheckScore(score, cs.Subject.MaxScore); err != nil {
		return ProgressView{}, err
	}

	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	if err := s.store.SaveAssessment(ctx, Assessment{
		TraineeID:         traineeID,
		CourseSubjectID:   cs.ID,
		Score:             score,
		SupervisorComment: comment,
		CommentUpdatedAt:  s.now(),
	}); err != nil {
		return ProgressView{}, fmt.Errorf("save assessment: %w", err)
	}

	data := map[string]any{"course_subject_id": cs.ID}
	if score != nil {
		data["score"] = *score
	}
	s.emit(Event{
		CourseID:  cs.CourseID,
		TraineeID: traineeID,
		EventType: EventAssessmentSaved,
		Data:      data,
	})
	return s.Progress(ctx, cs.ID, traineeID)
}
