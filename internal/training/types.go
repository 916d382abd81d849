// Package training implements course curricula and trainee progress tracking:
// ordered course subjects, their tasks, per-trainee task status, the derived
// subject status, completion and assessment.
package training

import (
	"time"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/curriculum"
)

// TaskStatus is a trainee's state on a single task.
type TaskStatus string

const (
	TaskDone    TaskStatus = "DONE"
	TaskNotDone TaskStatus = "NOT_DONE"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s == TaskDone || s == TaskNotDone
}

// Flip returns the opposite status.
func (s TaskStatus) Flip() TaskStatus {
	if s == TaskDone {
		return TaskNotDone
	}
	return TaskDone
}

// SubjectStatus is the derived life-cycle state of a trainee on a course subject.
type SubjectStatus string

const (
	StatusNotStarted            SubjectStatus = "NOT_STARTED"
	StatusInProgress            SubjectStatus = "IN_PROGRESS"
	StatusFinishedEarly         SubjectStatus = "FINISHED_EARLY"
	StatusFinishedOnTime        SubjectStatus = "FINISHED_ON_TIME"
	StatusFinishedButOverdue    SubjectStatus = "FINISHED_BUT_OVERDUE"
	StatusOverdueAndNotFinished SubjectStatus = "OVERDUE_AND_NOT_FINISHED"
)

// Finished reports whether the status is one of the finished states.
func (s SubjectStatus) Finished() bool {
	switch s {
	case StatusFinishedEarly, StatusFinishedOnTime, StatusFinishedButOverdue:
		return true
	}
	return false
}

// Label is the display text for the status.
func (s SubjectStatus) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not started"
	case StatusInProgress:
		return "In progress"
	case StatusFinishedEarly:
		return "Finished early"
	case StatusFinishedOnTime:
		return "Finished on time"
	case StatusFinishedButOverdue:
		return "Finished but overdue"
	case StatusOverdueAndNotFinished:
		return "Overdue and not finished"
	}
	return string(s)
}

// CourseSubject is a catalog subject attached to a course. Subject carries the
// template fields (its Tasks are left empty); Tasks holds the instances that
// belong to this course subject, in position order.
type CourseSubject struct {
	ID                string             `json:"id"`
	CourseID          string             `json:"course_id"`
	SubjectID         string             `json:"subject_id"`
	Position          int                `json:"position"`
	PlannedStartDate  *time.Time         `json:"planned_start_date,omitempty"`
	PlannedFinishDate *time.Time         `json:"planned_finish_date,omitempty"`
	Subject           curriculum.Subject `json:"subject"`
	Tasks             []curriculum.Task  `json:"tasks"`
}

// SubjectDefinition describes what add_subject attaches. When SubjectID is
// empty a new catalog template is created from the remaining fields.
type SubjectDefinition struct {
	SubjectID         string
	Name              string
	EstimatedTimeDays int
	MaxScore          int
	Tasks             []string
	PlannedStartDate  *time.Time
	PlannedFinishDate *time.Time
}

// NewCourseSubject is the store-level request to attach a template to a course.
type NewCourseSubject struct {
	CourseID          string
	SubjectID         string
	PlannedStartDate  *time.Time
	PlannedFinishDate *time.Time
}

// CourseSubjectPatch holds the editable fields; nil means unchanged. The
// Clear flags unset a planned date.
type CourseSubjectPatch struct {
	Name                   *string
	EstimatedTimeDays      *int
	PlannedStartDate       *time.Time
	PlannedFinishDate      *time.Time
	ClearPlannedStartDate  bool
	ClearPlannedFinishDate bool
}

// Dates merges the patch into the stored planned dates.
func (p CourseSubjectPatch) Dates(start, finish *time.Time) (*time.Time, *time.Time) {
	switch {
	case p.ClearPlannedStartDate:
		start = nil
	case p.PlannedStartDate != nil:
		start = DayPtr(p.PlannedStartDate)
	}
	switch {
	case p.ClearPlannedFinishDate:
		finish = nil
	case p.PlannedFinishDate != nil:
		finish = DayPtr(p.PlannedFinishDate)
	}
	return start, finish
}

// Placement assigns a position to a course subject.
type Placement struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// TaskProgress is one task together with a trainee's status on it.
type TaskProgress struct {
	TaskID   string     `json:"task_id"`
	Name     string     `json:"name"`
	Position int        `json:"position"`
	Status   TaskStatus `json:"status"`
}

// Progress is the stored state of a trainee on a course subject.
type Progress struct {
	TraineeID         string         `json:"trainee_id"`
	CourseSubjectID   string         `json:"course_subject_id"`
	Status            SubjectStatus  `json:"status"`
	ActualStartDate   *time.Time     `json:"actual_start_date,omitempty"`
	ActualFinishDate  *time.Time     `json:"actual_finish_date,omitempty"`
	Score             *int           `json:"score,omitempty"`
	SupervisorComment *string        `json:"supervisor_comment,omitempty"`
	CommentUpdatedAt  *time.Time     `json:"comment_updated_at,omitempty"`
	Tasks             []TaskProgress `json:"tasks"`
}

// Completion is the store-level write of a finalize operation.
type Completion struct {
	TraineeID        string
	CourseSubjectID  string
	Status           SubjectStatus
	ActualStartDate  *time.Time
	ActualFinishDate *time.Time
	// MarkAllDone sets every task of the course subject to DONE for the trainee.
	MarkAllDone bool
}

// Assessment is the store-level write of a score and comment.
type Assessment struct {
	TraineeID         string
	CourseSubjectID   string
	Score             *int
	SupervisorComment *string
	CommentUpdatedAt  time.Time
}

// ProgressView is what callers render: stored progress plus derived fields.
type ProgressView struct {
	Progress
	CourseID          string     `json:"course_id"`
	SubjectName       string     `json:"subject_name"`
	MaxScore          int        `json:"max_score"`
	PlannedStartDate  *time.Time `json:"planned_start_date,omitempty"`
	PlannedFinishDate *time.Time `json:"planned_finish_date,omitempty"`
	StatusLabel       string     `json:"status_label"`
	CompletionPercent int        `json:"completion_percent"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayPtr is Day for optional dates.
func DayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}
