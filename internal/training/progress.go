package training

import (
	"math"
	"time"
)

// DeriveStatus computes a trainee's subject status. All dates compare at day
// granularity. A missing planned finish never makes a subject overdue, and a
// finish without a plan counts as on time.
func DeriveStatus(today time.Time, plannedFinish, actualStart, actualFinish *time.Time, tasks []TaskProgress) SubjectStatus {
	today = Day(today)
	plannedFinish = DayPtr(plannedFinish)

	if actualFinish == nil {
		switch {
		case plannedFinish != nil && today.After(*plannedFinish):
			return StatusOverdueAndNotFinished
		case actualStart != nil || anyDone(tasks):
			return StatusInProgress
		default:
			return StatusNotStarted
		}
	}

	finish := Day(*actualFinish)
	switch {
	case plannedFinish == nil || finish.Equal(*plannedFinish):
		return StatusFinishedOnTime
	case finish.Before(*plannedFinish):
		return StatusFinishedEarly
	default:
		return StatusFinishedButOverdue
	}
}

// CompletionPercent returns the rounded share of DONE tasks, 0 for no tasks.
func CompletionPercent(tasks []TaskProgress) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Status == TaskDone {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(tasks))))
}

// PendingTasks counts tasks that are not DONE.
func PendingTasks(tasks []TaskProgress) int {
	n := 0
	for _, t := range tasks {
		if t.Status != TaskDone {
			n++
		}
	}
	return n
}

// BuildView derives the display fields of a progress record.
func BuildView(today time.Time, cs CourseSubject, p Progress) ProgressView {
	p.Status = DeriveStatus(today, cs.PlannedFinishDate, p.ActualStartDate, p.ActualFinishDate, p.Tasks)
	return ProgressView{
		Progress:          p,
		CourseID:          cs.CourseID,
		SubjectName:       cs.Subject.Name,
		MaxScore:          cs.Subject.MaxScore,
		PlannedStartDate:  cs.PlannedStartDate,
		PlannedFinishDate: cs.PlannedFinishDate,
		StatusLabel:       p.Status.Label(),
		CompletionPercent: CompletionPercent(p.Tasks),
	}
}

func anyDone(tasks []TaskProgress) bool {
	for _, t := range tasks {
		if t.Status == TaskDone {
			return true
		}
	}
	return false
}

// checkDateRange rejects finish < start when both are present.
func checkDateRange(field string, start, finish *time.Time) error {
	if start == nil || finish == nil {
		return nil
	}
	if Day(*finish).Before(Day(*start)) {
		return &InvalidDateRangeError{Field: field, Start: start, Finish: finish}
	}
	return nil
}
