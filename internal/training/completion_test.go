package training_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

func plannedSubject(t *testing.T, f fixture, taskCount int) training.CourseSubject {
	t.Helper()
	names := make([]string, taskCount)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	cs, err := f.svc.AddSubject(t.Context(), "c1", training.SubjectDefinition{
		Name:              "Rails",
		EstimatedTimeDays: 10,
		MaxScore:          100,
		Tasks:             names,
		PlannedStartDate:  day("2024-01-01"),
		PlannedFinishDate: day("2024-01-10"),
	})
	if err != nil {
		t.Fatalf("AddSubject() error = %v", err)
	}
	return cs
}

func markDone(t *testing.T, f fixture, cs training.CourseSubject, trainee string, n int) {
	t.Helper()
	for _, task := range cs.Tasks[:n] {
		if err := f.svc.SetTaskStatus(t.Context(), task.ID, trainee, training.TaskDone); err != nil {
			t.Fatalf("SetTaskStatus() error = %v", err)
		}
	}
}

func TestTraineeFinish(t *testing.T) {
	tests := []struct {
		name       string
		done       int
		start, end string
		want       training.SubjectStatus
	}{
		{"early", 3, "2024-01-02", "2024-01-08", training.StatusFinishedEarly},
		{"on time", 3, "2024-01-02", "2024-01-10", training.StatusFinishedOnTime},
		{"late", 3, "2024-01-02", "2024-01-11", training.StatusFinishedButOverdue},
		{"same day", 3, "2024-01-05", "2024-01-05", training.StatusFinishedEarly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cs := plannedSubject(t, f, 3)
			markDone(t, f, cs, "alice", tt.done)

			asked := false
			confirm := func(context.Context, training.Prompt) bool {
				asked = true
				return true
			}
			view, err := f.svc.TraineeFinish(t.Context(), training.FinishRequest{
				CourseSubjectID: cs.ID,
				TraineeID:       "alice",
				ActualStart:     day(tt.start),
				ActualEnd:       day(tt.end),
			}, confirm)
			if err != nil {
				t.Fatalf("TraineeFinish() error = %v", err)
			}
			if asked {
				t.Error("confirmation requested with every task done")
			}
			if view.Status != tt.want || view.StatusLabel != tt.want.Label() {
				t.Errorf("status = %s (%q), want %s", view.Status, view.StatusLabel, tt.want)
			}
			if !view.ActualFinishDate.Equal(*day(tt.end)) {
				t.Errorf("actual finish = %v", view.ActualFinishDate)
			}
		})
	}
}

func TestTraineeFinish_PendingTasks(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	cs := plannedSubject(t, f, 5)
	markDone(t, f, cs, "alice", 2)
	req := training.FinishRequest{
		CourseSubjectID: cs.ID,
		TraineeID:       "alice",
		ActualStart:     day("2024-01-02"),
		ActualEnd:       day("2024-01-09"),
	}

	var prompt training.Prompt
	decline := func(_ context.Context, p training.Prompt) bool {
		prompt = p
		return false
	}
	for name, confirm := range map[string]training.Confirm{"declined": decline, "never": training.NeverConfirm, "nil": nil} {
		t.Run(name, func(t *testing.T) {
			if _, err := f.svc.TraineeFinish(ctx, req, confirm); !errors.Is(err, training.ErrNotConfirmed) {
				t.Fatalf("TraineeFinish() error = %v, want ErrNotConfirmed", err)
			}
			view, _ := f.svc.Progress(ctx, cs.ID, "alice")
			if view.ActualFinishDate != nil || view.ActualStartDate != nil {
				t.Errorf("dates written despite decline: %+v", view.Progress)
			}
		})
	}
	if prompt.Action != training.ActionFinishIncomplete || prompt.Pending != 3 || prompt.Name != "Rails" {
		t.Errorf("prompt = %+v", prompt)
	}

	view, err := f.svc.TraineeFinish(ctx, req, training.AlwaysConfirm)
	if err != nil {
		t.Fatalf("TraineeFinish(confirmed) error = %v", err)
	}
	if view.Status != training.StatusFinishedEarly {
		t.Errorf("status = %s", view.Status)
	}
	if view.CompletionPercent != 40 {
		t.Errorf("completion = %d%%, want task statuses untouched at 40%%", view.CompletionPercent)
	}
}

func TestTraineeFinish_InvalidDates(t *testing.T) {
	tests := []struct {
		name       string
		start, end *time.Time
	}{
		{"end before start", day("2024-01-09"), day("2024-01-02")},
		{"missing end", day("2024-01-02"), nil},
		{"missing start", nil, day("2024-01-02")},
		{"missing both", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cs := plannedSubject(t, f, 2)
			markDone(t, f, cs, "alice", 1)

			_, err := f.svc.TraineeFinish(t.Context(), training.FinishRequest{
				CourseSubjectID: cs.ID,
				TraineeID:       "alice",
				ActualStart:     tt.start,
				ActualEnd:       tt.end,
			}, training.AlwaysConfirm)
			var e *training.InvalidDateRangeError
			if !errors.As(err, &e) {
				t.Fatalf("TraineeFinish() error = %v, want InvalidDateRangeError", err)
			}

			view, _ := f.svc.Progress(t.Context(), cs.ID, "alice")
			if view.ActualFinishDate != nil || view.Status != training.StatusOverdueAndNotFinished || view.CompletionPercent != 50 {
				t.Errorf("progress changed: %+v", view)
			}
		})
	}
}

func TestForceComplete(t *testing.T) {
	tests := []struct {
		name      string
		start     *time.Time
		wantStart string
	}{
		{"no start becomes today", nil, "2024-01-12"},
		{"past start kept", day("2024-01-03"), "2024-01-03"},
		{"future start moved to today", day("2024-02-01"), "2024-01-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := t.Context()
			cs := plannedSubject(t, f, 5)
			markDone(t, f, cs, "alice", 2)
			if tt.start != nil {
				if err := f.store.SaveCompletion(ctx, training.Completion{
					TraineeID:       "alice",
					CourseSubjectID: cs.ID,
					Status:          training.StatusInProgress,
					ActualStartDate: tt.start,
				}); err != nil {
					t.Fatalf("SaveCompletion() error = %v", err)
				}
			}

			view, err := f.svc.ForceComplete(ctx, cs.ID, "alice")
			if err != nil {
				t.Fatalf("ForceComplete() error = %v", err)
			}
			if view.CompletionPercent != 100 || training.PendingTasks(view.Tasks) != 0 || len(view.Tasks) != 5 {
				t.Errorf("tasks = %+v, want 5/5 done", view.Tasks)
			}
			if !view.ActualFinishDate.Equal(*day("2024-01-12")) {
				t.Errorf("actual finish = %v, want today", view.ActualFinishDate)
			}
			if !view.ActualStartDate.Equal(*day(tt.wantStart)) {
				t.Errorf("actual start = %v, want %s", view.ActualStartDate, tt.wantStart)
			}
			if view.Status != training.StatusFinishedButOverdue {
				t.Errorf("status = %s, want FINISHED_BUT_OVERDUE", view.Status)
			}
		})
	}

	f := newFixture(t)
	if _, err := f.svc.ForceComplete(t.Context(), "missing", "alice"); !training.IsNotFound(err) {
		t.Errorf("ForceComplete(missing) error = %v", err)
	}
}

func TestSaveAssessment(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	cs := plannedSubject(t, f, 1)
	score := func(v int) *int { return &v }
	text := func(s string) *string { return &s }

	tests := []struct {
		name        string
		score       *int
		comment     *string
		wantErr     bool
		wantComment *string
	}{
		{"lower bound", score(0), nil, false, nil},
		{"upper bound", score(100), text("  solid work \n"), false, text("solid work")},
		{"cleared", nil, text("   "), false, nil},
		{"negative", score(-1), nil, true, nil},
		{"above max", score(101), nil, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.svc.SaveAssessment(ctx, cs.ID, "alice", tt.score, tt.comment)
			if tt.wantErr {
				var e *training.ScoreOutOfRangeError
				if !errors.As(err, &e) || e.Max != 100 {
					t.Fatalf("SaveAssessment() error = %v, want ScoreOutOfRangeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SaveAssessment() error = %v", err)
			}
			if (view.Score == nil) != (tt.score == nil) || (view.Score != nil && *view.Score != *tt.score) {
				t.Errorf("score = %v, want %v", view.Score, tt.score)
			}
			if (view.SupervisorComment == nil) != (tt.wantComment == nil) ||
				(view.SupervisorComment != nil && *view.SupervisorComment != *tt.wantComment) {
				t.Errorf("comment = %v, want %v", view.SupervisorComment, tt.wantComment)
			}
			if view.CommentUpdatedAt == nil || !view.CommentUpdatedAt.Equal(today) {
				t.Errorf("comment updated at = %v", view.CommentUpdatedAt)
			}
		})
	}

	view, _ := f.svc.Progress(ctx, cs.ID, "alice")
	if view.Score != nil {
		t.Errorf("rejected scores overwrote the last accepted one: %v", *view.Score)
	}
	if _, err := f.svc.SaveAssessment(ctx, "missing", "alice", score(1), nil); !training.IsNotFound(err) {
		t.Errorf("SaveAssessment(missing) error = %v", err)
	}
}

func TestCourseReport(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	rails := plannedSubject(t, f, 4)
	git := f.addSubject(t, "c1", "Git", "Commit")
	for _, trainee := range []string{"bob", "alice"} {
		if err := f.svc.Enroll(ctx, "c1", trainee); err != nil {
			t.Fatalf("Enroll() error = %v", err)
		}
	}
	markDone(t, f, rails, "alice", 3)

	rep, err := f.svc.CourseReport(ctx, "c1")
	if err != nil {
		t.Fatalf("CourseReport() error = %v", err)
	}
	if len(rep.Subjects) != 2 || rep.Subjects[0].ID != rails.ID || rep.Subjects[1].ID != git.ID {
		t.Fatalf("subjects = %+v", rep.Subjects)
	}
	if len(rep.Rows) != 2 || rep.Rows[0].TraineeID != "alice" {
		t.Fatalf("rows = %+v", rep.Rows)
	}
	alice := rep.Rows[0].Progress
	if alice[0].CompletionPercent != 75 || alice[0].Status != training.StatusOverdueAndNotFinished {
		t.Errorf("alice rails = %d%% %s", alice[0].CompletionPercent, alice[0].Status)
	}
	if alice[1].Status != training.StatusNotStarted || alice[1].SubjectName != "Git" {
		t.Errorf("alice git = %+v", alice[1])
	}
	if !rep.GeneratedAt.Equal(today) {
		t.Errorf("generated at = %v", rep.GeneratedAt)
	}
}
