package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/report"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestWrite(t *testing.T) {
	ctx := t.Context()
	today := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	svc := training.NewService(training.Config{Now: func() time.Time { return today }})

	rails, err := svc.AddSubject(ctx, "course-1", training.SubjectDefinition{
		Name:              "Ruby on Rails",
		EstimatedTimeDays: 10,
		MaxScore:          100,
		Tasks:             []string{"Install Ruby", "Scaffold app", "Deploy", "Write tests"},
		PlannedStartDate:  date("2024-01-01"),
		PlannedFinishDate: date("2024-01-10"),
	})
	if err != nil {
		t.Fatalf("AddSubject() error = %v", err)
	}
	if _, err := svc.AddSubject(ctx, "course-1", training.SubjectDefinition{
		Name:     "Git Basics",
		MaxScore: 10,
		Tasks:    []string{"Commit"},
	}); err != nil {
		t.Fatalf("AddSubject() error = %v", err)
	}
	for _, trainee := range []string{"bob", "alice"} {
		if err := svc.Enroll(ctx, "course-1", trainee); err != nil {
			t.Fatalf("Enroll(%s) error = %v", trainee, err)
		}
	}
	for _, task := range rails.Tasks[:3] {
		if err := svc.SetTaskStatus(ctx, task.ID, "alice", training.TaskDone); err != nil {
			t.Fatalf("SetTaskStatus() error = %v", err)
		}
	}
	score := 87
	if _, err := svc.SaveAssessment(ctx, rails.ID, "alice", &score, nil); err != nil {
		t.Fatalf("SaveAssessment() error = %v", err)
	}

	rep, err := svc.CourseReport(ctx, "course-1")
	if err != nil {
		t.Fatalf("CourseReport() error = %v", err)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, rep); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(report.ProgressSheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", report.ProgressSheet, err)
	}
	if len(rows) != 3 {
		t.Fatalf("progress rows = %d, want 3", len(rows))
	}

	wantHeader := []string{
		"Trainee",
		"1. Ruby on Rails status", "1. Ruby on Rails %", "1. Ruby on Rails score",
		"2. Git Basics status", "2. Git Basics %", "2. Git Basics score",
	}
	for i, want := range wantHeader {
		if rows[0][i] != want {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], want)
		}
	}

	alice := rows[1]
	if alice[0] != "alice" {
		t.Fatalf("first trainee = %q, want alice", alice[0])
	}
	if alice[1] != "Overdue and not finished" {
		t.Errorf("alice status = %q, want Overdue and not finished", alice[1])
	}
	if alice[2] != "75" {
		t.Errorf("alice percent = %q, want 75", alice[2])
	}
	if alice[3] != "87" {
		t.Errorf("alice score = %q, want 87", alice[3])
	}
	if alice[4] != "Not started" {
		t.Errorf("alice git status = %q, want Not started", alice[4])
	}

	bob := rows[2]
	if bob[0] != "bob" || bob[2] != "0" {
		t.Errorf("bob row = %v, want bob with 0%%", bob)
	}

	subjects, err := f.GetRows(report.SubjectsSheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", report.SubjectsSheet, err)
	}
	if len(subjects) != 3 {
		t.Fatalf("subject rows = %d, want 3", len(subjects))
	}
	if got := subjects[1][1]; got != "Ruby on Rails" {
		t.Errorf("first subject = %q, want Ruby on Rails", got)
	}
	if got := subjects[1][3]; got != "2024-01-10" {
		t.Errorf("planned finish = %q, want 2024-01-10", got)
	}
	if got := subjects[1][6]; got != "4" {
		t.Errorf("task count = %q, want 4", got)
	}
}

func TestWrite_EmptyCourse(t *testing.T) {
	var buf bytes.Buffer
	rep := training.CourseReport{CourseID: "empty", GeneratedAt: time.Now()}
	if err := report.Write(&buf, rep); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != report.ProgressSheet || sheets[1] != report.SubjectsSheet {
		t.Errorf("sheets = %v, want [%s %s]", sheets, report.ProgressSheet, report.SubjectsSheet)
	}
	rows, err := f.GetRows(report.ProgressSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 1 || rows[0][0] != "Trainee" {
		t.Errorf("rows = %v, want only the Trainee header", rows)
	}
}
