// Package report renders course progress reports as XLSX workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

// Sheet names.
const (
	ProgressSheet = "Progress"
	SubjectsSheet = "Subjects"
)

const dateLayout = "2006-01-02"

// ContentType is the MIME type of the workbook Write produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var subjectHeader = []any{"Position", "Subject", "Planned start", "Planned finish", "Estimated days", "Max score", "Tasks"}

// Write renders rep and writes the workbook to w.
func Write(w io.Writer, rep training.CourseReport) error {
	f, err := Build(rep)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Build lays out rep as a workbook with a trainee-by-subject progress sheet
// and a subject overview sheet. The caller must Close the returned file.
func Build(rep training.CourseReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := build(f, rep); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func build(f *excelize.File, rep training.CourseReport) error {
	if err := f.SetSheetName("Sheet1", ProgressSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(SubjectsSheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeProgress(f, rep, header); err != nil {
		return err
	}
	if err := writeSubjects(f, rep, header); err != nil {
		return err
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Course " + rep.CourseID + " progress",
		Created: rep.GeneratedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("setting properties: %w", err)
	}
	return nil
}

// writeProgress emits one row per trainee with status, completion and score
// columns for every subject in curriculum order.
func writeProgress(f *excelize.File, rep training.CourseReport, style int) error {
	header := []any{"Trainee"}
	for _, cs := range rep.Subjects {
		label := fmt.Sprintf("%d. %s", cs.Position, cs.Subject.Name)
		header = append(header, label+" status", label+" %", label+" score")
	}
	if err := setRow(f, ProgressSheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(ProgressSheet, 1, 1, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, row := range rep.Rows {
		values := []any{row.TraineeID}
		for _, v := range row.Progress {
			values = append(values, v.StatusLabel, v.CompletionPercent, scoreCell(v.Score))
		}
		if err := setRow(f, ProgressSheet, i+2, values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(ProgressSheet, "A", "A", 24); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if len(header) > 1 {
		last, err := excelize.ColumnNumberToName(len(header))
		if err != nil {
			return fmt.Errorf("naming column: %w", err)
		}
		if err := f.SetColWidth(ProgressSheet, "B", last, 18); err != nil {
			return fmt.Errorf("sizing columns: %w", err)
		}
	}
	if err := f.SetPanes(ProgressSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return fmt.Errorf("freezing panes: %w", err)
	}
	return nil
}

func writeSubjects(f *excelize.File, rep training.CourseReport, style int) error {
	if err := setRow(f, SubjectsSheet, 1, subjectHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(SubjectsSheet, 1, 1, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	for i, cs := range rep.Subjects {
		values := []any{
			cs.Position,
			cs.Subject.Name,
			dateCell(cs.PlannedStartDate),
			dateCell(cs.PlannedFinishDate),
			cs.Subject.EstimatedTimeDays,
			cs.Subject.MaxScore,
			len(cs.Tasks),
		}
		if err := setRow(f, SubjectsSheet, i+2, values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SubjectsSheet, "B", "B", 32); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("setting %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func scoreCell(score *int) any {
	if score == nil {
		return ""
	}
	return *score
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
