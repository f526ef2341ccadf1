package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportStudentsExcel renders the student-comparison table as an XLSX
// workbook for download from the teacher dashboard.
func (s *Service) ExportStudentsExcel(ctx context.Context, teacherID int64) ([]byte, error) {
	rows, err := s.loadSummaryRows(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	students := buildStudentComparison(rows)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"student_id", "name", "email", "attempts", "avg_accuracy", "avg_score"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, st := range students {
		row := i + 2
		values := []any{
			st.StudentID,
			st.Name,
			st.Email,
			st.Attempts,
			st.AvgAccuracy,
			st.AvgScore,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write excel buffer: %w", err)
	}
	return buf.Bytes(), nil
}
