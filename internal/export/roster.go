// Package export writes the class roster as an XLSX workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"chamada/internal/model"
	"chamada/internal/state"
)

const (
	gradesSheet   = "Turmas"
	studentsSheet = "Alunos"
	dateLayout    = "02/01/2006"
)

var statusLabels = map[model.StudentStatus]string{
	model.StudentActive:      "Ativo",
	model.StudentExcluded:    "Excluído",
	model.StudentTransferred: "Transferido",
}

// WriteRoster writes one summary row per grade and one row per student, in
// the order of view.
func WriteRoster(w io.Writer, view []state.RosterGrade) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gradesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(studentsSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	if err := writeHeader(f, gradesSheet, headerStyle, "Turma", "Horário", "Ativos", "Total"); err != nil {
		return err
	}
	if err := writeHeader(f, studentsSheet, headerStyle, "Turma", "Horário", "Nº", "Aluno", "Situação", "Data", "Destino"); err != nil {
		return err
	}
	_ = f.SetColWidth(gradesSheet, "A", "A", 24)
	_ = f.SetColWidth(studentsSheet, "A", "A", 24)
	_ = f.SetColWidth(studentsSheet, "D", "D", 36)
	_ = f.SetColWidth(studentsSheet, "E", "G", 14)

	studentRow := 2
	for i, entry := range view {
		active := 0
		for _, student := range entry.Students {
			if student.Status() == model.StudentActive {
				active++
			}
		}
		if err := setRow(f, gradesSheet, i+2, entry.Grade.Name, entry.Grade.Time, active, len(entry.Students)); err != nil {
			return err
		}

		for position, student := range entry.Students {
			date, destination := statusDetails(student)
			if err := setRow(f, studentsSheet, studentRow,
				entry.Grade.Name, entry.Grade.Time, position+1, student.Name,
				statusLabels[student.Status()], date, destination,
			); err != nil {
				return err
			}
			studentRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func statusDetails(student model.Student) (date, destination string) {
	switch student.Status() {
	case model.StudentTransferred:
		if student.TransferDate != nil {
			date = student.TransferDate.Format(dateLayout)
		}
		if student.NewGradeInfo != nil {
			destination = student.NewGradeInfo.Name
		}
	case model.StudentExcluded:
		if student.ExclusionDate != nil {
			date = student.ExclusionDate.Format(dateLayout)
		}
	}
	return date, destination
}

func writeHeader(f *excelize.File, sheet string, style int, titles ...string) error {
	values := make([]interface{}, len(titles))
	for i, title := range titles {
		values[i] = title
	}
	if err := setRow(f, sheet, 1, values...); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(titles), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
