package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"chamada/internal/model"
	"chamada/internal/state"
)

const dateLayout = "02/01/2006"

func newTable(w io.Writer, header string) *tabwriter.Writer {
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, header)
	return table
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func formatSize(size model.ByteSize) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	value, suffix := float64(size)/unit, "KB"
	if value >= unit {
		value, suffix = value/unit, "MB"
	}
	return fmt.Sprintf("%.1f %s", value, suffix)
}

// loadErr turns an error recorded by a fetch into a command failure.
func loadErr[T any](snap state.Snapshot[T]) error {
	if snap.Err != "" {
		return errors.New(snap.Err)
	}
	return nil
}

func statusLabel(student model.Student) string {
	switch student.Status() {
	case model.StudentExcluded:
		return "excluded " + formatDate(student.ExclusionDate)
	case model.StudentTransferred:
		label := "transferred " + formatDate(student.TransferDate)
		if student.NewGradeInfo != nil {
			label += " to " + student.NewGradeInfo.Name
		}
		return label
	}
	return "active"
}

func printStudents(w io.Writer, students []model.Student) error {
	table := newTable(w, "ID\tNAME\tGRADE\tSTATUS")
	for _, student := range students {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", student.ID, student.Name, student.GradeName, statusLabel(student))
	}
	return table.Flush()
}
