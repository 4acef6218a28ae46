package state

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"chamada/internal/model"
)

// Roster joins grades with the students a Students controller holds.
type Roster struct {
	Grades   *Grades
	Students *Students
}

type RosterGrade struct {
	Grade    model.Grade
	Students []model.Student
}

func NewRoster(grades *Grades, students *Students) *Roster {
	return &Roster{Grades: grades, Students: students}
}

// Load fetches both collections concurrently.
func (r *Roster) Load(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return r.Grades.FetchAll(ctx) })
	group.Go(func() error { return r.Students.FetchAll(ctx) })
	return group.Wait()
}

// View lists grades by start time, each with its students in roster order.
func (r *Roster) View() []RosterGrade {
	byGrade := make(map[model.ID][]model.Student)
	for _, student := range r.Students.Items() {
		byGrade[student.GradeID] = append(byGrade[student.GradeID], student)
	}
	grades := r.Grades.Sorted()
	view := make([]RosterGrade, 0, len(grades))
	for _, grade := range grades {
		students := byGrade[grade.ID]
		sort.SliceStable(students, func(i, j int) bool {
			return rosterPosition(students[i]) < rosterPosition(students[j])
		})
		if students == nil {
			students = []model.Student{}
		}
		view = append(view, RosterGrade{Grade: grade, Students: students})
	}
	return view
}

// Err reports the first error recorded by either collection.
func (r *Roster) Err() string {
	if err := r.Grades.Snapshot().Err; err != "" {
		return err
	}
	return r.Students.Snapshot().Err
}

// rosterPosition puts students without an explicit order after the ordered
// ones.
func rosterPosition(student model.Student) int {
	if student.Order <= 0 {
		return int(^uint(0) >> 1)
	}
	return student.Order
}
