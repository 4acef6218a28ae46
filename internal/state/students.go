package state

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"chamada/internal/events"
	"chamada/internal/model"
)

type StudentAPI interface {
	List(ctx context.Context, gradeID model.ID) ([]model.Student, error)
	Create(ctx context.Context, input model.StudentInput) (model.Student, error)
	Update(ctx context.Context, id model.ID, input model.StudentInput) (model.Student, error)
	Delete(ctx context.Context, id model.ID) (*model.Student, error)
	Include(ctx context.Context, id model.ID, date time.Time) (model.Student, error)
	Transfer(ctx context.Context, id model.ID, input model.TransferInput) (model.Student, error)
	Reorder(ctx context.Context, gradeID model.ID, orderedIDs []model.ID) error
	DeletePermanently(ctx context.Context, ids []model.ID) error
}

// Students holds the students of one grade, or of every grade when the
// scope is empty. Deleting a student excludes it; the entry stays in the
// collection until it is purged with DeletePermanently.
type Students struct {
	*Collection[model.Student]
	api     StudentAPI
	gradeID model.ID
	bus     events.Bus
	logger  *zap.Logger
	now     func() time.Time
}

// NewStudents builds a controller scoped to gradeID. bus may be nil, in which
// case transfers notify nobody.
func NewStudents(api StudentAPI, gradeID model.ID, bus events.Bus, logger *zap.Logger) *Students {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Students{
		Collection: newCollection(func(s model.Student) model.ID { return s.ID }),
		api:        api,
		gradeID:    gradeID,
		bus:        bus,
		logger:     logger.Named("students"),
		now:        time.Now,
	}
}

func (s *Students) GradeID() model.ID {
	return s.gradeID
}

func (s *Students) FetchAll(ctx context.Context) error {
	return s.fetch(ctx, s.logger, func(ctx context.Context) ([]model.Student, error) {
		return s.api.List(ctx, s.gradeID)
	})
}

func (s *Students) Create(ctx context.Context, input model.StudentInput) (model.Student, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.GradeID == "" {
		input.GradeID = s.gradeID
	}
	if err := validateInput(input); err != nil {
		return model.Student{}, s.fail(ctx, err)
	}
	student, err := s.api.Create(ctx, input)
	if err != nil {
		return model.Student{}, s.fail(ctx, err)
	}
	return student, s.add(ctx, student)
}

func (s *Students) Update(ctx context.Context, id model.ID, input model.StudentInput) (model.Student, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.GradeID == "" {
		if current, ok := s.find(id); ok {
			input.GradeID = current.GradeID
		}
	}
	if err := validateInput(input); err != nil {
		return model.Student{}, s.fail(ctx, err)
	}
	student, err := s.api.Update(ctx, id, input)
	if err != nil {
		return model.Student{}, s.fail(ctx, err)
	}
	return student, s.replace(ctx, student)
}

// Delete excludes the student. The local entry is flagged excluded and
// pending at once; the server's answer then replaces it, or the previous
// entry is restored if the call fails or its result is discarded.
func (s *Students) Delete(ctx context.Context, id model.ID) error {
	var (
		previous model.Student
		held     bool
	)
	stamped := s.now()
	err := s.apply(ctx, func() {
		for i := range s.items {
			if s.items[i].ID != id {
				continue
			}
			previous, held = s.items[i], true
			s.items[i].Excluded = true
			s.items[i].ExclusionDate = &stamped
			s.items[i].Pending = true
			return
		}
	})
	if err != nil {
		return err
	}

	confirmed, err := s.api.Delete(ctx, id)
	if err != nil {
		s.revert(previous, held)
		return s.fail(ctx, err)
	}
	err = s.apply(ctx, func() {
		if confirmed != nil {
			s.replaceLocked(*confirmed)
		} else {
			for i := range s.items {
				if s.items[i].ID == id {
					s.items[i].Pending = false
				}
			}
		}
		s.err = ""
	})
	if err != nil {
		s.revert(previous, held)
	}
	return err
}

// revert restores an entry flipped by Delete, unless something else has
// replaced it since.
func (s *Students) revert(previous model.Student, held bool) {
	if !held {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for i := range s.items {
		if s.items[i].ID == previous.ID && s.items[i].Pending {
			s.items[i] = previous
			return
		}
	}
}

// Include reverts an exclusion as of date.
func (s *Students) Include(ctx context.Context, id model.ID, date time.Time) (model.Student, error) {
	student, err := s.api.Include(ctx, id, date)
	if err != nil {
		return model.Student{}, s.fail(ctx, err)
	}
	return student, s.replace(ctx, student)
}

// Transfer moves the student to newGradeID. The local entry becomes the
// origin-side record the server returns; both grades are then announced on
// the bus so that their holders refetch.
func (s *Students) Transfer(ctx context.Context, id model.ID, newGradeID model.ID) (model.Student, error) {
	input := model.TransferInput{NewGradeID: newGradeID}
	if err := validateInput(input); err != nil {
		return model.Student{}, s.fail(ctx, err)
	}
	var originGrade model.ID
	if current, ok := s.find(id); ok {
		originGrade = current.GradeID
	}

	origin, err := s.api.Transfer(ctx, id, input)
	if err != nil {
		return model.Student{}, s.fail(ctx, err)
	}
	if originGrade == "" && origin.OldGradeInfo != nil {
		originGrade = origin.OldGradeInfo.ID
	}
	s.announce(ctx, id, originGrade, newGradeID)
	return origin, s.replace(ctx, origin)
}

func (s *Students) announce(ctx context.Context, studentID model.ID, gradeIDs ...model.ID) {
	if s.bus == nil {
		return
	}
	// Published even after the caller's ctx is done.
	ctx = context.WithoutCancel(ctx)
	for _, gradeID := range gradeIDs {
		if gradeID == "" {
			continue
		}
		event := events.Event{Kind: events.KindStudents, GradeID: gradeID.String(), StudentID: studentID.String()}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Warn("publish invalidation failed", zap.String("grade_id", gradeID.String()), zap.Error(err))
		}
	}
}

// Reorder persists a new order for a grade, then rebuilds that grade's
// entries from orderedIDs alone: ids the collection does not hold are
// skipped and students of the grade that are not listed are dropped. Students
// of other grades keep their positions; the rebuilt block takes the place of
// the grade's first entry.
func (s *Students) Reorder(ctx context.Context, gradeID model.ID, orderedIDs []model.ID) error {
	if gradeID == "" {
		gradeID = s.gradeID
	}
	if err := s.api.Reorder(ctx, gradeID, orderedIDs); err != nil {
		return s.fail(ctx, err)
	}
	return s.apply(ctx, func() {
		byID := make(map[model.ID]model.Student, len(s.items))
		for _, student := range s.items {
			byID[student.ID] = student
		}
		listed := make(map[model.ID]struct{}, len(orderedIDs))
		block := make([]model.Student, 0, len(orderedIDs))
		for _, id := range orderedIDs {
			student, ok := byID[id]
			if !ok {
				continue
			}
			if _, dup := listed[id]; dup {
				continue
			}
			listed[id] = struct{}{}
			student.Order = len(block) + 1
			block = append(block, student)
		}

		rebuilt := make([]model.Student, 0, len(s.items))
		placed := false
		for _, student := range s.items {
			_, isListed := listed[student.ID]
			if !isListed && student.GradeID != gradeID {
				rebuilt = append(rebuilt, student)
				continue
			}
			if !placed {
				rebuilt = append(rebuilt, block...)
				placed = true
			}
		}
		s.items = rebuilt
		s.err = ""
	})
}

func (s *Students) DeletePermanently(ctx context.Context, ids []model.ID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.api.DeletePermanently(ctx, ids); err != nil {
		return s.fail(ctx, err)
	}
	return s.remove(ctx, ids...)
}

// Watch refetches when a student event touches this controller's grade. It
// blocks until ctx is done.
func (s *Students) Watch(ctx context.Context, bus events.Bus) error {
	return watch(ctx, bus, s.logger, func(event events.Event) bool {
		if event.Kind != events.KindStudents {
			return false
		}
		return s.gradeID == "" || event.GradeID == "" || event.GradeID == s.gradeID.String()
	}, s.FetchAll)
}
