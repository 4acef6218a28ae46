package state

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"chamada/internal/events"
	"chamada/internal/model"
	"chamada/internal/timeofday"
)

type GradeAPI interface {
	List(ctx context.Context) ([]model.Grade, error)
	Create(ctx context.Context, input model.GradeInput) (model.Grade, error)
	Update(ctx context.Context, id model.ID, input model.GradeInput) (model.Grade, error)
	Delete(ctx context.Context, id model.ID) error
}

type Grades struct {
	*Collection[model.Grade]
	api    GradeAPI
	logger *zap.Logger
}

func NewGrades(api GradeAPI, logger *zap.Logger) *Grades {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grades{
		Collection: newCollection(func(g model.Grade) model.ID { return g.ID }),
		api:        api,
		logger:     logger.Named("grades"),
	}
}

func (g *Grades) FetchAll(ctx context.Context) error {
	return g.fetch(ctx, g.logger, g.api.List)
}

// Create normalizes the time field before validating it, so "7:5" is sent
// as "07:05".
func (g *Grades) Create(ctx context.Context, input model.GradeInput) (model.Grade, error) {
	input = normalizeGrade(input)
	if err := validateInput(input); err != nil {
		return model.Grade{}, g.fail(ctx, err)
	}
	grade, err := g.api.Create(ctx, input)
	if err != nil {
		return model.Grade{}, g.fail(ctx, err)
	}
	return grade, g.add(ctx, grade)
}

func (g *Grades) Update(ctx context.Context, id model.ID, input model.GradeInput) (model.Grade, error) {
	input = normalizeGrade(input)
	if err := validateInput(input); err != nil {
		return model.Grade{}, g.fail(ctx, err)
	}
	grade, err := g.api.Update(ctx, id, input)
	if err != nil {
		return model.Grade{}, g.fail(ctx, err)
	}
	return grade, g.replace(ctx, grade)
}

func (g *Grades) Delete(ctx context.Context, id model.ID) error {
	if err := g.api.Delete(ctx, id); err != nil {
		return g.fail(ctx, err)
	}
	return g.remove(ctx, id)
}

// Sorted returns the grades ordered by start time. Grades without a readable
// time come last.
func (g *Grades) Sorted() []model.Grade {
	grades := g.Items()
	timeofday.SortStable(grades, func(grade model.Grade) string { return grade.Time })
	return grades
}

// Watch refetches whenever grades or their students change elsewhere. It
// blocks until ctx is done.
func (g *Grades) Watch(ctx context.Context, bus events.Bus) error {
	return watch(ctx, bus, g.logger, func(events.Event) bool { return true }, g.FetchAll)
}

func normalizeGrade(input model.GradeInput) model.GradeInput {
	input.Name = strings.TrimSpace(input.Name)
	if formatted := timeofday.FormatTime(input.Time); formatted != "" {
		input.Time = formatted
	}
	return input
}

func watch(ctx context.Context, bus events.Bus, logger *zap.Logger, match func(events.Event) bool, refetch func(context.Context) error) error {
	ch, cancel := bus.Subscribe(ctx)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			if !match(event) {
				continue
			}
			logger.Debug("invalidated",
				zap.String("kind", string(event.Kind)),
				zap.String("grade_id", event.GradeID),
			)
			if err := refetch(ctx); err != nil {
				return err
			}
		}
	}
}
