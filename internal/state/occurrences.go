package state

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"chamada/internal/clients"
	"chamada/internal/model"
)

type OccurrenceAPI interface {
	List(ctx context.Context, studentID model.ID) ([]model.Occurrence, error)
	Create(ctx context.Context, studentID model.ID, input model.OccurrenceInput, attachments []clients.UploadFile) (model.Occurrence, error)
	Update(ctx context.Context, id model.ID, input model.OccurrenceInput) (model.Occurrence, error)
	Delete(ctx context.Context, id model.ID) error
}

type Occurrences struct {
	*Collection[model.Occurrence]
	api       OccurrenceAPI
	studentID model.ID
	maxBytes  int64
	logger    *zap.Logger
}

func NewOccurrences(api OccurrenceAPI, studentID model.ID, maxBytes int64, logger *zap.Logger) *Occurrences {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Occurrences{
		Collection: newCollection(func(o model.Occurrence) model.ID { return o.ID }),
		api:        api,
		studentID:  studentID,
		maxBytes:   maxBytes,
		logger:     logger.Named("occurrences").With(zap.String("student_id", studentID.String())),
	}
}

func (o *Occurrences) FetchAll(ctx context.Context) error {
	return o.fetch(ctx, o.logger, func(ctx context.Context) ([]model.Occurrence, error) {
		return o.api.List(ctx, o.studentID)
	})
}

// Create records an occurrence. Any oversized attachment fails the whole
// call before a request is made.
func (o *Occurrences) Create(ctx context.Context, input model.OccurrenceInput, attachments ...clients.UploadFile) (model.Occurrence, error) {
	input.Observation = strings.TrimSpace(input.Observation)
	if err := validateInput(input); err != nil {
		return model.Occurrence{}, o.fail(ctx, err)
	}
	if _, rejected := screenUploads(attachments, o.maxBytes); len(rejected) > 0 {
		errs := make([]error, 0, len(rejected))
		for _, rejection := range rejected {
			errs = append(errs, rejection.Err)
		}
		return model.Occurrence{}, o.fail(ctx, errors.Join(errs...))
	}
	occurrence, err := o.api.Create(ctx, o.studentID, input, attachments)
	if err != nil {
		return model.Occurrence{}, o.fail(ctx, err)
	}
	return occurrence, o.add(ctx, occurrence)
}

func (o *Occurrences) Update(ctx context.Context, id model.ID, input model.OccurrenceInput) (model.Occurrence, error) {
	input.Observation = strings.TrimSpace(input.Observation)
	if err := validateInput(input); err != nil {
		return model.Occurrence{}, o.fail(ctx, err)
	}
	occurrence, err := o.api.Update(ctx, id, input)
	if err != nil {
		return model.Occurrence{}, o.fail(ctx, err)
	}
	return occurrence, o.replace(ctx, occurrence)
}

func (o *Occurrences) Delete(ctx context.Context, id model.ID) error {
	if err := o.api.Delete(ctx, id); err != nil {
		return o.fail(ctx, err)
	}
	return o.remove(ctx, id)
}
