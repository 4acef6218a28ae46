package clients

import (
	"context"
	"net/http"
	"net/url"

	"chamada/internal/model"
)

type OccurrenceClient struct {
	t *transport
}

func (c *OccurrenceClient) List(ctx context.Context, studentID model.ID) ([]model.Occurrence, error) {
	const op = "occurrences.list"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodGet, path: studentPath(studentID) + "/occurrences"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Occurrence](op, resp.status, resp.body)
}

// Create records an occurrence. With attachments the request is sent as
// multipart with the observation as a form field.
func (c *OccurrenceClient) Create(ctx context.Context, studentID model.ID, input model.OccurrenceInput, attachments []UploadFile) (model.Occurrence, error) {
	const op = "occurrences.create"
	req := request{op: op, method: http.MethodPost, path: studentPath(studentID) + "/occurrences"}
	if len(attachments) > 0 {
		req.form = &form{fields: map[string]string{"observation": input.Observation}, files: attachments}
	} else {
		req.body = input
	}
	resp, err := c.t.call(ctx, req)
	if err != nil {
		return model.Occurrence{}, err
	}
	return decodeOne[model.Occurrence](op, resp.status, resp.body)
}

func (c *OccurrenceClient) Update(ctx context.Context, id model.ID, input model.OccurrenceInput) (model.Occurrence, error) {
	const op = "occurrences.update"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodPut, path: occurrencePath(id), body: input})
	if err != nil {
		return model.Occurrence{}, err
	}
	return decodeOne[model.Occurrence](op, resp.status, resp.body)
}

func (c *OccurrenceClient) Delete(ctx context.Context, id model.ID) error {
	_, err := c.t.call(ctx, request{op: "occurrences.delete", method: http.MethodDelete, path: occurrencePath(id)})
	return err
}

func occurrencePath(id model.ID) string {
	return "/occurrences/" + url.PathEscape(id.String())
}
