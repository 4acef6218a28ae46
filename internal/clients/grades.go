package clients

import (
	"context"
	"net/http"
	"net/url"

	"chamada/internal/model"
)

type GradeClient struct {
	t *transport
}

func (c *GradeClient) List(ctx context.Context) ([]model.Grade, error) {
	const op = "grades.list"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodGet, path: "/grades"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Grade](op, resp.status, resp.body)
}

func (c *GradeClient) Create(ctx context.Context, input model.GradeInput) (model.Grade, error) {
	const op = "grades.create"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodPost, path: "/grades", body: input})
	if err != nil {
		return model.Grade{}, err
	}
	return decodeOne[model.Grade](op, resp.status, resp.body)
}

func (c *GradeClient) Update(ctx context.Context, id model.ID, input model.GradeInput) (model.Grade, error) {
	const op = "grades.update"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodPut, path: gradePath(id), body: input})
	if err != nil {
		return model.Grade{}, err
	}
	return decodeOne[model.Grade](op, resp.status, resp.body)
}

func (c *GradeClient) Delete(ctx context.Context, id model.ID) error {
	_, err := c.t.call(ctx, request{op: "grades.delete", method: http.MethodDelete, path: gradePath(id)})
	return err
}

func gradePath(id model.ID) string {
	return "/grades/" + url.PathEscape(id.String())
}
