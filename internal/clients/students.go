package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"chamada/internal/model"
)

type StudentClient struct {
	t *transport
}

// List returns every student, or the students of one grade when gradeID is
// set.
func (c *StudentClient) List(ctx context.Context, gradeID model.ID) ([]model.Student, error) {
	const op = "students.list"
	req := request{op: op, method: http.MethodGet, path: "/students"}
	if gradeID != "" {
		req.query = url.Values{"gradeId": {gradeID.String()}}
	}
	resp, err := c.t.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Student](op, resp.status, resp.body)
}

func (c *StudentClient) Create(ctx context.Context, input model.StudentInput) (model.Student, error) {
	const op = "students.create"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodPost, path: "/students", body: input})
	if err != nil {
		return model.Student{}, err
	}
	return decodeOne[model.Student](op, resp.status, resp.body)
}

func (c *StudentClient) Update(ctx context.Context, id model.ID, input model.StudentInput) (model.Student, error) {
	const op = "students.update"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodPut, path: studentPath(id), body: input})
	if err != nil {
		return model.Student{}, err
	}
	return decodeOne[model.Student](op, resp.status, resp.body)
}

// Delete excludes the student. The backend may answer with the excluded
// student or with no body; the result is nil in the latter case.
func (c *StudentClient) Delete(ctx context.Context, id model.ID) (*model.Student, error) {
	const op = "students.delete"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodDelete, path: studentPath(id)})
	if err != nil {
		return nil, err
	}
	return decodeOptional[model.Student](op, resp.status, resp.body)
}

type includeRequest struct {
	Date time.Time `json:"date"`
}

// Include reverts an exclusion as of date.
func (c *StudentClient) Include(ctx context.Context, id model.ID, date time.Time) (model.Student, error) {
	const op = "students.include"
	resp, err := c.t.call(ctx, request{
		op:     op,
		method: http.MethodPatch,
		path:   studentPath(id) + "/include",
		body:   includeRequest{Date: date},
	})
	if err != nil {
		return model.Student{}, err
	}
	return decodeOne[model.Student](op, resp.status, resp.body)
}

// Transfer moves the student to another grade and returns the origin-side
// record, flagged as transferred.
func (c *StudentClient) Transfer(ctx context.Context, id model.ID, input model.TransferInput) (model.Student, error) {
	const op = "students.transfer"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodPost, path: studentPath(id) + "/transfer", body: input})
	if err != nil {
		return model.Student{}, err
	}
	return decodeOne[model.Student](op, resp.status, resp.body)
}

type reorderRequest struct {
	StudentIDs []model.ID `json:"studentIds"`
}

func (c *StudentClient) Reorder(ctx context.Context, gradeID model.ID, orderedIDs []model.ID) error {
	_, err := c.t.call(ctx, request{
		op:     "students.reorder",
		method: http.MethodPut,
		path:   gradePath(gradeID) + "/students/order",
		body:   reorderRequest{StudentIDs: orderedIDs},
	})
	return err
}

type bulkDeleteRequest struct {
	IDs []model.ID `json:"ids"`
}

func (c *StudentClient) DeletePermanently(ctx context.Context, ids []model.ID) error {
	_, err := c.t.call(ctx, request{
		op:     "students.delete_permanently",
		method: http.MethodPost,
		path:   "/students/delete-permanently",
		body:   bulkDeleteRequest{IDs: ids},
	})
	return err
}

func studentPath(id model.ID) string {
	return "/students/" + url.PathEscape(id.String())
}
