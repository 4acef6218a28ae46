package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"chamada/internal/model"
)

// UploadFile is one file of a multipart upload. Size is known before the
// content is read so oversized files can be rejected without reading them.
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

func FileFromPath(path string) (UploadFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return UploadFile{}, err
	}
	if info.IsDir() {
		return UploadFile{}, fmt.Errorf("%s is a directory", path)
	}
	return UploadFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

func FileFromBytes(name string, data []byte) UploadFile {
	return UploadFile{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func (f UploadFile) read() ([]byte, error) {
	if f.Open == nil {
		return nil, errors.New("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Download is an open file body. The caller must close it.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
	Size        int64
}

func (d *Download) Close() error {
	if d == nil || d.Body == nil {
		return nil
	}
	return d.Body.Close()
}

type FileClient struct {
	t *transport
}

func (c *FileClient) List(ctx context.Context, studentID model.ID) ([]model.StudentFile, error) {
	const op = "files.list"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodGet, path: studentPath(studentID) + "/files"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.StudentFile](op, resp.status, resp.body)
}

func (c *FileClient) Stats(ctx context.Context, studentID model.ID) (model.FileStats, error) {
	const op = "files.stats"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodGet, path: studentPath(studentID) + "/files/stats"})
	if err != nil {
		return model.FileStats{}, err
	}
	return decodeOne[model.FileStats](op, resp.status, resp.body)
}

// Upload sends files in one multipart request under the "files" field.
func (c *FileClient) Upload(ctx context.Context, studentID model.ID, files []UploadFile) ([]model.StudentFile, error) {
	const op = "files.upload"
	if len(files) == 0 {
		return nil, errors.New("no files to upload")
	}
	resp, err := c.t.call(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   studentPath(studentID) + "/files",
		form:   &form{files: files},
	})
	if err != nil {
		return nil, err
	}
	return decodeUploaded[model.StudentFile](op, resp.status, resp.body)
}

func (c *FileClient) Download(ctx context.Context, fileID model.ID) (*Download, error) {
	resp, err := c.t.stream(ctx, request{op: "files.download", method: http.MethodGet, path: filePath(fileID) + "/download"})
	if err != nil {
		return nil, err
	}
	download := &Download{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			download.Filename = params["filename"]
		}
	}
	return download, nil
}

type renameRequest struct {
	OriginalName string `json:"originalName"`
}

func (c *FileClient) Rename(ctx context.Context, fileID model.ID, name string) (model.StudentFile, error) {
	const op = "files.rename"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodPatch, path: filePath(fileID), body: renameRequest{OriginalName: name}})
	if err != nil {
		return model.StudentFile{}, err
	}
	return decodeOne[model.StudentFile](op, resp.status, resp.body)
}

func (c *FileClient) Delete(ctx context.Context, fileID model.ID) error {
	_, err := c.t.call(ctx, request{op: "files.delete", method: http.MethodDelete, path: filePath(fileID)})
	return err
}

func filePath(id model.ID) string {
	return "/files/" + url.PathEscape(id.String())
}
