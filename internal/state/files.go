package state

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"chamada/internal/clients"
	"chamada/internal/model"
)

// DefaultMaxUploadBytes is the per-file upload ceiling.
const DefaultMaxUploadBytes int64 = 10 << 20

type FileAPI interface {
	List(ctx context.Context, studentID model.ID) ([]model.StudentFile, error)
	Stats(ctx context.Context, studentID model.ID) (model.FileStats, error)
	Upload(ctx context.Context, studentID model.ID, files []clients.UploadFile) ([]model.StudentFile, error)
	Download(ctx context.Context, fileID model.ID) (*clients.Download, error)
	Rename(ctx context.Context, fileID model.ID, name string) (model.StudentFile, error)
	Delete(ctx context.Context, fileID model.ID) error
}

type UploadResult struct {
	Uploaded []model.StudentFile
	Rejected []Rejection
}

// Files holds the attachments of one student.
type Files struct {
	*Collection[model.StudentFile]
	api       FileAPI
	studentID model.ID
	maxBytes  int64
	stats     model.FileStats
	logger    *zap.Logger
}

func NewFiles(api FileAPI, studentID model.ID, maxBytes int64, logger *zap.Logger) *Files {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Files{
		Collection: newCollection(func(f model.StudentFile) model.ID { return f.ID }),
		api:        api,
		studentID:  studentID,
		maxBytes:   maxBytes,
		logger:     logger.Named("files").With(zap.String("student_id", studentID.String())),
	}
}

func (f *Files) FetchAll(ctx context.Context) error {
	return f.fetch(ctx, f.logger, func(ctx context.Context) ([]model.StudentFile, error) {
		return f.api.List(ctx, f.studentID)
	})
}

// FetchStats refreshes the summary returned by Stats. Failures are recorded
// like those of FetchAll.
func (f *Files) FetchStats(ctx context.Context) error {
	if err := f.open(); err != nil {
		return err
	}
	stats, err := f.api.Stats(ctx, f.studentID)
	if err != nil {
		if applyErr := f.apply(ctx, func() { f.err = Message(err) }); applyErr != nil {
			return applyErr
		}
		f.logger.Warn("fetch stats failed", zap.Error(err))
		return nil
	}
	return f.apply(ctx, func() { f.stats = stats })
}

func (f *Files) Stats() model.FileStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Upload sends every file within the size ceiling in one request and
// appends what the server stored. Oversized files are reported in the
// result and never read; when none remain no request is made.
func (f *Files) Upload(ctx context.Context, files ...clients.UploadFile) (UploadResult, error) {
	accepted, rejected := screenUploads(files, f.maxBytes)
	result := UploadResult{Uploaded: []model.StudentFile{}, Rejected: rejected}
	for _, rejection := range rejected {
		f.logger.Info("upload rejected", zap.String("file", rejection.Name), zap.Int64("size", rejection.Size))
	}
	if len(accepted) == 0 {
		return result, nil
	}

	uploaded, err := f.api.Upload(ctx, f.studentID, accepted)
	if err != nil {
		return result, f.fail(ctx, err)
	}
	result.Uploaded = uploaded
	return result, f.apply(ctx, func() {
		f.items = append(f.items, uploaded...)
		f.err = ""
	})
}

// Download opens a file for reading. The caller closes it; nothing is kept.
func (f *Files) Download(ctx context.Context, fileID model.ID) (*clients.Download, error) {
	if err := f.open(); err != nil {
		return nil, err
	}
	download, err := f.api.Download(ctx, fileID)
	if err != nil {
		return nil, f.fail(ctx, err)
	}
	return download, nil
}

func (f *Files) Rename(ctx context.Context, fileID model.ID, name string) (model.StudentFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.StudentFile{}, f.fail(ctx, &ValidationError{Fields: []string{"originalName"}})
	}
	file, err := f.api.Rename(ctx, fileID, name)
	if err != nil {
		return model.StudentFile{}, f.fail(ctx, err)
	}
	return file, f.replace(ctx, file)
}

func (f *Files) Delete(ctx context.Context, fileID model.ID) error {
	if err := f.api.Delete(ctx, fileID); err != nil {
		return f.fail(ctx, err)
	}
	return f.remove(ctx, fileID)
}

func screenUploads(files []clients.UploadFile, maxBytes int64) ([]clients.UploadFile, []Rejection) {
	accepted := make([]clients.UploadFile, 0, len(files))
	var rejected []Rejection
	for _, file := range files {
		if file.Size > maxBytes {
			rejected = append(rejected, Rejection{Name: file.Name, Size: file.Size, Err: tooLarge(file.Name, file.Size, maxBytes)})
			continue
		}
		accepted = append(accepted, file)
	}
	return accepted, rejected
}
