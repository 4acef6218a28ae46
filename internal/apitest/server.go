// Package apitest runs an in-memory stand-in for the attendance backend,
// speaking the same routes and envelopes, for tests of the client layers.
package apitest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chamada/internal/model"
)

const (
	UploadShapeUploadedFiles = "uploadedFiles"
	UploadShapeObject        = "object"
	UploadShapeList          = "list"
)

type rawResponse struct {
	status int
	body   string
}

type Server struct {
	mu sync.Mutex

	// Token, when set, is required as a bearer token on every route but login.
	Token    string
	Password string
	// Envelope wraps responses in {"success": true, "data": ...}.
	Envelope    bool
	UploadShape string
	// DeleteReturnsStudent makes soft deletes answer with the excluded student
	// instead of an empty body.
	DeleteReturnsStudent bool
	// Delay is applied before every handler runs.
	Delay time.Duration

	grades      []model.Grade
	students    []model.Student
	files       []model.StudentFile
	contents    map[model.ID][]byte
	occurrences []model.Occurrence
	failures    map[string]int
	raw         map[string]rawResponse
	hits        map[string]int
	now         func() time.Time
}

func New() *Server {
	return &Server{
		Password:    "dev-password",
		UploadShape: UploadShapeUploadedFiles,
		contents:    make(map[model.ID][]byte),
		failures:    make(map[string]int),
		raw:         make(map[string]rawResponse),
		hits:        make(map[string]int),
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Start serves the router on a local port until the test ends and returns
// the base URL.
func (s *Server) Start(tb testing.TB) string {
	tb.Helper()
	app := httptest.NewServer(s.Router())
	tb.Cleanup(app.Close)
	return app.URL
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/auth/me", s.handleMe)

		r.Get("/grades", s.handleListGrades)
		r.Post("/grades", s.handleCreateGrade)
		r.Put("/grades/{gradeId}", s.handleUpdateGrade)
		r.Delete("/grades/{gradeId}", s.handleDeleteGrade)
		r.Put("/grades/{gradeId}/students/order", s.handleReorderStudents)

		r.Get("/students", s.handleListStudents)
		r.Post("/students", s.handleCreateStudent)
		r.Post("/students/delete-permanently", s.handleDeletePermanently)
		r.Put("/students/{studentId}", s.handleUpdateStudent)
		r.Delete("/students/{studentId}", s.handleDeleteStudent)
		r.Patch("/students/{studentId}/include", s.handleIncludeStudent)
		r.Post("/students/{studentId}/transfer", s.handleTransferStudent)

		r.Get("/students/{studentId}/files", s.handleListFiles)
		r.Post("/students/{studentId}/files", s.handleUploadFiles)
		r.Get("/students/{studentId}/files/stats", s.handleFileStats)
		r.Get("/files/{fileId}/download", s.handleDownloadFile)
		r.Patch("/files/{fileId}", s.handleRenameFile)
		r.Delete("/files/{fileId}", s.handleDeleteFile)

		r.Get("/students/{studentId}/occurrences", s.handleListOccurrences)
		r.Post("/students/{studentId}/occurrences", s.handleCreateOccurrence)
		r.Put("/occurrences/{occurrenceId}", s.handleUpdateOccurrence)
		r.Delete("/occurrences/{occurrenceId}", s.handleDeleteOccurrence)
	})

	return r
}

// Fixtures and controls

func (s *Server) AddGrade(grade model.Grade) model.Grade {
	s.mu.Lock()
	defer s.mu.Unlock()
	if grade.ID == "" {
		grade.ID = newID()
	}
	s.grades = append(s.grades, grade)
	return grade
}

func (s *Server) AddStudent(student model.Student) model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	if student.ID == "" {
		student.ID = newID()
	}
	if grade, ok := s.findGrade(student.GradeID); ok {
		student.GradeName = grade.Name
		student.GradeTime = grade.Time
	}
	s.students = append(s.students, student)
	return student
}

func (s *Server) AddFile(file model.StudentFile, content []byte) model.StudentFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if file.ID == "" {
		file.ID = newID()
	}
	file.Size = model.ByteSize(len(content))
	if file.UploadDate.IsZero() {
		file.UploadDate = s.now()
	}
	s.files = append(s.files, file)
	s.contents[file.ID] = content
	return file
}

func (s *Server) AddOccurrence(occurrence model.Occurrence) model.Occurrence {
	s.mu.Lock()
	defer s.mu.Unlock()
	if occurrence.ID == "" {
		occurrence.ID = newID()
	}
	if occurrence.CreatedAt.IsZero() {
		occurrence.CreatedAt = s.now()
	}
	s.occurrences = append(s.occurrences, occurrence)
	return occurrence
}

// Fail makes the next call of op answer with status.
func (s *Server) Fail(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = status
}

// Respond makes every call of op answer with the given raw body.
func (s *Server) Respond(op string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[op] = rawResponse{status: status, body: body}
}

// Hits reports how many requests reached op.
func (s *Server) Hits(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[op]
}

func (s *Server) Students() []model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Student(nil), s.students...)
}

// begin records a hit for op and applies injected failures and raw
// responses. It reports whether the handler should continue.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, op string) bool {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-r.Context().Done():
			return false
		}
	}
	s.mu.Lock()
	s.hits[op]++
	status, failing := s.failures[op]
	delete(s.failures, op)
	raw, hasRaw := s.raw[op]
	s.mu.Unlock()

	if failing {
		s.fail(w, status, "injected_failure")
		return false
	}
	if hasRaw {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(raw.status)
		_, _ = io.WriteString(w, raw.body)
		return false
	}
	return true
}

// Auth

type userKey struct{}

var demoUser = model.User{ID: "u-1", Name: "Secretaria", Email: "secretaria@escola.local"}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && bearerToken(r.Header.Get("Authorization")) != s.Token {
			s.fail(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, demoUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "session.login") {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Password != s.Password {
		s.fail(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	token := s.Token
	if token == "" {
		token = "session-" + newID().String()
	}
	user := demoUser
	user.Email = req.Email
	s.respond(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "session.me") {
		return
	}
	user, _ := r.Context().Value(userKey{}).(model.User)
	s.respond(w, http.StatusOK, user)
}

// Grades

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "grades.list") {
		return
	}
	s.mu.Lock()
	grades := make([]model.Grade, 0, len(s.grades))
	for _, grade := range s.grades {
		grade.StudentCount = s.activeCount(grade.ID)
		grades = append(grades, grade)
	}
	s.mu.Unlock()
	s.respond(w, http.StatusOK, grades)
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "grades.create") {
		return
	}
	var req model.GradeInput
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	s.mu.Lock()
	grade := model.Grade{ID: newID(), Name: strings.TrimSpace(req.Name), Time: req.Time}
	s.grades = append(s.grades, grade)
	s.mu.Unlock()
	s.respond(w, http.StatusCreated, grade)
}

func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "grades.update") {
		return
	}
	var req model.GradeInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	id := model.ID(chi.URLParam(r, "gradeId"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.grades {
		if s.grades[i].ID == id {
			s.grades[i].Name = strings.TrimSpace(req.Name)
			s.grades[i].Time = req.Time
			grade := s.grades[i]
			grade.StudentCount = s.activeCount(id)
			s.respond(w, http.StatusOK, grade)
			return
		}
	}
	s.fail(w, http.StatusNotFound, "grade_not_found")
}

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "grades.delete") {
		return
	}
	id := model.ID(chi.URLParam(r, "gradeId"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.grades {
		if s.grades[i].ID == id {
			s.grades = append(s.grades[:i], s.grades[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.fail(w, http.StatusNotFound, "grade_not_found")
}

func (s *Server) handleReorderStudents(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.reorder") {
		return
	}
	var req struct {
		StudentIDs []model.ID `json:"studentIds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	gradeID := model.ID(chi.URLParam(r, "gradeId"))
	s.mu.Lock()
	for position, id := range req.StudentIDs {
		for i := range s.students {
			if s.students[i].ID == id && s.students[i].GradeID == gradeID {
				s.students[i].Order = position + 1
			}
		}
	}
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]bool{"reordered": true})
}

// Students

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.list") {
		return
	}
	gradeID := model.ID(r.URL.Query().Get("gradeId"))
	s.mu.Lock()
	students := make([]model.Student, 0, len(s.students))
	for _, student := range s.students {
		if gradeID == "" || student.GradeID == gradeID {
			students = append(students, student)
		}
	}
	s.mu.Unlock()
	if gradeID != "" {
		sort.SliceStable(students, func(i, j int) bool { return students[i].Order < students[j].Order })
	}
	s.respond(w, http.StatusOK, students)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.create") {
		return
	}
	var req model.StudentInput
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	grade, ok := s.findGrade(req.GradeID)
	if !ok {
		s.fail(w, http.StatusNotFound, "grade_not_found")
		return
	}
	student := model.Student{
		ID:        newID(),
		Name:      strings.TrimSpace(req.Name),
		GradeID:   grade.ID,
		GradeName: grade.Name,
		GradeTime: grade.Time,
		Order:     s.activeCount(grade.ID) + 1,
	}
	s.students = append(s.students, student)
	s.respond(w, http.StatusCreated, student)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.update") {
		return
	}
	var req model.StudentInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.findStudent(model.ID(chi.URLParam(r, "studentId")))
	if !ok {
		s.fail(w, http.StatusNotFound, "student_not_found")
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		student.Name = name
	}
	if req.GradeID != "" {
		grade, ok := s.findGrade(req.GradeID)
		if !ok {
			s.fail(w, http.StatusNotFound, "grade_not_found")
			return
		}
		student.GradeID, student.GradeName, student.GradeTime = grade.ID, grade.Name, grade.Time
	}
	s.respond(w, http.StatusOK, *student)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.delete") {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.findStudent(model.ID(chi.URLParam(r, "studentId")))
	if !ok {
		s.fail(w, http.StatusNotFound, "student_not_found")
		return
	}
	now := s.now()
	student.Excluded = true
	student.ExclusionDate = &now
	if s.DeleteReturnsStudent {
		s.respond(w, http.StatusOK, *student)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIncludeStudent(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.include") {
		return
	}
	var req struct {
		Date time.Time `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.findStudent(model.ID(chi.URLParam(r, "studentId")))
	if !ok {
		s.fail(w, http.StatusNotFound, "student_not_found")
		return
	}
	student.Excluded = false
	student.ExclusionDate = nil
	s.respond(w, http.StatusOK, *student)
}

func (s *Server) handleTransferStudent(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.transfer") {
		return
	}
	var req model.TransferInput
	if err := decodeJSON(r, &req); err != nil || req.NewGradeID == "" {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	origin, ok := s.findStudent(model.ID(chi.URLParam(r, "studentId")))
	if !ok {
		s.fail(w, http.StatusNotFound, "student_not_found")
		return
	}
	destination, ok := s.findGrade(req.NewGradeID)
	if !ok {
		s.fail(w, http.StatusNotFound, "grade_not_found")
		return
	}
	if origin.GradeID == destination.ID {
		s.fail(w, http.StatusConflict, "same_grade")
		return
	}
	now := s.now()
	oldInfo := &model.GradeInfo{ID: origin.GradeID, Name: origin.GradeName, Time: origin.GradeTime}
	newInfo := &model.GradeInfo{ID: destination.ID, Name: destination.Name, Time: destination.Time}

	origin.Transferred = true
	origin.TransferDate = &now
	origin.OldGradeInfo = oldInfo
	origin.NewGradeInfo = newInfo
	result := *origin

	s.students = append(s.students, model.Student{
		ID:           newID(),
		Name:         origin.Name,
		GradeID:      destination.ID,
		GradeName:    destination.Name,
		GradeTime:    destination.Time,
		Order:        s.activeCount(destination.ID) + 1,
		TransferDate: &now,
		OldGradeInfo: oldInfo,
		NewGradeInfo: newInfo,
	})
	s.respond(w, http.StatusOK, result)
}

func (s *Server) handleDeletePermanently(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "students.delete_permanently") {
		return
	}
	var req struct {
		IDs []model.ID `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	remove := make(map[model.ID]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		remove[id] = struct{}{}
	}
	s.mu.Lock()
	kept := s.students[:0]
	deleted := 0
	for _, student := range s.students {
		if _, ok := remove[student.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, student)
	}
	s.students = kept
	s.mu.Unlock()
	s.respond(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Files

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "files.list") {
		return
	}
	studentID := model.ID(chi.URLParam(r, "studentId"))
	s.mu.Lock()
	files := s.filesOf(studentID)
	s.mu.Unlock()
	s.respond(w, http.StatusOK, files)
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "files.upload") {
		return
	}
	studentID := model.ID(chi.URLParam(r, "studentId"))
	uploaded, ok := s.storeUploads(w, r, studentID)
	if !ok {
		return
	}
	switch s.UploadShape {
	case UploadShapeObject:
		s.respond(w, http.StatusCreated, uploaded[0])
	case UploadShapeList:
		s.respond(w, http.StatusCreated, uploaded)
	default:
		s.respond(w, http.StatusCreated, map[string]interface{}{"uploadedFiles": uploaded})
	}
}

func (s *Server) handleFileStats(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "files.stats") {
		return
	}
	studentID := model.ID(chi.URLParam(r, "studentId"))
	s.mu.Lock()
	stats := model.FileStats{}
	for _, file := range s.filesOf(studentID) {
		stats.TotalFiles++
		stats.TotalSize += file.Size
		uploaded := file.UploadDate
		if stats.LastUpload == nil || uploaded.After(*stats.LastUpload) {
			stats.LastUpload = &uploaded
		}
	}
	s.mu.Unlock()
	s.respond(w, http.StatusOK, stats)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "files.download") {
		return
	}
	id := model.ID(chi.URLParam(r, "fileId"))
	s.mu.Lock()
	file, ok := s.findFile(id)
	var content []byte
	if ok {
		content = s.contents[id]
	}
	s.mu.Unlock()
	if !ok {
		s.fail(w, http.StatusNotFound, "file_not_found")
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.OriginalName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "files.rename") {
		return
	}
	var req struct {
		OriginalName string `json:"originalName"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.OriginalName) == "" {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.findFile(model.ID(chi.URLParam(r, "fileId")))
	if !ok {
		s.fail(w, http.StatusNotFound, "file_not_found")
		return
	}
	file.OriginalName = strings.TrimSpace(req.OriginalName)
	s.respond(w, http.StatusOK, *file)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "files.delete") {
		return
	}
	id := model.ID(chi.URLParam(r, "fileId"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.files {
		if s.files[i].ID == id {
			s.files = append(s.files[:i], s.files[i+1:]...)
			delete(s.contents, id)
			s.respond(w, http.StatusOK, map[string]bool{"deleted": true})
			return
		}
	}
	s.fail(w, http.StatusNotFound, "file_not_found")
}

// Occurrences

func (s *Server) handleListOccurrences(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "occurrences.list") {
		return
	}
	studentID := model.ID(chi.URLParam(r, "studentId"))
	s.mu.Lock()
	occurrences := make([]model.Occurrence, 0)
	for _, occurrence := range s.occurrences {
		if occurrence.StudentID == studentID {
			occurrences = append(occurrences, occurrence)
		}
	}
	s.mu.Unlock()
	s.respond(w, http.StatusOK, occurrences)
}

func (s *Server) handleCreateOccurrence(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "occurrences.create") {
		return
	}
	studentID := model.ID(chi.URLParam(r, "studentId"))
	occurrence := model.Occurrence{ID: newID(), StudentID: studentID, CreatedAt: s.now()}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		files, ok := s.storeUploads(w, r, studentID)
		if !ok {
			return
		}
		occurrence.Observation = r.FormValue("observation")
		occurrence.Files = files
	} else {
		var req model.OccurrenceInput
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, http.StatusBadRequest, "invalid_request")
			return
		}
		occurrence.Observation = req.Observation
	}
	if strings.TrimSpace(occurrence.Observation) == "" {
		s.fail(w, http.StatusBadRequest, "observation_required")
		return
	}
	s.mu.Lock()
	s.occurrences = append(s.occurrences, occurrence)
	s.mu.Unlock()
	s.respond(w, http.StatusCreated, occurrence)
}

func (s *Server) handleUpdateOccurrence(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "occurrences.update") {
		return
	}
	var req model.OccurrenceInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_request")
		return
	}
	id := model.ID(chi.URLParam(r, "occurrenceId"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.occurrences {
		if s.occurrences[i].ID == id {
			s.occurrences[i].Observation = req.Observation
			s.respond(w, http.StatusOK, s.occurrences[i])
			return
		}
	}
	s.fail(w, http.StatusNotFound, "occurrence_not_found")
}

func (s *Server) handleDeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "occurrences.delete") {
		return
	}
	id := model.ID(chi.URLParam(r, "occurrenceId"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.occurrences {
		if s.occurrences[i].ID == id {
			s.occurrences = append(s.occurrences[:i], s.occurrences[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.fail(w, http.StatusNotFound, "occurrence_not_found")
}

// storeUploads takes s.mu itself. The find helpers below expect the caller
// to hold it.
func (s *Server) storeUploads(w http.ResponseWriter, r *http.Request, studentID model.ID) ([]model.StudentFile, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid_multipart")
		return nil, false
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.fail(w, http.StatusBadRequest, "files_required")
		return nil, false
	}
	uploaded := make([]model.StudentFile, 0, len(headers))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			s.fail(w, http.StatusBadRequest, "invalid_file")
			return nil, false
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			s.fail(w, http.StatusBadRequest, "invalid_file")
			return nil, false
		}
		record := model.StudentFile{
			ID:           newID(),
			StudentID:    studentID,
			OriginalName: header.Filename,
			MimeType:     header.Header.Get("Content-Type"),
			Size:         model.ByteSize(len(content)),
			UploadDate:   s.now(),
		}
		s.files = append(s.files, record)
		s.contents[record.ID] = content
		uploaded = append(uploaded, record)
	}
	return uploaded, true
}

func (s *Server) findGrade(id model.ID) (model.Grade, bool) {
	for _, grade := range s.grades {
		if grade.ID == id {
			return grade, true
		}
	}
	return model.Grade{}, false
}

func (s *Server) findStudent(id model.ID) (*model.Student, bool) {
	for i := range s.students {
		if s.students[i].ID == id {
			return &s.students[i], true
		}
	}
	return nil, false
}

func (s *Server) findFile(id model.ID) (*model.StudentFile, bool) {
	for i := range s.files {
		if s.files[i].ID == id {
			return &s.files[i], true
		}
	}
	return nil, false
}

func (s *Server) filesOf(studentID model.ID) []model.StudentFile {
	files := make([]model.StudentFile, 0)
	for _, file := range s.files {
		if file.StudentID == studentID {
			files = append(files, file)
		}
	}
	return files
}

func (s *Server) activeCount(gradeID model.ID) int {
	count := 0
	for _, student := range s.students {
		if student.GradeID == gradeID && student.Status() == model.StudentActive {
			count++
		}
	}
	return count
}

func (s *Server) respond(w http.ResponseWriter, status int, data interface{}) {
	if s.Envelope {
		writeJSON(w, status, map[string]interface{}{"success": true, "data": data})
		return
	}
	writeJSON(w, status, data)
}

func (s *Server) fail(w http.ResponseWriter, status int, code string) {
	if s.Envelope {
		writeJSON(w, status, map[string]interface{}{"success": false, "message": code})
		return
	}
	writeError(w, status, code)
}

func newID() model.ID {
	return model.ID(uuid.NewString())
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
