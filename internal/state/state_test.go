package state

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"chamada/internal/apitest"
	"chamada/internal/auth"
	"chamada/internal/clients"
	"chamada/internal/events"
	"chamada/internal/model"
)

func newBackend(t *testing.T) (*apitest.Server, *clients.Clients) {
	t.Helper()
	srv := apitest.New()
	c, err := clients.New(clients.Options{BaseURL: srv.Start(t), Tokens: auth.NewMemoryStore("")})
	if err != nil {
		t.Fatalf("new clients: %v", err)
	}
	t.Cleanup(c.Close)
	return srv, c
}

// stubStudents lets a test decide what each backend call returns.
type stubStudents struct {
	list   func(ctx context.Context, gradeID model.ID) ([]model.Student, error)
	create func(ctx context.Context, input model.StudentInput) (model.Student, error)
	del    func(ctx context.Context, id model.ID) (*model.Student, error)
}

var errNotStubbed = errors.New("not stubbed")

func (s *stubStudents) List(ctx context.Context, gradeID model.ID) ([]model.Student, error) {
	if s.list == nil {
		return nil, errNotStubbed
	}
	return s.list(ctx, gradeID)
}

func (s *stubStudents) Create(ctx context.Context, input model.StudentInput) (model.Student, error) {
	if s.create == nil {
		return model.Student{}, errNotStubbed
	}
	return s.create(ctx, input)
}

func (s *stubStudents) Update(context.Context, model.ID, model.StudentInput) (model.Student, error) {
	return model.Student{}, errNotStubbed
}

func (s *stubStudents) Delete(ctx context.Context, id model.ID) (*model.Student, error) {
	if s.del == nil {
		return nil, errNotStubbed
	}
	return s.del(ctx, id)
}

func (s *stubStudents) Include(context.Context, model.ID, time.Time) (model.Student, error) {
	return model.Student{}, errNotStubbed
}

func (s *stubStudents) Transfer(context.Context, model.ID, model.TransferInput) (model.Student, error) {
	return model.Student{}, errNotStubbed
}

func (s *stubStudents) Reorder(context.Context, model.ID, []model.ID) error {
	return errNotStubbed
}

func (s *stubStudents) DeletePermanently(context.Context, []model.ID) error {
	return errNotStubbed
}

func seedStudents(srv *apitest.Server, gradeID model.ID, names ...string) []model.Student {
	students := make([]model.Student, 0, len(names))
	for i, name := range names {
		students = append(students, srv.AddStudent(model.Student{Name: name, GradeID: gradeID, Order: i + 1}))
	}
	return students
}

func TestGradesSortedByStartTime(t *testing.T) {
	srv, c := newBackend(t)
	for _, at := range []string{"10:30", "sem horário", "08:00", "09:40"} {
		srv.AddGrade(model.Grade{Name: "Turma " + at, Time: at})
	}
	grades := NewGrades(c.Grades, nil)
	if err := grades.FetchAll(context.Background()); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	sorted := grades.Sorted()
	want := []string{"08:00", "09:40", "10:30", "sem horário"}
	if len(sorted) != len(want) {
		t.Fatalf("expected %d grades, got %d", len(want), len(sorted))
	}
	for i, grade := range sorted {
		if grade.Time != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], grade.Time)
		}
	}
}

func TestGradeCreateNormalizesAndValidatesTime(t *testing.T) {
	srv, c := newBackend(t)
	grades := NewGrades(c.Grades, nil)
	ctx := context.Background()

	grade, err := grades.Create(ctx, model.GradeInput{Name: " 3º Ano ", Time: "7:5"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if grade.Time != "07:05" || grade.Name != "3º Ano" {
		t.Fatalf("unexpected grade %+v", grade)
	}

	_, err = grades.Create(ctx, model.GradeInput{Name: "Noite", Time: "25:00"})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(validationErr.Fields) != 1 || validationErr.Fields[0] != "time" {
		t.Fatalf("unexpected fields %v", validationErr.Fields)
	}
	if srv.Hits("grades.create") != 1 {
		t.Fatalf("expected invalid input to stay local, got %d requests", srv.Hits("grades.create"))
	}
	if snap := grades.Snapshot(); len(snap.Items) != 1 || snap.Err == "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestGradeUpdateAndDelete(t *testing.T) {
	srv, c := newBackend(t)
	grade := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	grades := NewGrades(c.Grades, nil)
	ctx := context.Background()
	if err := grades.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	updated, err := grades.Update(ctx, grade.ID, model.GradeInput{Name: "1º Ano B", Time: "8"})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if items := grades.Items(); items[0].Name != "1º Ano B" || items[0].Time != "08:00" || updated.Time != "08:00" {
		t.Fatalf("unexpected grades %+v", items)
	}

	srv.Fail("grades.delete", http.StatusInternalServerError)
	if err := grades.Delete(ctx, grade.ID); err == nil {
		t.Fatalf("expected delete failure")
	}
	if len(grades.Items()) != 1 {
		t.Fatalf("expected failed delete to keep the grade")
	}
	if err := grades.Delete(ctx, grade.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if snap := grades.Snapshot(); len(snap.Items) != 0 || snap.Err != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCreateKeepsServerEntity(t *testing.T) {
	api := &stubStudents{
		create: func(_ context.Context, input model.StudentInput) (model.Student, error) {
			return model.Student{ID: "srv-42", Name: "ANA SOUZA", GradeID: input.GradeID, GradeName: "1º Ano"}, nil
		},
	}
	students := NewStudents(api, "g-1", nil, nil)

	created, err := students.Create(context.Background(), model.StudentInput{Name: "ana souza"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	items := students.Items()
	if len(items) != 1 || items[0] != created {
		t.Fatalf("expected the server entity to be stored, got %+v", items)
	}
	if items[0].ID != "srv-42" || items[0].Name != "ANA SOUZA" || items[0].GradeName != "1º Ano" {
		t.Fatalf("unexpected stored student %+v", items[0])
	}
}

func TestSoftDeleteKeepsEntry(t *testing.T) {
	srv, c := newBackend(t)
	grade := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	seeded := seedStudents(srv, grade.ID, "Ana", "Bruno", "Carla")
	students := NewStudents(c.Students, grade.ID, nil, nil)
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	before := students.Items()

	if err := students.Delete(ctx, seeded[1].ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	after := students.Items()
	if len(after) != len(before) {
		t.Fatalf("expected %d students, got %d", len(before), len(after))
	}
	for i := range after {
		if after[i].ID == seeded[1].ID {
			if !after[i].Excluded || after[i].ExclusionDate == nil || after[i].Pending {
				t.Fatalf("unexpected excluded student %+v", after[i])
			}
			continue
		}
		if after[i].Excluded || after[i].ExclusionDate != nil || after[i].Name != before[i].Name {
			t.Fatalf("expected %+v to be unchanged, got %+v", before[i], after[i])
		}
	}
}

func TestSoftDeletePrefersServerDate(t *testing.T) {
	srv, c := newBackend(t)
	srv.DeleteReturnsStudent = true
	grade := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	seeded := seedStudents(srv, grade.ID, "Ana")
	students := NewStudents(c.Students, grade.ID, nil, nil)
	clientClock := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	students.now = func() time.Time { return clientClock }
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	if err := students.Delete(ctx, seeded[0].ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	got := students.Items()[0]
	if got.ExclusionDate == nil || got.ExclusionDate.Equal(clientClock) {
		t.Fatalf("expected server exclusion date, got %v", got.ExclusionDate)
	}
}

func TestSoftDeleteIsPendingUntilConfirmed(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &stubStudents{
		list: func(context.Context, model.ID) ([]model.Student, error) {
			return []model.Student{{ID: "s-1", Name: "Ana", GradeID: "g-1"}}, nil
		},
		del: func(context.Context, model.ID) (*model.Student, error) {
			close(entered)
			<-release
			return nil, nil
		},
	}
	students := NewStudents(api, "g-1", nil, nil)
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- students.Delete(ctx, "s-1") }()
	<-entered
	if got := students.Items()[0]; !got.Excluded || !got.Pending {
		t.Fatalf("expected pending exclusion, got %+v", got)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if got := students.Items()[0]; !got.Excluded || got.Pending {
		t.Fatalf("expected confirmed exclusion, got %+v", got)
	}
}

func TestSoftDeleteRevertsOnFailure(t *testing.T) {
	srv, c := newBackend(t)
	grade := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	seeded := seedStudents(srv, grade.ID, "Ana")
	students := NewStudents(c.Students, grade.ID, nil, nil)
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	srv.Fail("students.delete", http.StatusInternalServerError)
	if err := students.Delete(ctx, seeded[0].ID); err == nil {
		t.Fatalf("expected delete failure")
	}
	snap := students.Snapshot()
	if got := snap.Items[0]; got.Excluded || got.ExclusionDate != nil || got.Pending {
		t.Fatalf("expected exclusion to be reverted, got %+v", got)
	}
	if snap.Err != "injected_failure" {
		t.Fatalf("unexpected error message %q", snap.Err)
	}
}

func TestFailedFetchKeepsItems(t *testing.T) {
	srv, c := newBackend(t)
	grade := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	seedStudents(srv, grade.ID, "Ana", "Bruno")
	students := NewStudents(c.Students, grade.ID, nil, nil)
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	before := students.Items()

	srv.Fail("students.list", http.StatusBadGateway)
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("expected read failure to be swallowed, got %v", err)
	}
	snap := students.Snapshot()
	if len(snap.Items) != len(before) || snap.Items[0] != before[0] || snap.Items[1] != before[1] {
		t.Fatalf("expected stale items, got %+v", snap.Items)
	}
	if snap.Err == "" || snap.Loading {
		t.Fatalf("unexpected snapshot state %+v", snap)
	}

	srv.Respond("students.list", http.StatusOK, `{"success":true,"data":{"id":1}}`)
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("expected read failure to be swallowed, got %v", err)
	}
	if snap := students.Snapshot(); len(snap.Items) != len(before) || snap.Err != "unexpected response from server" {
		t.Fatalf("unexpected snapshot after bad shape %+v", snap)
	}
}

func TestLoadingLastsUntilEveryFetchEnds(t *testing.T) {
	release := []chan struct{}{make(chan struct{}), make(chan struct{})}
	started := make(chan struct{}, 2)
	var calls int32
	api := &stubStudents{list: func(context.Context, model.ID) ([]model.Student, error) {
		n := atomic.AddInt32(&calls, 1) - 1
		started <- struct{}{}
		<-release[n]
		return []model.Student{}, nil
	}}
	students := NewStudents(api, "g-1", nil, nil)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- students.FetchAll(context.Background()) }()
	}
	<-started
	<-started

	close(release[0])
	if err := <-done; err != nil {
		t.Fatalf("first fetch error: %v", err)
	}
	if !students.Snapshot().Loading {
		t.Fatalf("expected loading while the second fetch is running")
	}

	close(release[1])
	if err := <-done; err != nil {
		t.Fatalf("second fetch error: %v", err)
	}
	if students.Snapshot().Loading {
		t.Fatalf("expected loading to end with the last fetch")
	}
}

func TestCancelledFetchIsDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &stubStudents{
		list: func(context.Context, model.ID) ([]model.Student, error) {
			cancel()
			return []model.Student{{ID: "s-1"}}, nil
		},
	}
	students := NewStudents(api, "", nil, nil)

	if err := students.FetchAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if snap := students.Snapshot(); len(snap.Items) != 0 || snap.Loading {
		t.Fatalf("expected nothing applied, got %+v", snap)
	}
}

func TestClosedControllerDiscardsLateResults(t *testing.T) {
	var students *Students
	api := &stubStudents{
		create: func(context.Context, model.StudentInput) (model.Student, error) {
			students.Close()
			return model.Student{ID: "s-1", Name: "Ana", GradeID: "g-1"}, nil
		},
	}
	students = NewStudents(api, "g-1", nil, nil)

	if _, err := students.Create(context.Background(), model.StudentInput{Name: "Ana"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if len(students.Items()) != 0 {
		t.Fatalf("expected late result to be dropped")
	}
	if err := students.FetchAll(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func assertNames(t *testing.T, got []model.Student, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d students, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestReorderRebuildsFromListedIDs(t *testing.T) {
	srv, c := newBackend(t)
	grade := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	seeded := seedStudents(srv, grade.ID, "Ana", "Bruno", "Carla")
	students := NewStudents(c.Students, grade.ID, nil, nil)
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	order := []model.ID{seeded[2].ID, "unknown", seeded[0].ID, seeded[2].ID}
	if err := students.Reorder(ctx, "", order); err != nil {
		t.Fatalf("reorder error: %v", err)
	}
	got := students.Items()
	assertNames(t, got, "Carla", "Ana")
	if got[0].Order != 1 || got[1].Order != 2 {
		t.Fatalf("expected reordered positions, got %d and %d", got[0].Order, got[1].Order)
	}
	if srv.Hits("students.reorder") != 1 {
		t.Fatalf("expected one reorder request, got %d", srv.Hits("students.reorder"))
	}
}

func TestReorderLeavesOtherGradesInPlace(t *testing.T) {
	srv, c := newBackend(t)
	morning := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	afternoon := srv.AddGrade(model.Grade{Name: "2º Ano", Time: "13:00"})
	first := seedStudents(srv, morning.ID, "Ana", "Bruno")
	seedStudents(srv, afternoon.ID, "Eva")
	late := seedStudents(srv, morning.ID, "Carla")

	students := NewStudents(c.Students, "", nil, nil)
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if err := students.Reorder(ctx, morning.ID, []model.ID{late[0].ID, first[0].ID}); err != nil {
		t.Fatalf("reorder error: %v", err)
	}
	assertNames(t, students.Items(), "Carla", "Ana", "Eva")
}

func TestIncludeAndDeletePermanently(t *testing.T) {
	srv, c := newBackend(t)
	grade := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	seeded := seedStudents(srv, grade.ID, "Ana", "Bruno")
	students := NewStudents(c.Students, grade.ID, nil, nil)
	ctx := context.Background()
	if err := students.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	if err := students.Delete(ctx, seeded[0].ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	included, err := students.Include(ctx, seeded[0].ID, time.Now())
	if err != nil {
		t.Fatalf("include error: %v", err)
	}
	if included.Excluded || students.Items()[0].Excluded {
		t.Fatalf("expected student to be active again")
	}

	if err := students.DeletePermanently(ctx, []model.ID{seeded[1].ID}); err != nil {
		t.Fatalf("delete permanently error: %v", err)
	}
	if items := students.Items(); len(items) != 1 || items[0].ID != seeded[0].ID {
		t.Fatalf("unexpected students %+v", items)
	}
}

func TestTransferInvalidatesBothGrades(t *testing.T) {
	srv, c := newBackend(t)
	origin := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	destination := srv.AddGrade(model.Grade{Name: "2º Ano", Time: "13:00"})
	seeded := seedStudents(srv, origin.ID, "Ana")
	bus := events.NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received, unsubscribe := bus.Subscribe(ctx)
	defer unsubscribe()

	source := NewStudents(c.Students, origin.ID, bus, nil)
	if err := source.FetchAll(ctx); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	moved, err := source.Transfer(ctx, seeded[0].ID, destination.ID)
	if err != nil {
		t.Fatalf("transfer error: %v", err)
	}
	if !moved.Transferred || source.Items()[0].NewGradeInfo == nil {
		t.Fatalf("expected origin-side view, got %+v", source.Items()[0])
	}

	touched := map[string]bool{}
	for len(touched) < 2 {
		select {
		case event := <-received:
			if event.Kind != events.KindStudents || event.StudentID != seeded[0].ID.String() {
				t.Fatalf("unexpected event %+v", event)
			}
			touched[event.GradeID] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("expected invalidation for both grades, got %v", touched)
		}
	}
	if !touched[origin.ID.String()] || !touched[destination.ID.String()] {
		t.Fatalf("unexpected grades %v", touched)
	}
}

func TestWatchRefetchesOnInvalidation(t *testing.T) {
	srv, c := newBackend(t)
	grade := srv.AddGrade(model.Grade{Name: "2º Ano", Time: "13:00"})
	bus := events.NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	students := NewStudents(c.Students, grade.ID, bus, nil)
	go students.Watch(ctx, bus)

	srv.AddStudent(model.Student{Name: "Ana", GradeID: grade.ID})
	deadline := time.Now().Add(2 * time.Second)
	for len(students.Items()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected watch to refetch")
		}
		_ = bus.Publish(ctx, events.Event{Kind: events.KindStudents, GradeID: grade.ID.String()})
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	hits := srv.Hits("students.list")
	_ = bus.Publish(ctx, events.Event{Kind: events.KindStudents, GradeID: "another-grade"})
	_ = bus.Publish(ctx, events.Event{Kind: events.KindFiles, GradeID: grade.ID.String()})
	time.Sleep(50 * time.Millisecond)
	if got := srv.Hits("students.list"); got != hits {
		t.Fatalf("expected unrelated events to be ignored, got %d more fetches", got-hits)
	}
}

func TestUploadRejectsOversizedFiles(t *testing.T) {
	srv, c := newBackend(t)
	files := NewFiles(c.Files, "s-1", 10, nil)
	ctx := context.Background()

	result, err := files.Upload(ctx, clients.FileFromBytes("grande.pdf", make([]byte, 11)))
	if err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if srv.Hits("files.upload") != 0 {
		t.Fatalf("expected no request for an oversized file")
	}
	if len(files.Items()) != 0 || len(result.Uploaded) != 0 {
		t.Fatalf("expected files collection to be unchanged")
	}
	if len(result.Rejected) != 1 || !errors.Is(result.Rejected[0].Err, ErrFileTooLarge) || result.Rejected[0].Message() == "" {
		t.Fatalf("unexpected rejections %+v", result.Rejected)
	}

	result, err = files.Upload(ctx,
		clients.FileFromBytes("grande.pdf", make([]byte, 11)),
		clients.FileFromBytes("ok.txt", []byte("ok")),
	)
	if err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if srv.Hits("files.upload") != 1 || len(result.Uploaded) != 1 || len(result.Rejected) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if items := files.Items(); len(items) != 1 || items[0].OriginalName != "ok.txt" {
		t.Fatalf("unexpected files %+v", items)
	}
}

func TestFileLifecycle(t *testing.T) {
	srv, c := newBackend(t)
	srv.Envelope = true
	srv.UploadShape = apitest.UploadShapeObject
	files := NewFiles(c.Files, "s-1", 0, nil)
	ctx := context.Background()

	result, err := files.Upload(ctx, clients.FileFromBytes("laudo.txt", []byte("conteúdo")))
	if err != nil || len(result.Uploaded) != 1 {
		t.Fatalf("unexpected upload %+v, %v", result, err)
	}
	id := result.Uploaded[0].ID

	if err := files.FetchStats(ctx); err != nil {
		t.Fatalf("stats error: %v", err)
	}
	if stats := files.Stats(); stats.TotalFiles != 1 || stats.LastUpload == nil {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, err := files.Rename(ctx, id, "  "); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
	if _, err := files.Rename(ctx, id, "laudo-final.txt"); err != nil {
		t.Fatalf("rename error: %v", err)
	}
	if items := files.Items(); items[0].OriginalName != "laudo-final.txt" {
		t.Fatalf("unexpected files %+v", items)
	}

	download, err := files.Download(ctx, id)
	if err != nil {
		t.Fatalf("download error: %v", err)
	}
	download.Close()

	if err := files.Delete(ctx, id); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if len(files.Items()) != 0 {
		t.Fatalf("expected file to be removed")
	}
}

func TestOccurrences(t *testing.T) {
	srv, c := newBackend(t)
	occurrences := NewOccurrences(c.Occurrences, "s-1", 16, nil)
	ctx := context.Background()

	if _, err := occurrences.Create(ctx, model.OccurrenceInput{Observation: "  "}); err == nil {
		t.Fatalf("expected empty observation to be rejected")
	}
	_, err := occurrences.Create(ctx, model.OccurrenceInput{Observation: "Atestado"},
		clients.FileFromBytes("atestado.pdf", make([]byte, 32)))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected oversized attachment error, got %v", err)
	}
	if srv.Hits("occurrences.create") != 0 {
		t.Fatalf("expected no request")
	}

	created, err := occurrences.Create(ctx, model.OccurrenceInput{Observation: "Atestado"},
		clients.FileFromBytes("atestado.txt", []byte("repouso")))
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if len(created.Files) != 1 {
		t.Fatalf("expected attachment, got %+v", created)
	}
	if _, err := occurrences.Update(ctx, created.ID, model.OccurrenceInput{Observation: "Atestado médico"}); err != nil {
		t.Fatalf("update error: %v", err)
	}
	if items := occurrences.Items(); len(items) != 1 || items[0].Observation != "Atestado médico" {
		t.Fatalf("unexpected occurrences %+v", items)
	}

	srv.Fail("occurrences.delete", http.StatusInternalServerError)
	if err := occurrences.Delete(ctx, created.ID); err == nil {
		t.Fatalf("expected delete failure")
	}
	if len(occurrences.Items()) != 1 {
		t.Fatalf("expected pessimistic delete to keep the entry")
	}
	if err := occurrences.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if err := occurrences.FetchAll(ctx); err != nil || len(occurrences.Items()) != 0 {
		t.Fatalf("expected no occurrences, got %+v, %v", occurrences.Items(), err)
	}
}

func TestRosterJoinsStudentsToGrades(t *testing.T) {
	srv, c := newBackend(t)
	late := srv.AddGrade(model.Grade{Name: "2º Ano", Time: "13:00"})
	early := srv.AddGrade(model.Grade{Name: "1º Ano", Time: "07:30"})
	srv.AddStudent(model.Student{Name: "Bruno", GradeID: early.ID, Order: 2})
	srv.AddStudent(model.Student{Name: "Ana", GradeID: early.ID, Order: 1})
	srv.AddStudent(model.Student{Name: "Carla", GradeID: late.ID, Order: 1})

	roster := NewRoster(NewGrades(c.Grades, nil), NewStudents(c.Students, "", nil, nil))
	if err := roster.Load(context.Background()); err != nil {
		t.Fatalf("load error: %v", err)
	}
	view := roster.View()
	if len(view) != 2 || view[0].Grade.ID != early.ID || view[1].Grade.ID != late.ID {
		t.Fatalf("unexpected grade order %+v", view)
	}
	if len(view[0].Students) != 2 || view[0].Students[0].Name != "Ana" || view[0].Students[1].Name != "Bruno" {
		t.Fatalf("unexpected students %+v", view[0].Students)
	}
	if view[0].Grade.StudentCount != 2 || roster.Err() != "" {
		t.Fatalf("unexpected roster state %+v %q", view[0].Grade, roster.Err())
	}
}

func TestMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&clients.APIError{Status: 500, Message: "falha no banco"}, "falha no banco"},
		{&clients.DecodeError{Op: "grades.list", Reason: "expected a list"}, "unexpected response from server"},
		{&ValidationError{Fields: []string{"name", "time"}}, "invalid name, time"},
		{context.DeadlineExceeded, "request timed out"},
		{clients.ErrSessionExpired, "session expired, log in again"},
	}
	for _, tc := range cases {
		if got := Message(tc.err); got != tc.want {
			t.Fatalf("Message(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
