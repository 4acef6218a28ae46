package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"chamada/internal/model"
	"chamada/internal/state"
)

type gradesAPI struct {
	err error
}

func (g *gradesAPI) List(context.Context) ([]model.Grade, error) {
	if g.err != nil {
		return nil, g.err
	}
	return []model.Grade{{ID: "g-1", Name: "1º Ano", Time: "07:30"}}, nil
}

func (g *gradesAPI) Create(context.Context, model.GradeInput) (model.Grade, error) {
	return model.Grade{}, errors.New("unused")
}

func (g *gradesAPI) Update(context.Context, model.ID, model.GradeInput) (model.Grade, error) {
	return model.Grade{}, errors.New("unused")
}

func (g *gradesAPI) Delete(context.Context, model.ID) error {
	return errors.New("unused")
}

func getHealth(t *testing.T, server *Server) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return rec.Code, body
}

func TestHealthReportsCollections(t *testing.T) {
	api := &gradesAPI{}
	grades := state.NewGrades(api, nil)
	if err := grades.FetchAll(context.Background()); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	server := NewServer(prometheus.NewRegistry(), CollectionProbe("grades", grades.Collection))

	code, body := getHealth(t, server)
	if code != http.StatusOK || body.Status != "ok" {
		t.Fatalf("expected healthy report, got %d %+v", code, body)
	}
	if len(body.Collections) != 1 || body.Collections[0].Name != "grades" || body.Collections[0].Items != 1 {
		t.Fatalf("unexpected collections %+v", body.Collections)
	}

	api.err = errors.New("connection refused")
	if err := grades.FetchAll(context.Background()); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	code, body = getHealth(t, server)
	if code != http.StatusServiceUnavailable || body.Status != "degraded" {
		t.Fatalf("expected degraded report, got %d %+v", code, body)
	}
	if body.Collections[0].Error != "connection refused" || body.Collections[0].Items != 1 {
		t.Fatalf("unexpected collection status %+v", body.Collections[0])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "chamada_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	rec := httptest.NewRecorder()
	NewServer(registry).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "chamada_test_total 1") {
		t.Fatalf("expected counter in output, got %s", rec.Body.String())
	}
}
