package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/assembler"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/gateway"
	"github.com/hyperjump/kotae/internal/integrity"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *vector.Store) {
	t.Helper()
	store := vector.NewStore("", nil)
	breaker := gateway.NewBreaker(0, 0, 0)
	gen := &provider.MockGenerator{
		Response: `{"answer": "Employees get 25 days of leave.", "confidence": "High",
			"citations": [{"source_title": "HR Policy", "quote": "25 days of paid leave"}]}`,
	}
	gw := gateway.New(gen, provider.NewMockEmbedder(8), embedding.NewCache(16), breaker, time.Second, nil)
	engine := rag.NewEngine(store, gw, assembler.New(nil, 0), integrity.NewVerifier(nil), nil, 8, nil)
	srv := NewServer(engine, store, breaker, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
	return srv, store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleUpsertAndQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	records := []*models.VectorRecord{{
		ID:         "hr-1",
		DocumentID: "hr-policy",
		Title:      "HR Policy",
		Text:       "Employees receive 25 days of paid leave annually.",
		Embedding:  []float32{1, 0, 0, 0, 0, 0, 0, 0},
	}}
	rec := doJSON(t, router, http.MethodPut, "/api/v1/records", records)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/query", models.QueryRequest{
		Query: "how much leave?",
		User:  models.UserProfile{Department: "Eng", Role: "member"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer == "" || len(resp.Sources) != 1 {
		t.Errorf("response: %+v", resp)
	}
}

func TestHandleQuery_EmptyQueryRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/query", models.QueryRequest{Query: " "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status=%d, want 400", rec.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	srv, store := newTestServer(t)
	router := srv.Router()
	records := []*models.VectorRecord{
		{ID: "a", DocumentID: "d1", Embedding: []float32{1, 0}},
		{ID: "b", DocumentID: "d2", Embedding: []float32{0, 1}},
	}
	doJSON(t, router, http.MethodPut, "/api/v1/records", records)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/documents/d1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if store.Size() != 1 {
		t.Errorf("store size=%d after delete, want 1", store.Size())
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["breaker"] != "closed" {
		t.Errorf("breaker=%v", body["breaker"])
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status=%d", rec.Code)
	}
}
