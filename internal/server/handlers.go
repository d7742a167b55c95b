package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("department", req.User.Department), zap.String("role", req.User.Role))
	response, err := s.engine.Query(r.Context(), &req)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleUpsertRecords(w http.ResponseWriter, r *http.Request) {
	var records []*models.VectorRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(records) == 0 {
		s.respondError(w, http.StatusBadRequest, "no records provided")
		return
	}
	s.logger.Debug("upsert request", zap.Int("records", len(records)))
	if err := s.store.Upsert(r.Context(), records); err != nil {
		s.logger.Error("upsert failed", zap.Error(err))
		s.respondError(w, upsertStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "upserted", "count": len(records)})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	s.logger.Debug("delete document request", zap.String("document_id", docID))
	if err := s.store.Delete(r.Context(), docID); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, upsertStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": s.store.Size(),
		"breaker": s.breaker.State().String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upsertStatus maps persistence failures to 503 (the store itself is
// unhealthy) and everything else to 400.
func upsertStatus(err error) int {
	var perr *vector.PersistenceError
	if errors.As(err, &perr) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
