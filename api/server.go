// Package api exposes the ingestion and query pipelines over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fabfab/therapy-rag/corpus"
	"github.com/fabfab/therapy-rag/embeddings"
	"github.com/fabfab/therapy-rag/ingestion"
	"github.com/fabfab/therapy-rag/llm"
	"github.com/fabfab/therapy-rag/query"
	"github.com/fabfab/therapy-rag/vectorstore"
)

const snippetChars = 200

type Server struct {
	querySvc  *query.Service
	ingestSvc *ingestion.Service
	logger    *log.Logger
	handler   http.Handler
}

func NewServer(querySvc *query.Service, ingestSvc *ingestion.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{querySvc: querySvc, ingestSvc: ingestSvc, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/query", s.handleQuery)
		r.Post("/ingest", s.handleIngest)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryRequest struct {
	Question string `json:"question"`
	Category string `json:"category"`
}

type queryResponse struct {
	Answer  string        `json:"answer"`
	Sources []querySource `json:"sources"`
}

type querySource struct {
	ChunkID  string  `json:"chunkId"`
	Source   string  `json:"source"`
	Category string  `json:"category,omitempty"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type ingestResponse struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []ingestFailed `json:"failed"`
	Chunks    int            `json:"chunks"`
}

type ingestFailed struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	var filter map[string]string
	if req.Category != "" {
		filter = map[string]string{corpus.MetaCategory: req.Category}
	}

	answer, err := s.querySvc.AskFiltered(r.Context(), req.Question, filter)
	if err != nil {
		s.logger.Printf("query failed: %v", err)
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	resp := queryResponse{Answer: answer.Text, Sources: make([]querySource, 0, len(answer.Sources))}
	for _, match := range answer.Sources {
		resp.Sources = append(resp.Sources, querySource{
			ChunkID:  match.Chunk.ID.String(),
			Source:   match.Chunk.Metadata[corpus.MetaSource],
			Category: match.Chunk.Metadata[corpus.MetaCategory],
			Snippet:  snippet(match.Chunk.Content, snippetChars),
			Score:    match.Score,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Dir) == "" {
		s.writeError(w, http.StatusBadRequest, "dir is required")
		return
	}

	report, err := s.ingestSvc.Run(r.Context(), req.Dir)
	if err != nil {
		s.logger.Printf("ingestion failed: %v", err)
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	resp := ingestResponse{
		Succeeded: report.Succeeded,
		Failed:    make([]ingestFailed, 0, len(report.Failed)),
		Chunks:    report.Chunks,
	}
	for _, failure := range report.Failed {
		resp.Failed = append(resp.Failed, ingestFailed{Path: failure.Path, Error: failure.Err.Error()})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps pipeline errors onto HTTP statuses: bad parameters are the
// caller's fault, unreachable model backends are upstream failures.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vectorstore.ErrInvalidTopK):
		return http.StatusBadRequest
	case errors.Is(err, embeddings.ErrModelUnavailable), errors.Is(err, llm.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
