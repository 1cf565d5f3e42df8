// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/pipeline"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schemastore"
)

// maxBodyBytes bounds request bodies; schema ingestion payloads are the
// largest legitimate request.
const maxBodyBytes = 4 << 20

// Server serves the pipeline API.
type Server struct {
	pipeline *pipeline.Pipeline
	logger   *logging.Logger
	httpSrv  *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, p *pipeline.Pipeline, logger *logging.Logger) *Server {
	s := &Server{pipeline: p, logger: logger}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/schema/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/schema/reset", s.handleReset)
	mux.HandleFunc("GET /api/tables", s.handleTables)
	mux.HandleFunc("GET /api/tables/{name}", s.handleTableSchema)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/cache/clear", s.handleCacheClear)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.logRequests(mux)
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.httpSrv.Addr).Info("api server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := s.pipeline.Health(ctx)
	status := http.StatusOK

	for _, state := range health {
		if state != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{
		"status":     statusWord(status),
		"components": health,
		"whitelist":  s.pipeline.Tables(),
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}

	return "degraded"
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req pipeline.QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.pipeline.Query(r.Context(), req)
	if err != nil {
		var detail interface{}
		if result != nil {
			detail = result
		}

		s.writeError(w, r, err, detail)

		return
	}

	if result.Rejected {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type ingestRequest struct {
	Documents []schema.Document `json:"documents"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !s.decode(w, r, &req) {
		return
	}

	if len(req.Documents) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("validation", "documents must not be empty", nil))
		return
	}

	count, err := s.pipeline.IngestSchemas(r.Context(), req.Documents)
	if err != nil {
		s.writeError(w, r, err, map[string]interface{}{"ingested": count})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ingested": count})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.ResetSchema(r.Context()); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "reset"})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	count, err := s.pipeline.SchemaCount(r.Context())
	if err != nil {
		// The whitelist is still authoritative without the store.
		count = -1
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tables":           s.pipeline.Tables(),
		"schema_documents": count,
	})
}

func (s *Server) handleTableSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	doc, err := s.pipeline.TableSchema(r.Context(), name)
	if err != nil {
		if stderrors.Is(err, schemastore.ErrDocumentNotFound) {
			writeJSON(w, http.StatusNotFound,
				errorBody("store", "no schema document for table "+name, nil))

			return
		}

		s.writeError(w, r, err, nil)

		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.CacheStats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.pipeline.ClearCache()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cleared"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("validation", "invalid request body: "+err.Error(), nil))
		return false
	}

	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypePoolExhausted:
		return http.StatusServiceUnavailable
	case errors.ErrTypeExecutionTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrTypeGeneration, errors.ErrTypeGenerationParse,
		errors.ErrTypeRetrieval, errors.ErrTypeNoRelevantSchema:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, detail interface{}) {
	status := statusFor(err)

	entry := s.logger.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"status": status,
		"type":   errors.GetType(err),
	})

	// Request-scoped failures leave shared state intact; only failures that
	// can affect other requests log at error level.
	if errors.IsRequestScoped(err) {
		entry.WithError(err).Warn("request failed")
	} else {
		entry.ErrorWithErr("request failed", err)
	}

	var suggestions []string

	var structured *errors.Error
	if stderrors.As(err, &structured) {
		suggestions = structured.Suggestions
	}

	body := errorBody(string(errors.GetType(err)), err.Error(), suggestions)
	if detail != nil {
		body["detail"] = detail
	}

	writeJSON(w, status, body)
}

func errorBody(errType, message string, suggestions []string) map[string]interface{} {
	body := map[string]interface{}{
		"error":   errType,
		"message": message,
	}

	if len(suggestions) > 0 {
		body["suggestions"] = suggestions
	}

	return body
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("handled request")
	})
}
