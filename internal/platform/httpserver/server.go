package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	intake "herald/contexts/newsletter-production/content-intake-service"
	pipeline "herald/contexts/newsletter-production/pipeline-service"
	pipelineerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
	pipelinehttp "herald/contexts/newsletter-production/pipeline-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "herald/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	pipeline pipeline.Module
	intake   intake.Module
}

func New(
	pipelineModule pipeline.Module,
	intakeModule intake.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		pipeline: pipelineModule,
		intake:   intakeModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/pipeline/runs", s.handleTriggerRun)
	s.mux.HandleFunc("GET /v1/campaigns/{date}", s.handleGetCampaign)
	s.mux.HandleFunc("POST /v1/intake/cycles", s.handleRunIntake)
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req pipelinehttp.TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePipelineError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON")
		return
	}

	resp, err := s.pipeline.Handler.TriggerRunHandler(r.Context(), req)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	resp, err := s.pipeline.Handler.GetCampaignHandler(r.Context(), date)
	if err != nil {
		writePipelineDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunIntake(w http.ResponseWriter, r *http.Request) {
	report, err := s.intake.Service.FetchAndScore(r.Context())
	if err != nil {
		writePipelineError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"feeds_fetched": report.FeedsFetched,
			"items_seen":    report.ItemsSeen,
			"posts_stored":  report.PostsStored,
			"skipped":       report.Skipped,
			"failures":      report.Failures,
		},
	})
}

func writePipelineDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipelineerrors.ErrInvalidDate):
		writePipelineError(w, http.StatusBadRequest, "INVALID_DATE", err.Error())
	case errors.Is(err, pipelineerrors.ErrCampaignNotFound):
		writePipelineError(w, http.StatusNotFound, "CAMPAIGN_NOT_FOUND", err.Error())
	case errors.Is(err, pipelineerrors.ErrCampaignAlreadySent):
		writePipelineError(w, http.StatusConflict, "CAMPAIGN_ALREADY_SENT", err.Error())
	case errors.Is(err, pipelineerrors.ErrNothingGenerated):
		writePipelineError(w, http.StatusUnprocessableEntity, "NOTHING_GENERATED", err.Error())
	default:
		writePipelineError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func writePipelineError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pipelinehttp.ErrorEnvelope{
		Status: "error",
		Error: pipelinehttp.ErrorBody{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
