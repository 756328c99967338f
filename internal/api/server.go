package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"magegraph/internal/config"
	"magegraph/internal/graph"
	"magegraph/internal/metrics"
	"magegraph/internal/models"
	"magegraph/internal/render"
	"magegraph/internal/storage"
	"magegraph/internal/util"
	"magegraph/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

type studyStore interface {
	GetGraph(ctx context.Context, documentID string) (*graph.Study, error)
	ListStudies(ctx context.Context) ([]models.StudySummary, error)
}

type runStore interface {
	CreateRun(ctx context.Context, run models.ConversionRun) error
	UpdateRunStatus(ctx context.Context, runID, status, failReason string, nodeCount, edgeCount int) error
	GetRun(ctx context.Context, runID string) (models.ConversionRun, error)
	LatestRunForDocument(ctx context.Context, documentID string) (models.ConversionRun, error)
}

// workflowClient is the part of the Temporal client the API uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg       config.Config
	db        pinger
	studyRepo studyStore
	runRepo   runStore
	temporal  workflowClient
	metrics   *metrics.Registry
	logger    *slog.Logger
}

func NewServer(cfg config.Config, db *storage.DB, tc tclient.Client, reg *metrics.Registry, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		studyRepo: storage.NewStudyRepo(db),
		runRepo:   storage.NewRunRepo(db),
		temporal:  tc,
		metrics:   reg,
		logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/studies", s.handleStudies)
	mux.HandleFunc("/studies/", s.handleStudiesScoped)
	mux.HandleFunc("/runs/", s.handleRun)
	mux.Handle("/metrics", s.metrics.Handler())
	return withCORS(s.withMetrics(mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("connect: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStudies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	studies, err := s.studyRepo.ListStudies(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"studies": studies})
}

func (s *Server) handleStudiesScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/studies/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	if len(parts) == 1 && parts[0] == "upload" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleUpload(w, r)
		return
	}
	documentID := parts[0]

	if len(parts) == 2 && parts[1] == "progress" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleProgress(w, r, documentID)
		return
	}
	if len(parts) == 2 && parts[1] == "graph" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleGraph(w, r, documentID)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	if runID == "" || strings.Contains(runID, "/") {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	run, err := s.runRepo.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, util.ErrRunNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	fh, ok := firstFile(r.MultipartForm.File, "file")
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	if !util.IsXMLName(fh.Filename) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: %s", util.ErrNotXML, filepath.Base(fh.Filename)))
		return
	}

	var formats []string
	if raw := strings.TrimSpace(r.FormValue("formats")); raw != "" {
		parsed, err := render.ParseFormats(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		for _, f := range parsed {
			formats = append(formats, string(f))
		}
	}

	if err := util.EnsureDir(s.cfg.DataInRoot); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	documentID, savedPath, err := saveUploadedFile(s.cfg.DataInRoot, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	runID := uuid.NewString()
	wfID := workflows.WorkflowID(runID)
	run := models.ConversionRun{
		RunID:      runID,
		DocumentID: documentID,
		Filename:   filepath.Base(fh.Filename),
		WorkflowID: wfID,
		Status:     models.RunPending,
	}
	if err := s.runRepo.CreateRun(r.Context(), run); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	_, err = s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.StudyConvertWorkflow, workflows.StudyConvertInput{
		RunID:        runID,
		DocumentPath: savedPath,
		Formats:      formats,
	})
	if err != nil {
		_ = s.runRepo.UpdateRunStatus(r.Context(), runID, models.RunFailed, "workflow start failed: "+err.Error(), 0, 0)
		writeErr(w, http.StatusBadGateway, fmt.Errorf("start workflow: %w", err))
		return
	}
	s.logger.Info("conversion started", "run_id", runID, "document_id", documentID, "workflow_id", wfID)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":      runID,
		"document_id": documentID,
		"workflow_id": wfID,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, documentID string) {
	run, err := s.runRepo.LatestRunForDocument(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, util.ErrRunNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	var prog workflows.ConvertStatus
	resp, err := s.temporal.QueryWorkflow(r.Context(), run.WorkflowID, "", workflows.QueryGetConvertStatus)
	if err == nil {
		err = resp.Get(&prog)
	}
	if err != nil {
		// Closed or unknown workflows answer from the stored run.
		s.logger.Debug("progress query unavailable", "workflow_id", run.WorkflowID, "err", err)
		writeJSON(w, http.StatusOK, workflows.ConvertStatus{
			RunID:       run.RunID,
			DocumentID:  run.DocumentID,
			CurrentStep: run.Status,
			Status:      run.Status,
			FailReason:  run.FailReason,
			NodeCount:   run.NodeCount,
			EdgeCount:   run.EdgeCount,
			Steps:       map[string]string{},
		})
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request, documentID string) {
	format := render.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := render.ParseFormat(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		format = f
	}

	study, err := s.studyRepo.GetGraph(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, util.ErrStudyNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if format == render.FormatDOT {
		err = render.DOT(&buf, study, render.DOTOptions{LinkBase: s.cfg.GraphLinkBase})
	} else {
		err = render.Render(&buf, format, study)
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// saveUploadedFile stores the upload under its content hash, which is also
// the document ID.
func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (documentID, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.xml")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}

	documentID = fmt.Sprintf("%x", h.Sum(nil))
	finalPath := filepath.Join(dstDir, documentID+".xml")
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}
	return documentID, finalPath, nil
}

func firstFile(m map[string][]*multipart.FileHeader, preferred string) (*multipart.FileHeader, bool) {
	if v := m[preferred]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status), time.Since(start))
	})
}

// routeLabel collapses document IDs so metric label cardinality stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 1 && (parts[0] == "healthz" || parts[0] == "studies" || parts[0] == "metrics"):
		return "/" + parts[0]
	case len(parts) == 2 && parts[0] == "studies" && parts[1] == "upload":
		return "/studies/upload"
	case len(parts) == 2 && parts[0] == "runs":
		return "/runs/{runID}"
	case len(parts) == 3 && parts[0] == "studies":
		return "/studies/{documentID}/" + parts[2]
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "MG-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case status == http.StatusBadGateway:
			return apiError{
				Code:    "MG-API-5020",
				Message: "Workflow service unavailable. Retry shortly.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "MG-DB-5001",
				Message: "Database schema is not initialized. Retry after the schema is created.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "MG-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "MG-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "MG-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "MG-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "MG-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "MG-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case errors.Is(err, util.ErrNotXML):
			msg = "Only .xml documents are accepted."
		case errors.Is(err, util.ErrUnknownFormat):
			msg = "Unknown format. Use json, yaml or dot."
		case errors.Is(err, util.ErrStudyNotFound):
			msg = "No stored study for this document."
		case errors.Is(err, util.ErrRunNotFound):
			msg = "No conversion run for this document."
		case strings.Contains(raw, "no files provided"):
			msg = "No document was provided."
		case strings.Contains(raw, "parse multipart"):
			msg = "Malformed or oversized multipart upload."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
