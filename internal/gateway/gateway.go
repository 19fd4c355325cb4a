// Package gateway exposes WARK's sandbox and judge coordinator over a
// stateless REST API, built directly on net/http in the shape of the
// teacher's own gateway package (Config/Server, a ServeMux, chained
// middleware) rather than its JSON-RPC/WebSocket protocol, since a
// submit-and-return execution API has no streaming surface to serve.
package gateway

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/wasm-oj/wark/internal/audit"
	"github.com/wasm-oj/wark/internal/config"
	"github.com/wasm-oj/wark/internal/judge"
	"github.com/wasm-oj/wark/internal/persistence"
	"github.com/wasm-oj/wark/internal/sandbox"
)

// Config bundles what the gateway needs to serve requests, narrowed
// from the full application config.Config plus the collaborators a
// handler can't construct for itself.
type Config struct {
	AppSecret        string
	CORSOrigins      []string
	MaxCost          uint64
	MaxMemoryMB      uint32
	JudgeMaxCost     uint64
	JudgeMaxMemoryMB uint32
	CacheDir         string
	Callback         config.CallbackRetryConfig

	Store  *persistence.Store
	Logger *slog.Logger
}

// Server holds the compiled judge schema and wiring needed by every
// route, mirroring the teacher's Server struct shape.
type Server struct {
	cfg         Config
	judgeSchema *jsonschema.Schema
	logger      *slog.Logger
}

// New builds a Server, compiling the judge request schema once so
// every /judge call reuses it instead of recompiling per request.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	schema, err := compileJudgeSchema()
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, judgeSchema: schema, logger: cfg.Logger}, nil
}

// Handler builds the full route table wrapped in the middleware chain:
// version headers, CORS, request size limit, gzip compression.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /validate", s.handleValidate)
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("POST /judge", s.handleJudge)

	var h http.Handler = mux
	h = GzipMiddleware(h)
	h = RequestSizeLimitMiddleware(10 * 1024 * 1024)(h)
	h = NewCORSMiddleware(s.cfg.CORSOrigins)(h)
	h = versionHeaders(h)
	return h
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("I am WARK."))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentInfo())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"valid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// runSubmission mirrors original_source/server/execute.rs's Submission.
type runSubmission struct {
	Wasm   string `json:"wasm"`
	Input  string `json:"input"`
	Cost   uint64 `json:"cost"`
	Memory uint32 `json:"memory"`
}

// executionResult mirrors original_source/server/execute.rs's ExecutionResult.
type executionResult struct {
	Success bool    `json:"success"`
	Cost    *uint64 `json:"cost,omitempty"`
	Memory  *uint32 `json:"memory,omitempty"`
	Stdout  *string `json:"stdout,omitempty"`
	Stderr  *string `json:"stderr,omitempty"`
	Message *string `json:"message,omitempty"`
}

func failedRun(message string) executionResult {
	return executionResult{Success: false, Message: &message}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}
	runID := uuid.NewString()

	var sub runSubmission
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failedRun("invalid submission. error reading body: "+err.Error()))
		return
	}
	if err := json.Unmarshal(body, &sub); err != nil {
		writeJSON(w, http.StatusBadRequest, failedRun("invalid submission. error parsing JSON: "+err.Error()))
		return
	}

	if sub.Cost > s.cfg.MaxCost {
		audit.Record("deny", "run", "cost limit exceeded", runID)
		writeJSON(w, http.StatusOK, failedRun("invalid cost limit"))
		return
	}
	if sub.Memory > s.cfg.MaxMemoryMB {
		audit.Record("deny", "run", "memory limit exceeded", runID)
		writeJSON(w, http.StatusOK, failedRun("invalid memory limit"))
		return
	}

	wasm, err := base64.StdEncoding.DecodeString(sub.Wasm)
	if err != nil {
		audit.Record("deny", "run", "invalid base64 wasm", runID)
		writeJSON(w, http.StatusOK, failedRun("invalid wasm"))
		return
	}

	audit.Record("allow", "run", "submission accepted", runID)

	result, runErr := sandbox.Run(r.Context(), sandbox.RunRequest{
		Module:       wasm,
		Budget:       sub.Cost,
		MemoryCeilMB: sub.Memory,
		Stdin:        sub.Input,
	}, s.logger)
	if runErr != nil {
		message := runErr.Error()
		writeJSON(w, http.StatusOK, failedRun(message))
		return
	}

	stdout := string(result.Stdout)
	stderr := string(result.Stderr)
	writeJSON(w, http.StatusOK, executionResult{
		Success: true,
		Cost:    &result.Cost,
		Memory:  &result.MemoryMB,
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
}

// judgeSubmission mirrors original_source/server/judge.rs's
// JudgeSubmission, plus the callback URL spec.md adds.
type judgeSubmission struct {
	Wasm     string       `json:"wasm"`
	Specs    []judge.Spec `json:"specs"`
	Callback string       `json:"callback,omitempty"`
}

func (s *Server) handleJudge(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}
	batchID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, judge.Results{Results: []judge.Result{
			{Success: false, Message: "invalid submission. error reading body: " + err.Error()},
		}})
		return
	}

	if err := validateJudgeBody(s.judgeSchema, body); err != nil {
		audit.Record("deny", "judge", err.Error(), batchID)
		writeJSON(w, http.StatusBadRequest, judge.Results{Results: []judge.Result{
			{Success: false, Message: "invalid submission. " + err.Error()},
		}})
		return
	}

	var sub judgeSubmission
	if err := json.Unmarshal(body, &sub); err != nil {
		writeJSON(w, http.StatusBadRequest, judge.Results{Results: []judge.Result{
			{Success: false, Message: "invalid submission. error parsing JSON: " + err.Error()},
		}})
		return
	}

	wasm, err := base64.StdEncoding.DecodeString(sub.Wasm)
	if err != nil {
		audit.Record("deny", "judge", "invalid base64 wasm", batchID)
		writeJSON(w, http.StatusOK, judge.Results{Results: []judge.Result{
			{Success: false, Message: "invalid submission. error decoding base64."},
		}})
		return
	}

	audit.Record("allow", "judge", "submission accepted", batchID)

	results := judge.RunBatch(r.Context(), wasm, sub.Specs, judge.BatchConfig{
		MaxCost:     s.cfg.JudgeMaxCost,
		MaxMemoryMB: s.cfg.JudgeMaxMemoryMB,
		CacheDir:    s.cfg.CacheDir,
	}, s.logger)

	if sub.Callback != "" && s.cfg.Store != nil {
		judge.DeliverCallback(s.cfg.Store, batchID, sub.Callback, results, s.cfg.Callback.MaxAttempts, s.logger)
	}

	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StartCallbackRetrySweep wires internal/judge's cron-scheduled retry
// sweep into the server's configured store and backoff policy. Callers
// (cmd/wark's server subcommand) are responsible for stopping the
// returned scheduler on shutdown.
func (s *Server) StartCallbackRetrySweep() *cron.Cron {
	if s.cfg.Store == nil {
		return nil
	}
	return judge.StartRetrySweep(s.cfg.Store, s.cfg.Callback, s.logger)
}
