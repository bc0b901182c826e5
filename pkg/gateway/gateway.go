package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phaiel/weaveclassify/internal/metrics"
	"github.com/phaiel/weaveclassify/pkg/loader"
	"github.com/phaiel/weaveclassify/pkg/vectorindex"
	"github.com/phaiel/weaveclassify/pkg/weave"
)

// Classifier is the subset of *classifier.Classifier the Gateway needs,
// narrowed for testability.
type Classifier interface {
	Classify(ctx context.Context, req weave.Request) (weave.Response, error)
	Snapshot() *vectorindex.Snapshot
}

// Reloader is the subset of *loader.Loader the Gateway needs.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Gateway wires the Classifier and Loader to HTTP, applying a per-request
// deadline to /classify and /reload-patterns and a bounded-inflight
// backpressure limit to /classify.
type Gateway struct {
	classifier     Classifier
	reloader       Reloader
	logger         *zap.Logger
	metrics        *metrics.Registry
	requestTimeout time.Duration
	inflight       chan struct{}
	startedAt      time.Time
}

// New builds a Gateway. maxInflight bounds concurrent /classify requests;
// a request arriving once that bound is saturated receives 503 rather than
// queuing indefinitely. reg may be nil, in which case classification and
// reload outcomes are not recorded anywhere.
func New(c Classifier, r Reloader, logger *zap.Logger, reg *metrics.Registry, requestTimeout time.Duration, maxInflight int) *Gateway {
	return &Gateway{
		classifier:     c,
		reloader:       r,
		logger:         logger,
		metrics:        reg,
		requestTimeout: requestTimeout,
		inflight:       make(chan struct{}, maxInflight),
		startedAt:      time.Now(),
	}
}

// Router builds the chi router exposing /health, /status, /classify, and
// /reload-patterns.
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/status", g.handleStatus)
	r.Post("/classify", g.handleClassify)
	r.Post("/reload-patterns", g.handleReload)

	return r
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponseDTO{Status: "ok"})
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(g.startedAt).Seconds()

	snap := g.classifier.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusOK, statusResponseDTO{Status: "empty", UptimeSeconds: uptime})
		return
	}
	writeJSON(w, http.StatusOK, statusResponseDTO{
		Status:          "ready",
		PatternCount:    snap.Size(),
		VectorDim:       snap.Dimension,
		ModelDescriptor: snap.ModelDescriptor,
		SnapshotID:      snap.ID,
		UptimeSeconds:   uptime,
	})
}

func (g *Gateway) handleClassify(w http.ResponseWriter, r *http.Request) {
	select {
	case g.inflight <- struct{}{}:
		defer func() { <-g.inflight }()
	default:
		g.writeClassifyFailure(w, uuid.NewString(), weave.ErrorCodeOverloaded)
		return
	}

	ctx := r.Context()
	if g.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.requestTimeout)
		defer cancel()
	}

	var reqDTO classifyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, weave.KindInputInvalid, "malformed request body: "+err.Error())
		return
	}
	if !reqDTO.validate() {
		g.writeClassifyFailure(w, uuid.NewString(), weave.ErrorCodeInputInvalid)
		return
	}

	resp, err := g.classifier.Classify(ctx, reqDTO.toRequest())
	if err != nil {
		if g.logger != nil {
			g.logger.Error("classify failed unexpectedly", zap.Error(err))
		}
		g.writeClassifyFailure(w, uuid.NewString(), weave.ErrorCodeSearchFailure)
		return
	}

	status := http.StatusOK
	if resp.Status == weave.StatusError {
		status = statusForErrorCode(resp.ErrorMessage)
	}
	if g.metrics != nil {
		g.metrics.ObserveClassification(string(resp.Status), resp.ProcessingTimeMs)
	}
	writeJSON(w, status, toResponseDTO(resp))
}

// writeClassifyFailure responds to a request the Classifier never answered
// with a Response: rejected for backpressure, or for an out-of-range field,
// before Classify was called, or a Classify call that returned an
// unexpected error (logged by the caller; only the error code is sent). It
// mirrors the classifyResponseDTO shape a Classify-level failure would
// produce, so a caller always gets the same error contract regardless of
// which layer rejected the request.
func (g *Gateway) writeClassifyFailure(w http.ResponseWriter, requestID, code string) {
	status := statusForErrorCode(code)
	if g.metrics != nil {
		g.metrics.ObserveClassification(string(weave.StatusError), 0)
	}
	writeJSON(w, status, classifyResponseDTO{
		RequestID:    requestID,
		Status:       string(weave.StatusError),
		ErrorMessage: code,
	})
}

func (g *Gateway) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if g.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.requestTimeout)
		defer cancel()
	}

	if err := g.reloader.Reload(ctx); err != nil {
		if g.metrics != nil {
			g.metrics.ObserveReload("failure")
		}
		g.writeKindError(w, err)
		return
	}
	if g.metrics != nil {
		g.metrics.ObserveReload("success")
	}

	snap := g.classifier.Snapshot()
	count := 0
	if snap != nil {
		count = snap.Size()
	}
	writeJSON(w, http.StatusOK, reloadResponseDTO{Status: "reloaded", PatternCount: count})
}

// writeKindError maps a *weave.Error's Kind to the HTTP status that best
// describes it. It is used only by the reload path: reload failures
// (structural, model, or dimension validation problems) are genuine Go
// errors rather than the classifyResponseDTO-shaped outcomes Classify
// produces.
func (g *Gateway) writeKindError(w http.ResponseWriter, err error) {
	kind, ok := weave.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, weave.KindSearchFailure, err.Error())
		return
	}

	status := statusForKind(kind)
	if g.logger != nil && status >= http.StatusInternalServerError {
		g.logger.Error("request failed", zap.String("kind", kind.String()), zap.Error(err))
	}
	writeError(w, status, kind, err.Error())
}

func statusForKind(kind weave.Kind) int {
	switch kind {
	case weave.KindInputInvalid:
		return http.StatusBadRequest
	case weave.KindIndexEmpty:
		return http.StatusServiceUnavailable
	case weave.KindEmbeddingFailure:
		return http.StatusInternalServerError
	case weave.KindSearchFailure:
		return http.StatusInternalServerError
	case weave.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	case weave.KindOverloaded:
		return http.StatusServiceUnavailable
	case weave.KindLoadFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// statusForErrorCode maps a classifyResponseDTO.ErrorMessage code to the
// HTTP status the external interface contract assigns it.
func statusForErrorCode(code string) int {
	switch code {
	case weave.ErrorCodeInputInvalid, weave.ErrorCodeEmptyText:
		return http.StatusBadRequest
	case weave.ErrorCodeIndexEmpty, weave.ErrorCodeOverloaded:
		return http.StatusServiceUnavailable
	case weave.ErrorCodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case weave.ErrorCodeEmbeddingFailure, weave.ErrorCodeSearchFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind weave.Kind, message string) {
	writeJSON(w, status, errorResponseDTO{Error: message, Kind: kind.String()})
}

// compile-time assertions that the production types satisfy the narrowed
// interfaces Gateway depends on.
var (
	_ Reloader = (*loader.Loader)(nil)
)
