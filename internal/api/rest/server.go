package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/gate"
)

// ComplianceGate is the slice of the gate service the API depends on.
type ComplianceGate interface {
	Intercept(ctx context.Context, req gate.InterceptRequest) (*gate.InterceptResult, error)
	Review(ctx context.Context, approvalID uuid.UUID, decision compliance.ApprovalStatus, reviewerID, notes string) (*compliance.Approval, error)
}

// ReportGenerator produces audit reports on demand.
type ReportGenerator interface {
	Generate(ctx context.Context, reportType audit.ReportType, start, end time.Time, generatedBy string) (*audit.Report, error)
}

// Pinger reports backing-store liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the compliance gate and reporting over HTTP.
type Server struct {
	gate     ComplianceGate
	reporter ReportGenerator
	pinger   Pinger
	validate *validator.Validate
	logger   *zap.Logger
}

func NewServer(g ComplianceGate, reporter ReportGenerator, pinger Pinger, logger *zap.Logger) *Server {
	return &Server{
		gate:     g,
		reporter: reporter,
		pinger:   pinger,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes builds the route table. Middleware is applied by the caller.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/intercept", s.handleIntercept)
	mux.HandleFunc("POST /api/v1/approvals/{id}/review", s.handleReview)
	mux.HandleFunc("GET /api/v1/reports/compliance", s.handleReport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		s.logger.Error("unhandled error", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorEnvelope{
			Error: errorBody{Code: "INTERNAL_ERROR", Message: "An internal error occurred"},
		})
		return
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", appErr.Code), zap.Error(err))
	}
	s.writeJSON(w, errors.GetStatusCode(err), errorEnvelope{
		Error: errorBody{Code: appErr.Code, Message: appErr.Message},
	})
}

// writeValidationError flattens validator.ValidationErrors into a
// per-field message map.
func (s *Server) writeValidationError(w http.ResponseWriter, err error) {
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], fe.Tag())
		}
	}
	s.writeJSON(w, http.StatusBadRequest, errorEnvelope{
		Error: errorBody{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Fields:  fields,
		},
	})
}

func (s *Server) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
