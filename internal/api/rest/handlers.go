package rest

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/gate"
)

type evidencePayload struct {
	Type        string   `json:"type" validate:"required,oneof=clinical_study regulatory_clearance peer_review internal_data expert_opinion"`
	Title       string   `json:"title" validate:"required"`
	Relevance   float64  `json:"relevance" validate:"gte=0,lte=1"`
	KeyFindings []string `json:"key_findings"`
	Limitations []string `json:"limitations"`
}

type claimPayload struct {
	Text     string            `json:"text" validate:"required"`
	Type     string            `json:"type" validate:"required,oneof=efficacy safety comparative economic quality_of_life"`
	Evidence []evidencePayload `json:"evidence" validate:"dive"`
}

type interceptPayload struct {
	ContentID   string         `json:"content_id" validate:"required"`
	ContentType string         `json:"content_type" validate:"required,oneof=email sms call_script marketing_material"`
	Content     string         `json:"content" validate:"required"`
	UserID      string         `json:"user_id" validate:"required"`
	SourceAddr  string         `json:"source_addr"`
	ProductName string         `json:"product_name"`
	Claims      []claimPayload `json:"claims" validate:"dive"`

	// Omitted means enforce: only an explicit false selects monitor mode.
	BlockOnViolation *bool                  `json:"block_on_violation"`
	Metadata         map[string]interface{} `json:"metadata"`
}

func (p interceptPayload) toRequest() gate.InterceptRequest {
	req := gate.InterceptRequest{
		ContentID:        p.ContentID,
		ContentType:      compliance.ContentType(p.ContentType),
		Content:          p.Content,
		UserID:           p.UserID,
		SourceAddr:       p.SourceAddr,
		ProductName:      p.ProductName,
		BlockOnViolation: p.BlockOnViolation == nil || *p.BlockOnViolation,
		Metadata:         p.Metadata,
	}
	for _, c := range p.Claims {
		sub := gate.ClaimSubmission{
			Text: c.Text,
			Type: compliance.ClaimType(c.Type),
		}
		for _, e := range c.Evidence {
			sub.Evidence = append(sub.Evidence, compliance.EvidenceDocument{
				ID:          uuid.New(),
				Type:        compliance.EvidenceType(e.Type),
				Title:       e.Title,
				Relevance:   e.Relevance,
				KeyFindings: e.KeyFindings,
				Limitations: e.Limitations,
			})
		}
		req.Claims = append(req.Claims, sub)
	}
	return req
}

func (s *Server) handleIntercept(w http.ResponseWriter, r *http.Request) {
	var payload interceptPayload
	if err := s.decode(r, &payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorEnvelope{
			Error: errorBody{Code: "MALFORMED_BODY", Message: "Request body is not valid JSON"},
		})
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		s.writeValidationError(w, err)
		return
	}

	result, err := s.gate.Intercept(r.Context(), payload.toRequest())
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Allowed {
		// Blocked content parks behind a pending approval.
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, result)
}

type reviewPayload struct {
	Decision   string `json:"decision" validate:"required,oneof=approved rejected"`
	ReviewerID string `json:"reviewer_id" validate:"required"`
	Notes      string `json:"notes"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	approvalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, errors.NewValidationError("INVALID_APPROVAL_ID", "Approval id must be a UUID"))
		return
	}

	var payload reviewPayload
	if err := s.decode(r, &payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorEnvelope{
			Error: errorBody{Code: "MALFORMED_BODY", Message: "Request body is not valid JSON"},
		})
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		s.writeValidationError(w, err)
		return
	}

	approval, err := s.gate.Review(r.Context(), approvalID,
		compliance.ApprovalStatus(payload.Decision), payload.ReviewerID, payload.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, approval)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	reportType := audit.ReportType(q.Get("type"))
	if reportType == "" {
		reportType = audit.ReportCompliance
	}

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		s.writeError(w, errors.NewValidationError("INVALID_PERIOD", "start must be RFC 3339"))
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		s.writeError(w, errors.NewValidationError("INVALID_PERIOD", "end must be RFC 3339"))
		return
	}

	generatedBy := q.Get("generated_by")
	if generatedBy == "" {
		generatedBy = "api"
	}

	report, err := s.reporter.Generate(r.Context(), reportType, start, end, generatedBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"reason": "database unreachable",
			})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
