package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"settlement-engine/internal/settlement/application"
	settlement "settlement-engine/internal/settlement/domain"
)

// Handler provides settlement HTTP endpoints under /api/v1/settlements.
type Handler struct {
	records   settlement.RecordRepository
	resolver  *application.PricingResolver
	validator *application.ValidationEngine
	lifecycle *application.Lifecycle
	generator *application.BatchGenerator
}

// NewHandler constructs a handler.
func NewHandler(
	records settlement.RecordRepository,
	resolver *application.PricingResolver,
	validator *application.ValidationEngine,
	lifecycle *application.Lifecycle,
	generator *application.BatchGenerator,
) (*Handler, error) {
	if records == nil {
		return nil, errors.New("settlement handler: nil record repository")
	}
	if resolver == nil {
		return nil, errors.New("settlement handler: nil pricing resolver")
	}
	if validator == nil {
		return nil, errors.New("settlement handler: nil validation engine")
	}
	if lifecycle == nil {
		return nil, errors.New("settlement handler: nil lifecycle")
	}
	if generator == nil {
		return nil, errors.New("settlement handler: nil batch generator")
	}
	return &Handler{
		records:   records,
		resolver:  resolver,
		validator: validator,
		lifecycle: lifecycle,
		generator: generator,
	}, nil
}

// ServeHTTP routes /api/v1/settlements requests. The path layout is
//
//	POST /api/v1/settlements/generate
//	POST /api/v1/settlements/bulk-approve
//	POST /api/v1/settlements/bulk-reject
//	GET  /api/v1/settlements/{id}
//	POST /api/v1/settlements/{id}/approve
//	POST /api/v1/settlements/{id}/reject
//	POST /api/v1/settlements/{id}/pay
//	POST /api/v1/settlements/{id}/validate
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/settlements"), "/")
	switch {
	case rest == "generate" && r.Method == http.MethodPost:
		h.handleGenerate(w, r)
	case rest == "bulk-approve" && r.Method == http.MethodPost:
		h.handleBulkApprove(w, r)
	case rest == "bulk-reject" && r.Method == http.MethodPost:
		h.handleBulkReject(w, r)
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		h.handleGet(w, r, rest)
	case strings.HasSuffix(rest, "/approve") && r.Method == http.MethodPost:
		h.handleApprove(w, r, strings.TrimSuffix(rest, "/approve"))
	case strings.HasSuffix(rest, "/reject") && r.Method == http.MethodPost:
		h.handleReject(w, r, strings.TrimSuffix(rest, "/reject"))
	case strings.HasSuffix(rest, "/pay") && r.Method == http.MethodPost:
		h.handlePay(w, r, strings.TrimSuffix(rest, "/pay"))
	case strings.HasSuffix(rest, "/validate") && r.Method == http.MethodPost:
		h.handleValidate(w, r, strings.TrimSuffix(rest, "/validate"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type generateRequest struct {
	CustomerIDs []string  `json:"customer_ids"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	GeneratedBy string    `json:"generated_by"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		http.Error(w, "period_end must be after period_start", http.StatusBadRequest)
		return
	}
	result, err := h.generator.Generate(r.Context(), req.CustomerIDs, req.PeriodStart, req.PeriodEnd, req.GeneratedBy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, result)
}

type approveRequest struct {
	ApprovedBy string `json:"approved_by"`
	Remarks    string `json:"remarks"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request, id string) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	record, err := h.lifecycle.Approve(r.Context(), id, req.ApprovedBy, req.Remarks)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, record)
}

type rejectRequest struct {
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request, id string) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	record, err := h.lifecycle.Reject(r.Context(), id, req.RejectedBy, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, record)
}

type payRequest struct {
	PaidAt time.Time `json:"paid_at"`
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request, id string) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	record, err := h.lifecycle.MarkPaid(r.Context(), id, req.PaidAt)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, record)
}

type bulkRequest struct {
	IDs    []string `json:"ids"`
	Actor  string   `json:"actor"`
	Reason string   `json:"reason"`
}

func (h *Handler) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.lifecycle.BulkApprove(r.Context(), req.IDs, req.Actor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, result)
}

func (h *Handler) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.lifecycle.BulkReject(r.Context(), req.IDs, req.Actor, req.Reason)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	record, err := h.records.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "settlement not found", http.StatusNotFound)
		return
	}
	respondJSON(w, record)
}

type validateRequest struct {
	ValidatedBy string `json:"validated_by"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request, id string) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	record, err := h.records.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "settlement not found", http.StatusNotFound)
		return
	}
	config, err := h.resolver.Resolve(r.Context(), record.CustomerID, record.PeriodStart, record.PeriodEnd)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	result, err := h.validator.ValidateAndMark(r.Context(), record, config, req.ValidatedBy)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, result)
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, settlement.ErrConfigurationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, settlement.ErrAlreadyApproved),
		errors.Is(err, settlement.ErrAlreadyRejected),
		errors.Is(err, settlement.ErrInvalidTransition),
		errors.Is(err, settlement.ErrVersionConflict),
		errors.Is(err, settlement.ErrAmbiguousConfiguration):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, settlement.ErrReasonRequired),
		errors.Is(err, settlement.ErrActorRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
