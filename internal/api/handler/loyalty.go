package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/api/response"
	"github.com/daap14/loyalty/internal/api/validation"
	"github.com/daap14/loyalty/internal/customer"
	"github.com/daap14/loyalty/internal/loyalty"
	"github.com/daap14/loyalty/internal/tier"
)

const timeFormat = "2006-01-02T15:04:05.000000Z"

// endOfTime is the upper bound of an enrollment range given only a start.
var endOfTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// LoyaltyService is the loyalty engine as seen by the HTTP layer.
type LoyaltyService interface {
	Enroll(ctx context.Context, customerID uuid.UUID) (*loyalty.Record, error)
	AddPoints(ctx context.Context, id uuid.UUID, rawPoints int64) (*loyalty.Result, error)
	RedeemPoints(ctx context.Context, id uuid.UUID, points int64) (*loyalty.Result, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*loyalty.Record, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) (*loyalty.Record, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Quote(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*loyalty.Quote, error)

	Get(ctx context.Context, id uuid.UUID) (*loyalty.Record, error)
	GetByCustomer(ctx context.Context, customerID uuid.UUID) (*loyalty.Record, error)
	List(ctx context.Context) ([]loyalty.Record, error)
	ListByTier(ctx context.Context, level tier.Level) ([]loyalty.Record, error)
	ListByMinimumBalance(ctx context.Context, minBalance int64) ([]loyalty.Record, error)
	ListByEnrollmentRange(ctx context.Context, from, to time.Time) ([]loyalty.Record, error)
	ListActive(ctx context.Context) ([]loyalty.Record, error)
	ListInactive(ctx context.Context) ([]loyalty.Record, error)
}

type enrollRequest struct {
	CustomerID string `json:"customerId"`
}

type pointsRequest struct {
	Points *int64 `json:"points"`
}

type quoteRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

type updateNotesRequest struct {
	Notes json.RawMessage `json:"notes"`
}

// loyaltyRecordResponse is the API representation of a loyalty record.
type loyaltyRecordResponse struct {
	ID                 string  `json:"id"`
	CustomerID         string  `json:"customerId"`
	CustomerName       *string `json:"customerName,omitempty"`
	Balance            int64   `json:"balance"`
	Tier               string  `json:"tier"`
	TierCode           string  `json:"tierCode"`
	PointsMultiplier   string  `json:"pointsMultiplier"`
	DiscountPercentage string  `json:"discountPercentage"`
	EnrollmentDate     string  `json:"enrollmentDate"`
	LastUpdateDate     string  `json:"lastUpdateDate"`
	Active             bool    `json:"active"`
	Notes              *string `json:"notes"`
	Version            int64   `json:"version"`
}

// pointsResponse is returned by accrual and redemption.
type pointsResponse struct {
	loyaltyRecordResponse
	Points       int64  `json:"points"`
	PreviousTier string `json:"previousTier"`
	TierChanged  bool   `json:"tierChanged"`
}

type quoteResponse struct {
	RecordID           string `json:"recordId"`
	Tier               string `json:"tier"`
	Active             bool   `json:"active"`
	Amount             string `json:"amount"`
	DiscountPercentage string `json:"discountPercentage"`
	Discount           string `json:"discount"`
	Total              string `json:"total"`
}

func toLoyaltyRecordResponse(rec *loyalty.Record, customerName *string) loyaltyRecordResponse {
	t := rec.TierInfo()
	return loyaltyRecordResponse{
		ID:                 rec.ID.String(),
		CustomerID:         rec.CustomerID.String(),
		CustomerName:       customerName,
		Balance:            rec.Balance,
		Tier:               t.Name,
		TierCode:           t.Level.Code(),
		PointsMultiplier:   t.PointsMultiplier.String(),
		DiscountPercentage: t.DiscountPercentage.String(),
		EnrollmentDate:     rec.EnrollmentDate.UTC().Format(timeFormat),
		LastUpdateDate:     rec.LastUpdateDate.UTC().Format(timeFormat),
		Active:             rec.Active,
		Notes:              rec.Notes,
		Version:            rec.Version,
	}
}

func toPointsResponse(res *loyalty.Result) pointsResponse {
	return pointsResponse{
		loyaltyRecordResponse: toLoyaltyRecordResponse(&res.Record, nil),
		Points:                res.Points,
		PreviousTier:          res.PreviousTier.String(),
		TierChanged:           res.TierChanged(),
	}
}

// LoyaltyHandler handles loyalty record endpoints.
type LoyaltyHandler struct {
	engine    LoyaltyService
	customers customer.Directory
}

// NewLoyaltyHandler creates a new LoyaltyHandler.
func NewLoyaltyHandler(engine LoyaltyService, customers customer.Directory) *LoyaltyHandler {
	return &LoyaltyHandler{
		engine:    engine,
		customers: customers,
	}
}

// Enroll handles POST /loyalty.
func (h *LoyaltyHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req enrollRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if fieldErrors := validation.ValidateEnrollRequest(req.CustomerID); len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}
	customerID, _ := uuid.Parse(req.CustomerID) // already validated

	c, err := h.customers.GetByID(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, customer.ErrCustomerNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Customer not found", requestID)
			return
		}
		slog.Error("failed to get customer", "error", err, "customerId", customerID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to enroll customer", requestID)
		return
	}

	rec, err := h.engine.Enroll(r.Context(), customerID)
	if err != nil {
		writeLoyaltyError(w, err, "Failed to enroll customer", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toLoyaltyRecordResponse(rec, &c.Name), requestID)
}

// List handles GET /loyalty.
func (h *LoyaltyHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	q, fieldErrors := validation.ParseListQuery(r.URL.Query())
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid query parameters", fieldErrors, requestID)
		return
	}

	records, err := h.query(r.Context(), q)
	if err != nil {
		writeLoyaltyError(w, err, "Failed to list loyalty records", requestID)
		return
	}

	names := h.customerNames(r.Context(), records)
	items := make([]loyaltyRecordResponse, 0, len(records))
	for i := range records {
		items = append(items, toLoyaltyRecordResponse(&records[i], names[records[i].CustomerID]))
	}

	response.SuccessList(w, items, len(items), requestID)
}

// query runs the most selective engine query for q and applies the remaining
// filters in memory, keeping the engine's ordering.
func (h *LoyaltyHandler) query(ctx context.Context, q validation.ListQuery) ([]loyalty.Record, error) {
	var (
		records []loyalty.Record
		err     error
	)
	switch {
	case q.EnrolledFrom != nil || q.EnrolledTo != nil:
		from, to := time.Time{}, endOfTime
		if q.EnrolledFrom != nil {
			from = *q.EnrolledFrom
		}
		if q.EnrolledTo != nil {
			to = *q.EnrolledTo
		}
		records, err = h.engine.ListByEnrollmentRange(ctx, from, to)
	case q.MinBalance != nil:
		records, err = h.engine.ListByMinimumBalance(ctx, *q.MinBalance)
	case q.Tier != nil:
		records, err = h.engine.ListByTier(ctx, *q.Tier)
	case q.Active != nil && *q.Active:
		records, err = h.engine.ListActive(ctx)
	case q.Active != nil:
		records, err = h.engine.ListInactive(ctx)
	default:
		records, err = h.engine.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := records[:0]
	for _, rec := range records {
		if q.Tier != nil && rec.Tier != *q.Tier {
			continue
		}
		if q.MinBalance != nil && rec.Balance < *q.MinBalance {
			continue
		}
		if q.Active != nil && rec.Active != *q.Active {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetByID handles GET /loyalty/{id}.
func (h *LoyaltyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUIDParam(w, r, "id", requestID)
	if !ok {
		return
	}

	rec, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeLoyaltyError(w, err, "Failed to get loyalty record", requestID)
		return
	}

	response.Success(w, http.StatusOK, toLoyaltyRecordResponse(rec, h.customerName(r.Context(), rec.CustomerID)), requestID)
}

// GetByCustomer handles GET /customers/{customerId}/loyalty.
func (h *LoyaltyHandler) GetByCustomer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	customerID, ok := parseUUIDParam(w, r, "customerId", requestID)
	if !ok {
		return
	}

	rec, err := h.engine.GetByCustomer(r.Context(), customerID)
	if err != nil {
		writeLoyaltyError(w, err, "Failed to get loyalty record", requestID)
		return
	}

	response.Success(w, http.StatusOK, toLoyaltyRecordResponse(rec, h.customerName(r.Context(), rec.CustomerID)), requestID)
}

// AddPoints handles POST /loyalty/{id}/points.
func (h *LoyaltyHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	h.changePoints(w, r, h.engine.AddPoints, "Failed to add points")
}

// Redeem handles POST /loyalty/{id}/redemptions.
func (h *LoyaltyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	h.changePoints(w, r, h.engine.RedeemPoints, "Failed to redeem points")
}

func (h *LoyaltyHandler) changePoints(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, id uuid.UUID, points int64) (*loyalty.Result, error),
	failure string,
) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUIDParam(w, r, "id", requestID)
	if !ok {
		return
	}

	var req pointsRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidatePointsRequest(req.Points); len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	res, err := apply(r.Context(), id, *req.Points)
	if err != nil {
		writeLoyaltyError(w, err, failure, requestID)
		return
	}

	response.Success(w, http.StatusOK, toPointsResponse(res), requestID)
}

// Quote handles POST /loyalty/{id}/quote.
func (h *LoyaltyHandler) Quote(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUIDParam(w, r, "id", requestID)
	if !ok {
		return
	}

	var req quoteRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateQuoteRequest(req.Amount); len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	q, err := h.engine.Quote(r.Context(), id, *req.Amount)
	if err != nil {
		writeLoyaltyError(w, err, "Failed to quote discount", requestID)
		return
	}

	response.Success(w, http.StatusOK, quoteResponse{
		RecordID:           q.RecordID.String(),
		Tier:               q.Tier.String(),
		Active:             q.Active,
		Amount:             q.Amount.StringFixed(2),
		DiscountPercentage: q.DiscountPercentage.String(),
		Discount:           q.Discount.StringFixed(2),
		Total:              q.Total.StringFixed(2),
	}, requestID)
}

// SetActive handles PUT /loyalty/{id}/active.
func (h *LoyaltyHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUIDParam(w, r, "id", requestID)
	if !ok {
		return
	}

	var req setActiveRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateSetActiveRequest(req.Active); len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	rec, err := h.engine.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		writeLoyaltyError(w, err, "Failed to update loyalty record", requestID)
		return
	}

	response.Success(w, http.StatusOK, toLoyaltyRecordResponse(rec, nil), requestID)
}

// UpdateNotes handles PATCH /loyalty/{id}.
func (h *LoyaltyHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUIDParam(w, r, "id", requestID)
	if !ok {
		return
	}

	var req updateNotesRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	notes, fieldErrors := validation.ParseNotes(req.Notes)
	if len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	rec, err := h.engine.UpdateNotes(r.Context(), id, notes)
	if err != nil {
		writeLoyaltyError(w, err, "Failed to update loyalty record", requestID)
		return
	}

	response.Success(w, http.StatusOK, toLoyaltyRecordResponse(rec, nil), requestID)
}

// Delete handles DELETE /loyalty/{id}.
func (h *LoyaltyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUIDParam(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.engine.Remove(r.Context(), id); err != nil {
		writeLoyaltyError(w, err, "Failed to delete loyalty record", requestID)
		return
	}

	response.NoContent(w)
}

// customerName resolves a display name; lookup failures leave it empty.
func (h *LoyaltyHandler) customerName(ctx context.Context, id uuid.UUID) *string {
	c, err := h.customers.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, customer.ErrCustomerNotFound) {
			slog.Warn("failed to resolve customer name", "error", err, "customerId", id)
		}
		return nil
	}
	return &c.Name
}

func (h *LoyaltyHandler) customerNames(ctx context.Context, records []loyalty.Record) map[uuid.UUID]*string {
	out := make(map[uuid.UUID]*string, len(records))
	if len(records) == 0 {
		return out
	}

	ids := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.CustomerID)
	}
	names, err := h.customers.Names(ctx, ids)
	if err != nil {
		slog.Warn("failed to resolve customer names", "error", err, "count", len(ids))
		return out
	}
	for id, name := range names {
		out[id] = &name
	}
	return out
}

// writeLoyaltyError maps engine errors onto API error responses.
func writeLoyaltyError(w http.ResponseWriter, err error, failure, requestID string) {
	var insufficient *loyalty.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		response.ErrWithDetails(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Not enough points to redeem",
			map[string]int64{"available": insufficient.Available, "requested": insufficient.Requested}, requestID)
	case errors.Is(err, loyalty.ErrInvalidAmount):
		response.Err(w, http.StatusBadRequest, "INVALID_AMOUNT", "Points amount must be a positive integer", requestID)
	case errors.Is(err, loyalty.ErrBalanceOverflow):
		response.Err(w, http.StatusBadRequest, "BALANCE_OVERFLOW", "Points credit would exceed the maximum balance", requestID)
	case errors.Is(err, loyalty.ErrInvalidID):
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
	case errors.Is(err, loyalty.ErrInvalidRange), errors.Is(err, tier.ErrUnknownLevel):
		response.Err(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), requestID)
	case errors.Is(err, loyalty.ErrRecordNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Loyalty record not found", requestID)
	case errors.Is(err, loyalty.ErrDuplicateEnrollment):
		response.Err(w, http.StatusConflict, "DUPLICATE_ENROLLMENT", "Customer is already enrolled in the loyalty program", requestID)
	case errors.Is(err, loyalty.ErrRecordInactive):
		response.Err(w, http.StatusConflict, "RECORD_INACTIVE", "Loyalty record is inactive", requestID)
	case errors.Is(err, loyalty.ErrConcurrentUpdate):
		response.Err(w, http.StatusConflict, "CONCURRENT_UPDATE", "Loyalty record was modified concurrently; reload and retry", requestID)
	default:
		slog.Error(failure, "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", failure, requestID)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", name+" must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}
