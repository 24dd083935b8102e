package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/voltcycle/payments/internal/daraja"
	"github.com/voltcycle/payments/internal/models"
	"github.com/voltcycle/payments/internal/payment"
	"github.com/voltcycle/payments/internal/transfer"
)

type mpesaService interface {
	InitiateSTKPush(ctx context.Context, orderNumber, phone string, amount decimal.Decimal) (*payment.InitiateResult, error)
	PaymentStatus(ctx context.Context, orderNumber string) (*payment.OrderPaymentStatus, error)
}

type transferService interface {
	Initiate(ctx context.Context, orderNumber string, amount decimal.Decimal) (*models.BankTransfer, error)
	SubmitProof(ctx context.Context, reference string, p transfer.ProofSubmission) (*models.BankTransfer, error)
	Verify(ctx context.Context, transferID int64, verified bool, notes string, adminID int64) (*models.BankTransfer, error)
}

type callbackQueue interface {
	EnqueueCallback(ctx context.Context, payload []byte) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	payments  mpesaService
	transfers transferService
	queue     callbackQueue
	db        pinger
	validator *validator.Validate
}

// NewHandler creates a new handler instance
func NewHandler(payments mpesaService, transfers transferService, queue callbackQueue, db pinger) *Handler {
	return &Handler{
		payments:  payments,
		transfers: transfers,
		queue:     queue,
		db:        db,
		validator: validator.New(),
	}
}

// envelope is the discriminated result wrapper returned by every endpoint
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// InitiateMpesaRequest represents the STK push initiation request
type InitiateMpesaRequest struct {
	OrderNumber string `json:"order_number" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Amount      string `json:"amount" validate:"required,numeric"`
}

// InitiateMpesaPayment handles POST /payments/mpesa/initiate
func (h *Handler) InitiateMpesaPayment(w http.ResponseWriter, r *http.Request) {
	var req InitiateMpesaRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.payments.InitiateSTKPush(r.Context(), req.OrderNumber, req.Phone, amount)
	if err != nil {
		h.respondServiceError(w, err, "Failed to initiate payment")
		return
	}

	message := "STK push sent, awaiting customer confirmation"
	if !result.Accepted {
		message = result.CustomerMessage
	}
	respondJSON(w, http.StatusCreated, envelope{Success: result.Accepted, Message: message, Data: result})
}

// MpesaCallback handles POST /payments/mpesa/callback. The callback is
// queued for background processing and always acknowledged: the provider
// does not consume error semantics and would only retry.
func (h *Handler) MpesaCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read callback body: %v", err)
		respondCallbackAck(w)
		return
	}

	var rawPayload map[string]interface{}
	if err := json.Unmarshal(body, &rawPayload); err != nil {
		log.Printf("Invalid JSON in callback: %v", err)
		respondCallbackAck(w)
		return
	}

	if err := h.queue.EnqueueCallback(r.Context(), body); err != nil {
		log.Printf("Failed to enqueue callback: %v", err)
	}

	respondCallbackAck(w)
}

// PaymentStatus handles GET /payments/orders/{orderNumber}/status
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	status, err := h.payments.PaymentStatus(r.Context(), orderNumber)
	if err != nil {
		h.respondServiceError(w, err, "Failed to fetch payment status")
		return
	}

	respondJSON(w, http.StatusOK, envelope{Success: true, Message: "Payment status", Data: status})
}

// InitiateTransferRequest represents the bank-transfer initiation request
type InitiateTransferRequest struct {
	OrderNumber string `json:"order_number" validate:"required"`
	Amount      string `json:"amount" validate:"required,numeric"`
}

// InitiateBankTransfer handles POST /payments/bank-transfers
func (h *Handler) InitiateBankTransfer(w http.ResponseWriter, r *http.Request) {
	var req InitiateTransferRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	t, err := h.transfers.Initiate(r.Context(), req.OrderNumber, amount)
	if err != nil {
		h.respondServiceError(w, err, "Failed to initiate bank transfer")
		return
	}

	respondJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "Bank transfer initiated, details sent by email",
		Data:    t,
	})
}

// SubmitProofRequest represents the proof-of-payment submission
type SubmitProofRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	TransferDate  string `json:"transfer_date" validate:"required"`
	ProofURL      string `json:"proof_url" validate:"required,url"`
}

// SubmitTransferProof handles POST /payments/bank-transfers/{reference}/proof
func (h *Handler) SubmitTransferProof(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	var req SubmitProofRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	transferDate, err := time.Parse("2006-01-02", req.TransferDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transfer_date, expected YYYY-MM-DD")
		return
	}

	t, err := h.transfers.SubmitProof(r.Context(), reference, transfer.ProofSubmission{
		BankName:      req.BankName,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		TransferDate:  transferDate,
		ProofURL:      req.ProofURL,
	})
	if err != nil {
		h.respondServiceError(w, err, "Failed to submit proof of payment")
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Proof of payment received, verification in progress",
		Data:    t,
	})
}

// VerifyTransferRequest represents the administrator's verification decision
type VerifyTransferRequest struct {
	Verified *bool  `json:"verified" validate:"required"`
	Notes    string `json:"notes"`
	AdminID  int64  `json:"admin_id" validate:"required"`
}

// VerifyBankTransfer handles POST /payments/bank-transfers/{id}/verify
func (h *Handler) VerifyBankTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transfer id")
		return
	}

	var req VerifyTransferRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.transfers.Verify(r.Context(), transferID, *req.Verified, req.Notes, req.AdminID)
	if err != nil {
		h.respondServiceError(w, err, "Failed to verify bank transfer")
		return
	}

	message := "Bank transfer verified, order marked as paid"
	if t.Status == models.TransferRejected {
		message = "Bank transfer rejected"
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: t})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
	}

	if err := h.db.Ping(r.Context()); err != nil {
		health["database"] = "down"
		health["status"] = "degraded"
	} else {
		health["database"] = "up"
	}

	status := http.StatusOK
	if health["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, health)
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// respondServiceError maps the payment core's sentinel errors onto HTTP
// statuses with structured failure reasons.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, daraja.ErrInvalidPhoneNumber):
		respondError(w, http.StatusBadRequest, "Invalid phone number")
	case errors.Is(err, payment.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, transfer.ErrTransferNotFound):
		respondError(w, http.StatusNotFound, "Bank transfer not found")
	case errors.Is(err, transfer.ErrNotSubmitted):
		respondError(w, http.StatusConflict, "Proof of payment has not been submitted yet")
	case errors.Is(err, transfer.ErrAlreadySubmitted):
		respondError(w, http.StatusConflict, "Proof of payment was already submitted")
	case errors.Is(err, transfer.ErrVerificationConflict):
		respondError(w, http.StatusConflict, "Bank transfer was already verified or rejected")
	case errors.Is(err, transfer.ErrRejectionReasonRequired):
		respondError(w, http.StatusBadRequest, "A rejection reason is required")
	case errors.Is(err, daraja.ErrAuth):
		log.Printf("Gateway auth failure: %v", err)
		respondError(w, http.StatusBadGateway, "Payment gateway authentication failed")
	case errors.Is(err, daraja.ErrGatewayUnavailable):
		log.Printf("Gateway unavailable: %v", err)
		respondError(w, http.StatusBadGateway, "Payment gateway unavailable, please retry")
	default:
		log.Printf("%s: %v", fallback, err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func parseAmount(w http.ResponseWriter, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid amount format")
		return decimal.Decimal{}, false
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		respondError(w, http.StatusBadRequest, "Amount must be greater than zero")
		return decimal.Decimal{}, false
	}
	return amount, true
}

// respondCallbackAck acknowledges the provider unconditionally
func respondCallbackAck(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response in the result envelope
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: false, Message: message})
}
