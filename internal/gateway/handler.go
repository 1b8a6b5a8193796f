package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/shared"
)

// SignatureHeader carries the callback body HMAC.
const SignatureHeader = "X-Gateway-Signature"

// maxCallbackBody bounds the callback payload read.
const maxCallbackBody = 1 << 20

// Handler wires HTTP endpoints for the gateway module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs gateway handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers gateway routes. The callback route is hit by the
// gateway itself and authenticates by signature, not by actor headers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/initialize", h.initialize)
	r.Post("/callback", h.callback)
}

type initializeRequest struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Amount     string `json:"amount" validate:"required"`
	Currency   string `json:"currency" validate:"required,len=3"`
	Email      string `json:"email" validate:"required,email"`
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	auth, err := h.service.InitializePayment(r.Context(), req.CustomerID, amount, req.Currency, req.Email)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, auth)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable body")
		return
	}
	if err := h.service.HandleCallback(r.Context(), payload, r.Header.Get(SignatureHeader)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadSignature):
		httpx.Problem(w, http.StatusUnauthorized, "Invalid Signature", err.Error())
	case errors.Is(err, credit.ErrCustomerNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("gateway request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
