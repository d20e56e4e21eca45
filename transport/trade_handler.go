package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"TradingPlatform/internal/domain/models"
	"TradingPlatform/internal/domain/models/transport"
	"TradingPlatform/internal/http_client"
	"TradingPlatform/internal/services/intake"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyUserId ctxKey = "userId"

type intakeService interface {
	Submit(ctx context.Context, userId string, draft models.OrderDraft) (models.OrderCommand, error)
	Cancel(ctx context.Context, orderId uuid.UUID, userId string) error
}

type orderReader interface {
	ListUserOrders(ctx context.Context, userId string) ([]models.OrderCommand, error)
}

type positionService interface {
	Positions(ctx context.Context, userId string) ([]models.Position, error)
}

type accountService interface {
	Balance(ctx context.Context, userId string) (http_client.AccountInfo, error)
}

type tokenVerifier interface {
	Verify(token string) (string, error)
}

type TradeHandler struct {
	log       *slog.Logger
	intake    intakeService
	orders    orderReader
	positions positionService
	account   accountService
	verifier  tokenVerifier
	validate  *validator.Validate
}

func NewTradeHandler(
	log *slog.Logger,
	intakeService intakeService,
	orders orderReader,
	positions positionService,
	account accountService,
	verifier tokenVerifier,
	validate *validator.Validate,
) *TradeHandler {
	return &TradeHandler{
		log:       log,
		intake:    intakeService,
		orders:    orders,
		positions: positions,
		account:   account,
		verifier:  verifier,
		validate:  validate,
	}
}

func (h *TradeHandler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Route("/api/trade", func(router chi.Router) {
		router.Group(func(routerWithAuth chi.Router) {
			routerWithAuth.Use(h.authMiddleware)

			routerWithAuth.Post("/orders", h.PostSubmitOrder)
			routerWithAuth.Get("/orders", h.GetOrders)
			routerWithAuth.Delete("/orders/{orderId}", h.DeleteOrder)
			routerWithAuth.Get("/positions", h.GetPositions)
			routerWithAuth.Get("/balance", h.GetBalance)
		})
	})

	return router
}

func (h *TradeHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		_, token, ok := strings.Cut(header, " ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		userId, err := h.verifier.Verify(token)
		if err != nil {
			h.log.Info("rejected request with invalid token", "err", err)
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUserId, userId)))
	})
}

func (h *TradeHandler) PostSubmitOrder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userId := r.Context().Value(ctxKeyUserId).(string)

	var req transport.SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error("Failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.log.Error("Validation failed", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid order parameters")
		return
	}

	cmd, err := h.intake.Submit(r.Context(), userId, models.OrderDraft{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		h.log.Error("Failed to submit order", "error", err, "userId", userId)

		if validationErr := validationMessage(err); validationErr != "" {
			writeError(w, http.StatusBadRequest, validationErr)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to submit order")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(transport.SubmitOrderResponse{
		OrderId: cmd.OrderId,
		Status:  cmd.Status,
	})
}

func (h *TradeHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userId := r.Context().Value(ctxKeyUserId).(string)

	orderId, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	if err := h.intake.Cancel(r.Context(), orderId, userId); err != nil {
		h.log.Error("Failed to cancel order", "error", err, "orderId", orderId)

		switch {
		case errors.Is(err, intake.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, intake.ErrOrderNotCancellable):
			writeError(w, http.StatusBadRequest, "Cannot cancel completed order")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to cancel order")
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(transport.CancelOrderResponse{
		Message: "Cancel request submitted",
		OrderId: orderId,
	})
}

func (h *TradeHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userId := r.Context().Value(ctxKeyUserId).(string)

	orders, err := h.orders.ListUserOrders(r.Context(), userId)
	if err != nil {
		h.log.Error("Failed to get orders", "error", err, "userId", userId)
		writeError(w, http.StatusInternalServerError, "Failed to get orders")
		return
	}

	views := make([]transport.OrderView, 0, len(orders))
	for _, cmd := range orders {
		views = append(views, transport.OrderView{
			OrderId:   cmd.OrderId,
			Symbol:    cmd.Symbol,
			Side:      cmd.Side,
			Type:      cmd.Type,
			Quantity:  cmd.Quantity,
			Price:     cmd.Price,
			Status:    cmd.Status,
			CreatedAt: cmd.Timestamp,
		})
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(views)
}

func (h *TradeHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userId := r.Context().Value(ctxKeyUserId).(string)

	positions, err := h.positions.Positions(r.Context(), userId)
	if err != nil {
		h.log.Error("Failed to get positions", "error", err, "userId", userId)
		writeError(w, http.StatusInternalServerError, "Failed to get positions")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(positions)
}

func (h *TradeHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	userId := r.Context().Value(ctxKeyUserId).(string)

	info, err := h.account.Balance(r.Context(), userId)
	if err != nil {
		h.log.Error("Failed to get balance", "error", err, "userId", userId)
		writeError(w, http.StatusInternalServerError, "Failed to get balance")
		return
	}

	resp := transport.BalanceResponse{CanTrade: info.CanTrade, Balances: make([]transport.AssetBalance, 0, len(info.Balances))}
	for _, b := range info.Balances {
		resp.Balances = append(resp.Balances, transport.AssetBalance{
			Asset:  b.Asset,
			Free:   b.Free,
			Locked: b.Locked,
			Total:  b.Free.Add(b.Locked),
		})
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func validationMessage(err error) string {
	for _, sentinel := range []error{
		intake.ErrInvalidSymbol,
		intake.ErrInvalidSide,
		intake.ErrInvalidType,
		intake.ErrInvalidQuantity,
		intake.ErrPriceRequired,
		intake.ErrInvalidPrice,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(transport.ErrorResponse{Error: msg})
}
