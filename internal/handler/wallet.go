package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/repository"
)

type WalletHandler struct {
	Wallets *repository.WalletRepo
}

func NewWalletHandler(w *repository.WalletRepo) *WalletHandler {
	return &WalletHandler{Wallets: w}
}

// Get returns the caller's wallet, creating an empty one on first touch.
func (h *WalletHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	wallet, err := h.Wallets.GetOrCreate(ctx, authedUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "wallet lookup failed"})
	}
	return c.JSON(http.StatusOK, wallet)
}

type walletMoveReq struct {
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
}

func (h *WalletHandler) Credit(c echo.Context) error {
	return h.move(c, true)
}

func (h *WalletHandler) Debit(c echo.Context) error {
	return h.move(c, false)
}

func (h *WalletHandler) move(c echo.Context, credit bool) error {
	var req walletMoveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Reference == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reference is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	wallet, err := h.Wallets.GetOrCreate(ctx, authedUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "wallet lookup failed"})
	}

	if credit {
		err = h.Wallets.Credit(ctx, wallet.ID, req.Amount, req.Reference)
	} else {
		err = h.Wallets.Debit(ctx, wallet.ID, req.Amount, req.Reference)
	}
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "insufficient funds"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction failed"})
	}

	wallet, err = h.Wallets.GetOrCreate(ctx, authedUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "wallet lookup failed"})
	}
	return c.JSON(http.StatusOK, wallet)
}

// Transactions lists the caller's wallet ledger, newest first.
func (h *WalletHandler) Transactions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	wallet, err := h.Wallets.GetOrCreate(ctx, authedUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "wallet lookup failed"})
	}
	txs, err := h.Wallets.Transactions(ctx, wallet.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}
