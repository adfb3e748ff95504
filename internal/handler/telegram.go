package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/config"
	"github.com/agrilink/agrilink-api/internal/delivery"
	"github.com/agrilink/agrilink-api/internal/repository"
	"github.com/agrilink/agrilink-api/internal/utils"
)

// TelegramHandler handles the channel linking callbacks coming from the bot
// plus link status queries from the frontend.
type TelegramHandler struct {
	Cfg    config.Config
	Users  UserStore
	Sender delivery.OTPSender
}

func NewTelegramHandler(cfg config.Config, u UserStore, s delivery.OTPSender) *TelegramHandler {
	return &TelegramHandler{Cfg: cfg, Users: u, Sender: s}
}

type linkReq struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

// Link attaches a chat id to the user. For a not-yet-verified account it also
// pushes a verification code over the freshly linked channel, so the bot's
// /start handler is the only step between registration and verification.
func (h *TelegramHandler) Link(c echo.Context) error {
	var req linkReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.ChatID = strings.TrimSpace(req.ChatID)
	if req.UserID == "" || req.ChatID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id and chat id are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	user, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	if err := h.Users.SetTelegram(ctx, user.ID, req.ChatID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "link failed"})
	}

	if !user.IsVerified {
		step := time.Duration(h.Cfg.OTPStepSeconds) * time.Second
		code, err := utils.GenerateOTP(user.OTPSecret, step)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "otp generation failed"})
		}
		sendCtx, sendCancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
		defer sendCancel()
		if err := h.Sender.SendOTPTelegram(sendCtx, req.ChatID, code); err != nil {
			log.Printf("telegram: verification otp delivery failed for user %s: %v", user.ID, err)
			resp := echo.Map{"error": "failed to send verification otp"}
			if !h.Cfg.IsProduction() {
				resp["detail"] = err.Error()
			}
			return c.JSON(http.StatusInternalServerError, resp)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message":  "telegram linked, verification otp sent",
			"otp_sent": true,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "telegram linked"})
}

// Unlink detaches the chat id. Logins over telegram stop working until the
// user links again.
func (h *TelegramHandler) Unlink(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if err := h.Users.SetTelegram(ctx, userID, ""); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unlink failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "telegram unlinked"})
}

// Status reports whether the channel is linked, with the deep link the
// frontend renders as a "connect telegram" button.
func (h *TelegramHandler) Status(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"is_telegram_linked": user.IsTelegramLinked,
		"telegram_bot_link":  "https://t.me/" + h.Cfg.TelegramBotUsername + "?start=" + user.ID,
	})
}
