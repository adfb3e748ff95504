package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/config"
	"github.com/agrilink/agrilink-api/internal/delivery"
	"github.com/agrilink/agrilink-api/internal/model"
	"github.com/agrilink/agrilink-api/internal/repository"
	queue_publisher "github.com/agrilink/agrilink-api/internal/service"
	"github.com/agrilink/agrilink-api/internal/utils"
)

// UserStore is the slice of the user repository the auth flow depends on.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByMobile(ctx context.Context, mobile string) (*model.User, error)
	GetByRecoveryEmail(ctx context.Context, email string) (*model.User, error)
	ContactExists(ctx context.Context, mobile, email string, includeEmail bool) (bool, error)
	SetTelegram(ctx context.Context, id, chatID string) error
	SetVerified(ctx context.Context, id string) error
}

// TokenStore is the refresh token store: the only persisted mutable state in
// the auth flow.
type TokenStore interface {
	Store(ctx context.Context, t *model.RefreshToken) error
	Verify(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RevokeByID(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// AuthHandler bundles dependencies for the auth endpoints and drives the
// registration → channel link → verification → login → refresh → logout
// flow.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Sender delivery.OTPSender
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, s delivery.OTPSender) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Sender: s}
}

const refreshCookieName = "refreshToken"

var (
	emailRe  = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	mobileRe = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// ----- DTOs -----

type registerReq struct {
	Name          string `json:"name"`
	MobileNumber  string `json:"mobile_number"`
	Role          string `json:"role"`
	RecoveryEmail string `json:"recovery_email"`
}
type loginReq struct {
	Identifier string `json:"identifier"`
}
type otpReq struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

// userPart is the secret-redacted identity shape returned by auth endpoints.
type userPart struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	MobileNumber     string    `json:"mobile_number"`
	Role             string    `json:"role"`
	IsVerified       bool      `json:"is_verified"`
	RecoveryEmail    *string   `json:"recovery_email,omitempty"`
	IsTelegramLinked bool      `json:"is_telegram_linked"`
	CreatedAt        time.Time `json:"created_at"`
}

func redactUser(u *model.User) userPart {
	return userPart{
		ID:               u.ID,
		Name:             u.Name,
		MobileNumber:     u.MobileNumber,
		Role:             string(u.Role),
		IsVerified:       u.IsVerified,
		RecoveryEmail:    u.RecoveryEmail,
		IsTelegramLinked: u.IsTelegramLinked,
		CreatedAt:        u.CreatedAt,
	}
}

func (h *AuthHandler) botLink(userID string) string {
	return "https://t.me/" + h.Cfg.TelegramBotUsername + "?start=" + userID
}

func (h *AuthHandler) otpStep() time.Duration {
	return time.Duration(h.Cfg.OTPStepSeconds) * time.Second
}

func (h *AuthHandler) otpWindow() time.Duration {
	return time.Duration(h.Cfg.OTPWindowMinutes) * time.Minute
}

// setRefreshCookie attaches the refresh token as an http-only cookie scoped
// to the whole API. Secure + SameSite=Strict in production, Lax otherwise so
// local frontend setups keep working.
func (h *AuthHandler) setRefreshCookie(c echo.Context, token string, exp time.Time) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  exp,
		MaxAge:   int(time.Until(exp).Seconds()),
		SameSite: http.SameSiteLaxMode,
	}
	if h.Cfg.IsProduction() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}
	c.SetCookie(cookie)
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	}
	if h.Cfg.IsProduction() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}
	c.SetCookie(cookie)
}

// Register creates an unverified identity with a fresh OTP secret and tells
// the caller how to link the messaging channel.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.RecoveryEmail = strings.ToLower(strings.TrimSpace(req.RecoveryEmail))
	if req.Name == "" || req.MobileNumber == "" || req.Role == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, mobile number and role are required"})
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}
	if !mobileRe.MatchString(req.MobileNumber) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid mobile number format"})
	}
	if req.RecoveryEmail != "" && !emailRe.MatchString(req.RecoveryEmail) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid recovery email format"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Users.ContactExists(ctx, req.MobileNumber, req.RecoveryEmail, h.Cfg.UniqueRecoveryEmail)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if exists {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user with this phone or email already exists"})
	}

	secret, err := utils.NewOTPSecret()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		MobileNumber: req.MobileNumber,
		OTPSecret:    secret,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if req.RecoveryEmail != "" {
		user.RecoveryEmail = &req.RecoveryEmail
	}
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateContact) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "user with this phone or email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	queue_publisher.Audit(ctx, user.ID, "USER_REGISTERED", "User", user.ID)

	return c.JSON(http.StatusCreated, echo.Map{
		"message":           "user registered, please link your telegram",
		"user":              redactUser(user),
		"telegram_bot_link": h.botLink(user.ID),
	})
}

// VerifyRegistration confirms the code delivered during channel linking and
// flips the identity to verified.
func (h *AuthHandler) VerifyRegistration(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.OTP == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id and otp are required"})
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
	if user.IsVerified {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "account already verified"})
	}
	if !user.IsTelegramLinked {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "telegram not linked, please link your telegram first",
			"code":              "TELEGRAM_NOT_LINKED",
			"telegram_bot_link": h.botLink(user.ID),
		})
	}

	ok, err := utils.ValidateOTP(req.OTP, user.OTPSecret, h.otpStep(), h.otpWindow())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "otp validation failed"})
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired otp"})
	}

	if err := h.Users.SetVerified(ctx, user.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	user.IsVerified = true

	queue_publisher.Audit(ctx, user.ID, "USER_VERIFIED", "User", user.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"message": "registration verified",
		"user":    redactUser(user),
	})
}

// Login classifies the identifier, derives a one-time code and dispatches it
// over the implied channel. The code itself never appears in the response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Identifier) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "identifier is required"})
	}
	identifier := strings.TrimSpace(req.Identifier)

	isEmail := emailRe.MatchString(identifier)
	isMobile := mobileRe.MatchString(identifier)
	if !isEmail && !isMobile {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email or mobile number format"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var user *model.User
	var err error
	if isEmail {
		user, err = h.Users.GetByRecoveryEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = h.Users.GetByMobile(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	if h.Cfg.RequireVerifiedLogin && !user.IsVerified {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "account not verified"})
	}
	if !user.IsTelegramLinked {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "telegram not linked, please link your telegram first",
			"code":              "TELEGRAM_NOT_LINKED",
			"telegram_bot_link": h.botLink(user.ID),
		})
	}

	code, err := utils.GenerateOTP(user.OTPSecret, h.otpStep())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "otp generation failed"})
	}

	// Bounded so a hung delivery channel cannot stall the request.
	sendCtx, sendCancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer sendCancel()

	method := "telegram"
	if isEmail {
		method = "email"
		err = h.Sender.SendOTPEmail(sendCtx, identifier, code)
	} else {
		chatID := ""
		if user.TelegramChatID != nil {
			chatID = *user.TelegramChatID
		}
		err = h.Sender.SendOTPTelegram(sendCtx, chatID, code)
	}
	if err != nil {
		log.Printf("auth: otp delivery failed for user %s: %v", user.ID, err)
		resp := echo.Map{"error": "failed to send otp"}
		if !h.Cfg.IsProduction() {
			resp["detail"] = err.Error()
		}
		return c.JSON(http.StatusInternalServerError, resp)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":        "otp sent successfully",
		"userId":         user.ID,
		"deliveryMethod": method,
	})
}

// VerifyOTP checks the submitted code and opens a session: a short-lived
// access token in the body plus a refresh token cookie. Presenting an old
// refresh cookie revokes every prior active session first. The revoke and
// insert are not transactional, so two simultaneous logins race; the store's
// hash uniqueness keeps the damage to an extra revoked row.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.OTP == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id and otp are required"})
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

	ok, err := utils.ValidateOTP(req.OTP, user.OTPSecret, h.otpStep(), h.otpWindow())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "otp validation failed"})
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired otp"})
	}

	if old, err := c.Cookie(refreshCookieName); err == nil && old.Value != "" {
		if _, err := h.Tokens.RevokeAllForUser(ctx, user.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
		}
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTAccessSecret, user.ID, user.MobileNumber, string(user.Role), h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.JWTRefreshSecret, user.ID, user.MobileNumber, string(user.Role), h.Cfg.RefreshTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.Store(ctx, &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: utils.HashRefreshRaw(refresh.Token),
		ExpiresAt: refresh.Exp,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	h.setRefreshCookie(c, refresh.Token, refresh.Exp)

	queue_publisher.Audit(ctx, user.ID, "USER_LOGIN", "User", user.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "login successful",
		"user":        redactUser(user),
		"accessToken": access.Token,
	})
}

// Refresh exchanges a valid refresh cookie for a new access token. The
// refresh token itself is not rotated here; a new one is only minted at
// login. All failure kinds are 401 with distinct messages; the server-side
// record check catches tokens revoked before their signed expiry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token not found"})
	}

	claims, err := utils.VerifyRefreshToken(h.Cfg.JWTRefreshSecret, cookie.Value)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	record, err := h.Tokens.Verify(ctx, utils.HashRefreshRaw(cookie.Value))
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token not found or expired"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	user, err := h.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// The identity is gone; the token should not outlive it.
			_ = h.Tokens.RevokeByID(ctx, record.ID)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTAccessSecret, user.ID, user.MobileNumber, string(user.Role), h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "access token refreshed",
		"accessToken": access.Token,
	})
}

// Logout revokes the presented session if one exists and clears the cookie.
// It is idempotent and always reports success, even with no cookie at all.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		record, err := h.Tokens.Verify(ctx, utils.HashRefreshRaw(cookie.Value))
		if err == nil {
			if err := h.Tokens.RevokeByID(ctx, record.ID); err != nil {
				log.Printf("auth: revoke on logout failed: %v", err)
			}
		} else if !errors.Is(err, repository.ErrTokenNotFound) {
			log.Printf("auth: token lookup on logout failed: %v", err)
		}
	}

	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logout successful"})
}
