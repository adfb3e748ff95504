package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/agrilink-api/internal/config"
	"github.com/agrilink/agrilink-api/internal/model"
	"github.com/agrilink/agrilink-api/internal/repository"
	"github.com/agrilink/agrilink-api/internal/utils"
)

// ----- fakes -----

type fakeUsers struct {
	users map[string]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*model.User{}}
	for _, u := range users {
		cp := *u
		f.users[u.ID] = &cp
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	for _, ex := range f.users {
		if ex.MobileNumber == u.MobileNumber {
			return repository.ErrDuplicateContact
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByMobile(_ context.Context, mobile string) (*model.User, error) {
	for _, u := range f.users {
		if u.MobileNumber == mobile {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByRecoveryEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.RecoveryEmail != nil && *u.RecoveryEmail == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) ContactExists(_ context.Context, mobile, email string, includeEmail bool) (bool, error) {
	for _, u := range f.users {
		if u.MobileNumber == mobile {
			return true, nil
		}
		if includeEmail && email != "" && u.RecoveryEmail != nil && *u.RecoveryEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) SetTelegram(_ context.Context, id, chatID string) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if chatID == "" {
		u.TelegramChatID = nil
		u.IsTelegramLinked = false
		return nil
	}
	u.TelegramChatID = &chatID
	u.IsTelegramLinked = true
	return nil
}

func (f *fakeUsers) SetVerified(_ context.Context, id string) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsVerified = true
	return nil
}

type fakeTokens struct {
	byHash     map[string]*model.RefreshToken
	revokedAll []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byHash: map[string]*model.RefreshToken{}}
}

func (f *fakeTokens) Store(_ context.Context, t *model.RefreshToken) error {
	if _, ok := f.byHash[t.TokenHash]; ok {
		return repository.ErrDuplicateTokenHash
	}
	cp := *t
	f.byHash[t.TokenHash] = &cp
	return nil
}

func (f *fakeTokens) Verify(_ context.Context, hash string) (*model.RefreshToken, error) {
	t, ok := f.byHash[hash]
	if !ok || t.RevokedAt != nil || t.ExpiresAt.Before(time.Now()) {
		return nil, repository.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTokens) RevokeByID(_ context.Context, id string) error {
	for _, t := range f.byHash {
		if t.ID == id && t.RevokedAt == nil {
			now := time.Now()
			t.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	f.revokedAll = append(f.revokedAll, userID)
	var n int64
	for _, t := range f.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			now := time.Now()
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) active(userID string) int {
	n := 0
	for _, t := range f.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeSender struct {
	emails    []string
	telegrams []string
	lastCode  string
	fail      error
}

func (f *fakeSender) SendOTPEmail(_ context.Context, address, code string) error {
	if f.fail != nil {
		return f.fail
	}
	f.emails = append(f.emails, address)
	f.lastCode = code
	return nil
}

func (f *fakeSender) SendOTPTelegram(_ context.Context, chatID, code string) error {
	if f.fail != nil {
		return f.fail
	}
	f.telegrams = append(f.telegrams, chatID)
	f.lastCode = code
	return nil
}

// ----- test scaffolding -----

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		JWTAccessSecret:     "access-secret",
		JWTRefreshSecret:    "refresh-secret",
		AccessTTLMin:        15,
		RefreshTTL:          "7d",
		OTPStepSeconds:      60,
		OTPWindowMinutes:    5,
		UniqueRecoveryEmail: true,
		TelegramBotUsername: "agrilink_bot",
	}
}

func linkedUser() *model.User {
	chat := "chat-42"
	email := "ravi@example.com"
	return &model.User{
		ID:               "user-1",
		Name:             "Ravi",
		MobileNumber:     "9876543210",
		OTPSecret:        "0123456789abcdef0123456789abcdef",
		Role:             model.RoleFarmer,
		IsVerified:       true,
		RecoveryEmail:    &email,
		TelegramChatID:   &chat,
		IsTelegramLinked: true,
		CreatedAt:        time.Now().UTC(),
	}
}

func doJSON(h echo.HandlerFunc, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h(c)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func currentOTP(t *testing.T, secret string, cfg config.Config) string {
	t.Helper()
	code, err := utils.GenerateOTP(secret, time.Duration(cfg.OTPStepSeconds)*time.Second)
	require.NoError(t, err)
	return code
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	res := http.Response{Header: rec.Header()}
	for _, ck := range res.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

// ----- register -----

func TestRegisterCreatesUnverifiedUser(t *testing.T) {
	users := newFakeUsers()
	h := NewAuthHandler(testConfig(), users, newFakeTokens(), &fakeSender{})

	rec, err := doJSON(h.Register, http.MethodPost, "/v1/auth/register",
		`{"name":"Ravi","mobile_number":"9876543210","role":"Farmer","recovery_email":"ravi@example.com"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	userObj, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ravi", userObj["name"])
	assert.Equal(t, false, userObj["is_verified"])
	assert.Contains(t, body["telegram_bot_link"], "https://t.me/agrilink_bot?start=")

	// The OTP secret must never leave the server.
	assert.NotContains(t, rec.Body.String(), "otp_secret")
	assert.NotContains(t, rec.Body.String(), "OTPSecret")

	id := userObj["id"].(string)
	stored, err := users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.OTPSecret)
	assert.False(t, stored.IsVerified)
	assert.False(t, stored.IsTelegramLinked)
}

func TestRegisterValidation(t *testing.T) {
	h := NewAuthHandler(testConfig(), newFakeUsers(), newFakeTokens(), &fakeSender{})

	cases := []struct {
		name string
		body string
	}{
		{"missing fields", `{"name":"Ravi"}`},
		{"unknown role", `{"name":"Ravi","mobile_number":"9876543210","role":"Pirate"}`},
		{"bad mobile", `{"name":"Ravi","mobile_number":"12345","role":"Farmer"}`},
		{"bad email", `{"name":"Ravi","mobile_number":"9876543210","role":"Farmer","recovery_email":"nope"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := doJSON(h.Register, http.MethodPost, "/v1/auth/register", tc.body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicateMobile(t *testing.T) {
	h := NewAuthHandler(testConfig(), newFakeUsers(linkedUser()), newFakeTokens(), &fakeSender{})

	rec, err := doJSON(h.Register, http.MethodPost, "/v1/auth/register",
		`{"name":"Other","mobile_number":"9876543210","role":"Buyer"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestRegisterDuplicateRecoveryEmail(t *testing.T) {
	h := NewAuthHandler(testConfig(), newFakeUsers(linkedUser()), newFakeTokens(), &fakeSender{})

	rec, err := doJSON(h.Register, http.MethodPost, "/v1/auth/register",
		`{"name":"Other","mobile_number":"9123456780","role":"Buyer","recovery_email":"ravi@example.com"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ----- verify registration -----

func TestVerifyRegistrationHappyPath(t *testing.T) {
	cfg := testConfig()
	user := linkedUser()
	user.IsVerified = false
	users := newFakeUsers(user)
	h := NewAuthHandler(cfg, users, newFakeTokens(), &fakeSender{})

	code := currentOTP(t, user.OTPSecret, cfg)
	rec, err := doJSON(h.VerifyRegistration, http.MethodPost, "/v1/auth/verify-registration",
		`{"userId":"user-1","otp":"`+code+`"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := users.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
}

func TestVerifyRegistrationRejections(t *testing.T) {
	cfg := testConfig()

	t.Run("unknown user", func(t *testing.T) {
		h := NewAuthHandler(cfg, newFakeUsers(), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.VerifyRegistration, http.MethodPost, "/", `{"userId":"ghost","otp":"123456"}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("already verified", func(t *testing.T) {
		h := NewAuthHandler(cfg, newFakeUsers(linkedUser()), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.VerifyRegistration, http.MethodPost, "/", `{"userId":"user-1","otp":"123456"}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "already verified")
	})

	t.Run("channel not linked", func(t *testing.T) {
		user := linkedUser()
		user.IsVerified = false
		user.IsTelegramLinked = false
		user.TelegramChatID = nil
		h := NewAuthHandler(cfg, newFakeUsers(user), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.VerifyRegistration, http.MethodPost, "/", `{"userId":"user-1","otp":"123456"}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "TELEGRAM_NOT_LINKED")
	})

	t.Run("wrong code", func(t *testing.T) {
		user := linkedUser()
		user.IsVerified = false
		h := NewAuthHandler(cfg, newFakeUsers(user), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.VerifyRegistration, http.MethodPost, "/", `{"userId":"user-1","otp":"000000"}`)
		require.NoError(t, err)
		if rec.Code == http.StatusOK {
			t.Skip("generated code collided with 000000")
		}
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// ----- login -----

func TestLoginWithMobileSendsTelegram(t *testing.T) {
	sender := &fakeSender{}
	h := NewAuthHandler(testConfig(), newFakeUsers(linkedUser()), newFakeTokens(), sender)

	rec, err := doJSON(h.Login, http.MethodPost, "/v1/auth/login", `{"identifier":"9876543210"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "user-1", body["userId"])
	assert.Equal(t, "telegram", body["deliveryMethod"])
	require.Len(t, sender.telegrams, 1)
	assert.Equal(t, "chat-42", sender.telegrams[0])
	assert.Len(t, sender.lastCode, 6)
	// The code goes over the channel, never into the response.
	assert.NotContains(t, rec.Body.String(), sender.lastCode)
}

func TestLoginWithEmailSendsEmail(t *testing.T) {
	sender := &fakeSender{}
	h := NewAuthHandler(testConfig(), newFakeUsers(linkedUser()), newFakeTokens(), sender)

	rec, err := doJSON(h.Login, http.MethodPost, "/v1/auth/login", `{"identifier":"ravi@example.com"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "email", body["deliveryMethod"])
	require.Len(t, sender.emails, 1)
	assert.Equal(t, "ravi@example.com", sender.emails[0])
}

func TestLoginRejections(t *testing.T) {
	cfg := testConfig()

	t.Run("missing identifier", func(t *testing.T) {
		h := NewAuthHandler(cfg, newFakeUsers(), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.Login, http.MethodPost, "/", `{}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed identifier", func(t *testing.T) {
		sender := &fakeSender{}
		h := NewAuthHandler(cfg, newFakeUsers(linkedUser()), newFakeTokens(), sender)
		// Leading 5 is outside the valid mobile range and it is not an email.
		rec, err := doJSON(h.Login, http.MethodPost, "/", `{"identifier":"5876543210"}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		// Classification failure happens before any delivery attempt.
		assert.Empty(t, sender.emails)
		assert.Empty(t, sender.telegrams)
	})

	t.Run("unknown user", func(t *testing.T) {
		h := NewAuthHandler(cfg, newFakeUsers(), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.Login, http.MethodPost, "/", `{"identifier":"9876543210"}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("telegram not linked", func(t *testing.T) {
		user := linkedUser()
		user.IsTelegramLinked = false
		user.TelegramChatID = nil
		h := NewAuthHandler(cfg, newFakeUsers(user), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.Login, http.MethodPost, "/", `{"identifier":"9876543210"}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "TELEGRAM_NOT_LINKED")
		assert.Contains(t, rec.Body.String(), "https://t.me/agrilink_bot?start=user-1")
	})

	t.Run("unverified with strict login", func(t *testing.T) {
		strict := testConfig()
		strict.RequireVerifiedLogin = true
		user := linkedUser()
		user.IsVerified = false
		h := NewAuthHandler(strict, newFakeUsers(user), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.Login, http.MethodPost, "/", `{"identifier":"9876543210"}`)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "not verified")
	})
}

func TestLoginDeliveryFailure(t *testing.T) {
	sender := &fakeSender{fail: errors.New("smtp timeout")}
	h := NewAuthHandler(testConfig(), newFakeUsers(linkedUser()), newFakeTokens(), sender)

	rec, err := doJSON(h.Login, http.MethodPost, "/", `{"identifier":"9876543210"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Non-production config surfaces the underlying error.
	assert.Contains(t, rec.Body.String(), "smtp timeout")
}

func TestLoginDeliveryFailureHidesDetailInProd(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "prod"
	sender := &fakeSender{fail: errors.New("smtp timeout")}
	h := NewAuthHandler(cfg, newFakeUsers(linkedUser()), newFakeTokens(), sender)

	rec, err := doJSON(h.Login, http.MethodPost, "/", `{"identifier":"9876543210"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "smtp timeout")
}

// ----- verify otp -----

func TestVerifyOTPOpensSession(t *testing.T) {
	cfg := testConfig()
	user := linkedUser()
	tokens := newFakeTokens()
	h := NewAuthHandler(cfg, newFakeUsers(user), tokens, &fakeSender{})

	code := currentOTP(t, user.OTPSecret, cfg)
	rec, err := doJSON(h.VerifyOTP, http.MethodPost, "/v1/auth/verify-otp",
		`{"userId":"user-1","otp":"`+code+`"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	access, _ := body["accessToken"].(string)
	require.NotEmpty(t, access)
	claims, err := utils.VerifyAccessToken(cfg.JWTAccessSecret, access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Farmer", claims.Role)

	ck := findCookie(rec, "refreshToken")
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, "/", ck.Path)
	assert.NotEmpty(t, ck.Value)
	// Raw token appears in the cookie only; the store holds its hash.
	_, errVerify := tokens.Verify(context.Background(), utils.HashRefreshRaw(ck.Value))
	assert.NoError(t, errVerify)
	assert.Equal(t, 1, tokens.active("user-1"))
}

func TestVerifyOTPWrongCode(t *testing.T) {
	h := NewAuthHandler(testConfig(), newFakeUsers(linkedUser()), newFakeTokens(), &fakeSender{})

	rec, err := doJSON(h.VerifyOTP, http.MethodPost, "/", `{"userId":"user-1","otp":"12345"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyOTPUnknownUser(t *testing.T) {
	h := NewAuthHandler(testConfig(), newFakeUsers(), newFakeTokens(), &fakeSender{})

	rec, err := doJSON(h.VerifyOTP, http.MethodPost, "/", `{"userId":"ghost","otp":"123456"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyOTPRevokesPriorSessionsOnStaleCookie(t *testing.T) {
	cfg := testConfig()
	user := linkedUser()
	tokens := newFakeTokens()
	require.NoError(t, tokens.Store(context.Background(), &model.RefreshToken{
		ID:        "old-token",
		UserID:    "user-1",
		TokenHash: utils.HashRefreshRaw("old-raw"),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	h := NewAuthHandler(cfg, newFakeUsers(user), tokens, &fakeSender{})

	code := currentOTP(t, user.OTPSecret, cfg)
	rec, err := doJSON(h.VerifyOTP, http.MethodPost, "/",
		`{"userId":"user-1","otp":"`+code+`"}`,
		&http.Cookie{Name: "refreshToken", Value: "old-raw"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, tokens.revokedAll, "user-1")
	// Only the freshly minted session remains active.
	assert.Equal(t, 1, tokens.active("user-1"))
	_, err = tokens.Verify(context.Background(), utils.HashRefreshRaw("old-raw"))
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestVerifyOTPWithoutCookieKeepsOtherSessions(t *testing.T) {
	cfg := testConfig()
	user := linkedUser()
	tokens := newFakeTokens()
	require.NoError(t, tokens.Store(context.Background(), &model.RefreshToken{
		ID:        "other-device",
		UserID:    "user-1",
		TokenHash: utils.HashRefreshRaw("other-raw"),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	h := NewAuthHandler(cfg, newFakeUsers(user), tokens, &fakeSender{})

	code := currentOTP(t, user.OTPSecret, cfg)
	rec, err := doJSON(h.VerifyOTP, http.MethodPost, "/", `{"userId":"user-1","otp":"`+code+`"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, tokens.revokedAll)
	assert.Equal(t, 2, tokens.active("user-1"))
}

// ----- refresh -----

func openSession(t *testing.T, h *AuthHandler, user *model.User) *http.Cookie {
	t.Helper()
	code := currentOTP(t, user.OTPSecret, h.Cfg)
	rec, err := doJSON(h.VerifyOTP, http.MethodPost, "/", `{"userId":"`+user.ID+`","otp":"`+code+`"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	ck := findCookie(rec, "refreshToken")
	require.NotNil(t, ck)
	return &http.Cookie{Name: ck.Name, Value: ck.Value}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	cfg := testConfig()
	user := linkedUser()
	h := NewAuthHandler(cfg, newFakeUsers(user), newFakeTokens(), &fakeSender{})
	ck := openSession(t, h, user)

	rec, err := doJSON(h.Refresh, http.MethodPost, "/v1/auth/refresh", "", ck)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	access, _ := body["accessToken"].(string)
	require.NotEmpty(t, access)
	claims, err := utils.VerifyAccessToken(cfg.JWTAccessSecret, access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	// No rotation: the refresh cookie is not reissued here.
	assert.Nil(t, findCookie(rec, "refreshToken"))
}

func TestRefreshRejections(t *testing.T) {
	cfg := testConfig()

	t.Run("no cookie", func(t *testing.T) {
		h := NewAuthHandler(cfg, newFakeUsers(), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.Refresh, http.MethodPost, "/", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage cookie", func(t *testing.T) {
		h := NewAuthHandler(cfg, newFakeUsers(), newFakeTokens(), &fakeSender{})
		rec, err := doJSON(h.Refresh, http.MethodPost, "/", "",
			&http.Cookie{Name: "refreshToken", Value: "not-a-jwt"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid jwt but revoked server side", func(t *testing.T) {
		user := linkedUser()
		tokens := newFakeTokens()
		h := NewAuthHandler(cfg, newFakeUsers(user), tokens, &fakeSender{})
		ck := openSession(t, h, user)
		_, err := tokens.RevokeAllForUser(context.Background(), user.ID)
		require.NoError(t, err)

		rec, err := doJSON(h.Refresh, http.MethodPost, "/", "", ck)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("user deleted after issue", func(t *testing.T) {
		user := linkedUser()
		users := newFakeUsers(user)
		tokens := newFakeTokens()
		h := NewAuthHandler(cfg, users, tokens, &fakeSender{})
		ck := openSession(t, h, user)
		delete(users.users, user.ID)

		rec, err := doJSON(h.Refresh, http.MethodPost, "/", "", ck)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		// The orphaned token must be dead afterwards.
		assert.Equal(t, 0, tokens.active(user.ID))
	})
}

// ----- logout -----

func TestLogoutRevokesSession(t *testing.T) {
	cfg := testConfig()
	user := linkedUser()
	tokens := newFakeTokens()
	h := NewAuthHandler(cfg, newFakeUsers(user), tokens, &fakeSender{})
	ck := openSession(t, h, user)
	require.Equal(t, 1, tokens.active(user.ID))

	rec, err := doJSON(h.Logout, http.MethodPost, "/v1/auth/logout", "", ck)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, tokens.active(user.ID))

	cleared := findCookie(rec, "refreshToken")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestLogoutWithoutSessionStillSucceeds(t *testing.T) {
	h := NewAuthHandler(testConfig(), newFakeUsers(), newFakeTokens(), &fakeSender{})

	rec, err := doJSON(h.Logout, http.MethodPost, "/", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, err = doJSON(h.Logout, http.MethodPost, "/", "",
		&http.Cookie{Name: "refreshToken", Value: "stale-or-garbage"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
