package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkSendsVerificationOTPForUnverifiedUser(t *testing.T) {
	user := linkedUser()
	user.IsVerified = false
	user.IsTelegramLinked = false
	user.TelegramChatID = nil
	users := newFakeUsers(user)
	sender := &fakeSender{}
	h := NewTelegramHandler(testConfig(), users, sender)

	rec, err := doJSON(h.Link, http.MethodPost, "/v1/telegram/link",
		`{"user_id":"user-1","chat_id":"chat-99"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := users.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, stored.IsTelegramLinked)
	require.NotNil(t, stored.TelegramChatID)
	assert.Equal(t, "chat-99", *stored.TelegramChatID)

	require.Len(t, sender.telegrams, 1)
	assert.Equal(t, "chat-99", sender.telegrams[0])
	assert.Len(t, sender.lastCode, 6)
}

// Tapping the bot's deep link again is the only way to get a verification
// code re-delivered, so a second link with the same chat id must behave
// exactly like the first.
func TestLinkRepeatedTapResendsOTP(t *testing.T) {
	user := linkedUser()
	user.IsVerified = false
	user.IsTelegramLinked = false
	user.TelegramChatID = nil
	users := newFakeUsers(user)
	sender := &fakeSender{}
	h := NewTelegramHandler(testConfig(), users, sender)

	body := `{"user_id":"user-1","chat_id":"chat-99"}`
	rec, err := doJSON(h.Link, http.MethodPost, "/v1/telegram/link", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, err = doJSON(h.Link, http.MethodPost, "/v1/telegram/link", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sender.telegrams, 2)
}

func TestLinkVerifiedUserSkipsOTP(t *testing.T) {
	users := newFakeUsers(linkedUser())
	sender := &fakeSender{}
	h := NewTelegramHandler(testConfig(), users, sender)

	rec, err := doJSON(h.Link, http.MethodPost, "/v1/telegram/link",
		`{"user_id":"user-1","chat_id":"chat-new"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sender.telegrams)
}

func TestLinkValidation(t *testing.T) {
	h := NewTelegramHandler(testConfig(), newFakeUsers(), &fakeSender{})

	rec, err := doJSON(h.Link, http.MethodPost, "/", `{"user_id":"user-1"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, err = doJSON(h.Link, http.MethodPost, "/", `{"user_id":"ghost","chat_id":"c"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnlink(t *testing.T) {
	users := newFakeUsers(linkedUser())
	h := NewTelegramHandler(testConfig(), users, &fakeSender{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("userId")
	c.SetParamValues("user-1")
	require.NoError(t, h.Unlink(c))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := users.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, stored.IsTelegramLinked)
	assert.Nil(t, stored.TelegramChatID)
}

func TestStatus(t *testing.T) {
	h := NewTelegramHandler(testConfig(), newFakeUsers(linkedUser()), &fakeSender{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("userId")
	c.SetParamValues("user-1")
	require.NoError(t, h.Status(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_telegram_linked":true`)
	assert.Contains(t, rec.Body.String(), "https://t.me/agrilink_bot?start=user-1")
}
