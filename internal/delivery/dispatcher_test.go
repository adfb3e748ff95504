package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendOTPTelegram(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := &Dispatcher{BotToken: "bot-token", APIBase: srv.URL}
	err := d.SendOTPTelegram(context.Background(), "chat-42", "123456")
	require.NoError(t, err)

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "chat-42", gotBody["chat_id"])
	assert.Contains(t, gotBody["text"], "123456")
}

func TestSendOTPTelegramUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := &Dispatcher{BotToken: "bot-token", APIBase: srv.URL}
	err := d.SendOTPTelegram(context.Background(), "chat-42", "123456")
	assert.Error(t, err)
}

func TestSendOTPTelegramUnconfigured(t *testing.T) {
	d := &Dispatcher{}
	err := d.SendOTPTelegram(context.Background(), "chat-42", "123456")
	assert.ErrorIs(t, err, ErrTelegramNotConfigured)
}

func TestSendOTPEmailUnconfigured(t *testing.T) {
	d := &Dispatcher{}
	err := d.SendOTPEmail(context.Background(), "ravi@example.com", "123456")
	assert.ErrorIs(t, err, ErrEmailNotConfigured)
}
