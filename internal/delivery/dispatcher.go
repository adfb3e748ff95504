package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"time"
)

// Dispatcher implements OTPSender over SMTP (email channel) and the Telegram
// Bot API (messaging channel).
type Dispatcher struct {
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string
	BotToken string

	// APIBase overrides the Telegram Bot API host. Empty means the real one.
	APIBase string

	// HTTPClient is used for Telegram API calls. When nil a client with a
	// 10 second timeout is used so a slow upstream surfaces as a delivery
	// failure instead of hanging the login request.
	HTTPClient *http.Client
}

var (
	ErrEmailNotConfigured    = errors.New("email delivery is not configured")
	ErrTelegramNotConfigured = errors.New("telegram delivery is not configured")
)

// SendOTPEmail delivers the code over SMTP.
func (d *Dispatcher) SendOTPEmail(ctx context.Context, address, code string) error {
	if d.SMTPHost == "" {
		return ErrEmailNotConfigured
	}
	msg := []byte("To: " + address + "\r\n" +
		"From: " + d.SMTPFrom + "\r\n" +
		"Subject: Your AgriLink login code\r\n" +
		"\r\n" +
		"Your one-time code is " + code + ". It is valid for 5 minutes.\r\n" +
		"If you did not request this code, you can ignore this mail.\r\n")

	addr := d.SMTPHost + ":" + d.SMTPPort
	var auth smtp.Auth
	if d.SMTPUser != "" {
		auth = smtp.PlainAuth("", d.SMTPUser, d.SMTPPass, d.SMTPHost)
	}

	// net/smtp has no context support; run the send in a goroutine and bail
	// out when the context expires so the caller's deadline holds.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, d.SMTPFrom, []string{address}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send otp mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send otp mail: %w", ctx.Err())
	}
}

// SendOTPTelegram delivers the code as a bot message to the linked chat.
func (d *Dispatcher) SendOTPTelegram(ctx context.Context, chatID, code string) error {
	if d.BotToken == "" {
		return ErrTelegramNotConfigured
	}
	payload, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    "Your AgriLink login code is " + code + ". It is valid for 5 minutes.",
	})
	if err != nil {
		return err
	}
	base := d.APIBase
	if base == "" {
		base = "https://api.telegram.org"
	}
	url := base + "/bot" + d.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client().Do(req)
	if err != nil {
		return fmt.Errorf("send otp telegram: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send otp telegram: bot api returned %s", resp.Status)
	}
	return nil
}

func (d *Dispatcher) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
