// Package delivery sends one-time codes to users over out-of-band channels.
// The auth handlers treat every sender as an opaque fallible call: a send
// either succeeds or returns an error that surfaces to the caller as a
// delivery failure. Nothing is retried here.
package delivery

import "context"

// OTPSender is the contract the auth orchestrator depends on. Both channels
// accept a context so a hung upstream cannot stall the login request beyond
// its deadline.
type OTPSender interface {
	SendOTPEmail(ctx context.Context, address, code string) error
	SendOTPTelegram(ctx context.Context, chatID, code string) error
}
