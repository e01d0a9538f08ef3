// Package payment defines the narrow payment capability contract this
// platform calls through rather than reimplementing a specific payment
// SDK. It ships one deterministic sandbox provider whose callbacks are
// HMAC-signed, so internal/checkout's signature verification path has
// something real to exercise.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	client "github.com/tulia-commerce/convoapi/internal/httpclient"
)

// SandboxProvider is a deterministic, no-external-call payment capability:
// Initiate always succeeds and returns a provider reference derived from
// the order id; VerifySignature checks an HMAC-SHA256 over the raw
// callback payload using a per-tenant shared secret supplied at
// construction. A production deployment swaps this for an adapter backed
// by a real processor's SDK.
type SandboxProvider struct {
	httpClient *client.Client // unused by the sandbox path; shared shape with a future real adapter
	secret     []byte
	log        zerolog.Logger
}

// NewSandboxProvider builds a SandboxProvider. secret signs/verifies
// callback payloads.
func NewSandboxProvider(httpClient *client.Client, secret []byte, log zerolog.Logger) *SandboxProvider {
	return &SandboxProvider{httpClient: httpClient, secret: secret, log: log}
}

// Initiate satisfies internal/checkout.PaymentInitiator.
func (p *SandboxProvider) Initiate(_ context.Context, orderID uuid.UUID, amount decimal.Decimal, provider string) (string, error) {
	ref := "pay_" + orderID.String()[:8]
	p.log.Info().
		Str("orderId", orderID.String()).
		Str("amount", amount.String()).
		Str("provider", provider).
		Str("providerRef", ref).
		Msg("payment sandbox: initiated")
	return ref, nil
}

// VerifySignature satisfies internal/checkout.CallbackVerifier. Signatures
// are hex-encoded HMAC-SHA256 over the raw payload; unverifiable
// signatures must be logged and dropped by the caller, never trusted.
func (p *SandboxProvider) VerifySignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign produces the signature a real callback sender would attach; used
// by the sandbox webhook test harness to produce valid callbacks.
func (p *SandboxProvider) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
