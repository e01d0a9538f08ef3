// Package telephony defines the narrow outbound-messaging capability
// contract this calls out as an external collaborator ("the
// specific LLM or telephony SDKs" are out of scope). It ships one
// deterministic sandbox implementation suitable for tests and local
// development, not a real WhatsApp Business API client.
package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	client "github.com/tulia-commerce/convoapi/internal/httpclient"
)

// Sender is the capability contract the dispatcher (internal/dispatcher)
// depends on. Implementations own provider auth, formatting, and
// provider-specific rate limits.
type Sender interface {
	Send(ctx context.Context, tenantID uuid.UUID, toPhone, body string) (providerMessageID string, err error)
}

// SandboxSender is a deterministic, no-external-call implementation: it
// derives a stable provider message id from the payload instead of
// calling a real telephony provider, so dispatcher tests never hit the
// network. A production deployment swaps this for an adapter that calls
// out through the shared client.Client.
type SandboxSender struct {
	httpClient *client.Client // unused by the sandbox path; present so a future real adapter can share construction
	log        zerolog.Logger
}

// NewSandboxSender builds a SandboxSender. httpClient is accepted so the
// constructor shape matches the eventual real adapter's.
func NewSandboxSender(httpClient *client.Client, log zerolog.Logger) *SandboxSender {
	return &SandboxSender{httpClient: httpClient, log: log}
}

// Send "delivers" a message by logging it and returning a deterministic
// provider message id derived from the tenant, recipient, and body.
func (s *SandboxSender) Send(_ context.Context, tenantID uuid.UUID, toPhone, body string) (string, error) {
	sum := sha256.Sum256([]byte(tenantID.String() + "|" + toPhone + "|" + body))
	id := "sandbox_" + hex.EncodeToString(sum[:])[:20]
	s.log.Info().
		Str("tenantId", tenantID.String()).
		Str("to", toPhone).
		Str("providerMessageId", id).
		Msg("telephony sandbox: message sent")
	return id, nil
}

// ErrTimestampSkew is returned when an inbound webhook's timestamp falls
// outside the accepted clock-skew window.
var ErrTimestampSkew = errors.New("telephony: webhook timestamp outside acceptable window")

// InboundVerifier authenticates an inbound provider webhook before it
// reaches the harmonizer: a per-tenant shared secret signs
// "{tenantSlug}:{timestampMs}", and the signature must match within a
// bounded clock skew.
type InboundVerifier interface {
	VerifyInbound(tenantSlug, timestampMs, signature string) bool
}

// SandboxInboundVerifier HMAC-signs and verifies inbound webhook headers
// the same way the sandbox payment provider signs callbacks: hex-encoded
// HMAC-SHA256, constant-time compared, over a fixed message format.
type SandboxInboundVerifier struct {
	secret  []byte
	maxSkew time.Duration
	log     zerolog.Logger
}

// NewSandboxInboundVerifier builds a SandboxInboundVerifier. secret signs
// inbound webhook headers; maxSkew bounds how far a timestamp may drift
// from now before being rejected.
func NewSandboxInboundVerifier(secret []byte, maxSkew time.Duration, log zerolog.Logger) *SandboxInboundVerifier {
	return &SandboxInboundVerifier{secret: secret, maxSkew: maxSkew, log: log}
}

// VerifyInbound checks the signature and timestamp skew for one webhook
// request. Unverifiable or stale requests are logged and rejected, never
// trusted.
func (v *SandboxInboundVerifier) VerifyInbound(tenantSlug, timestampMs, signature string) bool {
	ms, err := strconv.ParseInt(timestampMs, 10, 64)
	if err != nil {
		v.log.Warn().Str("tenantSlug", tenantSlug).Msg("rejecting inbound webhook: invalid timestamp")
		return false
	}
	skew := time.Since(time.UnixMilli(ms))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		v.log.Warn().Str("tenantSlug", tenantSlug).Dur("skew", skew).Msg("rejecting inbound webhook: timestamp outside acceptable window")
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(tenantSlug + ":" + timestampMs))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		v.log.Warn().Str("tenantSlug", tenantSlug).Msg("rejecting inbound webhook: signature did not match")
		return false
	}
	return true
}

// Sign produces the signature a real webhook sender would attach; used by
// the sandbox webhook test harness to produce valid requests.
func (v *SandboxInboundVerifier) Sign(tenantSlug, timestampMs string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(tenantSlug + ":" + timestampMs))
	return hex.EncodeToString(mac.Sum(nil))
}
