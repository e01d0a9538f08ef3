package payment

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestVerifySignatureAcceptsValidSignature(t *testing.T) {
	p := NewSandboxProvider(nil, []byte("tenant-secret"), zerolog.Nop())
	payload := []byte(`{"order_id":"abc","status":"succeeded"}`)

	sig := p.Sign(payload)
	if !p.VerifySignature(payload, sig) {
		t.Fatal("expected a correctly signed payload to verify")
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	p := NewSandboxProvider(nil, []byte("tenant-secret"), zerolog.Nop())
	payload := []byte(`{"order_id":"abc","status":"succeeded"}`)
	sig := p.Sign(payload)

	tampered := []byte(`{"order_id":"abc","status":"failed"}`)
	if p.VerifySignature(tampered, sig) {
		t.Fatal("expected a tampered payload to fail verification")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	signer := NewSandboxProvider(nil, []byte("tenant-a-secret"), zerolog.Nop())
	verifier := NewSandboxProvider(nil, []byte("tenant-b-secret"), zerolog.Nop())
	payload := []byte(`{"order_id":"abc","status":"succeeded"}`)

	sig := signer.Sign(payload)
	if verifier.VerifySignature(payload, sig) {
		t.Fatal("expected verification under a different tenant's secret to fail")
	}
}
