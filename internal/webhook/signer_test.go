package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("shared-secret")
	body := []byte(`{"transactionRef":"TXN-1","status":"COMPLETED","invoiceNumber":"INV-1","amount":100}`)

	signature := signer.Sign(body)
	assert.Len(t, signature, 64) // hex(SHA-256)
	assert.True(t, signer.Verify(body, signature))
}

func TestVerifyDetectsSingleByteTamper(t *testing.T) {
	signer := NewSigner("shared-secret")
	body := []byte(`{"amount":100}`)
	signature := signer.Sign(body)

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] ^= 0x01
	assert.False(t, signer.Verify(tampered, signature))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	body := []byte(`{"amount":100}`)
	signature := NewSigner("key-a").Sign(body)

	assert.False(t, NewSigner("key-b").Verify(body, signature))
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	signer := NewSigner("shared-secret")
	body := []byte(`{}`)

	assert.False(t, signer.Verify(body, ""))
	assert.False(t, signer.Verify(body, "not-hex!"))
	assert.False(t, signer.Verify(body, "deadbeef"))
}
