package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func testKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func TestSignVerifyRoundTrip(t *testing.T) {
	privPEM, pubPEM := testKeyPair(t)
	payload := []byte(`{"items":[{"path":"scan.vdif"}]}`)

	jws, err := SignDetachedJWS(payload, privPEM)
	if err != nil {
		t.Fatalf("SignDetachedJWS returned error: %v", err)
	}
	if jws.Protected == "" || jws.Payload == "" || jws.Signature == "" {
		t.Fatalf("jws has empty parts: %+v", jws)
	}

	got, err := VerifyDetachedJWS(jws, pubPEM)
	if err != nil {
		t.Fatalf("VerifyDetachedJWS returned error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	privPEM, pubPEM := testKeyPair(t)

	jws, err := SignDetachedJWS([]byte("original"), privPEM)
	if err != nil {
		t.Fatalf("SignDetachedJWS returned error: %v", err)
	}

	forged := jws
	tampered, err := SignDetachedJWS([]byte("tampered"), privPEM)
	if err != nil {
		t.Fatalf("SignDetachedJWS returned error: %v", err)
	}
	forged.Payload = tampered.Payload
	if _, err := VerifyDetachedJWS(forged, pubPEM); err == nil {
		t.Fatal("expected error for a payload swap")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	privPEM, _ := testKeyPair(t)
	_, otherPub := testKeyPair(t)

	jws, err := SignDetachedJWS([]byte("payload"), privPEM)
	if err != nil {
		t.Fatalf("SignDetachedJWS returned error: %v", err)
	}
	if _, err := VerifyDetachedJWS(jws, otherPub); err == nil {
		t.Fatal("expected error for the wrong key")
	}
}

func TestSignRejectsBadKey(t *testing.T) {
	if _, err := SignDetachedJWS([]byte("x"), []byte("not a pem")); err == nil {
		t.Fatal("expected error for a non-PEM key")
	}
}
