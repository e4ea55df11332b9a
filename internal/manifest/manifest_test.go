package manifest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "cap_thread0000.vdif", 640),
		writeFile(t, dir, "source.pcap", 1024),
		writeFile(t, dir, "report.json", 64),
		writeFile(t, dir, "report.pdf", 2048),
		writeFile(t, dir, "station.yaml", 32),
		writeFile(t, dir, "operations.jsonl", 128),
		writeFile(t, dir, "notes.md", 16),
	}

	m, err := Build(paths)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if m.ShaAlgo != "sha256" {
		t.Fatalf("ShaAlgo = %q, want %q", m.ShaAlgo, "sha256")
	}
	if len(m.Items) != len(paths) {
		t.Fatalf("len(Items) = %d, want %d", len(m.Items), len(paths))
	}

	wantTypes := []string{"vdif", "pcap", "json", "pdf", "yaml", "log", "other"}
	wantSizes := []int64{640, 1024, 64, 2048, 32, 128, 16}
	for i, item := range m.Items {
		if item.Type != wantTypes[i] {
			t.Fatalf("item %d Type = %q, want %q", i, item.Type, wantTypes[i])
		}
		if item.Size != wantSizes[i] {
			t.Fatalf("item %d Size = %d, want %d", i, item.Size, wantSizes[i])
		}
		if len(item.Sha256) != 64 {
			t.Fatalf("item %d Sha256 = %q, want 64 hex chars", i, item.Sha256)
		}
	}
}

func TestBuildMissingFile(t *testing.T) {
	if _, err := Build([]string{filepath.Join(t.TempDir(), "absent.vdif")}); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := Build([]string{writeFile(t, dir, "a.vdif", 64)})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	got, err := Load(out)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0] != m.Items[0] {
		t.Fatalf("Items = %+v, want %+v", got.Items, m.Items)
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, m.CreatedAt)
	}
}

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

func TestSignVerify(t *testing.T) {
	dir := t.TempDir()
	m, err := Build([]string{writeFile(t, dir, "a.vdif", 64)})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	privPEM, pubPEM := testKeyPair(t)
	sigPath := filepath.Join(dir, "manifest.json.jws")
	if err := Sign(&m, privPEM, sigPath); err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if m.Signature == nil || m.Signature.Type != "JWS-RS256" {
		t.Fatalf("Signature = %+v, want a JWS-RS256 record", m.Signature)
	}
	if m.Signature.SignatureFile != "manifest.json.jws" {
		t.Fatalf("SignatureFile = %q, want %q", m.Signature.SignatureFile, "manifest.json.jws")
	}

	if err := Verify(m, sigPath, pubPEM); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	tampered := m
	tampered.Items = append([]Item(nil), m.Items...)
	tampered.Items[0].Sha256 = "0000000000000000000000000000000000000000000000000000000000000000"
	if err := Verify(tampered, sigPath, pubPEM); err == nil {
		t.Fatal("expected error for a tampered manifest")
	}
}
