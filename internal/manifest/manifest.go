package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/vdifgate/internal/common"
	"example.com/vdifgate/internal/crypto"
)

// Item is one delivered file: where it is, how big, and its digest.
type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

// Manifest inventories a delivery: the extracted recordings, capture
// sources, reports and logs that belong together.
type Manifest struct {
	CreatedAt time.Time  `json:"createdAt"`
	ShaAlgo   string     `json:"shaAlgo"`
	Items     []Item     `json:"items"`
	Signature *Signature `json:"signature,omitempty"`
}

type Signature struct {
	Type          string `json:"type"`
	SignatureFile string `json:"signatureFile,omitempty"`
}

// Build hashes every path and assembles a manifest in the given order.
func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		hex, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, fmt.Errorf("hash %s: %w", p, err)
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: hex, Type: fileType(p)})
	}
	return m, nil
}

func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vdif":
		return "vdif"
	case ".pcap", ".pcapng", ".cap":
		return "pcap"
	case ".json":
		return "json"
	case ".jsonl":
		return "log"
	case ".pdf":
		return "pdf"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "other"
	}
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// payloadBytes is the canonical byte form a signature covers: the manifest
// with its signature block cleared.
func payloadBytes(m Manifest) ([]byte, error) {
	m.Signature = nil
	return json.Marshal(m)
}

// Sign writes an RS256 JWS over the manifest to sigPath and records the
// signature file in the manifest itself.
func Sign(m *Manifest, privateKeyPEM []byte, sigPath string) error {
	payload, err := payloadBytes(*m)
	if err != nil {
		return err
	}
	jws, err := crypto.SignDetachedJWS(payload, privateKeyPEM)
	if err != nil {
		return fmt.Errorf("sign manifest: %w", err)
	}
	b, err := json.MarshalIndent(jws, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(sigPath, b, 0644); err != nil {
		return err
	}
	m.Signature = &Signature{Type: "JWS-RS256", SignatureFile: filepath.Base(sigPath)}
	return nil
}

// Verify checks the manifest against the JWS at sigPath. It fails when the
// signature is invalid or when the manifest content no longer matches the
// bytes that were signed.
func Verify(m Manifest, sigPath string, publicKeyPEM []byte) error {
	b, err := os.ReadFile(sigPath)
	if err != nil {
		return err
	}
	var jws crypto.JWS
	if err := json.Unmarshal(b, &jws); err != nil {
		return fmt.Errorf("parse signature file: %w", err)
	}
	signed, err := crypto.VerifyDetachedJWS(jws, publicKeyPEM)
	if err != nil {
		return err
	}
	current, err := payloadBytes(m)
	if err != nil {
		return err
	}
	if !bytes.Equal(signed, current) {
		return errors.New("manifest does not match its signature")
	}
	return nil
}
