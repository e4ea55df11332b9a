package station

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes the station whose stream is being replayed or
// recorded. The sample rate is per channel, in samples per second.
type Profile struct {
	Station      string `yaml:"station"`
	SampleRateHz int64  `yaml:"sampleRateHz"`
	Description  string `yaml:"description,omitempty"`
}

// Load reads and validates a station profile.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse station profile %s: %w", path, err)
	}
	p.Station = strings.TrimSpace(p.Station)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("station profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the profile fields.
func (p *Profile) Validate() error {
	if p.Station == "" {
		return errors.New("missing station")
	}
	if _, err := ParseID(p.Station); err != nil {
		return err
	}
	if p.SampleRateHz <= 0 {
		return fmt.Errorf("sampleRateHz must be positive, got %d", p.SampleRateHz)
	}
	return nil
}

// ID returns the 16-bit wire form of the profile's station identifier.
func (p *Profile) ID() (uint16, error) {
	return ParseID(p.Station)
}

// ParseID converts a station identifier as operators write it into its
// 16-bit wire form. A decimal number is used as-is; otherwise two printable
// ASCII characters become the high and low bytes. All-digit identifiers are
// ambiguous in the operator notation and take the numeric reading.
func ParseID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint16(n), nil
	}
	if len(s) == 2 && printable(s[0]) && printable(s[1]) {
		return uint16(s[0])<<8 | uint16(s[1]), nil
	}
	return 0, fmt.Errorf("station id %q is neither a two-character code nor a 16-bit number", s)
}

func printable(b byte) bool { return b >= 0x20 && b <= 0x7e }
