package model

import (
	"strings"
	"testing"
	"time"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("Vaccine X causes condition Y")
	b := Fingerprint("Vaccine X causes condition Y")
	if a != b {
		t.Errorf("same text produced different fingerprints: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "crux:v1:") {
		t.Errorf("fingerprint missing version prefix: %s", a)
	}
}

func TestFingerprint_NormalizesPunctuationAndCase(t *testing.T) {
	base := Fingerprint("Vaccine X causes condition Y")

	variants := []string{
		"vaccine x causes condition y",
		"Vaccine X causes condition Y!",
		"  Vaccine   X  causes condition Y.  ",
		"Vaccine X, causes condition Y",
	}
	for _, v := range variants {
		if got := Fingerprint(v); got != base {
			t.Errorf("Fingerprint(%q) = %s, want %s", v, got, base)
		}
	}
}

func TestFingerprint_DistinctClaims(t *testing.T) {
	if Fingerprint("the earth is flat") == Fingerprint("the earth is round") {
		t.Error("distinct claims produced the same fingerprint")
	}
}

func TestNormalizeClaim(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  a  b  ", "a b"},
		{"Breaking: Major earthquake reported in Japan.", "breaking major earthquake reported in japan"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := NormalizeClaim(tt.in); got != tt.want {
			t.Errorf("NormalizeClaim(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewClaim(t *testing.T) {
	at := time.Now().UTC()
	c := NewClaim("some claim text here", "https://example.com/a", at)

	if c.Fingerprint != Fingerprint("some claim text here") {
		t.Error("NewClaim did not precompute the fingerprint")
	}
	if c.SourceURL != "https://example.com/a" || !c.SubmittedAt.Equal(at) {
		t.Error("NewClaim did not carry source URL and timestamp")
	}
}
