package utils

import (
	"strings"
	"testing"
)

func TestSanitizeProjectName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My App", "my-app"},
		{"  Spaced  Out  ", "spaced-out"},
		{"already-a-slug", "already-a-slug"},
		{"Ünïcode & Symbols!!", "n-code-symbols"},
		{"---hyphens---", "hyphens"},
		{"", "app"},
		{"!!!", "app"},
		{"UPPER123", "upper123"},
	}
	for _, tc := range cases {
		if got := SanitizeProjectName(tc.in); got != tc.want {
			t.Errorf("SanitizeProjectName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeProjectNameCapsLength(t *testing.T) {
	long := strings.Repeat("abcde-", 20)
	got := SanitizeProjectName(long)
	if len(got) > 40 {
		t.Fatalf("expected at most 40 characters, got %d (%q)", len(got), got)
	}
	if strings.HasSuffix(got, "-") || strings.HasPrefix(got, "-") {
		t.Fatalf("expected no edge hyphens after truncation, got %q", got)
	}
}

func TestGenerateSecret(t *testing.T) {
	first := GenerateSecret(18)
	second := GenerateSecret(18)

	if len(first) != 36 {
		t.Fatalf("expected 36 hex characters for 18 bytes, got %d", len(first))
	}
	if first == second {
		t.Fatal("expected distinct secrets")
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("abcdef12-3456-7890"); got != "abcdef12" {
		t.Fatalf("ShortID = %q, want abcdef12", got)
	}
	if got := ShortID("short"); got != "short" {
		t.Fatalf("ShortID = %q, want short", got)
	}
}
