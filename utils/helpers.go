package utils

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeProjectName converts a human project name into a provider-safe
// resource slug: lowercase, digits and hyphens only, no leading/trailing or
// repeated hyphens
func SanitizeProjectName(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = invalidNameChars.ReplaceAllString(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "app"
	}
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	return slug
}

// GenerateSecret returns a random hex string of the given byte length,
// used for generated database user passwords
func GenerateSecret(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// ShortID returns the first 8 characters of an identifier, used to suffix
// provider resource names that must be globally unique
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
