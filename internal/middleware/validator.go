package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

// ValidateImageContentType accepts only image payloads. The declared
// multipart content type is trusted the same way the original upload
// handler trusted the browser's mimetype.
func ValidateImageContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("unsupported content type: %s (images only)", contentType)
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename reduces a username to something safe for a
// Content-Disposition filename.
func SanitizeFilename(name string) string {
	name = unsafeFilename.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "history"
	}
	return name
}

// ValidateUsername rejects identities that cannot scope records safely.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(username) > 64 {
		return fmt.Errorf("username too long (max 64 characters)")
	}
	return nil
}
