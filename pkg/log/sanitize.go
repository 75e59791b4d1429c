package log

import (
	"strings"
)

var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"api_key", "apikey", "api-key",
	"token", "secret", "auth",
	"credential", "private_key", "privatekey",
	"dsn",
}

// SanitizeField masks value when key names a credential, an email or a Discogs username.
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)

	if strings.Contains(lowerKey, "email") || strings.Contains(lowerKey, "mail") {
		return sanitizeEmail(value)
	}

	if strings.Contains(lowerKey, "username") || lowerKey == "user" {
		return sanitizeUsername(value)
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return sanitizeToken(value)
		}
	}

	return value
}

// sanitizeToken keeps the first and last 4 characters
func sanitizeToken(value string) string {
	if len(value) <= 8 {
		if len(value) <= 2 {
			return strings.Repeat("*", len(value))
		}
		return string(value[0]) + strings.Repeat("*", len(value)-2) + string(value[len(value)-1])
	}

	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// sanitizeUsername keeps the first 2 characters
func sanitizeUsername(value string) string {
	if len(value) <= 2 {
		return strings.Repeat("*", len(value))
	}
	return value[:2] + strings.Repeat("*", len(value)-2)
}

// sanitizeEmail keeps the first 3 characters of the local part and the domain
func sanitizeEmail(value string) string {
	parts := strings.Split(value, "@")
	if len(parts) != 2 {
		return strings.Repeat("*", len(value))
	}

	localPart := parts[0]
	domain := parts[1]

	if len(localPart) <= 3 {
		if len(localPart) == 0 {
			return "@" + domain
		}
		return string(localPart[0]) + strings.Repeat("*", len(localPart)-1) + "@" + domain
	}

	return localPart[:3] + "***@" + domain
}
