package ratelimit

import "strings"

// UnknownOrigin keys callers whose origin cannot be determined.
const UnknownOrigin = "unknown"

// ClientOrigin returns the first entry of an X-Forwarded-For chain.
func ClientOrigin(forwardedFor string) string {
	first, _, _ := strings.Cut(forwardedFor, ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}
	return UnknownOrigin
}

// ContactKey builds the limiter key for contact form submissions.
func ContactKey(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = UnknownOrigin
	}
	return "contact:" + origin
}
