// Package server normalizes and validates HTTP origins for WebSocket
// upgrade requests to enforce the configured access policy.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy is the compiled form of Config.AllowedOrigins. A "*" entry
// switches the policy to allow-all, which is the relay's default posture.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	policy := originPolicy{allowed: make(map[string]struct{})}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			policy.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		policy.allowed[normalized] = struct{}{}
	}

	return policy
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (p originPolicy) checkOrigin(r *http.Request) bool {
	if p.allowAll {
		return true
	}

	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		log.Printf("Blocked WebSocket connection with missing Origin header")
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		log.Printf("Blocked WebSocket connection from unparseable origin: %q", originHeader)
		return false
	}

	if _, exists := p.allowed[normalized]; !exists {
		log.Printf("Blocked WebSocket connection from disallowed origin: %q", originHeader)
		return false
	}
	return true
}
