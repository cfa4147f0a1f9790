package signal

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// newOriginChecker builds the upgrader's CheckOrigin. An empty list, or one
// containing "*", accepts every origin.
func newOriginChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := len(origins) == 0
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn().Str("module", "signal").Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}
		allowed[normalized] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		header := r.Header.Get("Origin")
		normalized, ok := normalizeOrigin(header)
		if ok {
			if _, exists := allowed[normalized]; exists {
				return true
			}
		}
		log.Warn().Str("module", "signal").Str("origin", header).Msg("blocked websocket from disallowed origin")
		return false
	}
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
