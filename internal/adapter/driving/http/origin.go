package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// originPolicy decides which browser origins may open a socket. An empty
// policy or a "*" entry admits everyone. Requests without an Origin header
// come from non-browser peers and are admitted.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins))}
	if len(origins) == 0 {
		p.allowAll = true
		return p
	}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			p.allowAll = true
			continue
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			log.Warn().Str("origin", o).Msg("Ignoring invalid origin in configuration")
			continue
		}
		p.allowed[n] = struct{}{}
	}
	return p
}

func (p *originPolicy) check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if p.allowAll || header == "" {
		return true
	}
	if n, ok := normalizeOrigin(header); ok {
		if _, exists := p.allowed[n]; exists {
			return true
		}
	}
	log.Warn().Str("origin", header).Msg("Blocked websocket connection from disallowed origin")
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
