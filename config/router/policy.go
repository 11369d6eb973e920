package router

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/akeren/go-waitlist/pkg/utils"
)

const (
	defaultMaxBodyBytes = 64 << 10
	defaultHSTSMaxAge   = 31536000
)

// httpPolicy is the environment-driven part of the middleware stack. It is
// read once when the router is created.
//
//	TRUSTED_PROXIES           comma list of CIDRs/IPs, "*" for any; empty trusts none
//	CORS_ALLOWED_ORIGIN       comma list of origins, "*" for any; empty disables CORS
//	MAX_REQUEST_BODY_BYTES    default 64 KiB
//	HSTS_ENABLED              defaults to true when APP_ENV is prod/production
//	HSTS_MAX_AGE              seconds, default one year
//	HSTS_INCLUDE_SUBDOMAINS   default true
type httpPolicy struct {
	trustedProxies []string
	corsOrigins    []string
	corsAnyOrigin  bool
	maxBodyBytes   int64
	hsts           string
}

func loadHTTPPolicyFromEnv() httpPolicy {
	p := httpPolicy{
		trustedProxies: parseTrustedProxiesEnv(os.Getenv("TRUSTED_PROXIES")),
		maxBodyBytes:   defaultMaxBodyBytes,
	}

	p.corsOrigins, p.corsAnyOrigin = parseAllowedOrigins(os.Getenv("CORS_ALLOWED_ORIGIN"))

	if parsed, err := strconv.ParseInt(utils.GetEnvTrimmed("MAX_REQUEST_BODY_BYTES"), 10, 64); err == nil && parsed > 0 {
		p.maxBodyBytes = parsed
	}

	if hstsEnabled() {
		p.hsts = buildHSTSValue()
	}

	return p
}

func parseTrustedProxiesEnv(v string) []string {
	s := strings.TrimSpace(v)
	switch s {
	case "":
		// ClientIP() falls back to RemoteAddr.
		return nil
	case "*":
		return []string{"0.0.0.0/0", "::/0"}
	}
	return splitList(s)
}

func parseAllowedOrigins(v string) (origins []string, wildcard bool) {
	for _, o := range splitList(v) {
		if o == "*" {
			wildcard = true
			continue
		}
		origins = append(origins, strings.TrimSuffix(o, "/"))
	}
	return origins, wildcard
}

func (p httpPolicy) corsEnabled() bool {
	return p.corsAnyOrigin || len(p.corsOrigins) > 0
}

func (p httpPolicy) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.corsAnyOrigin {
		return true
	}
	for _, o := range p.corsOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func hstsEnabled() bool {
	appEnv := strings.ToLower(utils.GetEnvTrimmed("APP_ENV"))
	return utils.GetEnvBool("HSTS_ENABLED", appEnv == "production" || appEnv == "prod")
}

func buildHSTSValue() string {
	maxAge := int64(defaultHSTSMaxAge)
	if parsed, err := strconv.ParseInt(utils.GetEnvTrimmed("HSTS_MAX_AGE"), 10, 64); err == nil && parsed > 0 {
		maxAge = parsed
	}

	value := fmt.Sprintf("max-age=%d", maxAge)
	if utils.GetEnvBool("HSTS_INCLUDE_SUBDOMAINS", true) {
		value += "; includeSubDomains"
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
