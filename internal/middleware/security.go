package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityConfig lists the response headers set on every request. Empty
// values are not sent.
type SecurityConfig struct {
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
	// PermissionsPolicy switches off browser features a shared kiosk must
	// never expose.
	PermissionsPolicy string
	CSPDirectives     []string
}

// DefaultSecurityConfig suits a JSON-only API used from a kiosk browser.
// Referrers are dropped because paths carry patient ids.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSMaxAge:         31536000,
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		ReferrerPolicy:     "no-referrer",
		PermissionsPolicy:  "camera=(), microphone=(), geolocation=(), payment=(), usb=()",
		CSPDirectives: []string{
			"default-src 'none'",
			"form-action 'self'",
			"frame-ancestors 'none'",
			"base-uri 'none'",
		},
	}
}

// SecurityHeaders adds security headers to responses. HSTS is only sent over
// TLS so a kiosk on plain HTTP during setup is not locked out.
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	csp := strings.Join(config.CSPDirectives, "; ")
	headers := map[string]string{
		"X-Frame-Options":         config.FrameOptions,
		"X-Content-Type-Options":  config.ContentTypeOptions,
		"Referrer-Policy":         config.ReferrerPolicy,
		"Permissions-Policy":      config.PermissionsPolicy,
		"Content-Security-Policy": csp,
	}

	return func(c *gin.Context) {
		if config.HSTSMaxAge > 0 && isTLS(c) {
			c.Header("Strict-Transport-Security", "max-age="+strconv.Itoa(config.HSTSMaxAge)+"; includeSubDomains")
		}
		for name, value := range headers {
			if value != "" {
				c.Header(name, value)
			}
		}
		c.Next()
	}
}

func isTLS(c *gin.Context) bool {
	return c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
}
