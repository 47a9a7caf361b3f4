// Package deeplink parses and validates the custom-scheme URLs a browser
// hands back to the desktop app at the end of a login.
//
// Validation is pure: the same input and configuration always produce the
// same result, and nothing is logged or stored here.
package deeplink

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Reasons carried by AuthError when the callback itself is unusable.
const (
	ReasonInvalidTokenFormat = "invalid-token-format"
	ReasonMissingToken       = "missing-token"
	ReasonMalformedURL       = "malformed-url"
)

// callbackPath is the redirect path appended to the origin.
const callbackPath = "/desktop-callback"

var tokenPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Kind tags a Result.
type Kind int

const (
	// KindUnknown means the URL is not addressed to the auth endpoint and
	// should be ignored.
	KindUnknown Kind = iota
	// KindAuthCallback is a well-formed login callback.
	KindAuthCallback
	// KindAuthError is a callback reporting, or amounting to, a failure.
	KindAuthError
)

func (k Kind) String() string {
	switch k {
	case KindAuthCallback:
		return "auth-callback"
	case KindAuthError:
		return "auth-error"
	default:
		return "unknown"
	}
}

// AuthCallback is the payload of a successful callback.
type AuthCallback struct {
	Token        string
	RefreshToken string
	State        string
	Origin       string
	// OriginSubstituted is set when the supplied origin was rejected and
	// replaced with the default.
	OriginSubstituted bool
	// RejectedOrigin holds the rejected origin, for the caller's warning.
	RejectedOrigin string
}

// Result is the outcome of Validate. Exactly one of Callback or Reason is
// meaningful, selected by Kind.
type Result struct {
	Kind     Kind
	Callback AuthCallback
	Reason   string
}

// Config is the validator's view of the deep-link settings.
type Config struct {
	Scheme        string
	DefaultOrigin string
	AllowedHosts  []string
}

// Validator checks inbound callback URLs.
type Validator struct {
	scheme        string
	defaultOrigin string
	allowedHosts  []string
}

// NewValidator returns a validator for cfg. Scheme and hosts compare
// case-insensitively.
func NewValidator(cfg Config) *Validator {
	hosts := make([]string, 0, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &Validator{
		scheme:        strings.ToLower(cfg.Scheme),
		defaultOrigin: strings.TrimRight(cfg.DefaultOrigin, "/"),
		allowedHosts:  hosts,
	}
}

// DefaultOrigin returns the origin substituted for rejected ones.
func (v *Validator) DefaultOrigin() string {
	return v.defaultOrigin
}

// Validate classifies raw.
func (v *Validator) Validate(raw string) Result {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		if strings.HasPrefix(strings.ToLower(raw), v.scheme+":") {
			return authError(ReasonMalformedURL)
		}
		return Result{Kind: KindUnknown}
	}
	if !strings.EqualFold(u.Scheme, v.scheme) {
		return Result{Kind: KindUnknown}
	}
	endpoint, ok := authEndpoint(u)
	if !ok {
		return Result{Kind: KindUnknown}
	}

	q := u.Query()

	token := q.Get("token")
	if token == "" {
		token = q.Get("access_token")
	}
	if token == "" || endpoint == "error" {
		if reason := firstNonEmpty(q.Get("error"), q.Get("reason")); reason != "" {
			return authError(reason)
		}
		return authError(ReasonMissingToken)
	}
	if !ValidToken(token) {
		return authError(ReasonInvalidTokenFormat)
	}

	cb := AuthCallback{
		Token:        token,
		RefreshToken: q.Get("refresh_token"),
		State:        q.Get("state"),
		Origin:       v.defaultOrigin,
	}
	if origin := q.Get("origin"); origin != "" {
		if normalized, ok := v.allowedOrigin(origin); ok {
			cb.Origin = normalized
		} else {
			cb.OriginSubstituted = true
			cb.RejectedOrigin = origin
		}
	}

	return Result{Kind: KindAuthCallback, Callback: cb}
}

// ValidToken reports whether token is exactly 64 hex characters.
func ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// RedirectURL builds the browser redirect that completes the login on the
// web side. The token is percent-encoded.
func RedirectURL(origin, token string) string {
	return strings.TrimRight(origin, "/") + callbackPath + "?token=" + url.QueryEscape(token)
}

func (v *Validator) allowedOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if !slices.Contains(v.allowedHosts, host) {
		return "", false
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if host != "localhost" {
			return "", false
		}
	default:
		return "", false
	}

	return strings.ToLower(u.Scheme) + "://" + u.Host, true
}

// authEndpoint accepts both authority form (scheme://auth/callback) and
// opaque form (scheme:auth/callback). It returns the trailing segment.
func authEndpoint(u *url.URL) (string, bool) {
	var target string
	switch {
	case u.Opaque != "":
		target = u.Opaque
	case u.Host != "":
		target = u.Host + u.Path
	default:
		target = strings.TrimPrefix(u.Path, "/")
	}
	target = strings.Trim(strings.ToLower(target), "/")

	switch target {
	case "auth", "auth/callback":
		return "callback", true
	case "auth/error":
		return "error", true
	default:
		return "", false
	}
}

func authError(reason string) Result {
	return Result{Kind: KindAuthError, Reason: reason}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
