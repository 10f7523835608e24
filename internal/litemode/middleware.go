package litemode

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/espasatel/espasatel/internal/metrics"
)

const (
	// AutoCookie marks a visitor the server classified as slow.
	AutoCookie = "lite_mode"
	// PrefCookie stores the visitor's explicit choice, "on" or "off".
	PrefCookie = "lite_mode_pref"
	// ReasonHeader carries the matched rule for debugging.
	ReasonHeader = "X-Lite-Mode-Reason"
)

var staticAsset = regexp.MustCompile(`(?i)\.(?:ico|png|jpg|jpeg|gif|webp|svg|mp4|woff2?|ttf|otf|eot)$`)

// Cookies configures cookie lifetimes.
type Cookies struct {
	AutoMaxAge time.Duration
	PrefMaxAge time.Duration
}

// DefaultCookies returns a 10 minute auto marker and a 30 day preference.
func DefaultCookies() Cookies {
	return Cookies{
		AutoMaxAge: 600 * time.Second,
		PrefMaxAge: 30 * 24 * time.Hour,
	}
}

type ctxKey struct{}

// FromContext returns the decision made by Middleware for this request.
func FromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(ctxKey{}).(Decision)
	return d, ok
}

// Skip reports whether a path is exempt from mode detection: static assets
// and the lite pages themselves.
func Skip(path string) bool {
	return strings.HasPrefix(path, "/_next") ||
		strings.HasPrefix(path, "/lite") ||
		staticAsset.MatchString(path)
}

// StateFromRequest reads the preference cookie and the auto marker.
func StateFromRequest(r *http.Request) (pref Preference, autoMarker bool) {
	pref = PrefNone
	if ck, err := r.Cookie(PrefCookie); err == nil {
		pref = ParsePreference(ck.Value)
	}
	if ck, err := r.Cookie(AutoCookie); err == nil && ck.Value == "true" {
		autoMarker = true
	}
	return pref, autoMarker
}

// Middleware resolves the rendering mode for each page request. An explicit
// preference cookie is never overridden. Without one the request hints are
// classified: slow sets the short-lived auto marker, fast clears a stale one.
// The decision is stored in the request context.
func Middleware(c *Classifier, cookies Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// The auto marker is not consulted here: every page request
			// re-classifies so a recovered link clears it.
			pref, marked := StateFromRequest(r)
			d := Resolve(pref, false, func() Classification {
				return c.Classify(HintsFromHeader(r.Header))
			})

			if d.Source == SourceLive {
				if d.Lite {
					setAuto(w, cookies.AutoMaxAge)
					w.Header().Set(ReasonHeader, d.Reason)
					zap.L().Debug("litemode: slow connection detected",
						zap.String("path", r.URL.Path),
						zap.String("reason", d.Reason),
					)
				} else if marked {
					clearCookie(w, AutoCookie)
				}
			}
			metrics.LiteDecisions.WithLabelValues(string(d.Source), strconv.FormatBool(d.Lite)).Inc()

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, d)))
		})
	}
}

// SetPreference records an explicit toggle. Choosing full mode also drops the
// auto marker; choosing lite sets it so the next render starts in lite.
func SetPreference(w http.ResponseWriter, lite bool, cookies Cookies) {
	pref := PrefOff
	if lite {
		pref = PrefOn
	}
	http.SetCookie(w, &http.Cookie{
		Name:     PrefCookie,
		Value:    pref.String(),
		Path:     "/",
		MaxAge:   int(cookies.PrefMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
	if lite {
		setAuto(w, cookies.PrefMaxAge)
	} else {
		clearCookie(w, AutoCookie)
	}
}

// ClearPreference forgets the explicit toggle so automatic detection applies
// again on the next request.
func ClearPreference(w http.ResponseWriter) {
	clearCookie(w, PrefCookie)
}

func setAuto(w http.ResponseWriter, maxAge time.Duration) {
	// Readable by client scripts so the UI can sync without a round trip.
	http.SetCookie(w, &http.Cookie{
		Name:     AutoCookie,
		Value:    "true",
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: false,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
