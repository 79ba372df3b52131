package mw

import (
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/apierror"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/config"
)

// The REST surface is read-only: /languages, /sessions, /healthz, /readyz.
var readMethods = map[string]struct{}{
	http.MethodGet:  {},
	http.MethodHead: {},
}

var preflightHeaders = map[string]struct{}{
	"Content-Type": {},
	"X-Request-Id": {},
}

// OriginAllowed reports whether a browser at origin may reach host. Requests
// without an Origin header come from non-browser clients and are accepted.
func OriginAllowed(allowed map[string]struct{}, origin, host string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return true
	}
	if _, ok := allowed[origin]; ok {
		return true
	}
	return sameHost(origin, host)
}

func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// CORS applies the configured origin allowlist to the REST endpoints.
// Same-host pages need no headers; the WebSocket handshake calls
// OriginAllowed directly.
func CORS(cfg config.Config, next http.Handler) http.Handler {
	allowed := cfg.CORSAllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		_, listed := allowed[origin]

		reqMethod := strings.TrimSpace(r.Header.Get("Access-Control-Request-Method"))
		if r.Method == http.MethodOptions && reqMethod != "" {
			reqID, _ := RequestIDFrom(r.Context())
			if origin == "" || !listed {
				rejectPreflight(w, apierror.ErrPermission, "origin not allowed", reqID)
				return
			}
			if _, ok := readMethods[strings.ToUpper(reqMethod)]; !ok {
				rejectPreflight(w, apierror.ErrMethodNotAllowed, "method "+reqMethod+" not allowed", reqID)
				return
			}
			headers, ok := requestedHeaders(r.Header.Get("Access-Control-Request-Headers"))
			if !ok {
				rejectPreflight(w, apierror.ErrPermission, "request headers not allowed", reqID)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD")
			if headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if origin != "" && listed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		}
		next.ServeHTTP(w, r)
	})
}

// requestedHeaders echoes the requested header list when every entry is one
// the relay reads.
func requestedHeaders(raw string) (string, bool) {
	var out []string
	for _, h := range strings.Split(raw, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		canon := textproto.CanonicalMIMEHeaderKey(h)
		if _, ok := preflightHeaders[canon]; !ok {
			return "", false
		}
		out = append(out, canon)
	}
	return strings.Join(out, ", "), true
}

func rejectPreflight(w http.ResponseWriter, typ apierror.ErrorType, msg, reqID string) {
	apierror.Write(w, apierror.StatusFromType(typ), &apierror.Error{Type: typ, Message: msg, RequestID: reqID})
}
