package proxy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/florianilch/thinkgate/internal/hook"
	"github.com/florianilch/thinkgate/internal/observability/middleware"
)

// requestIDHeader is honored when present so client and proxy logs correlate.
const requestIDHeader = "X-Request-Id"

// PreCall runs the hook chain over JSON request bodies before the request reaches next.
//
// Bodies are buffered up to maxBytes. A body that is not a JSON object is forwarded
// untouched so the upstream reports its own validation error.
func PreCall(chain *hook.Chain, cache hook.Cache, callType hook.CallType, maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			_ = r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeJSONError(ctx, w, "request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				slog.ErrorContext(ctx, "failed to read request body", "error", err)
				writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
				return
			}

			var req hook.Request
			if err := json.Unmarshal(body, &req); err != nil {
				slog.DebugContext(ctx, "forwarding non-object request body unchanged", "error", err)
				setBody(r, body)
				next.ServeHTTP(w, r)
				return
			}

			caller := callerFromRequest(r)
			hadThinking := req.Thinking != nil

			out, err := chain.Run(ctx, caller, cache, &req, callType)
			if err != nil {
				writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
				return
			}

			rewritten, err := json.Marshal(out)
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode request body", "error", err)
				writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			middleware.SetAttrs(ctx,
				slog.String("request_id", caller.RequestID),
				slog.String("call_type", string(callType)),
				slog.Bool("thinking.injected", !hadThinking && out.Thinking != nil),
			)

			r.Header.Set(requestIDHeader, caller.RequestID)
			setBody(r, rewritten)
			next.ServeHTTP(w, r)
		})
	}
}

// setBody replaces the request body and keeps the length metadata consistent.
func setBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	r.ContentLength = int64(len(body))
	r.Header.Del("Content-Length")
}

// callerFromRequest derives the caller identity from request headers.
func callerFromRequest(r *http.Request) hook.Caller {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return hook.Caller{
		RequestID:      requestID,
		KeyFingerprint: fingerprint(presentedKey(r)),
	}
}

// presentedKey returns the credential the client sent, if any.
func presentedKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
		return auth
	}
	return ""
}

// fingerprint returns the first 12 hex characters of the key's SHA-256 digest.
func fingerprint(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
