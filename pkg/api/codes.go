package api

// Platform error codes as returned in the error_code field of an error
// payload. The platform multiplexes transport-level and model-level
// failures through one numeric space.
const (
	CodeUnknownError       = 1
	CodeServiceUnavailable = 2
	CodeUnsupportedMethod  = 3
	CodeQPSLimitReached    = 18
	CodePermissionDenied   = 6
	CodeNoPermissionToAPI  = 17
	CodeDailyLimitReached  = 19
	CodeInvalidAccessToken = 100
	CodeAccessTokenExpired = 110
	CodeAccessTokenInvalid = 111

	CodeInvalidArgument     = 336003
	CodeInvalidAPIKey       = 336004
	CodeUnsupportedModel    = 336005
	CodeServerHighLoad      = 336100
	CodeRPMLimitReached     = 336117
	CodeTPMLimitReached     = 336118
	CodeConsoleInternalErr  = 500000
	CodeStreamInterruption  = 336101
)

// defaultRetryable lists the codes that indicate a transient condition:
// the request itself was fine, the platform just could not serve it at
// that moment. Auth-expiry codes are included because a refresh makes
// the retried attempt viable.
var defaultRetryable = map[int]struct{}{
	CodeUnknownError:       {},
	CodeServiceUnavailable: {},
	CodeQPSLimitReached:    {},
	CodeServerHighLoad:     {},
	CodeRPMLimitReached:    {},
	CodeTPMLimitReached:    {},
	CodeAccessTokenExpired: {},
	CodeAccessTokenInvalid: {},
	CodeConsoleInternalErr: {},
}

// DefaultRetryableCodes returns a fresh copy of the default retryable
// code set. Callers may add or remove codes without affecting others.
func DefaultRetryableCodes() map[int]struct{} {
	out := make(map[int]struct{}, len(defaultRetryable))
	for c := range defaultRetryable {
		out[c] = struct{}{}
	}
	return out
}

// IsTokenExpired reports whether the code means the cached access token
// is no longer accepted and must be refreshed before retrying.
func IsTokenExpired(code int) bool {
	return code == CodeAccessTokenExpired || code == CodeAccessTokenInvalid
}
