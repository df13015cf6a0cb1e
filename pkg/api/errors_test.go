package api

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIErrorInterface(t *testing.T) {
	var _ error = &APIError{}
}

func TestAPIErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with code",
			&APIError{Type: ErrorTypeTransient, Code: CodeServerHighLoad, Message: "server high load"},
			"transient_error: server high load (error_code: 336100)",
		},
		{
			"without code",
			&APIError{Type: ErrorTypeAuth, Message: "identity endpoint unreachable"},
			"auth_error: identity endpoint unreachable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("APIError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		wantType ErrorType
	}{
		{"server high load", CodeServerHighLoad, ErrorTypeTransient},
		{"qps limit", CodeQPSLimitReached, ErrorTypeTransient},
		{"rpm limit", CodeRPMLimitReached, ErrorTypeTransient},
		{"tpm limit", CodeTPMLimitReached, ErrorTypeTransient},
		{"service unavailable", CodeServiceUnavailable, ErrorTypeTransient},
		{"token expired", CodeAccessTokenExpired, ErrorTypeTransient},
		{"token invalid mid-flight", CodeAccessTokenInvalid, ErrorTypeTransient},
		{"invalid access token", CodeInvalidAccessToken, ErrorTypeAuth},
		{"permission denied", CodePermissionDenied, ErrorTypeFatal},
		{"invalid argument", CodeInvalidArgument, ErrorTypeFatal},
		{"unsupported model", CodeUnsupportedModel, ErrorTypeFatal},
		{"unclassified code", 999999, ErrorTypeFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.code, "msg")
			if err.Type != tt.wantType {
				t.Errorf("Classify(%d).Type = %q, want %q", tt.code, err.Type, tt.wantType)
			}
			if err.Code != tt.code {
				t.Errorf("Classify(%d).Code = %d, want %d", tt.code, err.Code, tt.code)
			}
			if err.Message != "msg" {
				t.Errorf("Classify(%d).Message = %q, want %q", tt.code, err.Message, "msg")
			}
		})
	}
}

func TestClassifyPreservesOriginalMessage(t *testing.T) {
	err := Classify(CodeServerHighLoad, "server high load")
	if err.Message != "server high load" || err.Code != CodeServerHighLoad {
		t.Errorf("original code/message not preserved: %v", err)
	}
}

func TestIsTransientUnwraps(t *testing.T) {
	inner := NewTransientError(CodeQPSLimitReached, "qps limit reached")
	wrapped := fmt.Errorf("attempt 2: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("IsTransient should see through wrapped errors")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("IsTransient(plain error) = true, want false")
	}
}

func TestDefaultRetryableCodesIsCopy(t *testing.T) {
	a := DefaultRetryableCodes()
	delete(a, CodeServerHighLoad)
	b := DefaultRetryableCodes()
	if _, ok := b[CodeServerHighLoad]; !ok {
		t.Error("mutating one copy affected another")
	}
}

func TestIsTokenExpired(t *testing.T) {
	if !IsTokenExpired(CodeAccessTokenExpired) || !IsTokenExpired(CodeAccessTokenInvalid) {
		t.Error("expiry codes not recognized")
	}
	if IsTokenExpired(CodeServerHighLoad) {
		t.Error("high-load code reported as token expiry")
	}
}
