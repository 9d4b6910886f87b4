package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	t.Parallel()

	t.Run("creates error with all defaults", func(t *testing.T) {
		err := NewError(ErrCodeInvalidConfig, "configuration is invalid")
		if err == nil {
			t.Fatal("NewError returned nil")
		}
		if err.Code != ErrCodeInvalidConfig {
			t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
		}
		if err.Message != "configuration is invalid" {
			t.Errorf("Message = %q, want %q", err.Message, "configuration is invalid")
		}
		if err.Category != CategoryConfiguration {
			t.Errorf("Category = %v, want %v", err.Category, CategoryConfiguration)
		}
		if err.Details == nil {
			t.Error("Details map is nil")
		}
		if err.Context == nil {
			t.Error("Context map is nil")
		}
		if err.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
	})

	t.Run("sets correct user-facing defaults", func(t *testing.T) {
		if !NewError(ErrCodeInvalidKey, "bad key").UserFacing {
			t.Error("InvalidKey should be user-facing by default")
		}
		if NewError(ErrCodeInternalError, "internal error").UserFacing {
			t.Error("InternalError should not be user-facing by default")
		}
	})

	t.Run("sets correct HTTP status defaults", func(t *testing.T) {
		tests := []struct {
			code       ErrorCode
			wantStatus int
		}{
			{ErrCodeInvalidConfig, 400},
			{ErrCodeInvalidKey, 400},
			{ErrCodeInvalidQuery, 400},
			{ErrCodeProductNotFound, 404},
			{ErrCodeStoreRead, 502},
			{ErrCodeInternalError, 500},
			{ErrCodePanicRecovered, 500},
		}

		for _, tt := range tests {
			err := NewError(tt.code, "test")
			if err.HTTPStatus != tt.wantStatus {
				t.Errorf("%v: HTTPStatus = %d, want %d", tt.code, err.HTTPStatus, tt.wantStatus)
			}
		}
	})
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     ErrorCode
		expected ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeMissingConfig, CategoryConfiguration},
		{ErrCodeConfigLoad, CategoryConfiguration},
		{ErrCodeInvalidKey, CategoryValidation},
		{ErrCodeInvalidValue, CategoryValidation},
		{ErrCodeInvalidQuery, CategoryValidation},
		{ErrCodeProductNotFound, CategoryNotFound},
		{ErrCodeStoreRead, CategoryStorage},
		{ErrCodeInternalError, CategoryInternal},
		{ErrCodeUnknownError, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := GetCategory(tt.code); got != tt.expected {
				t.Errorf("GetCategory(%v) = %v, want %v", tt.code, got, tt.expected)
			}
		})
	}
}

func TestAppError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "code and message only",
			err:  NewError(ErrCodeInvalidKey, "cache key cannot be empty"),
			want: "INVALID_KEY: cache key cannot be empty",
		},
		{
			name: "with component",
			err:  NewError(ErrCodeInvalidKey, "cache key cannot be empty").WithComponent("id-cache"),
			want: "[id-cache] INVALID_KEY: cache key cannot be empty",
		},
		{
			name: "with component and operation",
			err: NewError(ErrCodeInvalidKey, "cache key cannot be empty").
				WithComponent("id-cache").WithOperation("save"),
			want: "[id-cache:save] INVALID_KEY: cache key cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Wrapping(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("boom")
	err := Wrap(cause, ErrCodeInternalError, "failed to store value in cache")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if !errors.Is(err, NewError(ErrCodeInternalError, "")) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, NewError(ErrCodeInvalidKey, "")) {
		t.Error("errors.Is should not match a different code")
	}

	outer := fmt.Errorf("service: %w", err)
	if CodeOf(outer) != ErrCodeInternalError {
		t.Errorf("CodeOf = %v, want %v", CodeOf(outer), ErrCodeInternalError)
	}
	if !HasCode(outer, ErrCodeInternalError) {
		t.Error("HasCode should see through fmt wrapping")
	}
	if CodeOf(cause) != ErrCodeUnknownError {
		t.Errorf("CodeOf plain error = %v, want %v", CodeOf(cause), ErrCodeUnknownError)
	}
}

func TestClassifiers(t *testing.T) {
	t.Parallel()

	if !IsValidation(NewError(ErrCodeInvalidValue, "empty")) {
		t.Error("InvalidValue should be a validation error")
	}
	if IsValidation(NewError(ErrCodeInternalError, "x")) {
		t.Error("InternalError should not be a validation error")
	}
	if !IsNotFound(fmt.Errorf("wrapped: %w", NewError(ErrCodeProductNotFound, "missing"))) {
		t.Error("ProductNotFound should be a not-found error")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("plain errors are never not-found errors")
	}
	if got := HTTPStatusOf(NewError(ErrCodeProductNotFound, "missing")); got != 404 {
		t.Errorf("HTTPStatusOf = %d, want 404", got)
	}
	if got := HTTPStatusOf(errors.New("plain")); got != 500 {
		t.Errorf("HTTPStatusOf plain = %d, want 500", got)
	}
}

func TestAppError_StringAndJSON(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodeInvalidQuery, "minimum price cannot be greater than maximum price").
		WithComponent("recommendations").
		WithOperation("validate").
		WithDetail("min_price", 10).
		WithContext("path", "/api/products/recommendations").
		WithCause(errors.New("root"))

	s := err.String()
	for _, want := range []string{"Code=INVALID_QUERY", "Category=validation", "Component=recommendations", "Operation=validate", `Cause="root"`} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestUserFacingMessage(t *testing.T) {
	t.Parallel()

	if got := NewError(ErrCodeProductNotFound, "Product not found with ID: P1").UserFacingMessage(); got != "Product not found with ID: P1" {
		t.Errorf("UserFacingMessage = %q", got)
	}
	if got := NewError(ErrCodeInternalError, "nil map write").UserFacingMessage(); strings.Contains(got, "nil map") {
		t.Errorf("internal details leaked: %q", got)
	}
}

func TestWithStack(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodePanicRecovered, "panic").WithStack()
	if err.Stack == "" {
		t.Error("WithStack should capture a stack")
	}
}
