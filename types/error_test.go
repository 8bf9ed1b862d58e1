package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrProvider, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("glm")

	if GetErrorCode(err) != ErrProvider {
		t.Fatalf("expected code %s, got %s", ErrProvider, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_StatusCodeByCode(t *testing.T) {
	t.Parallel()

	cases := map[ErrorCode]int{
		ErrValidation:  http.StatusBadRequest,
		ErrNotFound:    http.StatusNotFound,
		ErrConflict:    http.StatusConflict,
		ErrProvider:    http.StatusBadGateway,
		ErrUnavailable: http.StatusServiceUnavailable,
		ErrInternal:    http.StatusInternalServerError,
		ErrStageLogic:  http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, NewError(code, "x").StatusCode(), string(code))
	}
	assert.Equal(t, http.StatusTeapot, NewError(ErrInternal, "x").WithHTTPStatus(http.StatusTeapot).StatusCode())
}

func TestAsError_ThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := Errorf(ErrNotFound, "workflow %s not found", "abc")
	wrapped := fmt.Errorf("lookup: %w", inner)

	e, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "workflow abc not found", e.Message)
	assert.True(t, IsErrorCode(wrapped, ErrNotFound))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrNotFound))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, "x"))

	plain := errors.New("disk full")
	w := WrapError(plain, "write failed")
	assert.Equal(t, ErrInternal, w.Code)
	assert.ErrorIs(t, w, plain)

	typed := NewError(ErrValidation, "bad")
	assert.Same(t, typed, WrapError(typed, "ignored"))
}
