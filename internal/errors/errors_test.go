package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := BlockingDependency("book 7 has reading history")

	assert.True(t, Is(err, ErrBlockingDependency))
	assert.False(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrInternal))

	wrapped := fmt.Errorf("delete book: %w", err)
	assert.True(t, Is(wrapped, ErrBlockingDependency))
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Code
	}{
		{http.StatusBadRequest, CodeValidation},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeForbidden},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusConflict, CodeConflict},
		{http.StatusTooManyRequests, CodeRateLimited},
		{http.StatusServiceUnavailable, CodeUnavailable},
		{http.StatusInternalServerError, CodeInternal},
		{http.StatusTeapot, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, CodeForStatus(tt.status))
		})
	}
}

func TestCode_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, CodeBlockingDependency.HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, CodeRateLimited.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Code("SOMETHING").HTTPStatus())

	err := &Error{Code: CodeInternal, Status: http.StatusBadGateway}
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
}

func TestMessage_Precedence(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "backend message wins",
			err: &Error{
				Code:           CodeValidation,
				Message:        "validation error",
				BackendMessage: "Title is required",
				BackendError:   "Bad Request",
			},
			want: "Title is required",
		},
		{
			name: "backend error field next",
			err: &Error{
				Code:         CodeInternal,
				Message:      "request failed",
				BackendError: "Internal Server Error",
			},
			want: "Internal Server Error",
		},
		{
			name: "domain message when no backend body",
			err:  Wrap(fmt.Errorf("dial tcp: connection refused"), CodeInternal, "execute request"),
			want: "execute request",
		},
		{
			name: "cause when domain message empty",
			err:  Wrap(fmt.Errorf("dial tcp: connection refused"), CodeInternal, ""),
			want: "dial tcp: connection refused",
		},
		{
			name: "plain error text",
			err:  fmt.Errorf("context deadline exceeded"),
			want: "context deadline exceeded",
		},
		{
			name: "generic fallback",
			err:  &Error{Code: CodeInternal},
			want: MsgGeneric,
		},
		{
			name: "wrapped domain error",
			err:  fmt.Errorf("list books: %w", &Error{Code: CodeNotFound, BackendMessage: "Book not found"}),
			want: "Book not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestConstructorsFallBackToDefaults(t *testing.T) {
	assert.Equal(t, MsgBlockingDependency, BlockingDependency("").Message)
	assert.Equal(t, MsgRateLimit, RateLimited("").Message)
	assert.Equal(t, "slow down", RateLimited("slow down").Message)
}

func TestWithDetailsKeepsCode(t *testing.T) {
	details := map[string]string{"title": "is required"}
	err := ErrValidation.WithDetails(details)

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, details, err.Details)
	assert.Nil(t, ErrValidation.Details)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeRateLimited, CodeOf(fmt.Errorf("search: %w", ErrRateLimited)))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
}

func TestError_ErrorText(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")

	assert.Equal(t, "dial tcp: connection refused", Wrap(cause, CodeUnavailable, "").Error())
	assert.Equal(t, "list books: dial tcp: connection refused", Wrap(cause, CodeUnavailable, "list books").Error())
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, Is(Wrap(cause, CodeUnavailable, ""), cause))
}
