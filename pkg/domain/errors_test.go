package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cases := []struct {
		name   string
		err    *AppError
		status int
		code   string
		msg    string
	}{
		{"bad request", BadRequest("", nil), http.StatusBadRequest, CodeBadRequest, "Bad Request"},
		{"unauthorized", Unauthorized("", nil), http.StatusUnauthorized, CodeUnauthorized, "Unauthorized"},
		{"forbidden", Forbidden("", nil), http.StatusForbidden, CodeForbidden, "Forbidden"},
		{"not found", NotFound("User not found", map[string]string{"id": "1"}), http.StatusNotFound, CodeNotFound, "User not found"},
		{"conflict", Conflict("", nil), http.StatusConflict, CodeConflict, "Conflict"},
		{"too large", PayloadTooLarge("", nil), http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request payload too large"},
		{"unprocessable", Unprocessable("", nil), http.StatusUnprocessableEntity, CodeUnprocessable, "Unprocessable Entity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.msg, tc.err.Message)
		})
	}
}

func TestNewAppError_UnrecognizedStatusBecomesInternal(t *testing.T) {
	err := NewAppError(http.StatusTeapot, "", "brew failed", nil)

	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, CodeInternal, err.Code)
}

func TestNewAppError_KeepsExplicitCode(t *testing.T) {
	err := NewAppError(http.StatusBadRequest, "invalid_limit", "Invalid limit parameter.", nil)

	assert.Equal(t, "invalid_limit", err.Code)
}

func TestAsAppError_FindsWrappedError(t *testing.T) {
	cause := errors.New("conditional check failed")
	appErr := Conflict("User already exists", nil).WithCause(cause)
	wrapped := fmt.Errorf("create user: %w", appErr)

	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, got.Error(), "conditional check failed")

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestUserPatchApply(t *testing.T) {
	first := "Ada"
	u := User{ID: "1", FirstName: "A", LastName: "Lovelace"}

	UserPatch{FirstName: &first}.Apply(&u)

	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "Lovelace", u.LastName)
}
