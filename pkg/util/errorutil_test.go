package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", NewValidationError("bad", nil), CodeValidation, http.StatusBadRequest},
		{"unauthorized", NewUnauthorized("who"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbidden("no"), CodeForbidden, http.StatusForbidden},
		{"not found", NewNotFound("chat room", nil), CodeNotFound, http.StatusNotFound},
		{"conflict", NewConflict("again", nil), CodeConflict, http.StatusConflict},
		{"expired", NewExpired("late", nil), CodeExpired, http.StatusUnprocessableEntity},
		{"limit", NewLimitExceeded("full", nil), CodeLimitExceeded, http.StatusUnprocessableEntity},
		{"internal", NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.True(t, HasCode(tt.err, tt.code))
		})
	}
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	de := ToDomainError(fmt.Errorf("lookup: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, de.Code)
}

func TestToDomainErrorHidesDriverMessage(t *testing.T) {
	de := ToDomainError(errors.New("pq: relation does not exist"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error", de.Message)
	assert.Nil(t, ToDomainError(nil))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("pin: %w", NewLimitExceeded("pin limit reached", nil))
	assert.True(t, HasCode(err, CodeLimitExceeded))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}
