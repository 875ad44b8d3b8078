package apperr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", ErrEmptyMessage, http.StatusBadRequest},
		{"not found", ErrMessageNotFound, http.StatusNotFound},
		{"forbidden", ErrNotParticipant, http.StatusForbidden},
		{"unauthenticated", Unauthorized("no token"), http.StatusUnauthorized},
		{"precondition", FailedPrecondition("x"), http.StatusConflict},
		{"wrapped", pkgerrors.Wrap(ErrNotSender, "delete"), http.StatusForbidden},
		{"plain", pkgerrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestSentinelMatchesThroughWrap(t *testing.T) {
	err := Wrap(CodeNotFound, "message not found", pkgerrors.New("not found"))
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestWriteHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, Internal("save message", pkgerrors.New("scylla: timeout")))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body AppError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInternal, body.Code)
	assert.Equal(t, "internal error", body.Message)
}

func TestWriteClientError(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, ErrSelfMessage)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body AppError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInvalidArgument, body.Code)
	assert.Equal(t, "cannot message yourself", body.Message)
}
