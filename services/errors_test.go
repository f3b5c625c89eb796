package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/repository"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{invalid("bad %s", "input"), http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("loading session: %w", ErrNotFound), http.StatusNotFound},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrEmailTaken, http.StatusConflict},
		{ErrModuleLocked, http.StatusForbidden},
		{ErrAIUnavailable, http.StatusServiceUnavailable},
		{ErrAIProvider, http.StatusBadGateway},
		{repository.ErrDuplicate, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestWriteServiceError(t *testing.T) {
	body := func(err error) (int, string) {
		rec := httptest.NewRecorder()
		writeServiceError(rec, err)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec.Code, resp["error"]
	}

	code, msg := body(invalid("Goal must be between 5 and 180 minutes"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Goal must be between 5 and 180 minutes", msg)

	code, msg = body(fmt.Errorf("redeem: %w", ErrInsufficientPoints))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Insufficient points", msg)

	code, msg = body(errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", msg)
}
