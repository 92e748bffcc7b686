package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/biblioapp/biblio/internal/errors"
	"github.com/biblioapp/biblio/internal/state"
)

func TestEnvelopeTransformer_WrapsSuccess(t *testing.T) {
	data := map[string]string{"id": "lib-a", "name": "Alpha"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	out, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.InDelta(t, float64(EnvelopeVersion), decoded["v"], 0)
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, map[string]any{"id": "lib-a", "name": "Alpha"}, decoded["data"])
	assert.NotContains(t, decoded, "error")
}

func TestEnvelopeTransformer_WrapsAPIError(t *testing.T) {
	apiErr := &APIError{status: http.StatusNotFound, Code: "NOT_FOUND", Message: "book not found"}

	result, err := EnvelopeTransformer(nil, "404", apiErr)
	require.NoError(t, err)

	env, ok := result.(APIErrorEnvelope)
	require.True(t, ok)
	assert.False(t, env.Success)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.Equal(t, "book not found", env.Message)
	assert.Equal(t, "book not found", env.Error)
}

func TestEnvelopeTransformer_PassesEnvelopesThrough(t *testing.T) {
	in := APIEnvelope{Version: EnvelopeVersion, Success: true, Data: 1}

	result, err := EnvelopeTransformer(nil, "200", in)
	require.NoError(t, err)
	assert.Equal(t, in, result)

	raw := []byte("raw")
	result, err = EnvelopeTransformer(nil, "200", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, result)
}

func TestEnvelopeTransformer_PlainError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "500", errors.New("boom"))
	require.NoError(t, err)

	assert.Equal(t, APIEnvelope{Version: EnvelopeVersion, Success: false, Error: "boom"}, result)
}

func TestNewError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		errs       []error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "wrapped domain error",
			status:     http.StatusInternalServerError,
			errs:       []error{fmt.Errorf("lookup: %w", domainerrors.NotFound("library not found"))},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "no library",
			status:     http.StatusInternalServerError,
			errs:       []error{domainerrors.ErrNoLibrary},
			wantStatus: http.StatusConflict,
			wantCode:   "NO_LIBRARY",
		},
		{
			name:       "missing state",
			status:     http.StatusInternalServerError,
			errs:       []error{state.ErrNotFound},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "request validation",
			status:     http.StatusUnprocessableEntity,
			errs:       []error{errors.New("expected integer")},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION",
		},
		{
			name:       "unknown failure",
			status:     http.StatusInternalServerError,
			errs:       []error{errors.New("disk on fire")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := newError(tt.status, "message", tt.errs...)

			apiErr, ok := se.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, apiErr.GetStatus())
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestStatusToCode(t *testing.T) {
	assert.Equal(t, "VALIDATION", statusToCode(http.StatusBadRequest))
	assert.Equal(t, "CONFLICT", statusToCode(http.StatusConflict))
	assert.Equal(t, "RATE_LIMITED", statusToCode(http.StatusTooManyRequests))
	assert.Equal(t, "UNAVAILABLE", statusToCode(http.StatusServiceUnavailable))
	assert.Equal(t, "INTERNAL", statusToCode(http.StatusTeapot))
}
