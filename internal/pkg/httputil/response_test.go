package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess_WrapsData(t *testing.T) {
	rec := httptest.NewRecorder()

	Success(rec, http.StatusCreated, map[string]string{"id": "u1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"u1"}}`, rec.Body.String())
}

func TestError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(rec, http.StatusConflict, "email already exists")

	assert.JSONEq(t, `{"error":{"message":"email already exists"}}`, rec.Body.String())
}

func TestValidationError_FieldDetails(t *testing.T) {
	type input struct {
		Email    string `validate:"required,email"`
		Password string `validate:"min=6"`
	}
	err := validator.New().Struct(input{Email: "nope", Password: "abc"})
	require.Error(t, err)
	rec := httptest.NewRecorder()

	ValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Message string       `json:"message"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation error", body.Error.Message)
	assert.Equal(t, []FieldError{
		{Field: "Email", Message: "must be a valid email address"},
		{Field: "Password", Message: "must be at least 6 characters"},
	}, body.Error.Details)
}

func TestValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()

	ValidationError(rec, errors.New("invalid JSON"))

	assert.JSONEq(t, `{"error":{"message":"validation error","details":"invalid JSON"}}`, rec.Body.String())
}

func TestHandleError(t *testing.T) {
	errConflict := errors.New("conflict")
	errDown := errors.New("down")
	mappings := []ErrorMapping{
		{Error: errConflict, Status: http.StatusConflict},
		{Error: errDown, Status: http.StatusServiceUnavailable, Message: "service unavailable", Log: true},
	}

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{name: "uses error text", err: errConflict, wantStatus: http.StatusConflict, wantMessage: "conflict"},
		{name: "matches wrapped", err: fmt.Errorf("%w: pool closed", errDown), wantStatus: http.StatusServiceUnavailable, wantMessage: "service unavailable"},
		{name: "unmapped", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMessage: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			HandleError(context.Background(), rec, tt.err, mappings)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, errorMessage(t, rec))
		})
	}
}
