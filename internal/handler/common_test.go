package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wedding-planner/internal/repository"
	"github.com/iliyamo/wedding-planner/internal/upload"
)

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", &repository.ValidationError{Field: "name", Message: "is required"}, http.StatusBadRequest, `{"error":"name: is required","field":"name"}`},
		{"upload rejected", &upload.RejectedError{Filename: "a.txt", Reason: "nope"}, http.StatusBadRequest, `{"error":"a.txt: nope"}`},
		{"not found", fmt.Errorf("get: %w", repository.ErrNotFound), http.StatusNotFound, `{"error":"guest not found"}`},
		{"item not found", repository.ErrItemNotFound, http.StatusNotFound, `{"error":"item not found"}`},
		{"document not found", repository.ErrDocumentNotFound, http.StatusNotFound, `{"error":"document not found"}`},
		{"email exists", repository.ErrEmailExists, http.StatusConflict, `{"error":"email already exists"}`},
		{"bad credentials", repository.ErrInvalidCredentials, http.StatusUnauthorized, `{"error":"invalid credentials"}`},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, `{"error":"internal server error"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext("")
			require.NoError(t, respondError(c, "guest", tc.err))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestBindStrict(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"valid", `{"name":"Asha"}`, "Asha", false},
		{"empty body", ``, "", false},
		{"unknown field", `{"name":"Asha","role":"admin"}`, "", true},
		{"truncated", `{"name":`, "", true},
		{"trailing data", `{"name":"Asha"}{"name":"Ravi"}`, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newContext(tc.in)
			var b body
			err := bindStrict(c, &b)
			if tc.wantErr {
				var ve *repository.ValidationError
				assert.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, b.Name)
		})
	}
}

func TestFormInput(t *testing.T) {
	in, err := formInput(map[string][]string{"category": {"Venue"}, "budget": {" 1200.50 "}, "status": {""}})
	require.NoError(t, err)
	require.NotNil(t, in.Category)
	assert.Equal(t, "Venue", *in.Category)
	require.NotNil(t, in.Budget)
	assert.Equal(t, 1200.5, *in.Budget)
	require.NotNil(t, in.Status)
	assert.Empty(t, *in.Status)
	assert.Nil(t, in.Notes)

	_, err = formInput(map[string][]string{"budget": {"lots"}})
	var ve *repository.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "budget", ve.Field)

	in, err = formInput(map[string][]string{"total": {"5"}})
	require.NoError(t, err, "total is accepted like in JSON bodies")
	require.NotNil(t, in.Total)

	_, err = formInput(map[string][]string{"budgt": {"900"}, "total": {"5"}})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "budgt", ve.Field)
}

func TestGetUserID(t *testing.T) {
	c, _ := newContext("")
	_, err := getUserID(c)
	assert.Error(t, err)

	c.Set("user_id", "u1")
	id, err := getUserID(c)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}
