package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/orderdesk/orderdesk-backend/pkg/errors"
)

type sample struct {
	Name   string `json:"name" validate:"required,max=8"`
	Status string `json:"status" validate:"omitempty,oneof=new closed"`
}

func TestDecodeJSONBody(t *testing.T) {
	cases := map[string]struct {
		body    string
		wantErr bool
		field   string
	}{
		"valid":          {body: `{"name":"ok","status":"new"}`},
		"missing name":   {body: `{"status":"new"}`, wantErr: true, field: "sample.name"},
		"bad status":     {body: `{"name":"ok","status":"x"}`, wantErr: true, field: "sample.status"},
		"unknown field":  {body: `{"name":"ok","extra":1}`, wantErr: true},
		"trailing value": {body: `{"name":"ok"}{"name":"again"}`, wantErr: true},
		"malformed":      {body: `{"name":`, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest sample
			err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			if tc.field != "" {
				details, ok := typed.Details().(map[string]string)
				require.True(t, ok)
				assert.Contains(t, details, tc.field)
			}
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?minutes=30&bad=x&big=999", nil)
	v, err := ParseQueryInt(req, "minutes", 0, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 30, v)

	v, err = ParseQueryInt(req, "missing", 7, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = ParseQueryInt(req, "bad", 0, 0, 100)
	assert.Error(t, err)
	_, err = ParseQueryInt(req, "big", 0, 0, 100)
	assert.Error(t, err)
}

func TestParseQueryTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-02T09:00:00%2B01:00&bad=monday", nil)
	v, err := ParseQueryTime(req, "from")
	require.NoError(t, err)
	assert.Equal(t, 8, v.UTC().Hour())

	_, err = ParseQueryTime(req, "bad")
	assert.Error(t, err)
	_, err = ParseQueryTime(req, "missing")
	assert.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("orderId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	id, err := ParseUUIDParam(withParam("aaaaaaaa-0000-0000-0000-000000000001"), "orderId")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000001", id.String())

	_, err = ParseUUIDParam(withParam("nope"), "orderId")
	assert.Error(t, err)
	_, err = ParseUUIDParam(withParam("00000000-0000-0000-0000-000000000000"), "orderId")
	assert.Error(t, err)
}
