package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

type healthBody struct {
	Status  string            `json:"status"`
	Failing map[string]string `json:"failing"`
}

func check(t *testing.T, h *Handler) (int, healthBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthCheck(t *testing.T) {
	cases := []struct {
		name        string
		pinger      Pinger
		policy      PolicyChecker
		wantStatus  int
		wantFailing []string
	}{
		{"no checks", nil, nil, http.StatusOK, nil},
		{"all healthy", &mockPinger{}, &mockPolicyChecker{}, http.StatusOK, nil},
		{"db down", &mockPinger{pingErr: errors.New("connection refused")}, &mockPolicyChecker{}, http.StatusServiceUnavailable, []string{"database"}},
		{"policy broken", nil, &mockPolicyChecker{healthErr: errors.New("compile failed")}, http.StatusServiceUnavailable, []string{"policy"}},
		{"both down", &mockPinger{pingErr: errors.New("x")}, &mockPolicyChecker{healthErr: errors.New("y")}, http.StatusServiceUnavailable, []string{"database", "policy"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := check(t, New(tc.pinger, tc.policy))
			assert.Equal(t, tc.wantStatus, code)
			if tc.wantFailing == nil {
				assert.Equal(t, "ok", body.Status)
				assert.Empty(t, body.Failing)
				return
			}
			assert.Equal(t, "unavailable", body.Status)
			for _, name := range tc.wantFailing {
				assert.Contains(t, body.Failing, name)
			}
			assert.Len(t, body.Failing, len(tc.wantFailing))
		})
	}
}
