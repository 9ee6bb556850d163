package statusapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"mtkflash/internal/device"
)

type fakeSource struct{ state device.State }

func (f fakeSource) State() device.State { return f.state }

func TestHandleHealthOK(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleDeviceWithoutAttachmentIsUnavailable(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/device", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleDeviceReportsAttachedState(t *testing.T) {
	s := New(fakeSource{state: device.InDa})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/device", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "in_da")
}
