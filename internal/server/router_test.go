package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"auth-gateway/backend/internal/devotp"
	devotphandler "auth-gateway/backend/internal/devotp/handler"
	directorydomain "auth-gateway/backend/internal/directory/domain"
	"auth-gateway/backend/internal/identity/service"
	"auth-gateway/backend/internal/registration/domain"
)

type nopAuth struct{}

func (nopAuth) Register(context.Context, domain.Payload) (*service.RegistrationTicket, error) {
	return &service.RegistrationTicket{}, nil
}

func (nopAuth) ConfirmRegistration(context.Context, string, string) (*directorydomain.Account, error) {
	return &directorydomain.Account{}, nil
}

func (nopAuth) Login(context.Context, string, string) (*service.LoginResult, error) {
	return nil, service.ErrInvalidCredentials
}

func (nopAuth) Authenticate(string) (string, error) { return "", service.ErrInvalidCredentials }

func (nopAuth) Profile(context.Context, string) (*directorydomain.Account, error) {
	return nil, service.ErrAccountNotFound
}

func serve(r *gin.Engine, method, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Code
}

func TestNewRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Auth: nopAuth{}})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/auth/me"))
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/dev/registration/otp?email=a@x.com"))
}

func TestNewRouter_DevOTPOnlyWhenConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Auth: nopAuth{}, DevOTPHandler: devotphandler.New(devotp.NewMemoryStore())})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dev/registration/otp?email=a@x.com", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "OTP not found")
}
