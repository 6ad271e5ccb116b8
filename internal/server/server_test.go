package server

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func signToken(t *testing.T, secret []byte) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authedHandler(secret []byte) echo.HandlerFunc {
	return withAuth(func(c echo.Context) error {
		return c.String(http.StatusOK, "ran")
	}, secret)
}

func doRequest(handler echo.HandlerFunc, authHeader string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestWithAuth_MissingToken(t *testing.T) {
	rec := doRequest(authedHandler([]byte("secret")), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWithAuth_InvalidToken(t *testing.T) {
	rec := doRequest(authedHandler([]byte("secret")), "Bearer garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWithAuth_WrongSecret(t *testing.T) {
	tok := signToken(t, []byte("other"))
	rec := doRequest(authedHandler([]byte("secret")), "Bearer "+tok)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWithAuth_ValidToken(t *testing.T) {
	secret := []byte("secret")
	tok := signToken(t, secret)
	rec := doRequest(authedHandler(secret), "Bearer "+tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWithAuth_EmptySecretDisablesCheck(t *testing.T) {
	rec := doRequest(authedHandler(nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected open endpoint with no secret, got %d", rec.Code)
	}
}

func TestRouter_Healthz(t *testing.T) {
	s := New(nil, "", nil, testLogger())
	e := s.router()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_MetricsExposed(t *testing.T) {
	s := New(nil, "", nil, testLogger())
	e := s.router()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
