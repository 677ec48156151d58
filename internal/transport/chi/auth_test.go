package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authedHandler(t *testing.T, apiKeys []string) (http.Handler, *bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuthMiddleware(apiKeys)(next), &reached
}

func TestBearerAuth_DisabledWithoutKeys(t *testing.T) {
	handler, reached := authedHandler(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/documents", nil))
	if rec.Code != http.StatusOK || !*reached {
		t.Errorf("expected pass-through with no keys, got %d", rec.Code)
	}
}

func TestBearerAuth_ValidKey(t *testing.T) {
	handler, reached := authedHandler(t, []string{"secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/documents", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !*reached {
		t.Errorf("expected 200 with a valid key, got %d", rec.Code)
	}
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	handler, reached := authedHandler(t, []string{"secret-key"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/documents", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a header, got %d", rec.Code)
	}
	if *reached {
		t.Error("the protected handler must not run")
	}
}

func TestBearerAuth_WrongScheme(t *testing.T) {
	handler, _ := authedHandler(t, []string{"secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/documents", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a non-Bearer scheme, got %d", rec.Code)
	}
}

func TestBearerAuth_InvalidKey(t *testing.T) {
	handler, reached := authedHandler(t, []string{"secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || *reached {
		t.Errorf("expected 401 for an unknown key, got %d", rec.Code)
	}
}

func TestBearerAuth_ExemptPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		handler, reached := authedHandler(t, []string{"secret-key"})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !*reached {
			t.Errorf("%s must stay reachable without a token, got %d", path, rec.Code)
		}
	}
}
