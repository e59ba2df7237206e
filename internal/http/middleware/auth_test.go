package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/coco-family/coco-backend/internal/platform/logger"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := NewAuthMiddleware(logger.NewNop(), "service-secret", "admin-secret", map[string]string{
		"parent-token": "family-1",
		"fleet-token":  "*",
	})

	r := gin.New()
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.POST("/internal/ping", auth.RequireServiceToken(), ok)
	r.GET("/admin/ping", auth.RequireAdminToken(), ok)
	r.GET("/api/dashboard/:userID", auth.AuthorizeDashboard("userID"), ok)
	r.GET("/api/heartbeats", auth.AuthorizeDashboard(""), ok)
	return r
}

func doRequest(r *gin.Engine, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireServiceToken(t *testing.T) {
	r := newAuthRouter()

	if code := doRequest(r, http.MethodPost, "/internal/ping", "service-secret"); code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", code)
	}
	if code := doRequest(r, http.MethodPost, "/internal/ping", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", code)
	}
	if code := doRequest(r, http.MethodPost, "/internal/ping", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
}

func TestRequireAdminToken(t *testing.T) {
	r := newAuthRouter()

	if code := doRequest(r, http.MethodGet, "/admin/ping", "admin-secret"); code != http.StatusOK {
		t.Fatalf("expected 200 with admin token, got %d", code)
	}
	// Service credentials do not escalate to the admin surface.
	if code := doRequest(r, http.MethodGet, "/admin/ping", "service-secret"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with service token, got %d", code)
	}
}

func TestAuthorizeDashboardPerUser(t *testing.T) {
	r := newAuthRouter()

	if code := doRequest(r, http.MethodGet, "/api/dashboard/family-1", "parent-token"); code != http.StatusOK {
		t.Fatalf("expected 200 for own user, got %d", code)
	}
	if code := doRequest(r, http.MethodGet, "/api/dashboard/family-2", "parent-token"); code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", code)
	}
	if code := doRequest(r, http.MethodGet, "/api/dashboard/family-2", "fleet-token"); code != http.StatusOK {
		t.Fatalf("expected 200 for wildcard token, got %d", code)
	}
	if code := doRequest(r, http.MethodGet, "/api/dashboard/family-1", "unknown"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", code)
	}
}

func TestAuthorizeDashboardFleetWide(t *testing.T) {
	r := newAuthRouter()

	if code := doRequest(r, http.MethodGet, "/api/heartbeats", "fleet-token"); code != http.StatusOK {
		t.Fatalf("expected 200 for wildcard token, got %d", code)
	}
	// A per-user token cannot read the whole fleet.
	if code := doRequest(r, http.MethodGet, "/api/heartbeats", "parent-token"); code != http.StatusForbidden {
		t.Fatalf("expected 403 for per-user token, got %d", code)
	}
}

func TestBearerTokenParsing(t *testing.T) {
	r := newAuthRouter()

	req := httptest.NewRequest(http.MethodPost, "/internal/ping", nil)
	req.Header.Set("Authorization", "Basic service-secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", w.Code)
	}
}
