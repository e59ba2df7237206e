package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coco-family/coco-backend/internal/http/response"
	"github.com/coco-family/coco-backend/internal/platform/logger"
)

// AuthMiddleware validates the three bearer credentials the API accepts:
// the shared device service token, the admin token, and per-user dashboard
// tokens (a "*" mapping grants access to every user). Tokens are opaque
// static secrets; comparisons are constant-time.
type AuthMiddleware struct {
	log               *logger.Logger
	serviceToken      string
	adminToken        string
	dashboardTokenMap map[string]string
}

func NewAuthMiddleware(log *logger.Logger, serviceToken, adminToken string, dashboardTokenMap map[string]string) *AuthMiddleware {
	return &AuthMiddleware{
		log:               log.With("middleware", "AuthMiddleware"),
		serviceToken:      serviceToken,
		adminToken:        adminToken,
		dashboardTokenMap: dashboardTokenMap,
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authorization := c.GetHeader("Authorization")
	if authorization == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RequireServiceToken guards the /internal device surface.
func (m *AuthMiddleware) RequireServiceToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || !tokensEqual(token, m.serviceToken) {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdminToken guards the /admin surface.
func (m *AuthMiddleware) RequireAdminToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || !tokensEqual(token, m.adminToken) {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthorizeDashboard checks the caller's dashboard token against the user
// id in the route (userIDParam). A token mapped to "*" sees everything;
// fleet-wide routes pass userIDParam == "" and require the wildcard.
func (m *AuthMiddleware) AuthorizeDashboard(userIDParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		allowedUser, found := m.lookupDashboardUser(token)
		if !found {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		if allowedUser != "*" {
			requested := ""
			if userIDParam != "" {
				requested = c.Param(userIDParam)
			}
			if requested == "" || requested != allowedUser {
				response.RespondError(c, http.StatusForbidden, "forbidden", nil)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

func (m *AuthMiddleware) lookupDashboardUser(token string) (string, bool) {
	// Scan rather than index so lookup stays constant-time per entry.
	for candidate, user := range m.dashboardTokenMap {
		if tokensEqual(token, candidate) {
			return user, true
		}
	}
	return "", false
}
