package middleware

import (
	"errors"
	"net/http"
	"strings"

	pkgAuth "triad-service/pkg/auth"
	"triad-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const ContextUserIDKey = "userID"

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := pkgAuth.ParseUserToken(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextUserIDKey, claims.SubjectID)
		c.Next()
	}
}

func extractBearerToken(authHeader string) (string, error) {
	if strings.TrimSpace(authHeader) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// UserID returns the authenticated caller set by AuthRequired.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
