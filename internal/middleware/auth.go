package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/internal/model"
)

const ContextIdentity = "identity"

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*model.TokenClaims, error)
}

// Authenticate parses the Authorization header and attaches the token
// claims to the context. It does not reject requests without a token;
// RequireAccess does that, so public and protected routes can share the
// same chain.
func Authenticate(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success":    false,
				"message":    "Invalid or expired token",
				"error_code": CodeAuthRequired,
			})
			return
		}

		c.Set(ContextIdentity, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func currentClaims(c *gin.Context) *model.TokenClaims {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return nil
	}
	claims, ok := v.(*model.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// CurrentAuth returns the authorization context attached by RequireAccess,
// or nil when the route skipped the clinic gate.
func CurrentAuth(c *gin.Context) *AuthContext {
	v, ok := c.Get(ContextAuth)
	if !ok {
		return nil
	}
	auth, ok := v.(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}
