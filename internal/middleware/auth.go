package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/db"
	"github.com/monocle-dev/scrumboard/internal/auth"
	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/types"
)

// AuthMiddleware rejects requests without a valid session with 401 and
// stores the caller's identity on the context otherwise.
func AuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if auth.SessionToken(ctx.Request) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		user, err := auth.LoadSession(db.DB, ctx.Request)
		if err != nil {
			logging.Logger.Error("session lookup failed",
				"path", ctx.Request.URL.Path,
				"request_id", ctx.GetString(types.ContextRequestIDKey),
				"err", err,
			)
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if user == nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		ctx.Set(types.ContextUserKey, user.Identity())
		ctx.Next()
	}
}

// RequirePageAuth redirects browsers without a session to the login page.
func RequirePageAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if target := auth.RequireAuth(db.DB, ctx.Request); target != "" {
			ctx.Redirect(http.StatusFound, target)
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
