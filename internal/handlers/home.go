package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/auth"
)

// Home is the landing route behind RequirePageAuth; it echoes the signed-in
// user for the frontend shell.
func Home(ctx *gin.Context) {
	user := auth.GetSessionData(store(ctx), ctx.Request)
	if user == nil {
		ctx.Redirect(http.StatusFound, auth.LoginPath)
		return
	}

	respond(ctx, http.StatusOK, "user", user.Response())
}
