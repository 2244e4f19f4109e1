package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/types"
)

func GetCurrentUser(ctx *gin.Context) (types.Identity, error) {
	user, exists := ctx.Get(types.ContextUserKey)

	if !exists {
		return types.Identity{}, fmt.Errorf("User not authenticated")
	}

	identity, ok := user.(types.Identity)

	if !ok {
		return types.Identity{}, fmt.Errorf("Invalid user type in context")
	}

	return identity, nil
}

func GetRequestID(ctx *gin.Context) string {
	return ctx.GetString(types.ContextRequestIDKey)
}
