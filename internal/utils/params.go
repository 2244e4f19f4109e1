package utils

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/internal/errs"
)

// ParseID parses a positive numeric identifier named field.
func ParseID(field, raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)

	if err != nil || id == 0 {
		return 0, errs.Validation("Invalid %s", field)
	}

	return uint(id), nil
}

// QueryID reads an optional numeric query parameter. ok is false when the
// parameter is absent.
func QueryID(ctx *gin.Context, name string) (id uint, ok bool, err error) {
	raw, present := ctx.GetQuery(name)

	if !present {
		return 0, false, nil
	}

	id, err = ParseID(name, raw)

	if err != nil {
		return 0, true, err
	}

	return id, true, nil
}

// ParamID reads a required numeric path parameter such as :project_id.
func ParamID(ctx *gin.Context, name, label string) (uint, error) {
	raw := ctx.Param(name)

	if raw == "" {
		return 0, errs.Validation("%s not found", label)
	}

	return ParseID(label, raw)
}
