package httpkit

import (
	"strings"

	"leadgen_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDParam parses a required UUID path parameter.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.BadRequest(name + " must be a UUID")
	}
	return id, nil
}

// OptionalUUIDQuery parses a UUID query parameter, returning nil when absent.
func OptionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.BadRequest(name + " must be a UUID")
	}
	return &id, nil
}
