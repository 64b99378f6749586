package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/store"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageFromQuery reads limit and offset query parameters, clamping them to sane bounds.
func PageFromQuery(c *gin.Context) store.Page {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}

	return store.Page{Limit: limit, Offset: offset}
}
