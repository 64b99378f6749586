package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/utils"
)

// NoRoute answers unmatched paths in the standard envelope.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.NotFound(c, "route "+c.Request.Method+" "+c.Request.URL.Path+" not found")
	}
}

// NoMethod answers a known path requested with the wrong method.
func NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.Error(c, http.StatusMethodNotAllowed, utils.CodeMethodNotAllowed,
			"method "+c.Request.Method+" not allowed on "+c.Request.URL.Path)
	}
}
