package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"org_membership/internal/http/response"
)

func Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, "Welcome to the organisation membership API", nil)
	}
}
