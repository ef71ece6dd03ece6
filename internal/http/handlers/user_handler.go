package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"org_membership/internal/http/response"
)

// GetUser returns a user record the caller is allowed to see: their own,
// or that of someone sharing an organisation with them.
func GetUser(svc OrganisationService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, err := requester(c)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		user, err := svc.GetUser(c.Request.Context(), requesterID, c.Param("userId"))
		if err != nil {
			response.Error(c, log, err)
			return
		}

		response.Success(c, http.StatusOK, "User details retrieved successfully", user)
	}
}
