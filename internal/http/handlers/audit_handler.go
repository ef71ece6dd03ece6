package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"org_membership/internal/http/response"
	"org_membership/internal/models"
	"org_membership/internal/organisation"
)

type auditData struct {
	Logs       []models.AuditLog `json:"logs"`
	NextCursor *int64            `json:"nextCursor"`
}

// ListOrganisationAudit pages through an organisation's audit log, newest
// first. ?limit (1-100) sets the page size and ?after_id continues from a
// previous page's nextCursor. Out-of-range values fall back to defaults.
func ListOrganisationAudit(svc OrganisationService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, err := requester(c)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		limit := organisation.DefaultAuditLimit
		if limitStr := c.Query("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= organisation.MaxAuditLimit {
				limit = parsed
			}
		}

		var afterID int64
		if cursorStr := c.Query("after_id"); cursorStr != "" {
			if parsed, err := strconv.ParseInt(cursorStr, 10, 64); err == nil && parsed > 0 {
				afterID = parsed
			}
		}

		page, err := svc.ListOrganisationAudit(c.Request.Context(), requesterID, c.Param("orgId"), limit, afterID)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		logs := page.Logs
		if logs == nil {
			logs = []models.AuditLog{}
		}
		response.Success(c, http.StatusOK, "Audit log retrieved successfully", auditData{
			Logs:       logs,
			NextCursor: page.NextCursor,
		})
	}
}
