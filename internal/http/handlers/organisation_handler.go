package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"org_membership/internal/http/response"
	"org_membership/internal/models"
	"org_membership/internal/validation"
)

type createOrganisationRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=1000"`
}

type addUserRequest struct {
	UserID string `json:"userId" validate:"required,notblank"`
}

type organisationsData struct {
	Organisations []models.Organisation `json:"organisations"`
}

func ListOrganisations(svc OrganisationService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, err := requester(c)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		orgs, err := svc.ListOrganisations(c.Request.Context(), requesterID)
		if err != nil {
			response.Error(c, log, err)
			return
		}
		if orgs == nil {
			orgs = []models.Organisation{}
		}

		response.Success(c, http.StatusOK, "Organisations retrieved successfully", organisationsData{Organisations: orgs})
	}
}

// CreateOrganisation creates an organisation with the caller as its first
// member.
func CreateOrganisation(svc OrganisationService, v *validation.Validator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, err := requester(c)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		var in createOrganisationRequest
		if err := bind(c, v, &in, "Client error"); err != nil {
			response.Error(c, log, err)
			return
		}

		org, err := svc.CreateOrganisation(c.Request.Context(), requesterID, in.Name, in.Description)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		response.Success(c, http.StatusCreated, "Organisation created successfully", org)
	}
}

func GetOrganisation(svc OrganisationService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, err := requester(c)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		org, err := svc.GetOrganisation(c.Request.Context(), requesterID, c.Param("orgId"))
		if err != nil {
			response.Error(c, log, err)
			return
		}

		response.Success(c, http.StatusOK, "Organisation details retrieved successfully", org)
	}
}

// AddUserToOrganisation adds the user named in the body to the
// organisation. Only members of the organisation may add users.
func AddUserToOrganisation(svc OrganisationService, v *validation.Validator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, err := requester(c)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		var in addUserRequest
		if err := bind(c, v, &in, "Client error"); err != nil {
			response.Error(c, log, err)
			return
		}

		if err := svc.AddUserToOrganisation(c.Request.Context(), requesterID, c.Param("orgId"), in.UserID); err != nil {
			response.Error(c, log, err)
			return
		}

		response.Success(c, http.StatusOK, "User added to organisation successfully", nil)
	}
}
