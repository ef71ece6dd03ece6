package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"org_membership/internal/http/response"
	"org_membership/internal/identity"
	"org_membership/internal/models"
	"org_membership/internal/validation"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,maxbytes=72"`
	FirstName string `json:"firstName" validate:"required,notblank,max=100"`
	LastName  string `json:"lastName" validate:"required,notblank,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authData struct {
	AccessToken string       `json:"accessToken"`
	User        *models.User `json:"user"`
}

// Register creates an account and its default organisation and returns a
// token for it.
func Register(svc IdentityService, v *validation.Validator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in registerRequest
		if err := bind(c, v, &in, "Registration unsuccessful"); err != nil {
			response.Error(c, log, err)
			return
		}

		res, err := svc.Register(c.Request.Context(), identity.RegisterInput{
			Email:     in.Email,
			Password:  in.Password,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Phone:     in.Phone,
		})
		if err != nil {
			response.Error(c, log, err)
			return
		}

		response.Success(c, http.StatusCreated, "Registration successful", authData{
			AccessToken: res.AccessToken,
			User:        res.User,
		})
	}
}

// Login authenticates email and password and returns a token.
func Login(svc IdentityService, v *validation.Validator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in loginRequest
		if err := bind(c, v, &in, "Login unsuccessful"); err != nil {
			response.Error(c, log, err)
			return
		}

		res, err := svc.Login(c.Request.Context(), in.Email, in.Password)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		response.Success(c, http.StatusOK, "Login successful", authData{
			AccessToken: res.AccessToken,
			User:        res.User,
		})
	}
}
