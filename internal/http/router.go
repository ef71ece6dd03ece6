package httpserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"org_membership/internal/audit"
	"org_membership/internal/auth"
	"org_membership/internal/http/handlers"
	"org_membership/internal/metrics"
	"org_membership/internal/validation"
)

// Deps is everything the router needs to serve the API.
type Deps struct {
	Identity      handlers.IdentityService
	Organisations handlers.OrganisationService
	Tokens        auth.TokenParser
	Users         auth.UserLookup
	Metrics       *metrics.Metrics
	Log           zerolog.Logger

	CORSOrigins []string
	// AuthRatePerMinute limits /auth requests per client IP; 0 disables it.
	AuthRatePerMinute float64
	AuthRateBurst     int
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	r.Use(RequestLogger(d.Log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	r.Use(audit.Middleware())

	v := validation.New()

	r.GET("/", handlers.Home())
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Public routes
	authGroup := r.Group("/auth")
	if d.AuthRatePerMinute > 0 {
		authGroup.Use(NewIPRateLimiter(d.AuthRatePerMinute, d.AuthRateBurst, d.Log).Middleware())
	}
	{
		authGroup.POST("/register/", handlers.Register(d.Identity, v, d.Log))
		authGroup.POST("/login/", handlers.Login(d.Identity, v, d.Log))
	}

	// Protected API routes
	api := r.Group("/api", auth.JWT(d.Tokens, d.Users))
	{
		api.GET("/users/:userId/", handlers.GetUser(d.Organisations, d.Log))

		api.GET("/organisations/", handlers.ListOrganisations(d.Organisations, d.Log))
		api.POST("/organisations/", handlers.CreateOrganisation(d.Organisations, v, d.Log))
		api.GET("/organisations/:orgId/", handlers.GetOrganisation(d.Organisations, d.Log))
		api.POST("/organisations/:orgId/add_user/", handlers.AddUserToOrganisation(d.Organisations, v, d.Log))
		api.GET("/organisations/:orgId/audit/", handlers.ListOrganisationAudit(d.Organisations, d.Log))
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
