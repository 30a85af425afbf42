package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/accountd/internal/app"
	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/handlers"
	"github.com/charlesng35/accountd/internal/services"
)

// NewRouter builds the Gin engine and registers the account routes. The
// surface is deliberately thin: request parsing and domain-error translation
// only, no gate middleware.
func NewRouter(
	cfg *app.Config,
	db *database.Database,
	directory *services.DirectoryService,
	changes *services.ChangeService,
	accounts *services.AccountService,
	tokens *auth.TokenService,
) (*gin.Engine, error) {
	if cfg == nil || db == nil || directory == nil || changes == nil || accounts == nil || tokens == nil {
		return nil, errors.New("router: all dependencies must be provided")
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handlers.Health(db))
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	handler := handlers.NewAccountHandler(directory, changes, accounts, tokens)

	api := r.Group("/api")
	{
		api.POST("/accounts", handler.Register)
		api.POST("/auth/login", handler.Login)

		api.GET("/accounts/:id", handler.Get)
		api.DELETE("/accounts/:id", handler.Delete)
		api.PATCH("/accounts/:id/nickname", handler.SetNickname)
		api.GET("/accounts/:id/change", handler.ChangeState)
		api.POST("/accounts/:id/email", handler.RequestEmailChange)
		api.POST("/accounts/:id/password", handler.RequestPasswordChange)

		api.POST("/changes/validate", handler.ValidateChange)
	}

	return r, nil
}
