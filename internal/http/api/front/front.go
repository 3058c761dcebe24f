package front

import (
	"github.com/gin-gonic/gin"
	"github.com/momen-meetup/meetup/internal/blog"
	"github.com/momen-meetup/meetup/internal/http/api/front/handlers"
	"github.com/momen-meetup/meetup/internal/i18n"
	"github.com/momen-meetup/meetup/internal/metrics"
	"gorm.io/gorm"
)

// Dependencies are the collaborators behind the public site API.
type Dependencies struct {
	Contact handlers.ContactOptions
	Posts   blog.Source
	I18n    *i18n.Resolver
	Metrics *metrics.Collector
	DB      *gorm.DB
}

// RegisterFrontRoutes registers the public site endpoints.
func RegisterFrontRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group("/api")

	contactOpts := deps.Contact
	if contactOpts.Metrics == nil {
		contactOpts.Metrics = deps.Metrics
	}
	contactHandler := handlers.NewContactHandler(contactOpts)
	api.POST("/contact", contactHandler.Submit)

	if deps.Posts != nil {
		blogHandler := handlers.NewBlogFrontHandler(deps.Posts)
		api.GET("/blog", blogHandler.List)
		api.GET("/blog/:slug", blogHandler.Get)
	}

	if deps.I18n != nil {
		i18nHandler := handlers.NewI18nFrontHandler(deps.I18n)
		api.GET("/i18n", i18nHandler.Locales)
		api.GET("/i18n/:locale", i18nHandler.Lookup)
	}
}
