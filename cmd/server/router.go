package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dekaandassociates/booking-relay/internal/contact"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/metrics"
	"github.com/dekaandassociates/booking-relay/internal/relay"
	"github.com/dekaandassociates/booking-relay/internal/signin"
	"github.com/dekaandassociates/booking-relay/internal/storage/pg"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
)

type routerDeps struct {
	logger   *logger.Logger
	registry prometheus.Gatherer
	db       *pg.Database
	relay    *relay.Handler
	contact  *contact.Handler
	signin   *signin.Handler
}

func newRouter(deps routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(deps.logger))

	router.GET("/health", healthHandler(deps.db))
	router.GET("/metrics", gin.WrapH(metrics.Handler(deps.registry)))

	// Database webhooks post to the root path.
	router.POST("/", deps.relay.Webhook)
	router.POST("/webhook", deps.relay.Webhook)

	router.POST("/contact", deps.contact.Submit)

	auth := router.Group("/auth")
	{
		auth.GET("/google", deps.signin.Google)
	}

	return router
}

func healthHandler(db *pg.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.DB.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// newCORS allows the public site to post the contact form from the browser.
func newCORS(allowedOrigins string) *cors.Cors {
	var origins []string
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	})
}
