package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/api/auth"
	"github.com/cuongbtq/catalog-bridge/internal/api/handler"
	"github.com/cuongbtq/catalog-bridge/internal/api/respond"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Options carries the secrets and settings the admission checks need
type Options struct {
	ServiceName     string
	InternalAPIKey  string
	KeyHeader       string
	HMACSecret      []byte
	SignatureMaxAge time.Duration
	TrustedProxies  []string
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) (*gin.Engine, error) {
	r := gin.New()

	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	keyHeader := opts.KeyHeader
	if keyHeader == "" {
		keyHeader = auth.DefaultKeyHeader
	}

	// Middleware
	r.Use(RecoveryMiddleware(deps.Logger))
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(keyHeader))
	r.Use(respond.Errors(deps.Logger))

	r.GET("/health", healthHandler(deps, opts.ServiceName))

	syncHandler := handler.NewSyncHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	proxyHandler := handler.NewProxyHandler(deps)

	// Operator routes
	v1 := r.Group("/api/v1")
	v1.Use(auth.InternalKey(opts.InternalAPIKey, keyHeader, deps.Logger))
	{
		sync := v1.Group("/sync")
		{
			sync.POST("/catalog", syncHandler.SyncCatalog)
			sync.POST("/catalog/segments/:segment", syncHandler.SyncCatalogSegment)
			sync.POST("/products/:productId", syncHandler.ResyncProduct)
		}

		v1.GET("/jobs/:job_id", jobHandler.GetJob)
	}

	// Storefront proxy routes
	proxy := r.Group("/proxy")
	proxy.Use(auth.StorefrontSignature(opts.HMACSecret, auth.SignatureOptions{MaxAge: opts.SignatureMaxAge}, deps.Logger))
	{
		proxy.GET("/price-preview", proxyHandler.PricePreview)
		proxy.GET("/sync-jobs", proxyHandler.ListSyncJobs)
	}

	return r, nil
}

func healthHandler(deps *handler.Dependencies, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Database != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()

			if err := deps.Database.HealthCheck(ctx); err != nil {
				deps.Logger.Warn("Health check failed", slog.Any("error", err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": service,
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	}
}
