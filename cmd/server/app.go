package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/auth"
	"github.com/millworks/backoffice/internal/catalog"
	"github.com/millworks/backoffice/internal/config"
	"github.com/millworks/backoffice/internal/customer"
	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/internal/integration"
	"github.com/millworks/backoffice/internal/middleware"
	"github.com/millworks/backoffice/internal/notification"
	"github.com/millworks/backoffice/internal/outbox"
	"github.com/millworks/backoffice/internal/production"
	"github.com/millworks/backoffice/internal/quote"
	"github.com/millworks/backoffice/internal/shipping"
	"github.com/millworks/backoffice/internal/uploads"
)

type application struct {
	engine     *gin.Engine
	dispatcher outbox.Dispatcher
}

func allModels() []any {
	var models []any
	for _, group := range [][]any{
		customer.Models(),
		catalog.Models(),
		production.Models(),
		shipping.Models(),
		notification.Models(),
		quote.Models(),
		outbox.Models(),
	} {
		models = append(models, group...)
	}
	return models
}

// routeRegistrar is implemented by every resource router.
type routeRegistrar interface {
	Register(rg *gin.RouterGroup)
}

func newApplication(ctx context.Context, cfg *config.Config, db *gorm.DB) (*application, error) {
	storage, err := uploads.NewStorageFromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage driver: %w", err)
	}
	uploadService := uploads.NewUploadService(storage, cfg.Storage.PresignExpiry)

	yarns := catalog.NewYarnService(db)
	packaging := catalog.NewPackagingService(db)
	notifications := notification.NewService(db)
	approvals := quote.NewApprovalService(db, quote.Options{
		TokenTTL:  cfg.QuoteApproval.TokenTTL,
		PublicURL: cfg.QuoteApproval.PublicURL,
	})
	quoteRouter := quote.NewRouter(approvals)

	client := integration.NewClient(cfg.Integrations.HTTPTimeout)
	dispatcher := outbox.NewTopicRouter()
	notification.NewQuoteEmails(notification.NewMailerFromConfig(cfg.Integrations, client), notifications, cfg.Integrations.EmailFrom).Register(dispatcher)
	dispatcher.Handle(outbox.TopicOrderConvertQuote, integration.NewOrderConversion(cfg.Integrations.OrderConversionURL, client))

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(cfg.Server.RequestIDHeader),
		middleware.RequestLogger(),
	)
	if cfg.Metrics.Enabled {
		engine.Use(middleware.Metrics())
		engine.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	engine.GET("/healthz", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), db); err != nil {
			httpapi.Abort(c, http.StatusServiceUnavailable, httpapi.CodeInternal, "database unavailable", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes: the approval link in the customer's email
	public := engine.Group(cfg.Server.APIPrefix)
	if cfg.RateLimit.Enabled {
		limit, err := middleware.RateLimit(middleware.NewStoreFromConfig(cfg.RateLimit), cfg.RateLimit.Rate)
		if err != nil {
			return nil, err
		}
		public.Use(limit)
	}
	quoteRouter.RegisterPublic(public)

	protected := engine.Group(cfg.Server.APIPrefix)
	if cfg.Session.Enabled {
		gate, err := newSessionGate(cfg)
		if err != nil {
			return nil, err
		}
		protected.Use(gate.Middleware())
	}

	routers := []routeRegistrar{
		customer.NewAddressRouter(customer.NewAddressService(db)),
		customer.NewFileRouter(customer.NewFileService(db, uploadService), cfg.Server.MaxUploadBytes),
		uploads.NewHTTPHandler(uploadService, cfg.Server.MaxUploadBytes),
		catalog.NewPackagingRouter(packaging),
		catalog.NewYarnRouter(yarns),
		production.NewBodyColorRouter(production.NewBodyColorService(db, yarns)),
		production.NewKnitColorRouter(production.NewKnitColorService(db, yarns)),
		production.NewPackagingRouter(production.NewPackagingService(db, packaging)),
		shipping.NewDimensionPresetRouter(shipping.NewDimensionPresetService(db)),
		shipping.NewWeightPresetRouter(shipping.NewWeightPresetService(db)),
		shipping.NewPackageSpecItemRouter(shipping.NewPackageSpecItemService(db)),
		notification.NewRouter(notifications),
		quoteRouter,
	}
	for _, r := range routers {
		r.Register(protected)
	}

	return &application{engine: engine, dispatcher: dispatcher}, nil
}

func newSessionGate(cfg *config.Config) (*auth.SessionGate, error) {
	verifier, err := auth.NewVerifierFromConfig(cfg.Session)
	if err != nil {
		return nil, err
	}

	policy := auth.DefaultRolePolicy()
	if cfg.Session.RolePolicyPath != "" {
		if policy, err = auth.LoadRolePolicy(cfg.Session.RolePolicyPath); err != nil {
			return nil, err
		}
	}

	// A nil *RefreshClient must not be passed as a non-nil Refresher.
	var refresher auth.Refresher
	if cfg.Session.RefreshURL != "" {
		refresher = auth.NewRefreshClient(cfg.Session.RefreshURL, cfg.Session.RefreshTimeout)
	}

	return auth.NewSessionGate(verifier, refresher, policy, auth.GateConfigFrom(cfg.Session, cfg.Server.APIPrefix)), nil
}
