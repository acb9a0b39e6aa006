package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/inventory"
	"github.com/mmdatafocus/fulfillment_backend/middlewares"
	"github.com/mmdatafocus/fulfillment_backend/orders"
	"github.com/mmdatafocus/fulfillment_backend/shipment"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/mmdatafocus/fulfillment_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("FULFILLMENT_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	config.CheckVersionOrExit()
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	settingsPath := config.SettingsPath()
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Fatal(err)
	}
	source, err := inventory.NewSourceFromEnv()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "inventory"}).Fatal(err)
	}
	worker, err := newWorker(settings)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "shipment"}).Fatal(err)
	}
	sinks, mirror, err := workflow.SinksFromEnv(config.WorkDir())
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "sinks"}).Fatal(err)
	}
	if mirror != nil {
		defer mirror.Close()
	}
	defer config.ClosePubSub()
	defer config.CloseRedis()

	runner := &workflow.Runner{
		WorkDir:         config.WorkDir(),
		CatalogPath:     config.CatalogPath(),
		Settings:        *settings,
		Parser:          orders.NewParser(),
		Inventory:       source,
		CatalogPolicy:   config.CatalogMissingPolicy(),
		AllocationOrder: config.AllocationOrder(),
		Worker:          worker,
		Sinks:           sinks,
		Notifier:        workflow.NewNotifierFromEnv(),
		Guard:           workflow.NewGuardFromEnv(sigCtx),
		Mirror:          mirror,
	}
	ctrl := workflow.NewController(sigCtx, runner)
	if hr, ok := worker.Resolver.(*shipment.HTTPResolver); ok {
		ctrl.OnSettings = func(s config.Settings) { hr.SetCredentials(s.MarketplaceID, s.MarketplacePW) }
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		corsConfig.AllowOrigins = config.SplitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	r.Use(middlewares.AuthMiddleware())

	workflow.RegisterRoutes(r, ctrl, settingsPath)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"port": port, "version": config.Version}).Info("fulfillment service listening")

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		ctrl.Wait()
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

// newWorker resolves shipments from SHIPMENTS_FILE when set, otherwise from the marketplace portal.
func newWorker(settings *config.Settings) (*shipment.Worker, error) {
	worker := &shipment.Worker{OutDir: config.WorkDir()}
	if path := strings.TrimSpace(os.Getenv("SHIPMENTS_FILE")); path != "" {
		fr, err := shipment.NewFileResolver(path)
		if err != nil {
			return nil, err
		}
		worker.Resolver = fr
		return worker, nil
	}
	hr, err := shipment.NewHTTPResolver(settings.MarketplaceID, settings.MarketplacePW)
	if err != nil {
		return nil, err
	}
	worker.Resolver = hr
	worker.Documents = hr
	return worker, nil
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		operator, _ := utils.GetOperatorFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
			"operator":       operator,
		}).Info("request")
	}
}
