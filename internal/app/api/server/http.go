package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/iftar/docs"
	"github.com/fatflowers/iftar/internal/app/api/handlers"
	mw "github.com/fatflowers/iftar/internal/app/api/middleware"
	"github.com/fatflowers/iftar/internal/app/service/auth"
	"github.com/fatflowers/iftar/internal/app/service/checkin"
	"github.com/fatflowers/iftar/internal/app/service/export"
	"github.com/fatflowers/iftar/internal/app/service/manualpayment"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/app/service/payment"
	"github.com/fatflowers/iftar/internal/app/service/reconcile"
	"github.com/fatflowers/iftar/internal/app/service/statistics"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/metrics"
)

// multipart bodies above this spill to disk
const maxMultipartMemory = 8 << 20

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	r.Use(mw.CORS(cfg.CORS.AllowedOrigins, payment.WebhookPath))
	return r
}

type Routes struct {
	fx.In

	Log            *zap.SugaredLogger
	Config         *cfgpkg.Config
	DB             *gorm.DB
	Redis          *redis.Client `optional:"true"`
	Auth           *auth.Service
	Participants   *participant.Service
	Payments       *payment.Service
	Reconcile      *reconcile.Service
	ManualPayments *manualpayment.Service
	CheckIn        *checkin.Service
	Stats          *statistics.Service
	Export         *export.Service
}

func registerRoutes(lc fx.Lifecycle, r *gin.Engine, p Routes) {
	log, cfg := p.Log, p.Config

	// Prometheus metrics
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{Subsystem: "iftar", Logger: log})
		prom.SetListenAddress(cfg.MetricsAddr)
		prom.Use(r)
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return prom.Close() }})
	}

	// System group: request logger + access log
	sys := r.Group("/")
	sys.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(sys, p.DB)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	sys.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Gateway webhook answers its own preflight with permissive CORS and is not rate limited.
	hook := r.Group("/api/v1")
	hook.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterWebhookRoutes(hook, p.Reconcile, log)

	// Public APIs
	pub := r.Group("/api/v1")
	pub.Use(
		mw.RequestLoggerMiddleware(log),
		mw.AccessLogMiddleware(log),
		mw.RateLimit(cfg.RateLimit, p.Redis, log),
	)
	handlers.RegisterParticipantRoutes(pub, p.Participants)
	handlers.RegisterPaymentRoutes(pub, p.Payments)
	handlers.RegisterManualPaymentRoutes(pub, p.ManualPayments)
	handlers.RegisterCheckInRoutes(pub, p.Participants, p.CheckIn)

	// Admin APIs: login is rate limited, everything else needs a token
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterAdminLoginRoutes(admin.Group("", mw.RateLimit(cfg.RateLimit, p.Redis, log)), p.Auth)
	handlers.RegisterAdminRoutes(
		admin.Group("", mw.AdminAuth(p.Auth, log)),
		p.Participants, p.Reconcile, p.ManualPayments, p.CheckIn, p.Stats, p.Export,
	)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
