package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/lingohub/internal/authorization"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	bookingservice "github.com/smallbiznis/lingohub/internal/booking/service"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/commission"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/observability"
	obsmiddleware "github.com/smallbiznis/lingohub/internal/observability/logger"
	obstracing "github.com/smallbiznis/lingohub/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	paymentservice "github.com/smallbiznis/lingohub/internal/payment/service"
	"github.com/smallbiznis/lingohub/internal/ratelimit"
	reconciliationdomain "github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	reconciliationservice "github.com/smallbiznis/lingohub/internal/reconciliation/service"
	settingsdomain "github.com/smallbiznis/lingohub/internal/settings/domain"
	settingsservice "github.com/smallbiznis/lingohub/internal/settings/service"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the public and admin HTTP surface. Route groups are
// registered by the binary that includes it.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strings.TrimSpace(cfg.HTTPPort)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type bookingService interface {
	CreateBooking(ctx context.Context, req bookingdomain.CreateRequest) (*bookingdomain.CreateResult, error)
	Get(ctx context.Context, rawID string) (*bookingdomain.Triple, error)
	Cleanup(ctx context.Context, cutoffDays int) (int64, error)
}

type paymentService interface {
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.Outcome, error)
	SyncStatus(ctx context.Context, sessionRef string) (*paymentdomain.Outcome, error)
	SyncBooking(ctx context.Context, rawBookingID string) (*paymentdomain.Outcome, error)
}

type reconciliationService interface {
	Audit(ctx context.Context, limit int) ([]reconciliationdomain.Violation, error)
	Run(ctx context.Context, opts reconciliationservice.RunOptions) (*reconciliationservice.RunResult, error)
	ListViolations(ctx context.Context, rawCursor string, limit int) (*reconciliationservice.ViolationPage, error)
}

type settingsService interface {
	List(ctx context.Context) ([]settingsdomain.PlatformSetting, error)
	Set(ctx context.Context, key, value string) (*settingsdomain.PlatformSetting, error)
}

type rateDescriber interface {
	Describe(ctx context.Context, rawInstitutionID string) (*commission.RateView, error)
}

type bookingLimiter interface {
	Enabled() bool
	AllowClient(ctx context.Context, clientKey string) (*ratelimit.RateLimitResult, error)
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	clock           clock.Clock
	reconcileCfg    *config.ReconcileConfigHolder
	authzSvc        authorization.Service
	tierSvc         tierdomain.Service
	subscriptionSvc subscriptiondomain.Service
	bookingSvc      bookingService
	paymentSvc      paymentService
	reconcileSvc    reconciliationService
	settingsSvc     settingsService
	rates           rateDescriber
	bookingLimiter  bookingLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Clock           clock.Clock
	ReconcileCfg    *config.ReconcileConfigHolder
	AuthzSvc        authorization.Service
	TierSvc         tierdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	BookingSvc      *bookingservice.Service
	PaymentSvc      *paymentservice.Service
	ReconcileSvc    *reconciliationservice.Service
	SettingsSvc     *settingsservice.Service
	Resolver        *commission.Resolver
	BookingLimiter  *ratelimit.BookingLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		clock:           p.Clock,
		reconcileCfg:    p.ReconcileCfg,
		authzSvc:        p.AuthzSvc,
		tierSvc:         p.TierSvc,
		subscriptionSvc: p.SubscriptionSvc,
		bookingSvc:      p.BookingSvc,
		paymentSvc:      p.PaymentSvc,
		reconcileSvc:    p.ReconcileSvc,
		settingsSvc:     p.SettingsSvc,
		rates:           p.Resolver,
	}
	if p.BookingLimiter != nil {
		svc.bookingLimiter = p.BookingLimiter
	}
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Bookings --------
	api.POST("/bookings", s.BookingRateLimit(), s.CreateBooking)
	api.GET("/bookings/:id", s.GetBooking)
	api.POST("/bookings/:id/payment-status", s.SyncBookingPayment)

	// -------- Payments --------
	api.POST("/payments/status", s.SyncPaymentStatus)
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	// -------- Tiers --------
	api.GET("/tiers/:audience", s.ListCurrentTiers)
	api.GET("/tiers/:audience/:plan_type", s.ResolveTier)

	// -------- Institutions --------
	api.GET("/institutions/:id/rate", s.GetInstitutionRate)

	// -------- Subscriptions --------
	api.POST("/subscriptions/:holder", s.CreateSubscription)
	api.GET("/subscriptions/:holder/:id", s.GetSubscription)
	api.GET("/subscriptions/:holder/:id/logs", s.ListSubscriptionLogs)
	api.GET("/subscriptions/:holder/:id/billing-history", s.ListSubscriptionBillingHistory)
	api.POST("/subscriptions/:holder/:id/activate", s.ActivateSubscription)
	api.POST("/subscriptions/:holder/:id/renew", s.RenewSubscription)
	api.POST("/subscriptions/:holder/:id/change-tier", s.ChangeSubscriptionTier)
	api.POST("/subscriptions/:holder/:id/cancel", s.CancelSubscription)
	api.POST("/subscriptions/:holder/:id/expire", s.ExpireSubscription)
	api.POST("/subscriptions/:holder/:id/past-due", s.MarkSubscriptionPastDue)
	api.POST("/subscriptions/:holder/:id/apply-payment", s.ApplySubscriptionPayment)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminActor())

	// -------- Reconciliation --------
	admin.POST("/cleanup", s.authorizeAdmin(authorization.ObjectBooking, authorization.ActionBookingCleanup), s.CleanupBookings)
	admin.POST("/cleanup/orphaned-records", s.authorizeAdmin(authorization.ObjectReconciliation, authorization.ActionReconciliationRepair), s.RepairOrphanedRecords)
	admin.GET("/cleanup/orphaned-records", s.authorizeAdmin(authorization.ObjectReconciliation, authorization.ActionReconciliationAudit), s.AuditRecords)
	admin.GET("/audit", s.authorizeAdmin(authorization.ObjectReconciliation, authorization.ActionReconciliationAudit), s.AuditRecords)
	admin.GET("/violations", s.authorizeAdmin(authorization.ObjectViolation, authorization.ActionViolationView), s.ListViolations)

	// -------- Tiers --------
	admin.GET("/tiers/:audience", s.authorizeAdmin(authorization.ObjectTier, authorization.ActionTierView), s.ListTiers)
	admin.POST("/tiers/:audience", s.authorizeAdmin(authorization.ObjectTier, authorization.ActionTierManage), s.CreateTier)
	admin.GET("/tiers/:audience/:id", s.authorizeAdmin(authorization.ObjectTier, authorization.ActionTierView), s.GetTier)
	admin.PATCH("/tiers/:audience/:id", s.authorizeAdmin(authorization.ObjectTier, authorization.ActionTierManage), s.UpdateTier)
	admin.DELETE("/tiers/:audience/:id", s.authorizeAdmin(authorization.ObjectTier, authorization.ActionTierManage), s.DeleteTier)
	admin.POST("/tiers/:audience/:id/reprice", s.authorizeAdmin(authorization.ObjectTier, authorization.ActionTierReprice), s.RepriceTier)

	// -------- Settings --------
	admin.GET("/settings", s.authorizeAdmin(authorization.ObjectSettings, authorization.ActionSettingsView), s.ListSettings)
	admin.PUT("/settings/:key", s.authorizeAdmin(authorization.ObjectSettings, authorization.ActionSettingsUpdate), s.UpdateSetting)
}
