package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/posadahq/posada/internal/automation"
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	"github.com/posadahq/posada/internal/availability"
	availabilitydomain "github.com/posadahq/posada/internal/availability/domain"
	"github.com/posadahq/posada/internal/config"
	"github.com/posadahq/posada/internal/events"
	"github.com/posadahq/posada/internal/invoice"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	"github.com/posadahq/posada/internal/observability"
	obslogger "github.com/posadahq/posada/internal/observability/logger"
	obsmetrics "github.com/posadahq/posada/internal/observability/metrics"
	obstracing "github.com/posadahq/posada/internal/observability/tracing"
	"github.com/posadahq/posada/internal/pricing"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	"github.com/posadahq/posada/internal/property"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	"github.com/posadahq/posada/internal/providers/email"
	"github.com/posadahq/posada/internal/providers/webhook"
	"github.com/posadahq/posada/internal/reservation"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	"github.com/posadahq/posada/internal/room"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	"github.com/posadahq/posada/internal/roomtype"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	"github.com/posadahq/posada/internal/search"
	searchdomain "github.com/posadahq/posada/internal/search/domain"
	"github.com/posadahq/posada/internal/task"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	events.Module,
	email.Module,
	webhook.Module,
	property.Module,
	roomtype.Module,
	room.Module,
	pricing.Module,
	availability.Module,
	search.Module,
	reservation.Module,
	invoice.Module,
	automation.Module,
	task.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	propertySvc     propertydomain.Service
	roomTypeSvc     roomtypedomain.Service
	roomSvc         roomdomain.Service
	pricingSvc      pricingdomain.Service
	availabilitySvc availabilitydomain.Service
	searchSvc       searchdomain.Service
	reservationSvc  reservationdomain.Service
	invoiceSvc      invoicedomain.Service
	automationSvc   automationdomain.Service
	taskSvc         taskdomain.Service
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	PropertySvc     propertydomain.Service
	RoomTypeSvc     roomtypedomain.Service
	RoomSvc         roomdomain.Service
	PricingSvc      pricingdomain.Service
	AvailabilitySvc availabilitydomain.Service
	SearchSvc       searchdomain.Service
	ReservationSvc  reservationdomain.Service
	InvoiceSvc      invoicedomain.Service
	AutomationSvc   automationdomain.Service
	TaskSvc         taskdomain.Service
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		propertySvc:     p.PropertySvc,
		roomTypeSvc:     p.RoomTypeSvc,
		roomSvc:         p.RoomSvc,
		pricingSvc:      p.PricingSvc,
		availabilitySvc: p.AvailabilitySvc,
		searchSvc:       p.SearchSvc,
		reservationSvc:  p.ReservationSvc,
		invoiceSvc:      p.InvoiceSvc,
		automationSvc:   p.AutomationSvc,
		taskSvc:         p.TaskSvc,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", ScopeRequired())

	// -------- Properties / Guests --------
	api.GET("/properties", s.ListProperties)
	api.POST("/properties", s.CreateProperty)
	api.GET("/properties/:id", s.GetPropertyByID)
	api.POST("/guests", s.CreateGuest)
	api.GET("/guests/:id", s.GetGuestByID)

	// -------- Room Types --------
	api.GET("/room_types", s.ListRoomTypes)
	api.POST("/room_types", s.CreateRoomType)
	api.GET("/room_types/:id", s.GetRoomTypeByID)
	api.PATCH("/room_types/:id", s.UpdateRoomType)

	// -------- Rooms --------
	api.GET("/rooms", s.ListRooms)
	api.POST("/rooms", s.CreateRoom)
	api.GET("/rooms/:id", s.GetRoomByID)
	api.POST("/rooms/:id/status", s.ChangeRoomStatus)

	// -------- Pricing / Availability / Search --------
	api.GET("/pricing/quote", s.QuoteStay)
	api.GET("/availability", s.GetAvailability)
	api.GET("/search", s.SearchCombinations)

	// -------- Reservations --------
	api.GET("/reservations", s.ListReservations)
	api.POST("/reservations", s.CreateReservation)
	api.GET("/reservations/:id", s.GetReservationByID)
	api.POST("/reservations/:id/complete", s.CompleteReservation)
	api.POST("/reservations/:id/confirm", s.ConfirmReservation)
	api.POST("/reservations/:id/check_in", s.CheckInReservation)
	api.POST("/reservations/:id/check_out", s.CheckOutReservation)
	api.POST("/reservations/:id/cancel", s.CancelReservation)
	api.POST("/reservations/:id/no_show", s.NoShowReservation)
	api.GET("/reservations/:id/payments", s.ListReservationPayments)
	api.POST("/reservations/:id/payments", s.AddReservationPayment)
	api.POST("/reservations/:id/refunds", s.RefundReservationPayment)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/emit", s.EmitInvoice)
	api.POST("/invoices/:id/void", s.VoidInvoice)
	api.GET("/invoices/:id/pdf", s.RenderInvoicePDF)

	// -------- Automation --------
	api.GET("/automation/rules", s.ListAutomationRules)
	api.POST("/automation/rules", s.CreateAutomationRule)
	api.GET("/automation/rules/:id", s.GetAutomationRuleByID)
	api.PATCH("/automation/rules/:id", s.UpdateAutomationRule)
	api.DELETE("/automation/rules/:id", s.DeleteAutomationRule)
	api.GET("/automation/logs", s.ListAutomationLogs)

	// -------- Tasks --------
	api.GET("/tasks", s.ListTasks)
	api.POST("/tasks", s.CreateTask)
	api.GET("/tasks/:id", s.GetTaskByID)
	api.POST("/tasks/:id/status", s.ChangeTaskStatus)
}
