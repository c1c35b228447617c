package router

import (
	"time"

	"cajapos/internal/config"
	"cajapos/internal/cuadre"
	"cajapos/internal/handler"
	"cajapos/internal/infra"
	"cajapos/internal/metrics"
	"cajapos/internal/middleware"
	"cajapos/internal/repository"
	"cajapos/internal/service"
	"cajapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

var (
	todos       = []string{"cajero", "supervisor", "administrador"}
	supervision = []string{"supervisor", "administrador"}
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// Collectors are registered on reg, which also backs GET /metrics.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, lealtadCB *infra.CircuitBreaker, reg *prometheus.Registry) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.NewServidor(reg)
	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(m.GinMiddleware())
	if cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimit, time.Minute).Handler())
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	cajaRepo := repository.NewCajaRepository(db)
	ordenRepo := repository.NewOrdenRepository(db)
	folioRepo := repository.NewFolioRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	tasas := cuadre.Tasas{
		ComisionTarjeta:    cfg.ComisionTarjetaDecimal(),
		PlataformaApp:      cfg.ComisionPlataformaAppDecimal(),
		PlataformaEfectivo: cfg.ComisionPlataformaEfectivoDecimal(),
	}
	cuadreSvc := service.NewCuadreService(cajaRepo, ordenRepo, tasas)
	cajaSvc := service.NewCajaService(cajaRepo, cuadreSvc, cfg.CajaMaxEfectivoDecimal())
	ordenSvc := service.NewOrdenService(ordenRepo, cfg.TasaIVADecimal())
	folioSvc := service.NewFolioService(folioRepo)

	// Worker dispatcher; injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)
	lealtadSvc := service.NewLealtadService(ordenSvc, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc, cuadreSvc, m)
	ordenesH := handler.NewOrdenesHandler(ordenSvc, folioSvc, m)
	lealtadH := handler.NewLealtadHandler(lealtadSvc, ordenSvc, m)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, lealtadCB))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", middleware.RequireRole(todos...), cajaH.Abrir)
			caja.GET("/activa", middleware.RequireRole(todos...), cajaH.GetActiva)
			caja.GET("/historial", middleware.RequireRole(supervision...), cajaH.Historial)
			caja.POST("/:id/movimientos", middleware.RequireRole(todos...), cajaH.RegistrarMovimiento)
			caja.GET("/:id/movimientos", middleware.RequireRole(todos...), cajaH.ListarMovimientos)
			caja.POST("/:id/entrega", middleware.RequireRole(todos...), cajaH.Entregar)
			caja.GET("/:id/entregas", middleware.RequireRole(todos...), cajaH.ListarEntregas)
			caja.POST("/:id/cerrar", middleware.RequireRole(todos...), cajaH.Cerrar)
			caja.GET("/:id/cuadre", middleware.RequireRole(todos...), cajaH.Cuadre)
		}

		v1.GET("/denominaciones", middleware.RequireRole(todos...), handler.ListarDenominaciones)
		v1.POST("/denominaciones/total", middleware.RequireRole(todos...), handler.TotalConteo)

		ordenes := v1.Group("/ordenes")
		{
			ordenes.POST("", middleware.RequireRole(todos...), ordenesH.Crear)
			ordenes.GET("/:id", middleware.RequireRole(todos...), ordenesH.Obtener)
			ordenes.POST("/:id/cancelar", middleware.RequireRole(supervision...), ordenesH.Cancelar)
			ordenes.POST("/:id/folio", middleware.RequireRole(todos...), ordenesH.Folio)
		}

		v1.POST("/lealtad/sellos", middleware.RequireRole(todos...), lealtadH.AcumularSello)
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
