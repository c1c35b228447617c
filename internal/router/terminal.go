package router

import (
	"cajapos/internal/handler"
	"cajapos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewTerminal returns the terminal's local API engine. It listens on the
// terminal host only and carries no authentication.
func NewTerminal(env string, h *handler.TerminalHandler, reg *prometheus.Registry) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS("*"))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	local := r.Group("/local/v1")
	{
		local.POST("/ordenes", h.RegistrarOrden)
		local.GET("/offline", h.ListarOffline)
		local.POST("/offline/:id/reintentar", h.Reintentar)
		local.POST("/sincronizar", h.Sincronizar)
		local.GET("/estado", h.Estado)
	}
	return r
}
