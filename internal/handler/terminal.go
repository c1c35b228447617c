package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/offline"
	"cajapos/internal/sincronizacion"
	"cajapos/internal/terminal"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ── Terminal local API ────────────────────────────────────────────────────────
// Served on the terminal to the POS UI only; no JWT.

type Registrador interface {
	Registrar(ctx context.Context, req dto.OrdenRequest) (terminal.Resultado, error)
}

type ColaOffline interface {
	Pendientes(ctx context.Context) (int64, error)
	Listar(ctx context.Context) ([]model.OrdenOffline, error)
	Reintentar(ctx context.Context, localID string) error
}

type Sincronizador interface {
	Sincronizar(ctx context.Context) (sincronizacion.Reporte, error)
	EnCurso() bool
}

type TerminalHandler struct {
	registrador Registrador
	cola        ColaOffline
	sync        Sincronizador
	enLinea     func() bool
	sucursalID  int
}

func NewTerminalHandler(r Registrador, cola ColaOffline, sync Sincronizador, enLinea func() bool, sucursalID int) *TerminalHandler {
	return &TerminalHandler{registrador: r, cola: cola, sync: sync, enLinea: enLinea, sucursalID: sucursalID}
}

// RegistrarOrden handles POST /local/v1/ordenes: 201 enviada, 202 en_cola,
// 422 rechazada, 500 when the sale was lost.
func (h *TerminalHandler) RegistrarOrden(c *gin.Context) {
	// Defaults the POS UI may omit; the body overrides them.
	req := dto.OrdenRequest{ClaveIdempotencia: uuid.NewString(), SucursalID: h.sucursalID}
	if !bindAndValidate(c, &req) {
		return
	}
	res, err := h.registrador.Registrar(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	switch res.Estado {
	case terminal.ResultadoEnviada:
		c.JSON(http.StatusCreated, res)
	case terminal.ResultadoEnCola:
		c.JSON(http.StatusAccepted, res)
	default:
		c.JSON(http.StatusUnprocessableEntity, res)
	}
}

// ListarOffline handles GET /local/v1/offline.
func (h *TerminalHandler) ListarOffline(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := h.cola.Pendientes(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	recs, err := h.cola.Listar(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	data := make([]dto.OrdenOfflineResponse, 0, len(recs))
	for i := range recs {
		data = append(data, offlineToResponse(&recs[i]))
	}
	c.JSON(http.StatusOK, dto.ColaOfflineResponse{Pendientes: n, Data: data})
}

// Reintentar handles POST /local/v1/offline/:id/reintentar.
func (h *TerminalHandler) Reintentar(c *gin.Context) {
	err := h.cola.Reintentar(c.Request.Context(), c.Param("id"))
	if errors.Is(err, offline.ErrNoEncontrada) {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sincronizar handles POST /local/v1/sincronizar; 409 while a drain runs.
func (h *TerminalHandler) Sincronizar(c *gin.Context) {
	rep, err := h.sync.Sincronizar(c.Request.Context())
	if errors.Is(err, sincronizacion.ErrEnCurso) {
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Estado handles GET /local/v1/estado.
func (h *TerminalHandler) Estado(c *gin.Context) {
	n, err := h.cola.Pendientes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EstadoTerminalResponse{
		SucursalID:    h.sucursalID,
		EnLinea:       h.enLinea(),
		Sincronizando: h.sync.EnCurso(),
		Pendientes:    n,
	})
}

func offlineToResponse(o *model.OrdenOffline) dto.OrdenOfflineResponse {
	return dto.OrdenOfflineResponse{
		LocalID:        o.ID,
		NumeroTemporal: o.NumeroTemporal,
		Estado:         o.Estado,
		ServidorID:     o.ServidorID,
		Folio:          o.Folio,
		Intentos:       o.Intentos,
		UltimoError:    o.UltimoError,
		Rechazada:      o.Rechazada,
		CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
	}
}
