package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/metrics"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrdenesHandler struct {
	ordenes service.OrdenService
	folios  service.FolioService
	metrics *metrics.Servidor
}

func NewOrdenesHandler(ordenes service.OrdenService, folios service.FolioService, m *metrics.Servidor) *OrdenesHandler {
	return &OrdenesHandler{ordenes: ordenes, folios: folios, metrics: m}
}

// Crear godoc
// @Summary Registra una orden
// @Description 201 para una orden nueva, 200 con duplicada=true si la clave_idempotencia ya existía.
// @Tags ordenes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OrdenRequest true "Orden"
// @Success 201 {object} dto.OrdenResponse
// @Success 200 {object} dto.OrdenResponse
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/ordenes [post]
func (h *OrdenesHandler) Crear(c *gin.Context) {
	var req dto.OrdenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !autorizarSucursal(c, req.SucursalID) {
		return
	}
	resp, err := h.ordenes.Crear(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.metrics.OrdenRegistrada(resp.Duplicada)
	status := http.StatusCreated
	if resp.Duplicada {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// Obtener godoc
// @Summary Obtiene una orden
// @Tags ordenes
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la orden"
// @Success 200 {object} dto.OrdenResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/ordenes/{id} [get]
func (h *OrdenesHandler) Obtener(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.ordenes.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !autorizarSucursal(c, resp.SucursalID) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancelar godoc
// @Summary Cancela una orden
// @Tags ordenes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la orden"
// @Param body body dto.CancelarOrdenRequest true "Motivo"
// @Success 200 {object} dto.OrdenResponse
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/ordenes/{id}/cancelar [post]
func (h *OrdenesHandler) Cancelar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !autorizarOrden(c, h.ordenes, id) {
		return
	}
	var req dto.CancelarOrdenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.ordenes.Cancelar(c.Request.Context(), id, req.Motivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Folio godoc
// @Summary Asigna el folio de la sucursal
// @Description Llamadas repetidas devuelven el mismo folio.
// @Tags ordenes
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la orden"
// @Success 200 {object} dto.FolioResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/ordenes/{id}/folio [post]
func (h *OrdenesHandler) Folio(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !autorizarOrden(c, h.ordenes, id) {
		return
	}
	resp, err := h.folios.Asignar(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// autorizarOrden answers 404 for an unknown order and 403 when it belongs to a
// branch the token cannot operate.
func autorizarOrden(c *gin.Context, ordenes service.OrdenService, id uuid.UUID) bool {
	if claimsSucursal(c) == nil {
		return true
	}
	o, err := ordenes.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return false
	}
	return autorizarSucursal(c, o.SucursalID)
}
