package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/metrics"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LealtadHandler struct {
	svc     service.LealtadService
	ordenes service.OrdenService
	metrics *metrics.Servidor
}

func NewLealtadHandler(svc service.LealtadService, ordenes service.OrdenService, m *metrics.Servidor) *LealtadHandler {
	return &LealtadHandler{svc: svc, ordenes: ordenes, metrics: m}
}

// AcumularSello godoc
// @Summary Encola un sello de lealtad
// @Description El sello se entrega de forma asíncrona.
// @Tags lealtad
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.SelloRequest true "Cliente y orden"
// @Success 202 {object} map[string]bool
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/lealtad/sellos [post]
func (h *LealtadHandler) AcumularSello(c *gin.Context) {
	var req dto.SelloRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !autorizarOrden(c, h.ordenes, uuid.MustParse(req.OrdenID)) {
		return
	}
	if err := h.svc.AcumularSello(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	h.metrics.SelloEncolado()
	c.JSON(http.StatusAccepted, gin.H{"encolado": true})
}
