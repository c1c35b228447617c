package handler

import (
	"net/http"
	"strconv"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/metrics"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CajaHandler struct {
	svc     service.CajaService
	cuadre  service.CuadreService
	metrics *metrics.Servidor
}

func NewCajaHandler(svc service.CajaService, cuadreSvc service.CuadreService, m *metrics.Servidor) *CajaHandler {
	return &CajaHandler{svc: svc, cuadre: cuadreSvc, metrics: m}
}

// Abrir godoc
// @Summary Abre la caja de una sucursal
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Monto o conteo de apertura"
// @Success 201 {object} dto.CajaResponse
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !autorizarSucursal(c, req.SucursalID) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), empleadoDesdeToken(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegistrarMovimiento godoc
// @Summary Registra un depósito, retiro o gasto
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja"
// @Param body body dto.MovimientoRequest true "Movimiento"
// @Success 201 {object} dto.MovimientoResponse
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/movimientos [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !h.autorizarCaja(c, id) {
		return
	}
	var req dto.MovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), id, empleadoDesdeToken(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListarMovimientos godoc
// @Summary Lista los movimientos de la caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja"
// @Success 200 {array} dto.MovimientoResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/movimientos [get]
func (h *CajaHandler) ListarMovimientos(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !h.autorizarCaja(c, id) {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Entregar godoc
// @Summary Entrega de turno sin cerrar la caja
// @Description El empleado saliente es quien llama.
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja"
// @Param body body dto.EntregaRequest true "Empleado entrante y efectivo contado"
// @Success 201 {object} dto.EntregaResponse
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/entrega [post]
func (h *CajaHandler) Entregar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !h.autorizarCaja(c, id) {
		return
	}
	var req dto.EntregaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	saliente := empleadoDesdeToken(c)
	if saliente == nil {
		c.JSON(http.StatusBadRequest, apierror.New("El token no identifica al empleado que entrega"))
		return
	}
	resp, err := h.svc.Entregar(c.Request.Context(), id, *saliente, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListarEntregas godoc
// @Summary Lista las entregas de turno
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja"
// @Success 200 {array} dto.EntregaResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/entregas [get]
func (h *CajaHandler) ListarEntregas(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !h.autorizarCaja(c, id) {
		return
	}
	resp, err := h.svc.ListarEntregas(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Cerrar godoc
// @Summary Cierra la caja con el efectivo contado
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja"
// @Param body body dto.CerrarCajaRequest true "Efectivo contado"
// @Success 200 {object} dto.CierreResponse
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !h.autorizarCaja(c, id) {
		return
	}
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.metrics.CajaCerrada(resp.Resumen.EstadoCuadre)
	c.JSON(http.StatusOK, resp)
}

// GetActiva godoc
// @Summary Caja abierta de la sucursal
// @Description Sin sucursal_id se usa la sucursal del token.
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param sucursal_id query int false "Sucursal"
// @Success 200 {object} dto.CajaResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/activa [get]
func (h *CajaHandler) GetActiva(c *gin.Context) {
	sucursalID, ok := sucursalDesdeQuery(c)
	if !ok {
		return
	}
	if !autorizarSucursal(c, sucursalID) {
		return
	}
	resp, err := h.svc.ObtenerAbierta(c.Request.Context(), sucursalID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cuadre godoc
// @Summary Cuadre de la caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de la caja"
// @Param contado query string false "Efectivo contado"
// @Success 200 {object} cuadre.Resumen
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/cuadre [get]
func (h *CajaHandler) Cuadre(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if !h.autorizarCaja(c, id) {
		return
	}
	var contado *decimal.Decimal
	if raw := c.Query("contado"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			c.JSON(http.StatusBadRequest, apierror.New("contado debe ser un monto no negativo"))
			return
		}
		contado = &d
	}
	resp, err := h.cuadre.Obtener(c.Request.Context(), id, contado)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historial godoc
// @Summary Historial de cajas cerradas
// @Description Un token ligado a una sucursal solo ve esa sucursal.
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param sucursal_id query int false "Sucursal"
// @Param desde query string false "AAAA-MM-DD"
// @Param hasta query string false "AAAA-MM-DD, inclusive"
// @Param page query int false "Página"
// @Param limit query int false "Tamaño de página (máx. 100)"
// @Success 200 {object} dto.HistorialCajaResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/caja/historial [get]
func (h *CajaHandler) Historial(c *gin.Context) {
	var filtro dto.HistorialCajaFilter
	if !bindQuery(c, &filtro) {
		return
	}
	// A branch-bound token only sees its own branch.
	if suc := claimsSucursal(c); filtro.SucursalID == 0 && suc != nil {
		filtro.SucursalID = *suc
	}
	if filtro.SucursalID != 0 && !autorizarSucursal(c, filtro.SucursalID) {
		return
	}
	resp, err := h.svc.ListarCerradas(c.Request.Context(), filtro)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// autorizarCaja answers 404 for an unknown caja and 403 when it belongs to a
// branch the token cannot operate.
func (h *CajaHandler) autorizarCaja(c *gin.Context, id uuid.UUID) bool {
	if claimsSucursal(c) == nil {
		return true
	}
	caja, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return false
	}
	return autorizarSucursal(c, caja.SucursalID)
}

func sucursalDesdeQuery(c *gin.Context) (int, bool) {
	if raw := c.Query("sucursal_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			c.JSON(http.StatusBadRequest, apierror.New("sucursal_id inválido"))
			return 0, false
		}
		return id, true
	}
	if claims := claimsSucursal(c); claims != nil {
		return *claims, true
	}
	c.JSON(http.StatusBadRequest, apierror.New("sucursal_id es obligatorio"))
	return 0, false
}
