package handler

import (
	"errors"
	"net/http"

	"cajapos/internal/apierror"
	"cajapos/internal/denominacion"
	"cajapos/internal/dto"

	"github.com/gin-gonic/gin"
)

// ListarDenominaciones godoc
// @Summary Lista los billetes y monedas aceptados
// @Tags denominaciones
// @Produce json
// @Security BearerAuth
// @Success 200 {array} denominacion.Denominacion
// @Router /v1/denominaciones [get]
func ListarDenominaciones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": denominacion.Denominaciones()})
}

// TotalConteo godoc
// @Summary Total de un conteo por denominación
// @Tags denominaciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ConteoTotalRequest true "Conteo"
// @Success 200 {object} dto.ConteoTotalResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/denominaciones/total [post]
func TotalConteo(c *gin.Context) {
	var req dto.ConteoTotalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	total, err := denominacion.Total(denominacion.Conteo(req.Conteo))
	if err != nil {
		if errors.Is(err, denominacion.ErrDenominacionInvalida) || errors.Is(err, denominacion.ErrCantidadNegativa) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConteoTotalResponse{Conteo: req.Conteo, Total: total})
}
