package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRespondErrorMapeaErroresDeServicio(t *testing.T) {
	casos := []struct {
		nombre string
		err    error
		status int
		detail string
	}{
		{"validacion", &service.ValidationError{Msg: "la caja ya está cerrada"}, http.StatusBadRequest, "la caja ya está cerrada"},
		{"validacion envuelta", fmt.Errorf("cerrar: %w", &service.ValidationError{Msg: "x"}), http.StatusBadRequest, "x"},
		{"caja", service.ErrCajaNoEncontrada, http.StatusNotFound, "caja no encontrada"},
		{"orden", fmt.Errorf("folio: %w", service.ErrOrdenNoEncontrada), http.StatusNotFound, "orden no encontrada"},
		{"sin caja", service.ErrSinCajaAbierta, http.StatusNotFound, "no hay caja abierta"},
		{"interno", errors.New("pq: connection refused"), http.StatusInternalServerError, "Error interno del servidor"},
	}
	for _, tc := range casos {
		t.Run(tc.nombre, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			respondError(c, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.detail)
		})
	}
}

func TestBindAndValidateDecimal(t *testing.T) {
	r := gin.New()
	r.POST("/m", func(c *gin.Context) {
		var req dto.MovimientoRequest
		if !bindAndValidate(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})
	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/m", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, post(`{"tipo":"gasto","monto":"12.50","subcategoria":"renta"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"tipo":"gasto","monto":"0"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"tipo":"entrega","monto":"5"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"tipo":"gasto","monto":"5","subcategoria":"viajes"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"tipo":`).Code)
}
