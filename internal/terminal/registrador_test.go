package terminal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/offline"
	"cajapos/internal/ordenclient"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCola struct {
	encoladas []dto.OrdenRequest
	err       error
}

var _ Cola = (*stubCola)(nil)

func (c *stubCola) Encolar(_ context.Context, p dto.OrdenRequest) (*model.OrdenOffline, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.encoladas = append(c.encoladas, p)
	return &model.OrdenOffline{ID: p.ClaveIdempotencia, NumeroTemporal: len(c.encoladas), Estado: model.OfflinePendiente}, nil
}

type stubTransporte struct {
	err    error
	envios []dto.OrdenRequest
	sellos int
}

func (s *stubTransporte) CrearOrden(_ context.Context, req dto.OrdenRequest) (*dto.OrdenResponse, error) {
	s.envios = append(s.envios, req)
	if s.err != nil {
		return nil, s.err
	}
	return &dto.OrdenResponse{ID: "srv-1", ClaveIdempotencia: req.ClaveIdempotencia}, nil
}

func (s *stubTransporte) SiguienteFolio(context.Context, string) (int, error) { return 41, nil }

func (s *stubTransporte) AcumularSello(context.Context, string, string) error {
	s.sellos++
	return nil
}

type conexionFija struct{ enLinea bool }

func (c *conexionFija) EnLinea() bool       { return c.enLinea }
func (c *conexionFija) MarcarFueraDeLinea() { c.enLinea = false }

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func venta() dto.OrdenRequest {
	cliente := "cli-1"
	return dto.OrdenRequest{
		ClienteID: &cliente,
		Items:     []dto.ItemOrdenRequest{{ProductoID: "P1", Nombre: "Pan", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(20)}},
		Pagos:     []dto.PagoRequest{{Metodo: "efectivo", Monto: decimal.NewFromInt(20)}},
	}
}

func newRegistrador(cola Cola, tr Transporte, cx Conexion) *Registrador {
	r := NewRegistrador(cola, tr, cx, 3, nil)
	r.ahora = func() time.Time { return t0 }
	return r
}

func TestEnLineaEnviaYCompletaFolio(t *testing.T) {
	cola, tr := &stubCola{}, &stubTransporte{}
	res, err := newRegistrador(cola, tr, &conexionFija{enLinea: true}).Registrar(context.Background(), venta())
	require.NoError(t, err)

	assert.Equal(t, ResultadoEnviada, res.Estado)
	assert.Equal(t, "srv-1", res.ServidorID)
	require.NotNil(t, res.Folio)
	assert.Equal(t, 41, *res.Folio)
	assert.Equal(t, 1, tr.sellos)
	assert.Empty(t, cola.encoladas)

	require.Len(t, tr.envios, 1)
	enviada := tr.envios[0]
	assert.NotEmpty(t, enviada.ClaveIdempotencia)
	assert.Equal(t, 3, enviada.SucursalID)
	require.NotNil(t, enviada.CreadaEn)
	assert.True(t, enviada.CreadaEn.Equal(t0))
}

func TestFueraDeLineaEncolaSinLlamarAlServidor(t *testing.T) {
	cola, tr := &stubCola{}, &stubTransporte{}
	res, err := newRegistrador(cola, tr, &conexionFija{}).Registrar(context.Background(), venta())
	require.NoError(t, err)

	assert.Equal(t, ResultadoEnCola, res.Estado)
	assert.Equal(t, 1, res.NumeroTemporal)
	assert.NotEmpty(t, res.LocalID)
	assert.Empty(t, tr.envios)
	require.Len(t, cola.encoladas, 1)
	assert.Equal(t, res.LocalID, cola.encoladas[0].ClaveIdempotencia)
}

func TestErrorTransitorioEncolaConLaMismaClave(t *testing.T) {
	cola := &stubCola{}
	tr := &stubTransporte{err: fmt.Errorf("%w: timeout", ordenclient.ErrTransitorio)}
	cx := &conexionFija{enLinea: true}
	res, err := newRegistrador(cola, tr, cx).Registrar(context.Background(), venta())
	require.NoError(t, err)

	assert.Equal(t, ResultadoEnCola, res.Estado)
	assert.False(t, cx.enLinea)
	require.Len(t, tr.envios, 1)
	require.Len(t, cola.encoladas, 1)
	assert.Equal(t, tr.envios[0].ClaveIdempotencia, cola.encoladas[0].ClaveIdempotencia)
}

func TestRechazoNoSeEncola(t *testing.T) {
	cola := &stubCola{}
	tr := &stubTransporte{err: &ordenclient.RechazoError{Status: 400, Detail: "los pagos no cuadran"}}
	cx := &conexionFija{enLinea: true}
	res, err := newRegistrador(cola, tr, cx).Registrar(context.Background(), venta())
	require.NoError(t, err)

	assert.Equal(t, ResultadoRechazada, res.Estado)
	assert.Equal(t, "los pagos no cuadran", res.Motivo)
	assert.Empty(t, cola.encoladas)
	assert.True(t, cx.enLinea)
}

func TestVentaPerdidaEsDistintaDeEnCola(t *testing.T) {
	cola := &stubCola{err: fmt.Errorf("%w: disk I/O error", offline.ErrAlmacenamiento)}
	_, err := newRegistrador(cola, &stubTransporte{}, &conexionFija{}).Registrar(context.Background(), venta())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOrdenPerdida))
	assert.True(t, errors.Is(err, offline.ErrAlmacenamiento))
}
