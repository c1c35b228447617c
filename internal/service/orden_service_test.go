package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func ordenReq(clave string, pagos ...dto.PagoRequest) dto.OrdenRequest {
	return dto.OrdenRequest{
		ClaveIdempotencia: clave,
		SucursalID:        1,
		Items: []dto.ItemOrdenRequest{
			{ProductoID: "P1", Nombre: "Frappé", Cantidad: 2, PrecioUnitario: d("45"),
				Modificadores: []dto.ModificadorRequest{{Nombre: "Extra shot", Precio: d("8")}}},
			{ProductoID: "P2", Nombre: "Galleta", Cantidad: 1, PrecioUnitario: d("20")},
		},
		Pagos: pagos,
	}
}

func TestCrearOrdenCalculaTotales(t *testing.T) {
	e := newEntorno(t, "0")
	e.ordenes.tasaIVA = d("0.16")
	ctx := context.Background()

	req := ordenReq("k-1", dto.PagoRequest{Metodo: "efectivo", Monto: d("100")}, dto.PagoRequest{Metodo: "tarjeta", Monto: d("46.16")})
	resp, err := e.ordenes.Crear(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.Duplicada)
	assert.Equal(t, model.OrdenCompletada, resp.Estado)
	assert.Equal(t, "126", resp.Subtotal.String())
	assert.Equal(t, "20.16", resp.Impuesto.String())
	assert.Equal(t, "146.16", resp.Total.String())

	got, err := e.ordenes.Obtener(ctx, uuid.MustParse(resp.ID))
	require.NoError(t, err)
	assert.Len(t, got.Pagos, 2)
}

func TestObtenerOrdenDevuelveDetalle(t *testing.T) {
	e := newEntorno(t, "0")
	ctx := context.Background()

	empleado := uuid.NewString()
	req := ordenReq("k-detalle", dto.PagoRequest{Metodo: "plataforma", Monto: d("126")})
	req.EmpleadoID = &empleado
	req.ClienteID = ptr("cli-9")
	req.Plataforma = ptr("rappi")
	req.TotalPlataforma = ptr(d("150"))
	creada, err := e.ordenes.Crear(ctx, req)
	require.NoError(t, err)

	got, err := e.ordenes.Obtener(ctx, uuid.MustParse(creada.ID))
	require.NoError(t, err)
	require.NotNil(t, got.EmpleadoID)
	assert.Equal(t, empleado, *got.EmpleadoID)
	assert.Equal(t, "cli-9", *got.ClienteID)
	assert.Equal(t, "rappi", *got.Plataforma)
	assert.Equal(t, "150", got.TotalPlataforma.String())
	require.Len(t, got.Items, 2)
	assert.Equal(t, "P1", got.Items[0].ProductoID)
	assert.Equal(t, 2, got.Items[0].Cantidad)
	assert.Equal(t, "106", got.Items[0].Subtotal.String())
	require.Len(t, got.Items[0].Modificadores, 1)
	assert.Equal(t, "Extra shot", got.Items[0].Modificadores[0].Nombre)
	assert.Empty(t, got.Items[1].Modificadores)
	assert.Nil(t, got.CanceladaEn)

	cancelada, err := e.ordenes.Cancelar(ctx, uuid.MustParse(creada.ID), "cliente se fue")
	require.NoError(t, err)
	require.NotNil(t, cancelada.CanceladaEn)
	assert.Equal(t, "cliente se fue", *cancelada.MotivoCancelacion)
}

func TestCrearOrdenEsIdempotente(t *testing.T) {
	e := newEntorno(t, "0")
	ctx := context.Background()

	req := ordenReq("k-dup", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")})
	first, err := e.ordenes.Crear(ctx, req)
	require.NoError(t, err)

	second, err := e.ordenes.Crear(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicada)
	assert.Equal(t, first.ID, second.ID)

	// A re-submission never adds to the ledger twice.
	e.reloj.avanzar(time.Minute)
	caja := abrir(t, e, 1, "0")
	e.reloj.avanzar(time.Minute)
	_, err = e.ordenes.Crear(ctx, ordenReq("k-dup-2", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")}))
	require.NoError(t, err)
	_, err = e.ordenes.Crear(ctx, ordenReq("k-dup-2", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")}))
	require.NoError(t, err)
	e.reloj.avanzar(time.Minute)

	res, err := e.cuadre.Obtener(ctx, uuid.MustParse(caja.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "126", res.EfectivoTeorico.String())
}

func TestCrearOrdenSinPagosQuedaPendiente(t *testing.T) {
	e := newEntorno(t, "0")
	resp, err := e.ordenes.Crear(context.Background(), ordenReq("k-pend"))
	require.NoError(t, err)
	assert.Equal(t, model.OrdenPendiente, resp.Estado)
}

func TestCrearOrdenPagosNoCuadran(t *testing.T) {
	e := newEntorno(t, "0")
	_, err := e.ordenes.Crear(context.Background(), ordenReq("k-bad", dto.PagoRequest{Metodo: "efectivo", Monto: d("125.99")}))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestCancelarOrden(t *testing.T) {
	e := newEntorno(t, "0")
	ctx := context.Background()
	resp, err := e.ordenes.Crear(ctx, ordenReq("k-cancel", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")}))
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)

	cancelada, err := e.ordenes.Cancelar(ctx, id, "cliente se arrepintió")
	require.NoError(t, err)
	assert.Equal(t, model.OrdenCancelada, cancelada.Estado)

	_, err = e.ordenes.Cancelar(ctx, id, "otra vez")
	assert.True(t, IsValidation(err))

	_, err = e.ordenes.Cancelar(ctx, uuid.New(), "no existe")
	assert.ErrorIs(t, err, ErrOrdenNoEncontrada)
}

func TestFolioPorSucursal(t *testing.T) {
	e := newEntorno(t, "0")
	ctx := context.Background()

	a, err := e.ordenes.Crear(ctx, ordenReq("f-1", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")}))
	require.NoError(t, err)
	b, err := e.ordenes.Crear(ctx, ordenReq("f-2", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")}))
	require.NoError(t, err)
	otra := ordenReq("f-3", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")})
	otra.SucursalID = 2
	c, err := e.ordenes.Crear(ctx, otra)
	require.NoError(t, err)

	fa, err := e.folios.Asignar(ctx, uuid.MustParse(a.ID))
	require.NoError(t, err)
	fb, err := e.folios.Asignar(ctx, uuid.MustParse(b.ID))
	require.NoError(t, err)
	fc, err := e.folios.Asignar(ctx, uuid.MustParse(c.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, fa.Folio)
	assert.Equal(t, 2, fb.Folio)
	assert.Equal(t, 1, fc.Folio)

	again, err := e.folios.Asignar(ctx, uuid.MustParse(a.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, again.Folio)

	_, err = e.folios.Asignar(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOrdenNoEncontrada)
}

// ── Unique-key race ──────────────────────────────────────────────────────────

// carreraRepo simulates losing the insert race: the lookup misses, the insert
// hits the unique index, and the second lookup finds the winner.
type carreraRepo struct {
	ganadora *model.Orden
	lookups  int
}

var _ repository.OrdenRepository = (*carreraRepo)(nil)

func (r *carreraRepo) Create(context.Context, *model.Orden) error {
	return errors.New("UNIQUE constraint failed: ordenes.clave_idempotencia")
}

func (r *carreraRepo) FindByClave(context.Context, string) (*model.Orden, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.ganadora, nil
}

func (r *carreraRepo) FindByID(context.Context, uuid.UUID) (*model.Orden, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *carreraRepo) ListEnVentana(context.Context, int, time.Time, time.Time) ([]model.Orden, error) {
	return nil, nil
}

func (r *carreraRepo) Cancelar(context.Context, uuid.UUID, string, time.Time) (bool, error) {
	return false, nil
}

func TestCrearOrdenCarreraDevuelveGanadora(t *testing.T) {
	ganadora := &model.Orden{ID: uuid.New(), ClaveIdempotencia: "k-race", Estado: model.OrdenCompletada, Total: d("126")}
	repo := &carreraRepo{ganadora: ganadora}
	svc := NewOrdenService(repo, decimal.Zero)

	resp, err := svc.Crear(context.Background(), ordenReq("k-race", dto.PagoRequest{Metodo: "efectivo", Monto: d("126")}))
	require.NoError(t, err)
	assert.True(t, resp.Duplicada)
	assert.Equal(t, ganadora.ID.String(), resp.ID)
	assert.Equal(t, 2, repo.lookups)
}
