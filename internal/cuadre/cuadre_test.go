package cuadre

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

var (
	apertura = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tasas    = Tasas{ComisionTarjeta: d("0.0405"), PlataformaApp: d("0.30"), PlataformaEfectivo: d("0.25")}
)

func cajaAbierta(monto string) model.Caja {
	return model.Caja{
		ID:            uuid.New(),
		SucursalID:    1,
		MontoApertura: d(monto),
		Estado:        model.CajaAbierta,
		OpenedAt:      apertura,
	}
}

func orden(minuto int, total string, pagos ...model.OrdenPago) model.Orden {
	return model.Orden{
		ID:         uuid.New(),
		SucursalID: 1,
		Estado:     model.OrdenCompletada,
		Subtotal:   d(total),
		Total:      d(total),
		CreatedAt:  apertura.Add(time.Duration(minuto) * time.Minute),
		Items:      []model.OrdenItem{{ProductoID: "P1", Nombre: "Producto", Cantidad: 1, PrecioUnitario: d(total), Subtotal: d(total)}},
		Pagos:      pagos,
	}
}

func pago(metodo, monto string) model.OrdenPago {
	return model.OrdenPago{ID: uuid.New(), Metodo: metodo, Monto: d(monto)}
}

func movimiento(caja model.Caja, tipo, monto string, sub *string) model.MovimientoCaja {
	return model.MovimientoCaja{ID: uuid.New(), CajaID: caja.ID, Tipo: tipo, Monto: d(monto), Subcategoria: sub, CreatedAt: apertura.Add(time.Hour)}
}

func calcular(caja model.Caja, ordenes []model.Orden, movs []model.MovimientoCaja, contado *decimal.Decimal) Resumen {
	return Calcular(Entrada{
		Caja:        caja,
		Ordenes:     ordenes,
		Movimientos: movs,
		Contado:     contado,
		Ahora:       apertura.Add(10 * time.Hour),
		Tasas:       tasas,
	})
}

// ── Escenarios ───────────────────────────────────────────────────────────────

func TestVentaEnEfectivo(t *testing.T) {
	caja := cajaAbierta("500")
	res := calcular(caja, []model.Orden{orden(5, "150", pago("efectivo", "150"))}, nil, nil)

	assert.Equal(t, "150", res.PorMetodo.Efectivo.String())
	assert.Equal(t, "650", res.Total1.String())
	assert.Equal(t, "650", res.EfectivoTeorico.String())
	assert.Nil(t, res.Descuadre)
	assert.Empty(t, res.EstadoCuadre)
}

func TestRetiroReduceTeorico(t *testing.T) {
	caja := cajaAbierta("500")
	ordenes := []model.Orden{orden(5, "150", pago("efectivo", "150"))}
	movs := []model.MovimientoCaja{movimiento(caja, model.MovimientoRetiro, "50", nil)}

	res := calcular(caja, ordenes, movs, nil)
	assert.Equal(t, "50", res.Retiros.String())
	assert.Equal(t, "600", res.EfectivoTeorico.String())
}

func TestPlataformaConSobreprecio(t *testing.T) {
	caja := cajaAbierta("500")
	o := orden(5, "120", pago("plataforma", "120"))
	o.Plataforma = ptr("rappi")
	o.TotalPlataforma = ptr(d("135"))

	res := calcular(caja, []model.Orden{orden(1, "150", pago("efectivo", "150")), o}, nil, nil)

	require.Len(t, res.Plataformas, 1)
	p := res.Plataformas[0]
	assert.Equal(t, "rappi", p.Plataforma)
	assert.Equal(t, "15", p.Sobreprecio.String())
	assert.Equal(t, "120", p.CobradoApp.String())
	assert.Equal(t, "36", p.ComisionApp.String())
	assert.Equal(t, "15", res.DeudaPlataforma.String())

	// Platform money never enters the drawer.
	assert.Equal(t, "770", res.Total1.String())
	assert.Equal(t, "650", res.Total2.String())
	assert.Equal(t, "650", res.EfectivoTeorico.String())
}

func TestComisionTarjeta(t *testing.T) {
	caja := cajaAbierta("0")
	res := calcular(caja, []model.Orden{orden(5, "200", pago("tarjeta", "200"))}, nil, nil)

	assert.Equal(t, "8.1", res.Tarjeta.Comision.String())
	assert.Equal(t, "191.9", res.Tarjeta.IngresoNeto.String())
	assert.Equal(t, "0", res.EfectivoTeorico.String())
}

func TestFaltante(t *testing.T) {
	caja := cajaAbierta("500")
	ordenes := []model.Orden{orden(5, "150", pago("efectivo", "150"))}
	movs := []model.MovimientoCaja{movimiento(caja, model.MovimientoRetiro, "50", nil)}

	res := calcular(caja, ordenes, movs, ptr(d("590")))
	require.NotNil(t, res.Descuadre)
	assert.Equal(t, "-10", res.Descuadre.String())
	assert.Equal(t, EstadoFalta, res.EstadoCuadre)
	assert.Equal(t, "590", res.EfectivoContado.String())
}

func TestCascadaCompleta(t *testing.T) {
	caja := cajaAbierta("1000")
	ordenes := []model.Orden{
		orden(1, "300", pago("efectivo", "100"), pago("tarjeta", "200")),
		orden(2, "80", pago("plataforma", "80")),
		orden(3, "45.50", pago("efectivo", "45.50")),
	}
	movs := []model.MovimientoCaja{
		movimiento(caja, model.MovimientoDeposito, "200", nil),
		movimiento(caja, model.MovimientoGasto, "120", ptr("insumos")),
		movimiento(caja, model.MovimientoRetiro, "300", nil),
		movimiento(caja, model.MovimientoEntrega, "0", nil),
	}

	res := calcular(caja, ordenes, movs, nil)
	assert.Equal(t, "145.5", res.PorMetodo.Efectivo.String())
	assert.Equal(t, "425.5", res.PorMetodo.Total.String())
	assert.Equal(t, "1625.5", res.Total1.String())
	assert.Equal(t, "1545.5", res.Total2.String())
	assert.Equal(t, "1345.5", res.Total3.String())
	assert.Equal(t, "1225.5", res.Total4.String())
	assert.Equal(t, "925.5", res.EfectivoTeorico.String())
	assert.Equal(t, 3, res.Ventas.OrdenesCompletadas)
}

// ── Invariantes ──────────────────────────────────────────────────────────────

func TestIndependienteDelOrden(t *testing.T) {
	caja := cajaAbierta("500")
	o1 := orden(1, "99.99", pago("efectivo", "50"), pago("tarjeta", "49.99"))
	o2 := orden(2, "120", pago("plataforma", "100"), pago("efectivo", "20"))
	o2.Plataforma = ptr("uber")
	o3 := orden(3, "10", pago("efectivo", "10"))
	o3.Estado = model.OrdenCancelada
	o4 := orden(4, "33.33", pago("tarjeta", "33.33"))
	ordenes := []model.Orden{o1, o2, o3, o4}
	movs := []model.MovimientoCaja{
		movimiento(caja, model.MovimientoGasto, "12.5", ptr("limpieza")),
		movimiento(caja, model.MovimientoGasto, "7", nil),
		movimiento(caja, model.MovimientoDeposito, "100", nil),
		movimiento(caja, model.MovimientoRetiro, "40", nil),
	}

	base, err := json.Marshal(calcular(caja, ordenes, movs, ptr(d("600"))))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		o := append([]model.Orden(nil), ordenes...)
		m := append([]model.MovimientoCaja(nil), movs...)
		rng.Shuffle(len(o), func(a, b int) { o[a], o[b] = o[b], o[a] })
		rng.Shuffle(len(m), func(a, b int) { m[a], m[b] = m[b], m[a] })

		got, err := json.Marshal(calcular(caja, o, m, ptr(d("600"))))
		require.NoError(t, err)
		assert.JSONEq(t, string(base), string(got))
	}
}

func TestDescuadreRecuperaContado(t *testing.T) {
	caja := cajaAbierta("237.45")
	ordenes := []model.Orden{orden(1, "18.30", pago("efectivo", "18.30"))}
	for _, s := range []string{"0", "255.75", "255.74", "300.01", "100"} {
		res := calcular(caja, ordenes, nil, ptr(d(s)))
		require.NotNil(t, res.Descuadre)
		assert.True(t, res.Descuadre.Add(res.EfectivoTeorico).Equal(d(s)), "contado %s", s)
	}
}

func TestClasificar(t *testing.T) {
	assert.Equal(t, EstadoCuadrado, Clasificar(decimal.Zero))
	assert.Equal(t, EstadoCuadrado, Clasificar(d("0.009")))
	assert.Equal(t, EstadoCuadrado, Clasificar(d("-0.009")))
	assert.Equal(t, EstadoSobra, Clasificar(d("0.01")))
	assert.Equal(t, EstadoFalta, Clasificar(d("-0.01")))
}

func TestPagosMixtosSeReparten(t *testing.T) {
	caja := cajaAbierta("0")
	res := calcular(caja, []model.Orden{orden(1, "100", pago("efectivo", "60"), pago("tarjeta", "40"))}, nil, nil)
	assert.Equal(t, "60", res.PorMetodo.Efectivo.String())
	assert.Equal(t, "40", res.PorMetodo.Tarjeta.String())
	assert.Equal(t, "60", res.EfectivoTeorico.String())
}

// ── Exclusiones y bordes ─────────────────────────────────────────────────────

func TestOrdenesMalformadasSeExcluyen(t *testing.T) {
	caja := cajaAbierta("100")
	sinItems := orden(1, "50", pago("efectivo", "50"))
	sinItems.Items = nil
	sinPagos := orden(2, "50")
	metodo := orden(3, "50", pago("cheque", "50"))
	descuadrada := orden(4, "50", pago("efectivo", "40"))
	buena := orden(5, "25", pago("efectivo", "25"))

	res := calcular(caja, []model.Orden{sinItems, sinPagos, metodo, descuadrada, buena}, nil, nil)

	require.Len(t, res.Excluidas, 4)
	motivos := map[string]string{}
	for _, x := range res.Excluidas {
		motivos[x.OrdenID] = x.Motivo
	}
	assert.Equal(t, MotivoSinItems, motivos[sinItems.ID.String()])
	assert.Equal(t, MotivoSinPagos, motivos[sinPagos.ID.String()])
	assert.Equal(t, MotivoMetodoDesconocido, motivos[metodo.ID.String()])
	assert.Equal(t, MotivoPagosNoCuadran, motivos[descuadrada.ID.String()])
	assert.Equal(t, "125", res.EfectivoTeorico.String())
	assert.Equal(t, 1, res.Ventas.OrdenesCompletadas)
}

func TestCajaSinActividad(t *testing.T) {
	caja := cajaAbierta("500")
	res := calcular(caja, nil, nil, nil)
	assert.Equal(t, "500", res.EfectivoTeorico.String())
	assert.Empty(t, res.Plataformas)
	assert.Empty(t, res.GastosPorCategoria)
	assert.Empty(t, res.Excluidas)
}

func TestVentanaYSucursal(t *testing.T) {
	caja := cajaAbierta("0")
	cerrada := apertura.Add(2 * time.Hour)
	caja.ClosedAt = &cerrada
	caja.Estado = model.CajaCerrada

	antes := orden(-1, "10", pago("efectivo", "10"))
	dentro := orden(60, "20", pago("efectivo", "20"))
	enElCierre := orden(120, "40", pago("efectivo", "40"))
	otraSucursal := orden(30, "80", pago("efectivo", "80"))
	otraSucursal.SucursalID = 2
	pendiente := orden(30, "160")
	pendiente.Estado = model.OrdenPendiente

	otraCaja := model.MovimientoCaja{ID: uuid.New(), CajaID: uuid.New(), Tipo: model.MovimientoDeposito, Monto: d("1000")}

	res := calcular(caja, []model.Orden{antes, dentro, enElCierre, otraSucursal, pendiente}, []model.MovimientoCaja{otraCaja}, nil)
	assert.Equal(t, "20", res.EfectivoTeorico.String())
	assert.Equal(t, cerrada, res.Hasta)
	assert.Empty(t, res.Excluidas)
}

func TestCanceladasReembolsosYAnulaciones(t *testing.T) {
	caja := cajaAbierta("0")
	reembolso := orden(1, "70", pago("efectivo", "70"))
	reembolso.Estado = model.OrdenCancelada
	anulada := orden(2, "30")
	anulada.Estado = model.OrdenCancelada
	venta := orden(3, "100", pago("efectivo", "100"))
	venta.Subtotal = d("90")
	venta.Descuento = d("5")
	venta.Impuesto = d("15")

	res := calcular(caja, []model.Orden{reembolso, anulada, venta}, nil, nil)
	assert.Equal(t, 2, res.Ventas.OrdenesCanceladas)
	assert.Equal(t, 1, res.Ventas.Anulaciones)
	assert.Equal(t, "70", res.Ventas.Reembolsos.String())
	assert.Equal(t, "90", res.Ventas.Brutas.String())
	assert.Equal(t, "15", res.Ventas.Netas.String())
	// Cancelled orders never touch the drawer.
	assert.Equal(t, "100", res.EfectivoTeorico.String())
}

func TestGastosPorCategoria(t *testing.T) {
	caja := cajaAbierta("0")
	movs := []model.MovimientoCaja{
		movimiento(caja, model.MovimientoGasto, "10", nil),
		movimiento(caja, model.MovimientoGasto, "30", ptr("renta")),
		movimiento(caja, model.MovimientoGasto, "5", ptr("insumos")),
		movimiento(caja, model.MovimientoGasto, "2.5", ptr("")),
	}
	res := calcular(caja, nil, movs, nil)

	require.Len(t, res.GastosPorCategoria, 3)
	assert.Equal(t, "insumos", res.GastosPorCategoria[0].Subcategoria)
	assert.Equal(t, "renta", res.GastosPorCategoria[1].Subcategoria)
	assert.Equal(t, "otros", res.GastosPorCategoria[2].Subcategoria)
	assert.Equal(t, "12.5", res.GastosPorCategoria[2].Total.String())
	assert.Len(t, res.GastosPorCategoria[2].Movimientos, 2)
	assert.Equal(t, "-47.5", res.EfectivoTeorico.String())
}

func TestPlataformaCobradaEnEfectivo(t *testing.T) {
	caja := cajaAbierta("0")
	o := orden(1, "200", pago("efectivo", "200"))
	o.Plataforma = ptr("didi")

	res := calcular(caja, []model.Orden{o}, nil, nil)
	require.Len(t, res.Plataformas, 1)
	p := res.Plataformas[0]
	assert.Equal(t, "200", p.TotalPlataforma.String())
	assert.True(t, p.Sobreprecio.IsZero())
	assert.Equal(t, "50", p.ComisionEfectivo.String())
	assert.Equal(t, "50", p.ComisionTotal.String())
	assert.Equal(t, "200", res.EfectivoTeorico.String())
}
