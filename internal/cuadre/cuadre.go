// Package cuadre computes the cash reconciliation (cuadre / corte) of a caja.
//
// Calcular is pure: it receives the caja, the orders of its window and its
// movements, and derives the theoretical cash through a fixed cascade:
//
//	total_por_metodo = efectivo + tarjeta + plataforma
//	total_1          = total_por_metodo + monto_apertura + depositos
//	total_2          = total_1 − plataforma
//	total_3          = total_2 − tarjeta
//	total_4          = total_3 − gastos
//	efectivo_teorico = total_4 − retiros
//	descuadre        = contado − efectivo_teorico
//
// Every step is rounded to two decimals. A negative descuadre is a shortage
// ("falta"), a positive one a surplus ("sobra").
package cuadre

import (
	"sort"
	"time"

	"cajapos/internal/model"

	"github.com/shopspring/decimal"
)

// Estado del cuadre
const (
	EstadoCuadrado = "cuadrado"
	EstadoSobra    = "sobra"
	EstadoFalta    = "falta"
)

// Motivos de exclusión de una orden completada
const (
	MotivoSinItems          = "sin_items"
	MotivoSinPagos          = "sin_pagos"
	MotivoMetodoDesconocido = "metodo_desconocido"
	MotivoMontoInvalido     = "monto_invalido"
	MotivoPagosNoCuadran    = "pagos_no_cuadran"
)

var tolerancia = decimal.RequireFromString("0.01")

// Tasas are the fixed commission rates applied to the summary.
type Tasas struct {
	ComisionTarjeta    decimal.Decimal
	PlataformaApp      decimal.Decimal
	PlataformaEfectivo decimal.Decimal
}

// Entrada is everything Calcular needs. Ahora is the upper bound of the window
// while the caja is still open.
type Entrada struct {
	Caja        model.Caja
	Ordenes     []model.Orden
	Movimientos []model.MovimientoCaja
	Contado     *decimal.Decimal
	Ahora       time.Time
	Tasas       Tasas
}

type TotalesPorMetodo struct {
	Efectivo   decimal.Decimal `json:"efectivo"`
	Tarjeta    decimal.Decimal `json:"tarjeta"`
	Plataforma decimal.Decimal `json:"plataforma"`
	Total      decimal.Decimal `json:"total"`
}

type Ventas struct {
	OrdenesCompletadas int             `json:"ordenes_completadas"`
	OrdenesCanceladas  int             `json:"ordenes_canceladas"`
	Anulaciones        int             `json:"anulaciones"`
	Brutas             decimal.Decimal `json:"brutas"`
	Reembolsos         decimal.Decimal `json:"reembolsos"`
	Descuentos         decimal.Decimal `json:"descuentos"`
	Impuestos          decimal.Decimal `json:"impuestos"`
	Netas              decimal.Decimal `json:"netas"`
}

type Tarjeta struct {
	Total        decimal.Decimal `json:"total"`
	TasaComision decimal.Decimal `json:"tasa_comision"`
	Comision     decimal.Decimal `json:"comision"`
	IngresoNeto  decimal.Decimal `json:"ingreso_neto"`
}

type Plataforma struct {
	Plataforma       string          `json:"plataforma"`
	Ordenes          int             `json:"ordenes"`
	TotalInterno     decimal.Decimal `json:"total_interno"`
	TotalPlataforma  decimal.Decimal `json:"total_plataforma"`
	Sobreprecio      decimal.Decimal `json:"sobreprecio"`
	CobradoApp       decimal.Decimal `json:"cobrado_app"`
	CobradoEfectivo  decimal.Decimal `json:"cobrado_efectivo"`
	ComisionApp      decimal.Decimal `json:"comision_app"`
	ComisionEfectivo decimal.Decimal `json:"comision_efectivo"`
	ComisionTotal    decimal.Decimal `json:"comision_total"`
}

type GastoDetalle struct {
	MovimientoID string          `json:"movimiento_id"`
	Monto        decimal.Decimal `json:"monto"`
	Nota         *string         `json:"nota"`
	CreatedAt    time.Time       `json:"created_at"`
}

type GastoCategoria struct {
	Subcategoria string          `json:"subcategoria"`
	Total        decimal.Decimal `json:"total"`
	Movimientos  []GastoDetalle  `json:"movimientos"`
}

// OrdenExcluida is a completed order left out of every aggregate because its
// rows are malformed.
type OrdenExcluida struct {
	OrdenID string          `json:"orden_id"`
	Total   decimal.Decimal `json:"total"`
	Motivo  string          `json:"motivo"`
}

// Resumen is the full reconciliation of one caja.
type Resumen struct {
	CajaID        string          `json:"caja_id"`
	SucursalID    int             `json:"sucursal_id"`
	EstadoCaja    string          `json:"estado_caja"`
	Desde         time.Time       `json:"desde"`
	Hasta         time.Time       `json:"hasta"`
	MontoApertura decimal.Decimal `json:"monto_apertura"`

	PorMetodo TotalesPorMetodo `json:"por_metodo"`
	Depositos decimal.Decimal  `json:"depositos"`
	Gastos    decimal.Decimal  `json:"gastos"`
	Retiros   decimal.Decimal  `json:"retiros"`

	Total1          decimal.Decimal `json:"total_1"`
	Total2          decimal.Decimal `json:"total_2"`
	Total3          decimal.Decimal `json:"total_3"`
	Total4          decimal.Decimal `json:"total_4"`
	EfectivoTeorico decimal.Decimal `json:"efectivo_teorico"`

	// Nil until a physical count is supplied.
	EfectivoContado *decimal.Decimal `json:"efectivo_contado"`
	Descuadre       *decimal.Decimal `json:"descuadre"`
	EstadoCuadre    string           `json:"estado_cuadre,omitempty"`

	Ventas             Ventas           `json:"ventas"`
	Tarjeta            Tarjeta          `json:"tarjeta"`
	Plataformas        []Plataforma     `json:"plataformas"`
	DeudaPlataforma    decimal.Decimal  `json:"deuda_plataforma"`
	GastosPorCategoria []GastoCategoria `json:"gastos_por_categoria"`
	Excluidas          []OrdenExcluida  `json:"excluidas"`
}

func r2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Calcular builds the Resumen. Orders from other branches or outside
// [opened_at, closed_at ?? ahora) and movements of other cajas are ignored.
func Calcular(e Entrada) Resumen {
	caja := e.Caja
	hasta := e.Ahora
	if caja.ClosedAt != nil {
		hasta = *caja.ClosedAt
	}

	res := Resumen{
		CajaID:             caja.ID.String(),
		SucursalID:         caja.SucursalID,
		EstadoCaja:         caja.Estado,
		Desde:              caja.OpenedAt,
		Hasta:              hasta,
		MontoApertura:      r2(caja.MontoApertura),
		Plataformas:        []Plataforma{},
		GastosPorCategoria: []GastoCategoria{},
		Excluidas:          []OrdenExcluida{},
	}

	plataformas := map[string]*Plataforma{}
	var efectivo, tarjeta, plataforma decimal.Decimal

	for i := range e.Ordenes {
		o := &e.Ordenes[i]
		if o.SucursalID != caja.SucursalID || o.CreatedAt.Before(caja.OpenedAt) || !o.CreatedAt.Before(hasta) {
			continue
		}

		switch o.Estado {
		case model.OrdenCancelada:
			res.Ventas.OrdenesCanceladas++
			if pagada(o) {
				res.Ventas.Reembolsos = res.Ventas.Reembolsos.Add(o.Total)
			} else {
				res.Ventas.Anulaciones++
			}
			continue
		case model.OrdenCompletada:
		default:
			continue
		}

		porMetodo, motivo := validar(o)
		if motivo != "" {
			res.Excluidas = append(res.Excluidas, OrdenExcluida{OrdenID: o.ID.String(), Total: r2(o.Total), Motivo: motivo})
			continue
		}

		res.Ventas.OrdenesCompletadas++
		res.Ventas.Brutas = res.Ventas.Brutas.Add(o.Subtotal)
		res.Ventas.Descuentos = res.Ventas.Descuentos.Add(o.Descuento)
		res.Ventas.Impuestos = res.Ventas.Impuestos.Add(o.Impuesto)

		efectivo = efectivo.Add(porMetodo[model.MetodoEfectivo])
		tarjeta = tarjeta.Add(porMetodo[model.MetodoTarjeta])
		plataforma = plataforma.Add(porMetodo[model.MetodoPlataforma])

		if o.Plataforma != nil && *o.Plataforma != "" {
			p, ok := plataformas[*o.Plataforma]
			if !ok {
				p = &Plataforma{Plataforma: *o.Plataforma}
				plataformas[*o.Plataforma] = p
			}
			cotizado := o.Total
			if o.TotalPlataforma != nil {
				cotizado = *o.TotalPlataforma
			}
			p.Ordenes++
			p.TotalInterno = p.TotalInterno.Add(o.Total)
			p.TotalPlataforma = p.TotalPlataforma.Add(cotizado)
			if sobre := cotizado.Sub(o.Total); sobre.IsPositive() {
				p.Sobreprecio = p.Sobreprecio.Add(sobre)
			}
			p.CobradoApp = p.CobradoApp.Add(porMetodo[model.MetodoPlataforma])
			p.CobradoEfectivo = p.CobradoEfectivo.Add(porMetodo[model.MetodoEfectivo])
		}
	}

	gastos := map[string]*GastoCategoria{}
	var depositos, gastoTotal, retiros decimal.Decimal
	for _, m := range e.Movimientos {
		if m.CajaID != caja.ID {
			continue
		}
		switch m.Tipo {
		case model.MovimientoDeposito:
			depositos = depositos.Add(m.Monto)
		case model.MovimientoRetiro:
			retiros = retiros.Add(m.Monto)
		case model.MovimientoGasto:
			gastoTotal = gastoTotal.Add(m.Monto)
			sub := model.SubcategoriaPorDefecto
			if m.Subcategoria != nil && *m.Subcategoria != "" {
				sub = *m.Subcategoria
			}
			g, ok := gastos[sub]
			if !ok {
				g = &GastoCategoria{Subcategoria: sub}
				gastos[sub] = g
			}
			g.Total = g.Total.Add(m.Monto)
			g.Movimientos = append(g.Movimientos, GastoDetalle{
				MovimientoID: m.ID.String(),
				Monto:        r2(m.Monto),
				Nota:         m.Nota,
				CreatedAt:    m.CreatedAt,
			})
		}
	}

	// Cascade
	res.PorMetodo = TotalesPorMetodo{
		Efectivo:   r2(efectivo),
		Tarjeta:    r2(tarjeta),
		Plataforma: r2(plataforma),
	}
	res.PorMetodo.Total = r2(res.PorMetodo.Efectivo.Add(res.PorMetodo.Tarjeta).Add(res.PorMetodo.Plataforma))
	res.Depositos = r2(depositos)
	res.Gastos = r2(gastoTotal)
	res.Retiros = r2(retiros)

	res.Total1 = r2(res.PorMetodo.Total.Add(res.MontoApertura).Add(res.Depositos))
	res.Total2 = r2(res.Total1.Sub(res.PorMetodo.Plataforma))
	res.Total3 = r2(res.Total2.Sub(res.PorMetodo.Tarjeta))
	res.Total4 = r2(res.Total3.Sub(res.Gastos))
	res.EfectivoTeorico = r2(res.Total4.Sub(res.Retiros))

	if e.Contado != nil {
		contado := r2(*e.Contado)
		desc := r2(contado.Sub(res.EfectivoTeorico))
		res.EfectivoContado = &contado
		res.Descuadre = &desc
		res.EstadoCuadre = Clasificar(desc)
	}

	// Aggregates outside the cascade
	res.Ventas.Brutas = r2(res.Ventas.Brutas)
	res.Ventas.Reembolsos = r2(res.Ventas.Reembolsos)
	res.Ventas.Descuentos = r2(res.Ventas.Descuentos)
	res.Ventas.Impuestos = r2(res.Ventas.Impuestos)
	res.Ventas.Netas = r2(res.Ventas.Brutas.Sub(res.Ventas.Reembolsos).Sub(res.Ventas.Descuentos))

	comision := r2(res.PorMetodo.Tarjeta.Mul(e.Tasas.ComisionTarjeta))
	res.Tarjeta = Tarjeta{
		Total:        res.PorMetodo.Tarjeta,
		TasaComision: e.Tasas.ComisionTarjeta,
		Comision:     comision,
		IngresoNeto:  r2(res.PorMetodo.Tarjeta.Sub(comision)),
	}

	claves := make([]string, 0, len(plataformas))
	for k := range plataformas {
		claves = append(claves, k)
	}
	sort.Strings(claves)
	deuda := decimal.Zero
	for _, k := range claves {
		p := plataformas[k]
		p.TotalInterno = r2(p.TotalInterno)
		p.TotalPlataforma = r2(p.TotalPlataforma)
		p.Sobreprecio = r2(p.Sobreprecio)
		p.CobradoApp = r2(p.CobradoApp)
		p.CobradoEfectivo = r2(p.CobradoEfectivo)
		p.ComisionApp = r2(p.CobradoApp.Mul(e.Tasas.PlataformaApp))
		p.ComisionEfectivo = r2(p.CobradoEfectivo.Mul(e.Tasas.PlataformaEfectivo))
		p.ComisionTotal = r2(p.ComisionApp.Add(p.ComisionEfectivo))
		deuda = deuda.Add(p.Sobreprecio)
		res.Plataformas = append(res.Plataformas, *p)
	}
	res.DeudaPlataforma = r2(deuda)

	for _, sub := range ordenCategorias(gastos) {
		g := gastos[sub]
		g.Total = r2(g.Total)
		sort.Slice(g.Movimientos, func(i, j int) bool {
			a, b := g.Movimientos[i], g.Movimientos[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.MovimientoID < b.MovimientoID
		})
		res.GastosPorCategoria = append(res.GastosPorCategoria, *g)
	}

	sort.Slice(res.Excluidas, func(i, j int) bool { return res.Excluidas[i].OrdenID < res.Excluidas[j].OrdenID })

	return res
}

// Clasificar maps a discrepancy to cuadrado / sobra / falta.
func Clasificar(descuadre decimal.Decimal) string {
	switch {
	case descuadre.Abs().LessThan(tolerancia):
		return EstadoCuadrado
	case descuadre.IsPositive():
		return EstadoSobra
	default:
		return EstadoFalta
	}
}

// validar returns the per-method payment split of a completed order, or the
// reason it must be excluded.
func validar(o *model.Orden) (map[string]decimal.Decimal, string) {
	if len(o.Items) == 0 {
		return nil, MotivoSinItems
	}
	if len(o.Pagos) == 0 {
		return nil, MotivoSinPagos
	}
	porMetodo := make(map[string]decimal.Decimal, 3)
	suma := decimal.Zero
	for _, p := range o.Pagos {
		if !model.MetodoValido(p.Metodo) {
			return nil, MotivoMetodoDesconocido
		}
		if !p.Monto.IsPositive() {
			return nil, MotivoMontoInvalido
		}
		porMetodo[p.Metodo] = porMetodo[p.Metodo].Add(p.Monto)
		suma = suma.Add(p.Monto)
	}
	if !r2(suma).Equal(r2(o.Total)) {
		return nil, MotivoPagosNoCuadran
	}
	return porMetodo, ""
}

func pagada(o *model.Orden) bool {
	for _, p := range o.Pagos {
		if p.Monto.IsPositive() {
			return true
		}
	}
	return false
}

// ordenCategorias returns the known subcategories first, in report order, then
// any other keys alphabetically.
func ordenCategorias(gastos map[string]*GastoCategoria) []string {
	out := make([]string, 0, len(gastos))
	conocidas := map[string]bool{}
	for _, sub := range model.SubcategoriasGasto {
		conocidas[sub] = true
		if _, ok := gastos[sub]; ok {
			out = append(out, sub)
		}
	}
	var otras []string
	for sub := range gastos {
		if !conocidas[sub] {
			otras = append(otras, sub)
		}
	}
	sort.Strings(otras)
	return append(out, otras...)
}
