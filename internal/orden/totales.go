// Package orden computes order totals. Both the terminal (to show the amount
// due) and the server (to validate payments) use it, so they agree to the cent.
package orden

import (
	"errors"
	"fmt"

	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrSinItems          = errors.New("la orden no tiene productos")
	ErrCantidadInvalida  = errors.New("la cantidad debe ser mayor a cero")
	ErrPrecioNegativo    = errors.New("el precio no puede ser negativo")
	ErrDescuentoExcedido = errors.New("el descuento excede el subtotal")
	ErrPagosNoCuadran    = errors.New("la suma de los pagos no coincide con el total")
	ErrMetodoInvalido    = errors.New("método de pago inválido")
)

// Totales is the computed breakdown of an order.
type Totales struct {
	Lineas    []decimal.Decimal
	Subtotal  decimal.Decimal
	Descuento decimal.Decimal
	Impuesto  decimal.Decimal
	Total     decimal.Decimal
}

// Calcular returns line subtotals and order totals.
//
//	linea    = (precio_unitario + Σ modificadores) × cantidad
//	impuesto = round((subtotal − descuento) × tasaIVA, 2)
//	total    = subtotal − descuento + impuesto
func Calcular(items []dto.ItemOrdenRequest, descuento, tasaIVA decimal.Decimal) (Totales, error) {
	if len(items) == 0 {
		return Totales{}, ErrSinItems
	}
	if descuento.IsNegative() {
		return Totales{}, ErrDescuentoExcedido
	}

	t := Totales{Lineas: make([]decimal.Decimal, 0, len(items))}
	for _, it := range items {
		if it.Cantidad <= 0 {
			return Totales{}, fmt.Errorf("%w: %s", ErrCantidadInvalida, it.Nombre)
		}
		unitario := it.PrecioUnitario
		for _, m := range it.Modificadores {
			if m.Precio.IsNegative() {
				return Totales{}, fmt.Errorf("%w: %s", ErrPrecioNegativo, m.Nombre)
			}
			unitario = unitario.Add(m.Precio)
		}
		if unitario.IsNegative() {
			return Totales{}, fmt.Errorf("%w: %s", ErrPrecioNegativo, it.Nombre)
		}
		linea := unitario.Mul(decimal.NewFromInt(int64(it.Cantidad))).Round(2)
		t.Lineas = append(t.Lineas, linea)
		t.Subtotal = t.Subtotal.Add(linea)
	}

	t.Descuento = descuento.Round(2)
	if t.Descuento.GreaterThan(t.Subtotal) {
		return Totales{}, ErrDescuentoExcedido
	}
	base := t.Subtotal.Sub(t.Descuento)
	t.Impuesto = base.Mul(tasaIVA).Round(2)
	t.Total = base.Add(t.Impuesto)
	return t, nil
}

// SumaPagos adds up all payment amounts.
func SumaPagos(pagos []dto.PagoRequest) decimal.Decimal {
	suma := decimal.Zero
	for _, p := range pagos {
		suma = suma.Add(p.Monto)
	}
	return suma.Round(2)
}

// VerificarPagos checks methods and that Σ pagos == total to the cent.
func VerificarPagos(total decimal.Decimal, pagos []dto.PagoRequest) error {
	for _, p := range pagos {
		if !model.MetodoValido(p.Metodo) {
			return fmt.Errorf("%w: %q", ErrMetodoInvalido, p.Metodo)
		}
	}
	suma := SumaPagos(pagos)
	if !suma.Equal(total.Round(2)) {
		return fmt.Errorf("%w: pagos %s, total %s", ErrPagosNoCuadran, suma.StringFixed(2), total.StringFixed(2))
	}
	return nil
}
