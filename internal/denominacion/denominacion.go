// Package denominacion converts a tally of notes and coins into an amount and
// back. The cuadre never sees denominations, only the resulting total.
package denominacion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrDenominacionInvalida = errors.New("denominación no reconocida")
	ErrCantidadNegativa     = errors.New("la cantidad de piezas no puede ser negativa")
	ErrMontoNoRepresentable = errors.New("el monto no puede expresarse con las denominaciones disponibles")
)

// valores is the fixed note/coin set, largest first.
var valores = []decimal.Decimal{
	decimal.NewFromInt(1000),
	decimal.NewFromInt(500),
	decimal.NewFromInt(200),
	decimal.NewFromInt(100),
	decimal.NewFromInt(50),
	decimal.NewFromInt(20),
	decimal.NewFromInt(10),
	decimal.NewFromInt(5),
	decimal.NewFromInt(2),
	decimal.NewFromInt(1),
	decimal.RequireFromString("0.50"),
}

// Conteo maps a denomination ("500", "0.50") to the number of pieces counted.
type Conteo map[string]int

// Denominacion describes one accepted value.
type Denominacion struct {
	Clave string          `json:"clave"`
	Valor decimal.Decimal `json:"valor"`
	Tipo  string          `json:"tipo"` // billete | moneda
}

var minimoBillete = decimal.NewFromInt(20)

// Denominaciones returns the accepted set, largest first.
func Denominaciones() []Denominacion {
	out := make([]Denominacion, 0, len(valores))
	for _, v := range valores {
		tipo := "moneda"
		if v.GreaterThanOrEqual(minimoBillete) {
			tipo = "billete"
		}
		out = append(out, Denominacion{Clave: Clave(v), Valor: v, Tipo: tipo})
	}
	return out
}

// Clave is the canonical key for a denomination value: "500" or "0.50".
func Clave(v decimal.Decimal) string {
	if v.Equal(v.Truncate(0)) {
		return v.Truncate(0).String()
	}
	return v.StringFixed(2)
}

// Valor resolves a tally key to its value. "0.5" and "0.50" are the same key.
func Valor(clave string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(clave))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrDenominacionInvalida, clave)
	}
	for _, v := range valores {
		if v.Equal(d) {
			return v, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrDenominacionInvalida, clave)
}

// Total returns Σ valor × cantidad. An empty tally totals zero.
func Total(c Conteo) (decimal.Decimal, error) {
	total := decimal.Zero
	for clave, n := range c {
		if n < 0 {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrCantidadNegativa, clave)
		}
		v, err := Valor(clave)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v.Mul(decimal.NewFromInt(int64(n))))
	}
	return total.Round(2), nil
}

// Desglosar returns the tally with the fewest pieces that adds up to monto.
// Denominations with zero pieces are omitted.
func Desglosar(monto decimal.Decimal) (Conteo, error) {
	if monto.IsNegative() {
		return nil, ErrMontoNoRepresentable
	}
	resto := monto.Round(2)
	c := Conteo{}
	for _, v := range valores {
		n := resto.Div(v).Floor()
		if n.IsPositive() {
			c[Clave(v)] = int(n.IntPart())
			resto = resto.Sub(v.Mul(n))
		}
	}
	if !resto.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrMontoNoRepresentable, monto.StringFixed(2))
	}
	return c, nil
}

// Normalizar rewrites the keys of c into their canonical form, merging
// duplicates such as "0.5" and "0.50".
func Normalizar(c Conteo) (Conteo, error) {
	out := make(Conteo, len(c))
	for clave, n := range c {
		if n < 0 {
			return nil, fmt.Errorf("%w: %s", ErrCantidadNegativa, clave)
		}
		v, err := Valor(clave)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out[Clave(v)] += n
		}
	}
	return out, nil
}
