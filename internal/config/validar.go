package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func (c *Config) validar() error {
	tasas := []struct {
		clave string
		valor string
	}{
		{"TASA_IVA", c.TasaIVA},
		{"COMISION_TARJETA", c.ComisionTarjeta},
		{"COMISION_PLATAFORMA_APP", c.ComisionPlataformaApp},
		{"COMISION_PLATAFORMA_EFECTIVO", c.ComisionPlataformaEfectivo},
		{"CAJA_MAX_EFECTIVO", c.CajaMaxEfectivo},
	}
	for _, t := range tasas {
		d, err := decimal.NewFromString(t.valor)
		if err != nil {
			return fmt.Errorf("config: %s no es un número: %q", t.clave, t.valor)
		}
		if d.IsNegative() {
			return fmt.Errorf("config: %s no puede ser negativo", t.clave)
		}
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET es obligatorio en producción")
	}
	if c.SondaIntervaloSegundos < 1 {
		return fmt.Errorf("config: SONDA_INTERVALO_SEGUNDOS debe ser al menos 1")
	}
	if c.ServidorTimeoutSegundos < 1 {
		return fmt.Errorf("config: SERVIDOR_TIMEOUT_SEGUNDOS debe ser al menos 1")
	}
	return nil
}
