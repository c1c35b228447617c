package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.TasaIVADecimal().Equal(decimal.RequireFromString("0.16")))
	assert.True(t, cfg.ComisionTarjetaDecimal().Equal(decimal.RequireFromString("0.0405")))
	assert.True(t, cfg.CajaMaxEfectivoDecimal().Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 15*time.Second, cfg.SondaIntervalo())
	assert.Equal(t, 5*time.Second, cfg.ServidorTimeout())
}

func TestLoadDesdeEntorno(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("TASA_IVA", "0.08")
	t.Setenv("CAJA_MAX_EFECTIVO", "0")
	t.Setenv("TERMINAL_SUCURSAL_ID", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 7, cfg.TerminalSucursalID)
	assert.True(t, cfg.TasaIVADecimal().Equal(decimal.RequireFromString("0.08")))
	assert.True(t, cfg.CajaMaxEfectivoDecimal().IsZero())
}

func TestLoadRechazaValoresInvalidos(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("COMISION_TARJETA", "cuatro")
	_, err := Load()
	assert.ErrorContains(t, err, "COMISION_TARJETA")

	t.Setenv("COMISION_TARJETA", "-0.01")
	_, err = Load()
	assert.ErrorContains(t, err, "negativo")

	t.Setenv("COMISION_TARJETA", "0.0405")
	t.Setenv("APP_ENV", "production")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}
