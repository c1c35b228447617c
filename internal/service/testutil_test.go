package service

import (
	"testing"
	"time"

	"cajapos/internal/cuadre"
	"cajapos/internal/infra"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type reloj struct{ t time.Time }

func (r *reloj) ahora() time.Time        { return r.t }
func (r *reloj) avanzar(d time.Duration) { r.t = r.t.Add(d) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := infra.NewSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, infra.Migrar(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var tasasTest = cuadre.Tasas{ComisionTarjeta: d("0.0405"), PlataformaApp: d("0.30"), PlataformaEfectivo: d("0.25")}

// entorno wires the server services over one SQLite database and one clock.
type entorno struct {
	reloj   *reloj
	cajas   *cajaService
	cuadre  *cuadreService
	ordenes *ordenService
	folios  FolioService
}

func newEntorno(t *testing.T, maxEfectivo string) *entorno {
	db := newTestDB(t)
	r := &reloj{t: t0}

	cajaRepo := repository.NewCajaRepository(db)
	ordenRepo := repository.NewOrdenRepository(db)

	cs := &cuadreService{cajas: cajaRepo, ordenes: ordenRepo, tasas: tasasTest, ahora: r.ahora}
	return &entorno{
		reloj:   r,
		cuadre:  cs,
		cajas:   &cajaService{repo: cajaRepo, cuadre: cs, maxEfectivo: d(maxEfectivo), ahora: r.ahora},
		ordenes: &ordenService{repo: ordenRepo, tasaIVA: decimal.Zero, ahora: r.ahora},
		folios:  NewFolioService(repository.NewFolioRepository(db)),
	}
}
