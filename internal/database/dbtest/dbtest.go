// Package dbtest abre bases SQLite en memoria para los tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
)

// New devuelve una base en memoria con el esquema, las migraciones y los brokers cargados.
func New(t testing.TB) *database.Database {
	t.Helper()

	db, err := database.Open(database.DriverSQLitePure, ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := database.CreateSchema(ctx, db); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	if err := database.RunMigrations(ctx, db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	if _, err := database.SeedProviders(ctx, db, ""); err != nil {
		t.Fatalf("seeding providers: %v", err)
	}
	return db
}
