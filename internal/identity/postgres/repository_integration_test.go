//go:build integration

package postgres_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/bissquit/storefront-auth/internal/identity"
	"github.com/bissquit/storefront-auth/internal/identity/identitytest"
	identitypostgres "github.com/bissquit/storefront-auth/internal/identity/postgres"
	"github.com/bissquit/storefront-auth/internal/pkg/postgres"
	"github.com/bissquit/storefront-auth/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	if err := postgres.Migrate(pgContainer.ConnectionString); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	testDB, err = postgres.Connect(connectCtx, postgres.Config{
		URL:             pgContainer.ConnectionString,
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnectAttempts: 3,
	})
	cancel()
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %v", err)
	}
	os.Exit(code)
}

func TestRepository_Contract(t *testing.T) {
	identitytest.RunRepositoryContract(t, func(*testing.T) identity.Repository {
		return identitypostgres.NewRepository(testDB)
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	var count int
	err := testDB.QueryRow(context.Background(), `SELECT count(*) FROM schema_migrations`).Scan(&count)
	if err != nil {
		t.Fatalf("read schema_migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single schema_migrations row, got %d", count)
	}
}
