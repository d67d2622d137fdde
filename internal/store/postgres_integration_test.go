// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/gatekeeper/internal/store"
)

// setupMigratedDatabase starts a PostgreSQL container, migrates it and
// connects through store.Connect.
func setupMigratedDatabase() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("gatekeeper_test"),
		postgres.WithUsername("gatekeeper"),
		postgres.WithPassword("gatekeeper"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}
	terminate := func() { _ = container.Terminate(ctx) }

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	defer migrator.Close()
	if err := migrator.Up(); err != nil {
		terminate()
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 3, BaseDelay: 100 * time.Millisecond})
	if err != nil {
		terminate()
		return nil, nil, err
	}

	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ = Describe("Schema", Ordered, func() {
	ctx := context.Background()

	insertAccount := func(email string) string {
		id := ulid.Make().String()
		_, err := schemaPool.Exec(ctx, `
			INSERT INTO accounts (id, email, password_hash, tenant_id)
			VALUES ($1, $2, 'hash', 'tenant-001')
		`, id, email)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	insertRefresh := func(accountID, tokenHash string) error {
		_, err := schemaPool.Exec(ctx, `
			INSERT INTO refresh_tokens (id, account_id, token_hash, ttl_seconds)
			VALUES ($1, $2, $3, 604800)
		`, ulid.Make().String(), accountID, tokenHash)
		return err
	}

	Describe("accounts", func() {
		It("rejects a duplicate email", func() {
			insertAccount("dup@example.com")
			_, err := schemaPool.Exec(ctx, `
				INSERT INTO accounts (id, email, password_hash, tenant_id)
				VALUES ($1, 'dup@example.com', 'hash', 'tenant-001')
			`, ulid.Make().String())
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})

		It("rejects a mixed-case email", func() {
			_, err := schemaPool.Exec(ctx, `
				INSERT INTO accounts (id, email, password_hash, tenant_id)
				VALUES ($1, 'Mixed@Example.com', 'hash', 'tenant-001')
			`, ulid.Make().String())
			Expect(pgCode(err)).To(Equal(pgerrcode.CheckViolation))
		})

		It("rejects an unknown status", func() {
			id := insertAccount("status@example.com")
			_, err := schemaPool.Exec(ctx, `UPDATE accounts SET status = 'DELETED' WHERE id = $1`, id)
			Expect(pgCode(err)).To(Equal(pgerrcode.CheckViolation))
		})

		It("requires reset token and expiry together", func() {
			id := insertAccount("reset@example.com")
			_, err := schemaPool.Exec(ctx, `UPDATE accounts SET reset_token_hash = 'h' WHERE id = $1`, id)
			Expect(pgCode(err)).To(Equal(pgerrcode.CheckViolation))
		})
	})

	Describe("refresh_tokens", func() {
		It("holds at most one record per account", func() {
			id := insertAccount("single@example.com")
			Expect(insertRefresh(id, "first")).To(Succeed())
			Expect(pgCode(insertRefresh(id, "second"))).To(Equal(pgerrcode.UniqueViolation))
		})

		It("cascades when the account goes away", func() {
			id := insertAccount("cascade@example.com")
			Expect(insertRefresh(id, "cascade-token")).To(Succeed())

			_, err := schemaPool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
			Expect(err).NotTo(HaveOccurred())

			var n int
			Expect(schemaPool.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE account_id = $1`, id).Scan(&n)).To(Succeed())
			Expect(n).To(BeZero())
		})
	})

	Describe("sessions", func() {
		It("requires an existing account", func() {
			_, err := schemaPool.Exec(ctx, `
				INSERT INTO sessions (id, account_id, expires_at)
				VALUES ($1, $2, NOW() + INTERVAL '1 hour')
			`, ulid.Make().String(), ulid.Make().String())
			Expect(pgCode(err)).To(Equal(pgerrcode.ForeignKeyViolation))
		})
	})
})
