package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Seed data created by init-db.
const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@example.com"
	defaultAdminPassword = "admin"

	seedPostTitle = "First Post"
	seedPostText  = "First Post content"
)

func openDB(driver, dsn string) (*sqlx.DB, error) {
	if driver == driverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == driverSQLite && strings.HasPrefix(dsn, ":memory:") {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// migrateDB applies the embedded migrations for the connection's dialect.
// It is safe to call on every start.
func migrateDB(db *sqlx.DB, logger *zap.Logger) error {
	dialect, dir := "sqlite3", "migrations/sqlite"
	if db.DriverName() == driverPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{sugar: logger.Sugar()})

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.Up(db.DB, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// seedDB makes sure the admin account and at least one post exist, writing a
// line to out for everything it creates.
func seedDB(ctx context.Context, db *sqlx.DB, out io.Writer) error {
	return withTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := getUserByUsername(ctx, tx, defaultAdminUsername)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			hash, err := hashPassword(defaultAdminPassword)
			if err != nil {
				return err
			}
			if _, err := createUser(ctx, tx, defaultAdminUsername, defaultAdminEmail, hash); err != nil {
				return err
			}
			fmt.Fprintln(out, "Admin user created")
		case err != nil:
			return fmt.Errorf("checking for admin user: %w", err)
		}

		var count int
		if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM posts"); err != nil {
			return fmt.Errorf("counting posts: %w", err)
		}
		if count == 0 {
			if _, err := insertPost(ctx, tx, seedPostTitle, seedPostText); err != nil {
				return err
			}
			fmt.Fprintln(out, "Initial post created")
		}

		return nil
	})
}

// initDatabase is the init-db command.
func initDatabase(ctx context.Context, db *sqlx.DB, logger *zap.Logger, out io.Writer) error {
	if err := migrateDB(db, logger); err != nil {
		return err
	}
	if err := seedDB(ctx, db, out); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	fmt.Fprintln(out, "Database initialized!")
	return nil
}

// withTx runs fn in a transaction, committing if it returns nil and rolling
// back otherwise.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
