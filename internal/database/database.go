package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
)

// Connect opens the MySQL connection with sensible pooling defaults.
func Connect(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetConnMaxLifetime(time.Minute * 5)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return db, nil
}

// Migrate runs the bootstrap schema to ensure required tables exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// SeedAddressPool inserts configured pool addresses that are not yet known.
// Existing rows keep their assignment.
func SeedAddressPool(ctx context.Context, db *sql.DB, addrs []string) error {
	const query = `INSERT IGNORE INTO address_pool (addr) VALUES (?)`
	for _, addr := range addrs {
		if _, err := db.ExecContext(ctx, query, addr); err != nil {
			return fmt.Errorf("seed address %s: %w", addr, err)
		}
	}
	return nil
}
