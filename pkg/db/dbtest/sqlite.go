// Package dbtest opens throwaway sqlite databases with the orderdesk schema
// for package tests.
package dbtest

import (
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE agents (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		can_view_orders BOOLEAN NOT NULL DEFAULT 0,
		last_assigned_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		assigned_agent_ids TEXT NOT NULL DEFAULT '{}',
		hidden_for_agent_ids TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL DEFAULT 'webhook',
		status TEXT NOT NULL DEFAULT 'new',
		agent_id TEXT,
		assigned_at DATETIME,
		assignment_fallback BOOLEAN NOT NULL DEFAULT 0,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_phone TEXT,
		customer_email TEXT,
		total_amount TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'USD',
		placed_at DATETIME NOT NULL,
		completed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_lines (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_external_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 1,
		unit_price TEXT NOT NULL DEFAULT '0',
		assigned_agent_ids TEXT NOT NULL DEFAULT '{}',
		hidden_for_agent_ids TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME
	)`,
	`CREATE TABLE order_assignments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		agent_id TEXT,
		reason TEXT NOT NULL,
		fallback BOOLEAN NOT NULL DEFAULT 0,
		candidate_count INTEGER NOT NULL DEFAULT 0,
		"trigger" TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE work_settings (
		id INTEGER PRIMARY KEY,
		work_start TEXT NOT NULL,
		work_end TEXT NOT NULL,
		work_days TEXT NOT NULL,
		break_start TEXT,
		break_end TEXT,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		updated_at DATETIME
	)`,
}

// Open returns an in-memory sqlite connection private to the calling test
// with every orderdesk table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:orderdesk_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
