package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, registers "sqlite"

	"scanhub/pkg/config"
	"scanhub/pkg/logger"
)

// DB интерфейс для работы с базой данных
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
	PingContext(ctx context.Context) error
}

// SQLiteDB обёртка над database/sql.DB, поддерживающая embedded SQLite
// в WAL-режиме, как того требует persisted-state layout Scan Hub.
type SQLiteDB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// NewSQLiteDB открывает (и при необходимости создаёт) файл базы данных SQLite.
func NewSQLiteDB(ctx context.Context, cfg *config.DatabaseConfig) (*SQLiteDB, error) {
	conn, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite поддерживает один писатель одновременно; ограничиваем пул,
	// чтобы избежать SQLITE_BUSY под конкурентной записью.
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Log.Info("Connected to SQLite",
		"path", cfg.Path,
		"max_open_conns", maxOpen,
	)

	return &SQLiteDB{
		conn: conn,
		cfg:  cfg,
	}, nil
}

// ExecContext выполняет запрос без возврата результатов
func (db *SQLiteDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryContext выполняет запрос с возвратом строк
func (db *SQLiteDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext выполняет запрос с возвратом одной строки
func (db *SQLiteDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// BeginTx начинает транзакцию
func (db *SQLiteDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, opts)
}

// Close закрывает соединение
func (db *SQLiteDB) Close() error {
	err := db.conn.Close()
	logger.Log.Info("SQLite connection closed")
	return err
}

// PingContext проверяет соединение
func (db *SQLiteDB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Conn возвращает базовое соединение (для особых случаев, например goose)
func (db *SQLiteDB) Conn() *sql.DB {
	return db.conn
}

// Stats возвращает статистику пула
func (db *SQLiteDB) Stats() sql.DBStats {
	return db.conn.Stats()
}

// HealthCheck проверяет здоровье подключения
func (db *SQLiteDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	err := db.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}
